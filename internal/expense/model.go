package expense

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
)

const dateLayout = "2006-01-02"

type Expense struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	Amount        float64   `json:"amount"`
	Category      string    `json:"category"`
	Description   string    `json:"description"`
	Date          string    `json:"date"`
	PaymentMethod string    `json:"payment_method"`
	Tags          []string  `json:"tags"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type Input struct {
	Amount        float64  `json:"amount"`
	Category      string   `json:"category"`
	Description   string   `json:"description"`
	Date          string   `json:"date"`
	PaymentMethod string   `json:"payment_method"`
	Tags          []string `json:"tags"`
}

func (i Input) Validate() error {
	return validation.ValidateStruct(&i,
		validation.Field(&i.Amount, validation.Required, validation.Min(0.01)),
		validation.Field(&i.Category, validation.Required),
		validation.Field(&i.Date, validation.Required, validation.Date(dateLayout)),
	)
}

// ListFilter narrows and orders an owner's expense listing. Zero values mean
// "no constraint"; amount bounds are pointers so zero is a usable bound.
type ListFilter struct {
	Category  string
	StartDate string
	EndDate   string
	MinAmount *float64
	MaxAmount *float64
	Search    string
	SortBy    string
	SortOrder string
	Page      int
	Limit     int
}

type Pagination struct {
	CurrentPage  int `json:"currentPage"`
	TotalPages   int `json:"totalPages"`
	TotalItems   int `json:"totalItems"`
	ItemsPerPage int `json:"itemsPerPage"`
}

type Stats struct {
	TotalExpenses     float64            `json:"totalExpenses"`
	AvgExpense        float64            `json:"avgExpense"`
	ExpenseCount      int                `json:"expenseCount"`
	CategoryBreakdown map[string]float64 `json:"categoryBreakdown"`
	MonthlyBreakdown  map[string]float64 `json:"monthlyBreakdown"`
}
