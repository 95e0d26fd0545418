package budget

import (
	"math"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
)

const dateLayout = "2006-01-02"

type Budget struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Category  string    `json:"category"`
	Amount    float64   `json:"amount"`
	Period    string    `json:"period"`
	StartDate string    `json:"start_date"`
	EndDate   string    `json:"end_date"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Input struct {
	Category  string  `json:"category"`
	Amount    float64 `json:"amount"`
	Period    string  `json:"period"`
	StartDate string  `json:"start_date"`
	EndDate   string  `json:"end_date"`
}

func (i Input) Validate() error {
	return validation.ValidateStruct(&i,
		validation.Field(&i.Category, validation.Required),
		validation.Field(&i.Amount, validation.Required, validation.Min(0.01)),
		validation.Field(&i.Period, validation.Required, validation.In("daily", "weekly", "monthly", "yearly", "custom")),
		validation.Field(&i.StartDate, validation.Required, validation.Date(dateLayout)),
		validation.Field(&i.EndDate, validation.Required, validation.Date(dateLayout)),
	)
}

// WithSpent is a budget enriched with the owner's expense total for the
// budget's category inside its date window.
type WithSpent struct {
	Budget
	Spent          float64 `json:"spent"`
	Remaining      float64 `json:"remaining"`
	PercentageUsed float64 `json:"percentageUsed"`
}

func enrich(b Budget, spent float64) WithSpent {
	var pct float64
	if b.Amount > 0 {
		pct = math.Round(spent/b.Amount*100*100) / 100
	}

	return WithSpent{
		Budget:         b,
		Spent:          spent,
		Remaining:      b.Amount - spent,
		PercentageUsed: pct,
	}
}
