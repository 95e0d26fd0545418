package expense

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Sortable columns; anything else falls back to date.
var sortColumns = map[string]string{
	"date":       "date",
	"amount":     "amount",
	"category":   "category",
	"created_at": "created_at",
}

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, userID string, input Input) (Expense, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return Expense{}, fmt.Errorf("generate expense id: %w", err)
	}

	tags := input.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return Expense{}, fmt.Errorf("encode tags: %w", err)
	}

	now := time.Now().UTC()
	e := Expense{
		ID:            id.String(),
		UserID:        userID,
		Amount:        input.Amount,
		Category:      input.Category,
		Description:   input.Description,
		Date:          input.Date,
		PaymentMethod: input.PaymentMethod,
		Tags:          tags,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO expenses (id, user_id, amount, category, description, date, payment_method, tags, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6::date, $7, $8, $9, $9)
	`, e.ID, e.UserID, e.Amount, e.Category, e.Description, e.Date, e.PaymentMethod, tagsJSON, now)
	if err != nil {
		return Expense{}, fmt.Errorf("insert expense: %w", err)
	}

	return e, nil
}

func (r *Repository) List(ctx context.Context, userID string, filter ListFilter) ([]Expense, int, error) {
	conds := []string{"user_id = $1"}
	args := []any{userID}

	addCond := func(condition string, value any) {
		args = append(args, value)
		conds = append(conds, fmt.Sprintf(condition, len(args)))
	}

	if filter.Category != "" {
		addCond("category = $%d", filter.Category)
	}
	if filter.StartDate != "" {
		addCond("date >= $%d::date", filter.StartDate)
	}
	if filter.EndDate != "" {
		addCond("date <= $%d::date", filter.EndDate)
	}
	if filter.MinAmount != nil {
		addCond("amount >= $%d", *filter.MinAmount)
	}
	if filter.MaxAmount != nil {
		addCond("amount <= $%d", *filter.MaxAmount)
	}
	if filter.Search != "" {
		addCond("description ILIKE $%d", "%"+filter.Search+"%")
	}

	where := strings.Join(conds, " AND ")

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM expenses WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count expenses: %w", err)
	}

	sortBy, ok := sortColumns[filter.SortBy]
	if !ok {
		sortBy = "date"
	}
	direction := "DESC"
	if strings.EqualFold(filter.SortOrder, "asc") {
		direction = "ASC"
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 10
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	args = append(args, limit, (page-1)*limit)

	query := fmt.Sprintf(`
		SELECT id, user_id, amount::float8, category, description, date::text, payment_method, tags, created_at, updated_at
		FROM expenses
		WHERE %s
		ORDER BY %s %s, created_at DESC
		LIMIT $%d OFFSET $%d
	`, where, sortBy, direction, len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query expenses: %w", err)
	}
	defer rows.Close()

	expenses := make([]Expense, 0)
	for rows.Next() {
		e, err := scanExpense(rows.Scan)
		if err != nil {
			return nil, 0, err
		}
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate expenses: %w", err)
	}

	return expenses, total, nil
}

func (r *Repository) GetByID(ctx context.Context, userID, id string) (Expense, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, amount::float8, category, description, date::text, payment_method, tags, created_at, updated_at
		FROM expenses
		WHERE id = $1 AND user_id = $2
	`, id, userID)

	e, err := scanExpense(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Expense{}, err
		}
		return Expense{}, fmt.Errorf("query expense: %w", err)
	}

	return e, nil
}

func (r *Repository) Update(ctx context.Context, userID, id string, input Input) (Expense, error) {
	tags := input.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return Expense{}, fmt.Errorf("encode tags: %w", err)
	}

	row := r.db.QueryRowContext(ctx, `
		UPDATE expenses
		SET amount = $3, category = $4, description = $5, date = $6::date, payment_method = $7, tags = $8, updated_at = $9
		WHERE id = $1 AND user_id = $2
		RETURNING id, user_id, amount::float8, category, description, date::text, payment_method, tags, created_at, updated_at
	`, id, userID, input.Amount, input.Category, input.Description, input.Date, input.PaymentMethod, tagsJSON, time.Now().UTC())

	e, err := scanExpense(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Expense{}, err
		}
		return Expense{}, fmt.Errorf("update expense: %w", err)
	}

	return e, nil
}

func (r *Repository) Delete(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM expenses WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}

	return nil
}

// Stats aggregates the owner's expenses in the optional date window: totals,
// per-category sums, and per-month (YYYY-MM) sums.
func (r *Repository) Stats(ctx context.Context, userID, startDate, endDate string) (Stats, error) {
	conds := []string{"user_id = $1"}
	args := []any{userID}
	if startDate != "" {
		args = append(args, startDate)
		conds = append(conds, fmt.Sprintf("date >= $%d::date", len(args)))
	}
	if endDate != "" {
		args = append(args, endDate)
		conds = append(conds, fmt.Sprintf("date <= $%d::date", len(args)))
	}
	where := strings.Join(conds, " AND ")

	stats := Stats{
		CategoryBreakdown: map[string]float64{},
		MonthlyBreakdown:  map[string]float64{},
	}

	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount), 0)::float8, COALESCE(AVG(amount), 0)::float8, COUNT(*)
		FROM expenses
		WHERE `+where, args...).Scan(&stats.TotalExpenses, &stats.AvgExpense, &stats.ExpenseCount)
	if err != nil {
		return Stats{}, fmt.Errorf("aggregate expense totals: %w", err)
	}

	if err := r.groupedSums(ctx, `
		SELECT category, SUM(amount)::float8
		FROM expenses
		WHERE `+where+`
		GROUP BY category
	`, args, stats.CategoryBreakdown); err != nil {
		return Stats{}, fmt.Errorf("aggregate category breakdown: %w", err)
	}

	if err := r.groupedSums(ctx, `
		SELECT to_char(date, 'YYYY-MM'), SUM(amount)::float8
		FROM expenses
		WHERE `+where+`
		GROUP BY 1
	`, args, stats.MonthlyBreakdown); err != nil {
		return Stats{}, fmt.Errorf("aggregate monthly breakdown: %w", err)
	}

	return stats, nil
}

func (r *Repository) groupedSums(ctx context.Context, query string, args []any, dst map[string]float64) error {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var sum float64
		if err := rows.Scan(&key, &sum); err != nil {
			return err
		}
		dst[key] = sum
	}

	return rows.Err()
}

func scanExpense(scan func(...any) error) (Expense, error) {
	var e Expense
	var tagsJSON []byte
	err := scan(&e.ID, &e.UserID, &e.Amount, &e.Category, &e.Description, &e.Date, &e.PaymentMethod, &tagsJSON, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return Expense{}, err
	}

	e.Tags = []string{}
	if len(tagsJSON) > 0 {
		if err := json.Unmarshal(tagsJSON, &e.Tags); err != nil {
			return Expense{}, fmt.Errorf("decode tags: %w", err)
		}
	}

	return e, nil
}
