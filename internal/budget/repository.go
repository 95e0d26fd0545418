package budget

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const budgetColumns = `id, user_id, category, amount::float8, period, start_date::text, end_date::text, created_at, updated_at`

func (r *Repository) Create(ctx context.Context, userID string, input Input) (Budget, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return Budget{}, fmt.Errorf("generate budget id: %w", err)
	}

	now := time.Now().UTC()
	b := Budget{
		ID:        id.String(),
		UserID:    userID,
		Category:  input.Category,
		Amount:    input.Amount,
		Period:    input.Period,
		StartDate: input.StartDate,
		EndDate:   input.EndDate,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO budgets (id, user_id, category, amount, period, start_date, end_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6::date, $7::date, $8, $8)
	`, b.ID, b.UserID, b.Category, b.Amount, b.Period, b.StartDate, b.EndDate, now)
	if err != nil {
		return Budget{}, fmt.Errorf("insert budget: %w", err)
	}

	return b, nil
}

func (r *Repository) List(ctx context.Context, userID string, activeOnly bool) ([]Budget, error) {
	query := `
		SELECT ` + budgetColumns + `
		FROM budgets
		WHERE user_id = $1
	`
	if activeOnly {
		query += ` AND start_date <= CURRENT_DATE AND end_date >= CURRENT_DATE`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query budgets: %w", err)
	}
	defer rows.Close()

	budgets := make([]Budget, 0)
	for rows.Next() {
		var b Budget
		if err := rows.Scan(&b.ID, &b.UserID, &b.Category, &b.Amount, &b.Period, &b.StartDate, &b.EndDate, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		budgets = append(budgets, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate budgets: %w", err)
	}

	return budgets, nil
}

func (r *Repository) GetByID(ctx context.Context, userID, id string) (Budget, error) {
	var b Budget
	err := r.db.QueryRowContext(ctx, `
		SELECT `+budgetColumns+`
		FROM budgets
		WHERE id = $1 AND user_id = $2
	`, id, userID).Scan(&b.ID, &b.UserID, &b.Category, &b.Amount, &b.Period, &b.StartDate, &b.EndDate, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Budget{}, err
		}
		return Budget{}, fmt.Errorf("query budget: %w", err)
	}

	return b, nil
}

func (r *Repository) Update(ctx context.Context, userID, id string, input Input) (Budget, error) {
	var b Budget
	err := r.db.QueryRowContext(ctx, `
		UPDATE budgets
		SET category = $3, amount = $4, period = $5, start_date = $6::date, end_date = $7::date, updated_at = $8
		WHERE id = $1 AND user_id = $2
		RETURNING `+budgetColumns+`
	`, id, userID, input.Category, input.Amount, input.Period, input.StartDate, input.EndDate, time.Now().UTC()).
		Scan(&b.ID, &b.UserID, &b.Category, &b.Amount, &b.Period, &b.StartDate, &b.EndDate, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Budget{}, err
		}
		return Budget{}, fmt.Errorf("update budget: %w", err)
	}

	return b, nil
}

func (r *Repository) Delete(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM budgets WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete budget: %w", err)
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

// SpentInWindow sums the owner's expenses for a category inside a date
// window, the derived figure every budget response carries.
func (r *Repository) SpentInWindow(ctx context.Context, userID, category, startDate, endDate string) (float64, error) {
	var spent float64
	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount), 0)::float8
		FROM expenses
		WHERE user_id = $1 AND category = $2 AND date >= $3::date AND date <= $4::date
	`, userID, category, startDate, endDate).Scan(&spent)
	if err != nil {
		return 0, fmt.Errorf("sum expenses for budget: %w", err)
	}

	return spent, nil
}
