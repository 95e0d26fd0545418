package budget

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"

	"expense-tracker/internal/auth"
	"expense-tracker/internal/respond"
)

const maxJSONBodyBytes = 1 << 20

// Store is implemented by *Repository; handlers are tested against a fake.
type Store interface {
	Create(ctx context.Context, userID string, input Input) (Budget, error)
	List(ctx context.Context, userID string, activeOnly bool) ([]Budget, error)
	GetByID(ctx context.Context, userID, id string) (Budget, error)
	Update(ctx context.Context, userID, id string, input Input) (Budget, error)
	Delete(ctx context.Context, userID, id string) error
	SpentInWindow(ctx context.Context, userID, category, startDate, endDate string) (float64, error)
}

type Handler struct {
	store Store
	dev   bool
}

func NewHandler(store Store, dev bool) *Handler {
	return &Handler{store: store, dev: dev}
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "Access token is required")
		return
	}

	input, ok := h.parseInput(w, r)
	if !ok {
		return
	}

	budget, err := h.store.Create(r.Context(), user.ID, input)
	if err != nil {
		h.internalError(w, err, "Failed to create budget")
		return
	}

	respond.Success(w, http.StatusCreated, "Budget created successfully", map[string]any{
		"budget": budget,
	})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "Access token is required")
		return
	}

	activeOnly := r.URL.Query().Get("active") == "true"

	budgets, err := h.store.List(r.Context(), user.ID, activeOnly)
	if err != nil {
		h.internalError(w, err, "Failed to fetch budgets")
		return
	}

	enriched := make([]WithSpent, 0, len(budgets))
	for _, b := range budgets {
		spent, err := h.store.SpentInWindow(r.Context(), user.ID, b.Category, b.StartDate, b.EndDate)
		if err != nil {
			h.internalError(w, err, "Failed to fetch budgets")
			return
		}
		enriched = append(enriched, enrich(b, spent))
	}

	respond.Success(w, http.StatusOK, "Budgets fetched successfully", map[string]any{
		"budgets": enriched,
	})
}

func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "Access token is required")
		return
	}

	id := r.PathValue("id")
	if _, err := uuid.Parse(id); err != nil {
		respond.Error(w, http.StatusNotFound, "Budget not found")
		return
	}

	budget, err := h.store.GetByID(r.Context(), user.ID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respond.Error(w, http.StatusNotFound, "Budget not found")
			return
		}
		h.internalError(w, err, "Failed to fetch budget")
		return
	}

	spent, err := h.store.SpentInWindow(r.Context(), user.ID, budget.Category, budget.StartDate, budget.EndDate)
	if err != nil {
		h.internalError(w, err, "Failed to fetch budget")
		return
	}

	respond.Success(w, http.StatusOK, "Budget fetched successfully", map[string]any{
		"budget": enrich(budget, spent),
	})
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "Access token is required")
		return
	}

	id := r.PathValue("id")
	if _, err := uuid.Parse(id); err != nil {
		respond.Error(w, http.StatusNotFound, "Budget not found")
		return
	}

	input, ok := h.parseInput(w, r)
	if !ok {
		return
	}

	budget, err := h.store.Update(r.Context(), user.ID, id, input)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respond.Error(w, http.StatusNotFound, "Budget not found")
			return
		}
		h.internalError(w, err, "Failed to update budget")
		return
	}

	respond.Success(w, http.StatusOK, "Budget updated successfully", map[string]any{
		"budget": budget,
	})
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "Access token is required")
		return
	}

	id := r.PathValue("id")
	if _, err := uuid.Parse(id); err != nil {
		respond.Error(w, http.StatusNotFound, "Budget not found")
		return
	}

	if err := h.store.Delete(r.Context(), user.ID, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respond.Error(w, http.StatusNotFound, "Budget not found")
			return
		}
		h.internalError(w, err, "Failed to delete budget")
		return
	}

	respond.Success(w, http.StatusOK, "Budget deleted successfully", nil)
}

func (h *Handler) parseInput(w http.ResponseWriter, r *http.Request) (Input, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	var input Input
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&input); err != nil {
		respond.Error(w, http.StatusBadRequest, "Invalid JSON body")
		return Input{}, false
	}

	input.Category = strings.TrimSpace(input.Category)
	input.Period = strings.TrimSpace(input.Period)
	input.StartDate = strings.TrimSpace(input.StartDate)
	input.EndDate = strings.TrimSpace(input.EndDate)

	if err := input.Validate(); err != nil {
		respond.ErrorDetail(w, http.StatusBadRequest, "Validation failed", err)
		return Input{}, false
	}

	return input, true
}

func (h *Handler) internalError(w http.ResponseWriter, err error, message string) {
	sentry.CaptureException(err)
	if h.dev {
		respond.ErrorDetail(w, http.StatusInternalServerError, message, err.Error())
		return
	}
	respond.Error(w, http.StatusInternalServerError, message)
}
