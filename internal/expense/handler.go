package expense

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"

	"expense-tracker/internal/auth"
	"expense-tracker/internal/respond"
)

const maxJSONBodyBytes = 1 << 20

const maxPageSize = 100

// Store is implemented by *Repository; handlers are tested against a fake.
type Store interface {
	Create(ctx context.Context, userID string, input Input) (Expense, error)
	List(ctx context.Context, userID string, filter ListFilter) ([]Expense, int, error)
	GetByID(ctx context.Context, userID, id string) (Expense, error)
	Update(ctx context.Context, userID, id string, input Input) (Expense, error)
	Delete(ctx context.Context, userID, id string) error
	Stats(ctx context.Context, userID, startDate, endDate string) (Stats, error)
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

	expense, err := h.store.Create(r.Context(), user.ID, input)
	if err != nil {
		h.internalError(w, err, "Failed to create expense")
		return
	}

	respond.Success(w, http.StatusCreated, "Expense created successfully", map[string]any{
		"expense": expense,
	})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "Access token is required")
		return
	}

	filter, ok := parseListFilter(w, r)
	if !ok {
		return
	}

	expenses, total, err := h.store.List(r.Context(), user.ID, filter)
	if err != nil {
		h.internalError(w, err, "Failed to fetch expenses")
		return
	}

	respond.Success(w, http.StatusOK, "Expenses fetched successfully", map[string]any{
		"expenses":   expenses,
		"pagination": paginate(filter.Page, filter.Limit, total),
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
		respond.Error(w, http.StatusNotFound, "Expense not found")
		return
	}

	expense, err := h.store.GetByID(r.Context(), user.ID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respond.Error(w, http.StatusNotFound, "Expense not found")
			return
		}
		h.internalError(w, err, "Failed to fetch expense")
		return
	}

	respond.Success(w, http.StatusOK, "Expense fetched successfully", map[string]any{
		"expense": expense,
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
		respond.Error(w, http.StatusNotFound, "Expense not found")
		return
	}

	input, ok := h.parseInput(w, r)
	if !ok {
		return
	}

	expense, err := h.store.Update(r.Context(), user.ID, id, input)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respond.Error(w, http.StatusNotFound, "Expense not found")
			return
		}
		h.internalError(w, err, "Failed to update expense")
		return
	}

	respond.Success(w, http.StatusOK, "Expense updated successfully", map[string]any{
		"expense": expense,
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
		respond.Error(w, http.StatusNotFound, "Expense not found")
		return
	}

	if err := h.store.Delete(r.Context(), user.ID, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respond.Error(w, http.StatusNotFound, "Expense not found")
			return
		}
		h.internalError(w, err, "Failed to delete expense")
		return
	}

	respond.Success(w, http.StatusOK, "Expense deleted successfully", nil)
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "Access token is required")
		return
	}

	startDate := strings.TrimSpace(r.URL.Query().Get("startDate"))
	endDate := strings.TrimSpace(r.URL.Query().Get("endDate"))
	if !validDateParam(startDate) || !validDateParam(endDate) {
		respond.Error(w, http.StatusBadRequest, "Dates must be in YYYY-MM-DD format")
		return
	}

	stats, err := h.store.Stats(r.Context(), user.ID, startDate, endDate)
	if err != nil {
		h.internalError(w, err, "Failed to fetch expense statistics")
		return
	}

	respond.Success(w, http.StatusOK, "Statistics fetched successfully", stats)
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
	input.Description = strings.TrimSpace(input.Description)
	input.Date = strings.TrimSpace(input.Date)
	input.PaymentMethod = strings.TrimSpace(input.PaymentMethod)

	if err := input.Validate(); err != nil {
		respond.ErrorDetail(w, http.StatusBadRequest, "Validation failed", err)
		return Input{}, false
	}

	return input, true
}

func parseListFilter(w http.ResponseWriter, r *http.Request) (ListFilter, bool) {
	query := r.URL.Query()

	filter := ListFilter{
		Category:  strings.TrimSpace(query.Get("category")),
		StartDate: strings.TrimSpace(query.Get("startDate")),
		EndDate:   strings.TrimSpace(query.Get("endDate")),
		Search:    strings.TrimSpace(query.Get("search")),
		SortBy:    strings.TrimSpace(query.Get("sortBy")),
		SortOrder: strings.TrimSpace(query.Get("sortOrder")),
		Page:      1,
		Limit:     10,
	}

	if !validDateParam(filter.StartDate) || !validDateParam(filter.EndDate) {
		respond.Error(w, http.StatusBadRequest, "Dates must be in YYYY-MM-DD format")
		return ListFilter{}, false
	}

	if raw := query.Get("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 {
			respond.Error(w, http.StatusBadRequest, "page must be a positive integer")
			return ListFilter{}, false
		}
		filter.Page = page
	}
	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			respond.Error(w, http.StatusBadRequest, "limit must be a positive integer")
			return ListFilter{}, false
		}
		if limit > maxPageSize {
			limit = maxPageSize
		}
		filter.Limit = limit
	}

	var ok bool
	if filter.MinAmount, ok = parseAmountParam(w, query.Get("minAmount"), "minAmount"); !ok {
		return ListFilter{}, false
	}
	if filter.MaxAmount, ok = parseAmountParam(w, query.Get("maxAmount"), "maxAmount"); !ok {
		return ListFilter{}, false
	}

	return filter, true
}

func parseAmountParam(w http.ResponseWriter, raw, name string) (*float64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, true
	}

	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		respond.Error(w, http.StatusBadRequest, name+" must be a number")
		return nil, false
	}

	return &value, true
}

func validDateParam(value string) bool {
	if value == "" {
		return true
	}
	_, err := time.Parse(dateLayout, value)
	return err == nil
}

func paginate(page, limit, total int) Pagination {
	totalPages := 0
	if total > 0 {
		totalPages = (total + limit - 1) / limit
	}

	return Pagination{
		CurrentPage:  page,
		TotalPages:   totalPages,
		TotalItems:   total,
		ItemsPerPage: limit,
	}
}

func (h *Handler) internalError(w http.ResponseWriter, err error, message string) {
	sentry.CaptureException(err)
	if h.dev {
		respond.ErrorDetail(w, http.StatusInternalServerError, message, err.Error())
		return
	}
	respond.Error(w, http.StatusInternalServerError, message)
}
