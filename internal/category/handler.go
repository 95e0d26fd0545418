package category

import (
	"net/http"

	"expense-tracker/internal/respond"
)

func List(w http.ResponseWriter, r *http.Request) {
	respond.Success(w, http.StatusOK, "Categories fetched successfully", map[string]any{
		"categories": All,
	})
}
