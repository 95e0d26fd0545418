package maintenance

import (
	"context"
	"net/http"
	"strings"
	"time"

	"expense-tracker/internal/observability"
	"expense-tracker/internal/respond"
)

// TokenCleaner is the slice of the auth repository the cleanup job needs.
type TokenCleaner interface {
	DeleteStaleRefreshTokens(ctx context.Context, retention time.Duration, batchSize int) (int64, error)
}

// CleanupHandler removes long-expired refresh token rows. It is meant to be
// hit by an external cron (Vercel cron or similar) holding the shared secret;
// without a configured secret the route pretends not to exist.
type CleanupHandler struct {
	cleaner    TokenCleaner
	logger     *observability.Logger
	cronSecret string
	retention  time.Duration
	batchSize  int
}

func NewCleanupHandler(cleaner TokenCleaner, logger *observability.Logger, cronSecret string, retention time.Duration, batchSize int) *CleanupHandler {
	return &CleanupHandler{
		cleaner:    cleaner,
		logger:     logger,
		cronSecret: strings.TrimSpace(cronSecret),
		retention:  retention,
		batchSize:  batchSize,
	}
}

func (h *CleanupHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if h.cronSecret == "" {
		respond.Error(w, http.StatusNotFound, "Route not found - "+r.URL.Path)
		return
	}

	header := strings.TrimSpace(r.Header.Get("Authorization"))
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) != h.cronSecret {
		respond.Error(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	deleted, err := h.cleaner.DeleteStaleRefreshTokens(r.Context(), h.retention, h.batchSize)
	if err != nil {
		h.logger.Error("refresh_token_cleanup_failed", map[string]any{"error": err.Error()})
		respond.Error(w, http.StatusInternalServerError, "Cleanup failed")
		return
	}

	h.logger.Info("refresh_token_cleanup_completed", map[string]any{
		"deleted_refresh_tokens": deleted,
	})

	respond.Success(w, http.StatusOK, "Cleanup completed", map[string]any{
		"deletedRefreshTokens": deleted,
	})
}
