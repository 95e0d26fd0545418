package maintenance

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"expense-tracker/internal/observability"
)

type fakeCleaner struct {
	deleted      int64
	err          error
	gotRetention time.Duration
	gotBatchSize int
	invoked      bool
}

func (c *fakeCleaner) DeleteStaleRefreshTokens(_ context.Context, retention time.Duration, batchSize int) (int64, error) {
	c.invoked = true
	c.gotRetention = retention
	c.gotBatchSize = batchSize
	return c.deleted, c.err
}

func newTestHandler(cleaner *fakeCleaner, secret string) *CleanupHandler {
	logger := observability.NewLoggerTo(&bytes.Buffer{})
	return NewCleanupHandler(cleaner, logger, secret, 14*24*time.Hour, 500)
}

func TestCleanupWithoutSecretConfigured(t *testing.T) {
	cleaner := &fakeCleaner{}
	handler := newTestHandler(cleaner, "")

	req := httptest.NewRequest(http.MethodPost, "/internal/maintenance/cleanup", nil)
	req.Header.Set("Authorization", "Bearer anything")
	rec := httptest.NewRecorder()
	handler.Handle(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	require.False(t, cleaner.invoked)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "Route not found - /internal/maintenance/cleanup", body["message"])
}

func TestCleanupRejectsBadSecret(t *testing.T) {
	cleaner := &fakeCleaner{}
	handler := newTestHandler(cleaner, "s3cret")

	for name, header := range map[string]string{
		"missing header": "",
		"wrong secret":   "Bearer nope",
		"not bearer":     "Basic s3cret",
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/internal/maintenance/cleanup", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			rec := httptest.NewRecorder()
			handler.Handle(rec, req)

			require.Equal(t, http.StatusUnauthorized, rec.Code)
			require.False(t, cleaner.invoked)
		})
	}
}

func TestCleanupRuns(t *testing.T) {
	cleaner := &fakeCleaner{deleted: 42}
	handler := newTestHandler(cleaner, "s3cret")

	req := httptest.NewRequest(http.MethodPost, "/internal/maintenance/cleanup", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	rec := httptest.NewRecorder()
	handler.Handle(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, cleaner.invoked)
	require.Equal(t, 14*24*time.Hour, cleaner.gotRetention)
	require.Equal(t, 500, cleaner.gotBatchSize)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "Cleanup completed", body["message"])
	require.Equal(t, 42.0, body["data"].(map[string]any)["deletedRefreshTokens"])
}

func TestCleanupReportsFailure(t *testing.T) {
	cleaner := &fakeCleaner{err: errors.New("connection reset")}
	handler := newTestHandler(cleaner, "s3cret")

	req := httptest.NewRequest(http.MethodPost, "/internal/maintenance/cleanup", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	rec := httptest.NewRecorder()
	handler.Handle(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "Cleanup failed", body["message"])
}
