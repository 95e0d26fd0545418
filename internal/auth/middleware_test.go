package auth

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeUserSource struct {
	users map[string]User
}

func (s *fakeUserSource) GetUserByID(_ context.Context, id string) (User, error) {
	user, ok := s.users[id]
	if !ok {
		return User{}, sql.ErrNoRows
	}
	return user, nil
}

func protectedEcho(t *testing.T) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFromContext(r.Context())
		require.True(t, ok)
		require.Empty(t, user.PasswordHash)
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"id": user.ID, "email": user.Email})
	})
}

func TestMiddlewareAllowsValidToken(t *testing.T) {
	tokens := newTestTokenManager()
	users := &fakeUserSource{users: map[string]User{
		"user-1": {ID: "user-1", Email: "a@x.com", PasswordHash: "hash", FullName: "A"},
	}}

	access, err := tokens.IssueAccess("user-1")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/profile", nil)
	req.Header.Set("Authorization", "Bearer "+access)
	rec := httptest.NewRecorder()

	Middleware(tokens, users)(protectedEcho(t)).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "user-1", body["id"])
	require.Equal(t, "a@x.com", body["email"])
}

func TestMiddlewareRejects(t *testing.T) {
	tokens := newTestTokenManager()
	users := &fakeUserSource{users: map[string]User{
		"user-1": {ID: "user-1", Email: "a@x.com"},
	}}

	deleted, err := tokens.IssueAccess("user-gone")
	require.NoError(t, err)

	refresh, err := tokens.IssueRefresh("user-1")
	require.NoError(t, err)

	expired, err := tokens.issue("user-1", tokens.accessSecret, -time.Minute)
	require.NoError(t, err)

	cases := []struct {
		name    string
		header  string
		message string
	}{
		{"missing header", "", "Access token is required"},
		{"not bearer", "Basic abc", "Access token is required"},
		{"empty token", "Bearer ", "Access token is required"},
		{"garbage token", "Bearer not.a.jwt", "Invalid token"},
		{"refresh token used as access", "Bearer " + refresh, "Invalid token"},
		{"expired token", "Bearer " + expired, "Token expired"},
		{"user deleted", "Bearer " + deleted, "Invalid token or user not found"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/auth/profile", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()

			Middleware(tokens, users)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatal("handler must not be reached")
			})).ServeHTTP(rec, req)

			require.Equal(t, http.StatusUnauthorized, rec.Code)

			var body map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			require.Equal(t, false, body["success"])
			require.Equal(t, tc.message, body["message"])
		})
	}
}
