package auth

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"

	"github.com/getsentry/sentry-go"

	"expense-tracker/internal/respond"
)

type contextKey struct{}

var userContextKey contextKey

// UserFromContext returns the authenticated user attached by Middleware.
func UserFromContext(ctx context.Context) (User, bool) {
	user, ok := ctx.Value(userContextKey).(User)
	return user, ok
}

// ContextWithUser attaches an authenticated user to the context. Middleware
// uses it; handler tests use it to stand in for the middleware.
func ContextWithUser(ctx context.Context, user User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// UserSource resolves a token's user id claim to a live user record.
type UserSource interface {
	GetUserByID(ctx context.Context, id string) (User, error)
}

// Middleware gates protected routes: it verifies the bearer access token,
// re-fetches the user from storage rather than trusting the claim alone, and
// attaches the user (without password hash) to the request context.
func Middleware(tokens *TokenManager, users UserSource) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := strings.TrimSpace(r.Header.Get("Authorization"))
			if header == "" {
				respond.Error(w, http.StatusUnauthorized, "Access token is required")
				return
			}

			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
				respond.Error(w, http.StatusUnauthorized, "Access token is required")
				return
			}

			userID, err := tokens.VerifyAccess(strings.TrimSpace(parts[1]))
			if err != nil {
				if errors.Is(err, ErrTokenExpired) {
					respond.Error(w, http.StatusUnauthorized, "Token expired")
					return
				}
				respond.Error(w, http.StatusUnauthorized, "Invalid token")
				return
			}

			user, err := users.GetUserByID(r.Context(), userID)
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					respond.Error(w, http.StatusUnauthorized, "Invalid token or user not found")
					return
				}
				sentry.CaptureException(err)
				respond.Error(w, http.StatusInternalServerError, "Authentication failed")
				return
			}

			user.PasswordHash = ""
			next.ServeHTTP(w, r.WithContext(ContextWithUser(r.Context(), user)))
		})
	}
}
