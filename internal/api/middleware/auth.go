// Package middleware provides the HTTP middleware stack of the API:
// session authentication, request logging and Prometheus metrics.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/book-expert/audiobook-service/internal/api/apierrors"
	"github.com/book-expert/audiobook-service/internal/auth"
)

// contextKey avoids collisions with other packages' context values.
type contextKey string

// ContextKeyUserID carries the authenticated user ID through the request
// context.
const ContextKeyUserID contextKey = "user_id"

const bearerPrefix = "Bearer "

// Authenticator verifies access tokens. Implemented by *auth.Manager.
type Authenticator interface {
	Verify(tokenString, wantType string) (uuid.UUID, error)
}

// RequireAuth rejects requests without a valid bearer access token and
// stores the authenticated user ID in the request context.
func RequireAuth(tokens Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, bearerPrefix) {
				apierrors.Unauthorized(w, "missing bearer token")

				return
			}

			userID, err := tokens.Verify(strings.TrimPrefix(header, bearerPrefix), auth.TokenTypeAccess)
			if err != nil {
				apierrors.Unauthorized(w, "invalid or expired token")

				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyUserID, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserID extracts the authenticated user ID from the request context. The
// second return value is false on routes that never passed RequireAuth.
func UserID(ctx context.Context) (uuid.UUID, bool) {
	userID, ok := ctx.Value(ContextKeyUserID).(uuid.UUID)

	return userID, ok
}
