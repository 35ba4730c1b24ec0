package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/shasan419/qkart/internal/auth"
	"github.com/shasan419/qkart/internal/domain"
)

type contextKey string

const (
	userContextKey      contextKey = "user"
	requestIDContextKey contextKey = "request_id"
)

// UserLoader resolves an authenticated email to the full account.
type UserLoader interface {
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
}

// AuthMiddleware verifies the Bearer token and loads the account into the
// request context. Every failure is the same 401 the original client
// expects.
func AuthMiddleware(tokens *auth.TokenManager, users UserLoader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				respondError(w, http.StatusUnauthorized, "unauthenticated", "Please authenticate")
				return
			}

			email, err := tokens.Verify(token)
			if err != nil {
				respondError(w, http.StatusUnauthorized, "unauthenticated", "Please authenticate")
				return
			}

			user, err := users.GetUserByEmail(r.Context(), email)
			if err != nil {
				respondError(w, http.StatusUnauthorized, "unauthenticated", "Please authenticate")
				return
			}

			ctx := context.WithValue(r.Context(), userContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestIDMiddleware adds a unique request ID to each request
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}

		ctx := context.WithValue(r.Context(), requestIDContextKey, requestID)
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func userFromContext(ctx context.Context) *domain.User {
	if user, ok := ctx.Value(userContextKey).(*domain.User); ok {
		return user
	}
	return nil
}
