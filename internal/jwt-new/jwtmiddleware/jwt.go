package jwtmiddleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/linemk/farm-market/internal/domain/models"
	security "github.com/linemk/farm-market/internal/jwt-new"
)

type contextKey string

const RequesterKey contextKey = "requester"

// NewJWTMiddleware создаёт middleware для проверки JWT
func NewJWTMiddleware(secret string) func(http.Handler) http.Handler {
	if secret == "" {
		panic("JWT_SECRET is not set")
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Извлекаем токен из заголовка Authorization (формат: "Bearer <token>")
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeUnauthorized(w, "missing token")
				return
			}
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				writeUnauthorized(w, "invalid token format")
				return
			}

			requester, err := security.ParseToken(parts[1], secret)
			if err != nil {
				writeUnauthorized(w, "invalid token")
				return
			}

			// Кладём автора запроса в контекст
			next.ServeHTTP(w, r.WithContext(WithRequester(r.Context(), requester)))
		})
	}
}

// WithRequester кладёт автора запроса в контекст
func WithRequester(ctx context.Context, requester models.Requester) context.Context {
	return context.WithValue(ctx, RequesterKey, requester)
}

// FromContext извлекает автора запроса из контекста.
func FromContext(ctx context.Context) (models.Requester, bool) {
	requester, ok := ctx.Value(RequesterKey).(models.Requester)
	return requester, ok
}

func writeUnauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"message":"` + msg + `"}`))
}
