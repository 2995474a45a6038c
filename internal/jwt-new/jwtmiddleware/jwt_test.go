package jwtmiddleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/linemk/farm-market/internal/domain/models"
	security "github.com/linemk/farm-market/internal/jwt-new"
	"github.com/linemk/farm-market/internal/jwt-new/jwtmiddleware"
	"github.com/stretchr/testify/assert"
)

const secret = "testsecret"

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestJWTMiddleware_MissingAuthorization(t *testing.T) {
	handler := jwtmiddleware.NewJWTMiddleware(secret)(okHandler())

	req := httptest.NewRequest("GET", "/", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code, "Expected unauthorized status when no token provided")
	assert.True(t, strings.Contains(rr.Body.String(), "missing token"))
}

func TestJWTMiddleware_InvalidAuthorizationFormat(t *testing.T) {
	handler := jwtmiddleware.NewJWTMiddleware(secret)(okHandler())

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "InvalidFormat")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code, "Expected unauthorized status for invalid token format")
	assert.True(t, strings.Contains(rr.Body.String(), "invalid token format"))
}

func TestJWTMiddleware_InvalidToken(t *testing.T) {
	handler := jwtmiddleware.NewJWTMiddleware(secret)(okHandler())

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer invalid.token.value")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code, "Expected unauthorized status for invalid token")
	assert.True(t, strings.Contains(rr.Body.String(), "invalid token"))
}

func TestJWTMiddleware_ValidToken(t *testing.T) {
	user := &models.User{ID: 123, Email: "buyer@test.com", Name: "Ali", Role: models.RoleBuyer}
	tokenStr, err := security.NewToken(user, secret, time.Hour)
	assert.NoError(t, err)

	handler := jwtmiddleware.NewJWTMiddleware(secret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requester, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			http.Error(w, "requester not found", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(strconv.FormatInt(requester.ID, 10) + ":" + requester.Role.String()))
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+tokenStr)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code, "Expected OK status for valid token")
	assert.Equal(t, "123:buyer", rr.Body.String())
}

func TestJWTMiddleware_EmptySecretPanics(t *testing.T) {
	assert.Panics(t, func() {
		jwtmiddleware.NewJWTMiddleware("")
	})
}

func TestFromContext(t *testing.T) {
	ctx := jwtmiddleware.WithRequester(context.Background(), models.Requester{ID: 456, Role: models.RoleFarmer})
	requester, ok := jwtmiddleware.FromContext(ctx)
	assert.True(t, ok, "Expected to retrieve requester from context")
	assert.Equal(t, int64(456), requester.ID, "Expected userID to match")
	assert.Equal(t, models.RoleFarmer, requester.Role)

	_, ok = jwtmiddleware.FromContext(context.Background())
	assert.False(t, ok)
}
