package handlers

import (
	"log/slog"
	"net/http"

	"github.com/linemk/farm-market/internal/domain/models"
	"github.com/linemk/farm-market/internal/service"
)

// RegisterRequest - тело POST /api/auth/register
type RegisterRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=6"`
	Role     string `json:"role" validate:"required"`
	Phone    string `json:"phone" validate:"max=32"`
	Address  string `json:"address" validate:"max=500"`
}

// LoginRequest - тело POST /api/auth/login
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AuthResponse возвращается после регистрации и входа
type AuthResponse struct {
	ID    int64       `json:"id"`
	Name  string      `json:"name"`
	Email string      `json:"email"`
	Role  models.Role `json:"role"`
	Token string      `json:"token"`
}

// UserResponse - профиль пользователя без хэша пароля
type UserResponse struct {
	ID      int64       `json:"id"`
	Name    string      `json:"name"`
	Email   string      `json:"email"`
	Role    models.Role `json:"role"`
	Phone   string      `json:"phone"`
	Address string      `json:"address"`
	Avatar  string      `json:"avatar"`
}

func authResponse(user *models.User, token string) AuthResponse {
	return AuthResponse{ID: user.ID, Name: user.Name, Email: user.Email, Role: user.Role, Token: token}
}

// RegisterHandler обрабатывает POST /api/auth/register
func RegisterHandler(log *slog.Logger, authService service.AuthServiceInterface) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.RegisterHandler"
		logger := log.With(slog.String("op", op))

		var req RegisterRequest
		if !decodeAndValidate(logger, w, r, &req) {
			return
		}
		role, err := models.ParseRole(req.Role)
		if err != nil {
			writeError(logger, w, http.StatusBadRequest, "role must be buyer or farmer")
			return
		}

		user, token, err := authService.Register(r.Context(), service.RegisterInput{
			Name:     req.Name,
			Email:    req.Email,
			Password: req.Password,
			Role:     role,
			Phone:    req.Phone,
			Address:  req.Address,
		})
		if err != nil {
			respondError(logger, w, err)
			return
		}
		writeJSON(logger, w, http.StatusOK, authResponse(user, token))
	}
}

// LoginHandler обрабатывает POST /api/auth/login
func LoginHandler(log *slog.Logger, authService service.AuthServiceInterface) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.LoginHandler"
		logger := log.With(slog.String("op", op))

		var req LoginRequest
		if !decodeAndValidate(logger, w, r, &req) {
			return
		}

		user, token, err := authService.Login(r.Context(), req.Email, req.Password)
		if err != nil {
			respondError(logger, w, err)
			return
		}
		writeJSON(logger, w, http.StatusOK, authResponse(user, token))
	}
}

// MeHandler обрабатывает GET /api/auth/me
func MeHandler(log *slog.Logger, authService service.AuthServiceInterface) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.MeHandler"
		logger := log.With(slog.String("op", op))

		requester, ok := requesterFrom(logger, w, r)
		if !ok {
			return
		}
		user, err := authService.Me(r.Context(), requester)
		if err != nil {
			respondError(logger, w, err)
			return
		}
		writeJSON(logger, w, http.StatusOK, UserResponse{
			ID:      user.ID,
			Name:    user.Name,
			Email:   user.Email,
			Role:    user.Role,
			Phone:   user.Phone,
			Address: user.Address,
			Avatar:  user.Avatar,
		})
	}
}
