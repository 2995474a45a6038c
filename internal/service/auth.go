package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	"github.com/linemk/farm-market/internal/domain/models"
	security "github.com/linemk/farm-market/internal/jwt-new"
	"github.com/linemk/farm-market/internal/lib/logger"
	"github.com/linemk/farm-market/internal/storage"
)

const (
	maxUserNameLen = 100
	maxEmailLen    = 255
	maxPhoneLen    = 32
	minPasswordLen = 6
)

type AuthServiceInterface interface {
	Register(ctx context.Context, in RegisterInput) (*models.User, string, error)
	Login(ctx context.Context, email, password string) (*models.User, string, error)
	Me(ctx context.Context, requester models.Requester) (*models.User, error)
}

// RegisterInput - данные новой учётной записи
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Role     models.Role
	Phone    string
	Address  string
}

type AuthService struct {
	log       *slog.Logger
	userRepo  storage.UserStorage
	jwtSecret string
	tokenTTL  time.Duration
}

func NewAuthService(log *slog.Logger, userRepo storage.UserStorage, jwtSecret string, tokenTTL time.Duration) *AuthService {
	return &AuthService{
		log:       log,
		userRepo:  userRepo,
		jwtSecret: jwtSecret,
		tokenTTL:  tokenTTL,
	}
}

// Register создаёт пользователя с bcrypt-хэшем пароля и сразу выдаёт токен.
func (a *AuthService) Register(ctx context.Context, in RegisterInput) (*models.User, string, error) {
	const op = "service.AuthService.Register"
	email := normalizeEmail(in.Email)
	log := a.log.With(slog.String("op", op), slog.String("email", email))

	name := strings.TrimSpace(in.Name)
	switch {
	case name == "":
		return nil, "", fmt.Errorf("%s: %w", op, invalid("name", "is required"))
	case utf8.RuneCountInString(name) > maxUserNameLen:
		return nil, "", fmt.Errorf("%s: %w", op, invalid("name", "is too long"))
	case email == "":
		return nil, "", fmt.Errorf("%s: %w", op, invalid("email", "is required"))
	case len(email) > maxEmailLen:
		return nil, "", fmt.Errorf("%s: %w", op, invalid("email", "is too long"))
	case utf8.RuneCountInString(strings.TrimSpace(in.Phone)) > maxPhoneLen:
		return nil, "", fmt.Errorf("%s: %w", op, invalid("phone", "is too long"))
	case utf8.RuneCountInString(in.Password) < minPasswordLen:
		return nil, "", fmt.Errorf("%s: %w", op, invalid("password", "must be at least 6 characters"))
	case !in.Role.Valid():
		return nil, "", fmt.Errorf("%s: %w", op, invalid("role", "must be buyer or farmer"))
	}

	passHash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Error("failed to hash password", logger.Err(err))
		return nil, "", fmt.Errorf("%s: failed to hash password: %w", op, err)
	}

	user, err := a.userRepo.CreateUser(ctx, &models.User{
		Name:     name,
		Email:    email,
		PassHash: passHash,
		Role:     in.Role,
		Phone:    strings.TrimSpace(in.Phone),
		Address:  strings.TrimSpace(in.Address),
	})
	if err != nil {
		if errors.Is(err, storage.ErrUserExists) {
			log.Info("email already registered")
			return nil, "", fmt.Errorf("%s: %w", op, ErrEmailTaken)
		}
		log.Error("failed to create user", logger.Err(err))
		return nil, "", fmt.Errorf("%s: failed to create user: %w", op, err)
	}

	token, err := security.NewToken(user, a.jwtSecret, a.tokenTTL)
	if err != nil {
		log.Error("failed to generate token", logger.Err(err))
		return nil, "", fmt.Errorf("%s: failed to generate token: %w", op, err)
	}

	log.Info("user registered", slog.Int64("userID", user.ID), slog.String("role", user.Role.String()))
	return user, token, nil
}

// Login проверяет пароль по сохранённому хэшу. Неизвестный email и неверный пароль неразличимы для клиента.
func (a *AuthService) Login(ctx context.Context, email, password string) (*models.User, string, error) {
	const op = "service.AuthService.Login"
	email = normalizeEmail(email)
	log := a.log.With(slog.String("op", op), slog.String("email", email))

	user, err := a.userRepo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			log.Info("user not found")
			return nil, "", fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
		}
		log.Error("failed to get user", logger.Err(err))
		return nil, "", fmt.Errorf("%s: failed to get user: %w", op, err)
	}

	if err := bcrypt.CompareHashAndPassword(user.PassHash, []byte(password)); err != nil {
		log.Warn("invalid password")
		return nil, "", fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	token, err := security.NewToken(user, a.jwtSecret, a.tokenTTL)
	if err != nil {
		log.Error("failed to generate token", logger.Err(err))
		return nil, "", fmt.Errorf("%s: failed to generate token: %w", op, err)
	}

	log.Info("user logged in successfully", slog.Int64("userID", user.ID))
	return user, token, nil
}

// Me возвращает профиль по идентификатору из токена.
func (a *AuthService) Me(ctx context.Context, requester models.Requester) (*models.User, error) {
	const op = "service.AuthService.Me"

	user, err := a.userRepo.GetUserByID(ctx, requester.ID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			// токен валиден, но пользователя уже нет
			return nil, fmt.Errorf("%s: %w", op, ErrUnauthenticated)
		}
		a.log.Error("failed to get user", slog.String("op", op), logger.Err(err))
		return nil, fmt.Errorf("%s: failed to get user: %w", op, err)
	}
	return user, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
