package service_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/linemk/farm-market/internal/domain/models"
	security "github.com/linemk/farm-market/internal/jwt-new"
	"github.com/linemk/farm-market/internal/service"
)

const testSecret = "testsecret"

func newAuth(repo *fakeUserRepo) *service.AuthService {
	return service.NewAuthService(discardLogger(), repo, testSecret, time.Hour)
}

func TestAuthService_Register(t *testing.T) {
	repo := newFakeUserRepo()
	authSvc := newAuth(repo)
	ctx := context.Background()

	user, token, err := authSvc.Register(ctx, service.RegisterInput{
		Name:     " Анна ",
		Email:    "Anna@Example.com",
		Password: "secret1",
		Role:     models.RoleFarmer,
		Phone:    "+7900",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, "Анна", user.Name)
	assert.Equal(t, "anna@example.com", user.Email)
	// пароль хранится только хэшем
	assert.NotEqual(t, "secret1", string(user.PassHash))
	assert.NoError(t, bcrypt.CompareHashAndPassword(user.PassHash, []byte("secret1")))

	requester, err := security.ParseToken(token, testSecret)
	require.NoError(t, err)
	assert.Equal(t, user.ID, requester.ID)
	assert.Equal(t, models.RoleFarmer, requester.Role)
}

func TestAuthService_Register_EmailTaken(t *testing.T) {
	repo := newFakeUserRepo()
	authSvc := newAuth(repo)
	ctx := context.Background()

	in := service.RegisterInput{Name: "Иван", Email: "ivan@example.com", Password: "secret1", Role: models.RoleBuyer}
	_, _, err := authSvc.Register(ctx, in)
	require.NoError(t, err)

	in.Email = "IVAN@example.com"
	_, _, err = authSvc.Register(ctx, in)
	assert.ErrorIs(t, err, service.ErrEmailTaken)
}

func TestAuthService_Register_Validation(t *testing.T) {
	valid := service.RegisterInput{Name: "Иван", Email: "ivan@example.com", Password: "secret1", Role: models.RoleBuyer}
	long := make([]rune, 101)
	for i := range long {
		long[i] = 'я'
	}

	cases := map[string]func(in *service.RegisterInput){
		"пустое имя":       func(in *service.RegisterInput) { in.Name = "  " },
		"длинное имя":      func(in *service.RegisterInput) { in.Name = string(long) },
		"пустой email":     func(in *service.RegisterInput) { in.Email = "" },
		"короткий пароль":  func(in *service.RegisterInput) { in.Password = "12345" },
		"неизвестная роль": func(in *service.RegisterInput) { in.Role = 0 },
		"длинный email":    func(in *service.RegisterInput) { in.Email = strings.Repeat("a", 244) + "@example.com" },
		"длинный телефон":  func(in *service.RegisterInput) { in.Phone = strings.Repeat("7", 33) },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			repo := newFakeUserRepo()
			in := valid
			mutate(&in)
			_, _, err := newAuth(repo).Register(context.Background(), in)
			assert.ErrorIs(t, err, service.ErrValidation)
			assert.Empty(t, repo.users)
		})
	}
}

func TestAuthService_Login(t *testing.T) {
	repo := newFakeUserRepo()
	authSvc := newAuth(repo)
	ctx := context.Background()

	hashed, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	require.NoError(t, err)
	_, err = repo.CreateUser(ctx, &models.User{Name: "Иван", Email: "existing@example.com", PassHash: hashed, Role: models.RoleBuyer})
	require.NoError(t, err)

	user, token, err := authSvc.Login(ctx, " Existing@example.com", "password123")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, models.RoleBuyer, user.Role)

	_, token, err = authSvc.Login(ctx, "existing@example.com", "wrongpassword")
	assert.ErrorIs(t, err, service.ErrInvalidCredentials)
	assert.Empty(t, token)

	_, _, err = authSvc.Login(ctx, "nobody@example.com", "password123")
	assert.ErrorIs(t, err, service.ErrInvalidCredentials)
}

func TestAuthService_Me(t *testing.T) {
	repo := newFakeUserRepo()
	authSvc := newAuth(repo)
	ctx := context.Background()

	user, _, err := authSvc.Register(ctx, service.RegisterInput{
		Name: "Иван", Email: "ivan@example.com", Password: "secret1", Role: models.RoleBuyer, Address: "Тула",
	})
	require.NoError(t, err)

	me, err := authSvc.Me(ctx, models.Requester{ID: user.ID, Role: models.RoleBuyer})
	require.NoError(t, err)
	assert.Equal(t, "Тула", me.Address)

	_, err = authSvc.Me(ctx, models.Requester{ID: 999, Role: models.RoleBuyer})
	assert.ErrorIs(t, err, service.ErrUnauthenticated)
}
