//go:build integration

package service_test

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/linemk/farm-market/internal/domain/models"
	"github.com/linemk/farm-market/internal/service"
	"github.com/linemk/farm-market/internal/storage"
)

func setupPostgres(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("farm_market"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	m, err := migrate.New("file://../../migrations", dsn)
	require.NoError(t, err)
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		t.Fatalf("migrate up: %v", err)
	}
	m.Close()

	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.PingContext(ctx))
	return db
}

func createUser(t *testing.T, repo storage.UserStorage, email string, role models.Role) models.Requester {
	t.Helper()
	u, err := repo.CreateUser(context.Background(), &models.User{
		Name: email, Email: email, PassHash: []byte("x"), Role: role,
	})
	require.NoError(t, err)
	return models.Requester{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}
}

func createProduct(t *testing.T, repo storage.ProductStorage, farmerID int64, name string, stock int) *models.Product {
	t.Helper()
	p := &models.Product{
		Name: name, Price: price("3.00"), Category: "Vegetables", Unit: "kg", Stock: stock, FarmerID: farmerID,
	}
	require.NoError(t, repo.CreateProduct(context.Background(), p))
	return p
}

func TestLedger_Postgres(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test")
	}
	db := setupPostgres(t)
	ctx := context.Background()

	users := storage.NewUserRepository(db)
	products := storage.NewProductRepository(db)
	orders := storage.NewOrderRepository(db)
	svc := service.NewOrderService(discardLogger(), db, products, orders)

	f1 := createUser(t, users, "f1@example.com", models.RoleFarmer)
	f2 := createUser(t, users, "f2@example.com", models.RoleFarmer)
	b1 := createUser(t, users, "b1@example.com", models.RoleBuyer)
	b2 := createUser(t, users, "b2@example.com", models.RoleBuyer)

	t.Run("split and rollback", func(t *testing.T) {
		a := createProduct(t, products, f1.ID, "Tomatoes", 10)
		b := createProduct(t, products, f2.ID, "Honey", 2)

		_, err := svc.CreateOrder(ctx, b1, placeOrder(
			models.CartLine{ProductID: a.ID, Quantity: 3},
			models.CartLine{ProductID: b.ID, Quantity: 5},
		))
		var stockErr *service.InsufficientStockError
		require.ErrorAs(t, err, &stockErr)

		got, err := products.GetProductByID(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, 10, got.Stock)

		placed, err := svc.CreateOrder(ctx, b1, placeOrder(
			models.CartLine{ProductID: a.ID, Quantity: 3},
			models.CartLine{ProductID: b.ID, Quantity: 2},
		))
		require.NoError(t, err)
		require.Len(t, placed, 2)

		got, err = products.GetProductByID(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, 7, got.Stock)

		received, err := svc.ListReceivedOrders(ctx, f2)
		require.NoError(t, err)
		require.Len(t, received, 1)
		assert.Equal(t, b.ID, received[0].Items[0].ProductID)
	})

	t.Run("concurrent carts never oversell", func(t *testing.T) {
		p := createProduct(t, products, f1.ID, "Cucumbers", 5)

		var wg sync.WaitGroup
		errs := make([]error, 2)
		for i, who := range []models.Requester{b1, b2} {
			wg.Add(1)
			go func(i int, who models.Requester) {
				defer wg.Done()
				_, errs[i] = svc.CreateOrder(ctx, who, placeOrder(models.CartLine{ProductID: p.ID, Quantity: 4}))
			}(i, who)
		}
		wg.Wait()

		succeeded := 0
		for _, err := range errs {
			if err == nil {
				succeeded++
				continue
			}
			var stockErr *service.InsufficientStockError
			assert.True(t, errors.As(err, &stockErr) || errors.Is(err, service.ErrUnavailable), "unexpected error: %v", err)
		}
		assert.Equal(t, 1, succeeded)

		got, err := products.GetProductByID(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, got.Stock)
	})
}
