package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linemk/farm-market/internal/domain/models"
	"github.com/linemk/farm-market/internal/service"
)

func newCatalog(products *fakeProductRepo, cache *fakeCategoryCache) service.CatalogService {
	return service.NewCatalogService(discardLogger(), products, cache)
}

func productInput() service.ProductInput {
	return service.ProductInput{
		Name:     "Carrots",
		Price:    decimal.RequireFromString("1.75"),
		Category: "Vegetables",
		Stock:    40,
	}
}

func TestCatalog_ListActive(t *testing.T) {
	svc := newCatalog(ledgerFixture(10, 5), &fakeCategoryCache{})
	ctx := context.Background()

	all, err := svc.ListActive(ctx, models.ProductFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	veg, err := svc.ListActive(ctx, models.ProductFilter{Category: "VEGETABLES"})
	require.NoError(t, err)
	assert.Len(t, veg, 2)

	found, err := svc.ListActive(ctx, models.ProductFilter{Search: " tom "})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Tomatoes", found[0].Name)
}

func TestCatalog_ListCategories_UsesCache(t *testing.T) {
	cache := &fakeCategoryCache{}
	svc := newCatalog(ledgerFixture(10, 5), cache)
	ctx := context.Background()

	categories, err := svc.ListCategories(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Pantry", "Vegetables"}, categories)
	assert.True(t, cache.cached)

	cache.categories = []string{"from-cache"}
	categories, err = svc.ListCategories(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"from-cache"}, categories)

	// недоступный кэш не ломает чтение
	cache.getErr = errors.New("redis down")
	categories, err = svc.ListCategories(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Pantry", "Vegetables"}, categories)
}

func TestCatalog_ListFeatured(t *testing.T) {
	products := newFakeProductRepo()
	for i := int64(1); i <= 8; i++ {
		products.products[i] = &models.Product{ID: i, Name: "p", IsActive: i != 8, Rating: decimal.NewFromInt(i % 4)}
	}
	svc := newCatalog(products, &fakeCategoryCache{})

	featured, err := svc.ListFeatured(context.Background())
	require.NoError(t, err)
	require.Len(t, featured, 6)
	ids := make([]int64, 0, len(featured))
	for _, p := range featured {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []int64{3, 7, 2, 6, 1, 5}, ids)
}

func TestCatalog_Create(t *testing.T) {
	cache := &fakeCategoryCache{cached: true}
	products := newFakeProductRepo()
	svc := newCatalog(products, cache)
	ctx := context.Background()

	p, err := svc.Create(ctx, farmer1, productInput())
	require.NoError(t, err)
	assert.Equal(t, farmer1.ID, p.FarmerID)
	assert.Equal(t, "kg", p.Unit)
	assert.Equal(t, 40, p.Stock)
	assert.Equal(t, 1, cache.invalidated)

	_, err = svc.Create(ctx, buyer, productInput())
	assert.ErrorIs(t, err, service.ErrForbidden)

	// лишние нули после копеек не мешают
	in := productInput()
	in.Price = decimal.RequireFromString("1.500")
	_, err = svc.Create(ctx, farmer1, in)
	assert.NoError(t, err)
}

func TestCatalog_Create_Validation(t *testing.T) {
	cases := map[string]func(in *service.ProductInput){
		"без названия":        func(in *service.ProductInput) { in.Name = "" },
		"нулевая цена":        func(in *service.ProductInput) { in.Price = decimal.Zero },
		"слишком высокая":     func(in *service.ProductInput) { in.Price = decimal.NewFromInt(1_000_001) },
		"без категории":       func(in *service.ProductInput) { in.Category = " " },
		"отрицательный склад": func(in *service.ProductInput) { in.Stock = -1 },
		"огромный склад":      func(in *service.ProductInput) { in.Stock = 100_001 },
		"доли копейки":        func(in *service.ProductInput) { in.Price = decimal.RequireFromString("0.001") },
		"три знака":           func(in *service.ProductInput) { in.Price = decimal.RequireFromString("1.005") },
		"длинная категория":   func(in *service.ProductInput) { in.Category = strings.Repeat("к", 101) },
		"длинная единица":     func(in *service.ProductInput) { in.Unit = strings.Repeat("u", 33) },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			products := newFakeProductRepo()
			in := productInput()
			mutate(&in)
			_, err := newCatalog(products, &fakeCategoryCache{}).Create(context.Background(), farmer1, in)
			assert.ErrorIs(t, err, service.ErrValidation)
			assert.Empty(t, products.products)
		})
	}
}

func TestCatalog_Update(t *testing.T) {
	products := ledgerFixture(10, 5)
	svc := newCatalog(products, &fakeCategoryCache{})
	ctx := context.Background()

	in := productInput()
	in.Stock = 999
	require.NoError(t, svc.Update(ctx, farmer1, 1, in))
	assert.Equal(t, "Carrots", products.products[1].Name)
	// остаток через Update не меняется
	assert.Equal(t, 10, products.products[1].Stock)

	assert.ErrorIs(t, svc.Update(ctx, farmer2, 1, in), service.ErrForbidden)
	assert.ErrorIs(t, svc.Update(ctx, farmer1, 77, in), service.ErrNotFound)
	assert.ErrorIs(t, svc.Update(ctx, buyer, 1, in), service.ErrForbidden)
}

func TestCatalog_SoftDelete(t *testing.T) {
	products := ledgerFixture(10, 5)
	svc := newCatalog(products, &fakeCategoryCache{})
	ctx := context.Background()

	assert.ErrorIs(t, svc.SoftDelete(ctx, farmer2, 1), service.ErrForbidden)
	require.NoError(t, svc.SoftDelete(ctx, farmer1, 1))
	assert.False(t, products.products[1].IsActive)

	// снятый товар не виден в каталоге, но доступен по id
	active, err := svc.ListActive(ctx, models.ProductFilter{})
	require.NoError(t, err)
	for _, p := range active {
		assert.NotEqual(t, int64(1), p.ID)
	}
	p, err := svc.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.False(t, p.IsActive)

	_, err = svc.GetByID(ctx, 100)
	assert.ErrorIs(t, err, service.ErrNotFound)
}

func TestCatalog_ListMine(t *testing.T) {
	svc := newCatalog(ledgerFixture(10, 5), &fakeCategoryCache{})

	mine, err := svc.ListMine(context.Background(), farmer1)
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	_, err = svc.ListMine(context.Background(), buyer)
	assert.ErrorIs(t, err, service.ErrForbidden)
}
