package handlers

import (
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/linemk/farm-market/internal/domain/models"
	"github.com/linemk/farm-market/internal/service"
)

// ProductRequest - тело создания и изменения товара. Stock учитывается только при создании.
type ProductRequest struct {
	Name        string          `json:"name" validate:"required,max=200"`
	Description string          `json:"description" validate:"max=1000"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category" validate:"required,max=100"`
	Image       string          `json:"image" validate:"max=500"`
	Unit        string          `json:"unit" validate:"max=20"`
	Stock       int             `json:"stock" validate:"min=0,max=100000"`
}

// ProductResponse - товар в каталоге
type ProductResponse struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category"`
	Image       string          `json:"image"`
	Unit        string          `json:"unit"`
	Stock       int             `json:"stock"`
	Rating      decimal.Decimal `json:"rating"`
	FarmerName  string          `json:"farmerName"`
	FarmerID    int64           `json:"farmerId"`
}

func productResponse(p *models.Product) ProductResponse {
	return ProductResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		Category:    p.Category,
		Image:       p.Image,
		Unit:        p.Unit,
		Stock:       p.Stock,
		Rating:      p.Rating,
		FarmerName:  p.FarmerName,
		FarmerID:    p.FarmerID,
	}
}

func productList(products []*models.Product) []ProductResponse {
	out := make([]ProductResponse, 0, len(products))
	for _, p := range products {
		out = append(out, productResponse(p))
	}
	return out
}

func (req ProductRequest) input() service.ProductInput {
	return service.ProductInput{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Category:    req.Category,
		Image:       req.Image,
		Unit:        req.Unit,
		Stock:       req.Stock,
	}
}

// ListProductsHandler обрабатывает GET /api/products?category=&search=
func ListProductsHandler(log *slog.Logger, catalog service.CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(slog.String("op", "handlers.ListProductsHandler"))

		q := r.URL.Query()
		products, err := catalog.ListActive(r.Context(), models.ProductFilter{
			Category: q.Get("category"),
			Search:   q.Get("search"),
		})
		if err != nil {
			respondError(logger, w, err)
			return
		}
		writeJSON(logger, w, http.StatusOK, productList(products))
	}
}

// GetProductHandler обрабатывает GET /api/products/{id}
func GetProductHandler(log *slog.Logger, catalog service.CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(slog.String("op", "handlers.GetProductHandler"))

		id, ok := pathID(logger, w, r, "id")
		if !ok {
			return
		}
		p, err := catalog.GetByID(r.Context(), id)
		if err != nil {
			respondError(logger, w, err)
			return
		}
		writeJSON(logger, w, http.StatusOK, productResponse(p))
	}
}

// CategoriesHandler обрабатывает GET /api/products/categories
func CategoriesHandler(log *slog.Logger, catalog service.CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(slog.String("op", "handlers.CategoriesHandler"))

		categories, err := catalog.ListCategories(r.Context())
		if err != nil {
			respondError(logger, w, err)
			return
		}
		writeJSON(logger, w, http.StatusOK, categories)
	}
}

// FeaturedHandler обрабатывает GET /api/products/featured
func FeaturedHandler(log *slog.Logger, catalog service.CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(slog.String("op", "handlers.FeaturedHandler"))

		products, err := catalog.ListFeatured(r.Context())
		if err != nil {
			respondError(logger, w, err)
			return
		}
		writeJSON(logger, w, http.StatusOK, productList(products))
	}
}

// MyProductsHandler обрабатывает GET /api/products/mine
func MyProductsHandler(log *slog.Logger, catalog service.CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(slog.String("op", "handlers.MyProductsHandler"))

		requester, ok := requesterFrom(logger, w, r)
		if !ok {
			return
		}
		products, err := catalog.ListMine(r.Context(), requester)
		if err != nil {
			respondError(logger, w, err)
			return
		}
		writeJSON(logger, w, http.StatusOK, productList(products))
	}
}

// CreateProductHandler обрабатывает POST /api/products
func CreateProductHandler(log *slog.Logger, catalog service.CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(slog.String("op", "handlers.CreateProductHandler"))

		requester, ok := requesterFrom(logger, w, r)
		if !ok {
			return
		}
		var req ProductRequest
		if !decodeAndValidate(logger, w, r, &req) {
			return
		}
		p, err := catalog.Create(r.Context(), requester, req.input())
		if err != nil {
			respondError(logger, w, err)
			return
		}
		writeJSON(logger, w, http.StatusCreated, productResponse(p))
	}
}

// UpdateProductHandler обрабатывает PUT /api/products/{id}
func UpdateProductHandler(log *slog.Logger, catalog service.CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(slog.String("op", "handlers.UpdateProductHandler"))

		requester, ok := requesterFrom(logger, w, r)
		if !ok {
			return
		}
		id, ok := pathID(logger, w, r, "id")
		if !ok {
			return
		}
		var req ProductRequest
		if !decodeAndValidate(logger, w, r, &req) {
			return
		}
		if err := catalog.Update(r.Context(), requester, id, req.input()); err != nil {
			respondError(logger, w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// DeleteProductHandler обрабатывает DELETE /api/products/{id}: товар снимается с продажи
func DeleteProductHandler(log *slog.Logger, catalog service.CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(slog.String("op", "handlers.DeleteProductHandler"))

		requester, ok := requesterFrom(logger, w, r)
		if !ok {
			return
		}
		id, ok := pathID(logger, w, r, "id")
		if !ok {
			return
		}
		if err := catalog.SoftDelete(r.Context(), requester, id); err != nil {
			respondError(logger, w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
