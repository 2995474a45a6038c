package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/linemk/farm-market/internal/domain/models"
	"github.com/linemk/farm-market/internal/lib/logger"
	"github.com/linemk/farm-market/internal/lib/metrics"
	"github.com/linemk/farm-market/internal/storage"
)

const (
	featuredLimit         = 6
	maxProductNameLen     = 200
	maxProductDescLen     = 1000
	maxCategoryLen        = 100
	maxUnitLen            = 32
	maxProductStock       = 100_000
	defaultProductUnit    = "kg"
	categoriesCacheMetric = "categories"
)

var maxProductPrice = decimal.NewFromInt(1_000_000)

// CategoryCache - кэш списка категорий. Ошибки кэша не ломают чтение каталога.
type CategoryCache interface {
	Get(ctx context.Context) ([]string, bool, error)
	Set(ctx context.Context, categories []string) error
	Invalidate(ctx context.Context) error
}

type CatalogService interface {
	ListActive(ctx context.Context, filter models.ProductFilter) ([]*models.Product, error)
	ListMine(ctx context.Context, requester models.Requester) ([]*models.Product, error)
	GetByID(ctx context.Context, id int64) (*models.Product, error)
	ListCategories(ctx context.Context) ([]string, error)
	ListFeatured(ctx context.Context) ([]*models.Product, error)
	Create(ctx context.Context, requester models.Requester, in ProductInput) (*models.Product, error)
	Update(ctx context.Context, requester models.Requester, id int64, in ProductInput) error
	SoftDelete(ctx context.Context, requester models.Requester, id int64) error
}

// ProductInput - поля товара, которые задаёт фермер. Stock учитывается только при создании.
type ProductInput struct {
	Name        string
	Description string
	Price       decimal.Decimal
	Category    string
	Image       string
	Unit        string
	Stock       int
}

type catalogService struct {
	log         *slog.Logger
	productRepo storage.ProductStorage
	categories  CategoryCache
}

func NewCatalogService(log *slog.Logger, productRepo storage.ProductStorage, categories CategoryCache) CatalogService {
	return &catalogService{
		log:         log,
		productRepo: productRepo,
		categories:  categories,
	}
}

func (s *catalogService) ListActive(ctx context.Context, filter models.ProductFilter) ([]*models.Product, error) {
	const op = "service.CatalogService.ListActive"

	filter.Category = strings.TrimSpace(filter.Category)
	filter.Search = strings.TrimSpace(filter.Search)
	products, err := s.productRepo.ListActive(ctx, filter)
	if err != nil {
		s.log.Error("failed to list products", slog.String("op", op), logger.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return products, nil
}

func (s *catalogService) ListMine(ctx context.Context, requester models.Requester) ([]*models.Product, error) {
	const op = "service.CatalogService.ListMine"

	if requester.Role != models.RoleFarmer {
		return nil, fmt.Errorf("%s: %w", op, ErrForbidden)
	}
	products, err := s.productRepo.ListByFarmer(ctx, requester.ID)
	if err != nil {
		s.log.Error("failed to list farmer products", slog.String("op", op), logger.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return products, nil
}

// GetByID возвращает товар и после снятия с продажи: на него ссылаются старые заказы.
func (s *catalogService) GetByID(ctx context.Context, id int64) (*models.Product, error) {
	const op = "service.CatalogService.GetByID"

	p, err := s.productRepo.GetProductByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrProductNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		s.log.Error("failed to get product", slog.String("op", op), logger.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

func (s *catalogService) ListCategories(ctx context.Context) ([]string, error) {
	const op = "service.CatalogService.ListCategories"
	log := s.log.With(slog.String("op", op))

	if cached, ok, err := s.categories.Get(ctx); err != nil {
		log.Warn("category cache unavailable", logger.Err(err))
	} else if ok {
		metrics.CacheHits.WithLabelValues(categoriesCacheMetric).Inc()
		return cached, nil
	}
	metrics.CacheMisses.WithLabelValues(categoriesCacheMetric).Inc()

	categories, err := s.productRepo.ListCategories(ctx)
	if err != nil {
		log.Error("failed to list categories", logger.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := s.categories.Set(ctx, categories); err != nil {
		log.Warn("failed to cache categories", logger.Err(err))
	}
	return categories, nil
}

func (s *catalogService) ListFeatured(ctx context.Context) ([]*models.Product, error) {
	const op = "service.CatalogService.ListFeatured"

	products, err := s.productRepo.ListFeatured(ctx, featuredLimit)
	if err != nil {
		s.log.Error("failed to list featured products", slog.String("op", op), logger.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return products, nil
}

func (s *catalogService) Create(ctx context.Context, requester models.Requester, in ProductInput) (*models.Product, error) {
	const op = "service.CatalogService.Create"
	log := s.log.With(slog.String("op", op), slog.Int64("farmerID", requester.ID))

	if requester.Role != models.RoleFarmer {
		return nil, fmt.Errorf("%s: %w", op, ErrForbidden)
	}
	in = in.normalized()
	if err := in.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if in.Stock < 0 || in.Stock > maxProductStock {
		return nil, fmt.Errorf("%s: %w", op, invalid("stock", "must be between 0 and 100000"))
	}

	p := &models.Product{
		Name:        in.Name,
		Description: in.Description,
		Price:       in.Price,
		Category:    in.Category,
		Image:       in.Image,
		Unit:        in.Unit,
		Stock:       in.Stock,
		FarmerID:    requester.ID,
		FarmerName:  requester.Name,
	}
	if err := s.productRepo.CreateProduct(ctx, p); err != nil {
		log.Error("failed to create product", logger.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.invalidateCategories(ctx, log)

	log.Info("product created", slog.Int64("productID", p.ID))
	return p, nil
}

// Update меняет описание и цену. Остаток и рейтинг через Update не меняются.
func (s *catalogService) Update(ctx context.Context, requester models.Requester, id int64, in ProductInput) error {
	const op = "service.CatalogService.Update"
	log := s.log.With(slog.String("op", op), slog.Int64("productID", id))

	p, err := s.ownedProduct(ctx, requester, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	in = in.normalized()
	if err := in.validate(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	p.Name = in.Name
	p.Description = in.Description
	p.Price = in.Price
	p.Category = in.Category
	p.Image = in.Image
	p.Unit = in.Unit
	if err := s.productRepo.UpdateProduct(ctx, p); err != nil {
		if errors.Is(err, storage.ErrProductNotFound) {
			return fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		log.Error("failed to update product", logger.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	s.invalidateCategories(ctx, log)

	log.Info("product updated")
	return nil
}

// SoftDelete снимает товар с продажи. Строка остаётся: на неё ссылаются позиции заказов.
func (s *catalogService) SoftDelete(ctx context.Context, requester models.Requester, id int64) error {
	const op = "service.CatalogService.SoftDelete"
	log := s.log.With(slog.String("op", op), slog.Int64("productID", id))

	if _, err := s.ownedProduct(ctx, requester, id); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.productRepo.DeactivateProduct(ctx, id); err != nil {
		if errors.Is(err, storage.ErrProductNotFound) {
			return fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		log.Error("failed to deactivate product", logger.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	s.invalidateCategories(ctx, log)

	log.Info("product deactivated")
	return nil
}

// ownedProduct: сначала NotFound, потом Forbidden для чужого товара
func (s *catalogService) ownedProduct(ctx context.Context, requester models.Requester, id int64) (*models.Product, error) {
	if requester.Role != models.RoleFarmer {
		return nil, ErrForbidden
	}
	p, err := s.productRepo.GetProductByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrProductNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if p.FarmerID != requester.ID {
		return nil, ErrForbidden
	}
	return p, nil
}

func (s *catalogService) invalidateCategories(ctx context.Context, log *slog.Logger) {
	if err := s.categories.Invalidate(ctx); err != nil {
		log.Warn("failed to invalidate category cache", logger.Err(err))
	}
}

func (in ProductInput) normalized() ProductInput {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	in.Category = strings.TrimSpace(in.Category)
	in.Image = strings.TrimSpace(in.Image)
	in.Unit = strings.TrimSpace(in.Unit)
	if in.Unit == "" {
		in.Unit = defaultProductUnit
	}
	return in
}

func (in ProductInput) validate() error {
	switch {
	case in.Name == "":
		return invalid("name", "is required")
	case utf8.RuneCountInString(in.Name) > maxProductNameLen:
		return invalid("name", "is too long")
	case utf8.RuneCountInString(in.Description) > maxProductDescLen:
		return invalid("description", "is too long")
	case !in.Price.IsPositive() || in.Price.GreaterThan(maxProductPrice):
		return invalid("price", "must be greater than 0 and at most 1000000")
	case !in.Price.Equal(in.Price.Round(2)):
		// в БД цена хранится с копейками; 1.005 молча стало бы 1.01
		return invalid("price", "must have at most 2 decimal places")
	case in.Category == "":
		return invalid("category", "is required")
	case utf8.RuneCountInString(in.Category) > maxCategoryLen:
		return invalid("category", "is too long")
	case utf8.RuneCountInString(in.Unit) > maxUnitLen:
		return invalid("unit", "is too long")
	}
	return nil
}
