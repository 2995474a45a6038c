package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/linemk/farm-market/internal/domain/models"
)

// ProductStorage описывает методы для работы с каталогом товаров.
type ProductStorage interface {
	// ListActive возвращает активные товары с фильтром по категории и подстроке названия.
	ListActive(ctx context.Context, filter models.ProductFilter) ([]*models.Product, error)
	// ListByFarmer возвращает активные товары конкретного фермера.
	ListByFarmer(ctx context.Context, farmerID int64) ([]*models.Product, error)
	ListCategories(ctx context.Context) ([]string, error)
	// ListFeatured возвращает limit активных товаров с наибольшим рейтингом.
	ListFeatured(ctx context.Context, limit int) ([]*models.Product, error)
	GetProductByID(ctx context.Context, id int64) (*models.Product, error)
	CreateProduct(ctx context.Context, product *models.Product) error
	UpdateProduct(ctx context.Context, product *models.Product) error
	DeactivateProduct(ctx context.Context, id int64) error
	// LockProductsTx блокирует строки товаров (FOR UPDATE) до конца транзакции.
	LockProductsTx(ctx context.Context, tx *sql.Tx, ids []int64) (map[int64]*models.Product, error)
	// DecrementStockTx списывает остаток; ErrStockConflict, если остатка не хватает.
	DecrementStockTx(ctx context.Context, tx *sql.Tx, id int64, quantity int) error
}

// productRepository - конкретная реализация интерфейса ProductStorage.
type productRepository struct {
	db *sql.DB
}

// NewProductRepository создаёт новый репозиторий товаров.
func NewProductRepository(db *sql.DB) ProductStorage {
	return &productRepository{db: db}
}

const selectProduct = `
	SELECT p.id, p.name, p.description, p.price, p.category, p.image, p.unit, p.stock,
	       p.rating, p.is_active, p.created_at, p.farmer_id, u.name
	FROM products p
	JOIN users u ON u.id = p.farmer_id`

func scanProduct(row rowScanner) (*models.Product, error) {
	p := &models.Product{}
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Category, &p.Image, &p.Unit, &p.Stock,
		&p.Rating, &p.IsActive, &p.CreatedAt, &p.FarmerID, &p.FarmerName)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *productRepository) queryProducts(ctx context.Context, q queryer, query string, args ...any) ([]*models.Product, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, translateErr(err)
	}
	defer rows.Close()

	var products []*models.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, translateErr(err)
	}
	return products, nil
}

// ListActive: категория сравнивается без учёта регистра, поиск - подстрока названия без учёта регистра.
// POSITION вместо ILIKE, чтобы % и _ в запросе не работали как шаблон.
func (r *productRepository) ListActive(ctx context.Context, filter models.ProductFilter) ([]*models.Product, error) {
	query := selectProduct + `
	WHERE p.is_active
	  AND ($1 = '' OR LOWER(p.category) = LOWER($1))
	  AND ($2 = '' OR POSITION(LOWER($2) IN LOWER(p.name)) > 0)
	ORDER BY p.id`
	return r.queryProducts(ctx, r.db, query, filter.Category, filter.Search)
}

func (r *productRepository) ListByFarmer(ctx context.Context, farmerID int64) ([]*models.Product, error) {
	query := selectProduct + `
	WHERE p.is_active AND p.farmer_id = $1
	ORDER BY p.id`
	return r.queryProducts(ctx, r.db, query, farmerID)
}

func (r *productRepository) ListCategories(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT category FROM products WHERE is_active ORDER BY category`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	categories := []string{}
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return categories, nil
}

// ListFeatured: при равном рейтинге порядок по id, чтобы выдача была стабильной
func (r *productRepository) ListFeatured(ctx context.Context, limit int) ([]*models.Product, error) {
	query := selectProduct + `
	WHERE p.is_active
	ORDER BY p.rating DESC, p.id
	LIMIT $1`
	return r.queryProducts(ctx, r.db, query, limit)
}

func (r *productRepository) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	p, err := scanProduct(r.db.QueryRowContext(ctx, selectProduct+` WHERE p.id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	return p, nil
}

func (r *productRepository) CreateProduct(ctx context.Context, p *models.Product) error {
	query := `INSERT INTO products (name, description, price, category, image, unit, stock, farmer_id)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	          RETURNING id, rating, is_active, created_at`
	err := r.db.QueryRowContext(ctx, query,
		p.Name, p.Description, p.Price, p.Category, p.Image, p.Unit, p.Stock, p.FarmerID,
	).Scan(&p.ID, &p.Rating, &p.IsActive, &p.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}
	return nil
}

// UpdateProduct меняет только описательные поля и цену. Остаток, рейтинг и владелец не меняются.
func (r *productRepository) UpdateProduct(ctx context.Context, p *models.Product) error {
	query := `UPDATE products
	          SET name = $1, description = $2, price = $3, category = $4, image = $5, unit = $6
	          WHERE id = $7`
	res, err := r.db.ExecContext(ctx, query, p.Name, p.Description, p.Price, p.Category, p.Image, p.Unit, p.ID)
	if err != nil {
		return fmt.Errorf("failed to update product: %w", err)
	}
	return expectAffected(res, ErrProductNotFound)
}

func (r *productRepository) DeactivateProduct(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE products SET is_active = FALSE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate product: %w", err)
	}
	return expectAffected(res, ErrProductNotFound)
}

// LockProductsTx берёт блокировки в порядке id, чтобы две корзины с одними и теми же товарами
// не взаимоблокировались. Отсутствующие id просто не попадают в результат.
func (r *productRepository) LockProductsTx(ctx context.Context, tx *sql.Tx, ids []int64) (map[int64]*models.Product, error) {
	query := selectProduct + `
	WHERE p.id = ANY($1)
	ORDER BY p.id
	FOR UPDATE OF p`
	products, err := r.queryProducts(ctx, tx, query, pq.Array(ids))
	if err != nil {
		return nil, err
	}

	byID := make(map[int64]*models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	return byID, nil
}

func (r *productRepository) DecrementStockTx(ctx context.Context, tx *sql.Tx, id int64, quantity int) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE products SET stock = stock - $1 WHERE id = $2 AND stock >= $1`, quantity, id)
	if err != nil {
		return translateErr(err)
	}
	return expectAffected(res, ErrStockConflict)
}

func expectAffected(res sql.Result, notAffected error) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return notAffected
	}
	return nil
}
