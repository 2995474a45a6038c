package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/linemk/farm-market/internal/domain/models"
)

// OrderStorage описывает методы для работы с заказами и их позициями.
type OrderStorage interface {
	// CreateOrderTx вставляет заказ и его позиции в рамках транзакции; заполняет ID и CreatedAt.
	CreateOrderTx(ctx context.Context, tx *sql.Tx, order *models.Order) error
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	// GetOrderItems возвращает позиции заказа вместе с текущим именем товара и его фермером.
	GetOrderItems(ctx context.Context, orderID int64) ([]models.OrderItem, error)
	// ListOrdersByBuyer возвращает заказы покупателя, новые первыми, с позициями.
	ListOrdersByBuyer(ctx context.Context, buyerID int64) ([]*models.Order, error)
	// ListOrdersByFarmer возвращает заказы, где есть хотя бы один товар фермера, со всеми позициями.
	ListOrdersByFarmer(ctx context.Context, farmerID int64) ([]*models.Order, error)
	// UpdateStatus выставляет статус; при переходе в delivered delivered_at получает текущее время.
	UpdateStatus(ctx context.Context, id int64, status models.OrderStatus) error
	// UpdateStatusIf меняет статус только если текущий равен from. false - заказ в другом статусе.
	UpdateStatusIf(ctx context.Context, id int64, from, to models.OrderStatus) (bool, error)
}

// orderRepository - конкретная реализация OrderStorage.
type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository создаёт новый репозиторий заказов.
func NewOrderRepository(db *sql.DB) OrderStorage {
	return &orderRepository{db: db}
}

const selectOrder = `
	SELECT o.id, o.buyer_id, o.status, o.total, o.shipping_address, o.phone, o.customer_note,
	       o.created_at, o.delivered_at
	FROM orders o`

const selectOrderItem = `
	SELECT oi.id, oi.order_id, oi.product_id, p.name, p.farmer_id, oi.quantity, oi.price
	FROM order_items oi
	JOIN products p ON p.id = oi.product_id`

func scanOrder(row rowScanner) (*models.Order, error) {
	o := &models.Order{}
	var status string
	var deliveredAt sql.NullTime
	err := row.Scan(&o.ID, &o.BuyerID, &status, &o.Total, &o.ShippingAddress, &o.Phone, &o.CustomerNote,
		&o.CreatedAt, &deliveredAt)
	if err != nil {
		return nil, err
	}
	o.Status = models.OrderStatus(status)
	if deliveredAt.Valid {
		t := deliveredAt.Time
		o.DeliveredAt = &t
	}
	return o, nil
}

func scanOrderItem(row rowScanner) (models.OrderItem, error) {
	var it models.OrderItem
	err := row.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ProductName, &it.FarmerID, &it.Quantity, &it.Price)
	return it, err
}

// CreateOrderTx вставляет заказ в таблицу orders и позиции в order_items.
func (r *orderRepository) CreateOrderTx(ctx context.Context, tx *sql.Tx, order *models.Order) error {
	query := `INSERT INTO orders (buyer_id, status, total, shipping_address, phone, customer_note)
	          VALUES ($1, $2, $3, $4, $5, $6)
	          RETURNING id, created_at`
	err := tx.QueryRowContext(ctx, query,
		order.BuyerID, string(order.Status), order.Total, order.ShippingAddress, order.Phone, order.CustomerNote,
	).Scan(&order.ID, &order.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create order: %w", translateErr(err))
	}

	for i := range order.Items {
		item := &order.Items[i]
		item.OrderID = order.ID
		err := tx.QueryRowContext(ctx,
			`INSERT INTO order_items (order_id, product_id, quantity, price) VALUES ($1, $2, $3, $4) RETURNING id`,
			order.ID, item.ProductID, item.Quantity, item.Price,
		).Scan(&item.ID)
		if err != nil {
			return fmt.Errorf("failed to create order item: %w", translateErr(err))
		}
	}
	return nil
}

func (r *orderRepository) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	o, err := scanOrder(r.db.QueryRowContext(ctx, selectOrder+` WHERE o.id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return o, nil
}

func (r *orderRepository) GetOrderItems(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	rows, err := r.db.QueryContext(ctx, selectOrderItem+` WHERE oi.order_id = $1 ORDER BY oi.id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []models.OrderItem{}
	for rows.Next() {
		it, err := scanOrderItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *orderRepository) ListOrdersByBuyer(ctx context.Context, buyerID int64) ([]*models.Order, error) {
	query := selectOrder + `
	WHERE o.buyer_id = $1
	ORDER BY o.created_at DESC, o.id DESC`
	return r.listOrders(ctx, query, buyerID)
}

func (r *orderRepository) ListOrdersByFarmer(ctx context.Context, farmerID int64) ([]*models.Order, error) {
	query := selectOrder + `
	WHERE EXISTS (
		SELECT 1 FROM order_items oi
		JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id = o.id AND p.farmer_id = $1
	)
	ORDER BY o.created_at DESC, o.id DESC`
	return r.listOrders(ctx, query, farmerID)
}

// listOrders читает заказы и подгружает позиции одним запросом на все заказы.
func (r *orderRepository) listOrders(ctx context.Context, query string, args ...any) ([]*models.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := []*models.Order{}
	byID := make(map[int64]*models.Order)
	ids := []int64{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		o.Items = []models.OrderItem{}
		orders = append(orders, o)
		byID[o.ID] = o
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return orders, nil
	}

	itemRows, err := r.db.QueryContext(ctx,
		selectOrderItem+` WHERE oi.order_id = ANY($1) ORDER BY oi.order_id, oi.id`, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer itemRows.Close()

	for itemRows.Next() {
		it, err := scanOrderItem(itemRows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		if o, ok := byID[it.OrderID]; ok {
			o.Items = append(o.Items, it)
		}
	}
	if err := itemRows.Err(); err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *orderRepository) UpdateStatus(ctx context.Context, id int64, status models.OrderStatus) error {
	query := `UPDATE orders
	          SET status = $1,
	              delivered_at = CASE WHEN $1 = 'delivered' THEN NOW() ELSE delivered_at END
	          WHERE id = $2`
	res, err := r.db.ExecContext(ctx, query, string(status), id)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", translateErr(err))
	}
	return expectAffected(res, ErrOrderNotFound)
}

func (r *orderRepository) UpdateStatusIf(ctx context.Context, id int64, from, to models.OrderStatus) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE orders SET status = $1 WHERE id = $2 AND status = $3`, string(to), id, string(from))
	if err != nil {
		return false, fmt.Errorf("failed to update order status: %w", translateErr(err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}
