package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/linemk/farm-market/internal/domain/access"
	"github.com/linemk/farm-market/internal/domain/models"
	"github.com/linemk/farm-market/internal/lib/logger"
	"github.com/linemk/farm-market/internal/lib/metrics"
	"github.com/linemk/farm-market/internal/storage"
)

const (
	maxCartLines    = 100
	maxCartQuantity = maxProductStock
)

type OrderService interface {
	// CreateOrder оформляет корзину: по одному заказу на каждого фермера, всё в одной транзакции.
	CreateOrder(ctx context.Context, requester models.Requester, in models.PlaceOrder) ([]*models.Order, error)
	ListMyOrders(ctx context.Context, requester models.Requester) ([]*models.Order, error)
	GetOrder(ctx context.Context, id int64, requester models.Requester) (*models.Order, error)
	// ListReceivedOrders возвращает заказы с товарами фермера; в каждом только его позиции.
	ListReceivedOrders(ctx context.Context, requester models.Requester) ([]*models.Order, error)
	Accept(ctx context.Context, id int64, requester models.Requester) error
	Reject(ctx context.Context, id int64, requester models.Requester) error
	UpdateStatus(ctx context.Context, id int64, requester models.Requester, status string) error
	Cancel(ctx context.Context, id int64, requester models.Requester) error
}

type orderService struct {
	log         *slog.Logger
	db          *sql.DB
	productRepo storage.ProductStorage
	orderRepo   storage.OrderStorage
}

func NewOrderService(log *slog.Logger, db *sql.DB, productRepo storage.ProductStorage, orderRepo storage.OrderStorage) OrderService {
	return &orderService{
		log:         log,
		db:          db,
		productRepo: productRepo,
		orderRepo:   orderRepo,
	}
}

// farmerGroup - строки корзины одного фермера
type farmerGroup struct {
	farmerID int64
	lines    []models.CartLine
}

// CreateOrder проверяет всю корзину до любых изменений, затем списывает остатки и создаёт заказы.
// Если что-то идет не так, транзакция откатывается и ни один заказ не создаётся.
func (s *orderService) CreateOrder(ctx context.Context, requester models.Requester, in models.PlaceOrder) ([]*models.Order, error) {
	const op = "service.OrderService.CreateOrder"
	log := s.log.With(slog.String("op", op), slog.Int64("buyerID", requester.ID))

	switch requester.Role {
	case models.RoleBuyer:
	case models.RoleFarmer:
		metrics.CartsRejected.WithLabelValues("role").Inc()
		return nil, fmt.Errorf("%s: %w", op, ErrRoleNotPermitted)
	default:
		metrics.CartsRejected.WithLabelValues("auth").Inc()
		return nil, fmt.Errorf("%s: %w", op, ErrUnauthenticated)
	}

	lines, err := mergeCartLines(in.Items)
	if err == nil && utf8.RuneCountInString(strings.TrimSpace(in.Phone)) > maxPhoneLen {
		err = invalid("phone", "is too long")
	}
	if err != nil {
		metrics.CartsRejected.WithLabelValues("validation").Inc()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	log.Info("placing cart", slog.Int("lines", len(lines)))

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		log.Error("failed to begin transaction", logger.Err(err))
		return nil, fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}

	orders, err := s.placeTx(ctx, tx, requester, lines, in)
	if err != nil {
		s.rollback(tx, log)
		switch {
		case errors.Is(err, ErrProductNotFound):
			metrics.CartsRejected.WithLabelValues("product_not_found").Inc()
			log.Info("cart rejected", logger.Err(err))
		case errors.Is(err, ErrInsufficientStock):
			metrics.CartsRejected.WithLabelValues("insufficient_stock").Inc()
			log.Info("cart rejected", logger.Err(err))
		case errors.Is(err, storage.ErrResourceLocked):
			log.Warn("products are locked", logger.Err(err))
			return nil, fmt.Errorf("%s: %w", op, ErrUnavailable)
		default:
			log.Error("failed to place cart", logger.Err(err))
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		log.Error("failed to commit transaction", logger.Err(err))
		return nil, fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}

	metrics.OrdersCreated.Add(float64(len(orders)))
	log.Info("cart placed", slog.Int("orders", len(orders)))
	return orders, nil
}

// placeTx выполняет оформление внутри открытой транзакции.
func (s *orderService) placeTx(
	ctx context.Context,
	tx *sql.Tx,
	requester models.Requester,
	lines []models.CartLine,
	in models.PlaceOrder,
) ([]*models.Order, error) {
	ids := make([]int64, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ProductID)
	}

	// блокировки снимаются только на commit/rollback
	products, err := s.productRepo.LockProductsTx(ctx, tx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to lock products: %w", err)
	}

	// первый проход: вся корзина проверяется до любых изменений
	for _, l := range lines {
		p, ok := products[l.ProductID]
		if !ok || !p.IsActive {
			return nil, &ProductNotFoundError{ID: l.ProductID}
		}
	}
	for _, l := range lines {
		p := products[l.ProductID]
		if p.Stock < l.Quantity {
			return nil, &InsufficientStockError{ProductID: p.ID, Name: p.Name, Requested: l.Quantity, Available: p.Stock}
		}
	}

	groups := groupByFarmer(lines, products)
	orders := make([]*models.Order, 0, len(groups))
	for _, g := range groups {
		order := &models.Order{
			BuyerID:         requester.ID,
			Status:          models.StatusPending,
			Total:           decimal.Zero,
			ShippingAddress: strings.TrimSpace(in.ShippingAddress),
			Phone:           strings.TrimSpace(in.Phone),
			CustomerNote:    strings.TrimSpace(in.Note),
			Items:           make([]models.OrderItem, 0, len(g.lines)),
		}
		for _, l := range g.lines {
			p := products[l.ProductID]
			item := models.OrderItem{
				ProductID:   p.ID,
				ProductName: p.Name,
				FarmerID:    p.FarmerID,
				Quantity:    l.Quantity,
				Price:       p.Price,
			}
			order.Items = append(order.Items, item)
			order.Total = order.Total.Add(item.LineTotal())

			if err := s.productRepo.DecrementStockTx(ctx, tx, p.ID, l.Quantity); err != nil {
				if errors.Is(err, storage.ErrStockConflict) {
					return nil, &InsufficientStockError{ProductID: p.ID, Name: p.Name, Requested: l.Quantity, Available: p.Stock}
				}
				return nil, fmt.Errorf("failed to decrement stock of product %d: %w", p.ID, err)
			}
		}

		if err := s.orderRepo.CreateOrderTx(ctx, tx, order); err != nil {
			return nil, fmt.Errorf("failed to create order for farmer %d: %w", g.farmerID, err)
		}
		orders = append(orders, order)
	}
	return orders, nil
}

// mergeCartLines проверяет строки и складывает количества повторяющихся товаров,
// сохраняя порядок первого появления.
func mergeCartLines(items []models.CartLine) ([]models.CartLine, error) {
	if len(items) == 0 {
		return nil, invalid("items", "must not be empty")
	}
	if len(items) > maxCartLines {
		return nil, invalid("items", "too many lines")
	}
	merged := make([]models.CartLine, 0, len(items))
	index := make(map[int64]int, len(items))
	for _, it := range items {
		if it.ProductID <= 0 {
			return nil, invalid("productId", "must be positive")
		}
		if it.Quantity <= 0 {
			return nil, invalid("quantity", "must be greater than 0")
		}
		if it.Quantity > maxCartQuantity {
			return nil, invalid("quantity", "must be at most 100000")
		}
		if i, ok := index[it.ProductID]; ok {
			// сумма по товару ограничена так же, как остаток, и не переполняет int
			if merged[i].Quantity > maxCartQuantity-it.Quantity {
				return nil, invalid("quantity", "must be at most 100000 per product")
			}
			merged[i].Quantity += it.Quantity
			continue
		}
		index[it.ProductID] = len(merged)
		merged = append(merged, it)
	}
	return merged, nil
}

// groupByFarmer разбивает корзину по фермерам в порядке их первого появления
func groupByFarmer(lines []models.CartLine, products map[int64]*models.Product) []*farmerGroup {
	var groups []*farmerGroup
	byFarmer := make(map[int64]*farmerGroup)
	for _, l := range lines {
		farmerID := products[l.ProductID].FarmerID
		g, ok := byFarmer[farmerID]
		if !ok {
			g = &farmerGroup{farmerID: farmerID}
			byFarmer[farmerID] = g
			groups = append(groups, g)
		}
		g.lines = append(g.lines, l)
	}
	return groups
}

func (s *orderService) ListMyOrders(ctx context.Context, requester models.Requester) ([]*models.Order, error) {
	const op = "service.OrderService.ListMyOrders"

	orders, err := s.orderRepo.ListOrdersByBuyer(ctx, requester.ID)
	if err != nil {
		s.log.Error("failed to list orders", slog.String("op", op), logger.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return orders, nil
}

func (s *orderService) GetOrder(ctx context.Context, id int64, requester models.Requester) (*models.Order, error) {
	const op = "service.OrderService.GetOrder"

	order, err := loadAccessibleOrder(ctx, s.orderRepo, id, requester)
	if err != nil {
		if !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrForbidden) {
			s.log.Error("failed to load order", slog.String("op", op), logger.Err(err))
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return order, nil
}

// ListReceivedOrders: итог заказа пересчитывается только по позициям этого фермера.
func (s *orderService) ListReceivedOrders(ctx context.Context, requester models.Requester) ([]*models.Order, error) {
	const op = "service.OrderService.ListReceivedOrders"

	if requester.Role != models.RoleFarmer {
		return nil, fmt.Errorf("%s: %w", op, ErrForbidden)
	}
	orders, err := s.orderRepo.ListOrdersByFarmer(ctx, requester.ID)
	if err != nil {
		s.log.Error("failed to list received orders", slog.String("op", op), logger.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	for _, o := range orders {
		own := make([]models.OrderItem, 0, len(o.Items))
		total := decimal.Zero
		for _, it := range o.Items {
			if it.FarmerID == requester.ID {
				own = append(own, it)
				total = total.Add(it.LineTotal())
			}
		}
		o.Items = own
		o.Total = total
	}
	return orders, nil
}

func (s *orderService) Accept(ctx context.Context, id int64, requester models.Requester) error {
	return s.setStatus(ctx, "service.OrderService.Accept", id, requester, models.StatusAccepted)
}

func (s *orderService) Reject(ctx context.Context, id int64, requester models.Requester) error {
	return s.setStatus(ctx, "service.OrderService.Reject", id, requester, models.StatusRejected)
}

// UpdateStatus выставляет один из статусов pending, processing, delivered, cancelled.
func (s *orderService) UpdateStatus(ctx context.Context, id int64, requester models.Requester, status string) error {
	const op = "service.OrderService.UpdateStatus"

	// заказ ищется до разбора статуса: для несуществующего заказа 404, а не 400.
	// роль проверяет setStatus
	if _, err := s.orderRepo.GetOrderByID(ctx, id); err != nil {
		if errors.Is(err, storage.ErrOrderNotFound) {
			return fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		s.log.Error("failed to get order", slog.String("op", op), logger.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	st, err := models.ParseSettableStatus(status)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return s.setStatus(ctx, op, id, requester, st)
}

// setStatus меняет статус без проверки текущего: повторные переходы разрешены.
// TODO: проверять, что у фермера есть позиции в заказе, как в access.CanAccessOrder.
func (s *orderService) setStatus(ctx context.Context, op string, id int64, requester models.Requester, status models.OrderStatus) error {
	log := s.log.With(slog.String("op", op), slog.Int64("orderID", id), slog.String("status", string(status)))

	if requester.Role != models.RoleFarmer {
		return fmt.Errorf("%s: %w", op, ErrForbidden)
	}
	if err := s.orderRepo.UpdateStatus(ctx, id, status); err != nil {
		if errors.Is(err, storage.ErrOrderNotFound) {
			return fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		log.Error("failed to update order status", logger.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("order status updated", slog.Int64("farmerID", requester.ID))
	return nil
}

// Cancel: только покупатель-владелец и только из pending. Остатки не возвращаются.
func (s *orderService) Cancel(ctx context.Context, id int64, requester models.Requester) error {
	const op = "service.OrderService.Cancel"
	log := s.log.With(slog.String("op", op), slog.Int64("orderID", id))

	order, err := s.orderRepo.GetOrderByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrOrderNotFound) {
			return fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		log.Error("failed to get order", logger.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	if order.BuyerID != requester.ID {
		return fmt.Errorf("%s: %w", op, ErrForbidden)
	}
	if order.Status != models.StatusPending {
		return fmt.Errorf("%s: order is %s: %w", op, order.Status, ErrInvalidTransition)
	}

	// статус мог измениться между чтением и обновлением
	ok, err := s.orderRepo.UpdateStatusIf(ctx, id, models.StatusPending, models.StatusCancelled)
	if err != nil {
		log.Error("failed to cancel order", logger.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		return fmt.Errorf("%s: %w", op, ErrInvalidTransition)
	}

	log.Info("order cancelled")
	return nil
}

func (s *orderService) rollback(tx *sql.Tx, log *slog.Logger) {
	if err := tx.Rollback(); err != nil {
		log.Error("transaction rollback failed", logger.Err(err))
	}
}

// loadAccessibleOrder загружает заказ с позициями: сначала NotFound, затем проверка доступа.
func loadAccessibleOrder(ctx context.Context, orders storage.OrderStorage, id int64, requester models.Requester) (*models.Order, error) {
	order, err := orders.GetOrderByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrOrderNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	items, err := orders.GetOrderItems(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get order items: %w", err)
	}
	if !access.CanAccessOrder(order, items, requester) {
		return nil, ErrForbidden
	}
	order.Items = items
	return order, nil
}
