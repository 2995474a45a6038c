package service_test

import (
	"context"
	"database/sql"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/linemk/farm-market/internal/domain/models"
	"github.com/linemk/farm-market/internal/lib/logger"
	"github.com/linemk/farm-market/internal/service"
	"github.com/linemk/farm-market/internal/storage"
)

func discardLogger() *slog.Logger {
	return logger.Discard()
}

type fakeUserRepo struct {
	users map[string]*models.User // ключ - email
}

var _ storage.UserStorage = (*fakeUserRepo)(nil)

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*models.User)}
}

func (f *fakeUserRepo) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	user, ok := f.users[email]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	return user, nil
}

func (f *fakeUserRepo) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	for _, u := range f.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, storage.ErrUserNotFound
}

func (f *fakeUserRepo) CreateUser(ctx context.Context, user *models.User) (*models.User, error) {
	if _, ok := f.users[user.Email]; ok {
		return nil, storage.ErrUserExists
	}
	user.ID = int64(len(f.users) + 1)
	user.CreatedAt = time.Now()
	f.users[user.Email] = user
	return user, nil
}

type fakeProductRepo struct {
	products map[int64]*models.Product
	nextID   int64
	// conflictOn - товары, на которых DecrementStockTx вернёт ErrStockConflict
	conflictOn map[int64]bool
	lockErr    error
}

var _ storage.ProductStorage = (*fakeProductRepo)(nil)

func newFakeProductRepo(products ...*models.Product) *fakeProductRepo {
	f := &fakeProductRepo{products: make(map[int64]*models.Product), conflictOn: make(map[int64]bool)}
	for _, p := range products {
		f.products[p.ID] = p
		if p.ID > f.nextID {
			f.nextID = p.ID
		}
	}
	return f
}

func (f *fakeProductRepo) sorted(keep func(p *models.Product) bool) []*models.Product {
	var out []*models.Product
	for _, p := range f.products {
		if keep(p) {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (f *fakeProductRepo) ListActive(ctx context.Context, filter models.ProductFilter) ([]*models.Product, error) {
	return f.sorted(func(p *models.Product) bool {
		return p.IsActive &&
			(filter.Category == "" || strings.EqualFold(p.Category, filter.Category)) &&
			(filter.Search == "" || strings.Contains(strings.ToLower(p.Name), strings.ToLower(filter.Search)))
	}), nil
}

func (f *fakeProductRepo) ListByFarmer(ctx context.Context, farmerID int64) ([]*models.Product, error) {
	return f.sorted(func(p *models.Product) bool { return p.IsActive && p.FarmerID == farmerID }), nil
}

func (f *fakeProductRepo) ListCategories(ctx context.Context) ([]string, error) {
	seen := map[string]bool{}
	categories := []string{}
	for _, p := range f.sorted(func(p *models.Product) bool { return p.IsActive }) {
		if !seen[p.Category] {
			seen[p.Category] = true
			categories = append(categories, p.Category)
		}
	}
	sort.Strings(categories)
	return categories, nil
}

func (f *fakeProductRepo) ListFeatured(ctx context.Context, limit int) ([]*models.Product, error) {
	products := f.sorted(func(p *models.Product) bool { return p.IsActive })
	sort.SliceStable(products, func(i, j int) bool { return products[i].Rating.GreaterThan(products[j].Rating) })
	if len(products) > limit {
		products = products[:limit]
	}
	return products, nil
}

func (f *fakeProductRepo) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return nil, storage.ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeProductRepo) CreateProduct(ctx context.Context, product *models.Product) error {
	f.nextID++
	product.ID = f.nextID
	product.IsActive = true
	product.CreatedAt = time.Now()
	cp := *product
	f.products[product.ID] = &cp
	return nil
}

func (f *fakeProductRepo) UpdateProduct(ctx context.Context, product *models.Product) error {
	p, ok := f.products[product.ID]
	if !ok {
		return storage.ErrProductNotFound
	}
	p.Name, p.Description, p.Price = product.Name, product.Description, product.Price
	p.Category, p.Image, p.Unit = product.Category, product.Image, product.Unit
	return nil
}

func (f *fakeProductRepo) DeactivateProduct(ctx context.Context, id int64) error {
	p, ok := f.products[id]
	if !ok {
		return storage.ErrProductNotFound
	}
	p.IsActive = false
	return nil
}

func (f *fakeProductRepo) LockProductsTx(ctx context.Context, tx *sql.Tx, ids []int64) (map[int64]*models.Product, error) {
	if f.lockErr != nil {
		return nil, f.lockErr
	}
	out := make(map[int64]*models.Product)
	for _, id := range ids {
		if p, ok := f.products[id]; ok {
			cp := *p
			out[id] = &cp
		}
	}
	return out, nil
}

func (f *fakeProductRepo) DecrementStockTx(ctx context.Context, tx *sql.Tx, id int64, quantity int) error {
	p, ok := f.products[id]
	if !ok || f.conflictOn[id] || p.Stock < quantity {
		return storage.ErrStockConflict
	}
	p.Stock -= quantity
	return nil
}

type fakeOrderRepo struct {
	orders      map[int64]*models.Order
	nextID      int64
	nextItemID  int64
	createCalls int
}

var _ storage.OrderStorage = (*fakeOrderRepo)(nil)

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{orders: make(map[int64]*models.Order)}
}

func (f *fakeOrderRepo) add(o *models.Order) {
	f.orders[o.ID] = o
	if o.ID > f.nextID {
		f.nextID = o.ID
	}
}

func cloneOrder(o *models.Order) *models.Order {
	cp := *o
	cp.Items = append([]models.OrderItem{}, o.Items...)
	return &cp
}

func (f *fakeOrderRepo) CreateOrderTx(ctx context.Context, tx *sql.Tx, order *models.Order) error {
	f.createCalls++
	f.nextID++
	order.ID = f.nextID
	order.CreatedAt = time.Now()
	for i := range order.Items {
		f.nextItemID++
		order.Items[i].ID = f.nextItemID
		order.Items[i].OrderID = order.ID
	}
	f.orders[order.ID] = cloneOrder(order)
	return nil
}

func (f *fakeOrderRepo) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	o, ok := f.orders[id]
	if !ok {
		return nil, storage.ErrOrderNotFound
	}
	cp := cloneOrder(o)
	cp.Items = nil
	return cp, nil
}

func (f *fakeOrderRepo) GetOrderItems(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	o, ok := f.orders[orderID]
	if !ok {
		return []models.OrderItem{}, nil
	}
	return append([]models.OrderItem{}, o.Items...), nil
}

func (f *fakeOrderRepo) list(keep func(o *models.Order) bool) []*models.Order {
	out := []*models.Order{}
	for _, o := range f.orders {
		if keep(o) {
			out = append(out, cloneOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

func (f *fakeOrderRepo) ListOrdersByBuyer(ctx context.Context, buyerID int64) ([]*models.Order, error) {
	return f.list(func(o *models.Order) bool { return o.BuyerID == buyerID }), nil
}

func (f *fakeOrderRepo) ListOrdersByFarmer(ctx context.Context, farmerID int64) ([]*models.Order, error) {
	return f.list(func(o *models.Order) bool {
		for _, it := range o.Items {
			if it.FarmerID == farmerID {
				return true
			}
		}
		return false
	}), nil
}

func (f *fakeOrderRepo) UpdateStatus(ctx context.Context, id int64, status models.OrderStatus) error {
	o, ok := f.orders[id]
	if !ok {
		return storage.ErrOrderNotFound
	}
	o.Status = status
	if status == models.StatusDelivered {
		now := time.Now()
		o.DeliveredAt = &now
	}
	return nil
}

func (f *fakeOrderRepo) UpdateStatusIf(ctx context.Context, id int64, from, to models.OrderStatus) (bool, error) {
	o, ok := f.orders[id]
	if !ok || o.Status != from {
		return false, nil
	}
	o.Status = to
	return true, nil
}

type fakeMessageRepo struct {
	messages []*models.Message
}

var _ storage.MessageStorage = (*fakeMessageRepo)(nil)

func (f *fakeMessageRepo) ListByOrder(ctx context.Context, orderID int64) ([]*models.Message, error) {
	out := []*models.Message{}
	for _, m := range f.messages {
		if m.OrderID == orderID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeMessageRepo) CreateMessage(ctx context.Context, msg *models.Message) error {
	msg.ID = int64(len(f.messages) + 1)
	msg.CreatedAt = time.Now()
	f.messages = append(f.messages, msg)
	return nil
}

type fakeCategoryCache struct {
	categories  []string
	cached      bool
	getErr      error
	invalidated int
}

var _ service.CategoryCache = (*fakeCategoryCache)(nil)

func (f *fakeCategoryCache) Get(ctx context.Context) ([]string, bool, error) {
	if f.getErr != nil {
		return nil, false, f.getErr
	}
	return f.categories, f.cached, nil
}

func (f *fakeCategoryCache) Set(ctx context.Context, categories []string) error {
	f.categories, f.cached = categories, true
	return nil
}

func (f *fakeCategoryCache) Invalidate(ctx context.Context) error {
	f.categories, f.cached = nil, false
	f.invalidated++
	return nil
}
