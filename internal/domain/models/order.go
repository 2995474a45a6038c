package models

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusProcessing OrderStatus = "processing"
	StatusAccepted   OrderStatus = "accepted"
	StatusRejected   OrderStatus = "rejected"
	StatusDelivered  OrderStatus = "delivered"
	StatusCancelled  OrderStatus = "cancelled"
)

var ErrInvalidStatus = errors.New("invalid status")

// ParseSettableStatus разбирает статус, который фермер может выставить напрямую.
// accepted/rejected выставляются только через отдельные операции.
func ParseSettableStatus(s string) (OrderStatus, error) {
	switch st := OrderStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusPending, StatusProcessing, StatusDelivered, StatusCancelled:
		return st, nil
	}
	return "", ErrInvalidStatus
}

// Order - заказ покупателя. Все позиции одного заказа принадлежат одному фермеру
type Order struct {
	ID              int64           `json:"id"`
	BuyerID         int64           `json:"buyerId"`
	Status          OrderStatus     `json:"status"`
	Total           decimal.Decimal `json:"total"`
	ShippingAddress string          `json:"shippingAddress"`
	Phone           string          `json:"phone"`
	CustomerNote    string          `json:"customerNote"`
	CreatedAt       time.Time       `json:"createdAt"`
	DeliveredAt     *time.Time      `json:"deliveredAt,omitempty"`
	Items           []OrderItem     `json:"items"`
}

// OrderItem - позиция заказа. Price - снимок цены товара на момент заказа
type OrderItem struct {
	ID          int64           `json:"id"`
	OrderID     int64           `json:"orderId"`
	ProductID   int64           `json:"productId"`
	ProductName string          `json:"productName"` // имя товара на момент чтения; заполняется через JOIN
	FarmerID    int64           `json:"farmerId"`    // владелец товара; заполняется через JOIN
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
}

// LineTotal - стоимость позиции
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// CartLine - строка корзины, присланная покупателем
type CartLine struct {
	ProductID int64
	Quantity  int
}

// PlaceOrder - входные данные для оформления корзины
type PlaceOrder struct {
	Items           []CartLine
	ShippingAddress string
	Phone           string
	Note            string
}
