package handlers

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/linemk/farm-market/internal/domain/models"
	"github.com/linemk/farm-market/internal/service"
)

// тело PUT /status - короткая строка
const maxStatusBody = 1 << 10

// CartItemRequest - строка корзины. Цену клиент не передаёт.
type CartItemRequest struct {
	ProductID int64 `json:"productId" validate:"required,gt=0"`
	Quantity  int   `json:"quantity" validate:"required,gt=0,lte=100000"`
}

// CreateOrderRequest - тело POST /api/orders
type CreateOrderRequest struct {
	Items           []CartItemRequest `json:"items" validate:"required,min=1,max=100,dive"`
	ShippingAddress string            `json:"shippingAddress" validate:"max=500"`
	Phone           string            `json:"phone" validate:"max=32"`
	Note            string            `json:"note" validate:"max=1000"`
}

func orderList(orders []*models.Order) []*models.Order {
	if orders == nil {
		return []*models.Order{}
	}
	return orders
}

// CreateOrderHandler обрабатывает POST /api/orders. В ответе массив: по заказу на каждого фермера.
func CreateOrderHandler(log *slog.Logger, orders service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(slog.String("op", "handlers.CreateOrderHandler"))

		requester, ok := requesterFrom(logger, w, r)
		if !ok {
			return
		}
		var req CreateOrderRequest
		if !decodeAndValidate(logger, w, r, &req) {
			return
		}

		in := models.PlaceOrder{
			Items:           make([]models.CartLine, 0, len(req.Items)),
			ShippingAddress: req.ShippingAddress,
			Phone:           req.Phone,
			Note:            req.Note,
		}
		for _, it := range req.Items {
			in.Items = append(in.Items, models.CartLine{ProductID: it.ProductID, Quantity: it.Quantity})
		}

		created, err := orders.CreateOrder(r.Context(), requester, in)
		if err != nil {
			respondError(logger, w, err)
			return
		}
		writeJSON(logger, w, http.StatusCreated, orderList(created))
	}
}

// MyOrdersHandler обрабатывает GET /api/orders
func MyOrdersHandler(log *slog.Logger, orders service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(slog.String("op", "handlers.MyOrdersHandler"))

		requester, ok := requesterFrom(logger, w, r)
		if !ok {
			return
		}
		list, err := orders.ListMyOrders(r.Context(), requester)
		if err != nil {
			respondError(logger, w, err)
			return
		}
		writeJSON(logger, w, http.StatusOK, orderList(list))
	}
}

// ReceivedOrdersHandler обрабатывает GET /api/orders/received
func ReceivedOrdersHandler(log *slog.Logger, orders service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(slog.String("op", "handlers.ReceivedOrdersHandler"))

		requester, ok := requesterFrom(logger, w, r)
		if !ok {
			return
		}
		list, err := orders.ListReceivedOrders(r.Context(), requester)
		if err != nil {
			respondError(logger, w, err)
			return
		}
		writeJSON(logger, w, http.StatusOK, orderList(list))
	}
}

// GetOrderHandler обрабатывает GET /api/orders/{id}
func GetOrderHandler(log *slog.Logger, orders service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(slog.String("op", "handlers.GetOrderHandler"))

		requester, ok := requesterFrom(logger, w, r)
		if !ok {
			return
		}
		id, ok := pathID(logger, w, r, "id")
		if !ok {
			return
		}
		order, err := orders.GetOrder(r.Context(), id, requester)
		if err != nil {
			respondError(logger, w, err)
			return
		}
		writeJSON(logger, w, http.StatusOK, order)
	}
}

// orderAction - операции над заказом без тела запроса
type orderAction func(svc service.OrderService, r *http.Request, id int64, requester models.Requester) error

func orderActionHandler(log *slog.Logger, orders service.OrderService, op string, action orderAction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(slog.String("op", op))

		requester, ok := requesterFrom(logger, w, r)
		if !ok {
			return
		}
		id, ok := pathID(logger, w, r, "id")
		if !ok {
			return
		}
		if err := action(orders, r, id, requester); err != nil {
			respondError(logger, w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// AcceptOrderHandler обрабатывает POST /api/orders/{id}/accept
func AcceptOrderHandler(log *slog.Logger, orders service.OrderService) http.HandlerFunc {
	return orderActionHandler(log, orders, "handlers.AcceptOrderHandler",
		func(svc service.OrderService, r *http.Request, id int64, requester models.Requester) error {
			return svc.Accept(r.Context(), id, requester)
		})
}

// RejectOrderHandler обрабатывает POST /api/orders/{id}/reject
func RejectOrderHandler(log *slog.Logger, orders service.OrderService) http.HandlerFunc {
	return orderActionHandler(log, orders, "handlers.RejectOrderHandler",
		func(svc service.OrderService, r *http.Request, id int64, requester models.Requester) error {
			return svc.Reject(r.Context(), id, requester)
		})
}

// CancelOrderHandler обрабатывает POST /api/orders/{id}/cancel
func CancelOrderHandler(log *slog.Logger, orders service.OrderService) http.HandlerFunc {
	return orderActionHandler(log, orders, "handlers.CancelOrderHandler",
		func(svc service.OrderService, r *http.Request, id int64, requester models.Requester) error {
			return svc.Cancel(r.Context(), id, requester)
		})
}

// UpdateStatusHandler обрабатывает PUT /api/orders/{id}/status.
// Тело - JSON-строка ("delivered") или просто текст статуса.
func UpdateStatusHandler(log *slog.Logger, orders service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(slog.String("op", "handlers.UpdateStatusHandler"))

		requester, ok := requesterFrom(logger, w, r)
		if !ok {
			return
		}
		id, ok := pathID(logger, w, r, "id")
		if !ok {
			return
		}
		raw, err := io.ReadAll(io.LimitReader(r.Body, maxStatusBody))
		if err != nil {
			logger.Info("failed to read body", slog.Any("error", err))
			writeError(logger, w, http.StatusBadRequest, "invalid request body")
			return
		}

		if err := orders.UpdateStatus(r.Context(), id, requester, parseStatusBody(raw)); err != nil {
			respondError(logger, w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func parseStatusBody(raw []byte) string {
	var status string
	if err := json.Unmarshal(raw, &status); err == nil {
		return status
	}
	return strings.TrimSpace(string(raw))
}
