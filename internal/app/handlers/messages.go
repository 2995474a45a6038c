package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/linemk/farm-market/internal/domain/models"
	"github.com/linemk/farm-market/internal/service"
)

// SendMessageRequest - тело POST /api/orders/{id}/messages
type SendMessageRequest struct {
	Content string `json:"content" validate:"required,max=1000"`
}

// MessageResponse - сообщение переписки с именем и ролью отправителя
type MessageResponse struct {
	ID         int64       `json:"id"`
	OrderID    int64       `json:"orderId"`
	SenderID   int64       `json:"senderId"`
	SenderName string      `json:"senderName"`
	SenderRole models.Role `json:"senderRole"`
	Content    string      `json:"content"`
	CreatedAt  time.Time   `json:"createdAt"`
}

func messageResponse(m *models.Message) MessageResponse {
	return MessageResponse{
		ID:         m.ID,
		OrderID:    m.OrderID,
		SenderID:   m.SenderID,
		SenderName: m.SenderName,
		SenderRole: m.SenderRole,
		Content:    m.Content,
		CreatedAt:  m.CreatedAt,
	}
}

// ListMessagesHandler обрабатывает GET /api/orders/{id}/messages
func ListMessagesHandler(log *slog.Logger, messages service.MessageService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(slog.String("op", "handlers.ListMessagesHandler"))

		requester, ok := requesterFrom(logger, w, r)
		if !ok {
			return
		}
		orderID, ok := pathID(logger, w, r, "id")
		if !ok {
			return
		}
		list, err := messages.List(r.Context(), orderID, requester)
		if err != nil {
			respondError(logger, w, err)
			return
		}

		out := make([]MessageResponse, 0, len(list))
		for _, m := range list {
			out = append(out, messageResponse(m))
		}
		writeJSON(logger, w, http.StatusOK, out)
	}
}

// SendMessageHandler обрабатывает POST /api/orders/{id}/messages
func SendMessageHandler(log *slog.Logger, messages service.MessageService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(slog.String("op", "handlers.SendMessageHandler"))

		requester, ok := requesterFrom(logger, w, r)
		if !ok {
			return
		}
		orderID, ok := pathID(logger, w, r, "id")
		if !ok {
			return
		}
		var req SendMessageRequest
		if !decodeAndValidate(logger, w, r, &req) {
			return
		}

		msg, err := messages.Send(r.Context(), orderID, requester, req.Content)
		if err != nil {
			respondError(logger, w, err)
			return
		}
		writeJSON(logger, w, http.StatusOK, messageResponse(msg))
	}
}
