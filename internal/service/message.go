package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/linemk/farm-market/internal/domain/models"
	"github.com/linemk/farm-market/internal/lib/logger"
	"github.com/linemk/farm-market/internal/storage"
)

const maxMessageLen = 1000

type MessageService interface {
	List(ctx context.Context, orderID int64, requester models.Requester) ([]*models.Message, error)
	Send(ctx context.Context, orderID int64, requester models.Requester, content string) (*models.Message, error)
}

type messageService struct {
	log         *slog.Logger
	orderRepo   storage.OrderStorage
	messageRepo storage.MessageStorage
}

func NewMessageService(log *slog.Logger, orderRepo storage.OrderStorage, messageRepo storage.MessageStorage) MessageService {
	return &messageService{
		log:         log,
		orderRepo:   orderRepo,
		messageRepo: messageRepo,
	}
}

// List возвращает переписку по заказу в порядке отправки.
func (s *messageService) List(ctx context.Context, orderID int64, requester models.Requester) ([]*models.Message, error) {
	const op = "service.MessageService.List"
	log := s.log.With(slog.String("op", op), slog.Int64("orderID", orderID))

	if _, err := loadAccessibleOrder(ctx, s.orderRepo, orderID, requester); err != nil {
		if !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrForbidden) {
			log.Error("failed to load order", logger.Err(err))
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	messages, err := s.messageRepo.ListByOrder(ctx, orderID)
	if err != nil {
		log.Error("failed to list messages", logger.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return messages, nil
}

// Send сохраняет сообщение от имени запрашивающего. Время ставит сервер.
func (s *messageService) Send(ctx context.Context, orderID int64, requester models.Requester, content string) (*models.Message, error) {
	const op = "service.MessageService.Send"
	log := s.log.With(slog.String("op", op), slog.Int64("orderID", orderID), slog.Int64("senderID", requester.ID))

	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("%s: %w", op, invalid("content", "is required"))
	}
	if utf8.RuneCountInString(content) > maxMessageLen {
		return nil, fmt.Errorf("%s: %w", op, invalid("content", "must be at most 1000 characters"))
	}

	if _, err := loadAccessibleOrder(ctx, s.orderRepo, orderID, requester); err != nil {
		if !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrForbidden) {
			log.Error("failed to load order", logger.Err(err))
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	msg := &models.Message{
		OrderID:    orderID,
		SenderID:   requester.ID,
		SenderName: requester.Name,
		SenderRole: requester.Role,
		Content:    content,
	}
	if err := s.messageRepo.CreateMessage(ctx, msg); err != nil {
		log.Error("failed to save message", logger.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("message sent", slog.Int64("messageID", msg.ID))
	return msg, nil
}
