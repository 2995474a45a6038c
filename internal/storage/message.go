package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/linemk/farm-market/internal/domain/models"
)

// MessageStorage описывает методы для переписки по заказу.
type MessageStorage interface {
	// ListByOrder возвращает сообщения заказа в порядке отправки.
	ListByOrder(ctx context.Context, orderID int64) ([]*models.Message, error)
	// CreateMessage сохраняет сообщение; заполняет ID и CreatedAt.
	CreateMessage(ctx context.Context, msg *models.Message) error
}

type messageRepository struct {
	db *sql.DB
}

func NewMessageRepository(db *sql.DB) MessageStorage {
	return &messageRepository{db: db}
}

func (r *messageRepository) ListByOrder(ctx context.Context, orderID int64) ([]*models.Message, error) {
	query := `
		SELECT m.id, m.order_id, m.sender_id, u.name, u.role, m.content, m.created_at
		FROM messages m
		JOIN users u ON u.id = m.sender_id
		WHERE m.order_id = $1
		ORDER BY m.created_at, m.id`
	rows, err := r.db.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := []*models.Message{}
	for rows.Next() {
		m := &models.Message{}
		var role string
		if err := rows.Scan(&m.ID, &m.OrderID, &m.SenderID, &m.SenderName, &role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		if m.SenderRole, err = models.ParseRole(role); err != nil {
			return nil, fmt.Errorf("message %d: %w", m.ID, err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return messages, nil
}

func (r *messageRepository) CreateMessage(ctx context.Context, msg *models.Message) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO messages (order_id, sender_id, content) VALUES ($1, $2, $3) RETURNING id, created_at`,
		msg.OrderID, msg.SenderID, msg.Content,
	).Scan(&msg.ID, &msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}
	return nil
}
