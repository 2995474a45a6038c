package models

import "time"

// Message - сообщение в переписке по заказу
type Message struct {
	ID         int64
	OrderID    int64
	SenderID   int64
	SenderName string // заполняется через JOIN с таблицей users
	SenderRole Role
	Content    string
	CreatedAt  time.Time
}
