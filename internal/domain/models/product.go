package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product - товар фермера. Никогда не удаляется физически, только IsActive = false
type Product struct {
	ID          int64
	Name        string
	Description string
	Price       decimal.Decimal
	Category    string
	Image       string
	Unit        string
	Stock       int
	Rating      decimal.Decimal
	IsActive    bool
	CreatedAt   time.Time
	FarmerID    int64
	FarmerName  string // заполняется через JOIN с таблицей users
}

// ProductFilter - параметры выборки активных товаров
type ProductFilter struct {
	Category string
	Search   string
}
