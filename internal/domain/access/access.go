// Package access содержит единое правило доступа к заказу,
// которым пользуются и чтение заказов, и переписка по заказу.
package access

import "github.com/linemk/farm-market/internal/domain/models"

// CanAccessOrder возвращает true, если запрашивающий - покупатель-владелец заказа
// или фермер, которому принадлежит хотя бы одна позиция заказа.
func CanAccessOrder(order *models.Order, items []models.OrderItem, requester models.Requester) bool {
	if order == nil {
		return false
	}
	if order.BuyerID == requester.ID {
		return true
	}

	switch requester.Role {
	case models.RoleFarmer:
		for _, item := range items {
			if item.FarmerID == requester.ID {
				return true
			}
		}
		return false
	case models.RoleBuyer:
		return false
	}
	return false
}
