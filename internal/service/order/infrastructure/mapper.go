// internal/service/order/infrastructure/mapper.go
package infrastructure

import "backoffice/internal/service/order/domain"

func toOrderModel(o *domain.Order) *OrderModel {
	model := &OrderModel{
		ID:              o.ID,
		Number:          o.Number,
		UserID:          o.UserID,
		ShippingAddress: o.ShippingAddress,
		TotalAmount:     o.TotalAmount,
		Status:          string(o.Status),
		CancelReason:    o.CancelReason,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
	for _, line := range o.Lines {
		model.Lines = append(model.Lines, OrderLineModel{
			OrderID:     o.ID,
			ProductID:   line.ProductID,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			WarehouseID: line.WarehouseID,
			Reservation: string(line.Reservation),
		})
	}
	return model
}

func toDomainOrder(m *OrderModel) *domain.Order {
	order := &domain.Order{
		ID:              m.ID,
		Number:          m.Number,
		UserID:          m.UserID,
		ShippingAddress: m.ShippingAddress,
		TotalAmount:     m.TotalAmount,
		Status:          domain.Status(m.Status),
		CancelReason:    m.CancelReason,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
	for _, line := range m.Lines {
		order.Lines = append(order.Lines, domain.OrderLine{
			ProductID:   line.ProductID,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			WarehouseID: line.WarehouseID,
			Reservation: domain.ReservationState(line.Reservation),
		})
	}
	return order
}
