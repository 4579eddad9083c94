// internal/service/order/application/dto.go
package application

import "backoffice/internal/service/order/domain"

// PlaceOrderRequest 是下单用例的输入数据
type PlaceOrderRequest struct {
	OrderNumber     string
	UserID          string
	ShippingAddress string
	Lines           []PlaceOrderLine
}

// PlaceOrderLine 是下单请求中的一行
type PlaceOrderLine struct {
	ProductID string
	Quantity  int
	UnitPrice float64
}

// PlaceOrderResponse 是下单用例的输出数据
type PlaceOrderResponse struct {
	OrderID     string
	OrderNumber string
	Status      domain.Status
	TotalAmount float64
	Lines       []PlacedLine
}

// PlacedLine 携带分配结果：每行由哪个仓库供货。
type PlacedLine struct {
	ProductID   string
	WarehouseID string
	Quantity    int
}

// ToPlaceOrderRequest 从 Kafka 事件转换为应用层请求 DTO
func ToPlaceOrderRequest(event *domain.OrderRequestedEvent) *PlaceOrderRequest {
	req := &PlaceOrderRequest{
		OrderNumber:     event.OrderNumber,
		UserID:          event.UserID,
		ShippingAddress: event.ShippingAddress,
	}
	for _, line := range event.Lines {
		req.Lines = append(req.Lines, PlaceOrderLine{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
		})
	}
	return req
}

// ToOrderRequestedEvent 从应用层请求 DTO 转换为队列事件
func (req *PlaceOrderRequest) ToOrderRequestedEvent() *domain.OrderRequestedEvent {
	event := &domain.OrderRequestedEvent{
		OrderNumber:     req.OrderNumber,
		UserID:          req.UserID,
		ShippingAddress: req.ShippingAddress,
	}
	for _, line := range req.Lines {
		event.Lines = append(event.Lines, domain.OrderLineRequest{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
		})
	}
	return event
}

func toResponse(order *domain.Order) *PlaceOrderResponse {
	resp := &PlaceOrderResponse{
		OrderID:     order.ID,
		OrderNumber: order.Number,
		Status:      order.Status,
		TotalAmount: order.TotalAmount,
	}
	for _, line := range order.Lines {
		resp.Lines = append(resp.Lines, PlacedLine{
			ProductID:   line.ProductID,
			WarehouseID: line.WarehouseID,
			Quantity:    line.Quantity,
		})
	}
	return resp
}
