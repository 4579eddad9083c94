// internal/service/order/domain/event.go
package domain

import "time"

// LifecycleEvent 是状态机每次成功迁移返回给调用方的带标签事件。
// 每种迁移一个具体类型，只携带该迁移特有的载荷；事件由迁移方法
// 显式返回，聚合自身不缓存事件。
type LifecycleEvent interface {
	// Kind 是迁移后的目标状态。
	Kind() Status
	OccurredAt() time.Time

	lifecycleEvent()
}

// OrderPlacedEvent 在订单创建（库存已预占）时返回。
type OrderPlacedEvent struct {
	OrderID     string
	OrderNumber string
	UserID      string
	TotalAmount float64
	At          time.Time
}

// OrderConfirmedEvent 在商家确认时返回。
type OrderConfirmedEvent struct {
	OrderID string
	At      time.Time
}

// OrderShippedEvent 在发货时返回，携带已转实际出库的行。
type OrderShippedEvent struct {
	OrderID        string
	ConfirmedLines []OrderLine
	At             time.Time
}

// OrderDeliveredEvent 在签收时返回。
type OrderDeliveredEvent struct {
	OrderID string
	At      time.Time
}

// OrderCancelledEvent 在取消时返回，携带取消原因和被释放的行。
type OrderCancelledEvent struct {
	OrderID       string
	Reason        string
	ReleasedLines []OrderLine
	At            time.Time
}

func (e *OrderPlacedEvent) Kind() Status    { return StatusPlaced }
func (e *OrderConfirmedEvent) Kind() Status { return StatusConfirmed }
func (e *OrderShippedEvent) Kind() Status   { return StatusShipped }
func (e *OrderDeliveredEvent) Kind() Status { return StatusDelivered }
func (e *OrderCancelledEvent) Kind() Status { return StatusCancelled }

func (e *OrderPlacedEvent) OccurredAt() time.Time    { return e.At }
func (e *OrderConfirmedEvent) OccurredAt() time.Time { return e.At }
func (e *OrderShippedEvent) OccurredAt() time.Time   { return e.At }
func (e *OrderDeliveredEvent) OccurredAt() time.Time { return e.At }
func (e *OrderCancelledEvent) OccurredAt() time.Time { return e.At }

func (e *OrderPlacedEvent) lifecycleEvent()    {}
func (e *OrderConfirmedEvent) lifecycleEvent() {}
func (e *OrderShippedEvent) lifecycleEvent()   {}
func (e *OrderDeliveredEvent) lifecycleEvent() {}
func (e *OrderCancelledEvent) lifecycleEvent() {}

// OrderRequestedEvent 是异步下单入口的消息载体。
// 由接口层发到 order-requests 主题，消费方驱动下单用例。
type OrderRequestedEvent struct {
	TraceID         string             `json:"traceId"`
	EventID         string             `json:"eventId"`
	OrderNumber     string             `json:"orderNumber"`
	UserID          string             `json:"userId"`
	ShippingAddress string             `json:"shippingAddress"`
	Lines           []OrderLineRequest `json:"lines"`
}

// OrderLineRequest 是下单请求中的一行。
type OrderLineRequest struct {
	ProductID string  `json:"productId"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unitPrice"`
}

// OrderStatusChangedEvent 在每次状态迁移后发布，驱动通知等下游。
type OrderStatusChangedEvent struct {
	OrderID     string  `json:"orderId"`
	OrderNumber string  `json:"orderNumber"`
	UserID      string  `json:"userId"`
	Status      Status  `json:"status"`
	Reason      string  `json:"reason,omitempty"`
	TotalAmount float64 `json:"totalAmount"`
	At          time.Time `json:"at"`
}

// ShipmentRequestedEvent 发货时发给履约方，按供货仓拆分包裹。
type ShipmentRequestedEvent struct {
	OrderID         string `json:"orderId"`
	WarehouseID     string `json:"warehouseId"`
	ShippingAddress string `json:"shippingAddress"`
	Items           []ShipmentItem `json:"items"`
	At              time.Time      `json:"at"`
}

// ShipmentItem 是一个包裹里的一项。
type ShipmentItem struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}
