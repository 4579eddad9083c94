// internal/service/order/domain/order.go
package domain

import (
	"time"
)

// ReservationState 跟踪一行订单对应的库存预占处于什么阶段。
// 发货时逐行确认，取消时逐行释放，每行至多发生其中一种。
type ReservationState string

const (
	ReservationHeld      ReservationState = "HELD"      // 下单时预占成功
	ReservationConfirmed ReservationState = "CONFIRMED" // 发货时已转实际出库
	ReservationReleased  ReservationState = "RELEASED"  // 取消时已退回可用库存
)

// OrderLine 是订单中的一行：某个商品、数量和下单时的单价快照。
// WarehouseID 由分配引擎在下单时指定，整行由一个仓库供货。
type OrderLine struct {
	ProductID   string
	Quantity    int
	UnitPrice   float64
	WarehouseID string
	Reservation ReservationState
}

// Order 是订单聚合的根实体。
// 状态迁移只通过 Confirm/Ship/Deliver/Cancel 四个方法发生，
// 每个方法先查迁移表，再落状态，保证任何时刻状态都合法。
type Order struct {
	ID              string
	Number          string // 客户端生成的幂等单号
	UserID          string
	ShippingAddress string
	Lines           []OrderLine
	TotalAmount     float64 // 下单时的价格快照，后续改价不影响已有订单
	Status          Status
	CancelReason    string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewOrder 创建一个待分配库存的新订单，返回对应的下单事件。
func NewOrder(id, number, userID, shippingAddress string, lines []OrderLine) (*Order, *OrderPlacedEvent, error) {
	if len(lines) == 0 {
		return nil, nil, ErrEmptyOrder
	}
	total := 0.0
	for i := range lines {
		if lines[i].Quantity <= 0 {
			return nil, nil, ErrInvalidLine
		}
		lines[i].Reservation = ReservationHeld
		total += lines[i].UnitPrice * float64(lines[i].Quantity)
	}

	now := time.Now()
	order := &Order{
		ID:              id,
		Number:          number,
		UserID:          userID,
		ShippingAddress: shippingAddress,
		Lines:           lines,
		TotalAmount:     total,
		Status:          StatusPlaced,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	event := &OrderPlacedEvent{
		OrderID:     id,
		OrderNumber: number,
		UserID:      userID,
		TotalAmount: total,
		At:          now,
	}
	return order, event, nil
}

// AssignWarehouses 写入分配引擎选出的供货仓，按商品匹配。
// 只在下单流程中调用一次，已有供货仓的行不会被覆盖。
func (o *Order) AssignWarehouses(assignments map[string]string) {
	for i := range o.Lines {
		if o.Lines[i].WarehouseID != "" {
			continue
		}
		if wid, ok := assignments[o.Lines[i].ProductID]; ok {
			o.Lines[i].WarehouseID = wid
		}
	}
	o.UpdatedAt = time.Now()
}

// Confirm 商家确认订单。
func (o *Order) Confirm() (*OrderConfirmedEvent, error) {
	if err := o.transition(StatusConfirmed); err != nil {
		return nil, err
	}
	return &OrderConfirmedEvent{OrderID: o.ID, At: o.UpdatedAt}, nil
}

// Ship 标记订单已发货。调用方必须先把每一行的预占确认为实际出库。
func (o *Order) Ship() (*OrderShippedEvent, error) {
	if err := o.transition(StatusShipped); err != nil {
		return nil, err
	}
	for i := range o.Lines {
		o.Lines[i].Reservation = ReservationConfirmed
	}
	confirmed := make([]OrderLine, len(o.Lines))
	copy(confirmed, o.Lines)
	return &OrderShippedEvent{OrderID: o.ID, ConfirmedLines: confirmed, At: o.UpdatedAt}, nil
}

// Deliver 标记订单已签收。
func (o *Order) Deliver() (*OrderDeliveredEvent, error) {
	if err := o.transition(StatusDelivered); err != nil {
		return nil, err
	}
	return &OrderDeliveredEvent{OrderID: o.ID, At: o.UpdatedAt}, nil
}

// Cancel 取消订单。调用方必须先释放每一行仍持有的预占。
func (o *Order) Cancel(reason string) (*OrderCancelledEvent, error) {
	if err := o.transition(StatusCancelled); err != nil {
		return nil, err
	}
	o.CancelReason = reason
	var released []OrderLine
	for i := range o.Lines {
		if o.Lines[i].Reservation == ReservationHeld {
			o.Lines[i].Reservation = ReservationReleased
			released = append(released, o.Lines[i])
		}
	}
	return &OrderCancelledEvent{OrderID: o.ID, Reason: reason, ReleasedLines: released, At: o.UpdatedAt}, nil
}

// HeldLines 返回仍持有预占的行，取消和发货时用。
func (o *Order) HeldLines() []OrderLine {
	var held []OrderLine
	for _, line := range o.Lines {
		if line.Reservation == ReservationHeld {
			held = append(held, line)
		}
	}
	return held
}

func (o *Order) transition(target Status) error {
	if !o.Status.CanTransitionTo(target) {
		return &InvalidOrderStateError{
			OrderID:   o.ID,
			Current:   o.Status,
			Attempted: target,
		}
	}
	o.Status = target
	o.UpdatedAt = time.Now()
	return nil
}
