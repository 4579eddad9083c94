// internal/service/order/domain/state.go
package domain

// Status 定义了订单的生命周期状态
type Status string

const (
	StatusPlaced    Status = "PLACED"    // 库存已预占，等待商家确认
	StatusConfirmed Status = "CONFIRMED" // 商家已确认，等待发货
	StatusShipped   Status = "SHIPPED"   // 已发货，预占已转为实际出库
	StatusDelivered Status = "DELIVERED" // 已签收，终态
	StatusCancelled Status = "CANCELLED" // 已取消，预占已释放，终态
)

// transitions 是唯一合法的状态迁移表。
// 发货后不允许取消：商品已经离仓，退货走独立的售后流程。
var transitions = map[Status][]Status{
	StatusPlaced:    {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusShipped, StatusCancelled},
	StatusShipped:   {StatusDelivered},
	StatusDelivered: {},
	StatusCancelled: {},
}

// CanTransitionTo 判断从当前状态到目标状态是否合法。
func (s Status) CanTransitionTo(target Status) bool {
	for _, next := range transitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

// IsTerminal 终态订单不再接受任何操作。
func (s Status) IsTerminal() bool {
	return len(transitions[s]) == 0
}
