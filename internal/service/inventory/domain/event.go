// internal/service/inventory/domain/event.go
package domain

import "time"

// StockChangeKind 标记一次台账变动对外广播时的类型。
type StockChangeKind string

const (
	StockReserved    StockChangeKind = "RESERVED"
	StockConfirmed   StockChangeKind = "CONFIRMED"
	StockReleased    StockChangeKind = "RELEASED"
	StockReplenished StockChangeKind = "REPLENISHED"
)

// StockChangedEvent 在每次台账变动后发布，供后台看板等只读消费方使用。
// 发布是尽力而为的：失败只记日志，不影响台账操作本身。
type StockChangedEvent struct {
	ProductID   ProductID       `json:"productId"`
	WarehouseID WarehouseID     `json:"warehouseId"`
	Kind        StockChangeKind `json:"kind"`
	Quantity    int             `json:"quantity"`
	OnHand      int             `json:"onHand"`
	Reserved    int             `json:"reserved"`
	Reference   string          `json:"reference,omitempty"`
	At          time.Time       `json:"at"`
}
