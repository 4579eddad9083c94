package port

import (
	"context"
)

// Demand 是传给库存服务的一行分配需求。
type Demand struct {
	ProductID string
	Quantity  int
}

// Allocation 是库存服务为一行需求选出的供货仓。
type Allocation struct {
	ProductID   string
	WarehouseID string
	Quantity    int
}

// AllocationService 是整单分配的出站端口。
// Allocate 是全有或全无的：返回成功即所有行都已预占。
type AllocationService interface {
	Allocate(ctx context.Context, orderID string, demands []Demand) ([]Allocation, error)
}

// ReservationOps 是对单条预占的确认/释放出站端口。
// 发货时逐行确认，取消时逐行释放。
type ReservationOps interface {
	ConfirmLine(ctx context.Context, orderID, productID, warehouseID string, qty int) error
	ReleaseLine(ctx context.Context, orderID, productID, warehouseID string, qty int) error
}
