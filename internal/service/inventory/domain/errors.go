// internal/service/inventory/domain/errors.go
package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrWarehouseNotFound 引用的仓库不存在
	ErrWarehouseNotFound = errors.New("warehouse not found")
	// ErrStockNotFound 该 (product, warehouse) 还没有台账记录
	ErrStockNotFound = errors.New("product stock not found")
	// ErrInvalidQuantity 数量必须为正
	ErrInvalidQuantity = errors.New("quantity must be positive")
	// ErrEmptyDemands 分配请求不能为空
	ErrEmptyDemands = errors.New("allocation demands must not be empty")
)

// InsufficientStockError 可用库存不足。
// 由调用方决定如何恢复（例如提示买家），核心内部绝不自动重试。
type InsufficientStockError struct {
	ProductID ProductID
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

// InvalidReservationError 确认/释放的数量超过当前预占量，
// 通常意味着调用方重复确认或重复释放，必须暴露而不是吞掉。
type InvalidReservationError struct {
	ProductID   ProductID
	WarehouseID WarehouseID
	Reserved    int
	Requested   int
}

func (e *InvalidReservationError) Error() string {
	return fmt.Sprintf("invalid reservation for product %s at warehouse %s: requested %d, reserved %d",
		e.ProductID, e.WarehouseID, e.Requested, e.Reserved)
}

// IsInsufficientStock 判断错误链中是否有库存不足错误。
func IsInsufficientStock(err error) bool {
	var target *InsufficientStockError
	return errors.As(err, &target)
}

// IsInvalidReservation 判断错误链中是否有非法预占操作错误。
func IsInvalidReservation(err error) bool {
	var target *InvalidReservationError
	return errors.As(err, &target)
}
