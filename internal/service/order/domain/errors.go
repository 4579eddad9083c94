// internal/service/order/domain/errors.go
package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyOrder 订单必须至少有一行
	ErrEmptyOrder = errors.New("order must contain at least one line")
	// ErrOrderNotFound 订单不存在
	ErrOrderNotFound = errors.New("order not found")
	// ErrInvalidLine 行数量必须为正
	ErrInvalidLine = errors.New("order line quantity must be positive")
)

// InvalidOrderStateError 状态机拒绝了一次非法迁移。
// 携带当前状态和试图进入的状态，方便调用方提示和排查。
type InvalidOrderStateError struct {
	OrderID   string
	Current   Status
	Attempted Status
}

func (e *InvalidOrderStateError) Error() string {
	return fmt.Sprintf("order %s cannot transition from %s to %s", e.OrderID, e.Current, e.Attempted)
}

// IsInvalidOrderState 判断错误链中是否有非法状态迁移错误。
func IsInvalidOrderState(err error) bool {
	var target *InvalidOrderStateError
	return errors.As(err, &target)
}
