// internal/service/inventory/domain/stock.go
package domain

import "time"

// ProductID 与 WarehouseID 是强类型标识，除相等比较和字符串转换外没有行为。
type ProductID string

func (id ProductID) String() string { return string(id) }

type WarehouseID string

func (id WarehouseID) String() string { return string(id) }

// Warehouse 是仓库目录中的一条记录。
// 停用的仓库不参与后续分配，但保留历史库存记录。
type Warehouse struct {
	ID        WarehouseID
	Name      string
	Address   string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// StockRecord 是库存台账的最小并发控制单元，按 (product, warehouse) 唯一。
// 不变量: OnHand >= 0, Reserved >= 0, Reserved <= OnHand。
// 记录只会被置零，不会被删除。
type StockRecord struct {
	ProductID   ProductID
	WarehouseID WarehouseID
	OnHand      int
	Reserved    int
	UpdatedAt   time.Time
}

// Available 返回可用量，即在库量减去已预占量。
func (r *StockRecord) Available() int {
	return r.OnHand - r.Reserved
}

// Reserve 预占数量。可用量不足时返回 InsufficientStockError，不做部分预占。
func (r *StockRecord) Reserve(qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	if qty > r.Available() {
		return &InsufficientStockError{
			ProductID: r.ProductID,
			Available: r.Available(),
			Requested: qty,
		}
	}
	r.Reserved += qty
	r.UpdatedAt = time.Now()
	return nil
}

// ConfirmReservation 把预占转为实际出库：OnHand 和 Reserved 同时扣减。
// 超过当前预占量时返回 InvalidReservationError，绝不重复扣减。
func (r *StockRecord) ConfirmReservation(qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	if qty > r.Reserved {
		return &InvalidReservationError{
			ProductID:   r.ProductID,
			WarehouseID: r.WarehouseID,
			Reserved:    r.Reserved,
			Requested:   qty,
		}
	}
	r.OnHand -= qty
	r.Reserved -= qty
	r.UpdatedAt = time.Now()
	return nil
}

// ReleaseReservation 把预占量退回可用库存，只动 Reserved。
func (r *StockRecord) ReleaseReservation(qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	if qty > r.Reserved {
		return &InvalidReservationError{
			ProductID:   r.ProductID,
			WarehouseID: r.WarehouseID,
			Reserved:    r.Reserved,
			Requested:   qty,
		}
	}
	r.Reserved -= qty
	r.UpdatedAt = time.Now()
	return nil
}

// AddOnHand 入库补货。
func (r *StockRecord) AddOnHand(qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	r.OnHand += qty
	r.UpdatedAt = time.Now()
	return nil
}

// MovementType 标记台账变动的种类。
type MovementType string

const (
	MovementReplenish MovementType = "REPLENISH" // 入库
	MovementOutbound  MovementType = "OUTBOUND"  // 预占确认出库
)

// StockMovement 是台账变动的审计记录，补货与出库各写一条。
type StockMovement struct {
	ID          string
	ProductID   ProductID
	WarehouseID WarehouseID
	Type        MovementType
	Quantity    int
	OnHandAfter int
	Reference   string // 关联单据，一般是订单ID或采购单号
	CreatedAt   time.Time
}
