// internal/service/inventory/domain/repository.go
package domain

import "context"

// StockRepository 定义了库存台账的持久化接口。
// Reserve/ConfirmReservation/ReleaseReservation 必须实现为针对单条
// (product, warehouse) 记录的原子条件更新：检查与变更是同一个原子单元，
// 返回值 false 表示条件不满足（记录不存在、可用量或预占量不足），
// 由应用层再查一次来区分具体原因。
type StockRepository interface {
	// Get 读取一条台账记录，不存在时返回 ErrStockNotFound。
	Get(ctx context.Context, productID ProductID, warehouseID WarehouseID) (*StockRecord, error)

	// FindByProduct 返回该商品在所有仓库的台账记录。
	FindByProduct(ctx context.Context, productID ProductID) ([]StockRecord, error)

	// Reserve 在 available >= qty 的条件下把 reserved 加 qty。
	Reserve(ctx context.Context, productID ProductID, warehouseID WarehouseID, qty int) (bool, error)

	// ConfirmReservation 在 reserved >= qty 的条件下同时扣减 on_hand 和 reserved。
	ConfirmReservation(ctx context.Context, productID ProductID, warehouseID WarehouseID, qty int) (bool, error)

	// ReleaseReservation 在 reserved >= qty 的条件下只扣减 reserved。
	ReleaseReservation(ctx context.Context, productID ProductID, warehouseID WarehouseID, qty int) (bool, error)

	// AddOnHand 给已存在的记录增加在库量，记录不存在时返回 ErrStockNotFound。
	AddOnHand(ctx context.Context, productID ProductID, warehouseID WarehouseID, qty int) error

	// Create 新建一条台账记录，首次补货时使用。
	Create(ctx context.Context, record *StockRecord) error

	// LogMovement 追加一条台账变动审计记录。
	LogMovement(ctx context.Context, movement *StockMovement) error

	// ListMovements 按时间倒序返回某商品最近的变动记录。
	ListMovements(ctx context.Context, productID ProductID, limit int) ([]StockMovement, error)
}

// WarehouseRepository 定义了仓库目录的持久化接口。
type WarehouseRepository interface {
	// Get 读取一个仓库，不存在时返回 ErrWarehouseNotFound。
	Get(ctx context.Context, id WarehouseID) (*Warehouse, error)

	// ListActive 返回所有启用中的仓库。
	ListActive(ctx context.Context) ([]Warehouse, error)

	// List 返回全部仓库，包括停用的。
	List(ctx context.Context) ([]Warehouse, error)

	// Save 创建或更新一个仓库。
	Save(ctx context.Context, warehouse *Warehouse) error
}

// KeyLocker 对某个资源键串行化一段操作，用于跨实例互斥
// （例如首次补货时的台账记录创建）。
type KeyLocker interface {
	WithLock(resource string, fn func() error) error
}
