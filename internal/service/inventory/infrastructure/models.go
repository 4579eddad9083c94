// internal/service/inventory/infrastructure/models.go
package infrastructure

import "time"

// StockRecordModel 是 StockRecord 在数据库中的表示。
// (product_id, warehouse_id) 上有唯一索引，条件更新都打在这一行上。
type StockRecordModel struct {
	ID          uint64 `gorm:"primaryKey;autoIncrement"`
	ProductID   string `gorm:"uniqueIndex:uk_product_warehouse;size:64"`
	WarehouseID string `gorm:"uniqueIndex:uk_product_warehouse;size:64"`
	OnHand      int
	Reserved    int
	UpdatedAt   time.Time
}

func (StockRecordModel) TableName() string {
	return "stock_records"
}

// WarehouseModel 是 Warehouse 在数据库中的表示。
type WarehouseModel struct {
	ID        string `gorm:"primaryKey;size:64"`
	Name      string
	Address   string
	Active    bool `gorm:"index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (WarehouseModel) TableName() string {
	return "warehouses"
}

// StockMovementModel 是台账变动审计记录在数据库中的表示。
type StockMovementModel struct {
	ID          string `gorm:"primaryKey;size:36"`
	ProductID   string `gorm:"index;size:64"`
	WarehouseID string `gorm:"size:64"`
	Type        string `gorm:"size:16"`
	Quantity    int
	OnHandAfter int
	Reference   string `gorm:"size:64"`
	CreatedAt   time.Time `gorm:"index"`
}

func (StockMovementModel) TableName() string {
	return "stock_movements"
}
