// internal/service/order/infrastructure/models.go
package infrastructure

import "time"

// OrderModel 是订单主表的 gorm 模型。
type OrderModel struct {
	ID              string `gorm:"primaryKey;size:64"`
	Number          string `gorm:"size:64;uniqueIndex:uk_order_number"`
	UserID          string `gorm:"size:64;index:idx_user"`
	ShippingAddress string `gorm:"size:512"`
	TotalAmount     float64
	Status          string `gorm:"size:32;index:idx_status"`
	CancelReason    string `gorm:"size:255"`
	CreatedAt       time.Time
	UpdatedAt       time.Time

	Lines []OrderLineModel `gorm:"foreignKey:OrderID"`
}

func (OrderModel) TableName() string { return "orders" }

// OrderLineModel 是订单行表的 gorm 模型。
type OrderLineModel struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	OrderID     string `gorm:"size:64;index:idx_order"`
	ProductID   string `gorm:"size:64"`
	Quantity    int
	UnitPrice   float64
	WarehouseID string `gorm:"size:64"`
	Reservation string `gorm:"size:32"`
}

func (OrderLineModel) TableName() string { return "order_lines" }
