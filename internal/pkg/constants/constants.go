// internal/pkg/constants/constants.go
package constants

// 注册到 Nacos 的服务名
const (
	InventoryService = "inventory-service"
	OrderService     = "order-service"
)

// 库存服务暴露的路径
const (
	InventoryAllocatePath  = "/allocate"
	InventoryReleasePath   = "/release_stock"
	InventoryConfirmPath   = "/confirm_stock"
	InventoryReplenishPath = "/replenish"
	InventoryAvailablePath = "/availability"
)

// Kafka 主题
const (
	OrderRequestsTopic    = "order-requests"
	NotificationsTopic    = "notifications"
	ShipmentRequestsTopic = "shipment-requests"
	StockEventsTopic      = "stock-events"
)
