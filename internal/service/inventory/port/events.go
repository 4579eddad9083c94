package port

import (
	"context"

	"backoffice/internal/service/inventory/domain"
)

// StockEventProducer 是库存变动事件的出站端口。
type StockEventProducer interface {
	// PublishStockChanged 广播一次台账变动。
	PublishStockChanged(ctx context.Context, event *domain.StockChangedEvent) error
}

// AvailabilityCache 是可用量查询的读穿缓存端口。
// Get 未命中时返回 (0, false, nil)。
type AvailabilityCache interface {
	Get(ctx context.Context, productID domain.ProductID) (int, bool, error)
	Set(ctx context.Context, productID domain.ProductID, available int) error
	Invalidate(ctx context.Context, productID domain.ProductID) error
}
