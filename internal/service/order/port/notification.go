package port

import (
	"context"

	"backoffice/internal/service/order/domain"
)

// NotificationProducer 是消息生产者的出站端口。
type NotificationProducer interface {
	// SendOrderStatusChanged 在订单状态迁移后通知用户，
	// event 是状态机返回的迁移事件。
	SendOrderStatusChanged(ctx context.Context, order *domain.Order, event domain.LifecycleEvent) error
}

// ShipmentRequester 是履约系统的出站端口。
// 发货时按供货仓把订单拆成若干包裹请求。
type ShipmentRequester interface {
	RequestShipments(ctx context.Context, order *domain.Order) error
}
