package port

import (
	"context"

	"backoffice/internal/service/order/domain"
)

// OrderRequestProducer 把下单请求发到异步队列，由消费方执行下单用例。
type OrderRequestProducer interface {
	Publish(ctx context.Context, event *domain.OrderRequestedEvent) error
}
