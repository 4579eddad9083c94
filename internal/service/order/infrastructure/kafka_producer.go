// internal/service/order/infrastructure/kafka_producer.go
package infrastructure

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"

	"backoffice/internal/pkg/mq"
	"backoffice/internal/service/order/domain"
)

// OrderRequestProducerAdapter 把下单请求发到 order-requests 主题。
// Key 取 userID，同一用户的请求保序。
type OrderRequestProducerAdapter struct {
	writer *kafka.Writer
}

func NewOrderRequestProducerAdapter(writer *kafka.Writer) *OrderRequestProducerAdapter {
	return &OrderRequestProducerAdapter{writer: writer}
}

func (p *OrderRequestProducerAdapter) Publish(ctx context.Context, event *domain.OrderRequestedEvent) error {
	eventBytes, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return mq.ProduceMessage(ctx, p.writer, []byte(event.UserID), eventBytes)
}
