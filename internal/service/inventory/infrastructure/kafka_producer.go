// internal/service/inventory/infrastructure/kafka_producer.go
package infrastructure

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"

	"backoffice/internal/pkg/mq"
	"backoffice/internal/service/inventory/domain"
)

// KafkaStockEventProducer 把台账变动事件发到 stock-events 主题。
// Key 取 productID，保证同一商品的事件落在同一分区保序。
type KafkaStockEventProducer struct {
	writer *kafka.Writer
}

func NewKafkaStockEventProducer(writer *kafka.Writer) *KafkaStockEventProducer {
	return &KafkaStockEventProducer{writer: writer}
}

func (p *KafkaStockEventProducer) PublishStockChanged(ctx context.Context, event *domain.StockChangedEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return mq.ProduceMessage(ctx, p.writer, []byte(event.ProductID), payload)
}
