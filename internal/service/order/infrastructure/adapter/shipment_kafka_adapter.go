package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"backoffice/internal/pkg/mq"
	"backoffice/internal/service/order/domain"
)

// ShipmentKafkaAdapter 实现了 port.ShipmentRequester 接口。
// 发货时按供货仓把订单拆成若干包裹请求，每个仓一条消息。
type ShipmentKafkaAdapter struct {
	writer *kafka.Writer
}

func NewShipmentKafkaAdapter(writer *kafka.Writer) *ShipmentKafkaAdapter {
	return &ShipmentKafkaAdapter{writer: writer}
}

func (a *ShipmentKafkaAdapter) RequestShipments(ctx context.Context, order *domain.Order) error {
	byWarehouse := make(map[string][]domain.ShipmentItem)
	for _, line := range order.Lines {
		byWarehouse[line.WarehouseID] = append(byWarehouse[line.WarehouseID], domain.ShipmentItem{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
		})
	}

	for warehouseID, items := range byWarehouse {
		event := domain.ShipmentRequestedEvent{
			OrderID:         order.ID,
			WarehouseID:     warehouseID,
			ShippingAddress: order.ShippingAddress,
			Items:           items,
			At:              time.Now(),
		}
		eventBytes, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("failed to marshal shipment event: %w", err)
		}
		// Key 取仓库ID，同一仓库的履约请求保序
		if err := mq.ProduceMessage(ctx, a.writer, []byte(warehouseID), eventBytes); err != nil {
			return err
		}
	}
	return nil
}

// Close 关闭底层的 Kafka writer。
func (a *ShipmentKafkaAdapter) Close() error {
	return a.writer.Close()
}
