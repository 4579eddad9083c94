package adapter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"backoffice/internal/pkg/mq"
	"backoffice/internal/service/order/domain"
)

// NotificationKafkaAdapter 实现了 port.NotificationProducer 接口。
type NotificationKafkaAdapter struct {
	writer *kafka.Writer
}

// NewNotificationKafkaAdapter 创建一个新的通知生产者适配器。
func NewNotificationKafkaAdapter(writer *kafka.Writer) *NotificationKafkaAdapter {
	return &NotificationKafkaAdapter{writer: writer}
}

// SendOrderStatusChanged 把状态迁移事件发到 notifications 主题。
// Key 取 userID，同一用户的通知保序。
func (a *NotificationKafkaAdapter) SendOrderStatusChanged(ctx context.Context, order *domain.Order, lifecycle domain.LifecycleEvent) error {
	event := domain.OrderStatusChangedEvent{
		OrderID:     order.ID,
		OrderNumber: order.Number,
		UserID:      order.UserID,
		Status:      lifecycle.Kind(),
		TotalAmount: order.TotalAmount,
		At:          lifecycle.OccurredAt(),
	}
	if cancelled, ok := lifecycle.(*domain.OrderCancelledEvent); ok {
		event.Reason = cancelled.Reason
	}
	eventBytes, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal notification event: %w", err)
	}

	// mq.ProduceMessage 会自动把追踪上下文注入消息头
	return mq.ProduceMessage(ctx, a.writer, []byte(order.UserID), eventBytes)
}

// Close 关闭底层的 Kafka writer。
func (a *NotificationKafkaAdapter) Close() error {
	return a.writer.Close()
}
