// internal/service/order/infrastructure/kafka_consumer.go
package infrastructure

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"

	"backoffice/internal/pkg/mq"
	"backoffice/internal/service/order/application"
	"backoffice/internal/service/order/domain"
)

// OrderConsumerAdapter 是一个驱动适配器，监听下单请求主题并驱动应用服务。
type OrderConsumerAdapter struct {
	reader  *kafka.Reader
	appSvc  *application.OrderApplicationService
	wg      sync.WaitGroup
	stopped bool
}

// NewOrderConsumerAdapter 创建一个新的 Kafka 消费者适配器。
func NewOrderConsumerAdapter(reader *kafka.Reader, appSvc *application.OrderApplicationService) *OrderConsumerAdapter {
	return &OrderConsumerAdapter{
		reader: reader,
		appSvc: appSvc,
	}
}

// Start 开始监听。这是一个长期运行的方法。
func (a *OrderConsumerAdapter) Start(ctx context.Context) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		log.Info().Str("topic", a.reader.Config().Topic).Msg("order consumer adapter started")
		for {
			if a.stopped {
				return
			}
			// 用 FetchMessage 而不是 ReadMessage，以便显式控制 Offset 提交
			msg, err := a.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					log.Info().Msg("order consumer adapter shutting down")
					return
				}
				log.Error().Err(err).Msg("could not read message, retrying")
				time.Sleep(1 * time.Second) // 避免快速失败循环
				continue
			}

			a.processMessage(ctx, msg)

			if err := a.reader.CommitMessages(ctx, msg); err != nil {
				log.Error().Err(err).Msg("failed to commit messages")
			}
		}
	}()
}

// Stop 优雅地停止消费者。
func (a *OrderConsumerAdapter) Stop() {
	a.stopped = true
	a.reader.Close()
	a.wg.Wait()
	log.Info().Msg("order consumer adapter stopped")
}

// processMessage 反序列化消息并调用应用服务。
func (a *OrderConsumerAdapter) processMessage(parentCtx context.Context, msg kafka.Message) {
	var event domain.OrderRequestedEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		// 格式错误的消息重试也不会成功，记录后跳过
		log.Error().Err(err).Msg("failed to unmarshal order request event, message skipped")
		return
	}

	// 从消息头恢复追踪上下文，让消费侧的处理挂在下单请求的链路上
	headerCarrier := mq.KafkaHeaderCarrier(msg.Headers)
	ctx := otel.GetTextMapPropagator().Extract(parentCtx, &headerCarrier)

	if err := a.appSvc.HandleOrderRequestEvent(ctx, &event); err != nil {
		// 业务失败（例如库存不足）不重试，由调用方查询结果
		log.Error().Err(err).Str("event", event.EventID).Msg("failed to handle order request event")
	}
}
