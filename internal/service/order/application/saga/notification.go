package saga

import (
	"go.opentelemetry.io/otel/attribute"

	"github.com/rs/zerolog/log"
)

// NotificationHandler 是下单 Saga 的最后一步，通知用户下单成功。
type NotificationHandler struct {
	NextHandler
}

func (h *NotificationHandler) Handle(orderCtx *OrderContext) error {
	ctx, span := orderCtx.Tracer.Start(orderCtx.Ctx, "saga.Notification")
	defer span.End()

	span.SetAttributes(
		attribute.String("messaging.system", "kafka"),
		attribute.String("messaging.destination.topic", "notifications"),
	)

	// 通知失败是非关键路径的失败：订单已经创建成功，
	// 只记告警让流程正常结束，由监控和后台任务兜底。
	if err := orderCtx.Notifier.SendOrderStatusChanged(ctx, orderCtx.Order, orderCtx.Placed); err != nil {
		log.Warn().Err(err).Str("order", orderCtx.Order.ID).Msg("failed to publish order notification")
		span.RecordError(err)
	}

	span.AddEvent("order placement finalized")
	return h.executeNext(orderCtx)
}
