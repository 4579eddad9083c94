package saga

import (
	"fmt"

	"backoffice/internal/service/order/domain"
)

// PersistOrderHandler 负责把预占完成的订单落库。
type PersistOrderHandler struct {
	NextHandler
	repo domain.OrderRepository
}

func NewPersistOrderHandler(repo domain.OrderRepository) *PersistOrderHandler {
	return &PersistOrderHandler{repo: repo}
}

func (h *PersistOrderHandler) Handle(orderCtx *OrderContext) error {
	ctx, span := orderCtx.Tracer.Start(orderCtx.Ctx, "saga.PersistOrder")
	defer span.End()

	if err := h.repo.Save(ctx, orderCtx.Order); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to save placed order: %w", err)
	}
	span.AddEvent("placed order saved")

	return h.executeNext(orderCtx)
}
