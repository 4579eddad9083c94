package saga

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"backoffice/internal/service/order/port"
)

// AllocationHandler 负责整单库存分配步骤。
// 分配成功后把供货仓写回订单行，并注册逐行释放的补偿。
type AllocationHandler struct {
	NextHandler
}

func (h *AllocationHandler) Handle(orderCtx *OrderContext) error {
	ctx, span := orderCtx.Tracer.Start(orderCtx.Ctx, "saga.AllocateStock")
	defer span.End()

	order := orderCtx.Order
	demands := make([]port.Demand, 0, len(order.Lines))
	for _, line := range order.Lines {
		demands = append(demands, port.Demand{ProductID: line.ProductID, Quantity: line.Quantity})
	}
	span.SetAttributes(
		attribute.String("order.id", order.ID),
		attribute.Int("demands.count", len(demands)),
	)

	allocations, err := orderCtx.Allocator.Allocate(ctx, order.ID, demands)
	if err != nil {
		// 分配是全有或全无的，失败时库存侧没有任何残留，无需补偿
		span.RecordError(err)
		span.SetStatus(codes.Error, "stock allocation failed")
		return err
	}

	assignments := make(map[string]string, len(allocations))
	for _, a := range allocations {
		assignments[a.ProductID] = a.WarehouseID
	}
	order.AssignWarehouses(assignments)
	span.AddEvent("all lines reserved and warehouses assigned")

	// 后续步骤失败时释放本次预占
	orderCtx.AddCompensation(func(compCtx context.Context) {
		compCtx, compSpan := orderCtx.Tracer.Start(compCtx, "saga.compensation.ReleaseStock")
		defer compSpan.End()

		for _, a := range allocations {
			if err := orderCtx.Reservations.ReleaseLine(compCtx, order.ID, a.ProductID, a.WarehouseID, a.Quantity); err != nil {
				// 补偿失败需要人工介入，记录后继续释放其余行
				compSpan.RecordError(err)
			}
		}
	})

	return h.executeNext(orderCtx)
}
