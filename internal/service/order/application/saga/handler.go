package saga

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/trace"

	"backoffice/internal/service/order/domain"
	"backoffice/internal/service/order/port"

	"github.com/rs/zerolog/log"
)

// OrderContext 在下单 Saga 流程中传递上下文数据。
// 所有外部依赖都是抽象的出站端口。
type OrderContext struct {
	Ctx    context.Context
	Order  *domain.Order
	Placed *domain.OrderPlacedEvent
	Tracer trace.Tracer

	Allocator    port.AllocationService
	Reservations port.ReservationOps
	Notifier     port.NotificationProducer

	// 补偿函数后进先出：后注册的先执行
	compensations []func(ctx context.Context)
	compLock      sync.Mutex
}

// AddCompensation 注册一个补偿操作，插到队头实现 LIFO。
func (c *OrderContext) AddCompensation(comp func(ctx context.Context)) {
	c.compLock.Lock()
	defer c.compLock.Unlock()
	c.compensations = append([]func(context.Context){comp}, c.compensations...)
}

// TriggerCompensation 依次执行已注册的补偿操作。
func (c *OrderContext) TriggerCompensation(ctx context.Context) {
	c.compLock.Lock()
	defer c.compLock.Unlock()
	log.Info().Str("order", c.Order.ID).Int("count", len(c.compensations)).Msg("executing compensation functions")
	for _, comp := range c.compensations {
		comp(ctx)
	}
}

// Handler 是责任链节点。
type Handler interface {
	SetNext(handler Handler) Handler
	Handle(orderCtx *OrderContext) error
}

type NextHandler struct {
	next Handler
}

func (h *NextHandler) SetNext(handler Handler) Handler {
	h.next = handler
	return handler
}

func (h *NextHandler) executeNext(orderCtx *OrderContext) error {
	if h.next != nil {
		return h.next.Handle(orderCtx)
	}
	return nil
}
