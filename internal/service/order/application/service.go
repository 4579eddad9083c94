// internal/service/order/application/service.go
package application

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"backoffice/internal/service/order/application/saga"
	"backoffice/internal/service/order/domain"
	"backoffice/internal/service/order/port"
)

// OrderApplicationService 编排订单的完整生命周期：
// 下单（分配库存）、确认、发货（预占转出库）、签收、取消（释放预占）。
type OrderApplicationService struct {
	orderRepo         domain.OrderRepository
	processingTimeout time.Duration
	tracer            trace.Tracer

	requestProducer port.OrderRequestProducer // 可为 nil，异步下单入口才需要

	allocator    port.AllocationService
	reservations port.ReservationOps
	shipper      port.ShipmentRequester
	notifier     port.NotificationProducer
}

func NewOrderApplicationService(
	orderRepo domain.OrderRepository,
	processingTimeout time.Duration,
	tracer trace.Tracer,
	requestProducer port.OrderRequestProducer,
	allocator port.AllocationService,
	reservations port.ReservationOps,
	shipper port.ShipmentRequester,
	notifier port.NotificationProducer,
) *OrderApplicationService {
	return &OrderApplicationService{
		orderRepo: orderRepo, processingTimeout: processingTimeout,
		tracer: tracer, requestProducer: requestProducer,
		allocator: allocator, reservations: reservations,
		shipper: shipper, notifier: notifier,
	}
}

// PlaceOrder 是下单用例：分配库存、写回供货仓、落库、通知。
// 用 OrderNumber 做幂等：重复下单直接返回已存在的订单，不重复预占。
func (s *OrderApplicationService) PlaceOrder(ctx context.Context, req *PlaceOrderRequest) (*PlaceOrderResponse, error) {
	ctx, span := s.tracer.Start(ctx, "app.PlaceOrder")
	defer span.End()
	span.SetAttributes(
		attribute.String("order.number", req.OrderNumber),
		attribute.String("user.id", req.UserID),
	)

	processingCtx, cancel := context.WithTimeout(ctx, s.processingTimeout)
	defer cancel()

	if req.OrderNumber != "" {
		existing, err := s.orderRepo.FindByNumber(processingCtx, req.OrderNumber)
		if err == nil {
			span.AddEvent("duplicate order number, returning existing order")
			return toResponse(existing), nil
		}
		if !errors.Is(err, domain.ErrOrderNotFound) {
			span.RecordError(err)
			return nil, err
		}
	}

	lines := make([]domain.OrderLine, 0, len(req.Lines))
	for _, l := range req.Lines {
		lines = append(lines, domain.OrderLine{
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
		})
	}
	order, placed, err := domain.NewOrder(uuid.New().String(), req.OrderNumber, req.UserID, req.ShippingAddress, lines)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to create order entity")
		return nil, err
	}

	orderContext := &saga.OrderContext{
		Ctx:          processingCtx,
		Order:        order,
		Placed:       placed,
		Tracer:       s.tracer,
		Allocator:    s.allocator,
		Reservations: s.reservations,
		Notifier:     s.notifier,
	}

	log.Info().Str("order", order.ID).Str("user", req.UserID).Msg("starting order placement")

	if err := s.buildPlacementChain().Handle(orderContext); err != nil {
		log.Error().Err(err).Str("order", order.ID).Msg("order placement chain failed, compensation triggered")
		span.RecordError(err)
		span.SetStatus(codes.Error, "order placement failed")
		orderContext.TriggerCompensation(processingCtx)
		return nil, err
	}

	log.Info().Str("order", order.ID).Msg("order placed, all lines reserved")
	span.AddEvent("order placed")
	return toResponse(order), nil
}

// RequestOrderPlacement 是异步下单入口：把请求发进队列后立即返回。
func (s *OrderApplicationService) RequestOrderPlacement(ctx context.Context, req *PlaceOrderRequest) (string, error) {
	ctx, span := s.tracer.Start(ctx, "app.RequestOrderPlacement")
	defer span.End()

	event := req.ToOrderRequestedEvent()
	event.EventID = uuid.New().String()
	event.TraceID = span.SpanContext().TraceID().String()

	if err := s.requestProducer.Publish(ctx, event); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to enqueue order request")
		return "", err
	}
	span.AddEvent("order request enqueued")
	return event.EventID, nil
}

// HandleOrderRequestEvent 是队列消费侧的入口，由 Kafka 适配器调用。
func (s *OrderApplicationService) HandleOrderRequestEvent(ctx context.Context, event *domain.OrderRequestedEvent) error {
	ctx, span := s.tracer.Start(ctx, "app.HandleOrderRequestEvent", trace.WithSpanKind(trace.SpanKindConsumer))
	defer span.End()
	span.SetAttributes(attribute.String("event.id", event.EventID))

	_, err := s.PlaceOrder(ctx, ToPlaceOrderRequest(event))
	return err
}

// GetOrder 查询单个订单。
func (s *OrderApplicationService) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	return s.orderRepo.FindByID(ctx, orderID)
}

// ConfirmOrder 商家确认订单，库存侧不发生任何变化。
func (s *OrderApplicationService) ConfirmOrder(ctx context.Context, orderID string) error {
	ctx, span := s.tracer.Start(ctx, "app.ConfirmOrder")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", orderID))

	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		span.RecordError(err)
		return err
	}
	event, err := order.Confirm()
	if err != nil {
		span.RecordError(err)
		return err
	}
	if err := s.orderRepo.Save(ctx, order); err != nil {
		span.RecordError(err)
		return err
	}
	s.notify(ctx, order, event)
	return nil
}

// ShipOrder 发货：先把每一行的预占确认为实际出库，再迁移状态。
// 状态校验在前，非法状态下不会动库存。
func (s *OrderApplicationService) ShipOrder(ctx context.Context, orderID string) error {
	ctx, span := s.tracer.Start(ctx, "app.ShipOrder")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", orderID))

	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		span.RecordError(err)
		return err
	}
	if !order.Status.CanTransitionTo(domain.StatusShipped) {
		err := &domain.InvalidOrderStateError{OrderID: orderID, Current: order.Status, Attempted: domain.StatusShipped}
		span.RecordError(err)
		return err
	}

	for _, line := range order.HeldLines() {
		if err := s.reservations.ConfirmLine(ctx, order.ID, line.ProductID, line.WarehouseID, line.Quantity); err != nil {
			// 部分行已出库、部分未出库是需要人工对账的状态，必须暴露
			log.Error().Err(err).
				Str("order", order.ID).
				Str("product", line.ProductID).
				Msg("CRITICAL: failed to confirm reservation during shipping")
			span.RecordError(err)
			span.SetStatus(codes.Error, "reservation confirm failed")
			return err
		}
	}

	event, err := order.Ship()
	if err != nil {
		span.RecordError(err)
		return err
	}
	if err := s.orderRepo.Save(ctx, order); err != nil {
		span.RecordError(err)
		return err
	}

	// 发给履约方的包裹请求失败不阻塞发货，后台任务会重发
	if s.shipper != nil {
		if err := s.shipper.RequestShipments(ctx, order); err != nil {
			log.Warn().Err(err).Str("order", order.ID).Msg("failed to request shipments")
			span.RecordError(err)
		}
	}
	s.notify(ctx, order, event)
	span.AddEvent("order shipped")
	return nil
}

// DeliverOrder 标记订单已签收。
func (s *OrderApplicationService) DeliverOrder(ctx context.Context, orderID string) error {
	ctx, span := s.tracer.Start(ctx, "app.DeliverOrder")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", orderID))

	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		span.RecordError(err)
		return err
	}
	event, err := order.Deliver()
	if err != nil {
		span.RecordError(err)
		return err
	}
	if err := s.orderRepo.Save(ctx, order); err != nil {
		span.RecordError(err)
		return err
	}
	s.notify(ctx, order, event)
	return nil
}

// CancelOrder 取消订单并释放仍持有的预占。
// 发货后的订单不能取消，走独立的售后流程。
func (s *OrderApplicationService) CancelOrder(ctx context.Context, orderID, reason string) error {
	ctx, span := s.tracer.Start(ctx, "app.CancelOrder")
	defer span.End()
	span.SetAttributes(
		attribute.String("order.id", orderID),
		attribute.String("cancel.reason", reason),
	)

	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		span.RecordError(err)
		return err
	}
	if !order.Status.CanTransitionTo(domain.StatusCancelled) {
		err := &domain.InvalidOrderStateError{OrderID: orderID, Current: order.Status, Attempted: domain.StatusCancelled}
		span.RecordError(err)
		return err
	}

	for _, line := range order.HeldLines() {
		if err := s.reservations.ReleaseLine(ctx, order.ID, line.ProductID, line.WarehouseID, line.Quantity); err != nil {
			// 释放失败记录严重错误但继续取消，残留预占由对账任务清理
			log.Error().Err(err).
				Str("order", order.ID).
				Str("product", line.ProductID).
				Msg("CRITICAL: failed to release reservation during cancellation")
			span.RecordError(err)
		}
	}

	event, err := order.Cancel(reason)
	if err != nil {
		span.RecordError(err)
		return err
	}
	if err := s.orderRepo.Save(ctx, order); err != nil {
		span.RecordError(err)
		return err
	}
	s.notify(ctx, order, event)
	span.AddEvent("order cancelled")
	return nil
}

func (s *OrderApplicationService) buildPlacementChain() saga.Handler {
	chain := new(saga.AllocationHandler)
	chain.
		SetNext(saga.NewPersistOrderHandler(s.orderRepo)).
		SetNext(new(saga.NotificationHandler))
	return chain
}

func (s *OrderApplicationService) notify(ctx context.Context, order *domain.Order, event domain.LifecycleEvent) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.SendOrderStatusChanged(ctx, order, event); err != nil {
		log.Warn().Err(err).Str("order", order.ID).Msg("failed to publish order notification")
	}
}
