package application_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel/trace/noop"

	. "backoffice/internal/service/order/application"

	invapp "backoffice/internal/service/inventory/application"
	invdomain "backoffice/internal/service/inventory/domain"
	invinfra "backoffice/internal/service/inventory/infrastructure"
	"backoffice/internal/service/order/domain"
	"backoffice/internal/service/order/infrastructure"
	"backoffice/internal/service/order/infrastructure/adapter"
)

// stubNotifier 收集通知事件，不外发。
type stubNotifier struct {
	sent []domain.LifecycleEvent
}

func (n *stubNotifier) SendOrderStatusChanged(ctx context.Context, order *domain.Order, event domain.LifecycleEvent) error {
	n.sent = append(n.sent, event)
	return nil
}

type orderFixture struct {
	svc       *OrderApplicationService
	stockRepo *invinfra.MemoryStockRepository
	orderRepo *infrastructure.MemoryOrderRepository
	notifier  *stubNotifier
}

// newOrderFixture 把订单应用层接在内存库存栈上，进程内闭环。
func newOrderFixture(t *testing.T) *orderFixture {
	t.Helper()
	tracer := noop.NewTracerProvider().Tracer("test")

	stockRepo := invinfra.NewMemoryStockRepository()
	warehouseRepo := invinfra.NewMemoryWarehouseRepository()
	ledger := invapp.NewStockLedgerService(stockRepo, warehouseRepo, invinfra.NoopLocker{}, nil, nil, tracer)
	engine := invapp.NewAllocationEngine(stockRepo, warehouseRepo, ledger, nil, tracer)

	seedWarehouse(t, warehouseRepo, "W1")
	seedWarehouse(t, warehouseRepo, "W2")
	seedStock(t, stockRepo, "P1", "W1", 10)
	seedStock(t, stockRepo, "P2", "W2", 5)

	allocator := adapter.NewAllocationLocalAdapter(engine, ledger)
	orderRepo := infrastructure.NewMemoryOrderRepository()
	notifier := &stubNotifier{}

	svc := NewOrderApplicationService(orderRepo, 5*time.Second, tracer, nil, allocator, allocator, nil, notifier)
	return &orderFixture{svc: svc, stockRepo: stockRepo, orderRepo: orderRepo, notifier: notifier}
}

func seedWarehouse(t *testing.T, repo *invinfra.MemoryWarehouseRepository, id string) {
	t.Helper()
	if err := repo.Save(context.Background(), &invdomain.Warehouse{
		ID:     invdomain.WarehouseID(id),
		Name:   "仓库" + id,
		Active: true,
	}); err != nil {
		t.Fatalf("failed to save warehouse: %v", err)
	}
}

func seedStock(t *testing.T, repo *invinfra.MemoryStockRepository, product, warehouse string, onHand int) {
	t.Helper()
	if err := repo.Create(context.Background(), &invdomain.StockRecord{
		ProductID:   invdomain.ProductID(product),
		WarehouseID: invdomain.WarehouseID(warehouse),
		OnHand:      onHand,
	}); err != nil {
		t.Fatalf("failed to create stock: %v", err)
	}
}

func (f *orderFixture) stock(t *testing.T, product, warehouse string) *invdomain.StockRecord {
	t.Helper()
	rec, err := f.stockRepo.Get(context.Background(), invdomain.ProductID(product), invdomain.WarehouseID(warehouse))
	if err != nil {
		t.Fatalf("get stock %s/%s: %v", product, warehouse, err)
	}
	return rec
}

func placeRequest(number string) *PlaceOrderRequest {
	return &PlaceOrderRequest{
		OrderNumber:     number,
		UserID:          "user-1",
		ShippingAddress: "上海市浦东新区",
		Lines: []PlaceOrderLine{
			{ProductID: "P1", Quantity: 3, UnitPrice: 19.9},
			{ProductID: "P2", Quantity: 2, UnitPrice: 5.0},
		},
	}
}

func TestPlaceOrderReservesAndPersists(t *testing.T) {
	f := newOrderFixture(t)

	resp, err := f.svc.PlaceOrder(context.Background(), placeRequest("ON-1"))
	if err != nil {
		t.Fatalf("PlaceOrder failed: %v", err)
	}
	if resp.Status != domain.StatusPlaced {
		t.Fatalf("status = %s, want PLACED", resp.Status)
	}
	if want := 3*19.9 + 2*5.0; resp.TotalAmount != want {
		t.Fatalf("total = %v, want %v", resp.TotalAmount, want)
	}

	// 预占落在库存侧
	if rec := f.stock(t, "P1", "W1"); rec.Reserved != 3 || rec.OnHand != 10 {
		t.Fatalf("P1/W1 = onHand %d reserved %d, want 10/3", rec.OnHand, rec.Reserved)
	}
	if rec := f.stock(t, "P2", "W2"); rec.Reserved != 2 {
		t.Fatalf("P2/W2 reserved = %d, want 2", rec.Reserved)
	}

	// 订单持久化且每行已写回供货仓
	order, err := f.orderRepo.FindByID(context.Background(), resp.OrderID)
	if err != nil {
		t.Fatalf("order not persisted: %v", err)
	}
	for _, line := range order.Lines {
		if line.WarehouseID == "" {
			t.Fatalf("line %s has no warehouse assigned", line.ProductID)
		}
		if line.Reservation != domain.ReservationHeld {
			t.Fatalf("line %s reservation = %s, want HELD", line.ProductID, line.Reservation)
		}
	}
	if len(f.notifier.sent) != 1 {
		t.Fatalf("notifications sent = %d, want 1", len(f.notifier.sent))
	}
	if _, ok := f.notifier.sent[0].(*domain.OrderPlacedEvent); !ok {
		t.Fatalf("notification event = %T, want *OrderPlacedEvent", f.notifier.sent[0])
	}
}

func TestPlaceOrderIsIdempotentByNumber(t *testing.T) {
	f := newOrderFixture(t)

	first, err := f.svc.PlaceOrder(context.Background(), placeRequest("ON-1"))
	if err != nil {
		t.Fatalf("first placement failed: %v", err)
	}
	second, err := f.svc.PlaceOrder(context.Background(), placeRequest("ON-1"))
	if err != nil {
		t.Fatalf("duplicate placement failed: %v", err)
	}
	if second.OrderID != first.OrderID {
		t.Fatalf("duplicate created a new order: %s vs %s", second.OrderID, first.OrderID)
	}
	// 重复下单不能重复预占
	if rec := f.stock(t, "P1", "W1"); rec.Reserved != 3 {
		t.Fatalf("P1 reserved = %d after duplicate, want 3", rec.Reserved)
	}
}

func TestPlaceOrderInsufficientStockLeavesNothingBehind(t *testing.T) {
	f := newOrderFixture(t)

	req := placeRequest("ON-1")
	req.Lines[1].Quantity = 99 // P2 只有 5 件

	_, err := f.svc.PlaceOrder(context.Background(), req)
	if !invdomain.IsInsufficientStock(err) {
		t.Fatalf("got %v, want InsufficientStockError", err)
	}

	// 整单失败：不留订单、不留预占
	if _, err := f.orderRepo.FindByNumber(context.Background(), "ON-1"); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("failed order was persisted: %v", err)
	}
	if rec := f.stock(t, "P1", "W1"); rec.Reserved != 0 {
		t.Fatalf("P1 reserved = %d after failed placement, want 0", rec.Reserved)
	}
	if rec := f.stock(t, "P2", "W2"); rec.Reserved != 0 {
		t.Fatalf("P2 reserved = %d after failed placement, want 0", rec.Reserved)
	}
}

func TestShipOrderConfirmsReservations(t *testing.T) {
	f := newOrderFixture(t)
	resp, err := f.svc.PlaceOrder(context.Background(), placeRequest("ON-1"))
	if err != nil {
		t.Fatalf("PlaceOrder failed: %v", err)
	}
	if err := f.svc.ConfirmOrder(context.Background(), resp.OrderID); err != nil {
		t.Fatalf("ConfirmOrder failed: %v", err)
	}

	if err := f.svc.ShipOrder(context.Background(), resp.OrderID); err != nil {
		t.Fatalf("ShipOrder failed: %v", err)
	}

	// 预占转实际出库：在库减少，预占清零
	if rec := f.stock(t, "P1", "W1"); rec.OnHand != 7 || rec.Reserved != 0 {
		t.Fatalf("P1/W1 = onHand %d reserved %d, want 7/0", rec.OnHand, rec.Reserved)
	}
	if rec := f.stock(t, "P2", "W2"); rec.OnHand != 3 || rec.Reserved != 0 {
		t.Fatalf("P2/W2 = onHand %d reserved %d, want 3/0", rec.OnHand, rec.Reserved)
	}

	order, _ := f.orderRepo.FindByID(context.Background(), resp.OrderID)
	if order.Status != domain.StatusShipped {
		t.Fatalf("status = %s, want SHIPPED", order.Status)
	}
	for _, line := range order.Lines {
		if line.Reservation != domain.ReservationConfirmed {
			t.Fatalf("line %s reservation = %s, want CONFIRMED", line.ProductID, line.Reservation)
		}
	}
}

func TestShipFromPlacedRejected(t *testing.T) {
	f := newOrderFixture(t)
	resp, err := f.svc.PlaceOrder(context.Background(), placeRequest("ON-1"))
	if err != nil {
		t.Fatalf("PlaceOrder failed: %v", err)
	}

	err = f.svc.ShipOrder(context.Background(), resp.OrderID)
	var stateErr *domain.InvalidOrderStateError
	if !errors.As(err, &stateErr) {
		t.Fatalf("got %v, want InvalidOrderStateError", err)
	}
	// 非法状态下库存不能被动过
	if rec := f.stock(t, "P1", "W1"); rec.OnHand != 10 || rec.Reserved != 3 {
		t.Fatalf("P1/W1 mutated: onHand %d reserved %d", rec.OnHand, rec.Reserved)
	}
}

func TestCancelOrderReleasesReservations(t *testing.T) {
	f := newOrderFixture(t)
	resp, err := f.svc.PlaceOrder(context.Background(), placeRequest("ON-1"))
	if err != nil {
		t.Fatalf("PlaceOrder failed: %v", err)
	}

	if err := f.svc.CancelOrder(context.Background(), resp.OrderID, "买家取消"); err != nil {
		t.Fatalf("CancelOrder failed: %v", err)
	}

	// 预占全部退回可用，在库不变
	if rec := f.stock(t, "P1", "W1"); rec.OnHand != 10 || rec.Reserved != 0 {
		t.Fatalf("P1/W1 = onHand %d reserved %d, want 10/0", rec.OnHand, rec.Reserved)
	}
	if rec := f.stock(t, "P2", "W2"); rec.Reserved != 0 {
		t.Fatalf("P2/W2 reserved = %d, want 0", rec.Reserved)
	}

	order, _ := f.orderRepo.FindByID(context.Background(), resp.OrderID)
	if order.Status != domain.StatusCancelled || order.CancelReason != "买家取消" {
		t.Fatalf("order = %s / %q", order.Status, order.CancelReason)
	}
}

func TestCancelAfterShipRejected(t *testing.T) {
	f := newOrderFixture(t)
	resp, err := f.svc.PlaceOrder(context.Background(), placeRequest("ON-1"))
	if err != nil {
		t.Fatalf("PlaceOrder failed: %v", err)
	}
	f.svc.ConfirmOrder(context.Background(), resp.OrderID)
	if err := f.svc.ShipOrder(context.Background(), resp.OrderID); err != nil {
		t.Fatalf("ShipOrder failed: %v", err)
	}

	err = f.svc.CancelOrder(context.Background(), resp.OrderID, "too late")
	var stateErr *domain.InvalidOrderStateError
	if !errors.As(err, &stateErr) {
		t.Fatalf("got %v, want InvalidOrderStateError", err)
	}
	if stateErr.Current != domain.StatusShipped {
		t.Fatalf("error payload: %+v", stateErr)
	}
	// 已出库的库存不能被回滚
	if rec := f.stock(t, "P1", "W1"); rec.OnHand != 7 || rec.Reserved != 0 {
		t.Fatalf("P1/W1 mutated: onHand %d reserved %d", rec.OnHand, rec.Reserved)
	}
}

func TestDeliverCompletesLifecycle(t *testing.T) {
	f := newOrderFixture(t)
	resp, err := f.svc.PlaceOrder(context.Background(), placeRequest("ON-1"))
	if err != nil {
		t.Fatalf("PlaceOrder failed: %v", err)
	}
	f.svc.ConfirmOrder(context.Background(), resp.OrderID)
	f.svc.ShipOrder(context.Background(), resp.OrderID)
	if err := f.svc.DeliverOrder(context.Background(), resp.OrderID); err != nil {
		t.Fatalf("DeliverOrder failed: %v", err)
	}

	order, _ := f.orderRepo.FindByID(context.Background(), resp.OrderID)
	if order.Status != domain.StatusDelivered {
		t.Fatalf("status = %s, want DELIVERED", order.Status)
	}
	// PLACED + CONFIRMED + SHIPPED + DELIVERED
	if len(f.notifier.sent) != 4 {
		t.Fatalf("notifications = %v, want 4 entries", f.notifier.sent)
	}
	want := []domain.Status{domain.StatusPlaced, domain.StatusConfirmed, domain.StatusShipped, domain.StatusDelivered}
	for i, event := range f.notifier.sent {
		if event.Kind() != want[i] {
			t.Fatalf("notification %d = %s, want %s", i, event.Kind(), want[i])
		}
	}
}

func TestGetOrderNotFound(t *testing.T) {
	f := newOrderFixture(t)
	if _, err := f.svc.GetOrder(context.Background(), "missing"); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("got %v, want ErrOrderNotFound", err)
	}
}
