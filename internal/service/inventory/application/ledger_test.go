package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel/trace/noop"

	"backoffice/internal/service/inventory/domain"
	"backoffice/internal/service/inventory/infrastructure"
)

func newLedgerFixture(t *testing.T) (*StockLedgerService, *infrastructure.MemoryStockRepository, *infrastructure.MemoryWarehouseRepository) {
	t.Helper()
	stockRepo := infrastructure.NewMemoryStockRepository()
	warehouseRepo := infrastructure.NewMemoryWarehouseRepository()
	tracer := noop.NewTracerProvider().Tracer("test")
	ledger := NewStockLedgerService(stockRepo, warehouseRepo, infrastructure.NoopLocker{}, nil, nil, tracer)
	return ledger, stockRepo, warehouseRepo
}

func addWarehouse(t *testing.T, repo *infrastructure.MemoryWarehouseRepository, id string, active bool) {
	t.Helper()
	err := repo.Save(context.Background(), &domain.Warehouse{
		ID:        domain.WarehouseID(id),
		Name:      "仓库" + id,
		Active:    active,
		CreatedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("failed to save warehouse %s: %v", id, err)
	}
}

func addStock(t *testing.T, repo *infrastructure.MemoryStockRepository, product, warehouse string, onHand, reserved int) {
	t.Helper()
	err := repo.Create(context.Background(), &domain.StockRecord{
		ProductID:   domain.ProductID(product),
		WarehouseID: domain.WarehouseID(warehouse),
		OnHand:      onHand,
		Reserved:    reserved,
	})
	if err != nil {
		t.Fatalf("failed to create stock: %v", err)
	}
}

func TestGetAvailableSumsActiveWarehouses(t *testing.T) {
	ledger, stockRepo, warehouseRepo := newLedgerFixture(t)
	addWarehouse(t, warehouseRepo, "W1", true)
	addWarehouse(t, warehouseRepo, "W2", true)
	addWarehouse(t, warehouseRepo, "W3", false) // 停用仓
	addStock(t, stockRepo, "P1", "W1", 10, 2)
	addStock(t, stockRepo, "P1", "W2", 5, 0)
	addStock(t, stockRepo, "P1", "W3", 100, 0)

	available, err := ledger.GetAvailable(context.Background(), "P1")
	if err != nil {
		t.Fatalf("GetAvailable failed: %v", err)
	}
	// 停用仓的库存不计入可用量
	if available != 13 {
		t.Fatalf("available = %d, want 13", available)
	}
}

func TestGetAvailableBatch(t *testing.T) {
	ledger, stockRepo, warehouseRepo := newLedgerFixture(t)
	addWarehouse(t, warehouseRepo, "W1", true)
	addStock(t, stockRepo, "P1", "W1", 10, 0)
	addStock(t, stockRepo, "P2", "W1", 7, 3)

	result, err := ledger.GetAvailableBatch(context.Background(), []domain.ProductID{"P1", "P2", "P3"})
	if err != nil {
		t.Fatalf("GetAvailableBatch failed: %v", err)
	}
	if result["P1"] != 10 || result["P2"] != 4 || result["P3"] != 0 {
		t.Fatalf("batch result = %v", result)
	}
}

func TestReserveFailsExactlyWhenOverAvailable(t *testing.T) {
	ledger, stockRepo, warehouseRepo := newLedgerFixture(t)
	addWarehouse(t, warehouseRepo, "W1", true)
	addStock(t, stockRepo, "P1", "W1", 10, 0)

	ctx := context.Background()
	if err := ledger.Reserve(ctx, "P1", "W1", 10, "order-1"); err != nil {
		t.Fatalf("reserve up to available must succeed: %v", err)
	}

	err := ledger.Reserve(ctx, "P1", "W1", 1, "order-2")
	var insufficient *domain.InsufficientStockError
	if !errors.As(err, &insufficient) {
		t.Fatalf("reserve beyond available: got %v, want InsufficientStockError", err)
	}
	if insufficient.Available != 0 || insufficient.Requested != 1 {
		t.Fatalf("error payload: %+v", insufficient)
	}
}

func TestReserveUnknownRecord(t *testing.T) {
	ledger, _, warehouseRepo := newLedgerFixture(t)
	addWarehouse(t, warehouseRepo, "W1", true)

	err := ledger.Reserve(context.Background(), "P404", "W1", 1, "")
	if !errors.Is(err, domain.ErrStockNotFound) {
		t.Fatalf("reserve without record: got %v, want ErrStockNotFound", err)
	}
}

func TestConfirmThenReleaseRejected(t *testing.T) {
	ledger, stockRepo, warehouseRepo := newLedgerFixture(t)
	addWarehouse(t, warehouseRepo, "W1", true)
	addStock(t, stockRepo, "P1", "W1", 10, 0)

	ctx := context.Background()
	if err := ledger.Reserve(ctx, "P1", "W1", 4, "order-1"); err != nil {
		t.Fatalf("reserve failed: %v", err)
	}
	if err := ledger.Confirm(ctx, "P1", "W1", 4, "order-1"); err != nil {
		t.Fatalf("confirm failed: %v", err)
	}

	rec, err := stockRepo.Get(ctx, "P1", "W1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if rec.OnHand != 6 || rec.Reserved != 0 {
		t.Fatalf("after confirm: onHand=%d reserved=%d, want 6/0", rec.OnHand, rec.Reserved)
	}

	// 已确认的预占不能再释放
	if err := ledger.Release(ctx, "P1", "W1", 4, "order-1"); !domain.IsInvalidReservation(err) {
		t.Fatalf("release after confirm: got %v, want InvalidReservationError", err)
	}
}

func TestConfirmWritesOutboundMovement(t *testing.T) {
	ledger, stockRepo, warehouseRepo := newLedgerFixture(t)
	addWarehouse(t, warehouseRepo, "W1", true)
	addStock(t, stockRepo, "P1", "W1", 10, 0)

	ctx := context.Background()
	if err := ledger.Reserve(ctx, "P1", "W1", 3, "order-1"); err != nil {
		t.Fatalf("reserve failed: %v", err)
	}
	if err := ledger.Confirm(ctx, "P1", "W1", 3, "order-1"); err != nil {
		t.Fatalf("confirm failed: %v", err)
	}

	movements, err := ledger.ListMovements(ctx, "P1", 10)
	if err != nil {
		t.Fatalf("ListMovements failed: %v", err)
	}
	if len(movements) != 1 {
		t.Fatalf("got %d movements, want 1", len(movements))
	}
	m := movements[0]
	if m.Type != domain.MovementOutbound || m.Quantity != 3 || m.OnHandAfter != 7 || m.Reference != "order-1" {
		t.Fatalf("unexpected movement: %+v", m)
	}
}

func TestReplenish(t *testing.T) {
	ledger, stockRepo, warehouseRepo := newLedgerFixture(t)
	addWarehouse(t, warehouseRepo, "W1", true)

	ctx := context.Background()

	// 首次补货创建台账记录
	if err := ledger.Replenish(ctx, "W1", "P1", 20, "po-1"); err != nil {
		t.Fatalf("first replenish failed: %v", err)
	}
	rec, err := stockRepo.Get(ctx, "P1", "W1")
	if err != nil {
		t.Fatalf("record not created: %v", err)
	}
	if rec.OnHand != 20 || rec.Reserved != 0 {
		t.Fatalf("after first replenish: onHand=%d reserved=%d", rec.OnHand, rec.Reserved)
	}

	// 再次补货累加
	if err := ledger.Replenish(ctx, "W1", "P1", 5, "po-2"); err != nil {
		t.Fatalf("second replenish failed: %v", err)
	}
	rec, _ = stockRepo.Get(ctx, "P1", "W1")
	if rec.OnHand != 25 {
		t.Fatalf("after second replenish: onHand=%d, want 25", rec.OnHand)
	}

	movements, _ := ledger.ListMovements(ctx, "P1", 10)
	if len(movements) != 2 {
		t.Fatalf("got %d movements, want 2", len(movements))
	}
}

func TestReplenishUnknownWarehouse(t *testing.T) {
	ledger, _, _ := newLedgerFixture(t)
	err := ledger.Replenish(context.Background(), "W404", "P1", 10, "")
	if !errors.Is(err, domain.ErrWarehouseNotFound) {
		t.Fatalf("replenish to unknown warehouse: got %v, want ErrWarehouseNotFound", err)
	}
}
