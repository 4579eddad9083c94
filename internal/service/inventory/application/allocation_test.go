package application

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.opentelemetry.io/otel/trace/noop"

	"backoffice/internal/service/inventory/domain"
	"backoffice/internal/service/inventory/infrastructure"
)

func newEngineFixture(t *testing.T, policy domain.SelectionPolicy) (*AllocationEngine, *infrastructure.MemoryStockRepository, *infrastructure.MemoryWarehouseRepository) {
	t.Helper()
	stockRepo := infrastructure.NewMemoryStockRepository()
	warehouseRepo := infrastructure.NewMemoryWarehouseRepository()
	tracer := noop.NewTracerProvider().Tracer("test")
	ledger := NewStockLedgerService(stockRepo, warehouseRepo, infrastructure.NoopLocker{}, nil, nil, tracer)
	engine := NewAllocationEngine(stockRepo, warehouseRepo, ledger, policy, tracer)
	return engine, stockRepo, warehouseRepo
}

func reservedOf(t *testing.T, repo *infrastructure.MemoryStockRepository, product, warehouse string) int {
	t.Helper()
	rec, err := repo.Get(context.Background(), domain.ProductID(product), domain.WarehouseID(warehouse))
	if err != nil {
		t.Fatalf("get %s/%s: %v", product, warehouse, err)
	}
	return rec.Reserved
}

func TestAllocatePrefersMostAvailableThenID(t *testing.T) {
	engine, stockRepo, warehouseRepo := newEngineFixture(t, nil)
	addWarehouse(t, warehouseRepo, "W1", true)
	addWarehouse(t, warehouseRepo, "W2", true)
	addWarehouse(t, warehouseRepo, "W3", true)
	addStock(t, stockRepo, "P1", "W1", 5, 0)
	addStock(t, stockRepo, "P1", "W2", 9, 0)
	addStock(t, stockRepo, "P1", "W3", 9, 0)

	allocations, err := engine.Allocate(context.Background(), []Demand{{ProductID: "P1", Quantity: 3}})
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	// W2 和 W3 同为可用量最大，ID 升序取 W2
	if len(allocations) != 1 || allocations[0].WarehouseID != "W2" {
		t.Fatalf("allocations = %+v, want single line from W2", allocations)
	}
	if got := reservedOf(t, stockRepo, "P1", "W2"); got != 3 {
		t.Fatalf("W2 reserved = %d, want 3", got)
	}
}

func TestAllocateIsDeterministic(t *testing.T) {
	for i := 0; i < 5; i++ {
		engine, stockRepo, warehouseRepo := newEngineFixture(t, nil)
		addWarehouse(t, warehouseRepo, "W1", true)
		addWarehouse(t, warehouseRepo, "W2", true)
		addStock(t, stockRepo, "P1", "W1", 4, 0)
		addStock(t, stockRepo, "P1", "W2", 4, 0)

		allocations, err := engine.Allocate(context.Background(), []Demand{{ProductID: "P1", Quantity: 2}})
		if err != nil {
			t.Fatalf("Allocate failed: %v", err)
		}
		if allocations[0].WarehouseID != "W1" {
			t.Fatalf("run %d chose %s, want W1 every time", i, allocations[0].WarehouseID)
		}
	}
}

func TestAllocateWholeLineFromSingleWarehouse(t *testing.T) {
	engine, stockRepo, warehouseRepo := newEngineFixture(t, nil)
	addWarehouse(t, warehouseRepo, "W1", true)
	addWarehouse(t, warehouseRepo, "W2", true)
	addStock(t, stockRepo, "P1", "W1", 6, 0)
	addStock(t, stockRepo, "P1", "W2", 5, 0)

	// 合计 11 但没有单仓能整行供 10：整单失败，不做拆仓
	_, err := engine.Allocate(context.Background(), []Demand{{ProductID: "P1", Quantity: 10}})
	var insufficient *domain.InsufficientStockError
	if !errors.As(err, &insufficient) {
		t.Fatalf("got %v, want InsufficientStockError", err)
	}
	if insufficient.Available != 11 || insufficient.Requested != 10 {
		t.Fatalf("error payload: %+v", insufficient)
	}
	if reservedOf(t, stockRepo, "P1", "W1") != 0 || reservedOf(t, stockRepo, "P1", "W2") != 0 {
		t.Fatal("failed allocation left reservations behind")
	}
}

func TestAllocateAllOrNothing(t *testing.T) {
	engine, stockRepo, warehouseRepo := newEngineFixture(t, nil)
	addWarehouse(t, warehouseRepo, "W1", true)
	addStock(t, stockRepo, "P1", "W1", 10, 0)
	addStock(t, stockRepo, "P2", "W1", 1, 0)

	demands := []Demand{
		{ProductID: "P1", Quantity: 5},
		{ProductID: "P2", Quantity: 3}, // 无法满足
	}
	_, err := engine.Allocate(context.Background(), demands)
	var insufficient *domain.InsufficientStockError
	if !errors.As(err, &insufficient) {
		t.Fatalf("got %v, want InsufficientStockError", err)
	}
	// 按输入顺序第一个无法满足的商品
	if insufficient.ProductID != "P2" {
		t.Fatalf("failing product = %s, want P2", insufficient.ProductID)
	}
	// P1 不能有残留预占
	if got := reservedOf(t, stockRepo, "P1", "W1"); got != 0 {
		t.Fatalf("P1 reserved = %d after failed allocation, want 0", got)
	}
}

func TestAllocateSkipsInactiveWarehouses(t *testing.T) {
	engine, stockRepo, warehouseRepo := newEngineFixture(t, nil)
	addWarehouse(t, warehouseRepo, "W1", false)
	addWarehouse(t, warehouseRepo, "W2", true)
	addStock(t, stockRepo, "P1", "W1", 100, 0)
	addStock(t, stockRepo, "P1", "W2", 5, 0)

	allocations, err := engine.Allocate(context.Background(), []Demand{{ProductID: "P1", Quantity: 5}})
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	if allocations[0].WarehouseID != "W2" {
		t.Fatalf("allocated from %s, want W2 (W1 is inactive)", allocations[0].WarehouseID)
	}
}

func TestAllocateEmptyDemands(t *testing.T) {
	engine, _, _ := newEngineFixture(t, nil)
	if _, err := engine.Allocate(context.Background(), nil); !errors.Is(err, domain.ErrEmptyDemands) {
		t.Fatalf("got %v, want ErrEmptyDemands", err)
	}
}

func TestAllocateConcurrentSingleWinner(t *testing.T) {
	engine, stockRepo, warehouseRepo := newEngineFixture(t, nil)
	addWarehouse(t, warehouseRepo, "W1", true)
	addStock(t, stockRepo, "P1", "W1", 10, 0)

	// 两个并发订单各要 8，库存只够其中一个
	const workers = 2
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = engine.Allocate(context.Background(), []Demand{{ProductID: "P1", Quantity: 8}})
		}()
	}
	wg.Wait()

	var succeeded, failed int
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else if domain.IsInsufficientStock(err) {
			failed++
		} else {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 || failed != 1 {
		t.Fatalf("succeeded=%d failed=%d, want exactly one winner", succeeded, failed)
	}
	if got := reservedOf(t, stockRepo, "P1", "W1"); got != 8 {
		t.Fatalf("reserved = %d, want 8", got)
	}
}

// stubPolicy 把指定仓库排到最前面。
type stubPolicy struct {
	preferred domain.WarehouseID
	fail      bool
}

func (p *stubPolicy) Rank(ctx context.Context, productID domain.ProductID, candidates []domain.Candidate) ([]domain.Candidate, error) {
	if p.fail {
		return nil, errors.New("policy backend unavailable")
	}
	ranked := make([]domain.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Warehouse.ID == p.preferred {
			ranked = append([]domain.Candidate{c}, ranked...)
		} else {
			ranked = append(ranked, c)
		}
	}
	return ranked, nil
}

func TestAllocateHonorsSelectionPolicy(t *testing.T) {
	engine, stockRepo, warehouseRepo := newEngineFixture(t, &stubPolicy{preferred: "W2"})
	addWarehouse(t, warehouseRepo, "W1", true)
	addWarehouse(t, warehouseRepo, "W2", true)
	addStock(t, stockRepo, "P1", "W1", 100, 0)
	addStock(t, stockRepo, "P1", "W2", 5, 0)

	allocations, err := engine.Allocate(context.Background(), []Demand{{ProductID: "P1", Quantity: 5}})
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	if allocations[0].WarehouseID != "W2" {
		t.Fatalf("policy ignored: allocated from %s", allocations[0].WarehouseID)
	}
}

func TestAllocateFallsBackWhenPolicyFails(t *testing.T) {
	engine, stockRepo, warehouseRepo := newEngineFixture(t, &stubPolicy{fail: true})
	addWarehouse(t, warehouseRepo, "W1", true)
	addWarehouse(t, warehouseRepo, "W2", true)
	addStock(t, stockRepo, "P1", "W1", 3, 0)
	addStock(t, stockRepo, "P1", "W2", 9, 0)

	allocations, err := engine.Allocate(context.Background(), []Demand{{ProductID: "P1", Quantity: 2}})
	if err != nil {
		t.Fatalf("Allocate must fall back to default order: %v", err)
	}
	if allocations[0].WarehouseID != "W2" {
		t.Fatalf("fallback order wrong: got %s, want W2", allocations[0].WarehouseID)
	}
}
