// internal/service/inventory/infrastructure/memory_repository.go
package infrastructure

import (
	"context"
	"sort"
	"sync"

	"backoffice/internal/service/inventory/domain"
)

// MemoryStockRepository 是 StockRepository 的进程内实现，
// 供单元测试和本地联调使用。互斥锁保证条件变更的原子性，
// 语义与数据库实现的条件 UPDATE 一致。
type MemoryStockRepository struct {
	mu        sync.Mutex
	records   map[string]*domain.StockRecord
	movements []domain.StockMovement
}

func NewMemoryStockRepository() *MemoryStockRepository {
	return &MemoryStockRepository{
		records: make(map[string]*domain.StockRecord),
	}
}

func stockKey(productID domain.ProductID, warehouseID domain.WarehouseID) string {
	return productID.String() + ":" + warehouseID.String()
}

func (r *MemoryStockRepository) Get(ctx context.Context, productID domain.ProductID, warehouseID domain.WarehouseID) (*domain.StockRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[stockKey(productID, warehouseID)]
	if !ok {
		return nil, domain.ErrStockNotFound
	}
	copied := *rec
	return &copied, nil
}

func (r *MemoryStockRepository) FindByProduct(ctx context.Context, productID domain.ProductID) ([]domain.StockRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.StockRecord
	for _, rec := range r.records {
		if rec.ProductID == productID {
			result = append(result, *rec)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].WarehouseID < result[j].WarehouseID
	})
	return result, nil
}

func (r *MemoryStockRepository) Reserve(ctx context.Context, productID domain.ProductID, warehouseID domain.WarehouseID, qty int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[stockKey(productID, warehouseID)]
	if !ok {
		return false, nil
	}
	if err := rec.Reserve(qty); err != nil {
		return false, nil
	}
	return true, nil
}

func (r *MemoryStockRepository) ConfirmReservation(ctx context.Context, productID domain.ProductID, warehouseID domain.WarehouseID, qty int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[stockKey(productID, warehouseID)]
	if !ok {
		return false, nil
	}
	if err := rec.ConfirmReservation(qty); err != nil {
		return false, nil
	}
	return true, nil
}

func (r *MemoryStockRepository) ReleaseReservation(ctx context.Context, productID domain.ProductID, warehouseID domain.WarehouseID, qty int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[stockKey(productID, warehouseID)]
	if !ok {
		return false, nil
	}
	if err := rec.ReleaseReservation(qty); err != nil {
		return false, nil
	}
	return true, nil
}

func (r *MemoryStockRepository) AddOnHand(ctx context.Context, productID domain.ProductID, warehouseID domain.WarehouseID, qty int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[stockKey(productID, warehouseID)]
	if !ok {
		return domain.ErrStockNotFound
	}
	return rec.AddOnHand(qty)
}

func (r *MemoryStockRepository) Create(ctx context.Context, record *domain.StockRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *record
	r.records[stockKey(record.ProductID, record.WarehouseID)] = &copied
	return nil
}

func (r *MemoryStockRepository) LogMovement(ctx context.Context, movement *domain.StockMovement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.movements = append(r.movements, *movement)
	return nil
}

func (r *MemoryStockRepository) ListMovements(ctx context.Context, productID domain.ProductID, limit int) ([]domain.StockMovement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.StockMovement
	for i := len(r.movements) - 1; i >= 0 && len(result) < limit; i-- {
		if r.movements[i].ProductID == productID {
			result = append(result, r.movements[i])
		}
	}
	return result, nil
}

// MemoryWarehouseRepository 是 WarehouseRepository 的进程内实现。
type MemoryWarehouseRepository struct {
	mu         sync.RWMutex
	warehouses map[domain.WarehouseID]*domain.Warehouse
}

func NewMemoryWarehouseRepository() *MemoryWarehouseRepository {
	return &MemoryWarehouseRepository{
		warehouses: make(map[domain.WarehouseID]*domain.Warehouse),
	}
}

func (r *MemoryWarehouseRepository) Get(ctx context.Context, id domain.WarehouseID) (*domain.Warehouse, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.warehouses[id]
	if !ok {
		return nil, domain.ErrWarehouseNotFound
	}
	copied := *w
	return &copied, nil
}

func (r *MemoryWarehouseRepository) ListActive(ctx context.Context) ([]domain.Warehouse, error) {
	return r.list(true)
}

func (r *MemoryWarehouseRepository) List(ctx context.Context) ([]domain.Warehouse, error) {
	return r.list(false)
}

func (r *MemoryWarehouseRepository) list(activeOnly bool) ([]domain.Warehouse, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.Warehouse
	for _, w := range r.warehouses {
		if activeOnly && !w.Active {
			continue
		}
		result = append(result, *w)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (r *MemoryWarehouseRepository) Save(ctx context.Context, warehouse *domain.Warehouse) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *warehouse
	r.warehouses[warehouse.ID] = &copied
	return nil
}

// NoopLocker 是 KeyLocker 的空实现，单实例部署和测试用。
type NoopLocker struct{}

func (NoopLocker) WithLock(resource string, fn func() error) error {
	return fn()
}
