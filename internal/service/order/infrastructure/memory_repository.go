// internal/service/order/infrastructure/memory_repository.go
package infrastructure

import (
	"context"
	"sync"

	"backoffice/internal/service/order/domain"
)

// MemoryOrderRepository 是 OrderRepository 的进程内实现，测试用。
type MemoryOrderRepository struct {
	mu     sync.RWMutex
	orders map[string]*domain.Order
}

func NewMemoryOrderRepository() *MemoryOrderRepository {
	return &MemoryOrderRepository{orders: make(map[string]*domain.Order)}
}

func (r *MemoryOrderRepository) Save(ctx context.Context, order *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *order
	copied.Lines = append([]domain.OrderLine(nil), order.Lines...)
	r.orders[order.ID] = &copied
	return nil
}

func (r *MemoryOrderRepository) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	order, ok := r.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return cloneOrder(order), nil
}

func (r *MemoryOrderRepository) FindByNumber(ctx context.Context, number string) (*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, order := range r.orders {
		if order.Number == number {
			return cloneOrder(order), nil
		}
	}
	return nil, domain.ErrOrderNotFound
}

func cloneOrder(order *domain.Order) *domain.Order {
	copied := *order
	copied.Lines = append([]domain.OrderLine(nil), order.Lines...)
	return &copied
}
