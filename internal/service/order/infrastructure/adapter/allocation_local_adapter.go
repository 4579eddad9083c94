package adapter

import (
	"context"

	invapp "backoffice/internal/service/inventory/application"
	invdomain "backoffice/internal/service/inventory/domain"
	"backoffice/internal/service/order/port"
)

// AllocationLocalAdapter 在单进程部署和测试里直接调用库存应用层，
// 不经过 HTTP。语义与 AllocationHTTPAdapter 完全一致。
type AllocationLocalAdapter struct {
	engine *invapp.AllocationEngine
	ledger *invapp.StockLedgerService
}

func NewAllocationLocalAdapter(engine *invapp.AllocationEngine, ledger *invapp.StockLedgerService) *AllocationLocalAdapter {
	return &AllocationLocalAdapter{engine: engine, ledger: ledger}
}

func (a *AllocationLocalAdapter) Allocate(ctx context.Context, orderID string, demands []port.Demand) ([]port.Allocation, error) {
	invDemands := make([]invapp.Demand, 0, len(demands))
	for _, d := range demands {
		invDemands = append(invDemands, invapp.Demand{
			ProductID: invdomain.ProductID(d.ProductID),
			Quantity:  d.Quantity,
		})
	}

	allocations, err := a.engine.Allocate(ctx, invDemands)
	if err != nil {
		return nil, err
	}

	result := make([]port.Allocation, 0, len(allocations))
	for _, alloc := range allocations {
		result = append(result, port.Allocation{
			ProductID:   alloc.ProductID.String(),
			WarehouseID: alloc.WarehouseID.String(),
			Quantity:    alloc.Quantity,
		})
	}
	return result, nil
}

func (a *AllocationLocalAdapter) ConfirmLine(ctx context.Context, orderID, productID, warehouseID string, qty int) error {
	return a.ledger.Confirm(ctx, invdomain.ProductID(productID), invdomain.WarehouseID(warehouseID), qty, orderID)
}

func (a *AllocationLocalAdapter) ReleaseLine(ctx context.Context, orderID, productID, warehouseID string, qty int) error {
	return a.ledger.Release(ctx, invdomain.ProductID(productID), invdomain.WarehouseID(warehouseID), qty, orderID)
}
