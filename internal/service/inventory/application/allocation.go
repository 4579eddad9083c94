// internal/service/inventory/application/allocation.go
package application

import (
	"context"
	"sort"

	"backoffice/internal/service/inventory/domain"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Demand 是一行分配需求。
type Demand struct {
	ProductID domain.ProductID
	Quantity  int
}

// Allocation 是分配结果中的一行：该商品由哪个仓库整行供货。
type Allocation struct {
	ProductID   domain.ProductID
	WarehouseID domain.WarehouseID
	Quantity    int
}

// AllocationEngine 为一个订单的全部需求行选仓并预占库存。
// 两阶段协议：先对每个商品独立计算计划（不做任何预占），
// 全部可行后才逐条提交；提交途中任何一条失败，按后进先出
// 释放已预占的条目，整体返回库存不足。整个过程不持有全局锁。
type AllocationEngine struct {
	stockRepo     domain.StockRepository
	warehouseRepo domain.WarehouseRepository
	ledger        *StockLedgerService
	policy        domain.SelectionPolicy // 可为 nil
	tracer        trace.Tracer
}

func NewAllocationEngine(
	stockRepo domain.StockRepository,
	warehouseRepo domain.WarehouseRepository,
	ledger *StockLedgerService,
	policy domain.SelectionPolicy,
	tracer trace.Tracer,
) *AllocationEngine {
	return &AllocationEngine{
		stockRepo:     stockRepo,
		warehouseRepo: warehouseRepo,
		ledger:        ledger,
		policy:        policy,
		tracer:        tracer,
	}
}

// Allocate 执行整单分配。要么每一行都预占成功，要么一行都不预占。
// 失败时返回的 InsufficientStockError 指向按输入顺序第一个无法满足的商品。
func (e *AllocationEngine) Allocate(ctx context.Context, demands []Demand) ([]Allocation, error) {
	ctx, span := e.tracer.Start(ctx, "allocation.Allocate")
	defer span.End()
	span.SetAttributes(attribute.Int("demands.count", len(demands)))

	if len(demands) == 0 {
		return nil, domain.ErrEmptyDemands
	}
	for _, d := range demands {
		if d.Quantity <= 0 {
			return nil, domain.ErrInvalidQuantity
		}
	}

	warehouses, err := e.warehouseRepo.ListActive(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	active := make(map[domain.WarehouseID]domain.Warehouse, len(warehouses))
	for _, w := range warehouses {
		active[w.ID] = w
	}

	// 阶段一：按输入顺序为每个商品计算供货仓，不做任何预占。
	plan := make([]Allocation, 0, len(demands))
	for _, d := range demands {
		alloc, err := e.planProduct(ctx, d, active)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "allocation planning failed")
			return nil, err
		}
		plan = append(plan, alloc)
	}
	span.AddEvent("allocation plan computed")

	// 阶段二：逐条预占。计划与提交之间库存可能被并发订单抢走，
	// 此时回滚本批已预占的条目并整体失败。
	for i, alloc := range plan {
		if err := e.ledger.Reserve(ctx, alloc.ProductID, alloc.WarehouseID, alloc.Quantity, ""); err != nil {
			e.rollback(ctx, plan[:i])
			span.RecordError(err)
			span.SetStatus(codes.Error, "allocation commit failed, rolled back")
			return nil, err
		}
	}

	span.AddEvent("all demands reserved")
	return plan, nil
}

// planProduct 为单个商品选仓：整行必须由一个仓库供货。
func (e *AllocationEngine) planProduct(ctx context.Context, d Demand, active map[domain.WarehouseID]domain.Warehouse) (Allocation, error) {
	records, err := e.stockRepo.FindByProduct(ctx, d.ProductID)
	if err != nil {
		return Allocation{}, err
	}

	candidates := make([]domain.Candidate, 0, len(records))
	totalAvailable := 0
	for _, rec := range records {
		w, ok := active[rec.WarehouseID]
		if !ok {
			continue // 停用仓库不参与分配
		}
		available := rec.Available()
		if available <= 0 {
			continue
		}
		totalAvailable += available
		candidates = append(candidates, domain.Candidate{Warehouse: w, Available: available})
	}

	// 确定性基准排序：可用量降序，仓库ID升序打破平局。
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Available != candidates[j].Available {
			return candidates[i].Available > candidates[j].Available
		}
		return candidates[i].Warehouse.ID < candidates[j].Warehouse.ID
	})

	if e.policy != nil {
		ranked, err := e.policy.Rank(ctx, d.ProductID, candidates)
		if err != nil {
			// 策略故障退回基准排序，分配本身不受影响
			log.Warn().Err(err).Str("product", d.ProductID.String()).Msg("selection policy failed, using default order")
		} else {
			candidates = ranked
		}
	}

	// 优先整行单仓发货，避免把一行拆到多个包裹。
	// 没有任何一个仓能整行满足时，整单分配失败。
	for _, c := range candidates {
		if c.Available >= d.Quantity {
			return Allocation{
				ProductID:   d.ProductID,
				WarehouseID: c.Warehouse.ID,
				Quantity:    d.Quantity,
			}, nil
		}
	}

	return Allocation{}, &domain.InsufficientStockError{
		ProductID: d.ProductID,
		Available: totalAvailable,
		Requested: d.Quantity,
	}
}

// rollback 逆序释放本批已预占的条目。
// 释放失败记录严重错误但继续释放其余条目，不中断补偿。
func (e *AllocationEngine) rollback(ctx context.Context, committed []Allocation) {
	for i := len(committed) - 1; i >= 0; i-- {
		alloc := committed[i]
		if err := e.ledger.Release(ctx, alloc.ProductID, alloc.WarehouseID, alloc.Quantity, ""); err != nil {
			log.Error().Err(err).
				Str("product", alloc.ProductID.String()).
				Str("warehouse", alloc.WarehouseID.String()).
				Int("quantity", alloc.Quantity).
				Msg("CRITICAL: failed to roll back reservation")
		}
	}
}
