// internal/service/inventory/application/ledger.go
package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"backoffice/internal/service/inventory/domain"
	"backoffice/internal/service/inventory/port"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// batchConcurrency 限制批量可用量查询的并发扇出。
const batchConcurrency = 8

// StockLedgerService 实现库存台账的全部操作：
// 查询可用量、预占、确认出库、释放、补货。
// 所有变更都落在单条 (product, warehouse) 记录上，由仓储层保证原子性；
// 不同记录之间互不阻塞。
type StockLedgerService struct {
	stockRepo     domain.StockRepository
	warehouseRepo domain.WarehouseRepository
	locker        domain.KeyLocker
	cache         port.AvailabilityCache // 可为 nil
	events        port.StockEventProducer // 可为 nil
	tracer        trace.Tracer
}

func NewStockLedgerService(
	stockRepo domain.StockRepository,
	warehouseRepo domain.WarehouseRepository,
	locker domain.KeyLocker,
	cache port.AvailabilityCache,
	events port.StockEventProducer,
	tracer trace.Tracer,
) *StockLedgerService {
	return &StockLedgerService{
		stockRepo:     stockRepo,
		warehouseRepo: warehouseRepo,
		locker:        locker,
		cache:         cache,
		events:        events,
		tracer:        tracer,
	}
}

// GetAvailable 返回某商品在所有启用仓库的可用量之和。只读，无副作用。
func (s *StockLedgerService) GetAvailable(ctx context.Context, productID domain.ProductID) (int, error) {
	ctx, span := s.tracer.Start(ctx, "ledger.GetAvailable")
	defer span.End()
	span.SetAttributes(attribute.String("product.id", productID.String()))

	if s.cache != nil {
		if cached, ok, err := s.cache.Get(ctx, productID); err == nil && ok {
			span.AddEvent("availability cache hit")
			return cached, nil
		} else if err != nil {
			// 缓存故障降级为直查，不让读路径失败
			log.Warn().Err(err).Str("product", productID.String()).Msg("availability cache read failed")
		}
	}

	available, err := s.computeAvailable(ctx, productID)
	if err != nil {
		span.RecordError(err)
		return 0, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, productID, available); err != nil {
			log.Warn().Err(err).Str("product", productID.String()).Msg("availability cache write failed")
		}
	}
	return available, nil
}

// GetAvailableBatch 批量查询多个商品的可用量，供购物车/商品列表页使用。
func (s *StockLedgerService) GetAvailableBatch(ctx context.Context, productIDs []domain.ProductID) (map[domain.ProductID]int, error) {
	ctx, span := s.tracer.Start(ctx, "ledger.GetAvailableBatch")
	defer span.End()
	span.SetAttributes(attribute.Int("batch.size", len(productIDs)))

	result := make(map[domain.ProductID]int, len(productIDs))
	results := make([]int, len(productIDs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(batchConcurrency)
	for i, id := range productIDs {
		g.Go(func() error {
			available, err := s.GetAvailable(gctx, id)
			if err != nil {
				return err
			}
			results[i] = available
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return nil, err
	}

	for i, id := range productIDs {
		result[id] = results[i]
	}
	return result, nil
}

// Reserve 预占库存。检查与递增是仓储层的一个原子条件更新，
// 并发调用同一条记录时最多只有可用量允许的那些调用成功。
func (s *StockLedgerService) Reserve(ctx context.Context, productID domain.ProductID, warehouseID domain.WarehouseID, qty int, reference string) error {
	ctx, span := s.tracer.Start(ctx, "ledger.Reserve")
	defer span.End()
	span.SetAttributes(
		attribute.String("product.id", productID.String()),
		attribute.String("warehouse.id", warehouseID.String()),
		attribute.Int("quantity", qty),
	)

	if qty <= 0 {
		return domain.ErrInvalidQuantity
	}

	matched, err := s.stockRepo.Reserve(ctx, productID, warehouseID, qty)
	if err != nil {
		span.RecordError(err)
		return err
	}
	if !matched {
		err := s.classifyReserveFailure(ctx, productID, warehouseID, qty)
		span.RecordError(err)
		span.SetStatus(codes.Error, "stock reservation rejected")
		return err
	}

	s.afterMutation(ctx, productID, warehouseID, domain.StockReserved, qty, reference)
	return nil
}

// Confirm 把预占转为实际出库，OnHand 与 Reserved 同时扣减。
// 每笔预占至多成功确认一次，重复确认会因预占量不足而失败。
func (s *StockLedgerService) Confirm(ctx context.Context, productID domain.ProductID, warehouseID domain.WarehouseID, qty int, reference string) error {
	ctx, span := s.tracer.Start(ctx, "ledger.Confirm")
	defer span.End()
	span.SetAttributes(
		attribute.String("product.id", productID.String()),
		attribute.String("warehouse.id", warehouseID.String()),
		attribute.Int("quantity", qty),
	)

	if qty <= 0 {
		return domain.ErrInvalidQuantity
	}

	matched, err := s.stockRepo.ConfirmReservation(ctx, productID, warehouseID, qty)
	if err != nil {
		span.RecordError(err)
		return err
	}
	if !matched {
		err := s.classifyReservationFailure(ctx, productID, warehouseID, qty)
		span.RecordError(err)
		span.SetStatus(codes.Error, "stock confirm rejected")
		return err
	}

	s.logMovement(ctx, productID, warehouseID, domain.MovementOutbound, qty, reference)
	s.afterMutation(ctx, productID, warehouseID, domain.StockConfirmed, qty, reference)
	return nil
}

// Release 把预占量退回可用库存，是取消路径的补偿操作。
func (s *StockLedgerService) Release(ctx context.Context, productID domain.ProductID, warehouseID domain.WarehouseID, qty int, reference string) error {
	ctx, span := s.tracer.Start(ctx, "ledger.Release")
	defer span.End()
	span.SetAttributes(
		attribute.String("product.id", productID.String()),
		attribute.String("warehouse.id", warehouseID.String()),
		attribute.Int("quantity", qty),
	)

	if qty <= 0 {
		return domain.ErrInvalidQuantity
	}

	matched, err := s.stockRepo.ReleaseReservation(ctx, productID, warehouseID, qty)
	if err != nil {
		span.RecordError(err)
		return err
	}
	if !matched {
		err := s.classifyReservationFailure(ctx, productID, warehouseID, qty)
		span.RecordError(err)
		span.SetStatus(codes.Error, "stock release rejected")
		return err
	}

	s.afterMutation(ctx, productID, warehouseID, domain.StockReleased, qty, reference)
	return nil
}

// Replenish 入库补货，首次补货会创建台账记录。
// 记录创建与递增不是单条语句，用分布式锁按台账键串行化，
// 避免两个实例同时首次补货时各建一条记录。
func (s *StockLedgerService) Replenish(ctx context.Context, warehouseID domain.WarehouseID, productID domain.ProductID, qty int, reference string) error {
	ctx, span := s.tracer.Start(ctx, "ledger.Replenish")
	defer span.End()
	span.SetAttributes(
		attribute.String("product.id", productID.String()),
		attribute.String("warehouse.id", warehouseID.String()),
		attribute.Int("quantity", qty),
	)

	if qty <= 0 {
		return domain.ErrInvalidQuantity
	}
	if _, err := s.warehouseRepo.Get(ctx, warehouseID); err != nil {
		span.RecordError(err)
		return err
	}

	key := fmt.Sprintf("%s:%s", productID, warehouseID)
	err := s.locker.WithLock(key, func() error {
		_, err := s.stockRepo.Get(ctx, productID, warehouseID)
		if errors.Is(err, domain.ErrStockNotFound) {
			return s.stockRepo.Create(ctx, &domain.StockRecord{
				ProductID:   productID,
				WarehouseID: warehouseID,
				OnHand:      qty,
				UpdatedAt:   time.Now(),
			})
		}
		if err != nil {
			return err
		}
		return s.stockRepo.AddOnHand(ctx, productID, warehouseID, qty)
	})
	if err != nil {
		span.RecordError(err)
		return err
	}

	s.logMovement(ctx, productID, warehouseID, domain.MovementReplenish, qty, reference)
	s.afterMutation(ctx, productID, warehouseID, domain.StockReplenished, qty, reference)
	return nil
}

// ListMovements 返回某商品最近的台账变动。
func (s *StockLedgerService) ListMovements(ctx context.Context, productID domain.ProductID, limit int) ([]domain.StockMovement, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.stockRepo.ListMovements(ctx, productID, limit)
}

// computeAvailable 汇总启用仓库的可用量。
func (s *StockLedgerService) computeAvailable(ctx context.Context, productID domain.ProductID) (int, error) {
	warehouses, err := s.warehouseRepo.ListActive(ctx)
	if err != nil {
		return 0, err
	}
	active := make(map[domain.WarehouseID]bool, len(warehouses))
	for _, w := range warehouses {
		active[w.ID] = true
	}

	records, err := s.stockRepo.FindByProduct(ctx, productID)
	if err != nil {
		return 0, err
	}

	total := 0
	for _, rec := range records {
		if active[rec.WarehouseID] {
			total += rec.Available()
		}
	}
	return total, nil
}

// classifyReserveFailure 区分预占被拒绝的原因：记录不存在还是可用量不足。
func (s *StockLedgerService) classifyReserveFailure(ctx context.Context, productID domain.ProductID, warehouseID domain.WarehouseID, qty int) error {
	rec, err := s.stockRepo.Get(ctx, productID, warehouseID)
	if err != nil {
		return err
	}
	return &domain.InsufficientStockError{
		ProductID: productID,
		Available: rec.Available(),
		Requested: qty,
	}
}

// classifyReservationFailure 区分确认/释放被拒绝的原因。
func (s *StockLedgerService) classifyReservationFailure(ctx context.Context, productID domain.ProductID, warehouseID domain.WarehouseID, qty int) error {
	rec, err := s.stockRepo.Get(ctx, productID, warehouseID)
	if err != nil {
		return err
	}
	return &domain.InvalidReservationError{
		ProductID:   productID,
		WarehouseID: warehouseID,
		Reserved:    rec.Reserved,
		Requested:   qty,
	}
}

// logMovement 写入审计记录，失败只告警不回滚台账操作。
func (s *StockLedgerService) logMovement(ctx context.Context, productID domain.ProductID, warehouseID domain.WarehouseID, typ domain.MovementType, qty int, reference string) {
	rec, err := s.stockRepo.Get(ctx, productID, warehouseID)
	if err != nil {
		log.Warn().Err(err).Msg("failed to read stock record for movement log")
		return
	}
	movement := &domain.StockMovement{
		ID:          uuid.New().String(),
		ProductID:   productID,
		WarehouseID: warehouseID,
		Type:        typ,
		Quantity:    qty,
		OnHandAfter: rec.OnHand,
		Reference:   reference,
		CreatedAt:   time.Now(),
	}
	if err := s.stockRepo.LogMovement(ctx, movement); err != nil {
		log.Warn().Err(err).Str("product", productID.String()).Msg("failed to log stock movement")
	}
}

// afterMutation 处理每次台账变更后的公共动作：缓存失效、事件广播。
func (s *StockLedgerService) afterMutation(ctx context.Context, productID domain.ProductID, warehouseID domain.WarehouseID, kind domain.StockChangeKind, qty int, reference string) {
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, productID); err != nil {
			log.Warn().Err(err).Str("product", productID.String()).Msg("availability cache invalidation failed")
		}
	}
	if s.events == nil {
		return
	}
	rec, err := s.stockRepo.Get(ctx, productID, warehouseID)
	if err != nil {
		return
	}
	event := &domain.StockChangedEvent{
		ProductID:   productID,
		WarehouseID: warehouseID,
		Kind:        kind,
		Quantity:    qty,
		OnHand:      rec.OnHand,
		Reserved:    rec.Reserved,
		Reference:   reference,
		At:          time.Now(),
	}
	if err := s.events.PublishStockChanged(ctx, event); err != nil {
		// 广播失败不影响台账操作本身
		log.Warn().Err(err).Str("product", productID.String()).Msg("failed to publish stock event")
	}
}
