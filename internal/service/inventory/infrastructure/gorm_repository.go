// internal/service/inventory/infrastructure/gorm_repository.go
package infrastructure

import (
	"context"
	"time"

	"backoffice/internal/service/inventory/domain"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// GormStockRepository 是 StockRepository 的 GORM 实现。
// 预占/确认/释放都是带守卫条件的单条 UPDATE，检查和变更在数据库里
// 是同一个原子操作，RowsAffected 为 0 即条件不满足。
type GormStockRepository struct {
	db *gorm.DB
}

func NewGormStockRepository(db *gorm.DB) *GormStockRepository {
	return &GormStockRepository{db: db}
}

func (r *GormStockRepository) Get(ctx context.Context, productID domain.ProductID, warehouseID domain.WarehouseID) (*domain.StockRecord, error) {
	var model StockRecordModel
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND warehouse_id = ?", productID.String(), warehouseID.String()).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrStockNotFound
		}
		return nil, errors.Wrap(err, "failed to query stock record")
	}
	return toDomainStockRecord(&model), nil
}

func (r *GormStockRepository) FindByProduct(ctx context.Context, productID domain.ProductID) ([]domain.StockRecord, error) {
	var models []StockRecordModel
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID.String()).
		Order("warehouse_id asc").
		Find(&models).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to query stock records by product")
	}
	records := make([]domain.StockRecord, 0, len(models))
	for i := range models {
		records = append(records, *toDomainStockRecord(&models[i]))
	}
	return records, nil
}

func (r *GormStockRepository) Reserve(ctx context.Context, productID domain.ProductID, warehouseID domain.WarehouseID, qty int) (bool, error) {
	res := r.db.WithContext(ctx).Model(&StockRecordModel{}).
		Where("product_id = ? AND warehouse_id = ? AND on_hand - reserved >= ?",
			productID.String(), warehouseID.String(), qty).
		Updates(map[string]interface{}{
			"reserved":   gorm.Expr("reserved + ?", qty),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return false, errors.Wrap(res.Error, "failed to reserve stock")
	}
	return res.RowsAffected == 1, nil
}

func (r *GormStockRepository) ConfirmReservation(ctx context.Context, productID domain.ProductID, warehouseID domain.WarehouseID, qty int) (bool, error) {
	res := r.db.WithContext(ctx).Model(&StockRecordModel{}).
		Where("product_id = ? AND warehouse_id = ? AND reserved >= ?",
			productID.String(), warehouseID.String(), qty).
		Updates(map[string]interface{}{
			"on_hand":    gorm.Expr("on_hand - ?", qty),
			"reserved":   gorm.Expr("reserved - ?", qty),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return false, errors.Wrap(res.Error, "failed to confirm reservation")
	}
	return res.RowsAffected == 1, nil
}

func (r *GormStockRepository) ReleaseReservation(ctx context.Context, productID domain.ProductID, warehouseID domain.WarehouseID, qty int) (bool, error) {
	res := r.db.WithContext(ctx).Model(&StockRecordModel{}).
		Where("product_id = ? AND warehouse_id = ? AND reserved >= ?",
			productID.String(), warehouseID.String(), qty).
		Updates(map[string]interface{}{
			"reserved":   gorm.Expr("reserved - ?", qty),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return false, errors.Wrap(res.Error, "failed to release reservation")
	}
	return res.RowsAffected == 1, nil
}

func (r *GormStockRepository) AddOnHand(ctx context.Context, productID domain.ProductID, warehouseID domain.WarehouseID, qty int) error {
	res := r.db.WithContext(ctx).Model(&StockRecordModel{}).
		Where("product_id = ? AND warehouse_id = ?", productID.String(), warehouseID.String()).
		Updates(map[string]interface{}{
			"on_hand":    gorm.Expr("on_hand + ?", qty),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return errors.Wrap(res.Error, "failed to add on-hand stock")
	}
	if res.RowsAffected == 0 {
		return domain.ErrStockNotFound
	}
	return nil
}

func (r *GormStockRepository) Create(ctx context.Context, record *domain.StockRecord) error {
	if err := r.db.WithContext(ctx).Create(toStockRecordModel(record)).Error; err != nil {
		return errors.Wrap(err, "failed to create stock record")
	}
	return nil
}

func (r *GormStockRepository) LogMovement(ctx context.Context, movement *domain.StockMovement) error {
	if err := r.db.WithContext(ctx).Create(toMovementModel(movement)).Error; err != nil {
		return errors.Wrap(err, "failed to log stock movement")
	}
	return nil
}

func (r *GormStockRepository) ListMovements(ctx context.Context, productID domain.ProductID, limit int) ([]domain.StockMovement, error) {
	var models []StockMovementModel
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID.String()).
		Order("created_at desc").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list stock movements")
	}
	movements := make([]domain.StockMovement, 0, len(models))
	for i := range models {
		movements = append(movements, toDomainMovement(&models[i]))
	}
	return movements, nil
}

// GormWarehouseRepository 是 WarehouseRepository 的 GORM 实现。
type GormWarehouseRepository struct {
	db *gorm.DB
}

func NewGormWarehouseRepository(db *gorm.DB) *GormWarehouseRepository {
	return &GormWarehouseRepository{db: db}
}

func (r *GormWarehouseRepository) Get(ctx context.Context, id domain.WarehouseID) (*domain.Warehouse, error) {
	var model WarehouseModel
	err := r.db.WithContext(ctx).Where("id = ?", id.String()).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrWarehouseNotFound
		}
		return nil, errors.Wrap(err, "failed to query warehouse")
	}
	return toDomainWarehouse(&model), nil
}

func (r *GormWarehouseRepository) ListActive(ctx context.Context) ([]domain.Warehouse, error) {
	return r.list(ctx, r.db.WithContext(ctx).Where("active = ?", true))
}

func (r *GormWarehouseRepository) List(ctx context.Context) ([]domain.Warehouse, error) {
	return r.list(ctx, r.db.WithContext(ctx))
}

func (r *GormWarehouseRepository) list(ctx context.Context, tx *gorm.DB) ([]domain.Warehouse, error) {
	var models []WarehouseModel
	if err := tx.Order("id asc").Find(&models).Error; err != nil {
		return nil, errors.Wrap(err, "failed to list warehouses")
	}
	warehouses := make([]domain.Warehouse, 0, len(models))
	for i := range models {
		warehouses = append(warehouses, *toDomainWarehouse(&models[i]))
	}
	return warehouses, nil
}

func (r *GormWarehouseRepository) Save(ctx context.Context, warehouse *domain.Warehouse) error {
	if err := r.db.WithContext(ctx).Save(toWarehouseModel(warehouse)).Error; err != nil {
		return errors.Wrap(err, "failed to save warehouse")
	}
	return nil
}
