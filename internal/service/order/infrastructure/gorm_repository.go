// internal/service/order/infrastructure/gorm_repository.go
package infrastructure

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"backoffice/internal/service/order/domain"
)

// GormOrderRepository 是 OrderRepository 的 MySQL 实现。
type GormOrderRepository struct {
	db *gorm.DB
}

func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// AutoMigrate 建表，开发和测试环境用。
func (r *GormOrderRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&OrderModel{}, &OrderLineModel{})
}

// Save 保存订单聚合。订单行整组重写，保证行状态和主表一致。
func (r *GormOrderRepository) Save(ctx context.Context, order *domain.Order) error {
	model := toOrderModel(order)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Lines").Save(&OrderModel{
			ID:              model.ID,
			Number:          model.Number,
			UserID:          model.UserID,
			ShippingAddress: model.ShippingAddress,
			TotalAmount:     model.TotalAmount,
			Status:          model.Status,
			CancelReason:    model.CancelReason,
			CreatedAt:       model.CreatedAt,
			UpdatedAt:       model.UpdatedAt,
		}).Error; err != nil {
			return errors.Wrap(err, "failed to save order")
		}
		if err := tx.Where("order_id = ?", model.ID).Delete(&OrderLineModel{}).Error; err != nil {
			return errors.Wrap(err, "failed to clear order lines")
		}
		if len(model.Lines) == 0 {
			return nil
		}
		if err := tx.Create(&model.Lines).Error; err != nil {
			return errors.Wrap(err, "failed to save order lines")
		}
		return nil
	})
}

// FindByID 按主键加载订单及其全部行。
func (r *GormOrderRepository) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	return r.findOne(ctx, "id = ?", id)
}

// FindByNumber 按幂等单号加载订单。
func (r *GormOrderRepository) FindByNumber(ctx context.Context, number string) (*domain.Order, error) {
	return r.findOne(ctx, "number = ?", number)
}

func (r *GormOrderRepository) findOne(ctx context.Context, query string, arg interface{}) (*domain.Order, error) {
	var model OrderModel
	err := r.db.WithContext(ctx).Preload("Lines").Where(query, arg).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to load order")
	}
	return toDomainOrder(&model), nil
}
