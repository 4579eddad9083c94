// internal/service/order/domain/repository.go
package domain

import "context"

// OrderRepository 定义了订单聚合的持久化接口。
// 它位于领域层，但由基础设施层实现。
type OrderRepository interface {
	// Save 保存一个订单聚合（用于创建或更新），连同全部订单行。
	Save(ctx context.Context, order *Order) error

	// FindByID 根据 ID 查找一个订单聚合，不存在时返回 ErrOrderNotFound。
	FindByID(ctx context.Context, id string) (*Order, error)

	// FindByNumber 根据幂等单号查找订单，下单去重用。
	// 不存在时返回 ErrOrderNotFound。
	FindByNumber(ctx context.Context, number string) (*Order, error)
}
