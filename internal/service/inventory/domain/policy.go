// internal/service/inventory/domain/policy.go
package domain

import "context"

// Candidate 是分配引擎为某个商品枚举出来的一个候选仓库。
type Candidate struct {
	Warehouse Warehouse
	Available int
}

// SelectionPolicy 允许业务方对候选仓库重新排序（例如偏好某个大区的仓）。
// 实现必须是确定性的：相同输入必须产出相同顺序。
// 引擎在没有配置策略时使用纯确定性排序（可用量降序、仓库ID升序）。
type SelectionPolicy interface {
	Rank(ctx context.Context, productID ProductID, candidates []Candidate) ([]Candidate, error)
}
