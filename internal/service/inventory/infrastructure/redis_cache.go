// internal/service/inventory/infrastructure/redis_cache.go
package infrastructure

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"backoffice/internal/pkg/redis"
	"backoffice/internal/service/inventory/domain"
)

const (
	availabilityKeyPrefix = "stock:avail:"
	availabilityTTL       = 30 * time.Second
)

// RedisAvailabilityCache 用 Redis 缓存商品总可用量，
// 台账变动后由应用层主动失效，读侧穿透回库。
type RedisAvailabilityCache struct {
	client *redis.Client
}

func NewRedisAvailabilityCache(client *redis.Client) *RedisAvailabilityCache {
	return &RedisAvailabilityCache{client: client}
}

func availabilityKey(productID domain.ProductID) string {
	return availabilityKeyPrefix + productID.String()
}

func (c *RedisAvailabilityCache) Get(ctx context.Context, productID domain.ProductID) (int, bool, error) {
	val, err := c.client.Get(ctx, availabilityKey(productID))
	if err != nil {
		return 0, false, err
	}
	if val == "" {
		return 0, false, nil
	}
	available, err := strconv.Atoi(val)
	if err != nil {
		// 脏数据当作未命中处理，下一次 Set 会覆盖
		return 0, false, fmt.Errorf("invalid cached availability %q: %w", val, err)
	}
	return available, true, nil
}

func (c *RedisAvailabilityCache) Set(ctx context.Context, productID domain.ProductID, available int) error {
	return c.client.SetEX(ctx, availabilityKey(productID), strconv.Itoa(available), availabilityTTL)
}

func (c *RedisAvailabilityCache) Invalidate(ctx context.Context, productID domain.ProductID) error {
	return c.client.Del(ctx, availabilityKey(productID))
}
