// internal/pkg/redis/client.go
package redis

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Client 封装了 go-redis 客户端，并维护一个按名字索引的 Lua 脚本注册表。
// 脚本统一在启动时加载，业务方只通过名字调用。
type Client struct {
	rdb goredis.UniversalClient

	scriptLock sync.RWMutex
	scripts    map[string]*goredis.Script
}

// NewClient 创建一个 Redis 客户端。
// addrs 格式为 "ip1:port1,ip2:port2"，单地址时使用普通客户端，多地址时使用集群客户端。
func NewClient(addrs string) (*Client, error) {
	addrList := strings.Split(addrs, ",")

	var rdb goredis.UniversalClient
	if len(addrList) > 1 {
		rdb = goredis.NewClusterClient(&goredis.ClusterOptions{Addrs: addrList})
	} else {
		rdb = goredis.NewClient(&goredis.Options{Addr: addrList[0]})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addrs, err)
	}

	return &Client{
		rdb:     rdb,
		scripts: make(map[string]*goredis.Script),
	}, nil
}

// GetClient 暴露底层客户端，供需要 pipeline 等高级操作的调用方使用。
func (c *Client) GetClient() goredis.UniversalClient {
	return c.rdb
}

// LoadScriptFromFile 从文件加载一个 Lua 脚本并以 name 注册。
func (c *Client) LoadScriptFromFile(name, path string) error {
	body, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read script file %s: %w", path, err)
	}

	c.scriptLock.Lock()
	defer c.scriptLock.Unlock()
	c.scripts[name] = goredis.NewScript(string(body))
	return nil
}

// RunScript 执行一个已注册的脚本。脚本未注册时直接返回错误，而不是静默跳过。
func (c *Client) RunScript(ctx context.Context, name string, keys []string, args ...interface{}) (interface{}, error) {
	c.scriptLock.RLock()
	script, ok := c.scripts[name]
	c.scriptLock.RUnlock()
	if !ok {
		return nil, fmt.Errorf("lua script %q is not registered", name)
	}
	return script.Run(ctx, c.rdb, keys, args...).Result()
}

// Get 读取一个 key，key 不存在时返回 ("", nil)。
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	val, err := c.rdb.Get(ctx, key).Result()
	if err == goredis.Nil {
		return "", nil
	}
	return val, err
}

// SetEX 写入一个带过期时间的 key。
func (c *Client) SetEX(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.rdb.Set(ctx, key, value, ttl).Err()
}

// Del 删除若干 key，用于缓存失效。
func (c *Client) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.rdb.Del(ctx, keys...).Err()
}

// Close 关闭底层连接。
func (c *Client) Close() error {
	return c.rdb.Close()
}
