// internal/service/inventory/infrastructure/zk_locker.go
package infrastructure

import (
	"backoffice/internal/zookeeper"

	"github.com/rs/zerolog/log"
)

// ZkKeyLocker 基于 Zookeeper 临时顺序节点实现 KeyLocker，
// 用于跨实例串行化补货时的首行创建。
type ZkKeyLocker struct {
	conn *zookeeper.Conn
}

func NewZkKeyLocker(conn *zookeeper.Conn) *ZkKeyLocker {
	return &ZkKeyLocker{conn: conn}
}

func (l *ZkKeyLocker) WithLock(resource string, fn func() error) error {
	lock, err := zookeeper.NewDistributedLock(l.conn, resource)
	if err != nil {
		return err
	}
	if err := lock.Lock(); err != nil {
		return err
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			log.Error().Err(err).Str("resource", resource).Msg("释放分布式锁失败")
		}
	}()
	return fn()
}
