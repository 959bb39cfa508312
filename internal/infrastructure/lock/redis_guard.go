package lock

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// ============================================================================
// Redis 分布式锁
// ============================================================================
//
// 加锁：SET key value NX PX ttl
//   - NX: 只有 key 不存在时才设置（保证互斥）
//   - PX: 过期时间（持有者崩溃时自动释放）
//   - value: 持有者标识（释放时校验，防止误删别人的锁）
//
// 释放锁：Lua 脚本保证"检查+删除"原子执行
// ============================================================================

var (
	ErrLockFailed = errors.New("acquire distributed lock failed")
)

var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end
`)

// DistributedLock 分布式锁
type DistributedLock struct {
	client     *redis.Client
	key        string        // 锁的 key
	value      string        // 锁的 value（持有者标识）
	expiration time.Duration // 锁的过期时间
}

// NewDistributedLock 创建分布式锁
func NewDistributedLock(client *redis.Client, key, value string, expiration time.Duration) *DistributedLock {
	return &DistributedLock{
		client:     client,
		key:        key,
		value:      value,
		expiration: expiration,
	}
}

// TryLock 尝试获取锁（非阻塞）
func (l *DistributedLock) TryLock(ctx context.Context) (bool, error) {
	return l.client.SetNX(ctx, l.key, l.value, l.expiration).Result()
}

// Lock 阻塞式获取锁（带重试）
func (l *DistributedLock) Lock(ctx context.Context, retryInterval time.Duration, maxRetries int) error {
	for i := 0; i < maxRetries; i++ {
		success, err := l.TryLock(ctx)
		if err != nil {
			return err
		}
		if success {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryInterval):
		}
	}
	return ErrLockFailed
}

// Unlock 释放锁，value 不匹配时什么也不做
func (l *DistributedLock) Unlock(ctx context.Context) error {
	return unlockScript.Run(ctx, l.client, []string{l.key}, l.value).Err()
}

// RedisGuardConfig Redis 账户锁参数
type RedisGuardConfig struct {
	TTL           time.Duration
	RetryInterval time.Duration
	MaxRetries    int
}

// RedisGuard 跨实例的账户锁
//
// 先取进程内 FIFO 锁保证本地顺序，再取 Redis 锁防止其他实例同时修改同一账户。
type RedisGuard struct {
	client *redis.Client
	local  *KeyedMutex
	cfg    RedisGuardConfig
}

func NewRedisGuard(client *redis.Client, cfg RedisGuardConfig) *RedisGuard {
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * time.Second
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 100 * time.Millisecond
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 30
	}
	return &RedisGuard{
		client: client,
		local:  NewKeyedMutex(),
		cfg:    cfg,
	}
}

// PointLockKey 账户锁的 Redis key
func PointLockKey(userID int64) string {
	return fmt.Sprintf("point:lock:user:%d", userID)
}

func (g *RedisGuard) WithLock(ctx context.Context, userID int64, fn func(ctx context.Context) error) error {
	return g.local.WithLock(ctx, userID, func(ctx context.Context) error {
		dl := NewDistributedLock(g.client, PointLockKey(userID), uuid.NewString(), g.cfg.TTL)
		if err := dl.Lock(ctx, g.cfg.RetryInterval, g.cfg.MaxRetries); err != nil {
			return fmt.Errorf("lock user %d: %w", userID, err)
		}
		defer func() {
			// 释放不跟随请求取消
			if err := dl.Unlock(context.WithoutCancel(ctx)); err != nil {
				log.Printf("[RedisGuard] 释放锁失败: userID=%d, err=%v", userID, err)
			}
		}()
		return fn(ctx)
	})
}
