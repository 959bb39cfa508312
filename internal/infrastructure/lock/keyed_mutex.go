package lock

import (
	"context"
	"sync"
)

// ============================================================================
// 进程内按账户加锁
// ============================================================================
//
// 同一用户的充值/使用必须串行：
//   goroutine1: 读余额=B -> 写 B+a1
//   goroutine2: 读余额=B -> 写 B+a2   第一笔被覆盖！
//
// KeyedMutex 为每个用户维护一把锁，不同用户互不影响。
// 等待者按到达顺序排队（FIFO），释放时直接把锁交给队首，不存在插队。
// 锁表只增不删，账户数量有限。
// ============================================================================

type keyLock struct {
	mu      sync.Mutex
	held    bool
	waiters []chan struct{}
}

// KeyedMutex 按用户ID分配的 FIFO 互斥锁
type KeyedMutex struct {
	locks sync.Map // map[int64]*keyLock
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{}
}

func (m *KeyedMutex) get(userID int64) *keyLock {
	if v, ok := m.locks.Load(userID); ok {
		return v.(*keyLock)
	}
	v, _ := m.locks.LoadOrStore(userID, &keyLock{})
	return v.(*keyLock)
}

// Lock 阻塞直到拿到 userID 的锁或 ctx 结束
func (m *KeyedMutex) Lock(ctx context.Context, userID int64) error {
	l := m.get(userID)

	l.mu.Lock()
	if !l.held {
		l.held = true
		l.mu.Unlock()
		return nil
	}
	ch := make(chan struct{})
	l.waiters = append(l.waiters, ch)
	l.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
	}

	l.mu.Lock()
	for i, w := range l.waiters {
		if w == ch {
			l.waiters = append(l.waiters[:i], l.waiters[i+1:]...)
			l.mu.Unlock()
			return ctx.Err()
		}
	}
	l.mu.Unlock()

	// 取消与交接同时发生：锁已经交给我们，需要继续交出去
	m.Unlock(userID)
	return ctx.Err()
}

// Unlock 释放锁，有等待者时直接交给队首
func (m *KeyedMutex) Unlock(userID int64) {
	l := m.get(userID)

	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.held {
		panic("lock: unlock of unlocked user lock")
	}
	if len(l.waiters) == 0 {
		l.held = false
		return
	}
	next := l.waiters[0]
	l.waiters = l.waiters[1:]
	close(next)
}

// WithLock 持有 userID 的锁执行 fn
func (m *KeyedMutex) WithLock(ctx context.Context, userID int64, fn func(ctx context.Context) error) error {
	if err := m.Lock(ctx, userID); err != nil {
		return err
	}
	defer m.Unlock(userID)
	return fn(ctx)
}
