package xkeylock

import "context"

// Handle 是单个 key 对应的互斥量。
//
// 通过 [Registry.GetLock] 获取，属于高级用法：调用方需自行保证 Lock/Unlock 配对，
// 推荐优先使用 [Registry.RunExclusive]。Handle 不可重入。
//
// 内部使用 size=1 的 channel 作为互斥量：
//   - 发送成功 = 获取锁
//   - 发送阻塞 = 锁被占用
//   - 接收 = 释放锁
type Handle[K any] struct {
	key K
	ch  chan struct{}
}

func newHandle[K any](key K) *Handle[K] {
	return &Handle[K]{key: key, ch: make(chan struct{}, 1)}
}

// Key 返回创建该 Handle 时使用的 key。
// 对于大小写不敏感等策略，返回的是首个获取者传入的原始 key。
func (h *Handle[K]) Key() K {
	return h.key
}

// Lock 阻塞直到获取锁。
func (h *Handle[K]) Lock() {
	h.ch <- struct{}{}
}

// TryLock 尝试非阻塞获取锁，成功返回 true。
func (h *Handle[K]) TryLock() bool {
	select {
	case h.ch <- struct{}{}:
		return true
	default:
		return false
	}
}

// LockContext 阻塞直到获取锁或 ctx 结束。
// ctx 结束时返回 ctx.Err()，此时未持有锁。
// ctx 不得为 nil，否则 panic。
//
// 若 ctx 已结束且锁恰好空闲，返回哪一个取决于 select 语义；
// 为保证确定性，先检查 ctx。
func (h *Handle[K]) LockContext(ctx context.Context) error {
	if ctx == nil {
		panic(panicNilContext)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case h.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Unlock 释放锁。对未加锁的 Handle 调用会 panic（与 sync.Mutex 一致）。
// 允许由与加锁者不同的 goroutine 释放。
func (h *Handle[K]) Unlock() {
	select {
	case <-h.ch:
	default:
		panic(panicUnlock)
	}
}
