package xkeylock

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/omeyang/xkeylock/pkg/observability/xlog"
	"github.com/omeyang/xkeylock/pkg/observability/xmetrics"
)

const (
	componentName = "xkeylock"

	opRunExclusive    = "run_exclusive"
	opTryRunExclusive = "try_run_exclusive"
)

// Registry 为每个不同的 key 维护一个 [Handle]，按需创建。
// 所有方法都是并发安全的。Registry 创建后不可复制。
type Registry[K any] struct {
	shards   []shard[K]
	mask     uint64
	cmp      Comparer[K]
	opts     options
	keyCount atomic.Int64
}

// shard 以完整哈希值分桶，桶内按 Comparer.Equal 线性查找。
type shard[K any] struct {
	mu      sync.Mutex
	buckets map[uint64][]*Handle[K]
}

// New 创建使用 Go == 语义的 Registry。
// 配置无效时返回错误（如分片数不是 2 的幂）。
func New[K comparable](opts ...Option) (*Registry[K], error) {
	return NewWithComparer(ComparableComparer[K](), opts...)
}

// NewWithComparer 创建使用自定义相等/哈希策略的 Registry。
// cmp 为 nil 时返回 [ErrNilComparer]。
func NewWithComparer[K any](cmp Comparer[K], opts ...Option) (*Registry[K], error) {
	if cmp == nil {
		return nil, ErrNilComparer
	}
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if err := o.validate(); err != nil {
		return nil, err
	}

	shards := make([]shard[K], o.shardCount)
	for i := range shards {
		shards[i].buckets = make(map[uint64][]*Handle[K])
	}
	// shardCount 已验证为 [1, 65536] 内的 2 的幂，int → uint64 转换安全。
	return &Registry[K]{
		shards: shards,
		mask:   uint64(o.shardCount - 1),
		cmp:    cmp,
		opts:   o,
	}, nil
}

// GetLock 返回 key 对应的 Handle，不存在时原子地创建并登记。
//
// 对相等的 key 并发调用总是得到同一个 Handle。GetLock 只在分片锁上短暂阻塞，
// 不会等待 key 的互斥量。返回的 Handle 需由调用方自行 Lock/Unlock，
// 优先使用 [Registry.RunExclusive]。
func (r *Registry[K]) GetLock(key K) *Handle[K] {
	h, created := r.getOrCreate(key)
	if created && r.opts.logger != nil {
		r.opts.logger.Debug(context.Background(), "lock created",
			xlog.Component(componentName), xlog.LockKey(key))
	}
	return h
}

// getOrCreate 在分片锁内完成查找与插入，不存在 check-then-act 窗口。
func (r *Registry[K]) getOrCreate(key K) (*Handle[K], bool) {
	hash := r.cmp.Hash(key)
	s := &r.shards[hash&r.mask]
	s.mu.Lock()
	defer s.mu.Unlock()

	bucket := s.buckets[hash]
	for _, h := range bucket {
		if r.cmp.Equal(h.key, key) {
			return h, false
		}
	}
	h := newHandle(key)
	s.buckets[hash] = append(bucket, h)
	r.keyCount.Add(1)
	return h, true
}

// RemoveLock 移除 key 的映射；key 不存在时为空操作。
//
// 已被持有或等待中的 Handle 不受影响，只有后续的 GetLock/RunExclusive
// 会创建新 Handle。与同一 key 的并发获取竞争时互斥可能失效，
// 调用方需保证移除时没有并发获取该 key（见包文档）。
func (r *Registry[K]) RemoveLock(key K) {
	if r.remove(key) && r.opts.logger != nil {
		r.opts.logger.Debug(context.Background(), "lock removed",
			xlog.Component(componentName), xlog.LockKey(key))
	}
}

func (r *Registry[K]) remove(key K) bool {
	hash := r.cmp.Hash(key)
	s := &r.shards[hash&r.mask]
	s.mu.Lock()
	defer s.mu.Unlock()

	bucket := s.buckets[hash]
	for i, h := range bucket {
		if !r.cmp.Equal(h.key, key) {
			continue
		}
		last := len(bucket) - 1
		bucket[i] = bucket[last]
		bucket[last] = nil
		if last == 0 {
			delete(s.buckets, hash)
		} else {
			s.buckets[hash] = bucket[:last]
		}
		r.keyCount.Add(-1)
		return true
	}
	return false
}

// RunExclusive 持有 key 的锁执行 fn，fn 返回后（包括 panic）释放锁。
// fn 的错误原样返回，panic 在释放锁后继续向上传播。
// fn 为 nil 时 panic。
func (r *Registry[K]) RunExclusive(key K, fn func() error) error {
	if fn == nil {
		panic(panicNilFunc)
	}
	_, err := r.run(context.Background(), opRunExclusive, key, lockBlocking[K],
		func(context.Context) error { return fn() })
	return err
}

// RunExclusiveContext 与 RunExclusive 相同，但等待锁的过程受 ctx 约束。
// 在获取锁之前 ctx 结束时返回 ctx.Err()，fn 不会执行。
// 获取锁之后 ctx 由 fn 自行处理。ctx 或 fn 为 nil 时 panic。
func (r *Registry[K]) RunExclusiveContext(ctx context.Context, key K, fn func(ctx context.Context) error) error {
	if ctx == nil {
		panic(panicNilContext)
	}
	if fn == nil {
		panic(panicNilFunc)
	}
	_, err := r.run(ctx, opRunExclusive, key, lockContext[K], fn)
	return err
}

// TryRunExclusive 非阻塞地尝试获取 key 的锁。
// 成功时执行 fn 并返回 (true, fn 的错误)；锁被占用时返回 (false, nil)，fn 不会执行。
func (r *Registry[K]) TryRunExclusive(key K, fn func() error) (bool, error) {
	if fn == nil {
		panic(panicNilFunc)
	}
	return r.run(context.Background(), opTryRunExclusive, key, tryLock[K],
		func(context.Context) error { return fn() })
}

// RunExclusiveValue 持有 key 的锁执行 fn 并返回其结果。
// 语义与 [Registry.RunExclusive] 一致；Go 方法不支持类型参数，因此为包级函数。
func RunExclusiveValue[K, T any](r *Registry[K], key K, fn func() (T, error)) (T, error) {
	if fn == nil {
		panic(panicNilFunc)
	}
	var result T
	_, err := r.run(context.Background(), opRunExclusive, key, lockBlocking[K],
		func(context.Context) error {
			var err error
			result, err = fn()
			return err
		})
	return result, err
}

// RunExclusiveValueContext 是 [RunExclusiveValue] 的 ctx 版本，
// 等待语义同 [Registry.RunExclusiveContext]。未获取到锁时返回 T 的零值。
func RunExclusiveValueContext[K, T any](ctx context.Context, r *Registry[K], key K, fn func(ctx context.Context) (T, error)) (T, error) {
	if ctx == nil {
		panic(panicNilContext)
	}
	if fn == nil {
		panic(panicNilFunc)
	}
	var result T
	_, err := r.run(ctx, opRunExclusive, key, lockContext[K],
		func(ctx context.Context) error {
			var err error
			result, err = fn(ctx)
			return err
		})
	return result, err
}

// acquireFunc 获取 Handle，返回是否持有锁。
type acquireFunc[K any] func(ctx context.Context, h *Handle[K]) (bool, error)

func lockBlocking[K any](_ context.Context, h *Handle[K]) (bool, error) {
	h.Lock()
	return true, nil
}

func lockContext[K any](ctx context.Context, h *Handle[K]) (bool, error) {
	if err := h.LockContext(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func tryLock[K any](_ context.Context, h *Handle[K]) (bool, error) {
	return h.TryLock(), nil
}

// run 是所有 RunExclusive 变体的公共路径。
// defer 按 LIFO 执行：先释放锁，再结束观测跨度，panic 最后向上传播。
// fn panic 时跨度以 [ErrPanicked] 结束，随后原样重新 panic。
func (r *Registry[K]) run(ctx context.Context, op string, key K, acquire acquireFunc[K], fn func(context.Context) error) (acquired bool, err error) {
	var wait time.Duration
	if r.opts.observer != nil {
		var span xmetrics.Span
		ctx, span = xmetrics.Start(ctx, r.opts.observer, xmetrics.SpanOptions{
			Component: componentName,
			Operation: op,
			Kind:      xmetrics.KindInternal,
		})
		defer func() {
			p := recover()
			if p != nil {
				err = fmt.Errorf("%w: %v", ErrPanicked, p)
			}
			span.End(xmetrics.Result{
				Err:  err,
				Wait: &xmetrics.LockWait{Duration: wait, Acquired: acquired},
			})
			if p != nil {
				panic(p)
			}
		}()
	}

	h := r.GetLock(key)
	start := time.Now()
	acquired, err = acquire(ctx, h)
	wait = time.Since(start)
	r.reportWait(ctx, op, key, wait)
	if !acquired {
		return false, err
	}
	defer h.Unlock()

	return true, fn(ctx)
}

func (r *Registry[K]) reportWait(ctx context.Context, op string, key K, wait time.Duration) {
	if r.opts.logger == nil || r.opts.slowWait <= 0 || wait < r.opts.slowWait {
		return
	}
	r.opts.logger.Warn(ctx, "slow lock wait",
		xlog.Component(componentName),
		xlog.Operation(op),
		xlog.LockKey(key),
		xlog.Wait(wait),
	)
}

// Len 返回当前登记的 key 数量（单次原子读取，瞬时快照）。
func (r *Registry[K]) Len() int {
	return int(max(r.keyCount.Load(), 0))
}

// Keys 返回当前登记的 key 列表，仅用于调试。
// 返回值是快照，不保证跨分片原子性；每个 key 是创建其 Handle 时传入的原始值。
func (r *Registry[K]) Keys() []K {
	keys := make([]K, 0, r.Len())
	for i := range r.shards {
		s := &r.shards[i]
		s.mu.Lock()
		for _, bucket := range s.buckets {
			for _, h := range bucket {
				keys = append(keys, h.key)
			}
		}
		s.mu.Unlock()
	}
	return keys
}
