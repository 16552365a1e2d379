package contend

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/omeyang/xkeylock/pkg/util/xkeylock"
)

// ErrNoKeys 表示 Plan 未提供任何 key。
var ErrNoKeys = errors.New("contend: no keys")

// Plan 描述一次竞争运行。
type Plan[K any] struct {
	// Keys 每个 key 启动 Rounds 个并发执行者。
	Keys []K

	// Rounds 每个 key 的执行者数量，<= 0 时为 1。
	Rounds int

	// Hold 每个临界区的持锁时间。
	Hold time.Duration
}

// Report 汇总一次竞争运行的结果。
type Report struct {
	Sections   int
	Overlapped bool
	MaxActive  int
	// Handles 运行结束时注册表中的 key 数量。
	Handles int
	Elapsed time.Duration
}

// Run 让所有执行者在同一时刻起跑，各自通过 RunExclusiveContext 持锁 Hold 时长。
// ctx 取消时尚未完成的执行者返回 ctx.Err()，Run 返回第一个错误。
func Run[K any](ctx context.Context, reg *xkeylock.Registry[K], plan Plan[K]) (Report, error) {
	if len(plan.Keys) == 0 {
		return Report{}, ErrNoKeys
	}
	rounds := max(plan.Rounds, 1)

	var probe Probe
	start := make(chan struct{})
	g, gctx := errgroup.WithContext(ctx)
	for _, key := range plan.Keys {
		for range rounds {
			g.Go(func() error {
				<-start
				return reg.RunExclusiveContext(gctx, key, func(ctx context.Context) error {
					probe.Enter()
					defer probe.Exit()
					return sleep(ctx, plan.Hold)
				})
			})
		}
	}

	began := time.Now()
	close(start)
	err := g.Wait()

	return Report{
		Sections:   probe.Sections(),
		Overlapped: probe.Overlapped(),
		MaxActive:  probe.MaxActive(),
		Handles:    reg.Len(),
		Elapsed:    time.Since(began),
	}, err
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
