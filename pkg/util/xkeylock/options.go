package xkeylock

import (
	"fmt"
	"time"

	"github.com/omeyang/xkeylock/pkg/observability/xlog"
	"github.com/omeyang/xkeylock/pkg/observability/xmetrics"
)

const (
	defaultShardCount = 32
	maxShardCount     = 1 << 16 // 65536
)

// Option 定义 Registry 可选配置。
type Option func(*options)

type options struct {
	shardCount int
	logger     xlog.Logger
	observer   xmetrics.Observer
	slowWait   time.Duration
}

func defaultOptions() options {
	return options{
		shardCount: defaultShardCount,
	}
}

// WithShardCount 设置分片数量。
// 更多分片减少 get-or-insert 时的分片锁争用，但增加内存占用。
// n 必须为正整数且为 2 的幂，上限 65536，否则构造函数返回 [ErrInvalidShardCount]。默认 32。
func WithShardCount(n int) Option {
	return func(o *options) {
		o.shardCount = n
	}
}

// WithLogger 设置日志记录器。
// Handle 创建/移除记录 Debug 日志，慢等待记录 Warn 日志。默认不记录。
func WithLogger(logger xlog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithObserver 设置观测器，每次 RunExclusive 系列调用产生一个观测跨度。
// nil 表示不观测（默认）。
func WithObserver(observer xmetrics.Observer) Option {
	return func(o *options) {
		o.observer = observer
	}
}

// WithSlowWait 设置慢等待阈值：等待 key 超过 d 时记录 Warn 日志。
// d <= 0 表示关闭（默认）。需同时配置 [WithLogger] 才会输出。
func WithSlowWait(d time.Duration) Option {
	// 在闭包外归一化，避免闭包写捕获变量。
	if d < 0 {
		d = 0
	}
	return func(o *options) {
		o.slowWait = d
	}
}

func (o *options) validate() error {
	sc := o.shardCount
	if sc <= 0 || sc > maxShardCount || sc&(sc-1) != 0 {
		return fmt.Errorf("%w: must be a positive power of 2 (max %d), got %d",
			ErrInvalidShardCount, maxShardCount, sc)
	}
	return nil
}
