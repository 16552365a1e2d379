package xkeylock

import "errors"

var (
	// ErrInvalidShardCount 表示分片数不是 [1, 65536] 范围内的 2 的幂。
	ErrInvalidShardCount = errors.New("xkeylock: invalid shard count")

	// ErrNilComparer 表示 NewWithComparer 收到 nil Comparer。
	ErrNilComparer = errors.New("xkeylock: nil comparer")

	// ErrPanicked 仅出现在观测跨度的结果中，表示受保护的函数发生了 panic。
	// panic 本身仍会原样传播给调用方。
	ErrPanicked = errors.New("xkeylock: panic")
)

// panic 消息，编程错误直接 panic，与 sync.Mutex 的处理方式一致。
const (
	panicNilContext = "xkeylock: nil Context"
	panicNilFunc    = "xkeylock: nil func"
	panicUnlock     = "xkeylock: unlock of unlocked handle"
)
