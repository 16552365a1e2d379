package xlog

import (
	"fmt"
	"log/slog"
	"time"
)

// 常用属性 Key，参考 OpenTelemetry Semantic Conventions。
const (
	KeyError     = "error"
	KeyDuration  = "duration"
	KeyCount     = "count"
	KeyComponent = "component"
	KeyOperation = "operation"

	// KeyLockKey 互斥 key 字段
	KeyLockKey = "lock_key"

	// KeyWait 等待锁的耗时字段（毫秒）
	KeyWait = "wait_ms"
)

// Err 创建错误属性，err 为 nil 时返回空属性（会被 slog 忽略）。
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// Duration 创建人类可读的耗时属性（如 "1.5s"）。
func Duration(d time.Duration) slog.Attr {
	return slog.String(KeyDuration, d.String())
}

// Component 创建组件名属性
func Component(name string) slog.Attr {
	return slog.String(KeyComponent, name)
}

// Operation 创建操作名属性
func Operation(name string) slog.Attr {
	return slog.String(KeyOperation, name)
}

// Count 创建计数属性
func Count(n int64) slog.Attr {
	return slog.Int64(KeyCount, n)
}

// LockKey 创建互斥 key 属性。
// 字符串、整数、time.Time 保留原始类型，其他类型（指针、结构体等）按 %v 格式化。
func LockKey(key any) slog.Attr {
	switch v := key.(type) {
	case string:
		return slog.String(KeyLockKey, v)
	case int:
		return slog.Int(KeyLockKey, v)
	case int64:
		return slog.Int64(KeyLockKey, v)
	case uint64:
		return slog.Uint64(KeyLockKey, v)
	case time.Time:
		return slog.Time(KeyLockKey, v)
	default:
		return slog.String(KeyLockKey, fmt.Sprintf("%v", v))
	}
}

// Wait 创建锁等待耗时属性，单位毫秒（浮点），便于机器聚合。
func Wait(d time.Duration) slog.Attr {
	return slog.Float64(KeyWait, float64(d)/float64(time.Millisecond))
}
