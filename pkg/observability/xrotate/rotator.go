package xrotate

import "io"

var _ io.WriteCloser = (Rotator)(nil)

// Rotator 日志轮转器，可直接作为 xlog 的输出目标。
// 实现必须并发安全；Close 后 Write/Rotate 返回 [ErrClosed]。
type Rotator interface {
	// Write 写入数据，达到轮转条件时自动轮转。
	Write(p []byte) (n int, err error)

	// Close 关闭轮转器，重复调用返回 [ErrClosed]。
	Close() error

	// Rotate 手动触发轮转。
	Rotate() error
}
