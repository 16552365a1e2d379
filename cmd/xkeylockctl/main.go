// xkeylockctl 是 xkeylock 的命令行演示与验证工具。
//
// 用法:
//
//	xkeylockctl [全局选项] contend [选项]
//
// 全局选项:
//
//	-c, --config      配置文件（.yaml/.yml/.json）
//	    --log-level   日志级别 (debug/info/warn/error)
//	    --log-format  日志格式 (text/json)
//	    --log-file    日志文件（按大小轮转）
//	    --metrics     运行结束后输出操作计数
//
// 命令:
//
//	contend   并发运行一组按 key 加锁的临界区，报告是否发生重叠
//	version   显示版本信息
//
// 退出码:
//
//	0: 成功
//	1: 运行失败，或 --expect 与观察结果不符
//	2: 参数错误
//
// 示例:
//
//	xkeylockctl contend --keys Key,KEY,key --comparer ignorecase --expect serial
//	xkeylockctl contend --keys a,b,c --hold 100ms --expect parallel
//	xkeylockctl -c xkeylockctl.yaml --metrics contend --keys order:1 --rounds 8
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"
)

// 版本信息，可通过 -ldflags "-X main.Version=..." 注入。
var (
	Version   = "0.1.0-dev"
	GitCommit = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// exitError 表示命令已完成输出，仅需设置非零退出码。
type exitError struct {
	code int
}

func (e *exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

// usageError 表示参数错误，退出码 2。
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func createApp(stdout, stderr io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "xkeylockctl",
		Usage:     "xkeylock 按 key 互斥锁的演示与验证工具",
		Version:   fmt.Sprintf("%s (commit: %s)", Version, GitCommit),
		Writer:    stdout,
		ErrWriter: stderr,
		Flags:     globalFlags(),
		Commands: []*cli.Command{
			createContendCommand(),
			createVersionCommand(),
		},
		// 禁止 urfave/cli 直接 os.Exit，由 run 统一映射退出码。
		ExitErrHandler: func(context.Context, *cli.Command, error) {},
		OnUsageError:   onUsageError,
	}
}

// onUsageError 将 flag 解析错误标记为参数错误。
func onUsageError(_ context.Context, _ *cli.Command, err error, _ bool) error {
	return &usageError{err: err}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	err := createApp(stdout, stderr).Run(ctx, args)
	if err == nil {
		return 0
	}

	var exitErr *exitError
	if errors.As(err, &exitErr) {
		return exitErr.code
	}
	var usageErr *usageError
	if errors.As(err, &usageErr) {
		fmt.Fprintf(stderr, "参数错误: %v\n", usageErr)
		return 2
	}
	fmt.Fprintf(stderr, "错误: %v\n", err)
	return 1
}
