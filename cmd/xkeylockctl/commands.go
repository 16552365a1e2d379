package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v3"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/omeyang/xkeylock/internal/contend"
	"github.com/omeyang/xkeylock/pkg/config/xconf"
	"github.com/omeyang/xkeylock/pkg/observability/xlog"
	"github.com/omeyang/xkeylock/pkg/observability/xmetrics"
	"github.com/omeyang/xkeylock/pkg/observability/xrotate"
	"github.com/omeyang/xkeylock/pkg/util/xkeylock"
)

//go:embed defaults.yaml
var defaultSettings []byte

// settings 是 xkeylockctl 的完整配置。
// 优先级：命令行参数 > --config 文件 > 内置默认值。
type settings struct {
	Registry struct {
		ShardCount int           `koanf:"shard_count"`
		SlowWait   time.Duration `koanf:"slow_wait"`
		Comparer   string        `koanf:"comparer"`
	} `koanf:"registry"`
	Log struct {
		Level      string `koanf:"level"`
		Format     string `koanf:"format"`
		File       string `koanf:"file"`
		MaxSizeMB  int    `koanf:"max_size_mb"`
		MaxBackups int    `koanf:"max_backups"`
	} `koanf:"log"`
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "配置文件路径（.yaml/.yml/.json）",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "日志级别 (debug/info/warn/error)",
		},
		&cli.StringFlag{
			Name:  "log-format",
			Usage: "日志格式 (text/json)",
		},
		&cli.StringFlag{
			Name:  "log-file",
			Usage: "日志文件路径，设置后按大小轮转",
		},
		&cli.BoolFlag{
			Name:  "metrics",
			Usage: "运行结束后输出操作计数",
		},
	}
}

// loadSettings 依次合并内置默认值、配置文件和命令行参数。
// 同时返回配置文件中不被识别的 key（以内置默认配置的 key 集合为准）。
func loadSettings(cmd *cli.Command) (settings, []string, error) {
	var s settings
	defaults, err := xconf.NewFromBytes(defaultSettings, xconf.FormatYAML)
	if err != nil {
		return s, nil, err
	}
	if err := defaults.Unmarshal("", &s); err != nil {
		return s, nil, err
	}

	var unknown []string
	if path := cmd.String("config"); path != "" {
		cfg, err := xconf.New(path)
		if err != nil {
			return s, nil, err
		}
		// 未出现在文件中的字段保留默认值
		if err := cfg.Unmarshal("", &s); err != nil {
			return s, nil, err
		}
		for _, key := range cfg.Client().Keys() {
			if !defaults.Client().Exists(key) {
				unknown = append(unknown, key)
			}
		}
	}

	if cmd.IsSet("log-level") {
		s.Log.Level = cmd.String("log-level")
	}
	if cmd.IsSet("log-format") {
		s.Log.Format = cmd.String("log-format")
	}
	if cmd.IsSet("log-file") {
		s.Log.File = cmd.String("log-file")
	}
	if cmd.IsSet("comparer") {
		s.Registry.Comparer = cmd.String("comparer")
	}
	if cmd.IsSet("shards") {
		s.Registry.ShardCount = int(cmd.Int("shards"))
	}
	if cmd.IsSet("slow-wait") {
		s.Registry.SlowWait = cmd.Duration("slow-wait")
	}
	return s, unknown, nil
}

// newLogger 按配置构建日志器；无 --log-file 时写 stderr。
func newLogger(s settings, stderr io.Writer) (xlog.Logger, func() error, error) {
	b := xlog.New().
		SetOutput(stderr).
		SetLevelString(s.Log.Level).
		SetFormat(s.Log.Format)
	if s.Log.File != "" {
		b.SetRotation(s.Log.File,
			xrotate.WithMaxSize(s.Log.MaxSizeMB),
			xrotate.WithMaxBackups(s.Log.MaxBackups),
		)
	}
	logger, cleanup, err := b.Build()
	if err != nil {
		return nil, nil, &usageError{err: err}
	}
	return logger, cleanup, nil
}

// parseComparer 解析 --comparer：ordinal、ignorecase、locale:<bcp47> 或 locale-ignorecase:<bcp47>。
func parseComparer(spec string) (xkeylock.Comparer[string], error) {
	name, arg, hasArg := strings.Cut(strings.TrimSpace(spec), ":")
	switch strings.ToLower(name) {
	case "", "ordinal":
		if hasArg {
			break
		}
		return xkeylock.Ordinal(), nil
	case "ignorecase":
		if hasArg {
			break
		}
		return xkeylock.IgnoreCase(), nil
	case "locale", "locale-ignorecase":
		tag, err := language.Parse(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid locale %q: %w", arg, err)
		}
		if strings.EqualFold(name, "locale-ignorecase") {
			return xkeylock.Locale(tag, collate.IgnoreCase), nil
		}
		return xkeylock.Locale(tag), nil
	}
	return nil, fmt.Errorf("unknown comparer %q", spec)
}

// splitKeys 解析逗号分隔的 key 列表，保留大小写，丢弃空项。
func splitKeys(values []string) []string {
	var keys []string
	for _, v := range values {
		for part := range strings.SplitSeq(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				keys = append(keys, part)
			}
		}
	}
	return keys
}

func createContendCommand() *cli.Command {
	return &cli.Command{
		Name:  "contend",
		Usage: "并发运行按 key 加锁的临界区，报告是否发生重叠",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:    "keys",
				Aliases: []string{"k"},
				Usage:   "参与竞争的 key，逗号分隔（必填）",
			},
			&cli.StringFlag{
				Name:  "comparer",
				Usage: "key 判等策略 (ordinal/ignorecase/locale:<tag>/locale-ignorecase:<tag>)",
			},
			&cli.DurationFlag{
				Name:  "hold",
				Usage: "每个临界区的持锁时间",
				Value: 50 * time.Millisecond,
			},
			&cli.IntFlag{
				Name:  "rounds",
				Usage: "每个 key 的并发执行者数量",
				Value: 1,
			},
			&cli.IntFlag{
				Name:  "shards",
				Usage: "注册表分片数（2 的幂）",
			},
			&cli.DurationFlag{
				Name:  "slow-wait",
				Usage: "等待锁超过该时长时记录 Warn 日志，0 表示关闭",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "整体超时，0 表示不限",
			},
			&cli.StringFlag{
				Name:  "expect",
				Usage: "期望结果 (serial/parallel)，不符时退出码为 1",
			},
		},
		OnUsageError: onUsageError,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return cmdContend(ctx, cmd)
		},
	}
}

func createVersionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "显示版本信息",
		Action: func(_ context.Context, cmd *cli.Command) error {
			_, err := fmt.Fprintf(cmd.Root().Writer, "xkeylockctl %s (commit: %s)\n", Version, GitCommit)
			return err
		},
	}
}

func cmdContend(ctx context.Context, cmd *cli.Command) error {
	stdout, stderr := cmd.Root().Writer, cmd.Root().ErrWriter

	expect := strings.ToLower(cmd.String("expect"))
	if expect != "" && expect != "serial" && expect != "parallel" {
		return &usageError{err: fmt.Errorf("unknown --expect %q", cmd.String("expect"))}
	}
	keys := splitKeys(cmd.StringSlice("keys"))
	if len(keys) == 0 {
		return &usageError{err: contend.ErrNoKeys}
	}

	s, unknownKeys, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	cmp, err := parseComparer(s.Registry.Comparer)
	if err != nil {
		return &usageError{err: err}
	}
	logger, closeLog, err := newLogger(s, stderr)
	if err != nil {
		return err
	}
	defer func() { _ = closeLog() }() //nolint:errcheck // 退出前关闭日志文件

	// 每次运行一个 ID，便于在轮转日志中区分多次运行
	runID := uuid.NewString()
	logger = logger.With(slog.String("run_id", runID))
	for _, key := range unknownKeys {
		logger.Warn(ctx, "unknown config key", slog.String("key", key))
	}

	opts := []xkeylock.Option{
		xkeylock.WithShardCount(s.Registry.ShardCount),
		xkeylock.WithLogger(logger),
		xkeylock.WithSlowWait(s.Registry.SlowWait),
	}
	var reader *sdkmetric.ManualReader
	if cmd.Bool("metrics") {
		var observer xmetrics.Observer
		var shutdown func(context.Context) error
		reader, observer, shutdown, err = newMetrics()
		if err != nil {
			return err
		}
		defer func() { _ = shutdown(context.WithoutCancel(ctx)) }() //nolint:errcheck // 进程即将退出
		opts = append(opts, xkeylock.WithObserver(observer))
	}

	reg, err := xkeylock.NewNamed(cmp, opts...)
	if err != nil {
		if errors.Is(err, xkeylock.ErrInvalidShardCount) {
			return &usageError{err: err}
		}
		return err
	}

	if timeout := cmd.Duration("timeout"); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	logger.Info(ctx, "contend started",
		xlog.Count(int64(len(keys))),
		xlog.Operation("contend"),
	)
	report, err := contend.Run(ctx, reg, contend.Plan[string]{
		Keys:   keys,
		Rounds: int(cmd.Int("rounds")),
		Hold:   cmd.Duration("hold"),
	})
	if err != nil {
		logger.Error(ctx, "contend failed", xlog.Err(err))
		return err
	}
	logger.Info(ctx, "contend finished",
		xlog.Count(int64(report.Sections)),
		xlog.Duration(report.Elapsed),
	)

	fmt.Fprintf(stdout, "run_id:     %s\n", runID)
	printReport(stdout, keys, reg, report)
	if reader != nil {
		if err := printMetrics(ctx, stdout, reader); err != nil {
			return err
		}
	}

	if expect != "" && (expect == "serial") == report.Overlapped {
		fmt.Fprintf(stderr, "期望 %s，实际 overlapped=%t\n", expect, report.Overlapped)
		return &exitError{code: 1}
	}
	return nil
}

func printReport(w io.Writer, keys []string, reg *xkeylock.Named, report contend.Report) {
	fmt.Fprintf(w, "keys:       %s\n", strings.Join(keys, ","))
	fmt.Fprintf(w, "handles:    %d\n", report.Handles)
	fmt.Fprintf(w, "sections:   %d\n", report.Sections)
	fmt.Fprintf(w, "max_active: %d\n", report.MaxActive)
	fmt.Fprintf(w, "overlapped: %t\n", report.Overlapped)
	fmt.Fprintf(w, "elapsed:    %s\n", report.Elapsed.Round(time.Millisecond))

	registered := reg.Keys()
	sort.Strings(registered)
	fmt.Fprintf(w, "registered: %s\n", strings.Join(registered, ","))
}

// newMetrics 创建仅供本进程读取的 MeterProvider。
func newMetrics() (*sdkmetric.ManualReader, xmetrics.Observer, func(context.Context) error, error) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	observer, err := xmetrics.NewOTelObserver(
		xmetrics.WithMeterProvider(mp),
		xmetrics.WithInstrumentationName("xkeylockctl"),
	)
	if err != nil {
		_ = mp.Shutdown(context.Background()) //nolint:errcheck // 已有创建错误
		return nil, nil, nil, err
	}
	return reader, observer, mp.Shutdown, nil
}

// printMetrics 输出 operation.total 按 operation/status 分组的计数。
func printMetrics(ctx context.Context, w io.Writer, reader *sdkmetric.ManualReader) error {
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		return fmt.Errorf("collect metrics: %w", err)
	}

	counts := make(map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if m.Name != xmetrics.MetricOperationTotal || !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				op, _ := dp.Attributes.Value(attribute.Key("operation"))
				status, _ := dp.Attributes.Value(attribute.Key("status"))
				counts[op.AsString()+" "+status.AsString()] += dp.Value
			}
		}
	}

	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "metric %s %s=%d\n", xmetrics.MetricOperationTotal, strings.ReplaceAll(name, " ", ":"), counts[name])
	}
	return nil
}
