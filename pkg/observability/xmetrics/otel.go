package xmetrics

import (
	"cmp"
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultInstrumentationName = "github.com/omeyang/xkeylock/xmetrics"
	unknownComponent           = "unknown"
	unknownOperation           = "unknown"

	// MetricOperationTotal 操作计数指标名。
	MetricOperationTotal = "xkeylock.operation.total"
	// MetricOperationDuration 操作耗时指标名（秒）。
	MetricOperationDuration = "xkeylock.operation.duration"
	// MetricLockWait 等待互斥量耗时指标名（秒），属性含 acquired。
	MetricLockWait = "xkeylock.lock.wait"

	// AttrWaitNS 跨度上的等待耗时属性（纳秒）。
	AttrWaitNS = "wait_ns"
	// AttrAcquired 是否拿到互斥量。
	AttrAcquired = "acquired"

	attrComponent = "component"
	attrOperation = "operation"
	attrStatus    = "status"
)

type otelConfig struct {
	instrumentationName string
	tracerProvider      trace.TracerProvider
	meterProvider       metric.MeterProvider
}

// Option 定义 OTel Observer 的配置选项。
type Option func(*otelConfig)

// WithInstrumentationName 设置 OTel instrumentation 名称，空值忽略。
func WithInstrumentationName(name string) Option {
	return func(cfg *otelConfig) {
		if name != "" {
			cfg.instrumentationName = name
		}
	}
}

// WithTracerProvider 设置 TracerProvider，nil 忽略。
func WithTracerProvider(provider trace.TracerProvider) Option {
	return func(cfg *otelConfig) {
		if provider != nil {
			cfg.tracerProvider = provider
		}
	}
}

// WithMeterProvider 设置 MeterProvider，nil 忽略。
func WithMeterProvider(provider metric.MeterProvider) Option {
	return func(cfg *otelConfig) {
		if provider != nil {
			cfg.meterProvider = provider
		}
	}
}

// NewOTelObserver 创建基于 OpenTelemetry 的 Observer。
// 未指定 Provider 时使用 otel 全局 Provider。
func NewOTelObserver(opts ...Option) (Observer, error) {
	cfg := &otelConfig{
		instrumentationName: defaultInstrumentationName,
		tracerProvider:      otel.GetTracerProvider(),
		meterProvider:       otel.GetMeterProvider(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}

	meter := cfg.meterProvider.Meter(cfg.instrumentationName)
	o := &otelObserver{tracer: cfg.tracerProvider.Tracer(cfg.instrumentationName)}
	var err error
	if o.total, err = meter.Int64Counter(MetricOperationTotal,
		metric.WithDescription("guarded operations by outcome"),
		metric.WithUnit("{operation}"),
	); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCreateCounter, err)
	}
	if o.duration, err = meter.Float64Histogram(MetricOperationDuration,
		metric.WithDescription("wait plus critical section time"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCreateHistogram, err)
	}
	if o.wait, err = meter.Float64Histogram(MetricLockWait,
		metric.WithDescription("time spent waiting for a key"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCreateHistogram, err)
	}
	return o, nil
}

type otelObserver struct {
	tracer   trace.Tracer
	total    metric.Int64Counter
	duration metric.Float64Histogram
	wait     metric.Float64Histogram
}

// Start 开始一次观测跨度，跨度名即操作名。
func (o *otelObserver) Start(ctx context.Context, opts SpanOptions) (context.Context, Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	s := &otelSpan{
		observer:  o,
		component: cmp.Or(opts.Component, unknownComponent),
		operation: cmp.Or(opts.Operation, unknownOperation),
		start:     time.Now(),
	}
	identity := []attribute.KeyValue{
		attribute.String(attrComponent, s.component),
		attribute.String(attrOperation, s.operation),
	}
	ctx, s.span = o.tracer.Start(ctx, s.operation,
		trace.WithSpanKind(mapSpanKind(opts.Kind)),
		trace.WithAttributes(append(identity, attrsToOTel(opts.Attrs)...)...),
	)
	// 调用方 ctx 可能在 End 前取消，指标仍需记录
	s.ctx = context.WithoutCancel(ctx)
	return ctx, s
}

type otelSpan struct {
	span      trace.Span
	observer  *otelObserver
	ctx       context.Context
	component string
	operation string
	start     time.Time
	endOnce   sync.Once
}

// End 结束观测并记录结果，多次调用只记录一次。
func (s *otelSpan) End(result Result) {
	s.endOnce.Do(func() { s.end(result) })
}

func (s *otelSpan) end(result Result) {
	status := resolveStatus(result)
	switch {
	case result.Err != nil:
		s.span.RecordError(result.Err)
		s.span.SetStatus(codes.Error, result.Err.Error())
	case status == StatusError:
		s.span.SetStatus(codes.Error, "operation failed")
	default:
		s.span.SetStatus(codes.Ok, "")
	}
	s.span.SetAttributes(attrsToOTel(result.Attrs)...)
	if w := result.Wait; w != nil {
		s.span.SetAttributes(
			attribute.Int64(AttrWaitNS, w.Duration.Nanoseconds()),
			attribute.Bool(AttrAcquired, w.Acquired),
		)
	}
	s.span.End()

	outcome := metric.WithAttributeSet(attribute.NewSet(
		attribute.String(attrComponent, s.component),
		attribute.String(attrOperation, s.operation),
		attribute.String(attrStatus, string(status)),
	))
	s.observer.total.Add(s.ctx, 1, outcome)
	s.observer.duration.Record(s.ctx, time.Since(s.start).Seconds(), outcome)
	if w := result.Wait; w != nil {
		s.observer.wait.Record(s.ctx, w.Duration.Seconds(), metric.WithAttributeSet(attribute.NewSet(
			attribute.String(attrComponent, s.component),
			attribute.String(attrOperation, s.operation),
			attribute.Bool(AttrAcquired, w.Acquired),
		)))
	}
}

func resolveStatus(result Result) Status {
	if result.Status != "" {
		return result.Status
	}
	if result.Err != nil {
		return StatusError
	}
	return StatusOK
}

func mapSpanKind(kind Kind) trace.SpanKind {
	switch kind {
	case KindServer:
		return trace.SpanKindServer
	case KindClient:
		return trace.SpanKindClient
	default:
		return trace.SpanKindInternal
	}
}

func attrsToOTel(attrs []Attr) []attribute.KeyValue {
	if len(attrs) == 0 {
		return nil
	}
	converted := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if attr.Key == "" || attr.Value == nil {
			continue
		}
		converted = append(converted, toKeyValue(attr))
	}
	return converted
}

func toKeyValue(attr Attr) attribute.KeyValue {
	switch v := attr.Value.(type) {
	case string:
		return attribute.String(attr.Key, v)
	case bool:
		return attribute.Bool(attr.Key, v)
	case int:
		return attribute.Int(attr.Key, v)
	case int64:
		return attribute.Int64(attr.Key, v)
	case float64:
		return attribute.Float64(attr.Key, v)
	case time.Duration:
		return attribute.Int64(attr.Key, v.Nanoseconds())
	default:
		return attribute.String(attr.Key, fmt.Sprint(v))
	}
}
