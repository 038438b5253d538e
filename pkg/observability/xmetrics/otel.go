package xmetrics

import (
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
	defaultInstrumentationName = "github.com/omeyang/xcachekit"
	unknown                    = "unknown"

	metricOperationTotal    = "xcachekit.operation.total"
	metricOperationDuration = "xcachekit.operation.duration"
)

// otelConfig 是 Observer、CacheRecorder、RegisterGauges 共用的 OTel 配置。
type otelConfig struct {
	instrumentationName string
	tracerProvider      trace.TracerProvider
	meterProvider       metric.MeterProvider
}

// Option 定义 OTel 实现的配置选项。
type Option func(*otelConfig)

// WithInstrumentationName 设置 instrumentation 名称，空字符串忽略。
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

func newOTelConfig(opts []Option) (*otelConfig, error) {
	cfg := &otelConfig{
		instrumentationName: defaultInstrumentationName,
		tracerProvider:      otel.GetTracerProvider(),
		meterProvider:       otel.GetMeterProvider(),
	}
	for _, opt := range opts {
		if opt == nil {
			return nil, ErrNilOption
		}
		opt(cfg)
	}
	return cfg, nil
}

// NewOTelObserver 创建基于 OpenTelemetry 的 Observer。
// 每个跨度产生一个 trace span，结束时累加 xcachekit.operation.total 并记录耗时直方图。
func NewOTelObserver(opts ...Option) (Observer, error) {
	cfg, err := newOTelConfig(opts)
	if err != nil {
		return nil, err
	}
	meter := cfg.meterProvider.Meter(cfg.instrumentationName)

	o := &otelObserver{tracer: cfg.tracerProvider.Tracer(cfg.instrumentationName)}
	if o.total, err = meter.Int64Counter(metricOperationTotal,
		metric.WithDescription("operations by component, operation and status"),
		metric.WithUnit("{operation}"),
	); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCreateCounter, err)
	}
	if o.duration, err = meter.Float64Histogram(metricOperationDuration,
		metric.WithDescription("operation latency"),
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
}

func orUnknown(s string) string {
	if s == "" {
		return unknown
	}
	return s
}

func (o *otelObserver) Start(ctx context.Context, opts SpanOptions) (context.Context, Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	base := []attribute.KeyValue{
		attribute.String("component", orUnknown(opts.Component)),
		attribute.String("operation", orUnknown(opts.Operation)),
	}
	name := base[0].Value.AsString() + "." + base[1].Value.AsString()

	ctx, span := o.tracer.Start(ctx, name,
		trace.WithSpanKind(spanKind(opts.Kind)),
		trace.WithAttributes(append(base, convertAttrs(opts.Attrs)...)...),
	)
	return ctx, &otelSpan{
		observer: o,
		span:     span,
		ctx:      context.WithoutCancel(ctx),
		base:     base,
		start:    time.Now(),
	}
}

// otelSpan 在 Start 时固定 component/operation 属性，End 只追加 status。
// ctx 已去除取消信号：请求结束后指标仍需写出。
type otelSpan struct {
	observer *otelObserver
	span     trace.Span
	ctx      context.Context
	base     []attribute.KeyValue
	start    time.Time
	once     sync.Once
}

// End 幂等。
func (s *otelSpan) End(result Result) {
	if s == nil {
		return
	}
	s.once.Do(func() { s.end(result) })
}

func (s *otelSpan) end(result Result) {
	elapsed := time.Since(s.start).Seconds()
	status := result.Status
	if status == "" {
		status = StatusOK
		if result.Err != nil {
			status = StatusError
		}
	}

	if result.Err != nil {
		s.span.RecordError(result.Err)
	}
	switch {
	case status != StatusError:
		s.span.SetStatus(codes.Ok, "")
	case result.Err != nil:
		s.span.SetStatus(codes.Error, result.Err.Error())
	default:
		s.span.SetStatus(codes.Error, "operation failed")
	}
	if extra := convertAttrs(result.Attrs); len(extra) > 0 {
		s.span.SetAttributes(extra...)
	}
	s.span.End()

	set := metric.WithAttributeSet(attribute.NewSet(
		append(s.base[:len(s.base):len(s.base)], attribute.String("status", string(status)))...,
	))
	s.observer.total.Add(s.ctx, 1, set)
	s.observer.duration.Record(s.ctx, elapsed, set)
}

func spanKind(k Kind) trace.SpanKind {
	if k == KindClient {
		return trace.SpanKindClient
	}
	return trace.SpanKindInternal
}

// convertAttrs 跳过空 key 与 nil 值；未知类型按 fmt.Sprint 转为字符串。
func convertAttrs(attrs []Attr) []attribute.KeyValue {
	var out []attribute.KeyValue
	for _, a := range attrs {
		if a.Key == "" || a.Value == nil {
			continue
		}
		var kv attribute.KeyValue
		switch v := a.Value.(type) {
		case string:
			kv = attribute.String(a.Key, v)
		case int:
			kv = attribute.Int(a.Key, v)
		case int64:
			kv = attribute.Int64(a.Key, v)
		case bool:
			kv = attribute.Bool(a.Key, v)
		case float64:
			kv = attribute.Float64(a.Key, v)
		default:
			kv = attribute.String(a.Key, fmt.Sprint(v))
		}
		out = append(out, kv)
	}
	return out
}
