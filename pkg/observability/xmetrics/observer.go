package xmetrics

import (
	"context"
	"strconv"
)

// Kind 对应 trace span kind。xbcache 的清理周期为 KindInternal，
// GetOrLoad 回源为 KindClient。
type Kind int

const (
	KindInternal Kind = iota
	KindClient
)

var kindNames = [...]string{KindInternal: "Internal", KindClient: "Client"}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// Status 是跨度结果，作为 xcachekit.operation.total 的 status 标签。
type Status string

const (
	StatusOK    Status = "ok"
	StatusError Status = "error"
)

// Attr 是与后端无关的键值属性，值支持 string/int/int64/bool/float64，其余按 fmt.Sprint 输出。
type Attr struct {
	Key   string
	Value any
}

// SpanOptions 描述一次观测。span 名为 Component.Operation，如 "xbcache.cleanup"。
type SpanOptions struct {
	Component string
	Operation string
	Kind      Kind
	// Attrs 在开始时附加，缓存统一带 cache=<实例名>。
	Attrs []Attr
}

// Result 在 End 时提交。Status 为空时由 Err 推导；Attrs 记录结束时才知道的值，
// 如清理周期移除的条目数。
type Result struct {
	Status Status
	Err    error
	Attrs  []Attr
}

// Span 是进行中的观测，End 幂等。
type Span interface {
	End(result Result)
}

// Observer 创建 Span。缓存通过 WithObserver 注入，默认 NoopObserver。
type Observer interface {
	Start(ctx context.Context, opts SpanOptions) (context.Context, Span)
}

// NoopObserver 不产生 span 与指标。
type NoopObserver struct{}

func (NoopObserver) Start(ctx context.Context, _ SpanOptions) (context.Context, Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	return ctx, NoopSpan{}
}

type NoopSpan struct{}

func (NoopSpan) End(Result) {}

// Start 是调用方的统一入口：observer 为 nil，或自定义实现返回了 nil ctx / nil Span 时，
// 退化为原 ctx 与 NoopSpan，调用方无需判空即可 defer span.End。
func Start(ctx context.Context, observer Observer, opts SpanOptions) (context.Context, Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	if observer == nil {
		return ctx, NoopSpan{}
	}
	next, span := observer.Start(ctx, opts)
	if next == nil {
		next = ctx
	}
	if span == nil {
		span = NoopSpan{}
	}
	return next, span
}
