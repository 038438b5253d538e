package xbcache

import (
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/omeyang/xcachekit/pkg/observability/xlog"
	"github.com/omeyang/xcachekit/pkg/observability/xmetrics"
)

// Option 定义缓存可选配置函数类型。
type Option[K comparable, V any] func(*options[K, V])

type options[K comparable, V any] struct {
	name      string
	clock     clockwork.Clock
	sizer     Sizer
	logger    xlog.Logger
	recorder  xmetrics.CacheRecorder
	observer  xmetrics.Observer
	onRemoved func(key K, value V, reason RemovalReason)
}

// WithName 设置实例名，用于日志和指标标签。空串忽略。
func WithName[K comparable, V any](name string) Option[K, V] {
	return func(o *options[K, V]) {
		if name != "" {
			o.name = name
		}
	}
}

// WithClock 注入时钟，测试中传入 clockwork.NewFakeClock()。nil 忽略。
func WithClock[K comparable, V any](clock clockwork.Clock) Option[K, V] {
	return func(o *options[K, V]) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithSizer 设置大小估算器，默认 JSONSizer。nil 忽略。
func WithSizer[K comparable, V any](s Sizer) Option[K, V] {
	return func(o *options[K, V]) {
		if s != nil {
			o.sizer = s
		}
	}
}

// WithLogger 设置日志器，默认 xlog.Default()。nil 忽略。
func WithLogger[K comparable, V any](l xlog.Logger) Option[K, V] {
	return func(o *options[K, V]) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithRecorder 设置事件计数器。nil 忽略。
func WithRecorder[K comparable, V any](r xmetrics.CacheRecorder) Option[K, V] {
	return func(o *options[K, V]) {
		if r != nil {
			o.recorder = r
		}
	}
}

// WithObserver 设置观测器，每个后台清理周期产生一个跨度。nil 忽略。
func WithObserver[K comparable, V any](obs xmetrics.Observer) Option[K, V] {
	return func(o *options[K, V]) {
		if obs != nil {
			o.observer = obs
		}
	}
}

// WithOnRemoved 设置条目移除回调。
//
// 回调在释放锁之后、在触发移除的 goroutine 上同步执行，
// 因此可以调用缓存自身的读写方法。Close 清空条目时不触发回调。
func WithOnRemoved[K comparable, V any](fn func(key K, value V, reason RemovalReason)) Option[K, V] {
	return func(o *options[K, V]) {
		o.onRemoved = fn
	}
}

// SetOption 定义单次写入的可选参数。
type SetOption func(*setOptions)

type setOptions struct {
	ttl      time.Duration
	ttlSet   bool
	priority Priority
}

// WithTTL 指定本条目的存活时间，必须大于 0，否则 Set 会 panic。
func WithTTL(d time.Duration) SetOption {
	return func(o *setOptions) {
		o.ttl = d
		o.ttlSet = true
	}
}

// WithPriority 指定本条目的优先级。
func WithPriority(p Priority) SetOption {
	return func(o *setOptions) {
		o.priority = p
	}
}
