package xmetrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricCacheRequests   = "xcachekit.cache.requests"
	metricCacheRemovals   = "xcachekit.cache.removals"
	metricCacheRejections = "xcachekit.cache.rejections"
)

// CacheRecorder 记录缓存事件。
//
// 实现必须并发安全且不阻塞：xbcache 在持锁路径之外但仍在调用方 goroutine 上同步调用。
type CacheRecorder interface {
	// RecordGet 记录一次 Get，hit 表示是否命中。
	RecordGet(cache string, hit bool)
	// RecordRemoval 记录 n 个条目因 reason（expired/evicted/aggressive/deleted/replaced）被移除。
	RecordRemoval(cache, reason string, n int)
	// RecordRejection 记录一次超过单条目上限的写入被拒绝。
	RecordRejection(cache string)
}

// NoopCacheRecorder 是空实现。
type NoopCacheRecorder struct{}

// RecordGet 空实现。
func (NoopCacheRecorder) RecordGet(string, bool) {}

// RecordRemoval 空实现。
func (NoopCacheRecorder) RecordRemoval(string, string, int) {}

// RecordRejection 空实现。
func (NoopCacheRecorder) RecordRejection(string) {}

// NewOTelCacheRecorder 创建基于 OTel Counter 的 CacheRecorder。
func NewOTelCacheRecorder(opts ...Option) (CacheRecorder, error) {
	cfg, err := newOTelConfig(opts)
	if err != nil {
		return nil, err
	}
	meter := cfg.meterProvider.Meter(cfg.instrumentationName)

	requests, err := meter.Int64Counter(metricCacheRequests,
		metric.WithDescription("cache lookups by result"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCreateCounter, err)
	}
	removals, err := meter.Int64Counter(metricCacheRemovals,
		metric.WithDescription("cache entries removed by reason"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCreateCounter, err)
	}
	rejections, err := meter.Int64Counter(metricCacheRejections,
		metric.WithDescription("oversized values rejected by the cache"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCreateCounter, err)
	}

	return &otelCacheRecorder{requests: requests, removals: removals, rejections: rejections}, nil
}

type otelCacheRecorder struct {
	requests   metric.Int64Counter
	removals   metric.Int64Counter
	rejections metric.Int64Counter
}

func (r *otelCacheRecorder) RecordGet(cache string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	r.requests.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("cache", cache),
		attribute.String("result", result),
	))
}

func (r *otelCacheRecorder) RecordRemoval(cache, reason string, n int) {
	if n <= 0 {
		return
	}
	r.removals.Add(context.Background(), int64(n), metric.WithAttributes(
		attribute.String("cache", cache),
		attribute.String("reason", reason),
	))
}

func (r *otelCacheRecorder) RecordRejection(cache string) {
	r.rejections.Add(context.Background(), 1, metric.WithAttributes(attribute.String("cache", cache)))
}
