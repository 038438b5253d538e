package xmetrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricCacheEntries  = "xcachekit.cache.entries"
	metricCacheSize     = "xcachekit.cache.size"
	metricCacheHitRatio = "xcachekit.cache.hit_ratio"
)

// Snapshot 是某一时刻的缓存状态。
type Snapshot struct {
	Entries      int64
	SizeBytes    int64
	MaxEntries   int64
	MaxSizeBytes int64
	Hits         uint64
	Misses       uint64
	Evictions    uint64
	HitRatio     float64
}

// Source 将一个具名缓存暴露给指标导出。
// Snapshot 在采集时调用，必须并发安全。
type Source struct {
	Name     string
	Snapshot func() Snapshot
}

func validateSources(sources []Source) error {
	for _, s := range sources {
		if s.Snapshot == nil {
			return fmt.Errorf("%w: %q", ErrNilSource, s.Name)
		}
	}
	return nil
}

// RegisterGauges 为 sources 注册 OTel 可观测 Gauge。
// 返回的 unregister 用于解除注册（进程内重建缓存时调用）。
func RegisterGauges(sources []Source, opts ...Option) (unregister func() error, err error) {
	if err := validateSources(sources); err != nil {
		return nil, err
	}
	cfg, err := newOTelConfig(opts)
	if err != nil {
		return nil, err
	}
	meter := cfg.meterProvider.Meter(cfg.instrumentationName)

	entries, err := meter.Int64ObservableGauge(metricCacheEntries,
		metric.WithDescription("live cache entries"), metric.WithUnit("1"))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCreateGauge, err)
	}
	size, err := meter.Int64ObservableGauge(metricCacheSize,
		metric.WithDescription("tracked cache size"), metric.WithUnit("By"))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCreateGauge, err)
	}
	ratio, err := meter.Float64ObservableGauge(metricCacheHitRatio,
		metric.WithDescription("hits / (hits + misses)"), metric.WithUnit("1"))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCreateGauge, err)
	}

	own := append([]Source(nil), sources...)
	reg, err := meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		for _, s := range own {
			snap := s.Snapshot()
			attrs := metric.WithAttributes(attribute.String("cache", s.Name))
			o.ObserveInt64(entries, snap.Entries, attrs)
			o.ObserveInt64(size, snap.SizeBytes, attrs)
			o.ObserveFloat64(ratio, snap.HitRatio, attrs)
		}
		return nil
	}, entries, size, ratio)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCreateGauge, err)
	}
	return reg.Unregister, nil
}
