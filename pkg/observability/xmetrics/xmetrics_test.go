package xmetrics

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func newReader(t *testing.T) (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	return reader, provider
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func sumFor(t *testing.T, m metricdata.Metrics, key, value string) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not an int64 sum", m.Name)
	var total int64
	for _, dp := range sum.DataPoints {
		if v, ok := dp.Attributes.Value(attribute.Key(key)); ok && v.AsString() == value {
			total += dp.Value
		}
	}
	return total
}

func TestStart_NilObserver(t *testing.T) {
	//nolint:staticcheck // nil ctx 归一化是契约的一部分
	ctx, span := Start(nil, nil, SpanOptions{})
	assert.NotNil(t, ctx)
	assert.Equal(t, NoopSpan{}, span)
	span.End(Result{})
}

func TestOTelObserver_RecordsSpanAndMetrics(t *testing.T) {
	reader, mp := newReader(t)
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	obs, err := NewOTelObserver(WithMeterProvider(mp), WithTracerProvider(tp))
	require.NoError(t, err)

	_, span := Start(context.Background(), obs, SpanOptions{
		Component: "xbcache",
		Operation: "cleanup",
		Attrs:     []Attr{String("cache", "ui")},
	})
	span.End(Result{Attrs: []Attr{Int("removed", 3)}})
	span.End(Result{Err: errors.New("ignored second end")})

	_, failed := Start(context.Background(), obs, SpanOptions{Component: "xbcache", Operation: "load", Kind: KindClient})
	failed.End(Result{Err: errors.New("backend down")})

	ended := recorder.Ended()
	require.Len(t, ended, 2)
	assert.Equal(t, "xbcache.cleanup", ended[0].Name())
	assert.Equal(t, trace.SpanKindInternal, ended[0].SpanKind())
	assert.Equal(t, trace.SpanKindClient, ended[1].SpanKind())

	metrics := collect(t, reader)
	total := metrics[metricOperationTotal]
	assert.Equal(t, int64(1), sumFor(t, total, "status", "ok"))
	assert.Equal(t, int64(1), sumFor(t, total, "status", "error"))
}

func TestNewOTelObserver_NilOption(t *testing.T) {
	_, err := NewOTelObserver(nil)
	assert.ErrorIs(t, err, ErrNilOption)
}

func TestOTelCacheRecorder(t *testing.T) {
	reader, mp := newReader(t)
	rec, err := NewOTelCacheRecorder(WithMeterProvider(mp))
	require.NoError(t, err)

	rec.RecordGet("financial", true)
	rec.RecordGet("financial", true)
	rec.RecordGet("financial", false)
	rec.RecordRemoval("financial", "evicted", 4)
	rec.RecordRemoval("financial", "expired", 0)
	rec.RecordRejection("financial")

	metrics := collect(t, reader)
	assert.Equal(t, int64(2), sumFor(t, metrics[metricCacheRequests], "result", "hit"))
	assert.Equal(t, int64(1), sumFor(t, metrics[metricCacheRequests], "result", "miss"))
	assert.Equal(t, int64(4), sumFor(t, metrics[metricCacheRemovals], "reason", "evicted"))
	assert.Equal(t, int64(0), sumFor(t, metrics[metricCacheRemovals], "reason", "expired"))
	assert.Equal(t, int64(1), sumFor(t, metrics[metricCacheRejections], "cache", "financial"))
}

func TestRegisterGauges(t *testing.T) {
	reader, mp := newReader(t)
	src := Source{Name: "ui", Snapshot: func() Snapshot {
		return Snapshot{Entries: 7, SizeBytes: 2048, HitRatio: 0.5}
	}}

	unregister, err := RegisterGauges([]Source{src}, WithMeterProvider(mp))
	require.NoError(t, err)

	metrics := collect(t, reader)
	gauge, ok := metrics[metricCacheEntries].Data.(metricdata.Gauge[int64])
	require.True(t, ok)
	require.Len(t, gauge.DataPoints, 1)
	assert.Equal(t, int64(7), gauge.DataPoints[0].Value)

	require.NoError(t, unregister())

	_, err = RegisterGauges([]Source{{Name: "broken"}}, WithMeterProvider(mp))
	assert.ErrorIs(t, err, ErrNilSource)
}

func TestCollector(t *testing.T) {
	snap := Snapshot{Entries: 3, SizeBytes: 300, MaxEntries: 10, MaxSizeBytes: 1000, Hits: 6, Misses: 2, Evictions: 1, HitRatio: 0.75}
	c, err := NewCollector("", Source{Name: "financial", Snapshot: func() Snapshot { return snap }})
	require.NoError(t, err)

	assert.Equal(t, 8, testutil.CollectAndCount(c))

	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, reg.Register(c))
	families, err := reg.Gather()
	require.NoError(t, err)

	values := make(map[string]float64)
	for _, f := range families {
		m := f.GetMetric()[0]
		switch {
		case m.GetGauge() != nil:
			values[f.GetName()] = m.GetGauge().GetValue()
		case m.GetCounter() != nil:
			values[f.GetName()] = m.GetCounter().GetValue()
		}
	}
	assert.InDelta(t, 0.75, values["xcachekit_cache_hit_ratio"], 1e-9)
	assert.InDelta(t, 3, values["xcachekit_cache_entries"], 1e-9)
	assert.InDelta(t, 1, values["xcachekit_cache_evictions_total"], 1e-9)

	_, err = NewCollector("x", Source{Name: "nil"})
	assert.ErrorIs(t, err, ErrNilSource)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "Internal", KindInternal.String())
	assert.Equal(t, "Client", KindClient.String())
	assert.Equal(t, "Kind(9)", Kind(9).String())
	assert.Equal(t, "Kind(-1)", Kind(-1).String())
}
