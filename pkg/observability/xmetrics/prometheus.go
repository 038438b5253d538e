package xmetrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// DefaultNamespace 是 Prometheus 指标的默认命名空间。
const DefaultNamespace = "xcachekit"

// Collector 将缓存快照导出为 Prometheus 指标。
//
// 每次 scrape 时调用各 Source 的 Snapshot，不缓存中间状态。
type Collector struct {
	sources    []Source
	entries    *prometheus.Desc
	size       *prometheus.Desc
	maxEntries *prometheus.Desc
	maxSize    *prometheus.Desc
	hits       *prometheus.Desc
	misses     *prometheus.Desc
	evictions  *prometheus.Desc
	hitRatio   *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector 创建 Collector。namespace 为空时使用 DefaultNamespace。
func NewCollector(namespace string, sources ...Source) (*Collector, error) {
	if err := validateSources(sources); err != nil {
		return nil, err
	}
	if namespace == "" {
		namespace = DefaultNamespace
	}
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "cache", name), help, []string{"cache"}, nil)
	}
	return &Collector{
		sources:    append([]Source(nil), sources...),
		entries:    desc("entries", "Live cache entries."),
		size:       desc("size_bytes", "Tracked cache size in bytes."),
		maxEntries: desc("max_entries", "Configured entry cap."),
		maxSize:    desc("max_size_bytes", "Configured size cap in bytes."),
		hits:       desc("hits", "Cache hits since the last clear."),
		misses:     desc("misses", "Cache misses since the last clear."),
		evictions:  desc("evictions_total", "Entries evicted for capacity."),
		hitRatio:   desc("hit_ratio", "hits / (hits + misses)."),
	}, nil
}

// Describe 实现 prometheus.Collector。
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.entries
	ch <- c.size
	ch <- c.maxEntries
	ch <- c.maxSize
	ch <- c.hits
	ch <- c.misses
	ch <- c.evictions
	ch <- c.hitRatio
}

// Collect 实现 prometheus.Collector。
//
// hits/misses 在 Clear 后会归零，因此以 Gauge 而非 Counter 导出。
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for _, s := range c.sources {
		snap := s.Snapshot()
		gauge := func(d *prometheus.Desc, v float64) {
			ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v, s.Name)
		}
		gauge(c.entries, float64(snap.Entries))
		gauge(c.size, float64(snap.SizeBytes))
		gauge(c.maxEntries, float64(snap.MaxEntries))
		gauge(c.maxSize, float64(snap.MaxSizeBytes))
		gauge(c.hits, float64(snap.Hits))
		gauge(c.misses, float64(snap.Misses))
		ch <- prometheus.MustNewConstMetric(c.evictions, prometheus.CounterValue, float64(snap.Evictions), s.Name)
		gauge(c.hitRatio, snap.HitRatio)
	}
}
