package xbcache

import "github.com/omeyang/xcachekit/pkg/observability/xmetrics"

type counters struct {
	hits           uint64
	misses         uint64
	evictions      uint64
	expirations    uint64
	rejections     uint64
	aggressiveRuns uint64
}

// Stats 是缓存状态快照。
type Stats struct {
	Name         string
	Entries      int
	SizeBytes    int64
	MaxSizeBytes int64
	MaxEntries   int

	// HitRate = Hits / (Hits + Misses)，无访问时为 0。
	HitRate float64
	Hits    uint64
	Misses  uint64

	// 以下为累计值，Clear 不重置。
	Evictions      uint64
	Expirations    uint64
	Rejections     uint64
	AggressiveRuns uint64
}

// Stats 返回当前状态快照，只读，不触发清理。
func (c *Cache[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Stats{
		Name:           c.name,
		Entries:        len(c.items),
		SizeBytes:      c.curSize,
		MaxSizeBytes:   c.cfg.MaxSizeBytes,
		MaxEntries:     c.cfg.MaxEntries,
		Hits:           c.counters.hits,
		Misses:         c.counters.misses,
		Evictions:      c.counters.evictions,
		Expirations:    c.counters.expirations,
		Rejections:     c.counters.rejections,
		AggressiveRuns: c.counters.aggressiveRuns,
	}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	return s
}

// MetricsSource 将缓存适配为 xmetrics.Source。
func (c *Cache[K, V]) MetricsSource() xmetrics.Source {
	return xmetrics.Source{
		Name: c.name,
		Snapshot: func() xmetrics.Snapshot {
			s := c.Stats()
			return xmetrics.Snapshot{
				Entries:      int64(s.Entries),
				SizeBytes:    s.SizeBytes,
				MaxEntries:   int64(s.MaxEntries),
				MaxSizeBytes: s.MaxSizeBytes,
				Hits:         s.Hits,
				Misses:       s.Misses,
				Evictions:    s.Evictions,
				HitRatio:     s.HitRate,
			}
		},
	}
}
