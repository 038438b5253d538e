package xbcache

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/omeyang/xcachekit/pkg/observability/xlog"
	"github.com/omeyang/xcachekit/pkg/observability/xmetrics"
)

// candidate 是一次评分快照，避免排序时反复计算分数。
type candidate[K comparable, V any] struct {
	key   K
	e     *entry[V]
	score float64
}

func compareCandidates[K comparable, V any](a, b candidate[K, V]) int {
	if c := cmp.Compare(a.score, b.score); c != 0 {
		return c
	}
	return cmp.Compare(a.e.seq, b.e.seq)
}

// makeRoomLocked 为即将写入的 size 字节腾出空间：
// 先扫除过期条目，仍不满足时按评分从低到高淘汰，直到
// len < MaxEntries 且 curSize+size <= MaxSizeBytes。
func (c *Cache[K, V]) makeRoomLocked(size int64, now time.Time, removed []removal[K, V]) []removal[K, V] {
	if !c.overLocked(size) {
		return removed
	}
	removed = c.sweepExpiredLocked(now, removed)
	for c.overLocked(size) && len(c.items) > 0 {
		key, e := c.lowestLocked(now)
		c.removeLocked(key, e)
		c.counters.evictions++
		removed = append(removed, removal[K, V]{key: key, value: e.value, reason: RemovalEvicted})
	}
	return removed
}

func (c *Cache[K, V]) overLocked(incoming int64) bool {
	return len(c.items) >= c.cfg.MaxEntries || c.curSize+incoming > c.cfg.MaxSizeBytes
}

// lowestLocked 线性扫描出评分最低（同分取 seq 最小）的条目，items 不能为空。
func (c *Cache[K, V]) lowestLocked(now time.Time) (K, *entry[V]) {
	var best candidate[K, V]
	first := true
	for k, e := range c.items {
		cand := candidate[K, V]{key: k, e: e, score: e.score(now, c.cfg.Weights)}
		if first || compareCandidates(cand, best) < 0 {
			best, first = cand, false
		}
	}
	return best.key, best.e
}

// rankedLocked 返回按评分升序排列的全部条目。
func (c *Cache[K, V]) rankedLocked(now time.Time) []candidate[K, V] {
	ranked := make([]candidate[K, V], 0, len(c.items))
	for k, e := range c.items {
		ranked = append(ranked, candidate[K, V]{key: k, e: e, score: e.score(now, c.cfg.Weights)})
	}
	slices.SortFunc(ranked, compareCandidates[K, V])
	return ranked
}

func (c *Cache[K, V]) sweepExpiredLocked(now time.Time, removed []removal[K, V]) []removal[K, V] {
	for k, e := range c.items {
		if e.expired(now) {
			c.removeLocked(k, e)
			c.counters.expirations++
			removed = append(removed, removal[K, V]{key: k, value: e.value, reason: RemovalExpired})
		}
	}
	return removed
}

// Optimize 执行一次清理：扫除过期条目，若仍超过任一上限则按评分淘汰。
// 返回移除的条目数。后台清理周期调用的就是它。
func (c *Cache[K, V]) Optimize() int {
	c.mu.Lock()
	if c.closed.Load() {
		c.mu.Unlock()
		return 0
	}
	now := c.clock.Now()
	removed := c.sweepExpiredLocked(now, nil)
	if len(c.items) > c.cfg.MaxEntries || c.curSize > c.cfg.MaxSizeBytes {
		ranked := c.rankedLocked(now)
		for _, cand := range ranked {
			if len(c.items) <= c.cfg.MaxEntries && c.curSize <= c.cfg.MaxSizeBytes {
				break
			}
			c.removeLocked(cand.key, cand.e)
			c.counters.evictions++
			removed = append(removed, removal[K, V]{key: cand.key, value: cand.e.value, reason: RemovalEvicted})
		}
	}
	c.mu.Unlock()

	c.notify(removed)
	return len(removed)
}

// AggressiveCleanup 移除 floor(n × AggressiveFraction) 个评分最低的条目（n > 0 时至少 1 个），
// 不论是否超出容量。DisableAggressiveCleanup 为 true 或缓存已关闭时返回 0。
//
// 供外部内存压力源调用，见 xpressure.Monitor。
func (c *Cache[K, V]) AggressiveCleanup() int {
	if c.cfg.DisableAggressiveCleanup {
		return 0
	}
	c.mu.Lock()
	n := len(c.items)
	if c.closed.Load() || n == 0 {
		c.mu.Unlock()
		return 0
	}
	target := max(int(float64(n)*c.cfg.AggressiveFraction), 1)
	ranked := c.rankedLocked(c.clock.Now())
	removed := make([]removal[K, V], 0, target)
	for _, cand := range ranked[:target] {
		c.removeLocked(cand.key, cand.e)
		removed = append(removed, removal[K, V]{key: cand.key, value: cand.e.value, reason: RemovalAggressive})
	}
	c.counters.aggressiveRuns++
	c.mu.Unlock()

	c.notify(removed)
	c.logger.Info(context.Background(), "aggressive cleanup",
		xlog.Count(int64(len(removed))), slog.Int("before", n))
	return len(removed)
}

func (c *Cache[K, V]) cleanupLoop(ticker clockwork.Ticker) {
	defer c.wg.Done()
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.Chan():
			// stop 与 tick 同时就绪时 select 随机选择，这里再确认一次
			select {
			case <-c.stop:
				return
			default:
			}
			c.runCleanup()
		}
	}
}

// runCleanup 执行一个清理周期，只由 cleanupLoop 串行调用，周期之间不会重叠。
// 与外部 Optimize 的并发由 c.mu 保证。panic 被捕获并记录，不影响后续周期。
func (c *Cache[K, V]) runCleanup() {
	ctx := context.Background()
	defer func() {
		if r := recover(); r != nil {
			c.logger.Stack(ctx, "cleanup cycle panicked", slog.Any("panic", r))
		}
	}()

	start := c.clock.Now()
	ctx, span := xmetrics.Start(ctx, c.observer, xmetrics.SpanOptions{
		Component: componentName,
		Operation: "cleanup",
		Kind:      xmetrics.KindInternal,
		Attrs:     []xmetrics.Attr{xmetrics.String("cache", c.name)},
	})
	n := c.Optimize()
	span.End(xmetrics.Result{Attrs: []xmetrics.Attr{xmetrics.Int("removed", n)}})

	if n > 0 {
		c.logger.Debug(ctx, "cleanup cycle", xlog.Count(int64(n)), xlog.Duration(c.clock.Since(start)))
	}
}
