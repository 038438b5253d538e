package xbcache

import (
	"fmt"
	"math/rand/v2"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// maxEntries=2：低优先级 a 与被读取三次的高优先级 b，写入 c 时淘汰 a。
func TestEviction_LowestScore(t *testing.T) {
	var log removalLog
	c, _ := newTestCache(t, Config{MaxEntries: 2}, WithOnRemoved(log.record))

	c.Set("a", "1", WithPriority(PriorityLow))
	c.Set("b", "2", WithPriority(PriorityHigh))
	for range 3 {
		c.Get("b")
	}
	c.Set("c", "3")

	assert.False(t, c.Has("a"))
	assert.True(t, c.Has("b"))
	assert.True(t, c.Has("c"))
	assert.Equal(t, []string{"a:evicted"}, log.snapshot())
	assert.Equal(t, uint64(1), c.Stats().Evictions)
}

// 高优先级且频繁访问的条目在淘汰中存活，低优先级且久未访问的被淘汰。
func TestEviction_HotSurvivesStale(t *testing.T) {
	c, clk := newTestCache[string](t, Config{MaxEntries: 3, DefaultTTL: time.Hour, CleanupInterval: time.Hour})

	c.Set("stale", "s", WithPriority(PriorityLow))
	c.Set("hot", "h", WithPriority(PriorityHigh))
	c.Set("mid", "m")

	clk.Advance(10 * time.Minute)
	for range 5 {
		c.Get("hot")
	}
	c.Get("mid")
	c.Set("new", "n")

	assert.False(t, c.Has("stale"))
	assert.True(t, c.Has("hot"))
	assert.True(t, c.Has("mid"))
	assert.True(t, c.Has("new"))
}

// 同分时先插入者先被淘汰。
func TestEviction_TieBreaksOnInsertionOrder(t *testing.T) {
	c, _ := newTestCache[string](t, Config{MaxEntries: 3})

	c.Set("a", "1")
	c.Set("b", "2")
	c.Set("c", "3")
	c.Set("d", "4")

	assert.Equal(t, []string{"b", "c", "d"}, c.Keys())
}

func TestEviction_BySize(t *testing.T) {
	c, _ := newTestCache(t, Config{MaxSizeBytes: 1000, MaxEntryFraction: 1},
		WithSizer[string, string](lenSizer))

	c.Set("a", string(make([]byte, 400)))
	c.Set("b", string(make([]byte, 400)))
	c.Set("c", string(make([]byte, 400)))

	assert.Equal(t, []string{"b", "c"}, c.Keys())
	assert.Equal(t, int64(800), c.Stats().SizeBytes)
}

// 需要腾空间时先清除过期条目，即使其评分更高。
func TestEviction_ExpiredFirst(t *testing.T) {
	var log removalLog
	c, clk := newTestCache(t, Config{MaxEntries: 2}, WithOnRemoved(log.record))

	c.Set("x", "1", WithTTL(time.Second), WithPriority(PriorityHigh))
	for range 10 {
		c.Get("x")
	}
	c.Set("y", "2", WithPriority(PriorityLow))
	clk.Advance(2 * time.Second)
	c.Set("z", "3")

	assert.Equal(t, []string{"y", "z"}, c.Keys())
	assert.Equal(t, []string{"x:expired"}, log.snapshot())
	assert.Zero(t, c.Stats().Evictions)
}

// 任意写入序列后条目数与字节数都不超过上限，且字节数等于存活条目大小之和。
func TestCapacityInvariant(t *testing.T) {
	const (
		maxEntries = 16
		maxSize    = 2000
	)
	c, clk := newTestCache(t, Config{MaxEntries: maxEntries, MaxSizeBytes: maxSize, MaxEntryFraction: 0.25},
		WithSizer[string, string](lenSizer))

	rng := rand.New(rand.NewPCG(1, 2))
	for i := range 2000 {
		key := fmt.Sprintf("k%d", rng.IntN(64))
		value := string(make([]byte, rng.IntN(600)))
		opts := []SetOption{WithPriority(Priority(rng.IntN(3)))}
		if rng.IntN(4) == 0 {
			opts = append(opts, WithTTL(time.Duration(1+rng.IntN(5))*time.Second))
		}
		c.Set(key, value, opts...)
		if rng.IntN(3) == 0 {
			c.Get(fmt.Sprintf("k%d", rng.IntN(64)))
		}
		if i%50 == 0 {
			clk.Advance(time.Second)
		}

		s := c.Stats()
		require.LessOrEqual(t, s.Entries, maxEntries)
		require.LessOrEqual(t, s.SizeBytes, int64(maxSize))

		c.mu.Lock()
		var sum int64
		for _, e := range c.items {
			sum += e.size
		}
		c.mu.Unlock()
		require.Equal(t, sum, s.SizeBytes)
	}
}

func TestOptimize_SweepsExpired(t *testing.T) {
	rec := newFakeRecorder()
	c, clk := newTestCache(t, Config{CleanupInterval: time.Hour}, WithRecorder[string, string](rec))

	for i := range 3 {
		c.Set(fmt.Sprintf("short%d", i), "v", WithTTL(time.Second))
	}
	c.Set("long", "v")
	clk.Advance(2 * time.Second)

	assert.Equal(t, 3, c.Optimize())
	assert.Equal(t, []string{"long"}, c.Keys())
	assert.Equal(t, 3, rec.removed(RemovalExpired))
	assert.Zero(t, c.Optimize())
}

// 对满载缓存执行激进清理，移除约一半条目且优先移除评分最低的。
func TestAggressiveCleanup(t *testing.T) {
	c, _ := newTestCache[string](t, Config{MaxEntries: 10})

	for i := range 10 {
		c.Set(fmt.Sprintf("k%d", i), "v")
	}
	// k5..k9 被访问，评分高于 k0..k4
	for i := 5; i < 10; i++ {
		c.Get(fmt.Sprintf("k%d", i))
	}

	assert.Equal(t, 5, c.AggressiveCleanup())
	assert.Equal(t, []string{"k5", "k6", "k7", "k8", "k9"}, c.Keys())
	assert.Equal(t, uint64(1), c.Stats().AggressiveRuns)
}

func TestAggressiveCleanup_Edges(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		c, _ := newTestCache[string](t, Config{})
		assert.Zero(t, c.AggressiveCleanup())
		assert.Zero(t, c.Stats().AggressiveRuns)
	})

	t.Run("single entry removes at least one", func(t *testing.T) {
		c, _ := newTestCache[string](t, Config{})
		c.Set("only", "v")
		assert.Equal(t, 1, c.AggressiveCleanup())
		assert.Equal(t, 0, c.Len())
	})

	t.Run("disabled", func(t *testing.T) {
		c, _ := newTestCache[string](t, Config{DisableAggressiveCleanup: true})
		c.Set("a", "1")
		c.Set("b", "2")
		assert.Zero(t, c.AggressiveCleanup())
		assert.Equal(t, 2, c.Len())
	})

	t.Run("custom fraction", func(t *testing.T) {
		c, _ := newTestCache[string](t, Config{AggressiveFraction: 0.25})
		for i := range 9 {
			c.Set(fmt.Sprintf("k%d", i), "v")
		}
		assert.Equal(t, 2, c.AggressiveCleanup())
		assert.Equal(t, 7, c.Len())
	})
}

func TestScore(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	w := DefaultWeights()
	e := &entry[string]{accessCount: 4, priority: PriorityHigh, lastAccessedAt: now.Add(-90 * time.Second)}
	assert.InDelta(t, 4*3-1.5, e.score(now, w), 1e-9)

	e.priority = PriorityLow
	assert.InDelta(t, 4*1-1.5, e.score(now, w), 1e-9)
}

func TestBackgroundCleanup(t *testing.T) {
	c, clk := newTestCache[string](t, Config{CleanupInterval: time.Minute})

	c.Set("k", "v", WithTTL(30*time.Second))
	clk.Advance(61 * time.Second)

	require.Eventually(t, func() bool { return c.Len() == 0 }, time.Second, 5*time.Millisecond)
}

// 清理周期中的 panic 被捕获，后续周期照常执行。
func TestBackgroundCleanup_RecoversPanic(t *testing.T) {
	var calls atomic.Int32
	c, clk := newTestCache(t, Config{CleanupInterval: time.Minute},
		WithOnRemoved(func(string, string, RemovalReason) {
			if calls.Add(1) == 1 {
				panic("callback failure")
			}
		}))

	c.Set("x", "v", WithTTL(30*time.Second))
	clk.Advance(61 * time.Second)
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	c.Set("y", "v", WithTTL(30*time.Second))
	clk.Advance(61 * time.Second)
	require.Eventually(t, func() bool { return calls.Load() == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, c.Len())
}

// Close 返回后不再有清理周期执行。
func TestClose_StopsCleanup(t *testing.T) {
	var calls atomic.Int32
	c, clk := newTestCache(t, Config{CleanupInterval: time.Minute},
		WithOnRemoved(func(string, string, RemovalReason) { calls.Add(1) }))

	c.Set("k", "v", WithTTL(time.Second))
	c.Close()
	clk.Advance(2 * time.Minute)

	assert.Zero(t, calls.Load())
}

// 外部 Optimize 与后台清理周期并发执行时，字节记账与条目数保持一致。
func TestOptimize_ConcurrentWithCleanup(t *testing.T) {
	c, clk := newTestCache(t, Config{CleanupInterval: time.Second, MaxEntries: 50},
		WithSizer[string, string](lenSizer))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := range 200 {
			c.Set(fmt.Sprintf("k%d", i), "value", WithTTL(time.Second))
			c.Optimize()
		}
	}()
	for range 20 {
		clk.Advance(time.Second)
		c.Optimize()
	}
	<-done
	clk.Advance(2 * time.Second)
	c.Optimize()

	c.mu.Lock()
	var sum int64
	for _, e := range c.items {
		sum += e.size
	}
	size, n := c.curSize, len(c.items)
	c.mu.Unlock()
	assert.Equal(t, sum, size)
	assert.Zero(t, n)
	assert.Zero(t, c.Stats().SizeBytes)
}
