package xbcache

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"github.com/omeyang/xcachekit/pkg/observability/xlog"
	"github.com/omeyang/xcachekit/pkg/observability/xmetrics"
)

const componentName = "xbcache"

// Cache 是按条目数与估算字节数双重限额的缓存。
// 必须通过 [New] 创建，所有方法并发安全。
type Cache[K comparable, V any] struct {
	cfg          Config
	maxEntrySize int64
	name         string

	clock     clockwork.Clock
	sizer     Sizer
	logger    xlog.Logger
	recorder  xmetrics.CacheRecorder
	observer  xmetrics.Observer
	onRemoved func(key K, value V, reason RemovalReason)

	mu       sync.Mutex
	items    map[K]*entry[V]
	curSize  int64
	seq      uint64
	counters counters

	loads singleflight.Group

	closed    atomic.Bool
	closeOnce sync.Once
	stop      chan struct{}
	wg        sync.WaitGroup
}

// New 创建缓存并启动后台清理 goroutine。
// 配置非法时返回包装了 ErrInvalidConfig 的错误。
func New[K comparable, V any](cfg Config, opts ...Option[K, V]) (*Cache[K, V], error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := &options[K, V]{}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	if o.name == "" {
		o.name = componentName + "-" + uuid.NewString()[:8]
	}
	if o.clock == nil {
		o.clock = clockwork.NewRealClock()
	}
	if o.sizer == nil {
		o.sizer = JSONSizer{}
	}
	if o.logger == nil {
		o.logger = xlog.Default()
	}
	if o.recorder == nil {
		o.recorder = xmetrics.NoopCacheRecorder{}
	}
	if o.observer == nil {
		o.observer = xmetrics.NoopObserver{}
	}

	c := &Cache[K, V]{
		cfg:          cfg,
		maxEntrySize: cfg.maxEntrySize(),
		name:         o.name,
		clock:        o.clock,
		sizer:        o.sizer,
		logger:       o.logger.With(xlog.Component(componentName), xlog.Cache(o.name)),
		recorder:     o.recorder,
		observer:     o.observer,
		onRemoved:    o.onRemoved,
		items:        make(map[K]*entry[V]),
		stop:         make(chan struct{}),
	}

	// ticker 在返回前创建，保证 FakeClock.Advance 对刚创建的实例立即生效
	ticker := c.clock.NewTicker(cfg.CleanupInterval)
	c.wg.Add(1)
	go c.cleanupLoop(ticker)

	return c, nil
}

// Name 返回实例名。
func (c *Cache[K, V]) Name() string { return c.name }

// Config 返回填充默认值后的配置副本。
func (c *Cache[K, V]) Config() Config { return c.cfg }

// Set 写入 key。
//
// 空键（K 的零值）、WithTTL 非正、未知优先级会 panic。
// 估算大小超过单条目上限时静默拒绝，已有的同键条目保持不变。
// 缓存关闭后静默忽略。
func (c *Cache[K, V]) Set(key K, value V, opts ...SetOption) {
	so := c.resolve(key, opts)
	if c.closed.Load() {
		return
	}

	size, err := measure(c.sizer, value)
	if err != nil {
		c.logger.Debug(context.Background(), "size estimation failed, using fallback",
			xlog.KeyHash(key), xlog.Bytes(size), xlog.Err(err))
	}
	if size > c.maxEntrySize {
		c.reject(key, size)
		return
	}

	c.mu.Lock()
	if c.closed.Load() {
		c.mu.Unlock()
		return
	}
	now := c.clock.Now()
	var removed []removal[K, V]
	if old, ok := c.items[key]; ok {
		c.removeLocked(key, old)
		removed = append(removed, removal[K, V]{key: key, value: old.value, reason: RemovalReplaced})
	}
	removed = c.makeRoomLocked(size, now, removed)

	c.seq++
	c.items[key] = &entry[V]{
		value:          value,
		createdAt:      now,
		expiresAt:      now.Add(so.ttl),
		lastAccessedAt: now,
		accessCount:    1,
		size:           size,
		seq:            c.seq,
		priority:       so.priority,
	}
	c.curSize += size
	c.mu.Unlock()

	c.notify(removed)
}

// resolve 校验写入前置条件并合并 SetOption，违反时 panic。
func (c *Cache[K, V]) resolve(key K, opts []SetOption) setOptions {
	var zero K
	if key == zero {
		panic("xbcache: empty key")
	}
	// NaN 之类不等于自身的键写入 map 后无法再删除
	if key != key { //nolint:staticcheck // 自比较用于识别 NaN
		panic("xbcache: key is not comparable to itself")
	}
	so := setOptions{ttl: c.cfg.DefaultTTL, priority: PriorityMedium}
	for _, opt := range opts {
		if opt != nil {
			opt(&so)
		}
	}
	if so.ttlSet && so.ttl <= 0 {
		panic(fmt.Sprintf("xbcache: ttl must be positive, got %s", so.ttl))
	}
	if !so.priority.valid() {
		panic(fmt.Sprintf("xbcache: unknown priority %s", so.priority))
	}
	return so
}

func (c *Cache[K, V]) reject(key K, size int64) {
	c.mu.Lock()
	c.counters.rejections++
	c.mu.Unlock()
	c.recorder.RecordRejection(c.name)
	c.logger.Warn(context.Background(), "value exceeds per-entry limit, not cached",
		xlog.KeyHash(key), xlog.Bytes(size), slog.Int64("limit_bytes", c.maxEntrySize))
}

// Get 读取 key。命中时累加访问次数并刷新最近访问时间；
// 不存在或已过期时返回零值与 false，过期条目被顺带删除。
func (c *Cache[K, V]) Get(key K) (V, bool) {
	var zero V
	c.mu.Lock()
	if c.closed.Load() {
		c.mu.Unlock()
		return zero, false
	}
	e, ok := c.items[key]
	if !ok {
		c.counters.misses++
		c.mu.Unlock()
		c.recorder.RecordGet(c.name, false)
		return zero, false
	}
	now := c.clock.Now()
	if e.expired(now) {
		c.removeLocked(key, e)
		c.counters.misses++
		c.counters.expirations++
		c.mu.Unlock()
		c.recorder.RecordGet(c.name, false)
		c.notify([]removal[K, V]{{key: key, value: e.value, reason: RemovalExpired}})
		return zero, false
	}
	e.accessCount++
	e.lastAccessedAt = now
	c.counters.hits++
	v := e.value
	c.mu.Unlock()
	c.recorder.RecordGet(c.name, true)
	return v, true
}

// Peek 读取 key 但不计入命中统计、不影响淘汰评分。过期条目被顺带删除。
func (c *Cache[K, V]) Peek(key K) (V, bool) {
	var zero V
	c.mu.Lock()
	if c.closed.Load() {
		c.mu.Unlock()
		return zero, false
	}
	e, ok := c.items[key]
	if !ok {
		c.mu.Unlock()
		return zero, false
	}
	if e.expired(c.clock.Now()) {
		c.removeLocked(key, e)
		c.counters.expirations++
		c.mu.Unlock()
		c.notify([]removal[K, V]{{key: key, value: e.value, reason: RemovalExpired}})
		return zero, false
	}
	v := e.value
	c.mu.Unlock()
	return v, true
}

// Has 报告 key 是否存在且未过期，语义同 Peek。
func (c *Cache[K, V]) Has(key K) bool {
	_, ok := c.Peek(key)
	return ok
}

// Delete 删除 key，返回删除前是否存在，与 Has 一致：已过期未清理的条目按过期移除并返回 false。
func (c *Cache[K, V]) Delete(key K) bool {
	c.mu.Lock()
	e, ok := c.items[key]
	if !ok {
		c.mu.Unlock()
		return false
	}
	c.removeLocked(key, e)
	if e.expired(c.clock.Now()) {
		c.counters.expirations++
		c.mu.Unlock()
		c.notify([]removal[K, V]{{key: key, value: e.value, reason: RemovalExpired}})
		return false
	}
	c.mu.Unlock()
	c.notify([]removal[K, V]{{key: key, value: e.value, reason: RemovalDeleted}})
	return true
}

// Clear 删除所有条目并重置命中/未命中计数。淘汰、过期等累计计数保留。
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	removed := make([]removal[K, V], 0, len(c.items))
	for k, e := range c.items {
		removed = append(removed, removal[K, V]{key: k, value: e.value, reason: RemovalDeleted})
	}
	clear(c.items)
	c.curSize = 0
	c.counters.hits, c.counters.misses = 0, 0
	c.mu.Unlock()
	c.notify(removed)
}

// Len 返回当前条目数，可能包含已过期但尚未被清理的条目。
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Keys 按插入顺序返回未过期条目的键。
func (c *Cache[K, V]) Keys() []K {
	c.mu.Lock()
	now := c.clock.Now()
	live := make([]keyedSeq[K], 0, len(c.items))
	for k, e := range c.items {
		if !e.expired(now) {
			live = append(live, keyedSeq[K]{key: k, seq: e.seq})
		}
	}
	c.mu.Unlock()

	slices.SortFunc(live, func(a, b keyedSeq[K]) int { return cmp.Compare(a.seq, b.seq) })
	keys := make([]K, len(live))
	for i, kv := range live {
		keys[i] = kv.key
	}
	return keys
}

// Close 停止后台清理并清空条目。幂等。
//
// Close 返回时清理 goroutine 已退出，不会再有清理周期执行。
// 不要在 WithOnRemoved 回调中调用 Close，后台清理触发的回调会因此互相等待。
func (c *Cache[K, V]) Close() {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		close(c.stop)
		c.wg.Wait()

		c.mu.Lock()
		clear(c.items)
		c.curSize = 0
		c.mu.Unlock()
	})
}

// Destroy 是 Close 的别名。
func (c *Cache[K, V]) Destroy() { c.Close() }

type keyedSeq[K comparable] struct {
	key K
	seq uint64
}

// removeLocked 删除条目并扣减大小，调用方持有 mu。
func (c *Cache[K, V]) removeLocked(key K, e *entry[V]) {
	delete(c.items, key)
	c.curSize -= e.size
}

// notify 在锁外分发移除事件。
func (c *Cache[K, V]) notify(removed []removal[K, V]) {
	if len(removed) == 0 {
		return
	}
	var byReason [5]int
	for _, r := range removed {
		byReason[reasonIndex(r.reason)]++
	}
	for i, n := range byReason {
		if n > 0 {
			c.recorder.RecordRemoval(c.name, string(reasonOrder[i]), n)
		}
	}
	if c.onRemoved == nil {
		return
	}
	for _, r := range removed {
		c.onRemoved(r.key, r.value, r.reason)
	}
}

var reasonOrder = [5]RemovalReason{
	RemovalExpired, RemovalEvicted, RemovalAggressive, RemovalDeleted, RemovalReplaced,
}

func reasonIndex(r RemovalReason) int {
	for i, v := range reasonOrder {
		if v == r {
			return i
		}
	}
	return 3
}
