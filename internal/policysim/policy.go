package policysim

import (
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jonboulle/clockwork"

	"github.com/omeyang/xcachekit/pkg/observability/xlog"
	"github.com/omeyang/xcachekit/pkg/storage/xbcache"
)

// 策略名。
const (
	PolicyXBCache   = "xbcache"
	PolicyLRU       = "lru"
	PolicyRistretto = "ristretto"
)

// Policies 返回全部策略名。
func Policies() []string {
	return []string{PolicyXBCache, PolicyLRU, PolicyRistretto}
}

type policy interface {
	get(key uint64) bool
	set(key uint64, value []byte)
	// tick 在每次请求之后调用。
	tick()
	evictions() uint64
	close()
}

func newPolicy(name string, w Workload) (policy, error) {
	switch name {
	case PolicyXBCache:
		return newXBCachePolicy(w)
	case PolicyLRU:
		return newLRUPolicy(w)
	case PolicyRistretto:
		return newRistrettoPolicy(w)
	default:
		return nil, fmt.Errorf("%w: unknown policy %q", ErrInvalidWorkload, name)
	}
}

// ---------------------------------------------------------------------------
// xbcache
// ---------------------------------------------------------------------------

type xbcachePolicy struct {
	w     Workload
	clock *clockwork.FakeClock
	cache *xbcache.Cache[uint64, []byte]
}

func newXBCachePolicy(w Workload) (*xbcachePolicy, error) {
	clk := clockwork.NewFakeClock()
	// 大小上限放宽到只由条目数约束，TTL 与清理周期远大于模拟时长。
	horizon := time.Duration(w.Requests+1)*w.Step + time.Hour
	cfg := xbcache.Config{
		MaxEntries:       w.Capacity,
		MaxSizeBytes:     int64(w.Capacity) * int64(w.ValueSize+1) * 20,
		DefaultTTL:       horizon,
		CleanupInterval:  horizon,
		MaxEntryFraction: 1,
	}
	c, err := xbcache.New[uint64, []byte](cfg,
		xbcache.WithName[uint64, []byte]("policysim"),
		xbcache.WithClock[uint64, []byte](clk),
		xbcache.WithLogger[uint64, []byte](xlog.Discard()),
	)
	if err != nil {
		return nil, err
	}
	return &xbcachePolicy{w: w, clock: clk, cache: c}, nil
}

func (p *xbcachePolicy) get(key uint64) bool {
	_, ok := p.cache.Get(key)
	return ok
}

func (p *xbcachePolicy) set(key uint64, value []byte) {
	prio := xbcache.PriorityMedium
	if p.w.high(key) {
		prio = xbcache.PriorityHigh
	}
	p.cache.Set(key, value, xbcache.WithPriority(prio))
}

func (p *xbcachePolicy) tick() {
	if p.w.Step > 0 {
		p.clock.Advance(p.w.Step)
	}
}

func (p *xbcachePolicy) evictions() uint64 { return p.cache.Stats().Evictions }
func (p *xbcachePolicy) close()            { p.cache.Close() }

// ---------------------------------------------------------------------------
// golang-lru
// ---------------------------------------------------------------------------

type lruPolicy struct {
	cache   *lru.Cache[uint64, []byte]
	evicted uint64
}

func newLRUPolicy(w Workload) (*lruPolicy, error) {
	p := &lruPolicy{}
	c, err := lru.NewWithEvict(w.Capacity, func(uint64, []byte) { p.evicted++ })
	if err != nil {
		return nil, fmt.Errorf("policysim: create lru: %w", err)
	}
	p.cache = c
	return p, nil
}

func (p *lruPolicy) get(key uint64) bool {
	_, ok := p.cache.Get(key)
	return ok
}

func (p *lruPolicy) set(key uint64, value []byte) { p.cache.Add(key, value) }
func (p *lruPolicy) tick()                        {}
func (p *lruPolicy) evictions() uint64            { return p.evicted }
func (p *lruPolicy) close()                       { p.cache.Purge() }

// ---------------------------------------------------------------------------
// ristretto
// ---------------------------------------------------------------------------

type ristrettoPolicy struct {
	cache *ristretto.Cache[uint64, []byte]
}

func newRistrettoPolicy(w Workload) (*ristrettoPolicy, error) {
	c, err := ristretto.NewCache(&ristretto.Config[uint64, []byte]{
		NumCounters: int64(w.Capacity) * 10,
		MaxCost:     int64(w.Capacity),
		BufferItems: 64,
		Metrics:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("policysim: create ristretto: %w", err)
	}
	return &ristrettoPolicy{cache: c}, nil
}

func (p *ristrettoPolicy) get(key uint64) bool {
	_, ok := p.cache.Get(key)
	return ok
}

// set 等待写缓冲刷新，使下一次请求能看到本次写入。
func (p *ristrettoPolicy) set(key uint64, value []byte) {
	p.cache.Set(key, value, 1)
	p.cache.Wait()
}

func (p *ristrettoPolicy) tick()             {}
func (p *ristrettoPolicy) evictions() uint64 { return p.cache.Metrics.KeysEvicted() }
func (p *ristrettoPolicy) close()            { p.cache.Close() }
