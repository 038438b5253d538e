package xpressure

//go:generate mockgen -source=sampler.go -destination=mock_sampler_test.go -package=xpressure

import (
	"context"
	"fmt"
	"math"
	"runtime/debug"
	"runtime/metrics"

	"github.com/shirou/gopsutil/v4/mem"
)

// Reading 是一次内存采样结果。
type Reading struct {
	Used  uint64
	Limit uint64
	// Ratio = Used / Limit，Limit 为 0 时为 0。
	Ratio float64
}

// NewReading 由已用量和上限构造 Reading。
func NewReading(used, limit uint64) Reading {
	r := Reading{Used: used, Limit: limit}
	if limit > 0 {
		r.Ratio = float64(used) / float64(limit)
	}
	return r
}

// Sampler 采样当前内存占用。
type Sampler interface {
	Sample(ctx context.Context) (Reading, error)
}

// Target 是可被激进清理的对象，*xbcache.Cache 满足此接口。
type Target interface {
	Name() string
	AggressiveCleanup() int
}

const heapObjectsMetric = "/memory/classes/heap/objects:bytes"

// RuntimeSampler 以 Go 堆上存活对象的字节数对比 GOMEMLIMIT。
type RuntimeSampler struct {
	fallbackLimit uint64
}

// NewRuntimeSampler 创建 RuntimeSampler。
// 进程未设置 GOMEMLIMIT 时使用 fallbackLimit，两者都没有时 Sample 返回 ErrNoLimit。
func NewRuntimeSampler(fallbackLimit uint64) *RuntimeSampler {
	return &RuntimeSampler{fallbackLimit: fallbackLimit}
}

// Sample 实现 Sampler。
func (s *RuntimeSampler) Sample(context.Context) (Reading, error) {
	samples := []metrics.Sample{{Name: heapObjectsMetric}}
	metrics.Read(samples)
	if samples[0].Value.Kind() != metrics.KindUint64 {
		return Reading{}, fmt.Errorf("%w: runtime metric %s unavailable", ErrSample, heapObjectsMetric)
	}
	used := samples[0].Value.Uint64()

	limit := s.limit()
	if limit == 0 {
		return Reading{}, ErrNoLimit
	}
	return NewReading(used, limit), nil
}

// HasLimit 报告 Sample 能否确定上限。为 false 时每次 Sample 都返回 ErrNoLimit，
// 调用方应在启动时改用其他 Sampler。
func (s *RuntimeSampler) HasLimit() bool {
	return s.limit() > 0
}

// limit 优先取 GOMEMLIMIT，未设置时为 fallbackLimit。
func (s *RuntimeSampler) limit() uint64 {
	// 负数参数只读取当前值，不修改
	if l := debug.SetMemoryLimit(-1); l > 0 && l != math.MaxInt64 {
		return uint64(l)
	}
	return s.fallbackLimit
}

// HostSampler 采样主机内存。
type HostSampler struct {
	virtualMemory func(ctx context.Context) (*mem.VirtualMemoryStat, error)
}

// NewHostSampler 创建 HostSampler。
func NewHostSampler() *HostSampler {
	return &HostSampler{virtualMemory: mem.VirtualMemoryWithContext}
}

// Sample 实现 Sampler。
func (s *HostSampler) Sample(ctx context.Context) (Reading, error) {
	vm, err := s.virtualMemory(ctx)
	if err != nil {
		return Reading{}, fmt.Errorf("%w: %w", ErrSample, err)
	}
	if vm.Total == 0 {
		return Reading{}, ErrNoLimit
	}
	return NewReading(vm.Used, vm.Total), nil
}
