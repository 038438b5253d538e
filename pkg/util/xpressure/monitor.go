package xpressure

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/omeyang/xcachekit/pkg/observability/xlog"
)

const (
	DefaultThreshold = 0.8
	DefaultInterval  = 10 * time.Second
	DefaultCooldown  = 30 * time.Second
)

// Option 配置 Monitor。
type Option func(*Monitor)

// WithThreshold 设置触发阈值，取值 (0, 1]。
func WithThreshold(t float64) Option {
	return func(m *Monitor) { m.threshold = t }
}

// WithInterval 设置 Run 的采样间隔。
func WithInterval(d time.Duration) Option {
	return func(m *Monitor) { m.interval = d }
}

// WithCooldown 设置两次触发之间的最小间隔，0 表示不限制。
func WithCooldown(d time.Duration) Option {
	return func(m *Monitor) { m.cooldown = d }
}

// WithClock 注入时钟。nil 忽略。
func WithClock(c clockwork.Clock) Option {
	return func(m *Monitor) {
		if c != nil {
			m.clock = c
		}
	}
}

// WithLogger 设置日志器。nil 忽略。
func WithLogger(l xlog.Logger) Option {
	return func(m *Monitor) {
		if l != nil {
			m.logger = l
		}
	}
}

// Monitor 周期性采样内存，占用比例达到阈值时对所有 Target 执行激进清理。
type Monitor struct {
	sampler  Sampler
	interval time.Duration
	cooldown time.Duration
	clock    clockwork.Clock
	logger   xlog.Logger

	mu          sync.Mutex
	threshold   float64
	targets     []Target
	lastTrigger time.Time
}

// NewMonitor 创建 Monitor。
func NewMonitor(sampler Sampler, opts ...Option) (*Monitor, error) {
	if sampler == nil {
		return nil, ErrNilSampler
	}
	m := &Monitor{
		sampler:   sampler,
		threshold: DefaultThreshold,
		interval:  DefaultInterval,
		cooldown:  DefaultCooldown,
		clock:     clockwork.NewRealClock(),
		logger:    xlog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	if !validThreshold(m.threshold) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidThreshold, m.threshold)
	}
	if m.interval <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInterval, m.interval)
	}
	if m.cooldown < 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidCooldown, m.cooldown)
	}
	m.logger = m.logger.With(xlog.Component("xpressure"))
	return m, nil
}

func validThreshold(t float64) bool {
	return t > 0 && t <= 1
}

// Register 注册清理对象，nil 被忽略。
func (m *Monitor) Register(targets ...Target) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range targets {
		if t != nil {
			m.targets = append(m.targets, t)
		}
	}
}

// SetThreshold 热更新阈值。
func (m *Monitor) SetThreshold(t float64) error {
	if !validThreshold(t) {
		return fmt.Errorf("%w: %v", ErrInvalidThreshold, t)
	}
	m.mu.Lock()
	old := m.threshold
	m.threshold = t
	m.mu.Unlock()
	if old != t {
		m.logger.Info(context.Background(), "pressure threshold changed",
			slog.Float64("old", old), slog.Float64("new", t))
	}
	return nil
}

// Threshold 返回当前阈值。
func (m *Monitor) Threshold() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.threshold
}

// Check 采样一次，比例达到阈值且不在冷却期内时清理所有 Target，返回是否触发。
func (m *Monitor) Check(ctx context.Context) (bool, error) {
	r, err := m.sampler.Sample(ctx)
	if err != nil {
		return false, err
	}

	m.mu.Lock()
	threshold := m.threshold
	if r.Ratio < threshold {
		m.mu.Unlock()
		return false, nil
	}
	now := m.clock.Now()
	if !m.lastTrigger.IsZero() && now.Sub(m.lastTrigger) < m.cooldown {
		m.mu.Unlock()
		m.logger.Debug(ctx, "memory pressure within cooldown", slog.Float64("ratio", r.Ratio))
		return false, nil
	}
	m.lastTrigger = now
	targets := append([]Target(nil), m.targets...)
	m.mu.Unlock()

	m.logger.Warn(ctx, "memory pressure detected",
		slog.Float64("ratio", r.Ratio), slog.Float64("threshold", threshold),
		slog.Uint64("used_bytes", r.Used), slog.Int("targets", len(targets)))
	for _, t := range targets {
		n := t.AggressiveCleanup()
		m.logger.Info(ctx, "aggressive cleanup triggered", xlog.Cache(t.Name()), xlog.Count(int64(n)))
	}
	return true, nil
}

// Run 每个 interval 调用一次 Check，直到 ctx 取消。采样失败只记录日志，不退出。
// 签名与 xrun.Group.Go 兼容。
func (m *Monitor) Run(ctx context.Context) error {
	ticker := m.clock.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
			if _, err := m.Check(ctx); err != nil {
				m.logger.Warn(ctx, "memory sample failed", xlog.Err(err))
			}
		}
	}
}
