package xbcache

import (
	"fmt"
	"time"
)

// 默认值。
const (
	DefaultMaxSizeBytes       int64 = 10 << 20
	DefaultMaxEntries               = 500
	DefaultTTL                      = 5 * time.Minute
	DefaultCleanupInterval          = 60 * time.Second
	DefaultMaxEntryFraction         = 0.10
	DefaultAggressiveFraction       = 0.50
	DefaultRecencyUnit              = time.Minute
)

// ScoreWeights 定义淘汰评分参数。零值字段取默认值。
type ScoreWeights struct {
	Low    float64
	Medium float64
	High   float64

	// RecencyUnit 是最近访问惩罚的时间单位：距上次访问每过一个单位，分数减 1。
	RecencyUnit time.Duration
}

// DefaultWeights 返回默认评分参数：low=1, medium=2, high=3，惩罚单位为 1 分钟。
func DefaultWeights() ScoreWeights {
	return ScoreWeights{Low: 1, Medium: 2, High: 3, RecencyUnit: DefaultRecencyUnit}
}

func (w ScoreWeights) of(p Priority) float64 {
	switch p {
	case PriorityLow:
		return w.Low
	case PriorityHigh:
		return w.High
	default:
		return w.Medium
	}
}

// Config 定义缓存配置。实例创建后不可变。
type Config struct {
	// MaxSizeBytes 估算总字节数上限。
	MaxSizeBytes int64

	// MaxEntries 条目数上限。
	MaxEntries int

	// DefaultTTL 未指定 WithTTL 时的条目存活时间。
	DefaultTTL time.Duration

	// CleanupInterval 后台清理周期。
	CleanupInterval time.Duration

	// DisableAggressiveCleanup 为 true 时 AggressiveCleanup 不做任何事。
	// 以否定形式表达，使零值对应"启用"。
	DisableAggressiveCleanup bool

	// MaxEntryFraction 单条目大小上限占 MaxSizeBytes 的比例，取值 (0, 1]。
	MaxEntryFraction float64

	// AggressiveFraction 激进清理移除的条目比例，取值 (0, 1]。
	AggressiveFraction float64

	Weights ScoreWeights
}

// DefaultConfig 返回通用配置：10 MiB / 500 条 / 5 分钟 TTL / 60 秒清理。
func DefaultConfig() Config {
	return Config{
		MaxSizeBytes:       DefaultMaxSizeBytes,
		MaxEntries:         DefaultMaxEntries,
		DefaultTTL:         DefaultTTL,
		CleanupInterval:    DefaultCleanupInterval,
		MaxEntryFraction:   DefaultMaxEntryFraction,
		AggressiveFraction: DefaultAggressiveFraction,
		Weights:            DefaultWeights(),
	}
}

// FinancialConfig 返回行情/账户类数据的配置：25 MiB / 300 条 / 5 分钟 TTL / 30 秒清理。
func FinancialConfig() Config {
	cfg := DefaultConfig()
	cfg.MaxSizeBytes = 25 << 20
	cfg.MaxEntries = 300
	cfg.CleanupInterval = 30 * time.Second
	return cfg
}

// UIConfig 返回界面状态类数据的配置：10 MiB / 500 条 / 2 分钟 TTL / 60 秒清理。
func UIConfig() Config {
	cfg := DefaultConfig()
	cfg.DefaultTTL = 2 * time.Minute
	return cfg
}

// withDefaults 为零值字段填充默认值，不修改调用方持有的副本。
func (c Config) withDefaults() Config {
	if c.MaxSizeBytes == 0 {
		c.MaxSizeBytes = DefaultMaxSizeBytes
	}
	if c.MaxEntries == 0 {
		c.MaxEntries = DefaultMaxEntries
	}
	if c.DefaultTTL == 0 {
		c.DefaultTTL = DefaultTTL
	}
	if c.CleanupInterval == 0 {
		c.CleanupInterval = DefaultCleanupInterval
	}
	if c.MaxEntryFraction == 0 {
		c.MaxEntryFraction = DefaultMaxEntryFraction
	}
	if c.AggressiveFraction == 0 {
		c.AggressiveFraction = DefaultAggressiveFraction
	}
	def := DefaultWeights()
	if c.Weights.Low == 0 {
		c.Weights.Low = def.Low
	}
	if c.Weights.Medium == 0 {
		c.Weights.Medium = def.Medium
	}
	if c.Weights.High == 0 {
		c.Weights.High = def.High
	}
	if c.Weights.RecencyUnit == 0 {
		c.Weights.RecencyUnit = def.RecencyUnit
	}
	return c
}

// Validate 校验配置，零值字段按默认值参与校验。
func (c Config) Validate() error {
	c = c.withDefaults()
	switch {
	case c.MaxSizeBytes < 0:
		return fmt.Errorf("%w: max size bytes %d is negative", ErrInvalidConfig, c.MaxSizeBytes)
	case c.MaxEntries < 0:
		return fmt.Errorf("%w: max entries %d is negative", ErrInvalidConfig, c.MaxEntries)
	case c.DefaultTTL < 0:
		return fmt.Errorf("%w: default ttl %s is negative", ErrInvalidConfig, c.DefaultTTL)
	case c.CleanupInterval < 0:
		return fmt.Errorf("%w: cleanup interval %s is negative", ErrInvalidConfig, c.CleanupInterval)
	case !validFraction(c.MaxEntryFraction):
		return fmt.Errorf("%w: max entry fraction %v not in (0, 1]", ErrInvalidConfig, c.MaxEntryFraction)
	case !validFraction(c.AggressiveFraction):
		return fmt.Errorf("%w: aggressive fraction %v not in (0, 1]", ErrInvalidConfig, c.AggressiveFraction)
	case !(c.Weights.Low > 0) || !(c.Weights.Medium > 0) || !(c.Weights.High > 0):
		return fmt.Errorf("%w: priority weights must be positive", ErrInvalidConfig)
	case c.Weights.RecencyUnit < 0:
		return fmt.Errorf("%w: recency unit %s is negative", ErrInvalidConfig, c.Weights.RecencyUnit)
	}
	return nil
}

// maxEntrySize 返回单条目字节上限。
func (c Config) maxEntrySize() int64 {
	return int64(float64(c.MaxSizeBytes) * c.MaxEntryFraction)
}

func validFraction(f float64) bool {
	return f > 0 && f <= 1
}
