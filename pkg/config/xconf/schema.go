package xconf

import (
	"fmt"
	"sort"
	"time"

	"github.com/omeyang/xcachekit/pkg/observability/xlog"
	"github.com/omeyang/xcachekit/pkg/storage/xbcache"
)

// 内存采样源。
const (
	SourceRuntime = "runtime"
	SourceHost    = "host"
)

// 缓存预置配置名。
const (
	PresetDefault   = "default"
	PresetFinancial = "financial"
	PresetUI        = "ui"
)

// File 是配置文件的完整结构。
type File struct {
	Log      LogSection              `koanf:"log"`
	Pressure PressureSection         `koanf:"pressure"`
	Caches   map[string]CacheSection `koanf:"caches"`
}

// LogSection 对应 xlog.Builder 的参数。
type LogSection struct {
	// Level 通过 xlog.Level.UnmarshalText 解析，未知级别在解析阶段报错。
	Level  xlog.Level `koanf:"level"`
	Format string     `koanf:"format"`
	// File 非空时写入该文件并按大小轮转。
	File string `koanf:"file"`
}

// PressureSection 对应 xpressure.Monitor 的参数。
type PressureSection struct {
	Source    string        `koanf:"source"`
	Threshold float64       `koanf:"threshold"`
	Interval  time.Duration `koanf:"interval"`
	Cooldown  time.Duration `koanf:"cooldown"`
	// FallbackLimitBytes 是 runtime 源在未设置 GOMEMLIMIT 时使用的上限。
	FallbackLimitBytes uint64 `koanf:"fallback_limit_bytes"`
}

// CacheSection 描述一个具名缓存。零值字段沿用 Preset 的取值。
type CacheSection struct {
	Preset             string         `koanf:"preset"`
	MaxSizeBytes       int64          `koanf:"max_size_bytes"`
	MaxEntries         int            `koanf:"max_entries"`
	DefaultTTL         time.Duration  `koanf:"default_ttl"`
	CleanupInterval    time.Duration  `koanf:"cleanup_interval"`
	AggressiveCleanup  *bool          `koanf:"aggressive_cleanup"`
	MaxEntryFraction   float64        `koanf:"max_entry_fraction"`
	AggressiveFraction float64        `koanf:"aggressive_fraction"`
	Weights            WeightsSection `koanf:"weights"`
}

// WeightsSection 对应 xbcache.ScoreWeights。
type WeightsSection struct {
	Low         float64       `koanf:"low"`
	Medium      float64       `koanf:"medium"`
	High        float64       `koanf:"high"`
	RecencyUnit time.Duration `koanf:"recency_unit"`
}

// DefaultFile 返回全部取默认值的配置，未配置任何缓存。
func DefaultFile() *File {
	return &File{
		Log: LogSection{Level: xlog.LevelInfo, Format: "text"},
		Pressure: PressureSection{
			Source:    SourceRuntime,
			Threshold: 0.8,
			Interval:  10 * time.Second,
			Cooldown:  30 * time.Second,
		},
	}
}

// Validate 校验全部配置项。
func (f *File) Validate() error {
	switch f.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log.format %q", ErrInvalidValue, f.Log.Format)
	}

	p := f.Pressure
	switch p.Source {
	case SourceRuntime, SourceHost:
	default:
		return fmt.Errorf("%w: pressure.source %q", ErrInvalidValue, p.Source)
	}
	if p.Threshold <= 0 || p.Threshold > 1 {
		return fmt.Errorf("%w: pressure.threshold %v not in (0, 1]", ErrInvalidValue, p.Threshold)
	}
	if p.Interval <= 0 {
		return fmt.Errorf("%w: pressure.interval %s", ErrInvalidValue, p.Interval)
	}
	if p.Cooldown < 0 {
		return fmt.Errorf("%w: pressure.cooldown %s", ErrInvalidValue, p.Cooldown)
	}

	_, err := f.CacheConfigs()
	return err
}

// CacheNames 返回排序后的缓存名。
func (f *File) CacheNames() []string {
	names := make([]string, 0, len(f.Caches))
	for name := range f.Caches {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CacheConfigs 将每个缓存段转换为 xbcache.Config 并校验。
func (f *File) CacheConfigs() (map[string]xbcache.Config, error) {
	out := make(map[string]xbcache.Config, len(f.Caches))
	for name, sec := range f.Caches {
		cfg, err := sec.Config()
		if err != nil {
			return nil, fmt.Errorf("caches.%s: %w", name, err)
		}
		out[name] = cfg
	}
	return out, nil
}

// Config 以 Preset 为基础叠加显式字段。
func (s CacheSection) Config() (xbcache.Config, error) {
	var cfg xbcache.Config
	switch s.Preset {
	case "", PresetDefault:
		cfg = xbcache.DefaultConfig()
	case PresetFinancial:
		cfg = xbcache.FinancialConfig()
	case PresetUI:
		cfg = xbcache.UIConfig()
	default:
		return xbcache.Config{}, fmt.Errorf("%w: preset %q", ErrInvalidValue, s.Preset)
	}

	override(&cfg.MaxSizeBytes, s.MaxSizeBytes)
	override(&cfg.MaxEntries, s.MaxEntries)
	override(&cfg.DefaultTTL, s.DefaultTTL)
	override(&cfg.CleanupInterval, s.CleanupInterval)
	override(&cfg.MaxEntryFraction, s.MaxEntryFraction)
	override(&cfg.AggressiveFraction, s.AggressiveFraction)
	override(&cfg.Weights.Low, s.Weights.Low)
	override(&cfg.Weights.Medium, s.Weights.Medium)
	override(&cfg.Weights.High, s.Weights.High)
	override(&cfg.Weights.RecencyUnit, s.Weights.RecencyUnit)
	if s.AggressiveCleanup != nil {
		cfg.DisableAggressiveCleanup = !*s.AggressiveCleanup
	}

	if err := cfg.Validate(); err != nil {
		return xbcache.Config{}, err
	}
	return cfg, nil
}

// override 在 v 非零时覆盖 dst。
func override[T comparable](dst *T, v T) {
	var zero T
	if v != zero {
		*dst = v
	}
}
