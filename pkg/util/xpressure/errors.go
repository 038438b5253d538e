package xpressure

import "errors"

var (
	// ErrNilSampler 表示 NewMonitor 的 sampler 为 nil。
	ErrNilSampler = errors.New("xpressure: nil sampler")
	// ErrInvalidThreshold 表示阈值不在 (0, 1] 内。
	ErrInvalidThreshold = errors.New("xpressure: threshold must be in (0, 1]")
	// ErrInvalidInterval 表示采样间隔非正。
	ErrInvalidInterval = errors.New("xpressure: interval must be positive")
	// ErrInvalidCooldown 表示冷却时间为负。
	ErrInvalidCooldown = errors.New("xpressure: cooldown must not be negative")
	// ErrNoLimit 表示无法确定内存上限。
	ErrNoLimit = errors.New("xpressure: no memory limit available")
	// ErrSample 表示采样失败。
	ErrSample = errors.New("xpressure: sample failed")
)
