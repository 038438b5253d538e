package xmetrics

import "errors"

var (
	// ErrCreateCounter 表示创建 OTel Counter 失败。
	ErrCreateCounter = errors.New("xmetrics: create counter failed")
	// ErrCreateHistogram 表示创建 OTel Histogram 失败。
	ErrCreateHistogram = errors.New("xmetrics: create histogram failed")
	// ErrCreateGauge 表示创建或注册 OTel 可观测 Gauge 失败。
	ErrCreateGauge = errors.New("xmetrics: create gauge failed")
	// ErrNilOption 表示传入了 nil 的 Option 函数。
	ErrNilOption = errors.New("xmetrics: nil option")
	// ErrNilSource 表示传入了无快照函数的 Source。
	ErrNilSource = errors.New("xmetrics: nil snapshot source")
)
