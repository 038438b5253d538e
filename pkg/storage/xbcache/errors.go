package xbcache

import "errors"

var (
	// ErrInvalidConfig 表示 Config 校验失败，具体原因通过 %w 包装附带。
	ErrInvalidConfig = errors.New("xbcache: invalid config")

	// ErrClosed 表示缓存已关闭。仅 GetOrLoad 返回此错误，其余方法关闭后静默降级。
	ErrClosed = errors.New("xbcache: cache closed")

	// ErrNilLoader 表示 GetOrLoad 的 load 函数为 nil。
	ErrNilLoader = errors.New("xbcache: nil loader")
)
