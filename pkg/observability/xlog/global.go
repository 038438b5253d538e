package xlog

import "sync/atomic"

var defaultLogger atomic.Pointer[LoggerWithLevel]

// Default 返回全局 Logger。未设置时惰性创建 stderr、Info 级别、text 格式的 Logger。
func Default() LoggerWithLevel {
	if l := defaultLogger.Load(); l != nil {
		return *l
	}
	l, _, err := New().Build()
	if err != nil {
		l = Discard()
	}
	// 并发首次调用时只保留一个实例
	if defaultLogger.CompareAndSwap(nil, &l) {
		return l
	}
	return *defaultLogger.Load()
}

// SetDefault 替换全局 Logger，nil 被忽略。
func SetDefault(l LoggerWithLevel) {
	if l != nil {
		defaultLogger.Store(&l)
	}
}

// ResetDefault 清除全局 Logger，下次 Default 重新创建。仅用于测试。
func ResetDefault() {
	defaultLogger.Store(nil)
}
