package xlog

import (
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
)

// 标准字段名
const (
	KeyError     = "error"
	KeyStack     = "stack"
	KeyDuration  = "duration"
	KeyCount     = "count"
	KeyComponent = "component"
	KeyOperation = "operation"
	KeyCache     = "cache"
	KeyBytes     = "bytes"
	KeyReason    = "reason"
	KeyKeyHash   = "key_hash"
)

// Err 创建错误属性。err 为 nil 时返回空属性（会被 slog 忽略）。
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// Duration 创建人类可读的耗时属性（如 "1.5ms"）。
func Duration(d time.Duration) slog.Attr {
	return slog.String(KeyDuration, d.String())
}

// Component 创建组件名属性
func Component(name string) slog.Attr {
	return slog.String(KeyComponent, name)
}

// Operation 创建操作名属性
func Operation(name string) slog.Attr {
	return slog.String(KeyOperation, name)
}

// Count 创建计数属性
func Count(n int64) slog.Attr {
	return slog.Int64(KeyCount, n)
}

// Cache 创建缓存实例名属性
func Cache(name string) slog.Attr {
	return slog.String(KeyCache, name)
}

// Bytes 创建字节数属性
func Bytes(n int64) slog.Attr {
	return slog.Int64(KeyBytes, n)
}

// Reason 创建原因属性（如淘汰原因）
func Reason(r string) slog.Attr {
	return slog.String(KeyReason, r)
}

// KeyHash 创建缓存 key 的摘要属性。
//
// key 先转为字符串形式（string / fmt.Stringer / 整数走快速路径，其余 fmt.Sprint），
// 再取 xxhash64 以 16 位十六进制输出。原始 key 不会写入日志。
func KeyHash(key any) slog.Attr {
	return slog.String(KeyKeyHash, fmt.Sprintf("%016x", xxhash.Sum64String(keyString(key))))
}

func keyString(key any) string {
	switch k := key.(type) {
	case string:
		return k
	case []byte:
		return string(k)
	case int:
		return strconv.Itoa(k)
	case int64:
		return strconv.FormatInt(k, 10)
	case uint64:
		return strconv.FormatUint(k, 10)
	case fmt.Stringer:
		return k.String()
	default:
		return fmt.Sprint(k)
	}
}
