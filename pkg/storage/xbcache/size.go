package xbcache

import (
	"encoding/json"
	"fmt"
)

// FallbackSize 是估算失败时使用的条目大小。
const FallbackSize int64 = 1000

// Sizer 估算值占用的字节数。
type Sizer interface {
	Size(v any) (int64, error)
}

// SizerFunc 将普通函数适配为 Sizer。
type SizerFunc func(v any) (int64, error)

// Size 实现 Sizer。
func (f SizerFunc) Size(v any) (int64, error) { return f(v) }

// JSONSizer 以 JSON 编码长度作为大小估算。string、[]byte、json.RawMessage 直接取字节长度。
type JSONSizer struct{}

// Size 实现 Sizer。
func (JSONSizer) Size(v any) (int64, error) {
	switch x := v.(type) {
	case string:
		return int64(len(x)), nil
	case []byte:
		return int64(len(x)), nil
	case json.RawMessage:
		return int64(len(x)), nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return 0, err
	}
	return int64(len(b)), nil
}

// measure 调用 sizer，错误、panic 与负值都会回落到 FallbackSize。
func measure(s Sizer, v any) (size int64, err error) {
	defer func() {
		if r := recover(); r != nil {
			size, err = FallbackSize, fmt.Errorf("xbcache: sizer panicked: %v", r)
		}
	}()
	size, err = s.Size(v)
	if err != nil {
		return FallbackSize, err
	}
	if size < 0 {
		return FallbackSize, fmt.Errorf("xbcache: sizer returned negative size %d", size)
	}
	return size, nil
}
