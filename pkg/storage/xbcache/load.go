package xbcache

import (
	"context"
	"errors"
	"fmt"

	"github.com/omeyang/xcachekit/pkg/observability/xlog"
	"github.com/omeyang/xcachekit/pkg/observability/xmetrics"
)

// LoadFunc 在缓存未命中时加载 key 对应的值。
type LoadFunc[V any] func(ctx context.Context) (V, error)

// GetOrLoad 读取 key，未命中时调用 load 回源并写入缓存。
//
// 空键与非法 SetOption 同 Set 一样 panic。
// 同一 key 的并发未命中只会调用一次 load，其余调用方等待同一结果。
// load 使用首个调用方 ctx 的去取消副本运行，单个调用方取消只影响它自己的等待。
// load 的错误原样返回且不缓存；超过单条目上限的值仍会返回给调用方，只是不被缓存。
func (c *Cache[K, V]) GetOrLoad(ctx context.Context, key K, load LoadFunc[V], opts ...SetOption) (V, error) {
	var zero V
	if load == nil {
		return zero, ErrNilLoader
	}
	// 前置条件在调用方 goroutine 上检查，避免 panic 发生在 singleflight 内部
	c.resolve(key, opts)
	if c.closed.Load() {
		return zero, ErrClosed
	}
	if v, ok := c.Get(key); ok {
		return v, nil
	}

	loadCtx := context.WithoutCancel(ctx)
	ch := c.loads.DoChan(flightKey(key), func() (any, error) {
		// 等待期间可能已有其他路径写入
		if v, ok := c.Peek(key); ok {
			return v, nil
		}
		return c.load(loadCtx, key, load, opts)
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		v, ok := res.Val.(V)
		if !ok && res.Val != nil {
			return zero, errors.New("xbcache: unexpected result type from singleflight")
		}
		return v, nil
	}
}

func (c *Cache[K, V]) load(ctx context.Context, key K, load LoadFunc[V], opts []SetOption) (v V, err error) {
	ctx, span := xmetrics.Start(ctx, c.observer, xmetrics.SpanOptions{
		Component: componentName,
		Operation: "load",
		Kind:      xmetrics.KindClient,
		Attrs:     []xmetrics.Attr{xmetrics.String("cache", c.name)},
	})
	defer func() { span.End(xmetrics.Result{Err: err}) }()

	v, err = load(ctx)
	if err != nil {
		c.logger.Debug(ctx, "load failed", xlog.KeyHash(key), xlog.Err(err))
		return v, err
	}
	c.Set(key, v, opts...)
	return v, nil
}

// flightKey 将泛型键转为 singleflight 键。%#v 对结构体键带上字段名，避免不同字段组合拼出同一字符串。
func flightKey[K comparable](key K) string {
	if s, ok := any(key).(string); ok {
		return s
	}
	return fmt.Sprintf("%#v", key)
}
