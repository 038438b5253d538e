// Package xmetrics 提供 xcachekit 的可观测性接口与实现。
//
// # 组成
//
//   - Observer/Span：操作级观测（trace span + 操作计数与耗时），默认实现基于 OpenTelemetry
//   - CacheRecorder：缓存事件计数（命中/未命中、移除原因、拒绝写入）
//   - Source/Snapshot：缓存状态快照，用于 OTel 可观测 Gauge 与 Prometheus Collector
//
// # 指标命名
//
// 操作：
//   - xcachekit.operation.total{component,operation,status}
//   - xcachekit.operation.duration{component,operation,status}
//
// 缓存事件：
//   - xcachekit.cache.requests{cache,result}
//   - xcachekit.cache.removals{cache,reason}
//   - xcachekit.cache.rejections{cache}
//
// 缓存状态（Gauge）：
//   - xcachekit.cache.entries / xcachekit.cache.size / xcachekit.cache.hit_ratio
//
// Prometheus 导出使用同一组快照，指标名为 <namespace>_cache_entries 等。
package xmetrics
