// Package xbcache 提供有界的进程内缓存，按条目数和估算字节数双重限额。
//
// 淘汰采用 LFU 与 LRU 混合评分：
//
//	score = accessCount × priorityWeight − (now − lastAccessedAt) / RecencyUnit
//
// 分数最低者先被淘汰，分数相同时先插入者先淘汰。
//
// # 核心特性
//
//   - 泛型支持：任意 comparable 键、任意值
//   - 条目级 TTL：过期时间在写入时确定，读取不续期
//   - 字节预算：写入时通过 Sizer 估算大小，超过单条目上限的值被静默拒绝
//   - 周期清理：后台 ticker 定期扫除过期条目并做容量淘汰
//   - 激进清理：AggressiveCleanup 供外部内存压力源调用，一次移除约一半条目
//   - 读穿透：GetOrLoad 基于 singleflight 合并同键并发回源
//
// # 配置
//
// Config 零值字段在 New 中取默认值，预置 DefaultConfig、FinancialConfig、UIConfig。
// 多个实例之间不共享任何状态，应由组合根显式创建并注入，不要做成包级单例。
//
// # 可观测性
//
//   - WithLogger：结构化日志，键以 xxhash 摘要输出，原始键不落日志
//   - WithRecorder：命中、移除、拒绝计数
//   - WithObserver：每个清理周期一个观测跨度
//   - MetricsSource：导出给 xmetrics.RegisterGauges / NewCollector
//
// # 注意事项
//
//   - 空键、非正 TTL、未知优先级属于编程错误，Set 会 panic
//   - 估算失败按 FallbackSize 计，不会返回错误
//   - WithOnRemoved 回调在锁外执行，可以安全地回调缓存自身方法，但不要在回调中调用 Close
//   - Close 之后 Set 静默忽略，读操作返回未命中，GetOrLoad 返回 ErrClosed
package xbcache
