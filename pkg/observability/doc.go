// Package observability 提供可观测性相关的子包。
//
// 子包列表：
//   - xlog: 结构化日志，基于 log/slog 扩展，支持 lumberjack 文件轮转
//   - xmetrics: 观测接口与缓存指标，导出到 OpenTelemetry 与 Prometheus
//
// 设计原则：
//   - 遵循 OpenTelemetry 语义规范
//   - 缓存只依赖 xmetrics 的接口，默认 Noop 实现零开销
package observability
