// Package xlog 基于 log/slog 的结构化日志库，供 xcachekit 各组件共用。
//
// # 核心功能
//
//   - Builder 模式配置（输出目标、级别、格式、文件轮转）
//   - 动态级别调整（运行时热更新）
//   - 全局默认 Logger
//   - 缓存领域的便捷属性（Cache、Bytes、Reason、KeyHash 等）
//
// # 创建 Logger
//
// 使用 Builder 模式（first-error-wins：遇到第一个配置错误后，后续配置被跳过）。
// Builder 方法：SetLevel、SetLevelString、SetFormat、SetOutput、SetRotation、
// SetAddSource、SetOnError、SetReplaceAttr。
//
//	logger, cleanup, err := xlog.New().
//		SetLevel(xlog.LevelDebug).
//		SetFormat("json").
//		Build()
//	defer cleanup()
//
// # 全局 Logger
//
// 适用于命令行工具等简单场景，库代码推荐依赖注入（xbcache.WithLogger）。
//
//   - [Default]: 获取全局 Logger（惰性初始化：stderr、Info 级别、text 格式）
//   - [SetDefault]: 替换全局 Logger（nil 会被忽略）
//   - [ResetDefault]: 重置为未初始化状态（仅用于测试）
//   - [Discard]: 丢弃所有输出的 Logger
//
// # 缓存 key 脱敏
//
// 缓存 key 可能包含账户号等敏感标识，日志中一律使用 [KeyHash] 输出 xxhash 摘要，
// 不输出原始 key。
package xlog
