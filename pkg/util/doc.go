// Package util 提供通用工具相关的子包。
//
// 子包列表：
//   - xpressure: 内存压力监视，超过阈值时对注册的缓存执行激进清理
package util
