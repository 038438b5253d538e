// Package xconf 加载 xcachekit 的配置文件，基于 koanf 实现。
//
// # 格式
//
//   - YAML：.yaml, .yml
//   - JSON：.json
//
// 格式由扩展名决定；Parse 直接接收字节数据，需显式指定格式（如来自 K8s ConfigMap）。
//
// # 结构
//
//	log:      { level: info, format: text, file: "" }
//	pressure: { source: runtime, threshold: 0.8, interval: 10s, cooldown: 30s }
//	caches:
//	  financial: { preset: financial }
//	  ui:        { preset: ui, max_entries: 800, aggressive_cleanup: true }
//
// 缺省项取 DefaultFile 的值。每个缓存先取 preset 对应的 xbcache 预置配置，
// 再用显式给出的字段覆盖。缓存名不能包含 "."，它是 koanf 的路径分隔符。
//
// Unmarshal 使用 mapstructure 的弱类型转换，时长写作 "30s"、"5m"。
//
// # 配置监视
//
// Watch 监视配置文件所在目录（编辑器常以 rename 方式原子写入），
// 内置防抖，每次变更重新完整加载并校验后回调。
package xconf
