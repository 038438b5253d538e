// Package policysim 用同一条 Zipf 请求序列回放多种缓存策略并比较命中率。
//
// 参与比较的策略：
//   - xbcache：LFU/LRU 混合评分，时间由假时钟按步推进
//   - lru：hashicorp/golang-lru/v2 纯 LRU
//   - ristretto：dgraph-io/ristretto/v2 的 TinyLFU 准入 + SampledLFU 淘汰
//
// 所有策略容量相同（按条目数），未命中时写入，不设置过期。
// 序列由 Workload.Seed 决定，同一 Workload 多次运行得到相同的请求序列；
// ristretto 的准入带有随机性，其结果只在统计意义上稳定。
package policysim
