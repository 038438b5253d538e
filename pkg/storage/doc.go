// Package storage 提供数据存储相关的子包。
//
// 子包列表：
//   - xbcache: 进程内有界缓存，LFU/LRU 混合淘汰、TTL、字节数上限与激进清理
package storage
