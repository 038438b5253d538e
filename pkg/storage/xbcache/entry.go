package xbcache

import (
	"strconv"
	"time"
)

// Priority 是调用方给出的保留倾向，影响淘汰评分的权重。
type Priority uint8

// 零值是 PriorityMedium，未指定优先级的写入即为 medium。
// 数值顺序不代表高低（medium < low < high），不要按数值比较优先级，权重见 ScoreWeights.of。
const (
	PriorityMedium Priority = iota
	PriorityLow
	PriorityHigh
)

// String 返回 low / medium / high。
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityMedium:
		return "medium"
	case PriorityHigh:
		return "high"
	default:
		return "Priority(" + strconv.Itoa(int(p)) + ")"
	}
}

// ParsePriority 解析 low / medium / high，空串视为 medium。
func ParsePriority(s string) (Priority, bool) {
	switch s {
	case "low":
		return PriorityLow, true
	case "", "medium":
		return PriorityMedium, true
	case "high":
		return PriorityHigh, true
	default:
		return 0, false
	}
}

func (p Priority) valid() bool {
	return p <= PriorityHigh
}

// RemovalReason 说明条目被移除的原因。
type RemovalReason string

const (
	RemovalExpired    RemovalReason = "expired"
	RemovalEvicted    RemovalReason = "evicted"
	RemovalAggressive RemovalReason = "aggressive"
	RemovalDeleted    RemovalReason = "deleted"
	RemovalReplaced   RemovalReason = "replaced"
)

type entry[V any] struct {
	value          V
	createdAt      time.Time
	expiresAt      time.Time
	lastAccessedAt time.Time
	accessCount    uint64
	size           int64
	seq            uint64
	priority       Priority
}

func (e *entry[V]) expired(now time.Time) bool {
	return !now.Before(e.expiresAt)
}

// score 计算淘汰评分，越低越先淘汰。
func (e *entry[V]) score(now time.Time, w ScoreWeights) float64 {
	s := float64(e.accessCount) * w.of(e.priority)
	if w.RecencyUnit > 0 {
		s -= float64(now.Sub(e.lastAccessedAt)) / float64(w.RecencyUnit)
	}
	return s
}

// removal 记录锁内移除的条目，解锁后统一通知。
type removal[K comparable, V any] struct {
	key    K
	value  V
	reason RemovalReason
}
