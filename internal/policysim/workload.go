package policysim

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"time"
)

// ErrInvalidWorkload 表示 Workload 参数无效。
var ErrInvalidWorkload = errors.New("policysim: invalid workload")

// Workload 描述一次模拟。零值字段取默认值。
type Workload struct {
	// Keys 是键空间大小。
	Keys int
	// Requests 是请求总数。
	Requests int
	// Capacity 是每个策略的条目容量。
	Capacity int
	// Skew 是 Zipf 参数 s，必须大于 1，越大热点越集中。
	Skew float64
	// HighShare 是标记为高优先级的键所占比例，仅 xbcache 使用。
	HighShare float64
	// Step 是相邻两次请求之间的模拟时间。
	Step time.Duration
	// ValueSize 是每个值的字节数。
	ValueSize int
	Seed      uint64
}

// DefaultWorkload 返回默认负载：1 万个键、10 万次请求、容量 500。
func DefaultWorkload() Workload {
	return Workload{
		Keys:      10_000,
		Requests:  100_000,
		Capacity:  500,
		Skew:      1.1,
		HighShare: 0.1,
		Step:      100 * time.Millisecond,
		ValueSize: 64,
		Seed:      1,
	}
}

func (w Workload) withDefaults() Workload {
	def := DefaultWorkload()
	if w.Keys == 0 {
		w.Keys = def.Keys
	}
	if w.Requests == 0 {
		w.Requests = def.Requests
	}
	if w.Capacity == 0 {
		w.Capacity = def.Capacity
	}
	if w.Skew == 0 {
		w.Skew = def.Skew
	}
	if w.Step == 0 {
		w.Step = def.Step
	}
	if w.ValueSize == 0 {
		w.ValueSize = def.ValueSize
	}
	return w
}

// Validate 校验参数，零值字段按默认值参与校验。
func (w Workload) Validate() error {
	w = w.withDefaults()
	switch {
	case w.Keys < 1:
		return fmt.Errorf("%w: keys %d", ErrInvalidWorkload, w.Keys)
	case w.Requests < 1:
		return fmt.Errorf("%w: requests %d", ErrInvalidWorkload, w.Requests)
	case w.Capacity < 1:
		return fmt.Errorf("%w: capacity %d", ErrInvalidWorkload, w.Capacity)
	case !(w.Skew > 1):
		return fmt.Errorf("%w: skew %v must be > 1", ErrInvalidWorkload, w.Skew)
	case w.HighShare < 0 || w.HighShare > 1:
		return fmt.Errorf("%w: high share %v not in [0, 1]", ErrInvalidWorkload, w.HighShare)
	case w.Step < 0:
		return fmt.Errorf("%w: step %s", ErrInvalidWorkload, w.Step)
	case w.ValueSize < 0:
		return fmt.Errorf("%w: value size %d", ErrInvalidWorkload, w.ValueSize)
	}
	return nil
}

// Sequence 生成请求的键序列，键取值 [1, Keys]，键 1 最热。
// 键从 1 开始：xbcache 不接受零值键。
func (w Workload) Sequence() []uint64 {
	w = w.withDefaults()
	r := rand.New(rand.NewPCG(w.Seed, w.Seed^0x9e3779b97f4a7c15))
	z := rand.NewZipf(r, w.Skew, 1, uint64(w.Keys-1))
	seq := make([]uint64, w.Requests)
	for i := range seq {
		seq[i] = z.Uint64() + 1
	}
	return seq
}

// high 判断键是否为高优先级。用乘法散列打散，避免与热度相关。
func (w Workload) high(key uint64) bool {
	if w.HighShare <= 0 {
		return false
	}
	h := (key * 0x9e3779b97f4a7c15) >> 11
	return float64(h)/float64(1<<53) < w.HighShare
}
