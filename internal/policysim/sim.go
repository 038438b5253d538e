package policysim

import (
	"context"
	"time"
)

// ctxCheckEvery 是检查 ctx 取消的请求间隔。
const ctxCheckEvery = 1024

// Result 是单个策略的回放结果。
type Result struct {
	Policy    string
	Requests  int
	Hits      uint64
	Misses    uint64
	Evictions uint64
	Elapsed   time.Duration
}

// HitRatio 返回命中率，无请求时为 0。
func (r Result) HitRatio() float64 {
	total := r.Hits + r.Misses
	if total == 0 {
		return 0
	}
	return float64(r.Hits) / float64(total)
}

// Run 依次回放全部策略，结果顺序与 Policies() 一致。
func Run(ctx context.Context, w Workload) ([]Result, error) {
	return RunPolicies(ctx, w, Policies()...)
}

// RunPolicies 只回放指定策略。
func RunPolicies(ctx context.Context, w Workload, names ...string) ([]Result, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	w = w.withDefaults()
	seq := w.Sequence()
	value := make([]byte, w.ValueSize)

	results := make([]Result, 0, len(names))
	for _, name := range names {
		p, err := newPolicy(name, w)
		if err != nil {
			return nil, err
		}
		r, err := replay(ctx, name, p, seq, value)
		p.close()
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, nil
}

func replay(ctx context.Context, name string, p policy, seq []uint64, value []byte) (Result, error) {
	r := Result{Policy: name, Requests: len(seq)}
	start := time.Now()
	for i, key := range seq {
		if i%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return Result{}, err
			}
		}
		if p.get(key) {
			r.Hits++
		} else {
			r.Misses++
			p.set(key, value)
		}
		p.tick()
	}
	r.Evictions = p.evictions()
	r.Elapsed = time.Since(start)
	return r, nil
}
