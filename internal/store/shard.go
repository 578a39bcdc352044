// Package store implements the parameter shard and parameter store
// described in spec.md §4.2-4.3 (C2/C3): a contiguous range of the flat
// parameter sequence plus two double-buffered gradient accumulators and a
// per-shard optimizer instance.
//
// Grounded on the teacher's backend/mem.go Memory backend: a flat byte
// buffer partitioned into shards, each guarded by its own lock so that
// operations on disjoint shards proceed in parallel. Here the partition is
// over float32 parameters rather than bytes, and each shard additionally
// owns gradient accumulation state that mem.go has no analog for.
package store

import (
	"sync"

	"github.com/mharlan/paramserver"
	"github.com/mharlan/paramserver/internal/optimizer"
)

// Shard owns a contiguous slice of the flat parameter sequence, two
// gradient accumulation buffers (double-buffered so accumulation for the
// next epoch never contends with application of the previous one), and the
// optimizer instance responsible for this shard's slice.
type Shard struct {
	paramsMu sync.RWMutex
	params   []float32

	gradMu [2]sync.Mutex
	grad   [2][]float32

	opt optimizer.Optimizer
}

// NewShard constructs a shard over an initial parameter slice (taken by
// reference — the caller hands over ownership) with zero-initialized
// gradient buffers sized to match.
func NewShard(params []float32, opt optimizer.Optimizer) *Shard {
	s := len(params)
	return &Shard{
		params: params,
		grad:   [2][]float32{make([]float32, s), make([]float32, s)},
		opt:    opt,
	}
}

func (sh *Shard) Len() int {
	return len(sh.params)
}

// Accumulate adds g into the gradient buffer at index active. Two calls on
// the same index serialize against each other; calls on different indices
// proceed fully in parallel (spec.md §4.2).
func (sh *Shard) Accumulate(active int, g []float32) error {
	if len(g) != len(sh.params) {
		return paramserver.NewError("store.Shard.Accumulate", paramserver.KindSizeMismatch, "gradient length does not match shard size")
	}
	sh.gradMu[active].Lock()
	defer sh.gradMu[active].Unlock()
	buf := sh.grad[active]
	for i, v := range g {
		buf[i] += v
	}
	return nil
}

// Update applies the optimizer to the frozen gradient buffer, writing the
// result into the parameter sequence, then zeroes the frozen buffer for
// reuse. It takes the gradient buffer's mutex and the parameter sequence's
// write lock, so a concurrent Pull is excluded only for the duration of
// this call, not for the whole epoch.
func (sh *Shard) Update(frozen int) error {
	sh.gradMu[frozen].Lock()
	defer sh.gradMu[frozen].Unlock()

	sh.paramsMu.Lock()
	sh.opt.Apply(sh.grad[frozen], sh.params)
	sh.paramsMu.Unlock()

	buf := sh.grad[frozen]
	for i := range buf {
		buf[i] = 0
	}
	return nil
}

// Pull copies the current parameter sequence into out under a shared
// (read) lock.
func (sh *Shard) Pull(out []float32) error {
	if len(out) != len(sh.params) {
		return paramserver.NewError("store.Shard.Pull", paramserver.KindSizeMismatch, "output length does not match shard size")
	}
	sh.paramsMu.RLock()
	copy(out, sh.params)
	sh.paramsMu.RUnlock()
	return nil
}
