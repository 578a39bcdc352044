package store

import (
	"github.com/mharlan/paramserver"
	"github.com/mharlan/paramserver/internal/optimizer"
	"github.com/mharlan/paramserver/internal/workpool"
)

// Wild implements the race-tolerant store variant from spec.md §4.3:
// accumulate applies the optimizer directly over the parameter sequence,
// with no intermediate buffers, no frozen/active split, and no locking —
// a Hogwild-style regime where concurrent accumulate/pull calls may
// observe torn writes. This is the documented, intentional alternative to
// Blocking, not a bug: spec.md is explicit that "concurrent accumulate and
// pull calls may observe torn writes" under this variant, so unlike every
// other type in this package, Wild's parameter slices are read and written
// without synchronization.
type Wild struct {
	params    []float32
	shardSize int
	p         int
	shardOpts []optimizer.Optimizer
}

func NewWild(initial []float32, shardSize int, newOpt func(shardLen int) optimizer.Optimizer) *Wild {
	p := len(initial)
	n := numShards(p, shardSize)
	params := make([]float32, p)
	copy(params, initial)
	opts := make([]optimizer.Optimizer, n)
	for i := 0; i < n; i++ {
		start, end := chunkBounds(i, shardSize, p)
		opts[i] = newOpt(end - start)
	}
	return &Wild{params: params, shardSize: shardSize, p: p, shardOpts: opts}
}

func (w *Wild) Len() int { return w.p }

// Accumulate applies the optimizer in place, per shard, in parallel — no
// accumulation step, no frozen buffer: the gradient chunk is consumed
// immediately as if it were both the accumulate and the update.
//
// A length mismatch against the overall store size P is still rejected
// with SizeMismatch: DESIGN.md's open-question resolution is that a
// genuinely wrong-length gradient is a caller error in every store
// variant, distinct from the ragged last shard's structurally shorter
// chunk (which chunkBounds sizes to that shard's own range, not to P).
func (w *Wild) Accumulate(g []float32) error {
	if len(g) != w.p {
		return paramserver.NewError("store.Wild.Accumulate", paramserver.KindSizeMismatch, "gradient length does not match store size")
	}
	return workpool.Each(len(w.shardOpts), 0, func(i int) error {
		start, end := chunkBounds(i, w.shardSize, w.p)
		w.shardOpts[i].Apply(g[start:end], w.params[start:end])
		return nil
	})
}

// Update is a no-op: Wild has already applied every gradient in Accumulate.
func (w *Wild) Update() error {
	return nil
}

// Pull copies whatever is currently in the parameter sequence, with no
// locking — callers may observe a partially-updated snapshot.
func (w *Wild) Pull(out []float32) error {
	if len(out) != w.p {
		return paramserver.NewError("store.Wild.Pull", paramserver.KindSizeMismatch, "output length does not match store size")
	}
	copy(out, w.params)
	return nil
}

var _ Store = (*Wild)(nil)
