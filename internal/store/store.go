package store

import (
	"sync/atomic"

	"github.com/mharlan/paramserver"
	"github.com/mharlan/paramserver/internal/optimizer"
	"github.com/mharlan/paramserver/internal/workpool"
)

// Store is the common contract shared by the Blocking and Wild store
// variants (spec.md §4.3): split a flat parameter/gradient sequence into
// shards of a uniform chunk size, with the last shard potentially ragged.
type Store interface {
	Accumulate(g []float32) error
	Update() error
	Pull(out []float32) error
	Len() int
}

// chunkBounds returns the [start, end) index range shard i owns out of a
// flat sequence of length p, given uniform chunk size shardSize — the
// "ragged tail" policy from spec.md §4.3: the final shard may be shorter.
func chunkBounds(i, shardSize, p int) (start, end int) {
	start = i * shardSize
	end = start + shardSize
	if end > p {
		end = p
	}
	return start, end
}

func numShards(p, shardSize int) int {
	if p == 0 {
		return 0
	}
	return (p + shardSize - 1) / shardSize
}

// Blocking implements the double-buffered store described in spec.md
// §4.3's first variant: strict consistency, no torn writes, pull never
// observes a partial update.
type Blocking struct {
	shards    []*Shard
	shardSize int
	p         int

	activeIdx atomic.Int32
	updating  atomic.Bool

	// Observer receives a notification whenever Update loses the CAS race
	// (spec.md §4.3: "the synchronizer guarantees at most one thread
	// attempts to win"). Defaults to a no-op; callers that want
	// UpdatesDropped tracked set this after construction.
	Observer paramserver.Observer
}

// NewBlocking builds shards from initial, split into chunks of shardSize,
// pairing each shard with an optimizer produced by newOpt(shardLen).
func NewBlocking(initial []float32, shardSize int, newOpt func(shardLen int) optimizer.Optimizer) *Blocking {
	p := len(initial)
	n := numShards(p, shardSize)
	shards := make([]*Shard, n)
	for i := 0; i < n; i++ {
		start, end := chunkBounds(i, shardSize, p)
		params := make([]float32, end-start)
		copy(params, initial[start:end])
		shards[i] = NewShard(params, newOpt(end-start))
	}
	return &Blocking{shards: shards, shardSize: shardSize, p: p, Observer: paramserver.NoOpObserver{}}
}

func (b *Blocking) Len() int { return b.p }

// Accumulate snapshots active_idx, splits g into per-shard chunks, and fans
// the accumulate call out across shards via the parallel worker pool
// (spec.md §5: "a parallel worker pool using a work-stealing parallel
// iterator over shards").
func (b *Blocking) Accumulate(g []float32) error {
	if len(g) != b.p {
		return paramserver.NewError("store.Blocking.Accumulate", paramserver.KindSizeMismatch, "gradient length does not match store size")
	}
	idx := int(b.activeIdx.Load())
	return workpool.Each(len(b.shards), 0, func(i int) error {
		start, end := chunkBounds(i, b.shardSize, b.p)
		return b.shards[i].Accumulate(idx, g[start:end])
	})
}

// Update CASes the updating latch, flips active_idx, and applies every
// shard's now-frozen buffer in parallel. A CAS loss (a concurrent updater
// already won) returns nil with no effect, per spec.md §4.3: "the
// synchronizer guarantees at most one thread attempts to win."
func (b *Blocking) Update() error {
	if !b.updating.CompareAndSwap(false, true) {
		b.Observer.ObserveUpdateDropped()
		return nil
	}
	defer b.updating.Store(false)

	oldIdx := b.activeIdx.Load()
	newIdx := oldIdx ^ 1
	b.activeIdx.Store(newIdx)

	return workpool.Each(len(b.shards), 0, func(i int) error {
		return b.shards[i].Update(int(oldIdx))
	})
}

// Pull copies every shard's parameter chunk into the corresponding range
// of out, in parallel.
func (b *Blocking) Pull(out []float32) error {
	if len(out) != b.p {
		return paramserver.NewError("store.Blocking.Pull", paramserver.KindSizeMismatch, "output length does not match store size")
	}
	return workpool.Each(len(b.shards), 0, func(i int) error {
		start, end := chunkBounds(i, b.shardSize, b.p)
		return b.shards[i].Pull(out[start:end])
	})
}

var _ Store = (*Blocking)(nil)
