package specs

// SynchronizerSpec selects the bulk-synchronous Barrier or the NonBlocking
// synchronizer (spec.md §4.6).
type SynchronizerSpec struct {
	Kind string `json:"kind"`

	Barrier *BarrierParams `json:"barrier,omitempty"`
}

const (
	SyncBarrier     = "barrier"
	SyncNonBlocking = "non_blocking"
)

type BarrierParams struct {
	BarrierSize int `json:"barrier_size"`
}
