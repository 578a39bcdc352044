package specs

// StoreSpec selects the Blocking or Wild (race-tolerant) store variant
// and its shard size (spec.md §4.3).
type StoreSpec struct {
	Kind string `json:"kind"`

	Blocking *ShardSizeParams `json:"blocking,omitempty"`
	Wild     *ShardSizeParams `json:"wild,omitempty"`
}

const (
	StoreBlocking = "blocking"
	StoreWild     = "wild"
)

type ShardSizeParams struct {
	ShardSize int `json:"shard_size"`
}
