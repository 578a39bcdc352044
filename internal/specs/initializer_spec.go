package specs

// InitializerSpec selects a parameter-generation strategy (spec.md §4.5,
// "ParamGenSpec" in the original). Exactly one of Const/Rand/Chained is set.
type InitializerSpec struct {
	Kind string `json:"kind"`

	Const   *ConstSpec   `json:"const,omitempty"`
	Rand    *RandSpec    `json:"rand,omitempty"`
	Chained *ChainedSpec `json:"chained,omitempty"`
}

const (
	InitConst   = "const"
	InitRand    = "rand"
	InitChained = "chained"
)

type ConstSpec struct {
	Value float32 `json:"value"`
	Limit int     `json:"limit"`
}

type RandSpec struct {
	Distribution DistributionSpec `json:"distribution"`
	Limit        int              `json:"limit"`
}

type ChainedSpec struct {
	Specs []InitializerSpec `json:"specs"`
}
