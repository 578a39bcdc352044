package specs

// ServerSpec is the bootstrap payload a parameter server receives inside
// Control(CreateServer(...)) (spec.md §4.7): expected worker count, the
// parameter-generation strategy, optimizer choice, synchronizer choice,
// store variant, and an optional seed for any random initializer.
//
// Total parameter count is not a separate field: it is implied by fully
// draining ParamGen (each leaf ParamGenSpec variant carries its own
// "limit"), the same way the original ServerSpec leaves it implicit.
type ServerSpec struct {
	NWorkers     int              `json:"nworkers"`
	ParamGen     InitializerSpec  `json:"param_gen"`
	Optimizer    OptimizerSpec    `json:"optimizer"`
	Synchronizer SynchronizerSpec `json:"synchronizer"`
	Store        StoreSpec        `json:"store"`
	Seed         *uint64          `json:"seed,omitempty"`
}
