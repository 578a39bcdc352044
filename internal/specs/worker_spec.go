package specs

// WorkerSpec is the bootstrap payload a worker receives inside
// Control(CreateWorker(...)) (spec.md §4.8): worker id, epoch budget,
// distributed-algorithm selection (server address(es)), and an opaque
// ML-kernel selector the core does not interpret.
type WorkerSpec struct {
	WorkerID  int           `json:"worker_id"`
	MaxEpochs int           `json:"max_epochs"`
	Algorithm AlgorithmSpec `json:"algorithm"`
	Kernel    KernelSpec    `json:"kernel"`
}

// AlgorithmSpec selects the distributed training algorithm. Only
// ParameterServer is implemented; AllReduce and StrategySwitch are
// reserved tagged-union members accepted by the JSON decoder (so a sender
// using the full original vocabulary doesn't get a parse error) but
// rejected with a Configuration error at build time (see builder.go) —
// spec.md's supplemented-features note: "reserved in the JSON union but
// rejected... not silently dropped."
type AlgorithmSpec struct {
	Kind string `json:"kind"`

	ParameterServer *ParameterServerParams `json:"parameter_server,omitempty"`
	AllReduce       *AllReduceParams       `json:"all_reduce,omitempty"`
	StrategySwitch  *struct{}              `json:"strategy_switch,omitempty"`
}

const (
	AlgoParameterServer = "parameter_server"
	AlgoAllReduce       = "all_reduce"
	AlgoStrategySwitch  = "strategy_switch"
)

type ParameterServerParams struct {
	ServerAddrs []string `json:"server_addrs"`
}

type AllReduceParams struct {
	Peers []string `json:"peers"`
}

// KernelSpec is the opaque-to-the-core ML-kernel selector (spec.md §6):
// the worker runtime only needs a name to look the kernel implementation
// up by, plus free-form parameters it passes through unexamined.
type KernelSpec struct {
	Name   string            `json:"name"`
	Params map[string]string `json:"params,omitempty"`
}
