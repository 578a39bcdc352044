package specs

import (
	"math/rand"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/mharlan/paramserver"
	"github.com/mharlan/paramserver/internal/initializer"
	"github.com/mharlan/paramserver/internal/optimizer"
	"github.com/mharlan/paramserver/internal/store"
	"github.com/mharlan/paramserver/internal/syncer"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// MarshalServerSpec and the other Marshal/Unmarshal helpers below are the
// only place this package touches encoding: everywhere else specs are
// plain Go values. Grounded on ghjramos-aistore's go.mod, which pulls in
// json-iterator/go for exactly this role.
func MarshalServerSpec(s ServerSpec) ([]byte, error)  { return json.Marshal(s) }
func UnmarshalServerSpec(b []byte) (ServerSpec, error) {
	var s ServerSpec
	err := json.Unmarshal(b, &s)
	return s, err
}

func MarshalWorkerSpec(s WorkerSpec) ([]byte, error) { return json.Marshal(s) }
func UnmarshalWorkerSpec(b []byte) (WorkerSpec, error) {
	var s WorkerSpec
	err := json.Unmarshal(b, &s)
	return s, err
}

func rngFromSeed(seed *uint64) *rand.Rand {
	if seed != nil {
		return rand.New(rand.NewSource(int64(*seed)))
	}
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

// BuildInitializer translates an InitializerSpec into a concrete
// initializer.Initializer, recursively for Chained.
func BuildInitializer(spec InitializerSpec, rng *rand.Rand) (initializer.Initializer, error) {
	switch spec.Kind {
	case InitConst:
		if spec.Const == nil {
			return nil, paramserver.NewError("specs.BuildInitializer", paramserver.KindConfiguration, "const initializer missing parameters")
		}
		return initializer.NewConst(spec.Const.Value, spec.Const.Limit), nil
	case InitRand:
		if spec.Rand == nil {
			return nil, paramserver.NewError("specs.BuildInitializer", paramserver.KindConfiguration, "rand initializer missing parameters")
		}
		return buildRand(spec.Rand.Distribution, spec.Rand.Limit, rng)
	case InitChained:
		if spec.Chained == nil {
			return nil, paramserver.NewError("specs.BuildInitializer", paramserver.KindConfiguration, "chained initializer missing parameters")
		}
		children := make([]initializer.Initializer, 0, len(spec.Chained.Specs))
		for _, child := range spec.Chained.Specs {
			c, err := BuildInitializer(child, rng)
			if err != nil {
				return nil, err
			}
			children = append(children, c)
		}
		return initializer.NewChained(children...), nil
	default:
		return nil, paramserver.NewError("specs.BuildInitializer", paramserver.KindConfiguration, "unknown initializer kind: "+spec.Kind)
	}
}

func buildRand(d DistributionSpec, limit int, rng *rand.Rand) (initializer.Initializer, error) {
	switch d.Kind {
	case DistUniform:
		if d.Uniform == nil {
			return nil, configErr("uniform distribution missing parameters")
		}
		return initializer.NewUniform(rng, limit, d.Uniform.Low, d.Uniform.High), nil
	case DistUniformInclusive:
		if d.UniformInclusive == nil {
			return nil, configErr("uniform_inclusive distribution missing parameters")
		}
		return initializer.NewUniformInclusive(rng, limit, d.UniformInclusive.Low, d.UniformInclusive.High), nil
	case DistNormal:
		if d.Normal == nil {
			return nil, configErr("normal distribution missing parameters")
		}
		return initializer.NewNormal(rng, limit, d.Normal.Mean, d.Normal.StdDev), nil
	case DistXavierUniform:
		if d.XavierUniform == nil {
			return nil, configErr("xavier_uniform distribution missing parameters")
		}
		return initializer.NewXavierUniform(rng, limit, d.XavierUniform.FanIn, d.XavierUniform.FanOut), nil
	case DistLecunUniform:
		if d.LecunUniform == nil {
			return nil, configErr("lecun_uniform distribution missing parameters")
		}
		return initializer.NewLecunUniform(rng, limit, d.LecunUniform.FanIn), nil
	case DistKaiming:
		if d.Kaiming == nil {
			return nil, configErr("kaiming distribution missing parameters")
		}
		return initializer.NewKaiming(rng, limit, d.Kaiming.FanIn), nil
	case DistXavier:
		if d.Xavier == nil {
			return nil, configErr("xavier distribution missing parameters")
		}
		return initializer.NewXavier(rng, limit, d.Xavier.FanIn, d.Xavier.FanOut), nil
	case DistLecun:
		if d.Lecun == nil {
			return nil, configErr("lecun distribution missing parameters")
		}
		return initializer.NewLecun(rng, limit, d.Lecun.FanIn), nil
	default:
		return nil, configErr("unknown distribution kind: " + d.Kind)
	}
}

// BuildOptimizerFactory translates an OptimizerSpec into a function that
// produces one optimizer instance per shard — shards need independently
// sized moment/velocity buffers, so the store builder calls this once per
// shard rather than sharing a single instance.
func BuildOptimizerFactory(spec OptimizerSpec) (func(shardLen int) optimizer.Optimizer, error) {
	switch spec.Kind {
	case OptGradientDescent:
		if spec.GradientDescent == nil {
			return nil, configErr("gradient_descent optimizer missing parameters")
		}
		lr := spec.GradientDescent.LearningRate
		return func(int) optimizer.Optimizer { return optimizer.NewGradientDescent(lr) }, nil
	case OptGradientDescentWithMomentum:
		if spec.GradientDescentWithMomentum == nil {
			return nil, configErr("gradient_descent_with_momentum optimizer missing parameters")
		}
		p := spec.GradientDescentWithMomentum
		return func(n int) optimizer.Optimizer { return optimizer.NewMomentum(p.LearningRate, p.Momentum, n) }, nil
	case OptAdam:
		if spec.Adam == nil {
			return nil, configErr("adam optimizer missing parameters")
		}
		p := spec.Adam
		return func(n int) optimizer.Optimizer {
			return optimizer.NewAdam(p.LearningRate, p.Beta1, p.Beta2, p.Epsilon, n)
		}, nil
	default:
		return nil, configErr("unknown optimizer kind: " + spec.Kind)
	}
}

// drainInitializer fully exhausts init, sampling in chunks of at most
// shardSize at a time (matching how the store itself will later construct
// shards — spec.md §4.5: "the store constructs shards by repeatedly
// calling sample(shard_size) until exhaustion").
func drainInitializer(init initializer.Initializer, shardSize int) []float32 {
	var out []float32
	for {
		chunk, ok := init.Sample(shardSize)
		if !ok {
			return out
		}
		out = append(out, chunk...)
	}
}

// BuildStore translates a ServerSpec's initializer, optimizer, and store
// choice into a fully constructed store.Store with its initial parameter
// sequence drained from the initializer.
func BuildStore(spec ServerSpec) (store.Store, error) {
	rng := rngFromSeed(spec.Seed)

	var shardSize int
	switch spec.Store.Kind {
	case StoreBlocking:
		if spec.Store.Blocking == nil {
			return nil, configErr("blocking store missing parameters")
		}
		shardSize = spec.Store.Blocking.ShardSize
	case StoreWild:
		if spec.Store.Wild == nil {
			return nil, configErr("wild store missing parameters")
		}
		shardSize = spec.Store.Wild.ShardSize
	default:
		return nil, configErr("unknown store kind: " + spec.Store.Kind)
	}
	if shardSize <= 0 {
		return nil, configErr("shard_size must be positive")
	}

	init, err := BuildInitializer(spec.ParamGen, rng)
	if err != nil {
		return nil, err
	}
	initial := drainInitializer(init, shardSize)
	if len(initial) == 0 {
		return nil, paramserver.NewError("specs.BuildStore", paramserver.KindInitializerExhausted, "initializer produced zero parameters")
	}

	optFactory, err := BuildOptimizerFactory(spec.Optimizer)
	if err != nil {
		return nil, err
	}

	switch spec.Store.Kind {
	case StoreBlocking:
		return store.NewBlocking(initial, shardSize, optFactory), nil
	case StoreWild:
		return store.NewWild(initial, shardSize, optFactory), nil
	default:
		return nil, configErr("unknown store kind: " + spec.Store.Kind)
	}
}

// BuildSynchronizer translates a SynchronizerSpec into a concrete
// syncer.Synchronizer bound to st.
func BuildSynchronizer(spec SynchronizerSpec, st store.Store, nworkers int) (syncer.Synchronizer, error) {
	switch spec.Kind {
	case SyncBarrier:
		size := nworkers
		if spec.Barrier != nil && spec.Barrier.BarrierSize > 0 {
			size = spec.Barrier.BarrierSize
		}
		if size <= 0 {
			return nil, configErr("barrier synchronizer requires a positive cohort size")
		}
		return syncer.NewBarrierSynchronizer(st, size), nil
	case SyncNonBlocking:
		return syncer.NewNonBlocking(st), nil
	default:
		return nil, configErr("unknown synchronizer kind: " + spec.Kind)
	}
}

// ValidateAlgorithm rejects AllReduce and StrategySwitch explicitly rather
// than silently ignoring them (spec.md's supplemented-features note).
func ValidateAlgorithm(spec AlgorithmSpec) (*ParameterServerParams, error) {
	switch spec.Kind {
	case AlgoParameterServer:
		if spec.ParameterServer == nil {
			return nil, configErr("parameter_server algorithm missing parameters")
		}
		return spec.ParameterServer, nil
	case AlgoAllReduce, AlgoStrategySwitch:
		return nil, configErr(spec.Kind + " algorithm is not implemented")
	default:
		return nil, configErr("unknown algorithm kind: " + spec.Kind)
	}
}

func configErr(msg string) error {
	return paramserver.NewError("specs.build", paramserver.KindConfiguration, msg)
}
