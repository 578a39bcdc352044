package specs

import (
	"testing"

	"github.com/mharlan/paramserver"
)

func TestServerSpecJSONRoundTrip(t *testing.T) {
	seed := uint64(42)
	spec := ServerSpec{
		NWorkers: 3,
		ParamGen: InitializerSpec{
			Kind:  InitConst,
			Const: &ConstSpec{Value: 0, Limit: 10},
		},
		Optimizer: OptimizerSpec{
			Kind:            OptGradientDescent,
			GradientDescent: &GradientDescentParams{LearningRate: 0.01},
		},
		Synchronizer: SynchronizerSpec{
			Kind:    SyncBarrier,
			Barrier: &BarrierParams{BarrierSize: 3},
		},
		Store: StoreSpec{
			Kind:     StoreBlocking,
			Blocking: &ShardSizeParams{ShardSize: 4},
		},
		Seed: &seed,
	}

	b, err := MarshalServerSpec(spec)
	if err != nil {
		t.Fatal(err)
	}
	got, err := UnmarshalServerSpec(b)
	if err != nil {
		t.Fatal(err)
	}
	if got.NWorkers != 3 || got.Store.Blocking.ShardSize != 4 || *got.Seed != 42 {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestBuildInitializerConst(t *testing.T) {
	spec := InitializerSpec{Kind: InitConst, Const: &ConstSpec{Value: 5, Limit: 3}}
	init, err := BuildInitializer(spec, nil)
	if err != nil {
		t.Fatal(err)
	}
	sample, ok := init.Sample(3)
	if !ok || len(sample) != 3 || sample[0] != 5 {
		t.Fatalf("got %v, %v", sample, ok)
	}
}

func TestBuildInitializerUnknownKind(t *testing.T) {
	_, err := BuildInitializer(InitializerSpec{Kind: "bogus"}, nil)
	if !paramserver.IsKind(err, paramserver.KindConfiguration) {
		t.Fatalf("expected Configuration error, got %v", err)
	}
}

func TestBuildOptimizerFactoryAdam(t *testing.T) {
	spec := OptimizerSpec{Kind: OptAdam, Adam: &AdamParams{LearningRate: 0.001, Beta1: 0.9, Beta2: 0.999, Epsilon: 1e-8}}
	factory, err := BuildOptimizerFactory(spec)
	if err != nil {
		t.Fatal(err)
	}
	opt := factory(4)
	params := []float32{1, 1, 1, 1}
	opt.Apply([]float32{1, 1, 1, 1}, params)
	for _, v := range params {
		if v >= 1 {
			t.Fatalf("expected Adam step to decrease params, got %v", v)
		}
	}
}

func TestBuildStoreEndToEnd(t *testing.T) {
	spec := ServerSpec{
		NWorkers: 2,
		ParamGen: InitializerSpec{Kind: InitConst, Const: &ConstSpec{Value: 0, Limit: 10}},
		Optimizer: OptimizerSpec{
			Kind:            OptGradientDescent,
			GradientDescent: &GradientDescentParams{LearningRate: 1},
		},
		Synchronizer: SynchronizerSpec{Kind: SyncNonBlocking},
		Store:        StoreSpec{Kind: StoreBlocking, Blocking: &ShardSizeParams{ShardSize: 4}},
	}
	st, err := BuildStore(spec)
	if err != nil {
		t.Fatal(err)
	}
	if st.Len() != 10 {
		t.Fatalf("Len() = %d, want 10", st.Len())
	}

	sync, err := BuildSynchronizer(spec.Synchronizer, st, spec.NWorkers)
	if err != nil {
		t.Fatal(err)
	}
	out := make([]float32, 10)
	grad := make([]float32, 10)
	for i := range grad {
		grad[i] = 1
	}
	if err := sync.Step(grad, out); err != nil {
		t.Fatal(err)
	}
	for _, v := range out {
		if v != -1 {
			t.Fatalf("got %v, want -1", v)
		}
	}
}

func TestBuildStoreExhaustedInitializer(t *testing.T) {
	spec := ServerSpec{
		ParamGen:  InitializerSpec{Kind: InitConst, Const: &ConstSpec{Value: 0, Limit: 0}},
		Optimizer: OptimizerSpec{Kind: OptGradientDescent, GradientDescent: &GradientDescentParams{LearningRate: 0.1}},
		Store:     StoreSpec{Kind: StoreBlocking, Blocking: &ShardSizeParams{ShardSize: 4}},
	}
	_, err := BuildStore(spec)
	if !paramserver.IsKind(err, paramserver.KindInitializerExhausted) {
		t.Fatalf("expected InitializerExhausted, got %v", err)
	}
}

func TestValidateAlgorithmRejectsUnimplemented(t *testing.T) {
	_, err := ValidateAlgorithm(AlgorithmSpec{Kind: AlgoAllReduce, AllReduce: &AllReduceParams{Peers: []string{"x"}}})
	if !paramserver.IsKind(err, paramserver.KindConfiguration) {
		t.Fatalf("expected Configuration error, got %v", err)
	}

	_, err = ValidateAlgorithm(AlgorithmSpec{Kind: AlgoStrategySwitch})
	if !paramserver.IsKind(err, paramserver.KindConfiguration) {
		t.Fatalf("expected Configuration error, got %v", err)
	}

	p, err := ValidateAlgorithm(AlgorithmSpec{Kind: AlgoParameterServer, ParameterServer: &ParameterServerParams{ServerAddrs: []string{"127.0.0.1:9000"}}})
	if err != nil {
		t.Fatal(err)
	}
	if len(p.ServerAddrs) != 1 {
		t.Fatalf("got %v", p)
	}
}
