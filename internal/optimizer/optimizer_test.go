package optimizer

import (
	"math"
	"testing"
)

func approxEqual(a, b, eps float32) bool {
	return float32(math.Abs(float64(a-b))) <= eps
}

func TestGradientDescent(t *testing.T) {
	o := NewGradientDescent(0.1)
	params := []float32{1, 2, 3}
	grad := []float32{1, 1, 1}
	o.Apply(grad, params)
	want := []float32{0.9, 1.9, 2.9}
	for i := range want {
		if !approxEqual(params[i], want[i], 1e-6) {
			t.Errorf("params[%d] = %v, want %v", i, params[i], want[i])
		}
	}
}

func TestGradientDescentZeroGradIsIdentity(t *testing.T) {
	o := NewGradientDescent(0.1)
	params := []float32{1, 2, 3}
	orig := append([]float32(nil), params...)
	o.Apply([]float32{0, 0, 0}, params)
	for i := range orig {
		if params[i] != orig[i] {
			t.Errorf("params[%d] changed under zero grad: %v -> %v", i, orig[i], params[i])
		}
	}
}

func TestMomentum(t *testing.T) {
	o := NewMomentum(1.0, 0.9, 2)
	params := []float32{10, 10}
	o.Apply([]float32{1, 1}, params)
	// v = 0.9*0 + 1 = 1; p -= 1*1 = 9
	if !approxEqual(params[0], 9, 1e-6) {
		t.Errorf("params[0] = %v, want 9", params[0])
	}
	o.Apply([]float32{1, 1}, params)
	// v = 0.9*1 + 1 = 1.9; p -= 1.9 => 9 - 1.9 = 7.1
	if !approxEqual(params[0], 7.1, 1e-4) {
		t.Errorf("params[0] = %v, want 7.1", params[0])
	}
}

func TestAdamZeroGradIsIdentity(t *testing.T) {
	o := NewAdam(0.001, 0.9, 0.999, 1e-8, 3)
	params := []float32{1, 2, 3}
	orig := append([]float32(nil), params...)
	for i := 0; i < 5; i++ {
		o.Apply([]float32{0, 0, 0}, params)
	}
	for i := range orig {
		if params[i] != orig[i] {
			t.Errorf("params[%d] changed under zero grad: %v -> %v", i, orig[i], params[i])
		}
	}
}

func TestAdamMovesTowardNegativeGradient(t *testing.T) {
	o := NewAdam(0.1, 0.9, 0.999, 1e-8, 1)
	params := []float32{5}
	for i := 0; i < 10; i++ {
		o.Apply([]float32{1}, params)
	}
	if params[0] >= 5 {
		t.Errorf("expected params to decrease under positive gradient, got %v", params[0])
	}
}

func TestAdamStepCounterAccumulates(t *testing.T) {
	o := NewAdam(0.1, 0.9, 0.999, 1e-8, 1)
	params1 := []float32{0}
	o.Apply([]float32{1}, params1)
	first := params1[0]

	o2 := NewAdam(0.1, 0.9, 0.999, 1e-8, 1)
	params2 := []float32{0}
	o2.Apply([]float32{1}, params2)
	o2.Apply([]float32{1}, params2)
	if params2[0] == first {
		t.Error("expected second step to differ from a single step (bias correction changes with t)")
	}
}
