package store

import (
	"sync"
	"testing"

	"github.com/mharlan/paramserver/internal/optimizer"
)

func TestShardAccumulateAdditive(t *testing.T) {
	sh := NewShard([]float32{0, 0, 0}, optimizer.NewGradientDescent(0))
	grads := [][]float32{{1, 2, 3}, {1, 1, 1}, {-1, 0, 2}}

	var wg sync.WaitGroup
	for _, g := range grads {
		g := g
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := sh.Accumulate(0, g); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	// apply with a zero-LR optimizer so params stay at 0 but we can still
	// observe the accumulated buffer indirectly via Update's effect... the
	// buffer itself isn't exported, so instead verify via a GD optimizer
	// with LR=1 subtracting the accumulated sum from a zeroed start.
	sh2 := NewShard([]float32{0, 0, 0}, optimizer.NewGradientDescent(1))
	for _, g := range grads {
		if err := sh2.Accumulate(0, g); err != nil {
			t.Fatal(err)
		}
	}
	if err := sh2.Update(0); err != nil {
		t.Fatal(err)
	}
	out := make([]float32, 3)
	if err := sh2.Pull(out); err != nil {
		t.Fatal(err)
	}
	want := []float32{-1, -3, -6} // p=0 - sum(g) = -(1+1-1), -(2+1+0), -(3+1+2)
	for i, v := range want {
		if out[i] != v {
			t.Errorf("out[%d] = %v, want %v", i, out[i], v)
		}
	}
}

func TestShardAccumulateSizeMismatch(t *testing.T) {
	sh := NewShard([]float32{0, 0}, optimizer.NewGradientDescent(0.1))
	if err := sh.Accumulate(0, []float32{1}); err == nil {
		t.Fatal("expected size mismatch error")
	}
}

func TestShardDoubleBufferNonInterference(t *testing.T) {
	sh := NewShard([]float32{1, 1}, optimizer.NewGradientDescent(1))
	if err := sh.Accumulate(0, []float32{1, 1}); err != nil {
		t.Fatal(err)
	}
	if err := sh.Update(0); err != nil {
		t.Fatal(err)
	}
	out := make([]float32, 2)
	sh.Pull(out)
	if out[0] != 0 || out[1] != 0 {
		t.Fatalf("expected params updated to 0, got %v", out)
	}

	// frozen buffer 0 should now be zeroed; accumulating into buffer 1 must
	// not perturb it, and re-updating buffer 0 (now zero) must be a no-op.
	if err := sh.Accumulate(1, []float32{5, 5}); err != nil {
		t.Fatal(err)
	}
	if err := sh.Update(0); err != nil {
		t.Fatal(err)
	}
	sh.Pull(out)
	if out[0] != 0 || out[1] != 0 {
		t.Fatalf("expected params unchanged by re-applying zeroed buffer 0, got %v", out)
	}
}

func TestShardZeroGradientIdempotent(t *testing.T) {
	sh := NewShard([]float32{3, 4, 5}, optimizer.NewGradientDescent(0.1))
	if err := sh.Accumulate(0, []float32{0, 0, 0}); err != nil {
		t.Fatal(err)
	}
	if err := sh.Update(0); err != nil {
		t.Fatal(err)
	}
	out := make([]float32, 3)
	sh.Pull(out)
	want := []float32{3, 4, 5}
	for i, v := range want {
		if out[i] != v {
			t.Errorf("out[%d] = %v, want %v", i, out[i], v)
		}
	}
}
