// Package optimizer implements the pure (gradient, parameters, state) ->
// updated-parameters functions used by the parameter store (spec.md §4.4).
// One instance is owned per shard; instances are not safe for concurrent
// Apply calls (the store serializes access to a shard's parameter sequence
// via its reader/writer lock before calling into the optimizer).
package optimizer

import "math"

// Optimizer updates params in place using grad. |grad| must equal |params|;
// callers (internal/store) are responsible for that invariant — Apply
// itself does not validate size, mirroring spec.md §4.4's "|grad| =
// |params| is a precondition (SizeMismatch otherwise)" enforced one layer
// up, at the shard, which already knows both lengths from construction.
type Optimizer interface {
	Apply(grad, params []float32)
}

// GradientDescent implements plain SGD: p <- p - eta*g.
type GradientDescent struct {
	LR float32
}

func NewGradientDescent(lr float32) *GradientDescent {
	return &GradientDescent{LR: lr}
}

func (o *GradientDescent) Apply(grad, params []float32) {
	for i := range params {
		params[i] -= o.LR * grad[i]
	}
}

// Momentum implements SGD with a velocity term:
//
//	v <- mu*v + g
//	p <- p - eta*v
type Momentum struct {
	LR float32
	Mu float32
	v  []float32
}

func NewMomentum(lr, mu float32, size int) *Momentum {
	return &Momentum{LR: lr, Mu: mu, v: make([]float32, size)}
}

func (o *Momentum) Apply(grad, params []float32) {
	for i := range params {
		o.v[i] = o.Mu*o.v[i] + grad[i]
		params[i] -= o.LR * o.v[i]
	}
}

// Adam implements the Adam optimizer with first/second moment estimates
// and a bias-corrected step size, exactly as original_source's
// parameter_server/src/optimization/adam.rs:
//
//	t <- t+1
//	m <- b1*m + (1-b1)*g
//	s <- b2*s + (1-b2)*g^2
//	step <- lr * sqrt(1-b2^t) / (1-b1^t)
//	p <- p - step*m/(sqrt(s)+eps)
//
// Implemented here via the running products beta1_t, beta2_t (b1^t, b2^t)
// rather than a separate integer step counter, matching the original's
// field layout.
type Adam struct {
	LR      float32
	Beta1   float32
	Beta2   float32
	Epsilon float32

	beta1T float32
	beta2T float32
	m      []float32
	s      []float32
}

func NewAdam(lr, beta1, beta2, epsilon float32, size int) *Adam {
	return &Adam{
		LR:      lr,
		Beta1:   beta1,
		Beta2:   beta2,
		Epsilon: epsilon,
		beta1T:  1,
		beta2T:  1,
		m:       make([]float32, size),
		s:       make([]float32, size),
	}
}

func (o *Adam) Apply(grad, params []float32) {
	o.beta1T *= o.Beta1
	o.beta2T *= o.Beta2

	bc1 := 1 - o.beta1T
	bc2 := 1 - o.beta2T
	step := o.LR * float32(math.Sqrt(float64(bc2))) / bc1

	for i := range params {
		o.m[i] = o.Beta1*o.m[i] + (1-o.Beta1)*grad[i]
		o.s[i] = o.Beta2*o.s[i] + (1-o.Beta2)*grad[i]*grad[i]
		params[i] -= step * o.m[i] / (float32(math.Sqrt(float64(o.s[i]))) + o.Epsilon)
	}
}
