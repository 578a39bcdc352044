// Package kernel defines the external ML-kernel interface the worker
// runtime delegates forward/backward computation through (spec.md §6), and
// ships two concrete kernels for testing: Mock and LinearRegression.
//
// Grounded on the narrow, single-method interface style of the teacher's
// internal/interfaces/backend.go (Backend/Logger/Observer: one concern, one
// method or a small closed set), generalized here to the worker's one
// externally-pluggable concern instead of block-device I/O.
package kernel

// Kernel computes a gradient from the current parameter snapshot. The core
// does not constrain how a Kernel allocates or computes; it only requires
// that len(gradient) == len(params) and that Compute has no hidden state
// that would affect wire correctness (spec.md §6).
type Kernel interface {
	Compute(params []float32) (gradient []float32)
}

// Mock returns gradient = scale * weights, matching the original's "Mock"
// model (gradient = 2 * weights) generalized to a configurable scale —
// grounded on original_source's comms/src/specs/worker/model.rs ModelSpec
// variant documented as "Mock model used for end-to-end tests".
type Mock struct {
	Scale float32
}

func NewMock(scale float32) *Mock {
	return &Mock{Scale: scale}
}

func (m *Mock) Compute(params []float32) []float32 {
	out := make([]float32, len(params))
	for i, p := range params {
		out[i] = m.Scale * p
	}
	return out
}

var _ Kernel = (*Mock)(nil)
