package paramserver

import "sync"

// MockKernel provides a mock kernel.Kernel-shaped implementation for
// testing worker/server wiring without a real ML model, tracking call
// counts the way the teacher's MockBackend tracks ReadAt/WriteAt calls.
type MockKernel struct {
	mu         sync.Mutex
	ComputeFn  func(params []float32) []float32
	computeCalls int
	lastParams   []float32
}

// NewMockKernel creates a mock kernel that returns gradient = scale * params
// unless ComputeFn is set to something else.
func NewMockKernel(scale float32) *MockKernel {
	return &MockKernel{
		ComputeFn: func(params []float32) []float32 {
			out := make([]float32, len(params))
			for i, p := range params {
				out[i] = scale * p
			}
			return out
		},
	}
}

// Compute implements kernel.Kernel.
func (m *MockKernel) Compute(params []float32) []float32 {
	m.mu.Lock()
	m.computeCalls++
	m.lastParams = append([]float32(nil), params...)
	fn := m.ComputeFn
	m.mu.Unlock()
	return fn(params)
}

// CallCount returns how many times Compute has been called.
func (m *MockKernel) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.computeCalls
}

// LastParams returns a copy of the most recent params passed to Compute.
func (m *MockKernel) LastParams() []float32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]float32(nil), m.lastParams...)
}

// Reset clears call tracking state.
func (m *MockKernel) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.computeCalls = 0
	m.lastParams = nil
}
