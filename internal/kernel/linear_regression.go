package kernel

// LinearRegression computes the mean-squared-error gradient of a 1D linear
// model y = w*x + b against a fixed in-memory dataset, matching spec.md
// §8 scenario S1 exactly: params is [w, b]; for each (x, y) pair, the
// prediction is w*x+b and the per-example gradient contribution is
// [2(ŷ−y)x, 2(ŷ−y)], averaged over the dataset.
type LinearRegression struct {
	X []float32
	Y []float32
}

func NewLinearRegression(x, y []float32) *LinearRegression {
	return &LinearRegression{X: x, Y: y}
}

func (lr *LinearRegression) Compute(params []float32) []float32 {
	w, b := params[0], params[1]
	n := float32(len(lr.X))

	var gw, gb float32
	for i := range lr.X {
		yHat := w*lr.X[i] + b
		diff := yHat - lr.Y[i]
		gw += 2 * diff * lr.X[i] / n
		gb += 2 * diff / n
	}
	return []float32{gw, gb}
}

var _ Kernel = (*LinearRegression)(nil)
