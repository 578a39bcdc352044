package specs

// OptimizerSpec selects an optimizer and its hyperparameters (spec.md
// §4.4). Exactly one of the pointer fields is set, matching Kind.
type OptimizerSpec struct {
	Kind string `json:"kind"`

	GradientDescent             *GradientDescentParams `json:"gradient_descent,omitempty"`
	GradientDescentWithMomentum *MomentumParams        `json:"gradient_descent_with_momentum,omitempty"`
	Adam                        *AdamParams            `json:"adam,omitempty"`
}

const (
	OptGradientDescent             = "gradient_descent"
	OptGradientDescentWithMomentum = "gradient_descent_with_momentum"
	OptAdam                        = "adam"
)

type GradientDescentParams struct {
	LearningRate float32 `json:"learning_rate"`
}

type MomentumParams struct {
	LearningRate float32 `json:"learning_rate"`
	Momentum     float32 `json:"momentum"`
}

type AdamParams struct {
	LearningRate float32 `json:"learning_rate"`
	Beta1        float32 `json:"beta1"`
	Beta2        float32 `json:"beta2"`
	Epsilon      float32 `json:"epsilon"`
}
