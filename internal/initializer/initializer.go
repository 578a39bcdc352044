// Package initializer implements the parameter-generation strategies named
// in spec.md §4.2 (ParamGenSpec/DistributionSpec). Each Initializer produces
// at most a fixed number of float32 values ("limit"); Sample returns fewer
// than requested once the limit is reached, and (nil, false) once it is
// exhausted — grounded on original_source's parameter_server/src/
// initialization/{constant,random,chained}.rs WeightGen trait, which has
// exactly this "sample(n) -> Option<Vec<f32>>" shape.
package initializer

import (
	"math"
	"math/rand"
)

// Initializer produces up to n values per call, consuming from a fixed
// overall budget. ok is false once the budget is exhausted, mirroring the
// original's remaining == 0 check preceding every sample.
type Initializer interface {
	Sample(n int) (values []float32, ok bool)
}

// Const always yields the same value, up to limit times.
type Const struct {
	Value     float32
	remaining int
}

func NewConst(value float32, limit int) *Const {
	return &Const{Value: value, remaining: limit}
}

func (c *Const) Sample(n int) ([]float32, bool) {
	if c.remaining == 0 {
		return nil, false
	}
	if n > c.remaining {
		n = c.remaining
	}
	c.remaining -= n
	out := make([]float32, n)
	for i := range out {
		out[i] = c.Value
	}
	return out, true
}

// Rand draws from an *rand.Rand-backed distribution, up to limit values.
// distFn is called once per value and must be safe to call repeatedly on
// the same rng (the rng is not safe for concurrent use — an Initializer
// belongs to a single Store builder call, same as the teacher's
// RandWeightGen<R, D>, which borrows a single non-Send rng per generator).
type Rand struct {
	rng       *rand.Rand
	distFn    func(rng *rand.Rand) float32
	remaining int
}

func newRand(rng *rand.Rand, distFn func(rng *rand.Rand) float32, limit int) *Rand {
	return &Rand{rng: rng, distFn: distFn, remaining: limit}
}

func (r *Rand) Sample(n int) ([]float32, bool) {
	if r.remaining == 0 {
		return nil, false
	}
	if n > r.remaining {
		n = r.remaining
	}
	r.remaining -= n
	out := make([]float32, n)
	for i := range out {
		out[i] = r.distFn(r.rng)
	}
	return out, true
}

// NewUniform draws from [low, high) — matches rand::distributions::Uniform.
func NewUniform(rng *rand.Rand, limit int, low, high float32) *Rand {
	return newRand(rng, uniformFn(low, high, false), limit)
}

// NewUniformInclusive draws from [low, high] inclusive of the upper bound.
func NewUniformInclusive(rng *rand.Rand, limit int, low, high float32) *Rand {
	return newRand(rng, uniformFn(low, high, true), limit)
}

func uniformFn(low, high float32, inclusive bool) func(*rand.Rand) float32 {
	span := high - low
	return func(rng *rand.Rand) float32 {
		if inclusive {
			// rng.Int31n(1<<30) covers [0, 1<<30) and dividing by 1<<30-1
			// maps its largest draw to exactly 1, giving high a reachable
			// nonzero probability unlike the half-open Float32 used below — matches
			// rand::Uniform::new_inclusive's closed interval closely enough
			// for weight initialization.
			u := float32(rng.Int31n(1<<30)) / float32(1<<30-1)
			return low + u*span
		}
		return low + rng.Float32()*span
	}
}

// NewNormal draws from a Gaussian with the given mean and standard deviation.
func NewNormal(rng *rand.Rand, limit int, mean, stdDev float32) *Rand {
	return newRand(rng, func(rng *rand.Rand) float32 {
		return mean + stdDev*float32(rng.NormFloat64())
	}, limit)
}

// NewXavierUniform implements Xavier/Glorot uniform init: U(-r, r) with
// r = sqrt(6 / (fanIn + fanOut)).
func NewXavierUniform(rng *rand.Rand, limit, fanIn, fanOut int) *Rand {
	r := sqrt32(6. / float32(fanIn+fanOut))
	return NewUniform(rng, limit, -r, r)
}

// NewLecunUniform implements LeCun uniform init: U(-r, r) with
// r = sqrt(3 / fanIn).
func NewLecunUniform(rng *rand.Rand, limit, fanIn int) *Rand {
	r := sqrt32(3. / float32(fanIn))
	return NewUniform(rng, limit, -r, r)
}

// NewKaiming implements Kaiming/He normal init: N(0, sqrt(2/fanIn)).
func NewKaiming(rng *rand.Rand, limit, fanIn int) *Rand {
	std := sqrt32(2. / float32(fanIn))
	return NewNormal(rng, limit, 0, std)
}

// NewXavier implements Xavier/Glorot normal init, defined (per the original)
// as Kaiming normal over fanIn+fanOut.
func NewXavier(rng *rand.Rand, limit, fanIn, fanOut int) *Rand {
	return NewKaiming(rng, limit, fanIn+fanOut)
}

// NewLecun implements LeCun normal init: N(0, sqrt(1/fanIn)).
func NewLecun(rng *rand.Rand, limit, fanIn int) *Rand {
	std := sqrt32(1. / float32(fanIn))
	return NewNormal(rng, limit, 0, std)
}

func sqrt32(v float32) float32 {
	return float32(math.Sqrt(float64(v)))
}

// Chained delegates to a sequence of Initializers, moving to the next once
// the current one is exhausted, and concatenating partial results to fill
// the requested count — grounded on ChainedWeightGen::sample in
// original_source's initialization/chained.rs, including its recursive
// fill-the-rest behavior.
type Chained struct {
	gens []Initializer
	curr int
}

func NewChained(gens ...Initializer) *Chained {
	return &Chained{gens: gens}
}

func (c *Chained) Sample(n int) ([]float32, bool) {
	if c.curr >= len(c.gens) {
		return nil, false
	}
	sample, ok := c.gens[c.curr].Sample(n)
	if ok && len(sample) == n {
		return sample, true
	}
	if !ok {
		c.curr++
		return c.Sample(n)
	}
	// partial: advance and fill the remainder
	c.curr++
	rest, ok := c.Sample(n - len(sample))
	if ok {
		sample = append(sample, rest...)
	}
	return sample, true
}
