// Package optimize provides first-order optimizers for the variational
// parameters of the Gaussian-process classifier.
//
// Optimizers minimize: Step moves params against grad.
package optimize

import (
	"math"

	"github.com/YuminosukeSato/vigp/pkg/errors"
)

// Adam implements the Adam update with bias correction.
type Adam struct {
	LearningRate Schedule
	Beta1        float64
	Beta2        float64
	Epsilon      float64

	m, v []float64
	t    int
}

// AdamOption configures NewAdam.
type AdamOption func(*Adam)

// WithSchedule sets the learning-rate schedule.
func WithSchedule(s Schedule) AdamOption {
	return func(a *Adam) { a.LearningRate = s }
}

// WithBetas sets the decay rates of the first and second moment estimates.
func WithBetas(beta1, beta2 float64) AdamOption {
	return func(a *Adam) {
		a.Beta1 = beta1
		a.Beta2 = beta2
	}
}

// WithEpsilon sets the denominator offset.
func WithEpsilon(eps float64) AdamOption {
	return func(a *Adam) { a.Epsilon = eps }
}

// NewAdam returns Adam with β1=0.9, β2=0.999, ε=1e-8 and the default
// exponential decay schedule.
func NewAdam(opts ...AdamOption) *Adam {
	a := &Adam{
		LearningRate: DefaultExponentialDecay(),
		Beta1:        0.9,
		Beta2:        0.999,
		Epsilon:      1e-8,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Validate checks the hyperparameters.
func (a *Adam) Validate() error {
	if a.LearningRate == nil {
		return errors.NewValidationError("learning_rate", "schedule is required", nil)
	}
	if v, ok := a.LearningRate.(interface{ Validate() error }); ok {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	if a.Beta1 < 0 || a.Beta1 >= 1 {
		return errors.NewValidationError("beta1", "must be in [0, 1)", a.Beta1)
	}
	if a.Beta2 < 0 || a.Beta2 >= 1 {
		return errors.NewValidationError("beta2", "must be in [0, 1)", a.Beta2)
	}
	if a.Epsilon <= 0 {
		return errors.NewValidationError("epsilon", "must be positive", a.Epsilon)
	}
	return nil
}

// Step applies one update to params in place and returns the learning rate used.
// The moment buffers are sized on the first call; later calls must pass
// slices of the same length.
func (a *Adam) Step(params, grad []float64) float64 {
	if len(params) != len(grad) {
		panic("optimize: params and grad length mismatch")
	}
	if a.m == nil {
		a.m = make([]float64, len(params))
		a.v = make([]float64, len(params))
	}
	if len(a.m) != len(params) {
		panic("optimize: parameter vector changed size between steps")
	}

	lr := a.LearningRate.Rate(a.t)
	a.t++
	bc1 := 1 - math.Pow(a.Beta1, float64(a.t))
	bc2 := 1 - math.Pow(a.Beta2, float64(a.t))

	for i, g := range grad {
		a.m[i] = a.Beta1*a.m[i] + (1-a.Beta1)*g
		a.v[i] = a.Beta2*a.v[i] + (1-a.Beta2)*g*g
		mHat := a.m[i] / bc1
		vHat := a.v[i] / bc2
		params[i] -= lr * mHat / (math.Sqrt(vHat) + a.Epsilon)
	}
	return lr
}

// Steps returns the number of updates applied since the last Reset.
func (a *Adam) Steps() int { return a.t }

// Reset clears the moment estimates and the step counter.
func (a *Adam) Reset() {
	a.m, a.v = nil, nil
	a.t = 0
}

// ClipNorm rescales grad in place so its L2 norm is at most maxNorm and
// returns the norm before clipping. maxNorm <= 0 leaves grad unchanged.
func ClipNorm(grad []float64, maxNorm float64) float64 {
	return errors.ClipGradient(grad, maxNorm)
}
