package optimize

import (
	"math"

	"github.com/YuminosukeSato/vigp/pkg/errors"
)

// Schedule returns the learning rate for a 0-based step.
type Schedule interface {
	Rate(step int) float64
}

// Constant is a fixed learning rate.
type Constant float64

// Rate implements Schedule.
func (c Constant) Rate(int) float64 { return float64(c) }

// Validate rejects non-positive and NaN rates; a negative rate would turn
// Adam into gradient ascent.
func (c Constant) Validate() error {
	v := float64(c)
	if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return errors.NewValidationError("learning_rate", "must be positive and finite", v)
	}
	return nil
}

// ExponentialDecay multiplies the initial rate by Factor every DecaySteps steps.
// With Staircase the exponent is truncated to an integer, so the rate is
// piecewise constant.
type ExponentialDecay struct {
	Initial    float64
	DecaySteps int
	Factor     float64
	Staircase  bool
}

// DefaultExponentialDecay は 0.1 から始まり 100 ステップごとに 0.9 倍する階段型スケジュールです。
func DefaultExponentialDecay() ExponentialDecay {
	return ExponentialDecay{Initial: 0.1, DecaySteps: 100, Factor: 0.9, Staircase: true}
}

// Rate implements Schedule.
func (e ExponentialDecay) Rate(step int) float64 {
	if e.DecaySteps <= 0 {
		return e.Initial
	}
	p := float64(step) / float64(e.DecaySteps)
	if e.Staircase {
		p = math.Floor(p)
	}
	return e.Initial * math.Pow(e.Factor, p)
}

// Validate checks that the schedule produces positive, non-increasing rates.
func (e ExponentialDecay) Validate() error {
	if e.Initial <= 0 || math.IsNaN(e.Initial) {
		return errors.NewValidationError("initial", "must be positive", e.Initial)
	}
	if e.Factor <= 0 || e.Factor > 1 {
		return errors.NewValidationError("factor", "must be in (0, 1]", e.Factor)
	}
	if e.DecaySteps < 0 {
		return errors.NewValidationError("decay_steps", "must be non-negative", e.DecaySteps)
	}
	return nil
}
