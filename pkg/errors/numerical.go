package errors

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// CheckNumericalStability checks if values contain NaN or Inf
// and returns an error if numerical instability is detected.
func CheckNumericalStability(operation string, values []float64, iteration int) error {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return NewNumericalInstabilityError(operation, values, iteration)
		}
	}
	return nil
}

// CheckScalar checks a single scalar value for numerical instability.
func CheckScalar(operation string, value float64, iteration int) error {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return NewNumericalInstabilityError(operation, []float64{value}, iteration)
	}
	return nil
}

// ClipValue clips a value to the range [min, max].
func ClipValue(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// ClipGradient rescales gradient in place so that its L2 norm is at most maxNorm.
// It returns the norm before clipping. A non-positive maxNorm disables clipping.
func ClipGradient(gradient []float64, maxNorm float64) float64 {
	norm := floats.Norm(gradient, 2)
	if maxNorm > 0 && norm > maxNorm {
		floats.Scale(maxNorm/norm, gradient)
	}
	return norm
}

// StabilizeLog computes log with protection against log(0).
// Returns log(max(value, epsilon)) where epsilon is a small positive number.
func StabilizeLog(value float64) float64 {
	const epsilon = 1e-15
	if value < epsilon {
		return math.Log(epsilon)
	}
	return math.Log(value)
}

// Softplus computes log(1 + exp(x)) without overflowing for large x.
func Softplus(x float64) float64 {
	if x > 30 {
		return x + math.Log1p(math.Exp(-x))
	}
	return math.Log1p(math.Exp(x))
}

// InverseSoftplus returns x such that Softplus(x) == y for y > 0.
func InverseSoftplus(y float64) float64 {
	if y > 30 {
		return y + math.Log(-math.Expm1(-y))
	}
	return math.Log(math.Expm1(y))
}

// Sigmoid computes the logistic function 1 / (1 + exp(-x)) in a numerically stable way.
func Sigmoid(x float64) float64 {
	if x >= 0 {
		return 1.0 / (1.0 + math.Exp(-x))
	}
	z := math.Exp(x)
	return z / (1.0 + z)
}

// LogSigmoid computes log(sigmoid(x)) = -softplus(-x).
func LogSigmoid(x float64) float64 {
	return -Softplus(-x)
}
