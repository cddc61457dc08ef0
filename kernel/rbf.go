// Package kernel provides covariance functions for Gaussian-process models.
package kernel

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/vigp/core/parallel"
	"github.com/YuminosukeSato/vigp/pkg/errors"
)

var _ Kernel = (*RBF)(nil)

// parallelRows is the row count above which Gram and Cross fill rows concurrently.
const parallelRows = 64

// Kernel is a positive semi-definite covariance function over feature vectors.
type Kernel interface {
	// Cov returns k(a, b). a and b must have the same length.
	Cov(a, b []float64) float64
	// Gram returns the symmetric matrix K_ij = k(x_i, x_j) over the rows of X.
	Gram(X mat.Matrix) *mat.SymDense
	// Cross returns K_ij = k(a_i, b_j) over the rows of A and B.
	Cross(A, B mat.Matrix) *mat.Dense
	// Diag returns k(x_i, x_i) for each row of X.
	Diag(X mat.Matrix) []float64
}

// RBF is the radial basis function (squared exponential) kernel
//
//	k(a, b) = Variance * exp(-||a - b||^2 / (2 * Lengthscale^2))
type RBF struct {
	Variance    float64
	Lengthscale float64
}

// NewRBF returns an RBF kernel with the given variance and lengthscale.
func NewRBF(variance, lengthscale float64) *RBF {
	return &RBF{Variance: variance, Lengthscale: lengthscale}
}

// DefaultRBF returns the unit RBF kernel (variance 1, lengthscale 1).
func DefaultRBF() *RBF {
	return NewRBF(1, 1)
}

// Validate checks that both hyperparameters are positive and finite.
func (k *RBF) Validate() error {
	if !(k.Variance > 0) || math.IsInf(k.Variance, 0) {
		return errors.NewValidationError("variance", "must be positive and finite", k.Variance)
	}
	if !(k.Lengthscale > 0) || math.IsInf(k.Lengthscale, 0) {
		return errors.NewValidationError("lengthscale", "must be positive and finite", k.Lengthscale)
	}
	return nil
}

// Cov implements Kernel.
func (k *RBF) Cov(a, b []float64) float64 {
	if len(a) != len(b) {
		panic("kernel: input vectors must have the same length")
	}
	var sq float64
	for i := range a {
		d := a[i] - b[i]
		sq += d * d
	}
	return k.Variance * math.Exp(-sq/(2*k.Lengthscale*k.Lengthscale))
}

// Gram implements Kernel. Only the upper triangle is computed.
func (k *RBF) Gram(X mat.Matrix) *mat.SymDense {
	rows := Rows(X)
	n := len(rows)
	K := mat.NewSymDense(n, nil)
	parallel.ParallelizeWithThreshold(n, parallelRows, func(start, end int) {
		for i := start; i < end; i++ {
			K.SetSym(i, i, k.Variance)
			for j := i + 1; j < n; j++ {
				K.SetSym(i, j, k.Cov(rows[i], rows[j]))
			}
		}
	})
	return K
}

// Cross implements Kernel.
func (k *RBF) Cross(A, B mat.Matrix) *mat.Dense {
	a := Rows(A)
	b := Rows(B)
	K := mat.NewDense(len(a), len(b), nil)
	parallel.ParallelizeWithThreshold(len(a), parallelRows, func(start, end int) {
		for i := start; i < end; i++ {
			for j := range b {
				K.Set(i, j, k.Cov(a[i], b[j]))
			}
		}
	})
	return K
}

// Diag implements Kernel.
func (k *RBF) Diag(X mat.Matrix) []float64 {
	n, _ := X.Dims()
	d := make([]float64, n)
	for i := range d {
		d[i] = k.Variance
	}
	return d
}

// Rows copies the rows of X into slices.
func Rows(X mat.Matrix) [][]float64 {
	r, c := X.Dims()
	out := make([][]float64, r)
	for i := 0; i < r; i++ {
		row := make([]float64, c)
		mat.Row(row, i, X)
		out[i] = row
	}
	return out
}
