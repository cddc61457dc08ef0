package gaussian_process

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/vigp/pkg/errors"
)

// maxJitterRetries is the number of times the jitter is multiplied by 10
// after a failed Cholesky factorization.
const maxJitterRetries = 5

// minJitter replaces a zero jitter on the first retry.
const minJitter = 1e-10

// gpPrior is the factorized prior covariance K + jitter·I.
type gpPrior struct {
	n       int
	chol    mat.Cholesky
	jitter  float64
	logDet  float64
	invDiag []float64 // diag(K^-1)
}

// newGPPrior factorizes K + jitter·I, growing the jitter tenfold on each
// failure. It returns ErrSingularMatrix when every attempt fails.
func newGPPrior(K mat.Symmetric, jitter float64) (*gpPrior, error) {
	n := K.SymmetricDim()
	A := mat.NewSymDense(n, nil)

	j := jitter
	for attempt := 0; attempt <= maxJitterRetries; attempt++ {
		A.CopySym(K)
		for i := 0; i < n; i++ {
			A.SetSym(i, i, A.At(i, i)+j)
		}

		p := &gpPrior{n: n, jitter: j}
		if p.chol.Factorize(A) {
			p.logDet = p.chol.LogDet()
			var inv mat.SymDense
			if err := p.chol.InverseTo(&inv); err != nil && !isCondition(err) {
				return nil, errors.Wrap(err, "invert kernel matrix")
			}
			p.invDiag = make([]float64, n)
			for i := range p.invDiag {
				p.invDiag[i] = inv.At(i, i)
			}
			return p, nil
		}

		if j == 0 {
			j = minJitter
		} else {
			j *= 10
		}
	}
	return nil, errors.Wrapf(errors.ErrSingularMatrix,
		"kernel matrix is not positive definite after %d jitter increases (last jitter %g)", maxJitterRetries, j/10)
}

// isCondition reports whether err is gonum's ill-conditioning warning. The
// result is still usable in that case.
func isCondition(err error) bool {
	var c mat.Condition
	return errors.As(err, &c)
}

// solve stores K^-1 b into dst. dst and b must not alias.
func (p *gpPrior) solve(dst, b []float64) error {
	out := mat.NewVecDense(p.n, dst)
	if err := p.chol.SolveVecTo(out, mat.NewVecDense(p.n, b)); err != nil && !isCondition(err) {
		return errors.Wrap(err, "solve against kernel matrix")
	}
	return nil
}

// solveMat returns K^-1 B.
func (p *gpPrior) solveMat(B mat.Matrix) (*mat.Dense, error) {
	var out mat.Dense
	if err := p.chol.SolveTo(&out, B); err != nil && !isCondition(err) {
		return nil, errors.Wrap(err, "solve against kernel matrix")
	}
	return &out, nil
}

// kl returns KL(q || p) for q = N(m, diag(s^2)) and p = N(0, K):
//
//	½ [tr(K^-1 S) + mᵀK^-1 m − n + log|K| − Σ log s_i²]
//
// When gradM and gradS are non-nil they receive ∂KL/∂m = K^-1 m and
// ∂KL/∂s_i = (K^-1)_ii s_i − 1/s_i.
func (p *gpPrior) kl(m, s, gradM, gradS []float64) (float64, error) {
	kinvM := make([]float64, p.n)
	if err := p.solve(kinvM, m); err != nil {
		return 0, err
	}

	var trace, quad, logS float64
	for i := 0; i < p.n; i++ {
		trace += p.invDiag[i] * s[i] * s[i]
		quad += m[i] * kinvM[i]
		logS += 2 * math.Log(s[i])
	}
	if gradM != nil {
		copy(gradM, kinvM)
	}
	if gradS != nil {
		for i := range gradS {
			gradS[i] = p.invDiag[i]*s[i] - 1/s[i]
		}
	}
	return 0.5 * (trace + quad - float64(p.n) + p.logDet - logS), nil
}
