package gaussian_process

import (
	"math"

	"gonum.org/v1/gonum/integrate/quad"

	"github.com/YuminosukeSato/vigp/pkg/errors"
)

// ELBO estimators.
const (
	EstimatorReparam  = "reparam"
	EstimatorAnalytic = "analytic"
)

// hermitePoints is the Gauss–Hermite order used by the deterministic objective.
const hermitePoints = 32

var log2Pi = math.Log(2 * math.Pi)

// objective evaluates −ELBO and its gradient with respect to the packed
// variational parameters [m; ρ].
type objective struct {
	prior *gpPrior
	y     []float64
	n     int

	// Gauss–Hermite nodes and weights for ∫ e^{-x²} g(x) dx.
	ghX, ghW []float64
}

func newObjective(prior *gpPrior, y []float64) *objective {
	o := &objective{prior: prior, y: y, n: len(y)}
	o.ghX = make([]float64, hermitePoints)
	o.ghW = make([]float64, hermitePoints)
	quad.Hermite{}.FixedLocations(o.ghX, o.ghW, math.Inf(-1), math.Inf(1))
	return o
}

// unpack splits params into m and ρ and returns s = softplus(ρ).
func (o *objective) unpack(params []float64) (m, rho, s []float64) {
	m, rho = params[:o.n], params[o.n:2*o.n]
	s = make([]float64, o.n)
	for i, r := range rho {
		s[i] = errors.Softplus(r)
	}
	return m, rho, s
}

// logLik is log p(y | f) for the Bernoulli-logit likelihood.
func logLik(y, f float64) float64 {
	return y*f - errors.Softplus(f)
}

// estimate dispatches to the stochastic estimator named by kind. eps holds
// one standard-normal draw per sample and data point.
func (o *objective) estimate(kind string, params []float64, eps [][]float64, grad []float64) (float64, error) {
	switch kind {
	case EstimatorAnalytic:
		loss, _, err := o.analytic(params, eps, grad)
		return loss, err
	default:
		return o.reparam(params, eps, grad)
	}
}

// reparam estimates −ELBO as the sample mean of
// −[log p(y|f) + log p(f) − log q(f)] with f = m + s⊙ε.
//
// For each sample g_f = y − σ(f) − K^-1 f gives ∂ELBO/∂m = g_f and
// ∂ELBO/∂s = g_f⊙ε + 1/s.
func (o *objective) reparam(params []float64, eps [][]float64, grad []float64) (float64, error) {
	n := o.n
	m, rho, s := o.unpack(params)
	f := make([]float64, n)
	kinvF := make([]float64, n)
	gm := make([]float64, n)
	gs := make([]float64, n)

	var logS float64
	for _, v := range s {
		logS += math.Log(v)
	}

	var elbo float64
	for _, e := range eps {
		for i := range f {
			f[i] = m[i] + s[i]*e[i]
		}
		if err := o.prior.solve(kinvF, f); err != nil {
			return 0, err
		}

		var ll, fKf, eps2 float64
		for i := range f {
			ll += logLik(o.y[i], f[i])
			fKf += f[i] * kinvF[i]
			eps2 += e[i] * e[i]

			g := o.y[i] - errors.Sigmoid(f[i]) - kinvF[i]
			gm[i] += g
			gs[i] += g * e[i]
		}
		logPrior := -0.5*fKf - 0.5*o.prior.logDet - 0.5*float64(n)*log2Pi
		logQ := -0.5*eps2 - logS - 0.5*float64(n)*log2Pi
		elbo += ll + logPrior - logQ
	}

	S := float64(len(eps))
	if grad != nil {
		for i := 0; i < n; i++ {
			grad[i] = -gm[i] / S
			grad[n+i] = -(gs[i]/S + 1/s[i]) * errors.Sigmoid(rho[i])
		}
	}
	return -elbo / S, nil
}

// analytic estimates −ELBO = KL(q||p) − E_q[log p(y|f)] with the KL in
// closed form and the expectation sampled. The KL term is returned separately.
func (o *objective) analytic(params []float64, eps [][]float64, grad []float64) (loss, kl float64, err error) {
	n := o.n
	m, rho, s := o.unpack(params)

	var klGradM, klGradS []float64
	if grad != nil {
		klGradM = make([]float64, n)
		klGradS = make([]float64, n)
	}
	kl, err = o.prior.kl(m, s, klGradM, klGradS)
	if err != nil {
		return 0, 0, err
	}

	gm := make([]float64, n)
	gs := make([]float64, n)
	var ell float64
	for _, e := range eps {
		for i := 0; i < n; i++ {
			f := m[i] + s[i]*e[i]
			ell += logLik(o.y[i], f)
			g := o.y[i] - errors.Sigmoid(f)
			gm[i] += g
			gs[i] += g * e[i]
		}
	}

	S := float64(len(eps))
	if grad != nil {
		for i := 0; i < n; i++ {
			grad[i] = klGradM[i] - gm[i]/S
			grad[n+i] = (klGradS[i] - gs[i]/S) * errors.Sigmoid(rho[i])
		}
	}
	return kl - ell/S, kl, nil
}

// expectedLogLik computes E_q[log p(y_i|f_i)] by Gauss–Hermite quadrature:
//
//	E ≈ 1/√π Σ_k w_k log p(y_i | m_i + √2 s_i x_k)
//
// dm and ds, when non-nil, receive the derivatives with respect to m and s.
func (o *objective) expectedLogLik(m, s, dm, ds []float64) float64 {
	var total float64
	for i := 0; i < o.n; i++ {
		var e, gM, gS float64
		for k, x := range o.ghX {
			f := m[i] + math.Sqrt2*s[i]*x
			w := o.ghW[k]
			e += w * logLik(o.y[i], f)
			g := o.y[i] - errors.Sigmoid(f)
			gM += w * g
			gS += w * g * math.Sqrt2 * x
		}
		total += e / math.SqrtPi
		if dm != nil {
			dm[i] = gM / math.SqrtPi
			ds[i] = gS / math.SqrtPi
		}
	}
	return total
}

// deterministic returns −ELBO with closed-form KL and quadrature for the
// expected log-likelihood. grad may be nil.
func (o *objective) deterministic(params []float64, grad []float64) (float64, error) {
	n := o.n
	m, rho, s := o.unpack(params)

	var klGradM, klGradS, dm, ds []float64
	if grad != nil {
		klGradM = make([]float64, n)
		klGradS = make([]float64, n)
		dm = make([]float64, n)
		ds = make([]float64, n)
	}
	kl, err := o.prior.kl(m, s, klGradM, klGradS)
	if err != nil {
		return 0, err
	}
	ell := o.expectedLogLik(m, s, dm, ds)

	if grad != nil {
		for i := 0; i < n; i++ {
			grad[i] = klGradM[i] - dm[i]
			grad[n+i] = (klGradS[i] - ds[i]) * errors.Sigmoid(rho[i])
		}
	}
	return kl - ell, nil
}
