// Package gaussian_process implements Gaussian-process binary classification
// fitted by variational inference.
//
// The model places a GP prior with an RBF covariance over one latent value
// per training point and passes each latent value through a Bernoulli
// likelihood with a logistic link:
//
//	f ~ N(0, K),  y_i | f_i ~ Bernoulli(sigmoid(f_i))
//
// The posterior p(f | y) is approximated by a fully factorized Gaussian
//
//	q(f) = Π_i N(f_i; m_i, s_i^2),  s_i = softplus(ρ_i)
//
// whose parameters maximize the evidence lower bound (ELBO). Two stochastic
// estimators are available: "reparam" estimates the whole ELBO from
// reparameterized samples f = m + s⊙ε, while "analytic" uses the closed-form
// KL(q || p) and samples only the expected log-likelihood. Both are minimized
// with Adam. The "lbfgs" solver instead minimizes a deterministic objective
// (closed-form KL plus Gauss–Hermite expected log-likelihood) with
// gonum/optimize.
//
// Example:
//
//	clf := gaussian_process.NewVariationalGPClassifier(
//	    gaussian_process.WithMaxIter(5000),
//	    gaussian_process.WithRandomState(42),
//	)
//	if err := clf.Fit(ds.X, ds.Y); err != nil {
//	    return err
//	}
//	proba, err := clf.PredictProba(Xtest)
package gaussian_process
