package gaussian_process

import (
	"context"
	"io"
	"math"
	"math/rand/v2"
	"os"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/vigp/core/model"
	"github.com/YuminosukeSato/vigp/kernel"
	"github.com/YuminosukeSato/vigp/metrics"
	"github.com/YuminosukeSato/vigp/optimize"
	"github.com/YuminosukeSato/vigp/pkg/errors"
	"github.com/YuminosukeSato/vigp/pkg/log"
)

const modelName = "VariationalGPClassifier"

// Solvers.
const (
	SolverAdam  = "adam"
	SolverLBFGS = "lbfgs"
)

var (
	_ model.Classifier      = (*VariationalGPClassifier)(nil)
	_ model.ContextFitter   = (*VariationalGPClassifier)(nil)
	_ model.ParameterGetter = (*VariationalGPClassifier)(nil)
	_ model.ParameterSetter = (*VariationalGPClassifier)(nil)
	_ model.Snapshotter     = (*VariationalGPClassifier)(nil)
)

// VariationalGPClassifier is a GP binary classifier whose latent posterior is
// approximated by a factorized Gaussian fitted with variational inference.
type VariationalGPClassifier struct {
	state *model.StateManager

	// Hyperparameters
	kernel       *kernel.RBF
	jitter       float64
	maxIter      int
	nSamples     int
	estimator    string
	solver       string
	learningRate optimize.Schedule
	randomState  int64 // 負の値なら毎回ランダム
	tol          float64
	printEvery   int
	maxGradNorm  float64
	callbacks    []Callback
	progress     io.Writer
	logger       log.Logger

	// Fitted state
	trainX      *mat.Dense
	prior       *gpPrior
	means       []float64
	scales      []float64
	lossHistory []float64
	nIter       int
	elbo        float64
	kl          float64
}

// Option is a functional option for VariationalGPClassifier.
type Option func(*VariationalGPClassifier)

// NewVariationalGPClassifier creates a classifier with a unit RBF kernel,
// jitter 1e-6, 5000 Adam iterations at a learning rate decaying from 0.1 and
// progress printed every 100 iterations.
func NewVariationalGPClassifier(opts ...Option) *VariationalGPClassifier {
	c := &VariationalGPClassifier{
		state:        model.NewStateManager(),
		kernel:       kernel.DefaultRBF(),
		jitter:       1e-6,
		maxIter:      5000,
		nSamples:     1,
		estimator:    EstimatorReparam,
		solver:       SolverAdam,
		learningRate: optimize.DefaultExponentialDecay(),
		randomState:  -1,
		printEvery:   100,
		progress:     os.Stdout,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = log.GetLoggerWithName("gaussian_process").With(log.ModelNameKey, modelName)
	}
	return c
}

// WithKernel sets the RBF covariance.
func WithKernel(k *kernel.RBF) Option {
	return func(c *VariationalGPClassifier) { c.kernel = k }
}

// WithJitter sets the initial diagonal jitter added to K.
func WithJitter(jitter float64) Option {
	return func(c *VariationalGPClassifier) { c.jitter = jitter }
}

// WithMaxIter sets the number of optimizer iterations.
func WithMaxIter(n int) Option {
	return func(c *VariationalGPClassifier) { c.maxIter = n }
}

// WithNSamples sets the Monte Carlo samples drawn per iteration.
func WithNSamples(n int) Option {
	return func(c *VariationalGPClassifier) { c.nSamples = n }
}

// WithEstimator selects "reparam" or "analytic".
func WithEstimator(name string) Option {
	return func(c *VariationalGPClassifier) { c.estimator = name }
}

// WithSolver selects "adam" or "lbfgs".
func WithSolver(name string) Option {
	return func(c *VariationalGPClassifier) { c.solver = name }
}

// WithLearningRate sets the Adam learning-rate schedule.
func WithLearningRate(s optimize.Schedule) Option {
	return func(c *VariationalGPClassifier) { c.learningRate = s }
}

// WithRandomState seeds the noise generator. A negative seed draws a fresh one per fit.
func WithRandomState(seed int64) Option {
	return func(c *VariationalGPClassifier) { c.randomState = seed }
}

// WithTol enables early stopping on the relative change of the smoothed loss
// over 100 iterations. 0 disables it.
func WithTol(tol float64) Option {
	return func(c *VariationalGPClassifier) { c.tol = tol }
}

// WithPrintEvery sets the progress period. 0 silences progress output.
func WithPrintEvery(n int) Option {
	return func(c *VariationalGPClassifier) { c.printEvery = n }
}

// WithProgressWriter sets where progress lines are written (stdout by default).
func WithProgressWriter(w io.Writer) Option {
	return func(c *VariationalGPClassifier) { c.progress = w }
}

// WithGradClip clips the gradient L2 norm before each Adam step. 0 disables it.
func WithGradClip(maxNorm float64) Option {
	return func(c *VariationalGPClassifier) { c.maxGradNorm = maxNorm }
}

// WithCallbacks appends training callbacks.
func WithCallbacks(cbs ...Callback) Option {
	return func(c *VariationalGPClassifier) { c.callbacks = append(c.callbacks, cbs...) }
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(c *VariationalGPClassifier) { c.logger = l }
}

func (c *VariationalGPClassifier) validateParams() error {
	if c.kernel == nil {
		return errors.NewValidationError("kernel", "is required", nil)
	}
	if err := c.kernel.Validate(); err != nil {
		return err
	}
	if c.jitter < 0 || math.IsNaN(c.jitter) || math.IsInf(c.jitter, 0) {
		return errors.NewValidationError("jitter", "must be non-negative and finite", c.jitter)
	}
	if c.maxIter < 1 {
		return errors.NewValidationError("max_iter", "must be at least 1", c.maxIter)
	}
	if c.nSamples < 1 {
		return errors.NewValidationError("n_samples", "must be at least 1", c.nSamples)
	}
	if c.estimator != EstimatorReparam && c.estimator != EstimatorAnalytic {
		return errors.NewValidationError("estimator", "must be reparam or analytic", c.estimator)
	}
	if c.solver != SolverAdam && c.solver != SolverLBFGS {
		return errors.NewValidationError("solver", "must be adam or lbfgs", c.solver)
	}
	if c.learningRate == nil {
		return errors.NewValidationError("learning_rate", "schedule is required", nil)
	}
	if c.tol < 0 {
		return errors.NewValidationError("tol", "must be non-negative", c.tol)
	}
	if c.printEvery < 0 {
		return errors.NewValidationError("print_every", "must be non-negative", c.printEvery)
	}
	return nil
}

// Fit fits the variational posterior to X (n × d) and labels y in {0, 1}.
func (c *VariationalGPClassifier) Fit(X, y mat.Matrix) error {
	return c.FitContext(context.Background(), X, y)
}

// FitContext is Fit with cancellation. The context is checked once per iteration.
func (c *VariationalGPClassifier) FitContext(ctx context.Context, X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, modelName+".Fit")

	if err := c.validateParams(); err != nil {
		return err
	}
	labels, err := c.validateInput(X, y)
	if err != nil {
		return err
	}
	n, d := X.Dims()

	c.state.Reset()
	logger := c.logger.With(log.OperationKey, log.OperationFit, log.PhaseKey, log.PhaseTraining)
	logger.Info("Training started",
		log.SamplesKey, n,
		log.FeaturesKey, d,
		log.EstimatorKey, c.estimator,
		log.SolverKey, c.solver,
		log.JitterKey, c.jitter,
		log.RandomSeedKey, c.randomState,
	)
	start := time.Now()

	trainX := mat.DenseCopyOf(X)
	prior, err := newGPPrior(c.kernel.Gram(trainX), c.jitter)
	if err != nil {
		logger.Error("Kernel factorization failed", err)
		return err
	}
	if prior.jitter != c.jitter {
		logger.Warn("Kernel jitter increased to factorize K", log.JitterKey, prior.jitter)
	}

	obj := newObjective(prior, labels)
	// m = 0, ρ = 0 (s = log 2)
	params := make([]float64, 2*n)

	c.lossHistory = c.lossHistory[:0]
	var (
		nIter     int
		converged bool
	)
	switch c.solver {
	case SolverLBFGS:
		nIter, converged, err = c.runLBFGS(ctx, obj, params, logger)
	default:
		nIter, converged, err = c.runAdam(ctx, obj, params, logger)
	}
	if err != nil {
		logger.Error("Training failed", err, log.IterationKey, nIter)
		return err
	}
	if c.tol > 0 && !converged {
		errors.Warn(errors.NewConvergenceWarning(modelName, nIter,
			"the smoothed loss did not settle within tol; consider increasing max_iter"))
	}

	m, _, s := obj.unpack(params)
	elbo, kl, err := finalELBO(obj, params)
	if err != nil {
		return err
	}

	c.trainX = trainX
	c.prior = prior
	c.means = append([]float64(nil), m...)
	c.scales = s
	c.nIter = nIter
	c.elbo = elbo
	c.kl = kl
	c.state.SetFitted(d, n)

	logger.Info("Training completed",
		log.IterationKey, nIter,
		log.LossKey, c.lastLoss(),
		log.KLKey, kl,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

// finalELBO evaluates the noise-free objective at params.
func finalELBO(obj *objective, params []float64) (elbo, kl float64, err error) {
	m, _, s := obj.unpack(params)
	kl, err = obj.prior.kl(m, s, nil, nil)
	if err != nil {
		return 0, 0, err
	}
	return obj.expectedLogLik(m, s, nil, nil) - kl, kl, nil
}

// validateInput checks shapes, finiteness and labels and returns y as a slice.
func (c *VariationalGPClassifier) validateInput(X, y mat.Matrix) ([]float64, error) {
	if X == nil || y == nil {
		return nil, errors.NewValueError(modelName+".Fit", "X and y are required")
	}
	n, d := X.Dims()
	if n == 0 || d == 0 {
		return nil, errors.WithStack(errors.ErrEmptyData)
	}
	yRows, yCols := y.Dims()
	if yCols != 1 {
		return nil, errors.NewDimensionError(modelName+".Fit", 1, yCols, 1)
	}
	if yRows != n {
		return nil, errors.NewDimensionError(modelName+".Fit", n, yRows, 0)
	}

	for i := 0; i < n; i++ {
		if err := errors.CheckNumericalStability("input X", mat.Row(nil, i, X), 0); err != nil {
			return nil, errors.Wrapf(err, "row %d", i)
		}
	}

	labels := make([]float64, n)
	for i := range labels {
		v := y.At(i, 0)
		if v != 0 && v != 1 {
			return nil, errors.NewValidationError("y", "labels must be 0 or 1", v)
		}
		labels[i] = v
	}
	return labels, nil
}

func (c *VariationalGPClassifier) newSource() rand.Source {
	seed := uint64(c.randomState)
	if c.randomState < 0 {
		seed = rand.Uint64()
	}
	return rand.NewPCG(seed, seed)
}

// activeCallbacks returns the user callbacks preceded by the progress printer.
func (c *VariationalGPClassifier) activeCallbacks() []Callback {
	cbs := make([]Callback, 0, len(c.callbacks)+1)
	if c.printEvery > 0 && c.progress != nil {
		cbs = append(cbs, PrintProgress(c.progress, c.printEvery))
	}
	return append(cbs, c.callbacks...)
}

func (c *VariationalGPClassifier) lastLoss() float64 {
	if len(c.lossHistory) == 0 {
		return math.NaN()
	}
	return c.lossHistory[len(c.lossHistory)-1]
}

// PredictLatent returns the mean and variance of the latent function at the
// rows of X under the approximate posterior:
//
//	μ* = k*ᵀ K^-1 m
//	v* = k** − k*ᵀ K^-1 k* + Σ_i (K^-1 k*)_i² s_i²
func (c *VariationalGPClassifier) PredictLatent(X mat.Matrix) (mean, variance *mat.VecDense, err error) {
	defer errors.Recover(&err, modelName+".PredictLatent")

	if err := c.state.RequireFitted(modelName, "PredictLatent"); err != nil {
		return nil, nil, err
	}
	nTest, d := X.Dims()
	if err := c.state.RequireFeatures(modelName+".PredictLatent", d); err != nil {
		return nil, nil, err
	}

	Kx := c.kernel.Cross(c.trainX, X) // n × nTest
	A, err := c.prior.solveMat(Kx)
	if err != nil {
		return nil, nil, err
	}
	kss := c.kernel.Diag(X)

	n := len(c.means)
	mean = mat.NewVecDense(nTest, nil)
	variance = mat.NewVecDense(nTest, nil)
	colK := make([]float64, n)
	colA := make([]float64, n)
	for j := 0; j < nTest; j++ {
		mat.Col(colK, j, Kx)
		mat.Col(colA, j, A)
		var explained, extra float64
		for i := 0; i < n; i++ {
			explained += colK[i] * colA[i]
			extra += colA[i] * colA[i] * c.scales[i] * c.scales[i]
		}
		mean.SetVec(j, floats.Dot(colA, c.means))
		variance.SetVec(j, math.Max(kss[j]-explained, 0)+extra)
	}
	return mean, variance, nil
}

// PredictProba returns an n × 2 matrix of [P(y=0), P(y=1)] using the probit
// approximation P(y=1) ≈ σ(μ* / √(1 + π v* / 8)).
func (c *VariationalGPClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	mean, variance, err := c.PredictLatent(X)
	if err != nil {
		return nil, err
	}
	n := mean.Len()
	proba := mat.NewDense(n, 2, nil)
	for i := 0; i < n; i++ {
		kappa := 1 / math.Sqrt(1+math.Pi*variance.AtVec(i)/8)
		p := errors.Sigmoid(kappa * mean.AtVec(i))
		proba.Set(i, 0, 1-p)
		proba.Set(i, 1, p)
	}
	return proba, nil
}

// Predict returns labels in {0, 1}, thresholding P(y=1) at 0.5.
func (c *VariationalGPClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := c.PredictProba(X)
	if err != nil {
		return nil, err
	}
	n, _ := proba.Dims()
	labels := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		if proba.At(i, 1) >= 0.5 {
			labels.SetVec(i, 1)
		}
	}
	return labels, nil
}

// Score returns the accuracy of Predict(X) against y.
func (c *VariationalGPClassifier) Score(X, y mat.Matrix) (float64, error) {
	if X == nil || y == nil {
		return 0, errors.NewValueError(modelName+".Score", "X and y are required")
	}
	pred, err := c.Predict(X)
	if err != nil {
		return 0, err
	}
	n, _ := pred.Dims()
	yRows, yCols := y.Dims()
	if yRows != n || yCols != 1 {
		return 0, errors.NewDimensionError(modelName+".Score", n, yRows, 0)
	}
	acc, err := metrics.Accuracy(mat.NewVecDense(n, mat.Col(nil, 0, y)), mat.NewVecDense(n, mat.Col(nil, 0, pred)))
	if err != nil {
		return 0, err
	}
	c.logger.Debug("Scored", log.OperationKey, log.OperationScore, log.SamplesKey, n, log.AccuracyKey, acc)
	return acc, nil
}

// Classes returns the labels in PredictProba column order.
func (c *VariationalGPClassifier) Classes() []int {
	return []int{0, 1}
}

// IsFitted reports whether Fit or Restore has completed.
func (c *VariationalGPClassifier) IsFitted() bool {
	return c.state.IsFitted()
}

// PosteriorMean returns a copy of the variational means m.
func (c *VariationalGPClassifier) PosteriorMean() []float64 {
	return append([]float64(nil), c.means...)
}

// PosteriorScale returns a copy of the variational standard deviations s.
func (c *VariationalGPClassifier) PosteriorScale() []float64 {
	return append([]float64(nil), c.scales...)
}

// LossHistory returns the per-iteration −ELBO estimates of the last fit.
func (c *VariationalGPClassifier) LossHistory() []float64 {
	return append([]float64(nil), c.lossHistory...)
}

// NIter returns the number of iterations run by the last fit.
func (c *VariationalGPClassifier) NIter() int { return c.nIter }

// ELBO returns the evidence lower bound at the fitted parameters, with the
// expected log-likelihood evaluated by Gauss–Hermite quadrature.
func (c *VariationalGPClassifier) ELBO() float64 { return c.elbo }

// KL returns KL(q || p) at the fitted parameters.
func (c *VariationalGPClassifier) KL() float64 { return c.kl }

// EffectiveJitter returns the jitter used to factorize K, which may exceed the
// configured value.
func (c *VariationalGPClassifier) EffectiveJitter() float64 {
	if c.prior == nil {
		return c.jitter
	}
	return c.prior.jitter
}
