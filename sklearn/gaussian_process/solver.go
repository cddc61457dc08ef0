package gaussian_process

import (
	"context"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
	gopt "gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/YuminosukeSato/vigp/optimize"
	"github.com/YuminosukeSato/vigp/pkg/errors"
	"github.com/YuminosukeSato/vigp/pkg/log"
)

const (
	// tolWindow is the iteration spacing at which the smoothed loss is compared.
	tolWindow = 100
	// emaWeight is the weight of the newest loss in the smoothed loss.
	emaWeight = 0.1
)

// errStopTraining aborts gonum/optimize when a callback requests a stop.
var errStopTraining = errors.New("stop training requested by callback")

// runAdam minimizes the stochastic objective in place and returns the number
// of iterations run and whether the tolerance (or a callback) ended the run.
func (c *VariationalGPClassifier) runAdam(ctx context.Context, obj *objective, params []float64, logger log.Logger) (int, bool, error) {
	adam := optimize.NewAdam(optimize.WithSchedule(c.learningRate))
	if err := adam.Validate(); err != nil {
		return 0, false, err
	}

	n := obj.n
	grad := make([]float64, len(params))
	eps := make([][]float64, c.nSamples)
	for s := range eps {
		eps[s] = make([]float64, n)
	}
	normal := distuv.Normal{Mu: 0, Sigma: 1, Src: c.newSource()}

	callbacks := c.activeCallbacks()
	debug := logger.Enabled(ctx, log.LevelDebug)
	start := time.Now()

	var ema, emaPrev float64
	for it := 1; it <= c.maxIter; it++ {
		if err := ctx.Err(); err != nil {
			return it - 1, false, errors.Wrapf(err, "fit cancelled at iteration %d", it)
		}

		for s := range eps {
			for i := range eps[s] {
				eps[s][i] = normal.Rand()
			}
		}
		loss, err := obj.estimate(c.estimator, params, eps, grad)
		if err != nil {
			return it, false, err
		}
		if err := errors.CheckScalar("elbo", loss, it); err != nil {
			return it, false, err
		}
		if err := errors.CheckNumericalStability("gradient", grad, it); err != nil {
			return it, false, err
		}

		gradNorm := optimize.ClipNorm(grad, c.maxGradNorm)
		lr := adam.Step(params, grad)
		c.lossHistory = append(c.lossHistory, loss)

		env := &CallbackEnv{
			Iteration:    it,
			MaxIter:      c.maxIter,
			Loss:         loss,
			LearningRate: lr,
			GradNorm:     gradNorm,
			Elapsed:      time.Since(start),
		}
		for _, cb := range callbacks {
			if err := cb(env); err != nil {
				return it, false, errors.Wrapf(err, "callback at iteration %d", it)
			}
		}
		if debug && c.printEvery > 0 && it%c.printEvery == 0 {
			logger.Debug("Iteration",
				log.IterationKey, it,
				log.LossKey, loss,
				log.GradNormKey, gradNorm,
				log.LearningRateKey, lr,
			)
		}
		if env.StopTraining {
			return it, true, nil
		}

		if it == 1 {
			ema = loss
		} else {
			ema = (1-emaWeight)*ema + emaWeight*loss
		}
		if c.tol > 0 && it%tolWindow == 0 {
			if it > tolWindow && math.Abs(ema-emaPrev) <= c.tol*math.Max(math.Abs(emaPrev), 1) {
				return it, true, nil
			}
			emaPrev = ema
		}
	}
	return c.maxIter, false, nil
}

// runLBFGS minimizes the deterministic objective with gonum's L-BFGS.
func (c *VariationalGPClassifier) runLBFGS(ctx context.Context, obj *objective, params []float64, logger log.Logger) (int, bool, error) {
	// Func/Grad はエラーを返せないので +Inf / NaN で失敗を伝え、evalErr に残す
	var evalErr error
	problem := gopt.Problem{
		Func: func(x []float64) float64 {
			f, err := obj.deterministic(x, nil)
			if err != nil {
				evalErr = err
				return math.Inf(1)
			}
			return f
		},
		Grad: func(grad, x []float64) {
			if _, err := obj.deterministic(x, grad); err != nil {
				evalErr = err
				for i := range grad {
					grad[i] = math.NaN()
				}
			}
		},
	}

	rec := &progressRecorder{
		ctx:       ctx,
		c:         c,
		callbacks: c.activeCallbacks(),
		logger:    logger,
		debug:     logger.Enabled(ctx, log.LevelDebug),
	}
	settings := &gopt.Settings{
		MajorIterations:   c.maxIter,
		GradientThreshold: 1e-6,
		Recorder:          rec,
	}
	if c.tol > 0 {
		settings.Converger = &gopt.FunctionConverge{Relative: c.tol, Iterations: 10}
	}

	result, err := gopt.Minimize(problem, params, settings, &gopt.LBFGS{})
	if evalErr != nil {
		return rec.iter, false, evalErr
	}
	if rec.err != nil {
		return rec.iter, false, rec.err
	}
	if errors.Is(err, errStopTraining) {
		copy(params, rec.lastX)
		return rec.iter, true, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return rec.iter, false, errors.Wrapf(ctxErr, "fit cancelled at iteration %d", rec.iter)
	}
	if result == nil {
		return rec.iter, false, errors.Wrap(err, "lbfgs")
	}
	if err != nil {
		if math.IsNaN(result.F) || math.IsInf(result.F, 0) {
			return rec.iter, false, errors.Wrap(err, "lbfgs")
		}
		// ラインサーチ失敗などは最良点を採用して警告にとどめる
		errors.Warn(errors.NewConvergenceWarning(modelName+"/lbfgs", result.MajorIterations, err.Error()))
	}
	if err := errors.CheckNumericalStability("lbfgs solution", result.X, result.MajorIterations); err != nil {
		return rec.iter, false, err
	}

	copy(params, result.X)
	return result.MajorIterations, result.Status != gopt.IterationLimit, nil
}

// progressRecorder adapts gonum/optimize major iterations to the callback
// and loss-history machinery of the Adam loop.
type progressRecorder struct {
	ctx       context.Context
	c         *VariationalGPClassifier
	callbacks []Callback
	logger    log.Logger
	debug     bool

	start time.Time
	iter  int
	lastX []float64
	err   error // callback failure
}

func (r *progressRecorder) Init() error {
	r.start = time.Now()
	return nil
}

func (r *progressRecorder) Record(loc *gopt.Location, op gopt.Operation, _ *gopt.Stats) error {
	if op != gopt.MajorIteration {
		return nil
	}
	if err := r.ctx.Err(); err != nil {
		return err
	}
	r.iter++
	r.lastX = append(r.lastX[:0], loc.X...)
	r.c.lossHistory = append(r.c.lossHistory, loc.F)

	gradNorm := floats.Norm(loc.Gradient, 2)

	env := &CallbackEnv{
		Iteration: r.iter,
		MaxIter:   r.c.maxIter,
		Loss:      loc.F,
		GradNorm:  gradNorm,
		Elapsed:   time.Since(r.start),
	}
	for _, cb := range r.callbacks {
		if err := cb(env); err != nil {
			r.err = errors.Wrapf(err, "callback at iteration %d", r.iter)
			return r.err
		}
	}
	if r.debug {
		r.logger.Debug("Iteration", log.IterationKey, r.iter, log.LossKey, loc.F, log.GradNormKey, gradNorm)
	}
	if env.StopTraining {
		return errStopTraining
	}
	return nil
}
