package gaussian_process

import (
	"bytes"
	"context"
	"math"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/vigp/core/model"
	"github.com/YuminosukeSato/vigp/dataset"
	"github.com/YuminosukeSato/vigp/optimize"
	"github.com/YuminosukeSato/vigp/pkg/errors"
	"github.com/YuminosukeSato/vigp/pkg/log"
)

const fixture = "../../dataset/testdata/binary_train.txt"

// silenceWarnings captures warnings for the duration of the test.
func silenceWarnings(t *testing.T) *[]error {
	t.Helper()
	var got []error
	errors.SetWarningHandler(func(w error) { got = append(got, w) })
	t.Cleanup(func() { errors.SetWarningHandler(nil) })
	return &got
}

// loadSplit returns the first 25 rows for training and the remaining 15 for testing.
func loadSplit(t *testing.T) (train, test *dataset.Dataset) {
	t.Helper()
	silenceWarnings(t)
	ds, err := dataset.Load(fixture)
	require.NoError(t, err)
	train, test, err = ds.Split(25)
	require.NoError(t, err)
	return train, test
}

func quietClassifier(opts ...Option) *VariationalGPClassifier {
	base := []Option{
		WithPrintEvery(0),
		WithRandomState(42),
		WithLogger(log.NewLogger(&bytes.Buffer{}, log.FormatJSON, log.LevelError)),
	}
	return NewVariationalGPClassifier(append(base, opts...)...)
}

func mean(xs []float64) float64 {
	var s float64
	for _, x := range xs {
		s += x
	}
	return s / float64(len(xs))
}

func TestVariationalGPClassifier_FitPredict(t *testing.T) {
	train, test := loadSplit(t)

	for _, estimator := range []string{EstimatorReparam, EstimatorAnalytic} {
		t.Run(estimator, func(t *testing.T) {
			clf := quietClassifier(WithEstimator(estimator), WithMaxIter(1000))
			require.NoError(t, clf.Fit(train.X, train.Y))
			assert.True(t, clf.IsFitted())

			trainAcc, err := clf.Score(train.X, train.Y)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, trainAcc, 0.9)

			testAcc, err := clf.Score(test.X, test.Y)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, testAcc, 0.85)

			history := clf.LossHistory()
			require.Len(t, history, 1000)
			assert.Equal(t, 1000, clf.NIter())
			assert.Less(t, mean(history[900:]), history[0])

			assert.Less(t, clf.ELBO(), 0.0)
			assert.Greater(t, clf.KL(), 0.0)
			for _, s := range clf.PosteriorScale() {
				assert.Greater(t, s, 0.0)
			}
			assert.Len(t, clf.PosteriorMean(), 25)
		})
	}
}

func TestVariationalGPClassifier_PredictProba(t *testing.T) {
	train, test := loadSplit(t)
	clf := quietClassifier(WithMaxIter(500))
	require.NoError(t, clf.Fit(train.X, train.Y))

	proba, err := clf.PredictProba(test.X)
	require.NoError(t, err)
	r, c := proba.Dims()
	require.Equal(t, 15, r)
	require.Equal(t, 2, c)

	pred, err := clf.Predict(test.X)
	require.NoError(t, err)
	for i := 0; i < r; i++ {
		p0, p1 := proba.At(i, 0), proba.At(i, 1)
		assert.InDelta(t, 1.0, p0+p1, 1e-12)
		assert.True(t, p1 >= 0 && p1 <= 1)
		want := 0.0
		if p1 >= 0.5 {
			want = 1
		}
		assert.Equal(t, want, pred.At(i, 0))
	}
	assert.Equal(t, []int{0, 1}, clf.Classes())
}

func TestVariationalGPClassifier_PredictLatent(t *testing.T) {
	train, _ := loadSplit(t)
	clf := quietClassifier(WithMaxIter(300))
	require.NoError(t, clf.Fit(train.X, train.Y))

	mu, v, err := clf.PredictLatent(train.X)
	require.NoError(t, err)
	require.Equal(t, 25, mu.Len())

	// 訓練点では事後平均は変分平均とほぼ一致する
	means := clf.PosteriorMean()
	for i := 0; i < mu.Len(); i++ {
		assert.InDelta(t, means[i], mu.AtVec(i), 1e-3)
		assert.Greater(t, v.AtVec(i), 0.0)
	}

	// 訓練データから遠い点では事前分布に戻る
	far := mat.NewDense(1, 5, []float64{100, 100, 100, 100, 100})
	mu, v, err = clf.PredictLatent(far)
	require.NoError(t, err)
	assert.InDelta(t, 0, mu.AtVec(0), 1e-9)
	assert.InDelta(t, 1, v.AtVec(0), 1e-9)
}

func TestVariationalGPClassifier_LBFGS(t *testing.T) {
	train, test := loadSplit(t)

	lbfgs := quietClassifier(WithSolver(SolverLBFGS), WithMaxIter(500))
	require.NoError(t, lbfgs.Fit(train.X, train.Y))
	assert.LessOrEqual(t, lbfgs.NIter(), 500)
	assert.NotEmpty(t, lbfgs.LossHistory())

	acc, err := lbfgs.Score(test.X, test.Y)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, acc, 0.85)

	// 決定的な目的関数を直接最適化するので、確率的な解より ELBO が悪くなることはない
	adam := quietClassifier(WithEstimator(EstimatorAnalytic), WithMaxIter(1000))
	require.NoError(t, adam.Fit(train.X, train.Y))
	assert.GreaterOrEqual(t, lbfgs.ELBO(), adam.ELBO()-0.5)
}

func TestVariationalGPClassifier_Reproducible(t *testing.T) {
	train, _ := loadSplit(t)

	a := quietClassifier(WithMaxIter(200), WithNSamples(2))
	b := quietClassifier(WithMaxIter(200), WithNSamples(2))
	require.NoError(t, a.Fit(train.X, train.Y))
	require.NoError(t, b.Fit(train.X, train.Y))
	assert.Equal(t, a.PosteriorMean(), b.PosteriorMean())
	assert.Equal(t, a.LossHistory(), b.LossHistory())

	c := quietClassifier(WithMaxIter(200), WithNSamples(2), WithRandomState(7))
	require.NoError(t, c.Fit(train.X, train.Y))
	assert.NotEqual(t, a.LossHistory(), c.LossHistory())
}

func TestVariationalGPClassifier_Errors(t *testing.T) {
	train, _ := loadSplit(t)

	t.Run("not fitted", func(t *testing.T) {
		clf := quietClassifier()
		_, err := clf.Predict(train.X)
		var nf *errors.NotFittedError
		require.True(t, errors.As(err, &nf))
		assert.Equal(t, "PredictLatent", nf.Method)

		_, err = clf.Snapshot()
		assert.True(t, errors.As(err, &nf))
	})

	t.Run("feature mismatch", func(t *testing.T) {
		clf := quietClassifier(WithMaxIter(10))
		require.NoError(t, clf.Fit(train.X, train.Y))
		_, err := clf.PredictProba(mat.NewDense(2, 3, nil))
		var dim *errors.DimensionError
		require.True(t, errors.As(err, &dim))
		assert.Equal(t, 5, dim.Expected)
		assert.Equal(t, 3, dim.Got)
	})

	t.Run("bad labels", func(t *testing.T) {
		y := mat.NewVecDense(25, nil)
		y.SetVec(3, -1)
		err := quietClassifier(WithMaxIter(10)).Fit(train.X, y)
		var v *errors.ValidationError
		require.True(t, errors.As(err, &v))
		assert.Equal(t, "y", v.ParamName)
	})

	t.Run("label length", func(t *testing.T) {
		err := quietClassifier(WithMaxIter(10)).Fit(train.X, mat.NewVecDense(24, nil))
		var dim *errors.DimensionError
		assert.True(t, errors.As(err, &dim))
	})

	t.Run("non finite input", func(t *testing.T) {
		X := mat.DenseCopyOf(train.X)
		X.Set(4, 1, math.NaN())
		err := quietClassifier(WithMaxIter(10)).Fit(X, train.Y)
		var ni *errors.NumericalInstabilityError
		assert.True(t, errors.As(err, &ni))
	})

	t.Run("diverging optimizer", func(t *testing.T) {
		clf := quietClassifier(WithMaxIter(50), WithLearningRate(optimize.Constant(1e6)))
		err := clf.Fit(train.X, train.Y)
		var ni *errors.NumericalInstabilityError
		require.True(t, errors.As(err, &ni), "%v", err)
		assert.False(t, clf.IsFitted())
	})

	t.Run("nil score inputs", func(t *testing.T) {
		clf := quietClassifier(WithMaxIter(10))
		require.NoError(t, clf.Fit(train.X, train.Y))

		_, err := clf.Score(train.X, nil)
		var ve *errors.ValueError
		require.True(t, errors.As(err, &ve))
		assert.Equal(t, "VariationalGPClassifier.Score", ve.Op)

		_, err = clf.Score(nil, train.Y)
		assert.True(t, errors.As(err, &ve))
	})

	t.Run("empty input", func(t *testing.T) {
		err := quietClassifier().Fit(&mat.Dense{}, &mat.VecDense{})
		assert.True(t, errors.Is(err, errors.ErrEmptyData))
	})

	t.Run("invalid hyperparameters", func(t *testing.T) {
		for _, opt := range []Option{
			WithEstimator("score-function"),
			WithSolver("sgd"),
			WithMaxIter(0),
			WithNSamples(0),
			WithJitter(-1),
			WithTol(-1),
			WithLearningRate(nil),
			WithLearningRate(optimize.Constant(0)),
			WithLearningRate(optimize.Constant(-0.1)),
		} {
			err := quietClassifier(opt).Fit(train.X, train.Y)
			var v *errors.ValidationError
			assert.True(t, errors.As(err, &v), "%v", err)
		}
	})
}

func TestVariationalGPClassifier_DuplicateInputsRaiseJitter(t *testing.T) {
	silenceWarnings(t)
	X := mat.NewDense(4, 1, []float64{0, 0, 1, 1})
	y := mat.NewVecDense(4, []float64{0, 0, 1, 1})

	logger, buf := log.NewTestLogger(log.LevelWarn)
	clf := NewVariationalGPClassifier(WithJitter(0), WithMaxIter(50), WithPrintEvery(0), WithLogger(logger))
	require.NoError(t, clf.Fit(X, y))
	assert.Greater(t, clf.EffectiveJitter(), 0.0)
	assert.True(t, logger.ContainsMessage("Kernel jitter increased"), buf.String())
}

func TestVariationalGPClassifier_ProgressOutput(t *testing.T) {
	train, _ := loadSplit(t)

	var out bytes.Buffer
	clf := quietClassifier(WithMaxIter(250), WithPrintEvery(100), WithProgressWriter(&out))
	require.NoError(t, clf.Fit(train.X, train.Y))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	re := regexp.MustCompile(`^Iteration (100|200|250)/250  Loss: -?\d+\.\d{3}$`)
	for _, line := range lines {
		assert.Regexp(t, re, line)
	}
	assert.True(t, strings.HasPrefix(lines[2], "Iteration 250/250"))
}

func TestVariationalGPClassifier_Callbacks(t *testing.T) {
	train, _ := loadSplit(t)

	t.Run("record and stop", func(t *testing.T) {
		var history []float64
		stopAt10 := func(env *CallbackEnv) error {
			if env.Iteration == 10 {
				env.StopTraining = true
			}
			return nil
		}
		clf := quietClassifier(WithMaxIter(100), WithCallbacks(RecordHistory(&history), stopAt10))
		require.NoError(t, clf.Fit(train.X, train.Y))
		assert.Equal(t, 10, clf.NIter())
		assert.Equal(t, clf.LossHistory(), history)
	})

	t.Run("error aborts", func(t *testing.T) {
		boom := errors.New("boom")
		clf := quietClassifier(WithMaxIter(100), WithCallbacks(func(env *CallbackEnv) error {
			if env.Iteration == 3 {
				return boom
			}
			return nil
		}))
		err := clf.Fit(train.X, train.Y)
		assert.True(t, errors.Is(err, boom))
		assert.False(t, clf.IsFitted())
	})

	t.Run("lbfgs stop", func(t *testing.T) {
		clf := quietClassifier(WithSolver(SolverLBFGS), WithMaxIter(100), WithCallbacks(func(env *CallbackEnv) error {
			env.StopTraining = env.Iteration == 2
			return nil
		}))
		require.NoError(t, clf.Fit(train.X, train.Y))
		assert.Equal(t, 2, clf.NIter())
		assert.True(t, clf.IsFitted())
	})
}

func TestVariationalGPClassifier_Tolerance(t *testing.T) {
	train, _ := loadSplit(t)

	t.Run("converges early", func(t *testing.T) {
		warnings := silenceWarnings(t)
		clf := quietClassifier(WithMaxIter(5000), WithTol(0.5))
		require.NoError(t, clf.Fit(train.X, train.Y))
		assert.Less(t, clf.NIter(), 5000)
		assert.Zero(t, clf.NIter()%tolWindow)
		assert.Empty(t, *warnings)
	})

	t.Run("warns at max_iter", func(t *testing.T) {
		warnings := silenceWarnings(t)
		clf := quietClassifier(WithMaxIter(150), WithTol(1e-12))
		require.NoError(t, clf.Fit(train.X, train.Y))
		assert.Equal(t, 150, clf.NIter())
		require.Len(t, *warnings, 1)
		var cw *errors.ConvergenceWarning
		assert.True(t, errors.As((*warnings)[0], &cw))
	})
}

func TestVariationalGPClassifier_ContextCancel(t *testing.T) {
	train, _ := loadSplit(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, solver := range []string{SolverAdam, SolverLBFGS} {
		clf := quietClassifier(WithSolver(solver), WithMaxIter(100))
		err := clf.FitContext(ctx, train.X, train.Y)
		assert.True(t, errors.Is(err, context.Canceled), "%s: %v", solver, err)
		assert.False(t, clf.IsFitted())
	}
}

func TestVariationalGPClassifier_Logging(t *testing.T) {
	train, _ := loadSplit(t)
	logger, _ := log.NewTestLogger(log.LevelDebug)
	clf := NewVariationalGPClassifier(WithMaxIter(200), WithPrintEvery(100), WithProgressWriter(&bytes.Buffer{}), WithLogger(logger))
	require.NoError(t, clf.Fit(train.X, train.Y))

	assert.True(t, logger.ContainsMessage("Training started"))
	assert.True(t, logger.ContainsMessage("Training completed"))
	assert.True(t, logger.ContainsField(log.SamplesKey, float64(25)))
	assert.True(t, logger.ContainsField(log.EstimatorKey, EstimatorReparam))
	assert.Equal(t, 2, logger.CountMessage("Iteration"))
}

func TestVariationalGPClassifier_Params(t *testing.T) {
	clf := quietClassifier()
	params := clf.GetParams()
	assert.Equal(t, 1.0, params[ParamVariance])
	assert.Equal(t, 5000, params[ParamMaxIter])
	assert.Equal(t, 0.1, params[ParamLearningRate])
	assert.Equal(t, EstimatorReparam, params[ParamEstimator])

	require.NoError(t, clf.SetParams(map[string]interface{}{
		ParamLengthscale:  2.5,
		ParamMaxIter:      float64(300),
		ParamLearningRate: 0.05,
		ParamSolver:       SolverLBFGS,
	}))
	params = clf.GetParams()
	assert.Equal(t, 2.5, params[ParamLengthscale])
	assert.Equal(t, 1.0, params[ParamVariance])
	assert.Equal(t, 300, params[ParamMaxIter])
	assert.Equal(t, 0.05, params[ParamLearningRate])
	assert.Equal(t, SolverLBFGS, params[ParamSolver])

	// 減衰スケジュールは維持される
	_, ok := clf.learningRate.(optimize.ExponentialDecay)
	assert.True(t, ok)

	assert.Error(t, clf.SetParams(map[string]interface{}{"alpha": 1.0}))
	assert.Error(t, clf.SetParams(map[string]interface{}{ParamMaxIter: 2.5}))
	assert.Error(t, clf.SetParams(map[string]interface{}{ParamSolver: 3}))
	assert.Error(t, clf.SetParams(map[string]interface{}{ParamEstimator: "bogus"}))
}

func TestVariationalGPClassifier_SnapshotRestore(t *testing.T) {
	train, test := loadSplit(t)
	clf := quietClassifier(WithMaxIter(300))
	require.NoError(t, clf.Fit(train.X, train.Y))

	want, err := clf.PredictProba(test.X)
	require.NoError(t, err)

	snap, err := clf.Snapshot()
	require.NoError(t, err)
	require.NoError(t, snap.Validate())
	assert.Equal(t, "VariationalGPClassifier", snap.ModelType)
	assert.Len(t, snap.TrainX, 25)

	dir := t.TempDir()
	for _, name := range []string{"model.json", "model.json.xz", "model.gob", "model.gob.xz"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			require.NoError(t, model.SaveModel(snap, path))

			var loaded model.PosteriorSnapshot
			require.NoError(t, model.LoadModel(&loaded, path))

			restored := quietClassifier()
			require.NoError(t, restored.Restore(&loaded))
			assert.True(t, restored.IsFitted())
			assert.Equal(t, clf.NIter(), restored.NIter())
			assert.InDelta(t, clf.ELBO(), restored.ELBO(), 1e-12)
			assert.Equal(t, clf.GetParams()[ParamMaxIter], restored.GetParams()[ParamMaxIter])

			got, err := restored.PredictProba(test.X)
			require.NoError(t, err)
			assert.True(t, mat.EqualApprox(want, got, 1e-9))
		})
	}

	t.Run("wrong model type", func(t *testing.T) {
		other := snap.Clone()
		other.ModelType = "LogisticRegression"
		assert.Error(t, quietClassifier().Restore(other))
	})
}
