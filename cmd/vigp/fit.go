package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/gonuts/commander"
	"github.com/gonuts/flag"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/vigp/core/model"
	"github.com/YuminosukeSato/vigp/kernel"
	"github.com/YuminosukeSato/vigp/optimize"
	"github.com/YuminosukeSato/vigp/pkg/errors"
	"github.com/YuminosukeSato/vigp/pkg/log"
	"github.com/YuminosukeSato/vigp/preprocessing"
	"github.com/YuminosukeSato/vigp/report"
	"github.com/YuminosukeSato/vigp/runlog"
	gp "github.com/YuminosukeSato/vigp/sklearn/gaussian_process"
)

type fitConfig struct {
	table tableFlags
	logs  logFlags

	iters       int
	samples     int
	estimator   string
	solver      string
	lr          float64
	variance    float64
	lengthscale float64
	jitter      float64
	seed        int64
	tol         float64
	standardize bool
	print       int

	save      string
	plot      string
	probaPlot string
	db        string
}

// FitCmd builds the "fit" subcommand.
func FitCmd() *commander.Command {
	cfg := &fitConfig{}
	cmd := &commander.Command{
		Run: func(_ *commander.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()
			return runFit(ctx, cfg)
		},
		UsageLine: "fit -data FILE [options]",
		Short:     "fits a variational GP classifier",
		Long: `
fits a variational GP classifier and prints the loss every -print iterations

	$ vigp fit -data train.txt -iters 5000 -save posterior.json -plot loss.png

`,
		Flag: *flag.NewFlagSet("fit", flag.ExitOnError),
	}
	fs := &cmd.Flag
	cfg.table.register(fs, fitRowLimit)
	cfg.logs.register(fs)
	fs.IntVar(&cfg.iters, "iters", 5000, "maximum optimizer iterations")
	fs.IntVar(&cfg.samples, "samples", 1, "Monte Carlo samples per step")
	fs.StringVar(&cfg.estimator, "estimator", gp.EstimatorReparam, "reparam or analytic")
	fs.StringVar(&cfg.solver, "solver", gp.SolverAdam, "adam or lbfgs")
	fs.Float64Var(&cfg.lr, "lr", optimize.DefaultExponentialDecay().Initial, "initial Adam learning rate")
	fs.Float64Var(&cfg.variance, "variance", 1, "RBF kernel variance")
	fs.Float64Var(&cfg.lengthscale, "lengthscale", 1, "RBF kernel lengthscale")
	fs.Float64Var(&cfg.jitter, "jitter", 1e-6, "diagonal jitter added to K")
	fs.Int64Var(&cfg.seed, "seed", 42, "random seed, negative for a time-based seed")
	fs.Float64Var(&cfg.tol, "tol", 0, "relative tolerance for early stopping (0 disables)")
	fs.BoolVar(&cfg.standardize, "standardize", false, "standardize features before fitting")
	fs.IntVar(&cfg.print, "print", 100, "progress period in iterations (0 silences)")
	fs.StringVar(&cfg.save, "save", "", "write the posterior to FILE (.json, .gob, optionally .xz)")
	fs.StringVar(&cfg.plot, "plot", "", "write the loss trace plot to FILE (.png, .svg, .pdf)")
	fs.StringVar(&cfg.probaPlot, "proba-plot", "", "write the training P(y=1) plot to FILE")
	fs.StringVar(&cfg.db, "db", "", "append the run to a SQLite run log")
	return cmd
}

func runFit(ctx context.Context, cfg *fitConfig) error {
	if err := cfg.logs.setup(); err != nil {
		return err
	}
	logger := log.GetLoggerWithName("cli").With(log.OperationKey, log.OperationFit)

	ds, err := cfg.table.load()
	if err != nil {
		return err
	}
	negative, positive := ds.ClassCounts()
	logger.Info("Data loaded",
		log.DataPathKey, ds.Source,
		log.SamplesKey, ds.NSamples,
		log.FeaturesKey, ds.NFeatures,
		"class.negative", negative,
		"class.positive", positive,
	)

	var X mat.Matrix = ds.X
	var scaler *preprocessing.StandardScaler
	if cfg.standardize {
		scaler = preprocessing.NewStandardScalerDefault()
		if X, err = scaler.FitTransform(ds.X); err != nil {
			return errors.Wrap(err, "standardize features")
		}
	}

	decay := optimize.DefaultExponentialDecay()
	decay.Initial = cfg.lr
	clf := gp.NewVariationalGPClassifier(
		gp.WithKernel(kernel.NewRBF(cfg.variance, cfg.lengthscale)),
		gp.WithJitter(cfg.jitter),
		gp.WithMaxIter(cfg.iters),
		gp.WithNSamples(cfg.samples),
		gp.WithEstimator(cfg.estimator),
		gp.WithSolver(cfg.solver),
		gp.WithLearningRate(decay),
		gp.WithRandomState(cfg.seed),
		gp.WithTol(cfg.tol),
		gp.WithPrintEvery(cfg.print),
	)
	if err := clf.FitContext(ctx, X, ds.Y); err != nil {
		return err
	}

	acc, err := clf.Score(X, ds.Y)
	if err != nil {
		return err
	}
	fmt.Printf("ELBO: %.3f  KL: %.3f  iterations: %d  train accuracy: %.3f\n",
		clf.ELBO(), clf.KL(), clf.NIter(), acc)

	if cfg.save != "" {
		snap, err := clf.Snapshot()
		if err != nil {
			return err
		}
		if scaler != nil {
			snap.FeatureMean = append([]float64(nil), scaler.Mean...)
			snap.FeatureScale = append([]float64(nil), scaler.Scale...)
		}
		if err := model.SaveModel(snap, cfg.save); err != nil {
			return err
		}
		logger.Info("Posterior saved", "path", cfg.save)
	}

	if cfg.plot != "" {
		if err := report.PlotLossTrace(clf.LossHistory(), cfg.plot); err != nil {
			return err
		}
	}
	if cfg.probaPlot != "" {
		proba, err := clf.PredictProba(X)
		if err != nil {
			return err
		}
		if err := report.PlotProbabilities(mat.Col(nil, 1, proba), ds.Labels(), cfg.probaPlot); err != nil {
			return err
		}
	}

	if cfg.db != "" {
		store, err := runlog.Open(cfg.db)
		if err != nil {
			return err
		}
		defer store.Close()
		id, err := store.Record(ctx, runlog.Run{
			DataPath:      ds.Source,
			NSamples:      ds.NSamples,
			NFeatures:     ds.NFeatures,
			Estimator:     cfg.estimator,
			Solver:        cfg.solver,
			Iterations:    clf.NIter(),
			FinalLoss:     -clf.ELBO(),
			TrainAccuracy: acc,
			LossHistory:   clf.LossHistory(),
		})
		if err != nil {
			return err
		}
		logger.Info("Run recorded", "run.id", id, "path", cfg.db)
	}
	return nil
}
