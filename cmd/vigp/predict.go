package main

import (
	"fmt"

	"github.com/gonuts/commander"
	"github.com/gonuts/flag"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/vigp/core/model"
	"github.com/YuminosukeSato/vigp/metrics"
	"github.com/YuminosukeSato/vigp/pkg/errors"
	"github.com/YuminosukeSato/vigp/preprocessing"
	gp "github.com/YuminosukeSato/vigp/sklearn/gaussian_process"
)

type predictConfig struct {
	table tableFlags
	logs  logFlags
	model string
}

// PredictCmd builds the "predict" subcommand.
func PredictCmd() *commander.Command {
	cfg := &predictConfig{}
	cmd := &commander.Command{
		Run: func(_ *commander.Command, _ []string) error {
			return runPredict(cfg)
		},
		UsageLine: "predict -model FILE -data FILE [options]",
		Short:     "prints P(y=1) for each row with a saved posterior",
		Long: `
restores a posterior written by "vigp fit -save" and prints one line per row:
row index, P(y=1), predicted label and true label, then the accuracy

	$ vigp predict -model posterior.json -data test.txt

`,
		Flag: *flag.NewFlagSet("predict", flag.ExitOnError),
	}
	cfg.table.register(&cmd.Flag, 0)
	cfg.logs.register(&cmd.Flag)
	cmd.Flag.StringVar(&cfg.model, "model", "", "posterior file (.json, .gob, optionally .xz)")
	return cmd
}

func runPredict(cfg *predictConfig) error {
	if err := cfg.logs.setup(); err != nil {
		return err
	}
	if cfg.model == "" {
		return errors.NewValidationError("model", "a model file is required", cfg.model)
	}

	snap := &model.PosteriorSnapshot{}
	if err := model.LoadModel(snap, cfg.model); err != nil {
		return err
	}
	clf := gp.NewVariationalGPClassifier(gp.WithPrintEvery(0))
	if err := clf.Restore(snap); err != nil {
		return err
	}

	ds, err := cfg.table.load()
	if err != nil {
		return err
	}
	var X mat.Matrix = ds.X
	if len(snap.FeatureMean) > 0 {
		scaler, err := preprocessing.NewStandardScalerFromStats(snap.FeatureMean, snap.FeatureScale)
		if err != nil {
			return err
		}
		if X, err = scaler.Transform(ds.X); err != nil {
			return err
		}
	}

	proba, err := clf.PredictProba(X)
	if err != nil {
		return err
	}
	p1 := mat.NewVecDense(ds.NSamples, mat.Col(nil, 1, proba))
	pred := mat.NewVecDense(ds.NSamples, nil)
	for i := 0; i < ds.NSamples; i++ {
		if p1.AtVec(i) >= 0.5 {
			pred.SetVec(i, 1)
		}
		fmt.Printf("%d\t%.4f\t%.0f\t%.0f\n", i, p1.AtVec(i), pred.AtVec(i), ds.Y.AtVec(i))
	}

	acc, err := metrics.Accuracy(ds.Y, pred)
	if err != nil {
		return err
	}
	logLoss, err := metrics.BinaryLogLoss(ds.Y, p1)
	if err != nil {
		return err
	}
	auc, err := metrics.AUC(ds.Y, p1)
	if err != nil {
		return err
	}
	fmt.Printf("accuracy: %.3f  log loss: %.4f  auc: %.3f\n", acc, logLoss, auc)
	return nil
}
