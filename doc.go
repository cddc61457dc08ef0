// Package vigp provides Gaussian-process binary classification fitted by
// variational inference.
//
// The model places a GP prior with an RBF kernel over one latent value per
// training point, links it to {0, 1} labels through a Bernoulli likelihood
// with a logistic link, and fits a factorized Gaussian posterior
// q(f) = Π N(m_i, s_i²) by maximizing the ELBO. Gradients are derived in
// closed form, linear algebra comes from gonum.
//
// # Quick Start
//
//	package main
//
//	import (
//	    "fmt"
//	    "log"
//
//	    "github.com/YuminosukeSato/vigp/dataset"
//	    gp "github.com/YuminosukeSato/vigp/sklearn/gaussian_process"
//	)
//
//	func main() {
//	    ds, err := dataset.Load("train.txt", dataset.WithLimit(25))
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//
//	    clf := gp.NewVariationalGPClassifier(
//	        gp.WithMaxIter(5000),
//	        gp.WithPrintEvery(100),
//	    )
//	    if err := clf.Fit(ds.X, ds.Y); err != nil {
//	        log.Fatal(err)
//	    }
//
//	    proba, _ := clf.PredictProba(ds.X)
//	    fmt.Println("P(y=1) of the first row:", proba.At(0, 1))
//	}
//
// # Packages
//
//   - dataset: delimited label/feature tables
//   - kernel: RBF covariance, Gram and cross-covariance matrices
//   - sklearn/gaussian_process: VariationalGPClassifier
//   - optimize: Adam with exponential learning-rate decay
//   - metrics: accuracy, log loss, Brier score, ROC AUC
//   - preprocessing: StandardScaler
//   - report: loss-trace and probability plots
//   - runlog: SQLite log of fit runs
//   - core/model: fitted state, interfaces, posterior snapshots and persistence
//   - core/parallel: row-range parallelism
//   - pkg/errors, pkg/log: typed errors and structured logging
//
// The vigp command (cmd/vigp) exposes fit, predict and runs subcommands.
package vigp
