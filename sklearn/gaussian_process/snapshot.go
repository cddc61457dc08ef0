package gaussian_process

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/vigp/core/model"
	"github.com/YuminosukeSato/vigp/kernel"
	"github.com/YuminosukeSato/vigp/pkg/errors"
	"github.com/YuminosukeSato/vigp/pkg/log"
)

// Snapshot exports the fitted posterior. The training inputs are included
// because prediction needs them.
func (c *VariationalGPClassifier) Snapshot() (*model.PosteriorSnapshot, error) {
	if err := c.state.RequireFitted(modelName, "Snapshot"); err != nil {
		return nil, err
	}
	return &model.PosteriorSnapshot{
		ModelType: modelName,
		Version:   model.SnapshotVersion,
		Kernel: model.KernelParams{
			Variance:    c.kernel.Variance,
			Lengthscale: c.kernel.Lengthscale,
		},
		Jitter:          c.prior.jitter,
		TrainX:          kernel.Rows(c.trainX),
		Means:           append([]float64(nil), c.means...),
		Scales:          append([]float64(nil), c.scales...),
		LossHistory:     append([]float64(nil), c.lossHistory...),
		Hyperparameters: c.GetParams(),
		Metadata: map[string]interface{}{
			"n_iter": c.nIter,
			"elbo":   c.elbo,
			"kl":     c.kl,
		},
		IsFitted: true,
	}, nil
}

// Restore replaces the classifier's state with a snapshot. The kernel matrix
// is rebuilt and factorized from the stored training inputs.
func (c *VariationalGPClassifier) Restore(s *model.PosteriorSnapshot) error {
	if s == nil {
		return errors.NewValueError(modelName+".Restore", "nil snapshot")
	}
	if err := s.Validate(); err != nil {
		return err
	}
	if s.ModelType != modelName {
		return errors.NewValidationError("model_type", "snapshot is for a different model", s.ModelType)
	}
	if !s.IsFitted {
		return errors.NewValidationError("is_fitted", "cannot restore an unfitted snapshot", s.IsFitted)
	}

	if len(s.Hyperparameters) > 0 {
		if err := c.SetParams(s.Hyperparameters); err != nil {
			return errors.Wrap(err, "restore hyperparameters")
		}
	}
	c.kernel = kernel.NewRBF(s.Kernel.Variance, s.Kernel.Lengthscale)

	n, d := len(s.TrainX), len(s.TrainX[0])
	trainX := mat.NewDense(n, d, nil)
	for i, row := range s.TrainX {
		trainX.SetRow(i, row)
	}
	prior, err := newGPPrior(c.kernel.Gram(trainX), s.Jitter)
	if err != nil {
		return err
	}

	c.state.Reset()
	c.trainX = trainX
	c.prior = prior
	c.means = append([]float64(nil), s.Means...)
	c.scales = append([]float64(nil), s.Scales...)
	c.lossHistory = append([]float64(nil), s.LossHistory...)
	c.nIter = metaInt(s.Metadata, "n_iter")
	c.elbo = metaFloat(s.Metadata, "elbo")
	c.kl = metaFloat(s.Metadata, "kl")
	c.state.SetFitted(d, n)

	c.logger.Info("Posterior restored", log.SamplesKey, n, log.FeaturesKey, d, log.JitterKey, prior.jitter)
	return nil
}

func metaFloat(m map[string]interface{}, key string) float64 {
	v, err := toFloat(key, m[key])
	if err != nil {
		return 0
	}
	return v
}

func metaInt(m map[string]interface{}, key string) int {
	v, err := toInt(key, m[key])
	if err != nil {
		return 0
	}
	return v
}
