// Package log defines standard attribute keys for model fitting and inference.
//
// Keys follow a hierarchical naming convention ("model.name",
// "data.samples") so logs from the CLI, the example program and library
// code can be filtered the same way.

package log

// Model and Operation Context
const (
	// ModelNameKey identifies the type of model.
	// Examples: "VariationalGPClassifier", "StandardScaler"
	ModelNameKey = "model.name"

	// OperationKey specifies the operation being performed.
	// Standard values: "fit", "predict", "score"
	OperationKey = "ml.operation"

	// ComponentKey identifies which package is performing the operation.
	ComponentKey = "ml.component"

	// PhaseKey indicates the phase of model lifecycle.
	PhaseKey = "ml.phase"
)

// Data Shape
const (
	// SamplesKey indicates the number of samples (rows) in the dataset.
	SamplesKey = "data.samples"

	// FeaturesKey indicates the number of features (columns) in the dataset.
	FeaturesKey = "data.features"

	// DataPathKey is the path of the table that was loaded.
	DataPathKey = "data.path"
)

// Performance and training metrics
const (
	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// AccuracyKey records classification accuracy in [0, 1].
	AccuracyKey = "metrics.accuracy"

	// LossKey records the negative ELBO estimate.
	LossKey = "metrics.loss"

	// KLKey records KL(q || p) when it is computed in closed form.
	KLKey = "metrics.kl"

	// IterationKey records the current optimizer iteration.
	IterationKey = "training.iteration"

	// GradNormKey records the L2 norm of the variational gradient.
	GradNormKey = "training.grad_norm"
)

// Error Context
const (
	// ErrorCodeKey carries pkg/errors.CodeOf(err). Loggers add it
	// automatically when the first field is an error.
	ErrorCodeKey = "error.code"
)

// Hyperparameters and Configuration
const (
	// LearningRateKey records the current step size.
	LearningRateKey = "hyperparams.learning_rate"

	// JitterKey records the diagonal jitter added to the kernel matrix.
	JitterKey = "hyperparams.jitter"

	// EstimatorKey records the ELBO estimator ("reparam", "analytic").
	EstimatorKey = "hyperparams.estimator"

	// SolverKey records the optimizer ("adam", "lbfgs").
	SolverKey = "hyperparams.solver"

	// RandomSeedKey records the random seed for reproducibility.
	RandomSeedKey = "config.random_seed"
)

// Standard attribute values.
const (
	OperationFit     = "fit"
	OperationPredict = "predict"
	OperationScore   = "score"

	PhaseTraining      = "training"
	PhasePreprocessing = "preprocessing"
)
