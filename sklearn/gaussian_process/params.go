package gaussian_process

import (
	"github.com/YuminosukeSato/vigp/kernel"
	"github.com/YuminosukeSato/vigp/optimize"
	"github.com/YuminosukeSato/vigp/pkg/errors"
)

// Hyperparameter names used by GetParams and SetParams.
const (
	ParamVariance     = "variance"
	ParamLengthscale  = "lengthscale"
	ParamJitter       = "jitter"
	ParamMaxIter      = "max_iter"
	ParamNSamples     = "n_samples"
	ParamEstimator    = "estimator"
	ParamSolver       = "solver"
	ParamLearningRate = "learning_rate"
	ParamRandomState  = "random_state"
	ParamTol          = "tol"
	ParamPrintEvery   = "print_every"
	ParamGradClip     = "grad_clip"
)

// GetParams returns the hyperparameters. learning_rate is the initial rate
// of the schedule.
func (c *VariationalGPClassifier) GetParams() map[string]interface{} {
	params := map[string]interface{}{
		ParamJitter:      c.jitter,
		ParamMaxIter:     c.maxIter,
		ParamNSamples:    c.nSamples,
		ParamEstimator:   c.estimator,
		ParamSolver:      c.solver,
		ParamRandomState: c.randomState,
		ParamTol:         c.tol,
		ParamPrintEvery:  c.printEvery,
		ParamGradClip:    c.maxGradNorm,
	}
	if c.kernel != nil {
		params[ParamVariance] = c.kernel.Variance
		params[ParamLengthscale] = c.kernel.Lengthscale
	}
	if c.learningRate != nil {
		params[ParamLearningRate] = c.learningRate.Rate(0)
	}
	return params
}

// SetParams updates hyperparameters by name. Numeric values may be given as
// any Go integer or float type (JSON decoding yields float64). Unknown names
// are rejected. The fitted state is left untouched.
func (c *VariationalGPClassifier) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		switch key {
		case ParamVariance, ParamLengthscale:
			v, err := toFloat(key, value)
			if err != nil {
				return err
			}
			k := kernel.DefaultRBF()
			if c.kernel != nil {
				*k = *c.kernel
			}
			if key == ParamVariance {
				k.Variance = v
			} else {
				k.Lengthscale = v
			}
			c.kernel = k
		case ParamJitter:
			v, err := toFloat(key, value)
			if err != nil {
				return err
			}
			c.jitter = v
		case ParamTol:
			v, err := toFloat(key, value)
			if err != nil {
				return err
			}
			c.tol = v
		case ParamGradClip:
			v, err := toFloat(key, value)
			if err != nil {
				return err
			}
			c.maxGradNorm = v
		case ParamLearningRate:
			v, err := toFloat(key, value)
			if err != nil {
				return err
			}
			if decay, ok := c.learningRate.(optimize.ExponentialDecay); ok {
				decay.Initial = v
				c.learningRate = decay
			} else {
				c.learningRate = optimize.Constant(v)
			}
		case ParamMaxIter:
			v, err := toInt(key, value)
			if err != nil {
				return err
			}
			c.maxIter = v
		case ParamNSamples:
			v, err := toInt(key, value)
			if err != nil {
				return err
			}
			c.nSamples = v
		case ParamPrintEvery:
			v, err := toInt(key, value)
			if err != nil {
				return err
			}
			c.printEvery = v
		case ParamRandomState:
			v, err := toInt(key, value)
			if err != nil {
				return err
			}
			c.randomState = int64(v)
		case ParamEstimator:
			s, ok := value.(string)
			if !ok {
				return errors.NewValidationError(key, "must be a string", value)
			}
			c.estimator = s
		case ParamSolver:
			s, ok := value.(string)
			if !ok {
				return errors.NewValidationError(key, "must be a string", value)
			}
			c.solver = s
		default:
			return errors.NewValidationError(key, "unknown parameter", value)
		}
	}
	return c.validateParams()
}

func toFloat(key string, v interface{}) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case int32:
		return float64(x), nil
	default:
		return 0, errors.NewValidationError(key, "must be a number", v)
	}
}

func toInt(key string, v interface{}) (int, error) {
	switch x := v.(type) {
	case int:
		return x, nil
	case int64:
		return int(x), nil
	case int32:
		return int(x), nil
	case float64:
		if x != float64(int64(x)) {
			return 0, errors.NewValidationError(key, "must be an integer", v)
		}
		return int(x), nil
	default:
		return 0, errors.NewValidationError(key, "must be an integer", v)
	}
}
