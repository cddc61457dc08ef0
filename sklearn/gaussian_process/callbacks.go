package gaussian_process

import (
	"fmt"
	"io"
	"math"
	"time"
)

// CallbackEnv is passed to every callback after each optimizer iteration.
type CallbackEnv struct {
	Iteration    int
	MaxIter      int
	Loss         float64 // −ELBO estimate at this iteration
	LearningRate float64 // 0 for the lbfgs solver
	GradNorm     float64
	Elapsed      time.Duration

	// StopTraining ends the fit after the current iteration when set.
	StopTraining bool
}

// Callback is called during training. A non-nil error aborts the fit.
type Callback func(env *CallbackEnv) error

// PrintProgress writes "Iteration i/max  Loss: x" every period iterations
// and on the last one.
func PrintProgress(w io.Writer, period int) Callback {
	return func(env *CallbackEnv) error {
		if period <= 0 {
			return nil
		}
		if env.Iteration%period != 0 && env.Iteration != env.MaxIter {
			return nil
		}
		_, err := fmt.Fprintf(w, "Iteration %d/%d  Loss: %.3f\n", env.Iteration, env.MaxIter, env.Loss)
		return err
	}
}

// RecordHistory appends each iteration's loss to history.
func RecordHistory(history *[]float64) Callback {
	return func(env *CallbackEnv) error {
		*history = append(*history, env.Loss)
		return nil
	}
}

// EarlyStopping stops training when the best loss has not improved by more
// than minDelta for patience iterations.
//
// Stochastic losses are noisy, so patience should cover several hundred
// iterations with the sampling estimators.
func EarlyStopping(patience int, minDelta float64) Callback {
	best := math.Inf(1)
	since := 0
	return func(env *CallbackEnv) error {
		if env.Loss < best-minDelta {
			best = env.Loss
			since = 0
			return nil
		}
		since++
		if since >= patience {
			env.StopTraining = true
		}
		return nil
	}
}
