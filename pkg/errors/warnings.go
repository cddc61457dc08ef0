package errors

import (
	"fmt"
	"log"
	"sync"

	"github.com/rs/zerolog"
)

// 警告の出力先。pkg/log は SetupLogger で zerolog 出力を差し込む
// (pkg/log が本パッケージを import するため関数として注入する)。
var (
	warnMu      sync.Mutex
	warnHandler = func(w error) { log.Printf("vigp-Warning: %v\n", w) }
	warnZerolog func(warning error)
)

// SetWarningHandler replaces the fallback warning handler. nil discards warnings.
//
//	errors.SetWarningHandler(func(w error) {}) // 警告を無視する
func SetWarningHandler(handler func(w error)) {
	warnMu.Lock()
	defer warnMu.Unlock()
	warnHandler = handler
}

// SetZerologWarnFunc routes warnings to a structured logger. nil restores the handler.
func SetZerologWarnFunc(warnFunc func(warning error)) {
	warnMu.Lock()
	defer warnMu.Unlock()
	warnZerolog = warnFunc
}

// Warn reports a non-fatal condition such as a missed tolerance or a relabeled column.
func Warn(w error) {
	warnMu.Lock()
	defer warnMu.Unlock()
	switch {
	case warnZerolog != nil:
		warnZerolog(w)
	case warnHandler != nil:
		warnHandler(w)
	}
}

// ConvergenceWarning: the optimizer hit its iteration limit before the
// tolerance was met.
type ConvergenceWarning struct {
	Algorithm  string
	Iterations int
	Message    string
}

func NewConvergenceWarning(algorithm string, iterations int, message string) *ConvergenceWarning {
	return &ConvergenceWarning{Algorithm: algorithm, Iterations: iterations, Message: message}
}

func (w *ConvergenceWarning) Error() string {
	hint := w.Message
	if hint == "" {
		return fmt.Sprintf("%s failed to converge after %d iterations. Consider increasing max_iter or the learning rate.", w.Algorithm, w.Iterations)
	}
	return fmt.Sprintf("%s failed to converge after %d iterations: %s", w.Algorithm, w.Iterations, hint)
}

func (w *ConvergenceWarning) Code() string { return CodeConvergence }

func (w *ConvergenceWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("type", "ConvergenceWarning").
		Str("code", w.Code()).
		Str("algorithm", w.Algorithm).
		Int("iterations", w.Iterations).
		Str("message", w.Message)
}

// DataConversionWarning: input was silently reinterpreted, e.g. {-1, 1}
// labels read as {0, 1}.
type DataConversionWarning struct {
	FromType string
	ToType   string
	Reason   string
}

func NewDataConversionWarning(from, to, reason string) *DataConversionWarning {
	return &DataConversionWarning{FromType: from, ToType: to, Reason: reason}
}

func (w *DataConversionWarning) Error() string {
	return fmt.Sprintf("data converted from %s to %s. Reason: %s", w.FromType, w.ToType, w.Reason)
}

func (w *DataConversionWarning) Code() string { return CodeDataConversion }

func (w *DataConversionWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("type", "DataConversionWarning").
		Str("code", w.Code()).
		Str("from_type", w.FromType).
		Str("to_type", w.ToType).
		Str("reason", w.Reason)
}

// UndefinedMetricWarning: a metric has no value for the given input, such as
// ROC AUC with a single class. Result is what the metric returned instead.
type UndefinedMetricWarning struct {
	Metric    string
	Condition string
	Result    float64
}

func NewUndefinedMetricWarning(metric, condition string, result float64) *UndefinedMetricWarning {
	return &UndefinedMetricWarning{Metric: metric, Condition: condition, Result: result}
}

func (w *UndefinedMetricWarning) Error() string {
	return fmt.Sprintf("'%s' is ill-defined and being set to %f due to %s.", w.Metric, w.Result, w.Condition)
}

func (w *UndefinedMetricWarning) Code() string { return CodeUndefinedMetric }

func (w *UndefinedMetricWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("type", "UndefinedMetricWarning").
		Str("code", w.Code()).
		Str("metric", w.Metric).
		Str("condition", w.Condition).
		Float64("result", w.Result)
}
