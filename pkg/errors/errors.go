// Package errors はvigp全体のエラーと警告を提供します。
//
// 型付きエラーは cockroachdb/errors でスタックトレースを付与して返し、
// それぞれ Code() で安定したエラーコードを持ちます。pkg/log はこのコードを
// "error.code" として出力します。
package errors

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// Error codes reported by Code and CodeOf.
const (
	CodeNotFitted         = "NOT_FITTED"
	CodeDimensionMismatch = "DIMENSION_MISMATCH"
	CodeInvalidParameter  = "INVALID_PARAMETER"
	CodeInvalidValue      = "INVALID_VALUE"
	CodeModel             = "MODEL_ERROR"
	CodeNumerical         = "NUMERICAL_INSTABILITY"
	CodeSingularMatrix    = "SINGULAR_MATRIX"
	CodeEmptyData         = "EMPTY_DATA"
	CodeConvergence       = "CONVERGENCE_FAILURE"
	CodeDataConversion    = "DATA_CONVERSION"
	CodeUndefinedMetric   = "UNDEFINED_METRIC"
	CodePanic             = "PANIC"
)

var (
	// ErrEmptyData は空のデータが渡された場合のエラーです。
	ErrEmptyData = New("empty data")

	// ErrSingularMatrix はカーネル行列が正定値でなくCholesky分解できない場合のエラーです。
	ErrSingularMatrix = New("singular matrix")
)

type coder interface {
	Code() string
}

// CodeOf returns the code of the first coded error in err's chain, or "" if
// there is none. The package sentinels map to their own codes.
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	var c coder
	if errors.As(err, &c) {
		return c.Code()
	}
	switch {
	case errors.Is(err, ErrSingularMatrix):
		return CodeSingularMatrix
	case errors.Is(err, ErrEmptyData):
		return CodeEmptyData
	}
	return ""
}

// NotFittedError: Predict や Snapshot が Fit の前に呼ばれた。
type NotFittedError struct {
	ModelName string
	Method    string
}

func NewNotFittedError(modelName, method string) error {
	return errors.WithStack(&NotFittedError{ModelName: modelName, Method: method})
}

func (e *NotFittedError) Error() string {
	return fmt.Sprintf("vigp: %s: this model is not fitted yet. Call Fit() before using %s()", e.ModelName, e.Method)
}

func (e *NotFittedError) Code() string { return CodeNotFitted }

func (e *NotFittedError) MarshalZerologObject(ev *zerolog.Event) {
	ev.Str("type", "NotFittedError").
		Str("code", e.Code()).
		Str("model_name", e.ModelName).
		Str("method", e.Method)
}

// DimensionError: 行数または特徴量数が期待値と一致しない。Axis は 0 が行、1 が特徴量。
type DimensionError struct {
	Op       string
	Expected int
	Got      int
	Axis     int
}

func NewDimensionError(op string, expected, got, axis int) error {
	return errors.WithStack(&DimensionError{Op: op, Expected: expected, Got: got, Axis: axis})
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("vigp: %s: dimension mismatch on axis %d (%s). Expected %d, got %d",
		e.Op, e.Axis, e.axisName(), e.Expected, e.Got)
}

func (e *DimensionError) axisName() string {
	if e.Axis == 0 {
		return "rows"
	}
	return "features"
}

func (e *DimensionError) Code() string { return CodeDimensionMismatch }

func (e *DimensionError) MarshalZerologObject(ev *zerolog.Event) {
	ev.Str("type", "DimensionError").
		Str("code", e.Code()).
		Str("operation", e.Op).
		Int("expected", e.Expected).
		Int("got", e.Got).
		Str("axis_name", e.axisName())
}

// ValidationError: ハイパーパラメータ・オプション・フラグの値が不正。
type ValidationError struct {
	ParamName string
	Reason    string
	Value     interface{}
}

func NewValidationError(param, reason string, value interface{}) error {
	return errors.WithStack(&ValidationError{ParamName: param, Reason: reason, Value: value})
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("vigp: validation failed for parameter '%s': %s (got: %v)", e.ParamName, e.Reason, e.Value)
}

func (e *ValidationError) Code() string { return CodeInvalidParameter }

func (e *ValidationError) MarshalZerologObject(ev *zerolog.Event) {
	ev.Str("type", "ValidationError").
		Str("code", e.Code()).
		Str("param_name", e.ParamName).
		Str("reason", e.Reason).
		Interface("value", e.Value)
}

// ValueError: 入力値そのものが使えない。例えばデータファイルの数値でないセル。
type ValueError struct {
	Op      string
	Message string
}

func NewValueError(op, message string) error {
	return errors.WithStack(&ValueError{Op: op, Message: message})
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("vigp: %s: %s", e.Op, e.Message)
}

func (e *ValueError) Code() string { return CodeInvalidValue }

// ModelError wraps a failure inside Fit or a transform with the operation
// that hit it. Code defers to the wrapped error when it has one.
type ModelError struct {
	Op   string
	Kind string
	Err  error
}

func NewModelError(op, kind string, err error) error {
	return errors.WithStack(&ModelError{Op: op, Kind: kind, Err: err})
}

func (e *ModelError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("vigp: %s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("vigp: %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *ModelError) Unwrap() error { return e.Err }

func (e *ModelError) Code() string {
	if code := CodeOf(e.Err); code != "" {
		return code
	}
	return CodeModel
}

// NumericalInstabilityError: 損失または勾配に NaN・Inf が現れた。
type NumericalInstabilityError struct {
	Operation string // "loss", "gradient" など
	Values    []float64
	Iteration int
}

// maxShownValues bounds how many offending values Error prints.
const maxShownValues = 5

func NewNumericalInstabilityError(operation string, values []float64, iteration int) error {
	return errors.WithStack(&NumericalInstabilityError{Operation: operation, Values: values, Iteration: iteration})
}

func (e *NumericalInstabilityError) Error() string {
	shown := make([]string, 0, maxShownValues+1)
	for i, v := range e.Values {
		if i == maxShownValues {
			shown = append(shown, "...")
			break
		}
		shown = append(shown, fmt.Sprintf("%.6g", v))
	}
	return fmt.Sprintf("vigp: numerical instability detected in %s at iteration %d. Values: [%s]",
		e.Operation, e.Iteration, strings.Join(shown, ", "))
}

func (e *NumericalInstabilityError) Code() string { return CodeNumerical }

func (e *NumericalInstabilityError) MarshalZerologObject(ev *zerolog.Event) {
	ev.Str("type", "NumericalInstabilityError").
		Str("code", e.Code()).
		Str("operation", e.Operation).
		Int("iteration", e.Iteration).
		Floats64("values", e.Values)
}

// cockroachdb/errors の薄いラッパー。呼び出し側は本パッケージだけを import すればよい。

func Is(err, target error) bool                     { return errors.Is(err, target) }
func As(err error, target interface{}) bool         { return errors.As(err, target) }
func Wrap(err error, message string) error          { return errors.Wrap(err, message) }
func New(message string) error                      { return errors.New(message) }
func WithStack(err error) error                     { return errors.WithStack(err) }
func Newf(format string, args ...interface{}) error { return errors.Newf(format, args...) }

func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}
