// Package errors provides error handling utilities for vigp.
//
// This file contains panic recovery utilities. gonum reports several shape
// and factorization problems by panicking; the estimators wrap those calls so
// callers always receive an error value instead.

package errors

import (
	"fmt"
	"runtime/debug"
)

// PanicError represents an error that was created from a recovered panic.
type PanicError struct {
	// PanicValue is the original value passed to panic()
	PanicValue interface{}

	// StackTrace contains the stack trace at the time of panic
	StackTrace string

	// Operation identifies where the panic was recovered
	Operation string
}

// Error implements the error interface for PanicError.
func (e *PanicError) Error() string {
	return fmt.Sprintf("panic in %s: %v", e.Operation, e.PanicValue)
}

// Code implements the error code lookup used by CodeOf.
func (e *PanicError) Code() string { return CodePanic }

// String provides detailed information including stack trace.
func (e *PanicError) String() string {
	return fmt.Sprintf("panic in %s: %v\nStack trace:\n%s",
		e.Operation, e.PanicValue, e.StackTrace)
}

// NewPanicError creates a new PanicError with the given operation context and panic value.
func NewPanicError(operation string, panicValue interface{}) *PanicError {
	return &PanicError{
		PanicValue: panicValue,
		StackTrace: string(debug.Stack()),
		Operation:  operation,
	}
}

// Recover is meant to be deferred with a pointer to the named error result
// of the enclosing function:
//
//	func (c *VariationalGPClassifier) Fit(X, y mat.Matrix) (err error) {
//	    defer errors.Recover(&err, "VariationalGPClassifier.Fit")
//	    ...
//	}
//
// A recovered panic becomes a *PanicError. If err was already set, the panic
// is reported together with the original error, which stays unwrappable.
func Recover(err *error, operation string) {
	if r := recover(); r != nil {
		if *err != nil {
			*err = fmt.Errorf("panic in %s: %v (original error: %w)",
				operation, r, *err)
			return
		}
		*err = NewPanicError(operation, r)
	}
}

// SafeExecute executes fn and converts any panic into an error.
//
// Example:
//
//	err := SafeExecute("cholesky", func() error {
//	    return factorize(K)
//	})
func SafeExecute(operation string, fn func() error) (err error) {
	defer Recover(&err, operation)
	return fn()
}
