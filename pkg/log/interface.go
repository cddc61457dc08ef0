// Package log provides a structured logging interface for vigp.
//
// The interface is deliberately small and slog-compatible: estimators only
// need Debug/Info/Warn/Error with key-value fields and contextual loggers
// created through With. The production implementation is backed by zerolog
// (see logger.go); tests use TestLogger (see testing.go).
//
// Example usage:
//
//	logger := log.GetLoggerWithName("gaussian_process").With(
//	    log.ModelNameKey, "VariationalGPClassifier",
//	)
//	logger.Info("Training started",
//	    log.OperationKey, log.OperationFit,
//	    log.SamplesKey, 25,
//	    log.FeaturesKey, 5,
//	)
package log

import (
	"context"
)

// Logger defines a structured logging interface compatible with Go's log/slog.
//
// Fields are alternating key-value pairs. If the first field passed to Error
// is an error value it is logged under ErrAttrKey together with its stack
// trace.
type Logger interface {
	// Debug logs a debug-level message, e.g. per-iteration optimizer state.
	Debug(msg string, fields ...any)

	// Info logs an info-level message.
	Info(msg string, fields ...any)

	// Warn logs a warning-level message.
	Warn(msg string, fields ...any)

	// Error logs an error-level message.
	//
	// Example:
	//   logger.Error("Fit failed",
	//       err,
	//       log.OperationKey, log.OperationFit,
	//   )
	Error(msg string, fields ...any)

	// With returns a new Logger with the given fields pre-populated.
	With(fields ...any) Logger

	// Enabled reports whether the logger emits records at the given level.
	// Use it to skip building expensive fields.
	Enabled(ctx context.Context, level Level) bool
}

// Level represents a logging level, compatible with slog.Level.
type Level int

// Standard logging levels, values are compatible with slog.Level.
const (
	LevelDebug Level = -4
	LevelInfo  Level = 0
	LevelWarn  Level = 4
	LevelError Level = 8
)

// String returns the string representation of the log level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// LoggerProvider creates and configures loggers. It allows tests to inject
// a capturing implementation.
type LoggerProvider interface {
	// GetLogger returns the default logger instance.
	GetLogger() Logger

	// GetLoggerWithName returns a logger tagged with a component name.
	GetLoggerWithName(name string) Logger

	// SetLevel sets the minimum log level for loggers created by this provider.
	SetLevel(level Level)
}
