package log

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/YuminosukeSato/vigp/pkg/errors"
)

// Output formats accepted by SetupLogger and NewLogger.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

var (
	providerMu sync.RWMutex
	provider   LoggerProvider = newZerologProvider(os.Stderr, FormatConsole, LevelInfo)
)

// SetupLogger configures the global logger and routes warnings raised through
// pkg/errors.Warn to it.
//
// level is one of "debug", "info", "warn", "error"; format is "console" or "json".
func SetupLogger(level, format string) error {
	lvl, err := ParseLevel(level)
	if err != nil {
		return err
	}
	if format != FormatConsole && format != FormatJSON {
		return errors.NewValidationError("log_format", "must be console or json", format)
	}

	p := newZerologProvider(os.Stderr, format, lvl)
	SetProvider(p)

	warnLogger := p.base.With().Str(ComponentKey, "warnings").Logger()
	errors.SetZerologWarnFunc(func(w error) {
		ev := warnLogger.Warn()
		if m, ok := w.(zerolog.LogObjectMarshaler); ok {
			ev = ev.EmbedObject(m)
		}
		ev.Msg(w.Error())
	})
	return nil
}

// ParseLevel converts a level name into a Level.
func ParseLevel(level string) (Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, errors.NewValidationError("log_level", "must be one of debug, info, warn, error", level)
	}
}

// SetProvider replaces the global provider. Tests use it with a TestLoggerProvider.
func SetProvider(p LoggerProvider) {
	providerMu.Lock()
	defer providerMu.Unlock()
	provider = p
}

// GetLogger returns the default logger.
func GetLogger() Logger {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return provider.GetLogger()
}

// GetLoggerWithName returns a logger tagged with the given component name.
func GetLoggerWithName(name string) Logger {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return provider.GetLoggerWithName(name)
}

// NewLogger builds a standalone zerolog-backed Logger writing to w.
func NewLogger(w io.Writer, format string, level Level) Logger {
	return newZerologProvider(w, format, level).GetLogger()
}

type zerologProvider struct {
	mu   sync.RWMutex
	base zerolog.Logger
}

func newZerologProvider(w io.Writer, format string, level Level) *zerologProvider {
	out := w
	if format == FormatConsole {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	base := zerolog.New(out).Level(toZerologLevel(level)).With().Timestamp().Logger()
	return &zerologProvider{base: base}
}

func (p *zerologProvider) GetLogger() Logger {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return &zerologLogger{zl: p.base}
}

func (p *zerologProvider) GetLoggerWithName(name string) Logger {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return &zerologLogger{zl: p.base.With().Str(ComponentKey, name).Logger()}
}

func (p *zerologProvider) SetLevel(level Level) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.base = p.base.Level(toZerologLevel(level))
}

// zerologLogger adapts zerolog.Logger to the Logger interface.
type zerologLogger struct {
	zl zerolog.Logger
}

func (l *zerologLogger) Debug(msg string, fields ...any) { emit(l.zl.Debug(), msg, fields) }
func (l *zerologLogger) Info(msg string, fields ...any)  { emit(l.zl.Info(), msg, fields) }
func (l *zerologLogger) Warn(msg string, fields ...any)  { emit(l.zl.Warn(), msg, fields) }
func (l *zerologLogger) Error(msg string, fields ...any) { emit(l.zl.Error(), msg, fields) }

func (l *zerologLogger) With(fields ...any) Logger {
	ctx := l.zl.With()
	for i := 0; i+1 < len(fields); i += 2 {
		key := fmt.Sprint(fields[i])
		if err, ok := fields[i+1].(error); ok {
			ctx = ctx.AnErr(key, err)
			continue
		}
		ctx = ctx.Interface(key, fields[i+1])
	}
	return &zerologLogger{zl: ctx.Logger()}
}

func (l *zerologLogger) Enabled(_ context.Context, level Level) bool {
	zl := toZerologLevel(level)
	return zl >= l.zl.GetLevel() && zl >= zerolog.GlobalLevel()
}

func emit(ev *zerolog.Event, msg string, fields []any) {
	if ev == nil {
		return
	}
	if len(fields) > 0 {
		if err, ok := fields[0].(error); ok {
			addError(ev, err)
			fields = fields[1:]
		}
	}
	for i := 0; i < len(fields); i += 2 {
		if i+1 >= len(fields) {
			ev = ev.Interface("!BADKEY", fields[i])
			break
		}
		key := fmt.Sprint(fields[i])
		switch v := fields[i+1].(type) {
		case error:
			ev = ev.AnErr(key, v)
		case zerolog.LogObjectMarshaler:
			ev = ev.Object(key, v)
		case time.Duration:
			ev = ev.Dur(key, v)
		default:
			ev = ev.Interface(key, v)
		}
	}
	ev.Msg(msg)
}

func toZerologLevel(level Level) zerolog.Level {
	switch {
	case level <= LevelDebug:
		return zerolog.DebugLevel
	case level <= LevelInfo:
		return zerolog.InfoLevel
	case level <= LevelWarn:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}
