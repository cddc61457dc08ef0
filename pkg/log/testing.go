// Package log provides testing utilities for structured logging.

package log

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/YuminosukeSato/vigp/pkg/errors"
)

// TestLogger captures log records in memory as JSON lines so tests can
// assert on messages and fields.
type TestLogger struct {
	mu     *sync.Mutex
	buffer *bytes.Buffer
	level  *Level
	fields map[string]interface{}
}

// NewTestLogger creates a TestLogger with the given minimum level and
// returns the buffer that receives its output.
//
// Example:
//
//	logger, buffer := log.NewTestLogger(log.LevelDebug)
//	clf := gaussian_process.NewVariationalGPClassifier(gaussian_process.WithLogger(logger))
//	_ = clf.Fit(X, y)
//	// inspect buffer.String()
func NewTestLogger(level Level) (*TestLogger, *bytes.Buffer) {
	buffer := &bytes.Buffer{}
	return &TestLogger{
		mu:     &sync.Mutex{},
		buffer: buffer,
		level:  &level,
		fields: make(map[string]interface{}),
	}, buffer
}

// Debug implements Logger.Debug.
func (t *TestLogger) Debug(msg string, fields ...any) { t.write(LevelDebug, msg, fields) }

// Info implements Logger.Info.
func (t *TestLogger) Info(msg string, fields ...any) { t.write(LevelInfo, msg, fields) }

// Warn implements Logger.Warn.
func (t *TestLogger) Warn(msg string, fields ...any) { t.write(LevelWarn, msg, fields) }

// Error implements Logger.Error.
func (t *TestLogger) Error(msg string, fields ...any) { t.write(LevelError, msg, fields) }

// With implements Logger.With. The returned logger shares the buffer.
func (t *TestLogger) With(fields ...any) Logger {
	newFields := make(map[string]interface{}, len(t.fields)+len(fields)/2)
	for k, v := range t.fields {
		newFields[k] = v
	}
	addPairs(newFields, fields)
	return &TestLogger{
		mu:     t.mu,
		buffer: t.buffer,
		level:  t.level,
		fields: newFields,
	}
}

// Enabled implements Logger.Enabled.
func (t *TestLogger) Enabled(_ context.Context, level Level) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return *t.level <= level
}

func (t *TestLogger) write(level Level, msg string, fields []any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if *t.level > level {
		return
	}

	entry := map[string]interface{}{
		"level":   level.String(),
		"message": msg,
	}
	for k, v := range t.fields {
		entry[k] = v
	}
	if len(fields) > 0 {
		if err, ok := fields[0].(error); ok {
			entry[ErrAttrKey] = err.Error()
			if code := errors.CodeOf(err); code != "" {
				entry[ErrorCodeKey] = code
			}
			fields = fields[1:]
		}
	}
	addPairs(entry, fields)

	jsonData, err := json.Marshal(entry)
	if err != nil {
		jsonData, _ = json.Marshal(map[string]string{"level": level.String(), "message": msg, "marshal_error": err.Error()})
	}
	t.buffer.Write(jsonData)
	t.buffer.WriteByte('\n')
}

func addPairs(dst map[string]interface{}, fields []any) {
	for i := 0; i+1 < len(fields); i += 2 {
		key := fmt.Sprintf("%v", fields[i])
		if err, ok := fields[i+1].(error); ok {
			dst[key] = err.Error()
			continue
		}
		dst[key] = fields[i+1]
	}
}

// GetLogEntries parses the captured output into one map per record.
func (t *TestLogger) GetLogEntries() ([]map[string]interface{}, error) {
	t.mu.Lock()
	raw := t.buffer.String()
	t.mu.Unlock()

	var entries []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(raw), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]interface{}
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// ContainsMessage reports whether any record contains message.
func (t *TestLogger) ContainsMessage(message string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.Contains(t.buffer.String(), message)
}

// ContainsField reports whether any record has key set to value.
// Numbers come back from JSON as float64.
func (t *TestLogger) ContainsField(key string, value interface{}) bool {
	entries, err := t.GetLogEntries()
	if err != nil {
		return false
	}
	for _, entry := range entries {
		if fieldValue, exists := entry[key]; exists && fieldValue == value {
			return true
		}
	}
	return false
}

// CountMessage returns the number of records whose message equals message.
func (t *TestLogger) CountMessage(message string) int {
	entries, err := t.GetLogEntries()
	if err != nil {
		return 0
	}
	n := 0
	for _, entry := range entries {
		if entry["message"] == message {
			n++
		}
	}
	return n
}

// Clear clears all captured log content.
func (t *TestLogger) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buffer.Reset()
}

// TestLoggerProvider implements LoggerProvider on top of a TestLogger.
type TestLoggerProvider struct {
	logger *TestLogger
}

// NewTestLoggerProvider creates a provider whose loggers all write to the returned buffer.
func NewTestLoggerProvider(level Level) (*TestLoggerProvider, *bytes.Buffer) {
	logger, buffer := NewTestLogger(level)
	return &TestLoggerProvider{logger: logger}, buffer
}

// GetLogger implements LoggerProvider.GetLogger.
func (p *TestLoggerProvider) GetLogger() Logger {
	return p.logger
}

// GetLoggerWithName implements LoggerProvider.GetLoggerWithName.
func (p *TestLoggerProvider) GetLoggerWithName(name string) Logger {
	return p.logger.With(ComponentKey, name)
}

// SetLevel implements LoggerProvider.SetLevel.
func (p *TestLoggerProvider) SetLevel(level Level) {
	p.logger.mu.Lock()
	defer p.logger.mu.Unlock()
	*p.logger.level = level
}

// Logger returns the underlying TestLogger for assertions.
func (p *TestLoggerProvider) Logger() *TestLogger {
	return p.logger
}
