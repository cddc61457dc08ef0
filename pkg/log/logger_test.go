package log

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/vigp/pkg/errors"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &m), line)
		out = append(out, m)
	}
	return out
}

func TestZerologLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, FormatJSON, LevelDebug).With(ModelNameKey, "VariationalGPClassifier")

	logger.Debug("step", IterationKey, 100, LossKey, 12.5)
	logger.Info("done")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "debug", entries[0]["level"])
	assert.Equal(t, "step", entries[0]["message"])
	assert.Equal(t, 100.0, entries[0][IterationKey])
	assert.Equal(t, 12.5, entries[0][LossKey])
	assert.Equal(t, "VariationalGPClassifier", entries[1][ModelNameKey])
}

func TestZerologLoggerLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, FormatJSON, LevelWarn)

	logger.Info("hidden")
	logger.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
	assert.False(t, logger.Enabled(context.Background(), LevelDebug))
	assert.True(t, logger.Enabled(context.Background(), LevelError))
}

func TestZerologLoggerErrorDetails(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, FormatJSON, LevelInfo)

	err := errors.NewDimensionError("Predict", 5, 3, 1)
	logger.Error("prediction failed", err, OperationKey, OperationPredict)

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0][ErrAttrKey], "dimension mismatch")
	assert.NotEmpty(t, entries[0][StacktraceAttrKey])

	detail, ok := entries[0]["detail"].(map[string]interface{})
	require.True(t, ok, "typed errors are expanded through MarshalZerologObject")
	assert.Equal(t, "DimensionError", detail["type"])
	assert.Equal(t, errors.CodeDimensionMismatch, entries[0][ErrorCodeKey])
	assert.Equal(t, OperationPredict, entries[0][OperationKey])
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", LevelDebug},
		{"INFO", LevelInfo},
		{"", LevelInfo},
		{"warning", LevelWarn},
		{"error", LevelError},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseLevel("verbose")
	var valErr *errors.ValidationError
	assert.True(t, errors.As(err, &valErr))
}

func TestSetupLoggerRejectsFormat(t *testing.T) {
	assert.Error(t, SetupLogger("info", "xml"))
	assert.Error(t, SetupLogger("loud", "json"))
}

func TestProviderSwap(t *testing.T) {
	p, _ := NewTestLoggerProvider(LevelDebug)
	SetProvider(p)
	defer SetProvider(newZerologProvider(&bytes.Buffer{}, FormatJSON, LevelInfo))

	GetLoggerWithName("kernel").Info("gram built", SamplesKey, 25)

	assert.True(t, p.Logger().ContainsField(ComponentKey, "kernel"))
	assert.True(t, p.Logger().ContainsField(SamplesKey, 25.0))

	p.SetLevel(LevelError)
	GetLogger().Info("suppressed")
	assert.False(t, p.Logger().ContainsMessage("suppressed"))
}

func TestLevelString(t *testing.T) {
	assert.Equal(t, "DEBUG", LevelDebug.String())
	assert.Equal(t, "ERROR", LevelError.String())
	assert.Equal(t, "UNKNOWN", Level(99).String())
}
