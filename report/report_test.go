package report

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/vigp/pkg/errors"
)

func nonEmptyFile(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestPlotLossTrace(t *testing.T) {
	history := make([]float64, 200)
	for i := range history {
		history[i] = 25 + 50*math.Exp(-float64(i)/30)
	}

	dir := t.TempDir()
	for _, name := range []string{"loss.png", "loss.svg"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			require.NoError(t, PlotLossTrace(history, path))
			nonEmptyFile(t, path)
		})
	}

	t.Run("short history", func(t *testing.T) {
		path := filepath.Join(dir, "short.png")
		require.NoError(t, PlotLossTrace([]float64{3, 2, 1}, path))
		nonEmptyFile(t, path)
	})

	t.Run("empty", func(t *testing.T) {
		err := PlotLossTrace(nil, filepath.Join(dir, "empty.png"))
		assert.True(t, errors.Is(err, errors.ErrEmptyData))
	})

	t.Run("unknown extension", func(t *testing.T) {
		assert.Error(t, PlotLossTrace(history, filepath.Join(dir, "loss.unknown")))
	})
}

func TestMovingAverage(t *testing.T) {
	got := movingAverage([]float64{1, 2, 3, 4, 5}, 2)
	require.Len(t, got, 4)
	assert.Equal(t, 2.0, got[0].X)
	assert.InDelta(t, 1.5, got[0].Y, 1e-12)
	assert.InDelta(t, 4.5, got[3].Y, 1e-12)
}

func TestPlotProbabilities(t *testing.T) {
	dir := t.TempDir()

	t.Run("both classes", func(t *testing.T) {
		path := filepath.Join(dir, "proba.png")
		err := PlotProbabilities([]float64{0.1, 0.8, 0.3, 0.9}, []float64{0, 1, 0, 1}, path)
		require.NoError(t, err)
		nonEmptyFile(t, path)
	})

	t.Run("single class", func(t *testing.T) {
		path := filepath.Join(dir, "single.svg")
		require.NoError(t, PlotProbabilities([]float64{0.7, 0.9}, []float64{1, 1}, path))
		nonEmptyFile(t, path)
	})

	t.Run("errors", func(t *testing.T) {
		path := filepath.Join(dir, "bad.png")
		assert.True(t, errors.Is(PlotProbabilities(nil, nil, path), errors.ErrEmptyData))

		var dimErr *errors.DimensionError
		assert.True(t, errors.As(PlotProbabilities([]float64{0.5}, []float64{0, 1}, path), &dimErr))
	})
}
