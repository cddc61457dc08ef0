package errors

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func nanValue() float64 { return math.NaN() }

func TestClipGradient(t *testing.T) {
	g := []float64{3, 4}
	norm := ClipGradient(g, 1)
	assert.InDelta(t, 5.0, norm, 1e-12)
	assert.InDelta(t, 0.6, g[0], 1e-12)
	assert.InDelta(t, 0.8, g[1], 1e-12)

	untouched := []float64{3, 4}
	ClipGradient(untouched, 0)
	assert.Equal(t, []float64{3, 4}, untouched)
}

func TestSoftplusRoundTrip(t *testing.T) {
	for _, x := range []float64{-20, -1, 0, 0.5, 3, 40} {
		y := Softplus(x)
		assert.Greater(t, y, 0.0)
		assert.InDelta(t, x, InverseSoftplus(y), 1e-6, "x=%v", x)
	}
	assert.InDelta(t, math.Ln2, Softplus(0), 1e-12)
	assert.InDelta(t, 1000.0, Softplus(1000), 1e-9)
}

func TestSigmoid(t *testing.T) {
	assert.Equal(t, 0.5, Sigmoid(0))
	assert.InDelta(t, 1.0, Sigmoid(800), 1e-12)
	assert.InDelta(t, 0.0, Sigmoid(-800), 1e-12)
	assert.InDelta(t, math.Log(Sigmoid(2)), LogSigmoid(2), 1e-12)
	assert.False(t, math.IsInf(LogSigmoid(-800), 0))
}

func TestStabilizeLogAndClip(t *testing.T) {
	assert.InDelta(t, math.Log(1e-15), StabilizeLog(0), 1e-9)
	assert.Equal(t, 0.0, StabilizeLog(1))
	assert.Equal(t, 1.0, ClipValue(3, 0, 1))
	assert.Equal(t, 0.0, ClipValue(-3, 0, 1))
	assert.Equal(t, 0.5, ClipValue(0.5, 0, 1))
}
