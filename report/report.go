// Package report renders training diagnostics with gonum/plot.
//
// The output format follows the file extension (.png, .svg, .pdf, ...).
package report

import (
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/YuminosukeSato/vigp/pkg/errors"
)

const (
	width  = 6 * vg.Inch
	height = 4 * vg.Inch

	// smoothWindow is the moving-average window for the loss trace.
	smoothWindow = 50
)

// PlotLossTrace draws the per-iteration loss together with its moving average.
func PlotLossTrace(history []float64, path string) error {
	if len(history) == 0 {
		return errors.Wrap(errors.ErrEmptyData, "loss history")
	}

	raw := make(plotter.XYs, len(history))
	for i, v := range history {
		raw[i] = plotter.XY{X: float64(i + 1), Y: v}
	}

	p := plot.New()
	p.Title.Text = "Negative ELBO"
	p.X.Label.Text = "iteration"
	p.Y.Label.Text = "loss"

	lines := []any{"loss", raw}
	if len(history) >= smoothWindow {
		lines = append(lines, fmt.Sprintf("moving average (%d)", smoothWindow), movingAverage(history, smoothWindow))
	}
	if err := plotutil.AddLines(p, lines...); err != nil {
		return errors.Wrap(err, "add loss lines")
	}
	return save(p, path)
}

// movingAverage returns the trailing mean over window points, starting at
// the first full window.
func movingAverage(v []float64, window int) plotter.XYs {
	out := make(plotter.XYs, 0, len(v)-window+1)
	var sum float64
	for i, x := range v {
		sum += x
		if i >= window {
			sum -= v[i-window]
		}
		if i >= window-1 {
			out = append(out, plotter.XY{X: float64(i + 1), Y: sum / float64(window)})
		}
	}
	return out
}

// PlotProbabilities draws P(y=1) per sample, split by true label, with the
// 0.5 decision threshold.
func PlotProbabilities(proba, labels []float64, path string) error {
	if len(proba) == 0 {
		return errors.Wrap(errors.ErrEmptyData, "probabilities")
	}
	if len(labels) != len(proba) {
		return errors.NewDimensionError("PlotProbabilities", len(proba), len(labels), 0)
	}

	var neg, pos plotter.XYs
	for i, p := range proba {
		pt := plotter.XY{X: float64(i), Y: p}
		if labels[i] == 1 {
			pos = append(pos, pt)
		} else {
			neg = append(neg, pt)
		}
	}

	p := plot.New()
	p.Title.Text = "Predictive probability"
	p.X.Label.Text = "sample"
	p.Y.Label.Text = "P(y=1)"
	p.Y.Min, p.Y.Max = 0, 1

	var scatters []any
	if len(neg) > 0 {
		scatters = append(scatters, "y=0", neg)
	}
	if len(pos) > 0 {
		scatters = append(scatters, "y=1", pos)
	}
	if err := plotutil.AddScatters(p, scatters...); err != nil {
		return errors.Wrap(err, "add probability points")
	}

	threshold := plotter.NewFunction(func(float64) float64 { return 0.5 })
	threshold.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}
	p.Add(threshold)
	p.Legend.Add("threshold", threshold)

	return save(p, path)
}

// save renders p to path. Drawing panics inside gonum/plot come back as errors.
func save(p *plot.Plot, path string) error {
	return errors.SafeExecute("report.save", func() error {
		return errors.Wrapf(p.Save(width, height, path), "save plot %s", path)
	})
}
