package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/vigp/dataset"
	"github.com/YuminosukeSato/vigp/runlog"
)

const fixture = "../../dataset/testdata/binary_train.txt"

func quietLogs() logFlags { return logFlags{level: "error", format: "json"} }

func TestFitPredictRuns(t *testing.T) {
	dir := t.TempDir()
	cfg := &fitConfig{
		table:       tableFlags{data: fixture, delim: ",", limit: 25},
		logs:        quietLogs(),
		iters:       300,
		samples:     1,
		estimator:   "analytic",
		solver:      "adam",
		lr:          0.1,
		variance:    1,
		lengthscale: 1,
		jitter:      1e-6,
		seed:        1,
		standardize: true,
		save:        filepath.Join(dir, "posterior.json.xz"),
		plot:        filepath.Join(dir, "loss.svg"),
		probaPlot:   filepath.Join(dir, "proba.png"),
		db:          filepath.Join(dir, "runs.sqlite"),
	}
	require.NoError(t, runFit(context.Background(), cfg))

	for _, p := range []string{cfg.save, cfg.plot, cfg.probaPlot, cfg.db} {
		_, err := os.Stat(p)
		assert.NoError(t, err, p)
	}

	store, err := runlog.Open(cfg.db)
	require.NoError(t, err)
	runs, err := store.List(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 25, runs[0].NSamples)
	assert.Equal(t, "analytic", runs[0].Estimator)
	assert.Equal(t, 300, runs[0].Iterations)
	assert.GreaterOrEqual(t, runs[0].TrainAccuracy, 0.9)
	trace, err := store.Trace(context.Background(), runs[0].ID)
	require.NoError(t, err)
	assert.Len(t, trace, 300)
	require.NoError(t, store.Close())

	require.NoError(t, runPredict(&predictConfig{
		table: tableFlags{data: fixture, delim: ","},
		logs:  quietLogs(),
		model: cfg.save,
	}))
	require.NoError(t, runRuns(context.Background(), &runsConfig{db: cfg.db, n: 5}))
}

func TestCommandErrors(t *testing.T) {
	ctx := context.Background()

	err := runFit(ctx, &fitConfig{logs: quietLogs()})
	assert.Error(t, err, "missing -data")

	err = runFit(ctx, &fitConfig{logs: logFlags{level: "loud", format: "json"}})
	assert.Error(t, err, "bad log level")

	err = runPredict(&predictConfig{logs: quietLogs(), table: tableFlags{data: fixture, delim: ","}})
	assert.Error(t, err, "missing -model")

	err = runRuns(ctx, &runsConfig{})
	assert.Error(t, err, "missing -db")

	err = runRuns(ctx, &runsConfig{db: filepath.Join(t.TempDir(), "none.sqlite")})
	assert.Error(t, err, "absent run log")
}

func TestParseDelimiter(t *testing.T) {
	tests := []struct {
		in      string
		want    rune
		wantErr bool
	}{
		{in: ",", want: ','},
		{in: ";", want: ';'},
		{in: "ws", want: dataset.Whitespace},
		{in: "tab", want: '\t'},
		{in: `\t`, want: '\t'},
		{in: "", wantErr: true},
		{in: ",,", wantErr: true},
	}
	for _, tt := range tests {
		got, err := parseDelimiter(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestAppCommands(t *testing.T) {
	app := newApp()
	names := make([]string, 0, len(app.Subcommands))
	for _, c := range app.Subcommands {
		names = append(names, c.Name())
	}
	assert.Equal(t, []string{"fit", "predict", "runs"}, names)

	fit := app.Subcommands[0]
	for _, name := range []string{"data", "limit", "label", "iters", "samples", "estimator", "solver",
		"lr", "variance", "lengthscale", "seed", "standardize", "print", "save", "plot", "db",
		"log-level", "log-format"} {
		assert.NotNil(t, fit.Flag.Lookup(name), name)
	}

	// fit は先頭 25 行、predict は全行を読む
	assert.Equal(t, "25", fit.Flag.Lookup("limit").DefValue)
	predict := app.Subcommands[1]
	assert.Equal(t, "0", predict.Flag.Lookup("limit").DefValue)
}
