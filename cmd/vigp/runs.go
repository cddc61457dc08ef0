package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/gonuts/commander"
	"github.com/gonuts/flag"

	"github.com/YuminosukeSato/vigp/pkg/errors"
	"github.com/YuminosukeSato/vigp/runlog"
)

type runsConfig struct {
	db string
	n  int
}

// RunsCmd builds the "runs" subcommand.
func RunsCmd() *commander.Command {
	cfg := &runsConfig{}
	cmd := &commander.Command{
		Run: func(_ *commander.Command, _ []string) error {
			return runRuns(context.Background(), cfg)
		},
		UsageLine: "runs -db FILE [-n 10]",
		Short:     "lists runs recorded by vigp fit -db",
		Flag:      *flag.NewFlagSet("runs", flag.ExitOnError),
	}
	cmd.Flag.StringVar(&cfg.db, "db", "", "SQLite run log")
	cmd.Flag.IntVar(&cfg.n, "n", 10, "number of runs to show (0 shows all)")
	return cmd
}

func runRuns(ctx context.Context, cfg *runsConfig) error {
	if cfg.db == "" {
		return errors.NewValidationError("db", "a run log is required", cfg.db)
	}
	if _, err := os.Stat(cfg.db); err != nil {
		return errors.Wrapf(err, "run log %s", cfg.db)
	}
	store, err := runlog.Open(cfg.db)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.List(ctx, cfg.n)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTIME\tDATA\tN\tD\tESTIMATOR\tSOLVER\tITERS\tLOSS\tACC")
	for _, r := range runs {
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%d\t%s\t%s\t%d\t%.3f\t%.3f\n",
			r.ID, r.CreatedAt.Format("2006-01-02 15:04:05"), r.DataPath, r.NSamples, r.NFeatures,
			r.Estimator, r.Solver, r.Iterations, r.FinalLoss, r.TrainAccuracy)
	}
	return w.Flush()
}
