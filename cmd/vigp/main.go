// Command vigp fits and applies variational GP classifiers from the shell.
//
//	vigp fit -data train.txt -limit 25 -save posterior.json
//	vigp predict -model posterior.json -data test.txt
//	vigp runs -db runs.sqlite
package main

import (
	"fmt"
	"os"

	"github.com/gonuts/commander"
	"github.com/gonuts/flag"
)

func newApp() *commander.Command {
	return &commander.Command{
		UsageLine: "vigp <command> [options]",
		Short:     "variational Gaussian-process binary classification",
		Subcommands: []*commander.Command{
			FitCmd(),
			PredictCmd(),
			RunsCmd(),
		},
		Flag: *flag.NewFlagSet("vigp", flag.ExitOnError),
	}
}

func main() {
	if err := newApp().Dispatch(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "**err**: %v\n", err)
		os.Exit(1)
	}
}
