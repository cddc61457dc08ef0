package main

import (
	"unicode/utf8"

	"github.com/gonuts/flag"

	"github.com/YuminosukeSato/vigp/dataset"
	"github.com/YuminosukeSato/vigp/pkg/errors"
	"github.com/YuminosukeSato/vigp/pkg/log"
)

// tableFlags are shared by every command that reads a data table.
type tableFlags struct {
	data   string
	delim  string
	label  int
	limit  int
	header bool
}

// fitRowLimit keeps the training set at the 25 rows the GP was tuned on.
const fitRowLimit = 25

// register adds the table flags; limit is the -limit default.
func (t *tableFlags) register(fs *flag.FlagSet, limit int) {
	fs.StringVar(&t.data, "data", "", "label/feature table")
	fs.StringVar(&t.delim, "delim", ",", `column delimiter, "ws" for whitespace`)
	fs.IntVar(&t.label, "label", 0, "label column, negative counts from the end")
	fs.IntVar(&t.limit, "limit", limit, "keep only the first N rows (0 keeps all)")
	fs.BoolVar(&t.header, "header", false, "skip a header row")
}

func (t *tableFlags) load() (*dataset.Dataset, error) {
	if t.data == "" {
		return nil, errors.NewValidationError("data", "a data file is required", t.data)
	}
	delim, err := parseDelimiter(t.delim)
	if err != nil {
		return nil, err
	}
	return dataset.Load(t.data,
		dataset.WithDelimiter(delim),
		dataset.WithLabelColumn(t.label),
		dataset.WithLimit(t.limit),
		dataset.WithHeader(t.header),
	)
}

func parseDelimiter(s string) (rune, error) {
	switch s {
	case "ws", "whitespace":
		return dataset.Whitespace, nil
	case `\t`, "tab":
		return '\t', nil
	}
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 || size != len(s) {
		return 0, errors.NewValidationError("delim", "must be a single character or ws", s)
	}
	return r, nil
}

// logFlags configure pkg/log for one command run.
type logFlags struct {
	level  string
	format string
}

func (l *logFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&l.level, "log-level", "info", "debug, info, warn or error")
	fs.StringVar(&l.format, "log-format", log.FormatConsole, "console or json")
}

func (l *logFlags) setup() error {
	return log.SetupLogger(l.level, l.format)
}
