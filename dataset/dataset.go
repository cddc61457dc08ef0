// Package dataset reads labeled feature tables for binary classification.
//
// A table has one label column and one or more numeric feature columns.
// Labels may be written as {0, 1} or {-1, 1}; the latter is converted to
// {0, 1} with a DataConversionWarning.
package dataset

import (
	"bufio"
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/samber/lo"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/vigp/pkg/errors"
)

// Whitespace selects whitespace-separated columns instead of a single delimiter rune.
const Whitespace = ' '

// Dataset is a labeled feature table.
type Dataset struct {
	// X holds the features, NSamples × NFeatures.
	X *mat.Dense
	// Y holds labels in {0, 1}.
	Y *mat.VecDense

	NSamples  int
	NFeatures int

	// Source is the file the table was read from, if any.
	Source string
}

// Option configures Read and Load.
type Option func(*readConfig)

type readConfig struct {
	delimiter   rune
	labelColumn int
	limit       int
	header      bool
}

func defaultReadConfig() readConfig {
	return readConfig{delimiter: ',', labelColumn: 0}
}

// WithDelimiter sets the column delimiter. Use Whitespace for runs of spaces or tabs.
func WithDelimiter(r rune) Option {
	return func(c *readConfig) { c.delimiter = r }
}

// WithLabelColumn sets the label column. Negative values count from the last column.
func WithLabelColumn(col int) Option {
	return func(c *readConfig) { c.labelColumn = col }
}

// WithLimit keeps only the first n data rows. n <= 0 keeps all rows.
func WithLimit(n int) Option {
	return func(c *readConfig) { c.limit = n }
}

// WithHeader skips the first non-comment row.
func WithHeader(skip bool) Option {
	return func(c *readConfig) { c.header = skip }
}

// Load reads a table from path.
func Load(path string, opts ...Option) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open dataset %s", path)
	}
	defer f.Close()

	ds, err := Read(f, opts...)
	if err != nil {
		return nil, errors.Wrapf(err, "read dataset %s", path)
	}
	ds.Source = path
	return ds, nil
}

// Read parses a table from r. Blank lines and lines starting with '#' are skipped.
func Read(r io.Reader, opts ...Option) (*Dataset, error) {
	cfg := defaultReadConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	records, lines, err := readRecords(r, cfg.delimiter)
	if err != nil {
		return nil, err
	}
	if cfg.header && len(records) > 0 {
		records, lines = records[1:], lines[1:]
	}
	if cfg.limit > 0 && len(records) > cfg.limit {
		records, lines = records[:cfg.limit], lines[:cfg.limit]
	}
	if len(records) == 0 {
		return nil, errors.WithStack(errors.ErrEmptyData)
	}

	nCols := len(records[0])
	if nCols < 2 {
		return nil, errors.NewValidationError("columns", "need one label column and at least one feature column", nCols)
	}
	labelCol := cfg.labelColumn
	if labelCol < 0 {
		labelCol += nCols
	}
	if labelCol < 0 || labelCol >= nCols {
		return nil, errors.NewValidationError("label_column", "out of range", cfg.labelColumn)
	}

	n, d := len(records), nCols-1
	X := mat.NewDense(n, d, nil)
	labels := make([]float64, n)
	for i, rec := range records {
		if len(rec) != nCols {
			return nil, errors.Wrapf(errors.NewDimensionError("dataset.Read", nCols, len(rec), 1), "line %d", lines[i])
		}
		j := 0
		for c, cell := range rec {
			v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
			if err != nil {
				return nil, errors.NewValueError("dataset.Read",
					"line "+strconv.Itoa(lines[i])+", column "+strconv.Itoa(c+1)+": cannot parse "+strconv.Quote(cell))
			}
			if c == labelCol {
				labels[i] = v
				continue
			}
			X.Set(i, j, v)
			j++
		}
	}

	if err := normalizeLabels(labels); err != nil {
		return nil, err
	}

	return &Dataset{
		X:         X,
		Y:         mat.NewVecDense(n, labels),
		NSamples:  n,
		NFeatures: d,
	}, nil
}

// readRecords returns the non-empty, non-comment records of r together with
// their 1-based line numbers.
func readRecords(r io.Reader, delimiter rune) ([][]string, []int, error) {
	if delimiter == Whitespace {
		var records [][]string
		var lines []int
		sc := bufio.NewScanner(r)
		for line := 1; sc.Scan(); line++ {
			text := strings.TrimSpace(sc.Text())
			if text == "" || strings.HasPrefix(text, "#") {
				continue
			}
			records = append(records, strings.Fields(text))
			lines = append(lines, line)
		}
		if err := sc.Err(); err != nil {
			return nil, nil, errors.Wrap(err, "scan table")
		}
		return records, lines, nil
	}

	cr := csv.NewReader(r)
	cr.Comma = delimiter
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var records [][]string
	var lines []int
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, errors.Wrap(err, "parse table")
		}
		line, _ := cr.FieldPos(0)
		records = append(records, rec)
		lines = append(lines, line)
	}
	return records, lines, nil
}

// normalizeLabels maps {-1, 1} to {0, 1} in place and rejects anything else.
func normalizeLabels(labels []float64) error {
	seen := lo.Uniq(labels)
	for _, v := range seen {
		if v != -1 && v != 0 && v != 1 {
			return errors.NewValidationError("label", "must be one of -1, 0, 1", v)
		}
	}
	if !lo.Contains(seen, -1) {
		return nil
	}
	if lo.Contains(seen, 0) {
		return errors.NewValidationError("label", "labels mix -1 and 0 encodings", seen)
	}
	for i, v := range labels {
		if v == -1 {
			labels[i] = 0
		}
	}
	errors.Warn(errors.NewDataConversionWarning("{-1,1}", "{0,1}", "negative class encoded as -1"))
	return nil
}

// Split returns the first n rows and the remaining rows as separate datasets.
// The remainder is nil when n equals the number of rows.
func (ds *Dataset) Split(n int) (head, tail *Dataset, err error) {
	if n <= 0 || n > ds.NSamples {
		return nil, nil, errors.NewValidationError("n", "must be in [1, NSamples]", n)
	}
	head = ds.slice(0, n)
	if n < ds.NSamples {
		tail = ds.slice(n, ds.NSamples)
	}
	return head, tail, nil
}

func (ds *Dataset) slice(from, to int) *Dataset {
	X := mat.DenseCopyOf(ds.X.Slice(from, to, 0, ds.NFeatures))
	Y := mat.NewVecDense(to-from, nil)
	Y.CopyVec(ds.Y.SliceVec(from, to))
	return &Dataset{X: X, Y: Y, NSamples: to - from, NFeatures: ds.NFeatures, Source: ds.Source}
}

// Labels returns a copy of the labels as a slice.
func (ds *Dataset) Labels() []float64 {
	out := make([]float64, ds.NSamples)
	for i := range out {
		out[i] = ds.Y.AtVec(i)
	}
	return out
}

// ClassCounts returns the number of rows labeled 0 and 1.
func (ds *Dataset) ClassCounts() (negative, positive int) {
	positive = lo.CountBy(ds.Labels(), func(v float64) bool { return v == 1 })
	return ds.NSamples - positive, positive
}
