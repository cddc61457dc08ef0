package dataset

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/vigp/pkg/errors"
)

// captureWarnings routes warnings into a slice for the duration of the test.
func captureWarnings(t *testing.T) *[]error {
	t.Helper()
	var got []error
	errors.SetWarningHandler(func(w error) { got = append(got, w) })
	t.Cleanup(func() { errors.SetWarningHandler(nil) })
	return &got
}

func TestLoad_TrainingFile(t *testing.T) {
	warnings := captureWarnings(t)

	ds, err := Load("testdata/binary_train.txt")
	require.NoError(t, err)

	assert.Equal(t, 40, ds.NSamples)
	assert.Equal(t, 5, ds.NFeatures)
	assert.Equal(t, "testdata/binary_train.txt", ds.Source)

	r, c := ds.X.Dims()
	assert.Equal(t, 40, r)
	assert.Equal(t, 5, c)
	assert.InDelta(t, 1.098, ds.X.At(0, 0), 1e-12)
	assert.InDelta(t, 0.428, ds.X.At(0, 4), 1e-12)

	// 先頭行は 1, 2 行目は -1 → 0
	assert.Equal(t, 1.0, ds.Y.AtVec(0))
	assert.Equal(t, 0.0, ds.Y.AtVec(1))

	neg, pos := ds.ClassCounts()
	assert.Equal(t, 20, neg)
	assert.Equal(t, 20, pos)

	require.Len(t, *warnings, 1)
	var conv *errors.DataConversionWarning
	assert.True(t, errors.As((*warnings)[0], &conv))
}

func TestLoad_Limit(t *testing.T) {
	captureWarnings(t)

	ds, err := Load("testdata/binary_train.txt", WithLimit(25))
	require.NoError(t, err)
	assert.Equal(t, 25, ds.NSamples)
	assert.Equal(t, 5, ds.NFeatures)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("testdata/does_not_exist.txt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does_not_exist.txt")
}

func TestRead_ZeroOneLabelsNoWarning(t *testing.T) {
	warnings := captureWarnings(t)

	in := "0,1.0,2.0\n1,3.0,4.0\n"
	ds, err := Read(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1}, ds.Labels())
	assert.Empty(t, *warnings)
}

func TestRead_Options(t *testing.T) {
	tests := []struct {
		name  string
		input string
		opts  []Option
		wantX [][]float64
		wantY []float64
	}{
		{
			name:  "whitespace delimited",
			input: "1  0.5\t0.25\n0 1.5 2.5\n",
			opts:  []Option{WithDelimiter(Whitespace)},
			wantX: [][]float64{{0.5, 0.25}, {1.5, 2.5}},
			wantY: []float64{1, 0},
		},
		{
			name:  "label in last column",
			input: "0.5,0.25,1\n1.5,2.5,0\n",
			opts:  []Option{WithLabelColumn(-1)},
			wantX: [][]float64{{0.5, 0.25}, {1.5, 2.5}},
			wantY: []float64{1, 0},
		},
		{
			name:  "header and comments",
			input: "# generated\nlabel,a,b\n\n1,0.5,0.25\n# trailing\n0,1.5,2.5\n",
			opts:  []Option{WithHeader(true)},
			wantX: [][]float64{{0.5, 0.25}, {1.5, 2.5}},
			wantY: []float64{1, 0},
		},
		{
			name:  "semicolon delimited middle label",
			input: "0.5;1;0.25\n1.5;0;2.5\n",
			opts:  []Option{WithDelimiter(';'), WithLabelColumn(1)},
			wantX: [][]float64{{0.5, 0.25}, {1.5, 2.5}},
			wantY: []float64{1, 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds, err := Read(strings.NewReader(tt.input), tt.opts...)
			require.NoError(t, err)
			require.Equal(t, len(tt.wantX), ds.NSamples)
			for i, row := range tt.wantX {
				for j, v := range row {
					assert.Equal(t, v, ds.X.At(i, j), "X[%d][%d]", i, j)
				}
			}
			assert.Equal(t, tt.wantY, ds.Labels())
		})
	}
}

func TestRead_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		opts  []Option
		check func(t *testing.T, err error)
	}{
		{
			name:  "empty input",
			input: "# only a comment\n\n",
			check: func(t *testing.T, err error) {
				assert.True(t, errors.Is(err, errors.ErrEmptyData))
			},
		},
		{
			name:  "ragged rows",
			input: "1,0.5,0.25\n0,1.5\n",
			check: func(t *testing.T, err error) {
				var dimErr *errors.DimensionError
				require.True(t, errors.As(err, &dimErr))
				assert.Equal(t, 3, dimErr.Expected)
				assert.Equal(t, 2, dimErr.Got)
				assert.Contains(t, err.Error(), "line 2")
			},
		},
		{
			name:  "non numeric cell",
			input: "1,0.5,0.25\n0,abc,2.5\n",
			check: func(t *testing.T, err error) {
				var valErr *errors.ValueError
				require.True(t, errors.As(err, &valErr))
				assert.Contains(t, err.Error(), "line 2, column 2")
			},
		},
		{
			name:  "single column",
			input: "1\n0\n",
			check: func(t *testing.T, err error) {
				var vErr *errors.ValidationError
				require.True(t, errors.As(err, &vErr))
				assert.Equal(t, "columns", vErr.ParamName)
			},
		},
		{
			name:  "label out of set",
			input: "2,0.5\n0,1.5\n",
			check: func(t *testing.T, err error) {
				var vErr *errors.ValidationError
				require.True(t, errors.As(err, &vErr))
				assert.Equal(t, "label", vErr.ParamName)
			},
		},
		{
			name:  "mixed label encodings",
			input: "-1,0.5\n0,1.5\n1,2.5\n",
			check: func(t *testing.T, err error) {
				var vErr *errors.ValidationError
				require.True(t, errors.As(err, &vErr))
				assert.Contains(t, vErr.Reason, "mix")
			},
		},
		{
			name:  "label column out of range",
			input: "1,0.5\n0,1.5\n",
			opts:  []Option{WithLabelColumn(5)},
			check: func(t *testing.T, err error) {
				var vErr *errors.ValidationError
				require.True(t, errors.As(err, &vErr))
				assert.Equal(t, "label_column", vErr.ParamName)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Read(strings.NewReader(tt.input), tt.opts...)
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestDataset_Split(t *testing.T) {
	captureWarnings(t)

	ds, err := Load("testdata/binary_train.txt")
	require.NoError(t, err)

	head, tail, err := ds.Split(25)
	require.NoError(t, err)
	assert.Equal(t, 25, head.NSamples)
	require.NotNil(t, tail)
	assert.Equal(t, 15, tail.NSamples)
	assert.Equal(t, ds.X.At(25, 0), tail.X.At(0, 0))
	assert.Equal(t, ds.Y.AtVec(25), tail.Y.AtVec(0))

	// 分割後のデータは元データと独立している
	head.X.Set(0, 0, -100)
	assert.NotEqual(t, -100.0, ds.X.At(0, 0))

	all, rest, err := ds.Split(ds.NSamples)
	require.NoError(t, err)
	assert.Equal(t, ds.NSamples, all.NSamples)
	assert.Nil(t, rest)

	_, _, err = ds.Split(0)
	assert.Error(t, err)
	_, _, err = ds.Split(41)
	assert.Error(t, err)
}
