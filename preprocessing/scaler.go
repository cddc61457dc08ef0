// Package preprocessing provides feature scaling applied before fitting the
// Gaussian-process classifier.
package preprocessing

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/vigp/core/model"
	"github.com/YuminosukeSato/vigp/pkg/errors"
	"github.com/YuminosukeSato/vigp/pkg/log"
)

var _ model.Transformer = (*StandardScaler)(nil)

// minScale 未満の標準偏差はゼロ分散とみなし 1 に置き換える
const minScale = 1e-8

// StandardScaler はデータを平均0、標準偏差1に変換する
//
// RBF カーネルの lengthscale は全特徴量で共通なので、単位の異なる特徴量を
// 揃えてから学習すると効果的です。
type StandardScaler struct {
	state *model.StateManager

	// Mean は各特徴量の平均値
	Mean []float64
	// Scale は各特徴量の標準偏差（母分散ベース）
	Scale []float64

	// WithMean は平均を引くかどうか (デフォルト: true)
	WithMean bool
	// WithStd は標準偏差で割るかどうか (デフォルト: true)
	WithStd bool
}

// NewStandardScaler は新しいStandardScalerを作成する
//
// 使用例:
//
//	scaler := preprocessing.NewStandardScaler(true, true)
//	XScaled, err := scaler.FitTransform(X)
func NewStandardScaler(withMean, withStd bool) *StandardScaler {
	return &StandardScaler{
		state:    model.NewStateManager(),
		WithMean: withMean,
		WithStd:  withStd,
	}
}

// NewStandardScalerDefault はデフォルト設定でStandardScalerを作成する
func NewStandardScalerDefault() *StandardScaler {
	return NewStandardScaler(true, true)
}

// NewStandardScalerFromStats は保存済みの統計量から学習済みのスケーラーを復元する
func NewStandardScalerFromStats(mean, scale []float64) (*StandardScaler, error) {
	if len(mean) == 0 || len(mean) != len(scale) {
		return nil, errors.NewDimensionError("NewStandardScalerFromStats", len(mean), len(scale), 1)
	}
	for _, v := range scale {
		if !(v > 0) {
			return nil, errors.NewValidationError("scale", "must be positive", v)
		}
	}
	s := NewStandardScalerDefault()
	s.Mean = append([]float64(nil), mean...)
	s.Scale = append([]float64(nil), scale...)
	s.state.SetFitted(len(mean), 0)
	return s, nil
}

// Fit は訓練データから各特徴量の平均と標準偏差を計算する
func (s *StandardScaler) Fit(X mat.Matrix) error {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("StandardScaler.Fit", "empty data", errors.ErrEmptyData)
	}

	s.Mean = make([]float64, c)
	s.Scale = make([]float64, c)
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, X)
		mean, std := stat.PopMeanStdDev(col, nil)
		if s.WithMean {
			s.Mean[j] = mean
		}
		s.Scale[j] = 1
		if s.WithStd && std >= minScale {
			s.Scale[j] = std
		}
	}
	s.state.SetFitted(c, r)

	log.GetLoggerWithName("preprocessing").Debug("Scaler fitted",
		log.ModelNameKey, "StandardScaler",
		log.OperationKey, log.OperationFit,
		log.PhaseKey, log.PhasePreprocessing,
		log.SamplesKey, r,
		log.FeaturesKey, c,
	)
	return nil
}

// Transform は学習済みの統計情報を使ってデータを標準化する
func (s *StandardScaler) Transform(X mat.Matrix) (mat.Matrix, error) {
	return s.apply("Transform", X, func(v float64, j int) float64 {
		return (v - s.Mean[j]) / s.Scale[j]
	})
}

// FitTransform は訓練データで学習し、同じデータを変換する
func (s *StandardScaler) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.Fit(X); err != nil {
		return nil, err
	}
	return s.Transform(X)
}

// InverseTransform は標準化されたデータを元のスケールに戻す
func (s *StandardScaler) InverseTransform(X mat.Matrix) (mat.Matrix, error) {
	return s.apply("InverseTransform", X, func(v float64, j int) float64 {
		return v*s.Scale[j] + s.Mean[j]
	})
}

func (s *StandardScaler) apply(method string, X mat.Matrix, fn func(v float64, j int) float64) (mat.Matrix, error) {
	if err := s.state.RequireFitted("StandardScaler", method); err != nil {
		return nil, err
	}
	r, c := X.Dims()
	if err := s.state.RequireFeatures("StandardScaler."+method, c); err != nil {
		return nil, err
	}

	result := mat.NewDense(r, c, nil)
	result.Apply(func(i, j int, v float64) float64 { return fn(v, j) }, X)
	return result, nil
}

// IsFitted reports whether the scaler has statistics.
func (s *StandardScaler) IsFitted() bool {
	return s.state.IsFitted()
}

// GetParams はスケーラーのパラメータを取得する
func (s *StandardScaler) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"with_mean": s.WithMean,
		"with_std":  s.WithStd,
	}
}

// String はスケーラーの文字列表現を返す
func (s *StandardScaler) String() string {
	if !s.IsFitted() {
		return fmt.Sprintf("StandardScaler(with_mean=%t, with_std=%t)", s.WithMean, s.WithStd)
	}
	nFeatures, _ := s.state.GetDimensions()
	return fmt.Sprintf("StandardScaler(with_mean=%t, with_std=%t, n_features=%d)",
		s.WithMean, s.WithStd, nFeatures)
}
