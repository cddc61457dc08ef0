package model

import (
	"context"

	"gonum.org/v1/gonum/mat"
)

// Fitter は学習可能なモデルのインターフェース
type Fitter interface {
	// Fit はモデルを訓練データで学習させる
	Fit(X, y mat.Matrix) error
}

// ContextFitter はキャンセル可能な学習をサポートするモデルのインターフェース
type ContextFitter interface {
	FitContext(ctx context.Context, X, y mat.Matrix) error
}

// Predictor は予測可能なモデルのインターフェース
type Predictor interface {
	// Predict は入力データに対する予測を行う
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// Scorer is the interface for models that can compute a score.
type Scorer interface {
	// Score returns the mean accuracy on the given data and labels.
	Score(X, y mat.Matrix) (float64, error)
}

// Classifier combines interfaces for classification models.
type Classifier interface {
	Fitter
	Predictor
	Scorer

	// PredictProba returns probability estimates for each class.
	PredictProba(X mat.Matrix) (mat.Matrix, error)

	// Classes returns the class labels in the column order of PredictProba.
	Classes() []int
}

// Transformer はデータ変換のインターフェース
type Transformer interface {
	// Fit は変換に必要なパラメータを学習する
	Fit(X mat.Matrix) error

	// Transform はデータを変換する
	Transform(X mat.Matrix) (mat.Matrix, error)

	// FitTransform はFitとTransformを同時に実行する
	FitTransform(X mat.Matrix) (mat.Matrix, error)
}

// ParameterGetter is the interface for models that expose their hyperparameters.
type ParameterGetter interface {
	GetParams() map[string]interface{}
}

// ParameterSetter is the interface for models that allow hyperparameter modification.
type ParameterSetter interface {
	SetParams(params map[string]interface{}) error
}

// Snapshotter is implemented by models whose fitted state can be exported
// to and restored from a PosteriorSnapshot.
type Snapshotter interface {
	Snapshot() (*PosteriorSnapshot, error)
	Restore(s *PosteriorSnapshot) error
}
