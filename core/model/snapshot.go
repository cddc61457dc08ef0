package model

import (
	"encoding/json"
	"math"

	"github.com/YuminosukeSato/vigp/pkg/errors"
)

// SnapshotVersion は PosteriorSnapshot の形式バージョン
const SnapshotVersion = "1"

// KernelParams はRBFカーネルのハイパーパラメータ
type KernelParams struct {
	Variance    float64 `json:"variance"`
	Lengthscale float64 `json:"lengthscale"`
}

// PosteriorSnapshot は学習済み変分事後分布のシリアライズ用表現
//
// GP分類器の予測には訓練入力そのものが必要なため、変分パラメータと一緒に保存する。
type PosteriorSnapshot struct {
	// ModelType はモデルの種類（VariationalGPClassifier等）
	ModelType string `json:"model_type"`

	// Version は形式バージョン（互換性チェック用）
	Version string `json:"version"`

	Kernel KernelParams `json:"kernel"`
	Jitter float64      `json:"jitter"`

	// TrainX は訓練入力（N × D）
	TrainX [][]float64 `json:"train_x"`

	// Means, Scales は q(f_i) = N(m_i, s_i^2) のパラメータ
	Means  []float64 `json:"means"`
	Scales []float64 `json:"scales"`

	LossHistory []float64 `json:"loss_history,omitempty"`

	// FeatureMean, FeatureScale は学習前に標準化した場合のスケーラー統計量
	FeatureMean  []float64 `json:"feature_mean,omitempty"`
	FeatureScale []float64 `json:"feature_scale,omitempty"`

	Hyperparameters map[string]interface{} `json:"hyperparameters"`
	Metadata        map[string]interface{} `json:"metadata,omitempty"`

	IsFitted bool `json:"is_fitted"`
}

// ToJSON は PosteriorSnapshot をJSON形式にシリアライズ
func (s *PosteriorSnapshot) ToJSON() ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

// FromJSON はJSON形式から PosteriorSnapshot をデシリアライズし、検証する
func (s *PosteriorSnapshot) FromJSON(data []byte) error {
	if err := json.Unmarshal(data, s); err != nil {
		return errors.Wrap(err, "decode posterior snapshot")
	}
	return s.Validate()
}

// Validate は PosteriorSnapshot の妥当性を検証
func (s *PosteriorSnapshot) Validate() error {
	if s.ModelType == "" {
		return errors.NewValidationError("model_type", "is required", s.ModelType)
	}
	if s.Version != SnapshotVersion {
		return errors.NewValidationError("version", "unsupported snapshot version", s.Version)
	}
	if !s.IsFitted {
		if len(s.Means) > 0 {
			return errors.NewValidationError("means", "unfitted snapshot should not carry variational parameters", len(s.Means))
		}
		return nil
	}

	n := len(s.TrainX)
	if n == 0 {
		return errors.NewValidationError("train_x", "fitted snapshot must have training inputs", n)
	}
	if len(s.Means) != n {
		return errors.NewDimensionError("PosteriorSnapshot.Validate", n, len(s.Means), 0)
	}
	if len(s.Scales) != n {
		return errors.NewDimensionError("PosteriorSnapshot.Validate", n, len(s.Scales), 0)
	}
	d := len(s.TrainX[0])
	for _, row := range s.TrainX {
		if len(row) != d {
			return errors.NewDimensionError("PosteriorSnapshot.Validate", d, len(row), 1)
		}
	}
	for _, sc := range s.Scales {
		if !(sc > 0) || math.IsInf(sc, 0) {
			return errors.NewValidationError("scales", "must be positive and finite", sc)
		}
	}
	if !(s.Kernel.Variance > 0) || !(s.Kernel.Lengthscale > 0) {
		return errors.NewValidationError("kernel", "variance and lengthscale must be positive", s.Kernel)
	}
	if (len(s.FeatureMean) > 0 || len(s.FeatureScale) > 0) && (len(s.FeatureMean) != d || len(s.FeatureScale) != d) {
		return errors.NewDimensionError("PosteriorSnapshot.Validate", d, len(s.FeatureMean), 1)
	}
	return nil
}

// Clone は PosteriorSnapshot のディープコピーを作成
func (s *PosteriorSnapshot) Clone() *PosteriorSnapshot {
	clone := &PosteriorSnapshot{
		ModelType:       s.ModelType,
		Version:         s.Version,
		Kernel:          s.Kernel,
		Jitter:          s.Jitter,
		IsFitted:        s.IsFitted,
		TrainX:          make([][]float64, len(s.TrainX)),
		Means:           append([]float64(nil), s.Means...),
		Scales:          append([]float64(nil), s.Scales...),
		LossHistory:     append([]float64(nil), s.LossHistory...),
		FeatureMean:     append([]float64(nil), s.FeatureMean...),
		FeatureScale:    append([]float64(nil), s.FeatureScale...),
		Hyperparameters: copyMap(s.Hyperparameters),
		Metadata:        copyMap(s.Metadata),
	}
	for i, row := range s.TrainX {
		clone.TrainX[i] = append([]float64(nil), row...)
	}
	return clone
}

func copyMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
