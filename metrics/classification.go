// Package metrics provides evaluation metrics for binary classifiers.
package metrics

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/vigp/pkg/errors"
)

// logLossEps は log(0) を避けるための確率のクリップ幅
const logLossEps = 1e-15

// checkPair validates a label/prediction pair and returns its length.
func checkPair(op string, yTrue, yPred *mat.VecDense) (int, error) {
	if yTrue == nil || yPred == nil {
		return 0, errors.NewValueError(op, "nil vector")
	}
	n := yTrue.Len()
	if n == 0 {
		return 0, errors.NewValueError(op, "empty vector")
	}
	if yPred.Len() != n {
		return 0, errors.NewDimensionError(op, n, yPred.Len(), 0)
	}
	return n, nil
}

// checkBinary は正解ラベルが 0/1 のみであることを検証する
func checkBinary(op string, yTrue *mat.VecDense) error {
	for i := 0; i < yTrue.Len(); i++ {
		if v := yTrue.AtVec(i); v != 0 && v != 1 {
			return errors.NewValidationError("y_true", op+" requires binary labels in {0, 1}", v)
		}
	}
	return nil
}

// Accuracy returns the fraction of exactly matching labels.
func Accuracy(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("Accuracy", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	correct := 0
	for i := 0; i < n; i++ {
		if yTrue.AtVec(i) == yPred.AtVec(i) {
			correct++
		}
	}
	return float64(correct) / float64(n), nil
}

// ClassificationError は 1 - Accuracy
func ClassificationError(yTrue, yPred *mat.VecDense) (float64, error) {
	acc, err := Accuracy(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return 1 - acc, nil
}

// BinaryLogLoss computes the mean negative log-likelihood of labels in {0, 1}
// under predicted probabilities of the positive class. Probabilities are
// clipped to [1e-15, 1-1e-15].
func BinaryLogLoss(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("BinaryLogLoss", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	if err := checkBinary("BinaryLogLoss", yTrue); err != nil {
		return 0, err
	}

	losses := make([]float64, n)
	for i := range losses {
		p := errors.ClipValue(yPred.AtVec(i), logLossEps, 1-logLossEps)
		if yTrue.AtVec(i) == 1 {
			losses[i] = -math.Log(p)
		} else {
			losses[i] = -math.Log(1 - p)
		}
	}
	return floats.Sum(losses) / float64(n), nil
}

// BrierScore は正例確率の平均二乗誤差
func BrierScore(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("BrierScore", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	if err := checkBinary("BrierScore", yTrue); err != nil {
		return 0, err
	}
	diff := make([]float64, n)
	for i := range diff {
		diff[i] = yTrue.AtVec(i) - yPred.AtVec(i)
	}
	return floats.Dot(diff, diff) / float64(n), nil
}

// AUC computes the area under the ROC curve with the rank-sum (Mann–Whitney)
// formulation. Tied scores receive their average rank.
//
// AUC is undefined when yTrue holds a single class; in that case an
// UndefinedMetricWarning is raised and 0.5 is returned.
func AUC(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("AUC", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	if err := checkBinary("AUC", yTrue); err != nil {
		return 0, err
	}

	nPos := 0
	for i := 0; i < n; i++ {
		if yTrue.AtVec(i) == 1 {
			nPos++
		}
	}
	nNeg := n - nPos
	if nPos == 0 || nNeg == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning("AUC", "only one class present in y_true", 0.5))
		return 0.5, nil
	}

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return yPred.AtVec(idx[a]) < yPred.AtVec(idx[b]) })

	// 同順位には平均順位を割り当てる
	var rankSumPos float64
	for i := 0; i < n; {
		j := i
		for j+1 < n && yPred.AtVec(idx[j+1]) == yPred.AtVec(idx[i]) {
			j++
		}
		avgRank := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			if yTrue.AtVec(idx[k]) == 1 {
				rankSumPos += avgRank
			}
		}
		i = j + 1
	}

	p, q := float64(nPos), float64(nNeg)
	return (rankSumPos - p*(p+1)/2) / (p * q), nil
}

// AUCMatrix computes AUC from the first column of matrix inputs.
func AUCMatrix(yTrue, yPred mat.Matrix) (float64, error) {
	t, err := firstColumn("AUCMatrix", yTrue)
	if err != nil {
		return 0, err
	}
	p, err := firstColumn("AUCMatrix", yPred)
	if err != nil {
		return 0, err
	}
	return AUC(t, p)
}

func firstColumn(op string, m mat.Matrix) (*mat.VecDense, error) {
	if m == nil {
		return nil, errors.NewValueError(op, "nil matrix")
	}
	if d, ok := m.(*mat.Dense); ok && d.IsEmpty() {
		return nil, errors.NewValueError(op, "empty matrix")
	}
	r, _ := m.Dims()
	return mat.NewVecDense(r, mat.Col(nil, 0, m)), nil
}
