package metrics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfusionMatrix(t *testing.T) {
	yTrue := []int{-1, -1, -1, 1, 1, 1, 1}
	yPred := []int{-1, -1, 1, -1, 1, 1, 1}

	c, err := ConfusionMatrix(yTrue, yPred)
	require.NoError(t, err)

	assert.Equal(t, 2, c.TruePositives)
	assert.Equal(t, 1, c.FalseNegatives)
	assert.Equal(t, 1, c.FalsePositives)
	assert.Equal(t, 3, c.TrueNegatives)
}

func TestConfusionMatrixErrors(t *testing.T) {
	_, err := ConfusionMatrix([]int{1}, []int{1, -1})
	assert.Error(t, err)

	_, err = ConfusionMatrix([]int{0}, []int{1})
	assert.Error(t, err)

	_, err = ConfusionMatrix([]int{1}, []int{2})
	assert.Error(t, err)
}

func TestF1Score(t *testing.T) {
	t.Run("perfect predictions", func(t *testing.T) {
		y := []int{-1, 1, -1, 1, 1}
		f1, err := F1Score(y, y)
		require.NoError(t, err)
		assert.InDelta(t, 1.0, f1, 1e-12)
	})

	t.Run("known value", func(t *testing.T) {
		yTrue := []int{-1, -1, 1, 1}
		yPred := []int{-1, 1, 1, 1}
		// sensitivity 1/2, specificity 1 -> harmonic mean 2/3
		f1, err := F1Score(yTrue, yPred)
		require.NoError(t, err)
		assert.InDelta(t, 2.0/3.0, f1, 1e-12)
	})

	t.Run("no outliers in y", func(t *testing.T) {
		_, err := F1Score([]int{1, 1, 1}, []int{1, -1, 1})
		assert.ErrorIs(t, err, ErrUndefined)
	})

	t.Run("no inliers in y", func(t *testing.T) {
		_, err := F1Score([]int{-1, -1}, []int{-1, 1})
		assert.ErrorIs(t, err, ErrUndefined)
	})

	t.Run("everything misclassified", func(t *testing.T) {
		yTrue := []int{-1, 1}
		yPred := []int{1, -1}
		_, err := F1Score(yTrue, yPred)
		assert.ErrorIs(t, err, ErrUndefined)
	})
}

func TestROCCurve(t *testing.T) {
	t.Run("perfect separation", func(t *testing.T) {
		yTrue := []int{1, 1, -1, -1}
		yScore := []float64{0.1, 0.2, 0.8, 0.9}

		fpr, tpr, thresholds, err := ROCCurve(yTrue, yScore)
		require.NoError(t, err)

		assert.Equal(t, 0.0, fpr[0])
		assert.Equal(t, 0.0, tpr[0])
		assert.True(t, math.IsInf(thresholds[0], 1))
		assert.Equal(t, 1.0, fpr[len(fpr)-1])
		assert.Equal(t, 1.0, tpr[len(tpr)-1])
		assert.InDelta(t, 1.0, AUC(fpr, tpr), 1e-12)
	})

	t.Run("known partial ordering", func(t *testing.T) {
		yTrue := []int{1, 1, -1, -1}
		yScore := []float64{0.1, 0.4, 0.35, 0.8}

		fpr, tpr, _, err := ROCCurve(yTrue, yScore)
		require.NoError(t, err)
		assert.InDelta(t, 0.75, AUC(fpr, tpr), 1e-12)
	})

	t.Run("inverted scores", func(t *testing.T) {
		yTrue := []int{1, 1, -1, -1}
		yScore := []float64{0.9, 0.8, 0.2, 0.1}

		fpr, tpr, _, err := ROCCurve(yTrue, yScore)
		require.NoError(t, err)
		assert.InDelta(t, 0.0, AUC(fpr, tpr), 1e-12)
	})

	t.Run("tied scores collapse to one point", func(t *testing.T) {
		yTrue := []int{1, -1, 1, -1}
		yScore := []float64{0.5, 0.5, 0.5, 0.5}

		fpr, tpr, _, err := ROCCurve(yTrue, yScore)
		require.NoError(t, err)
		require.Len(t, fpr, 2)
		assert.InDelta(t, 0.5, AUC(fpr, tpr), 1e-12)
	})

	t.Run("single class", func(t *testing.T) {
		_, _, _, err := ROCCurve([]int{1, 1}, []float64{0.1, 0.2})
		assert.ErrorIs(t, err, ErrUndefined)
	})

	t.Run("length mismatch", func(t *testing.T) {
		_, _, _, err := ROCCurve([]int{1}, []float64{0.1, 0.2})
		assert.Error(t, err)
	})
}
