package detector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deltat99/kenchi/pkg/metrics"
)

// firstFeature scores each sample by its first feature and uses a fixed
// threshold once fitted.
type firstFeature struct {
	fitted    bool
	threshold float64
}

func (s *firstFeature) Fit(X [][]float64) error {
	if err := CheckMatrix(X); err != nil {
		return err
	}
	s.fitted = true
	return nil
}

func (s *firstFeature) AnomalyScore(X [][]float64) ([]float64, error) {
	if !s.fitted {
		return nil, ErrNotFitted
	}
	scores := make([]float64, len(X))
	for i, row := range X {
		scores[i] = row[0]
	}
	return scores, nil
}

func (s *firstFeature) Threshold() (float64, error) {
	if !s.fitted {
		return 0, ErrNotFitted
	}
	return s.threshold, nil
}

// perFeature additionally exposes per-feature scores with unit thresholds.
type perFeature struct {
	firstFeature
}

func (s *perFeature) FeatureAnomalyScore(X [][]float64) ([][]float64, error) {
	if !s.fitted {
		return nil, ErrNotFitted
	}
	return X, nil
}

func (s *perFeature) FeatureThresholds() ([]float64, error) {
	if !s.fitted {
		return nil, ErrNotFitted
	}
	return []float64{1, 1}, nil
}

func TestPredictConvention(t *testing.T) {
	d := &firstFeature{threshold: 0.5}
	X := [][]float64{{0.1}, {0.5}, {0.9}}
	require.NoError(t, d.Fit(X))

	labels, err := Predict(d, X)
	require.NoError(t, err)

	// Scores at the threshold are inliers; only the two label values occur.
	assert.Equal(t, []int{Inlier, Inlier, Outlier}, labels)
	for _, label := range labels {
		assert.Contains(t, []int{Inlier, Outlier}, label)
	}
}

func TestPredictBeforeFit(t *testing.T) {
	d := &firstFeature{threshold: 0.5}

	_, err := Predict(d, [][]float64{{1}})
	assert.ErrorIs(t, err, ErrNotFitted)

	_, err = PredictThreshold(d, [][]float64{{1}}, 0.2)
	assert.ErrorIs(t, err, ErrNotFitted)
}

func TestPredictThresholdOverride(t *testing.T) {
	d := &firstFeature{threshold: 0.5}
	X := [][]float64{{0.1}, {0.3}, {0.9}}
	require.NoError(t, d.Fit(X))

	labels, err := PredictThreshold(d, X, 0.2)
	require.NoError(t, err)

	// The fitted threshold of 0.5 would keep 0.3 an inlier; the override
	// must win exactly.
	assert.Equal(t, []int{Inlier, Outlier, Outlier}, labels)
}

func TestFitPredictMatchesComposition(t *testing.T) {
	X := [][]float64{{0.2}, {0.7}, {0.4}}

	composed := &firstFeature{threshold: 0.5}
	require.NoError(t, composed.Fit(X))
	want, err := Predict(composed, X)
	require.NoError(t, err)

	direct := &firstFeature{threshold: 0.5}
	got, err := FitPredict(direct, X)
	require.NoError(t, err)

	assert.Equal(t, want, got)
}

func TestPredictFeaturewise(t *testing.T) {
	d := &perFeature{}
	X := [][]float64{
		{0.5, 0.5}, // all features below threshold
		{0.5, 1.5}, // one feature above is enough
		{2.0, 2.0},
	}
	require.NoError(t, d.Fit(X))

	labels, err := Predict(d, X)
	require.NoError(t, err)
	assert.Equal(t, []int{Inlier, Outlier, Outlier}, labels)
}

func TestScore(t *testing.T) {
	d := &firstFeature{threshold: 0.5}
	X := [][]float64{{0.1}, {0.2}, {0.9}, {0.8}}
	require.NoError(t, d.Fit(X))

	t.Run("perfect predictions", func(t *testing.T) {
		y := []int{Inlier, Inlier, Outlier, Outlier}
		f1, err := Score(d, X, y)
		require.NoError(t, err)
		assert.InDelta(t, 1.0, f1, 1e-12)
	})

	t.Run("absent class errors", func(t *testing.T) {
		y := []int{Inlier, Inlier, Inlier, Inlier}
		_, err := Score(d, X, y)
		assert.ErrorIs(t, err, metrics.ErrUndefined)
	})
}

func TestCheckMatrix(t *testing.T) {
	tests := []struct {
		name    string
		X       [][]float64
		wantErr error
	}{
		{name: "empty", X: nil, wantErr: ErrEmptyData},
		{name: "no features", X: [][]float64{{}}, wantErr: ErrEmptyData},
		{name: "ragged", X: [][]float64{{1, 2}, {3}}, wantErr: ErrFeatureMismatch},
		{name: "valid", X: [][]float64{{1, 2}, {3, 4}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckMatrix(tt.X)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	t.Run("non-finite", func(t *testing.T) {
		nan := 0.0
		nan /= nan
		assert.Error(t, CheckMatrix([][]float64{{1, nan}}))
	})
}

func TestCheckXY(t *testing.T) {
	X := [][]float64{{1}, {2}}

	assert.NoError(t, CheckXY(X, []int{Inlier, Outlier}))
	assert.ErrorIs(t, CheckXY(X, []int{Inlier}), ErrLengthMismatch)
	assert.Error(t, CheckXY(X, []int{Inlier, 0}))
}
