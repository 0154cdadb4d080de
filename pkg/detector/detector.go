// Package detector defines the common contract for outlier detectors and the
// default prediction logic shared by all of them.
//
// A detector is fitted once on training data and queried any number of times
// afterwards. Labels follow a single convention throughout the module:
// Inlier (1) for normal samples and Outlier (-1) for anomalous ones.
package detector

import (
	"errors"
	"fmt"
	"math"

	"github.com/deltat99/kenchi/pkg/metrics"
)

// Label values returned by Predict.
const (
	// Inlier marks a sample at or below the decision threshold.
	Inlier = 1
	// Outlier marks a sample above the decision threshold.
	Outlier = -1
)

var (
	// ErrNotFitted is returned when prediction is attempted before Fit.
	ErrNotFitted = errors.New("detector is not fitted")

	// ErrInvalidParam is returned by Fit when the detector was constructed
	// with an invalid parameter combination.
	ErrInvalidParam = errors.New("invalid parameter")

	// ErrEmptyData is returned when a data matrix has no rows.
	ErrEmptyData = errors.New("empty data")

	// ErrFeatureMismatch is returned when rows have inconsistent widths or
	// the feature count differs from the fitted one.
	ErrFeatureMismatch = errors.New("feature count mismatch")

	// ErrLengthMismatch is returned when X and y disagree on sample count.
	ErrLengthMismatch = errors.New("sample count mismatch between X and y")
)

// Detector is the common interface for all outlier detection algorithms.
type Detector interface {
	// Fit trains the detector on historical data.
	// X is a 2D slice where each row is a sample and each column is a feature.
	Fit(X [][]float64) error

	// AnomalyScore returns one score per row of X. Higher values indicate
	// more anomalous samples. Returns ErrNotFitted before Fit.
	AnomalyScore(X [][]float64) ([]float64, error)

	// Threshold returns the decision threshold learned during Fit.
	// Returns ErrNotFitted before Fit.
	Threshold() (float64, error)
}

// FeaturewiseDetector is implemented by detectors that score each feature
// independently. Predict classifies a sample as an outlier when any feature
// score exceeds its per-feature threshold.
type FeaturewiseDetector interface {
	Detector

	// FeatureAnomalyScore returns one score per feature per row of X.
	FeatureAnomalyScore(X [][]float64) ([][]float64, error)

	// FeatureThresholds returns the per-feature decision thresholds learned
	// during Fit. Returns ErrNotFitted before Fit.
	FeatureThresholds() ([]float64, error)
}

// Predict classifies each row of X using the detector's fitted threshold.
// It returns Inlier for samples scoring at or below the threshold and
// Outlier above it. Detectors implementing FeaturewiseDetector are
// classified feature by feature instead.
func Predict(d Detector, X [][]float64) ([]int, error) {
	if fd, ok := d.(FeaturewiseDetector); ok {
		return predictFeaturewise(fd, X)
	}

	threshold, err := d.Threshold()
	if err != nil {
		return nil, err
	}
	return PredictThreshold(d, X, threshold)
}

// PredictThreshold classifies each row of X against the given threshold,
// ignoring the fitted one. The detector must still be fitted so that scores
// can be computed.
func PredictThreshold(d Detector, X [][]float64, threshold float64) ([]int, error) {
	scores, err := d.AnomalyScore(X)
	if err != nil {
		return nil, err
	}

	labels := make([]int, len(scores))
	for i, s := range scores {
		if s <= threshold {
			labels[i] = Inlier
		} else {
			labels[i] = Outlier
		}
	}
	return labels, nil
}

func predictFeaturewise(d FeaturewiseDetector, X [][]float64) ([]int, error) {
	thresholds, err := d.FeatureThresholds()
	if err != nil {
		return nil, err
	}

	scores, err := d.FeatureAnomalyScore(X)
	if err != nil {
		return nil, err
	}

	labels := make([]int, len(scores))
	for i, row := range scores {
		if len(row) != len(thresholds) {
			return nil, fmt.Errorf("row %d has %d scores for %d thresholds: %w",
				i, len(row), len(thresholds), ErrFeatureMismatch)
		}

		labels[i] = Inlier
		for j, s := range row {
			if s > thresholds[j] {
				labels[i] = Outlier
				break
			}
		}
	}
	return labels, nil
}

// FitPredict fits the detector on X and classifies the same samples.
func FitPredict(d Detector, X [][]float64) ([]int, error) {
	if err := d.Fit(X); err != nil {
		return nil, err
	}
	return Predict(d, X)
}

// Score fits nothing; it classifies X with the fitted detector and returns
// the F1 score against the true labels y. Returns metrics.ErrUndefined when
// a class is entirely absent from y.
func Score(d Detector, X [][]float64, y []int) (float64, error) {
	if err := CheckXY(X, y); err != nil {
		return 0, err
	}

	pred, err := Predict(d, X)
	if err != nil {
		return 0, err
	}
	return metrics.F1Score(y, pred)
}

// CheckMatrix validates that X is non-empty, rectangular and finite.
func CheckMatrix(X [][]float64) error {
	if len(X) == 0 {
		return ErrEmptyData
	}

	width := len(X[0])
	if width == 0 {
		return fmt.Errorf("rows have no features: %w", ErrEmptyData)
	}

	for i, row := range X {
		if len(row) != width {
			return fmt.Errorf("row %d has %d features, row 0 has %d: %w",
				i, len(row), width, ErrFeatureMismatch)
		}
		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("non-finite value at row %d column %d", i, j)
			}
		}
	}
	return nil
}

// CheckXY validates X and checks that y holds one label per row of X, each
// drawn from {Inlier, Outlier}.
func CheckXY(X [][]float64, y []int) error {
	if err := CheckMatrix(X); err != nil {
		return err
	}
	if len(X) != len(y) {
		return fmt.Errorf("%d samples, %d labels: %w", len(X), len(y), ErrLengthMismatch)
	}
	for i, label := range y {
		if label != Inlier && label != Outlier {
			return fmt.Errorf("label %d at index %d: want %d or %d", label, i, Inlier, Outlier)
		}
	}
	return nil
}
