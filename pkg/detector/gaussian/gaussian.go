// Package gaussian implements a per-feature z-score outlier detector.
//
// Each feature is modeled independently with its training mean and standard
// deviation. A sample's anomaly score is its largest absolute z-score across
// features, and per-feature thresholds allow featurewise classification.
package gaussian

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"gonum.org/v1/gonum/stat"

	"github.com/deltat99/kenchi/pkg/detector"
)

// Detector scores samples by their absolute z-scores.
type Detector struct {
	mu sync.RWMutex

	quantile float64

	means      []float64
	stddevs    []float64
	thresholds []float64
	threshold  float64
	fitted     bool
}

// Option configures a Detector.
type Option func(*Detector)

// WithQuantile sets the training-score quantile used as the decision
// threshold, both per feature and overall.
func WithQuantile(q float64) Option {
	return func(d *Detector) { d.quantile = q }
}

// New creates a z-score detector. Parameter validity is checked by Fit.
func New(opts ...Option) *Detector {
	d := &Detector{quantile: 0.99}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Detector) checkParams() error {
	if d.quantile <= 0 || d.quantile > 1 {
		return fmt.Errorf("quantile must be in (0, 1], got %g: %w", d.quantile, detector.ErrInvalidParam)
	}
	return nil
}

// Fit learns per-feature means, standard deviations and thresholds from X.
func (d *Detector) Fit(X [][]float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.checkParams(); err != nil {
		return err
	}
	if err := detector.CheckMatrix(X); err != nil {
		return err
	}

	nFeatures := len(X[0])
	d.means = make([]float64, nFeatures)
	d.stddevs = make([]float64, nFeatures)
	d.thresholds = make([]float64, nFeatures)

	column := make([]float64, len(X))
	for j := 0; j < nFeatures; j++ {
		for i, row := range X {
			column[i] = row[j]
		}
		d.means[j] = stat.Mean(column, nil)
		d.stddevs[j] = stat.StdDev(column, nil)
		if d.stddevs[j] == 0 || math.IsNaN(d.stddevs[j]) {
			// Constant feature (or a single sample): any deviation counts.
			d.stddevs[j] = 1
		}
	}
	d.fitted = true

	featureScores := d.featureScores(X)
	scores := make([]float64, len(X))
	columnScores := make([]float64, len(X))
	for j := 0; j < nFeatures; j++ {
		for i := range featureScores {
			columnScores[i] = featureScores[i][j]
			if featureScores[i][j] > scores[i] {
				scores[i] = featureScores[i][j]
			}
		}
		sort.Float64s(columnScores)
		d.thresholds[j] = stat.Quantile(d.quantile, stat.Empirical, columnScores, nil)
	}
	sort.Float64s(scores)
	d.threshold = stat.Quantile(d.quantile, stat.Empirical, scores, nil)

	return nil
}

// AnomalyScore returns the largest absolute z-score per row of X.
func (d *Detector) AnomalyScore(X [][]float64) ([]float64, error) {
	featureScores, err := d.FeatureAnomalyScore(X)
	if err != nil {
		return nil, err
	}

	scores := make([]float64, len(featureScores))
	for i, row := range featureScores {
		for _, s := range row {
			if s > scores[i] {
				scores[i] = s
			}
		}
	}
	return scores, nil
}

// FeatureAnomalyScore returns the absolute z-score of every cell of X.
func (d *Detector) FeatureAnomalyScore(X [][]float64) ([][]float64, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if !d.fitted {
		return nil, detector.ErrNotFitted
	}
	if err := detector.CheckMatrix(X); err != nil {
		return nil, err
	}
	if len(X[0]) != len(d.means) {
		return nil, fmt.Errorf("fitted on %d features, got %d: %w",
			len(d.means), len(X[0]), detector.ErrFeatureMismatch)
	}
	return d.featureScores(X), nil
}

func (d *Detector) featureScores(X [][]float64) [][]float64 {
	scores := make([][]float64, len(X))
	for i, row := range X {
		scores[i] = make([]float64, len(row))
		for j, v := range row {
			scores[i][j] = math.Abs(v-d.means[j]) / d.stddevs[j]
		}
	}
	return scores
}

// Threshold returns the overall decision threshold learned during Fit.
func (d *Detector) Threshold() (float64, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if !d.fitted {
		return 0, detector.ErrNotFitted
	}
	return d.threshold, nil
}

// FeatureThresholds returns the per-feature decision thresholds.
func (d *Detector) FeatureThresholds() ([]float64, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if !d.fitted {
		return nil, detector.ErrNotFitted
	}
	out := make([]float64, len(d.thresholds))
	copy(out, d.thresholds)
	return out, nil
}
