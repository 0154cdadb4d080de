// Package metrics provides evaluation metrics for outlier detection.
//
// The outlier label (-1) is treated as the positive class throughout.
package metrics

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// positive is the outlier label; kept local so the package does not depend
// on the detector contract.
const (
	positive = -1
	negative = 1
)

// ErrUndefined is returned when a metric has no defined value, for example
// F1 when one class is entirely absent.
var ErrUndefined = errors.New("metric undefined")

// Confusion holds the four cells of a binary confusion matrix with the
// outlier label (-1) as the positive class.
type Confusion struct {
	TruePositives  int
	FalseNegatives int
	FalsePositives int
	TrueNegatives  int
}

// ConfusionMatrix tallies predictions against true labels. Labels outside
// {1, -1} are rejected.
func ConfusionMatrix(yTrue, yPred []int) (Confusion, error) {
	var c Confusion

	if len(yTrue) != len(yPred) {
		return c, fmt.Errorf("%d true labels, %d predictions", len(yTrue), len(yPred))
	}

	for i := range yTrue {
		if err := checkLabel(yTrue[i]); err != nil {
			return c, fmt.Errorf("true label at index %d: %w", i, err)
		}
		if err := checkLabel(yPred[i]); err != nil {
			return c, fmt.Errorf("prediction at index %d: %w", i, err)
		}

		switch {
		case yTrue[i] == positive && yPred[i] == positive:
			c.TruePositives++
		case yTrue[i] == positive && yPred[i] == negative:
			c.FalseNegatives++
		case yTrue[i] == negative && yPred[i] == positive:
			c.FalsePositives++
		default:
			c.TrueNegatives++
		}
	}
	return c, nil
}

// F1Score returns the harmonic mean of sensitivity (outlier recall) and
// specificity (inlier recall). Returns ErrUndefined when either class is
// absent from yTrue, or when both rates are zero.
func F1Score(yTrue, yPred []int) (float64, error) {
	c, err := ConfusionMatrix(yTrue, yPred)
	if err != nil {
		return 0, err
	}

	if c.TruePositives+c.FalseNegatives == 0 {
		return 0, fmt.Errorf("no outliers in y: %w", ErrUndefined)
	}
	if c.FalsePositives+c.TrueNegatives == 0 {
		return 0, fmt.Errorf("no inliers in y: %w", ErrUndefined)
	}

	sensitivity := float64(c.TruePositives) / float64(c.TruePositives+c.FalseNegatives)
	specificity := float64(c.TrueNegatives) / float64(c.FalsePositives+c.TrueNegatives)

	if sensitivity+specificity == 0 {
		return 0, fmt.Errorf("both class recalls are zero: %w", ErrUndefined)
	}
	return 2 * sensitivity * specificity / (sensitivity + specificity), nil
}

// ROCCurve computes the receiver operating characteristic for anomaly
// scores, where higher scores indicate the positive (-1) class. The returned
// slices start at (0, 0) and end at (1, 1); thresholds[i] is the score above
// which a sample is called positive at point i, starting at +Inf.
// Returns ErrUndefined when yTrue contains a single class.
func ROCCurve(yTrue []int, yScore []float64) (fpr, tpr, thresholds []float64, err error) {
	if len(yTrue) != len(yScore) {
		return nil, nil, nil, fmt.Errorf("%d labels, %d scores", len(yTrue), len(yScore))
	}

	var pos, neg int
	for i, label := range yTrue {
		if err := checkLabel(label); err != nil {
			return nil, nil, nil, fmt.Errorf("label at index %d: %w", i, err)
		}
		if label == positive {
			pos++
		} else {
			neg++
		}
	}
	if pos == 0 || neg == 0 {
		return nil, nil, nil, fmt.Errorf("roc needs both classes in y: %w", ErrUndefined)
	}

	order := make([]int, len(yScore))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		return yScore[order[a]] > yScore[order[b]]
	})

	fpr = []float64{0}
	tpr = []float64{0}
	thresholds = []float64{math.Inf(1)}

	var tp, fp int
	for k, idx := range order {
		if yTrue[idx] == positive {
			tp++
		} else {
			fp++
		}

		// Emit a point only once all samples tied at this score are consumed.
		if k+1 < len(order) && yScore[order[k+1]] == yScore[idx] {
			continue
		}

		fpr = append(fpr, float64(fp)/float64(neg))
		tpr = append(tpr, float64(tp)/float64(pos))
		thresholds = append(thresholds, yScore[idx])
	}
	return fpr, tpr, thresholds, nil
}

// AUC returns the area under a curve given by x and y using the trapezoidal
// rule. x must be non-decreasing, which ROCCurve guarantees for its fpr.
func AUC(x, y []float64) float64 {
	var area float64
	for i := 1; i < len(x) && i < len(y); i++ {
		area += (x[i] - x[i-1]) * (y[i] + y[i-1]) / 2
	}
	return area
}

func checkLabel(label int) error {
	if label != positive && label != negative {
		return fmt.Errorf("label %d outside {%d, %d}", label, negative, positive)
	}
	return nil
}
