// Package eval provides model selection utilities for outlier detectors.
package eval

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/deltat99/kenchi/pkg/detector"
)

// ErrNoCandidate is returned when no parameter combination produced a
// scoreable detector.
var ErrNoCandidate = errors.New("no parameter combination could be scored")

// TrainTestSplit shuffles the samples with the given seed and splits off
// testFrac of them for evaluation. Both splits are non-empty.
func TrainTestSplit(X [][]float64, y []int, testFrac float64, seed int64) (
	XTrain, XTest [][]float64, yTrain, yTest []int, err error) {

	if err := detector.CheckXY(X, y); err != nil {
		return nil, nil, nil, nil, err
	}
	if testFrac <= 0 || testFrac >= 1 {
		return nil, nil, nil, nil, fmt.Errorf("test fraction must be in (0, 1), got %g", testFrac)
	}

	n := len(X)
	nTest := int(math.Round(float64(n) * testFrac))
	if nTest < 1 {
		nTest = 1
	}
	if nTest >= n {
		nTest = n - 1
	}
	if nTest < 1 {
		return nil, nil, nil, nil, fmt.Errorf("%d samples are too few to split", n)
	}

	perm := rand.New(rand.NewSource(seed)).Perm(n)
	for i, idx := range perm {
		if i < nTest {
			XTest = append(XTest, X[idx])
			yTest = append(yTest, y[idx])
		} else {
			XTrain = append(XTrain, X[idx])
			yTrain = append(yTrain, y[idx])
		}
	}
	return XTrain, XTest, yTrain, yTest, nil
}

// ParamGrid enumerates candidate values per parameter name, preserving
// insertion order.
type ParamGrid struct {
	names  []string
	values [][]float64
}

// NewParamGrid creates an empty grid.
func NewParamGrid() *ParamGrid {
	return &ParamGrid{}
}

// Add appends candidate values for a parameter.
func (g *ParamGrid) Add(name string, values ...float64) *ParamGrid {
	g.names = append(g.names, name)
	g.values = append(g.values, values)
	return g
}

// BuildFunc constructs a detector from one parameter combination.
type BuildFunc func(params map[string]float64) (detector.Detector, error)

// Result is the outcome of a grid search.
type Result struct {
	Params map[string]float64
	F1     float64
}

// GridSearch fits a detector for every combination in the grid and returns
// the one with the highest F1 score on (X, y). Combinations whose build,
// fit or scoring fails are skipped; ErrNoCandidate is returned when none
// survives.
func GridSearch(grid *ParamGrid, build BuildFunc, X [][]float64, y []int) (Result, error) {
	if err := detector.CheckXY(X, y); err != nil {
		return Result{}, err
	}

	best := Result{F1: math.Inf(-1)}
	searchRecursive(grid, build, X, y, 0, make(map[string]float64), &best)

	if math.IsInf(best.F1, -1) {
		return Result{}, ErrNoCandidate
	}
	return best, nil
}

func searchRecursive(grid *ParamGrid, build BuildFunc, X [][]float64, y []int,
	depth int, current map[string]float64, best *Result) {

	if depth == len(grid.names) {
		d, err := build(current)
		if err != nil {
			return
		}
		if err := d.Fit(X); err != nil {
			return
		}
		f1, err := detector.Score(d, X, y)
		if err != nil {
			return
		}
		if f1 > best.F1 {
			best.F1 = f1
			best.Params = make(map[string]float64, len(current))
			for k, v := range current {
				best.Params[k] = v
			}
		}
		return
	}

	name := grid.names[depth]
	for _, v := range grid.values[depth] {
		current[name] = v
		searchRecursive(grid, build, X, y, depth+1, current, best)
	}
	delete(current, name)
}
