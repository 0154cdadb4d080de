// Package iforest implements the Isolation Forest outlier detector.
package iforest

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"

	"gonum.org/v1/gonum/stat"

	"github.com/deltat99/kenchi/pkg/detector"
)

// Forest isolates outliers with an ensemble of random partition trees.
// Samples that isolate in few splits receive scores near 1.
type Forest struct {
	mu sync.RWMutex

	nTrees        int
	sampleSize    int
	contamination float64
	seed          int64

	trees         []*tree
	nFeatures     int
	maxDepth      int
	avgPathLength float64
	threshold     float64
	fitted        bool
}

type tree struct {
	Root *node
}

type node struct {
	SplitFeature int
	SplitValue   float64
	Left         *node
	Right        *node
	Size         int
}

// Option configures a Forest.
type Option func(*Forest)

// WithTrees sets the number of isolation trees.
func WithTrees(n int) Option {
	return func(f *Forest) { f.nTrees = n }
}

// WithSampleSize sets the subsample size used to build each tree.
func WithSampleSize(n int) Option {
	return func(f *Forest) { f.sampleSize = n }
}

// WithContamination sets the expected proportion of outliers in training
// data. The decision threshold is learned as the corresponding upper
// quantile of the training scores.
func WithContamination(c float64) Option {
	return func(f *Forest) { f.contamination = c }
}

// WithSeed sets the random seed for reproducibility.
func WithSeed(seed int64) Option {
	return func(f *Forest) { f.seed = seed }
}

// New creates a Forest with the given options. Parameter validity is
// checked by Fit before any computation.
func New(opts ...Option) *Forest {
	f := &Forest{
		nTrees:        100,
		sampleSize:    256,
		contamination: 0.1,
		seed:          42,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Forest) checkParams() error {
	if f.nTrees <= 0 {
		return fmt.Errorf("trees must be positive, got %d: %w", f.nTrees, detector.ErrInvalidParam)
	}
	if f.sampleSize <= 0 {
		return fmt.Errorf("sample size must be positive, got %d: %w", f.sampleSize, detector.ErrInvalidParam)
	}
	if f.contamination < 0 || f.contamination >= 1 {
		return fmt.Errorf("contamination must be in [0, 1), got %g: %w", f.contamination, detector.ErrInvalidParam)
	}
	return nil
}

// Fit builds the ensemble on X and learns the decision threshold from the
// training scores.
func (f *Forest) Fit(X [][]float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.checkParams(); err != nil {
		return err
	}
	if err := detector.CheckMatrix(X); err != nil {
		return err
	}

	rng := rand.New(rand.NewSource(f.seed))
	nSamples := len(X)
	f.nFeatures = len(X[0])

	sampleSize := f.sampleSize
	if sampleSize > nSamples {
		sampleSize = nSamples
	}
	f.maxDepth = int(math.Ceil(math.Log2(float64(sampleSize))))
	if f.maxDepth < 1 {
		f.maxDepth = 1
	}

	f.trees = make([]*tree, f.nTrees)
	for i := range f.trees {
		indices := rng.Perm(nSamples)[:sampleSize]
		sample := make([][]float64, sampleSize)
		for j, idx := range indices {
			sample[j] = X[idx]
		}
		f.trees[i] = &tree{Root: f.grow(sample, rng, 0)}
	}

	f.avgPathLength = expectedPathLength(float64(sampleSize))
	if f.avgPathLength <= 0 {
		// Degenerate subsample of one; keep scores finite.
		f.avgPathLength = 1
	}
	f.fitted = true

	scores := make([]float64, nSamples)
	for i, row := range X {
		scores[i] = f.scoreOne(row)
	}
	sort.Float64s(scores)
	f.threshold = stat.Quantile(1-f.contamination, stat.Empirical, scores, nil)

	return nil
}

func (f *Forest) grow(X [][]float64, rng *rand.Rand, depth int) *node {
	n := len(X)
	if depth >= f.maxDepth || n <= 1 {
		return &node{Size: n}
	}

	feature := rng.Intn(f.nFeatures)

	minVal, maxVal := X[0][feature], X[0][feature]
	for _, row := range X[1:] {
		if row[feature] < minVal {
			minVal = row[feature]
		}
		if row[feature] > maxVal {
			maxVal = row[feature]
		}
	}
	if minVal == maxVal {
		return &node{Size: n}
	}

	splitValue := minVal + rng.Float64()*(maxVal-minVal)

	var left, right [][]float64
	for _, row := range X {
		if row[feature] < splitValue {
			left = append(left, row)
		} else {
			right = append(right, row)
		}
	}

	return &node{
		SplitFeature: feature,
		SplitValue:   splitValue,
		Left:         f.grow(left, rng, depth+1),
		Right:        f.grow(right, rng, depth+1),
	}
}

// AnomalyScore returns one score in [0, 1] per row of X.
func (f *Forest) AnomalyScore(X [][]float64) ([]float64, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if !f.fitted {
		return nil, detector.ErrNotFitted
	}
	if err := detector.CheckMatrix(X); err != nil {
		return nil, err
	}
	if len(X[0]) != f.nFeatures {
		return nil, fmt.Errorf("fitted on %d features, got %d: %w",
			f.nFeatures, len(X[0]), detector.ErrFeatureMismatch)
	}

	scores := make([]float64, len(X))
	for i, row := range X {
		scores[i] = f.scoreOne(row)
	}
	return scores, nil
}

// ScoreOne returns the anomaly score for a single sample.
func (f *Forest) ScoreOne(sample []float64) (float64, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if !f.fitted {
		return 0, detector.ErrNotFitted
	}
	if len(sample) != f.nFeatures {
		return 0, fmt.Errorf("fitted on %d features, got %d: %w",
			f.nFeatures, len(sample), detector.ErrFeatureMismatch)
	}
	return f.scoreOne(sample), nil
}

func (f *Forest) scoreOne(sample []float64) float64 {
	var total float64
	for _, t := range f.trees {
		total += pathLength(sample, t.Root, 0)
	}
	avgPath := total / float64(len(f.trees))

	return math.Pow(2, -avgPath/f.avgPathLength)
}

// Threshold returns the decision threshold learned during Fit.
func (f *Forest) Threshold() (float64, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if !f.fitted {
		return 0, detector.ErrNotFitted
	}
	return f.threshold, nil
}

// SetThreshold overrides the learned decision threshold.
func (f *Forest) SetThreshold(t float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.threshold = t
}

func pathLength(sample []float64, n *node, depth int) float64 {
	if n.Left == nil && n.Right == nil {
		return float64(depth) + expectedPathLength(float64(n.Size))
	}
	if sample[n.SplitFeature] < n.SplitValue {
		return pathLength(sample, n.Left, depth+1)
	}
	return pathLength(sample, n.Right, depth+1)
}

// expectedPathLength is the average path length of an unsuccessful BST
// search over n samples: c(n) = 2H(n-1) - 2(n-1)/n.
func expectedPathLength(n float64) float64 {
	if n <= 1 {
		return 0
	}
	const eulerMascheroni = 0.5772156649
	return 2*(math.Log(n-1)+eulerMascheroni) - 2*(n-1)/n
}

type forestState struct {
	NTrees        int
	SampleSize    int
	Contamination float64
	Seed          int64
	Trees         []*tree
	NFeatures     int
	MaxDepth      int
	AvgPathLength float64
	Threshold     float64
}

// Save serializes the fitted model to bytes.
func (f *Forest) Save() ([]byte, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if !f.fitted {
		return nil, detector.ErrNotFitted
	}

	var buf bytes.Buffer
	state := forestState{
		NTrees:        f.nTrees,
		SampleSize:    f.sampleSize,
		Contamination: f.contamination,
		Seed:          f.seed,
		Trees:         f.trees,
		NFeatures:     f.nFeatures,
		MaxDepth:      f.maxDepth,
		AvgPathLength: f.avgPathLength,
		Threshold:     f.threshold,
	}
	if err := gob.NewEncoder(&buf).Encode(state); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Load deserializes a fitted model from bytes.
func (f *Forest) Load(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var state forestState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&state); err != nil {
		return err
	}

	f.nTrees = state.NTrees
	f.sampleSize = state.SampleSize
	f.contamination = state.Contamination
	f.seed = state.Seed
	f.trees = state.Trees
	f.nFeatures = state.NFeatures
	f.maxDepth = state.MaxDepth
	f.avgPathLength = state.AvgPathLength
	f.threshold = state.Threshold
	f.fitted = true

	return nil
}
