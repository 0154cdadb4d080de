// Package io declares the data ingestion and result output contracts used
// around the detectors.
package io

import "context"

// Reader is the interface for reading feature matrices from a data source.
type Reader interface {
	// Read returns the complete dataset, one feature vector per sample.
	Read() ([][]float64, error)

	// Stream returns a channel of samples for incremental processing.
	Stream(ctx context.Context) (<-chan []float64, error)

	// Close releases resources.
	Close() error
}

// LabeledReader is implemented by sources that also carry ground-truth
// labels, one per sample, using the {1 inlier, -1 outlier} convention.
type LabeledReader interface {
	Reader

	// ReadXY returns the dataset together with its labels.
	ReadXY() ([][]float64, []int, error)
}

// FeatureExtractor converts raw records into feature vectors.
type FeatureExtractor interface {
	// Extract converts raw input to a feature vector.
	Extract(data any) ([]float64, error)

	// FeatureNames returns the names of extracted features.
	FeatureNames() []string
}

// Writer is the interface for writing detection results.
type Writer interface {
	// Write outputs a single result.
	Write(result Result) error

	// WriteAll outputs multiple results.
	WriteAll(results []Result) error

	// Close releases resources.
	Close() error
}

// Result is one scored sample. Label uses the {1 inlier, -1 outlier}
// convention.
type Result struct {
	Timestamp int64          `json:"timestamp"`
	Score     float64        `json:"score"`
	Label     int            `json:"label"`
	Features  []float64      `json:"features,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}
