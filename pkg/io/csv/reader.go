// Package csv reads feature matrices, optionally with a trailing label
// column, from CSV files.
package csv

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
)

// Reader reads samples from a CSV file.
type Reader struct {
	file        *os.File
	reader      *csv.Reader
	hasHeader   bool
	labelColumn bool
	headers     []string
}

// Option configures a Reader.
type Option func(*Reader)

// WithHeader indicates whether the CSV has a header row.
func WithHeader(has bool) Option {
	return func(r *Reader) { r.hasHeader = has }
}

// WithLabelColumn indicates that the last column holds labels
// (1 inlier, -1 outlier) rather than a feature.
func WithLabelColumn(has bool) Option {
	return func(r *Reader) { r.labelColumn = has }
}

// NewReader opens a CSV file for reading.
func NewReader(filename string, opts ...Option) (*Reader, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}

	r := &Reader{
		file:      file,
		reader:    csv.NewReader(file),
		hasHeader: true,
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.hasHeader {
		headers, err := r.reader.Read()
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("reading header: %w", err)
		}
		r.headers = headers
	}
	return r, nil
}

// Headers returns the column headers, nil when the file has none.
func (r *Reader) Headers() []string {
	return r.headers
}

// Read returns all rows as feature vectors. Rows that fail to parse are
// skipped. When a label column is configured it is dropped from the
// features.
func (r *Reader) Read() ([][]float64, error) {
	X, _, err := r.read()
	return X, err
}

// ReadXY returns all rows split into features and labels. Requires the
// label column to be configured.
func (r *Reader) ReadXY() ([][]float64, []int, error) {
	if !r.labelColumn {
		return nil, nil, errors.New("reader has no label column")
	}
	return r.read()
}

func (r *Reader) read() ([][]float64, []int, error) {
	var (
		X [][]float64
		y []int
	)

	for {
		record, err := r.reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, err
		}

		row, err := parseRow(record)
		if err != nil {
			continue // skip malformed rows
		}

		if r.labelColumn {
			if len(row) < 2 {
				continue
			}
			label := int(row[len(row)-1])
			if label != 1 && label != -1 {
				continue
			}
			X = append(X, row[:len(row)-1])
			y = append(y, label)
		} else {
			X = append(X, row)
		}
	}
	return X, y, nil
}

// Stream returns a channel of feature vectors for incremental processing.
// The label column, when configured, is dropped.
func (r *Reader) Stream(ctx context.Context) (<-chan []float64, error) {
	out := make(chan []float64, 100)

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			record, err := r.reader.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				continue
			}

			row, err := parseRow(record)
			if err != nil {
				continue
			}
			if r.labelColumn {
				if len(row) < 2 {
					continue
				}
				row = row[:len(row)-1]
			}

			select {
			case out <- row:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

// Close releases the underlying file.
func (r *Reader) Close() error {
	if r.file != nil {
		return r.file.Close()
	}
	return nil
}

func parseRow(record []string) ([]float64, error) {
	if len(record) == 0 {
		return nil, errors.New("empty row")
	}

	row := make([]float64, len(record))
	for i, val := range record {
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return nil, err
		}
		row[i] = f
	}
	return row, nil
}
