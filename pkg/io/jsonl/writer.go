// Package jsonl writes detection results as JSON lines.
package jsonl

import (
	"encoding/json"
	"io"
	"os"

	kio "github.com/deltat99/kenchi/pkg/io"
)

// Writer emits one JSON object per result, newline separated.
type Writer struct {
	out  io.Writer
	file *os.File
	enc  *json.Encoder
}

// NewWriter writes results to the given stream.
func NewWriter(out io.Writer) *Writer {
	return &Writer{out: out, enc: json.NewEncoder(out)}
}

// NewFileWriter creates or truncates a file and writes results to it.
func NewFileWriter(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	w := NewWriter(f)
	w.file = f
	return w, nil
}

// Write outputs a single result.
func (w *Writer) Write(result kio.Result) error {
	return w.enc.Encode(result)
}

// WriteAll outputs multiple results.
func (w *Writer) WriteAll(results []kio.Result) error {
	for _, r := range results {
		if err := w.Write(r); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the underlying file, if any.
func (w *Writer) Close() error {
	if w.file != nil {
		return w.file.Close()
	}
	return nil
}
