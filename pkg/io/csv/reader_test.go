package csv

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestRead(t *testing.T) {
	path := writeFile(t, "a,b\n1,2\n3,4\nbad,5\n5,6\n")

	r, err := NewReader(path)
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, []string{"a", "b"}, r.Headers())

	X, err := r.Read()
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{1, 2}, {3, 4}, {5, 6}}, X, "malformed rows are skipped")
}

func TestReadNoHeader(t *testing.T) {
	path := writeFile(t, "1,2\n3,4\n")

	r, err := NewReader(path, WithHeader(false))
	require.NoError(t, err)
	defer r.Close()

	assert.Nil(t, r.Headers())

	X, err := r.Read()
	require.NoError(t, err)
	assert.Len(t, X, 2)
}

func TestReadXY(t *testing.T) {
	path := writeFile(t, "a,b,label\n1,2,1\n3,4,-1\n5,6,1\n")

	r, err := NewReader(path, WithLabelColumn(true))
	require.NoError(t, err)
	defer r.Close()

	X, y, err := r.ReadXY()
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{1, 2}, {3, 4}, {5, 6}}, X)
	assert.Equal(t, []int{1, -1, 1}, y)
}

func TestReadXYWithoutLabelColumn(t *testing.T) {
	path := writeFile(t, "a,b\n1,2\n")

	r, err := NewReader(path)
	require.NoError(t, err)
	defer r.Close()

	_, _, err = r.ReadXY()
	assert.Error(t, err)
}

func TestReadXYSkipsBadLabels(t *testing.T) {
	path := writeFile(t, "a,label\n1,1\n2,7\n3,-1\n")

	r, err := NewReader(path, WithLabelColumn(true))
	require.NoError(t, err)
	defer r.Close()

	X, y, err := r.ReadXY()
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{1}, {3}}, X)
	assert.Equal(t, []int{1, -1}, y)
}

func TestStream(t *testing.T) {
	path := writeFile(t, "a,b\n1,2\n3,4\n")

	r, err := NewReader(path)
	require.NoError(t, err)
	defer r.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := r.Stream(ctx)
	require.NoError(t, err)

	var rows [][]float64
	for row := range ch {
		rows = append(rows, row)
	}
	assert.Len(t, rows, 2)
}

func TestStreamDropsLabelColumn(t *testing.T) {
	path := writeFile(t, "a,b,label\n1,2,1\n3,4,-1\n")

	r, err := NewReader(path, WithLabelColumn(true))
	require.NoError(t, err)
	defer r.Close()

	ch, err := r.Stream(context.Background())
	require.NoError(t, err)

	for row := range ch {
		assert.Len(t, row, 2)
	}
}

func TestMissingFile(t *testing.T) {
	_, err := NewReader(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}
