package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "iforest", cfg.Detector)
	assert.Greater(t, cfg.Contamination, 0.0)
	assert.Equal(t, 100, cfg.IForest.Trees)
	assert.NoError(t, cfg.Validate())
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")

	cfg := DefaultConfig()
	cfg.Detector = "gaussian"
	cfg.Gaussian.Quantile = 0.95
	cfg.Input.Path = "data.csv"
	cfg.Input.LabelColumn = true
	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte("detector: gaussian\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "gaussian", cfg.Detector)
	assert.Equal(t, DefaultTrees, cfg.IForest.Trees, "unset fields keep defaults")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Detector = "kmeans"
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Input.Format = "parquet"
	assert.Error(t, cfg.Validate())
}
