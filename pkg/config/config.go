// Package config loads run configuration for the command line front end.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	DefaultDetector      = "iforest"
	DefaultContamination = 0.1
	DefaultSeed          = 42
	DefaultTrees         = 100
	DefaultSampleSize    = 256
	DefaultQuantile      = 0.99
)

// Config selects and parameterizes a detector and its input.
type Config struct {
	Detector      string         `yaml:"detector"`
	Contamination float64        `yaml:"contamination"`
	Seed          int64          `yaml:"seed"`
	IForest       IForestConfig  `yaml:"iforest"`
	Gaussian      GaussianConfig `yaml:"gaussian"`
	Input         InputConfig    `yaml:"input"`
}

// IForestConfig holds Isolation Forest parameters.
type IForestConfig struct {
	Trees      int `yaml:"trees"`
	SampleSize int `yaml:"sample_size"`
}

// GaussianConfig holds z-score detector parameters.
type GaussianConfig struct {
	Quantile float64 `yaml:"quantile"`
}

// InputConfig describes the data source.
type InputConfig struct {
	Format      string `yaml:"format"` // csv or pcap
	Path        string `yaml:"path"`
	Header      bool   `yaml:"header"`
	LabelColumn bool   `yaml:"label_column"`
}

// DefaultConfig returns the defaults the CLI starts from.
func DefaultConfig() *Config {
	return &Config{
		Detector:      DefaultDetector,
		Contamination: DefaultContamination,
		Seed:          DefaultSeed,
		IForest: IForestConfig{
			Trees:      DefaultTrees,
			SampleSize: DefaultSampleSize,
		},
		Gaussian: GaussianConfig{
			Quantile: DefaultQuantile,
		},
		Input: InputConfig{
			Format: "csv",
			Header: true,
		},
	}
}

// Load reads a yaml file over the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the configuration to a yaml file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate rejects unknown detector and format names early.
func (c *Config) Validate() error {
	switch c.Detector {
	case "iforest", "gaussian":
	default:
		return fmt.Errorf("unknown detector %q", c.Detector)
	}
	switch c.Input.Format {
	case "csv", "pcap":
	default:
		return fmt.Errorf("unknown input format %q", c.Input.Format)
	}
	return nil
}
