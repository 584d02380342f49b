// Package config provides configuration loading and structs for the Toridasu server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug      bool             `yaml:"debug"`
	Server     ServerConfig     `yaml:"server"`
	Storage    StorageConfig    `yaml:"storage"`
	Extraction ExtractionConfig `yaml:"extraction"`
	Vision     VisionConfig     `yaml:"vision"`
	Watch      WatchConfig      `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds paths for the database and the record index.
type StorageConfig struct {
	DatabasePath   string `yaml:"database_path"`
	BleveIndexPath string `yaml:"bleve_index_path"`
}

// ExtractionConfig holds the tunable knobs of the extraction pipeline.
type ExtractionConfig struct {
	// MinValue/MaxValue bound the plausible magnitude of a monetary value.
	// Numbers outside the range (page numbers, percentages) are never taken
	// as market values.
	MinValue float64 `yaml:"min_value"`
	MaxValue float64 `yaml:"max_value"`
	// GridSize is the spatial clustering cell size in position units.
	GridSize float64 `yaml:"grid_size"`
	// GridRadius is the absorb radius around a seed cell, in cells.
	GridRadius int `yaml:"grid_radius"`
	// ArithmeticTolerance is the relative tolerance of the
	// quantity x price = market value cross-check.
	ArithmeticTolerance float64 `yaml:"arithmetic_tolerance"`
	// OutlierK is the IQR multiplier for outlier flagging.
	OutlierK float64 `yaml:"outlier_k"`
	// OutlierMinRecords is the minimum population before outlier flagging
	// activates.
	OutlierMinRecords int `yaml:"outlier_min_records"`
	// MaxContinuationRows bounds how many follow-on lines are merged into a
	// table row that lacks fields.
	MaxContinuationRows int `yaml:"max_continuation_rows"`
	// Currencies is the allowed currency-code set.
	Currencies []string `yaml:"currencies"`
	// ColumnSynonyms maps semantic fields to the header words that indicate
	// them, extendable per institution.
	ColumnSynonyms map[string][]string `yaml:"column_synonyms"`
	// SourceTimeout bounds each extraction source; a timed-out source is
	// treated as having produced zero records.
	SourceTimeout time.Duration `yaml:"source_timeout"`
}

// VisionConfig holds settings for the optional vision extraction source.
type VisionConfig struct {
	Enabled bool   `yaml:"enabled"`
	Model   string `yaml:"model"`
	// APIKeyEnv names the environment variable carrying the API key.
	APIKeyEnv string `yaml:"api_key_env"`
}

// WatchConfig holds directory watch settings.
type WatchConfig struct {
	Directories []string `yaml:"directories"`
	Extensions  []string `yaml:"extensions"`
	Recursive   *bool    `yaml:"recursive"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true when unset.
func (w *WatchConfig) RecursiveOrDefault() bool {
	if w.Recursive != nil {
		return *w.Recursive
	}
	return true
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.BleveIndexPath = expandPath(cfg.Storage.BleveIndexPath, configDir)
	for i := range cfg.Watch.Directories {
		cfg.Watch.Directories[i] = expandPath(cfg.Watch.Directories[i], configDir)
	}

	return &cfg, nil
}

// Save writes the config to path. Used for persisting watch directory add/remove.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
