package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete vitalstore configuration.
type Config struct {
	// DataDir is the root directory for the database and archives.
	DataDir string `yaml:"data_dir"`

	// Logging configures structured log output.
	Logging LoggingConfig `yaml:"logging"`

	// Query configures query defaulting and the query service.
	Query QueryConfig `yaml:"query"`

	// Percentile configures DDSketch percentile aggregation.
	Percentile PercentileConfig `yaml:"percentile"`

	// Archive configures Parquet cold exports.
	Archive ArchiveConfig `yaml:"archive"`
}

// LoggingConfig configures structured log output.
type LoggingConfig struct {
	// Level is one of: debug, info, warn, error.
	Level string `yaml:"level"`

	// JSON selects the JSON handler; false selects human-readable text.
	JSON bool `yaml:"json"`
}

// QueryConfig configures query defaulting and the query service.
type QueryConfig struct {
	// DefaultWindowDays is how far back a query reaches when no start
	// time is given. The window ends at end_time (or now).
	DefaultWindowDays int `yaml:"default_window_days"`

	// Timeout bounds a single query, zero disables the bound.
	Timeout time.Duration `yaml:"timeout"`

	// MemoryLimit is the DuckDB memory limit (e.g. "2GB"), empty for none.
	MemoryLimit string `yaml:"memory_limit"`
}

// PercentileConfig configures DDSketch percentile aggregation.
type PercentileConfig struct {
	// Accuracy is the relative accuracy (0.01 = 1% error).
	Accuracy float64 `yaml:"accuracy"`
}

// ArchiveConfig configures Parquet cold exports.
type ArchiveConfig struct {
	// Dir is the export directory. Defaults to {DataDir}/archive.
	Dir string `yaml:"dir"`

	// Compression is the Parquet compression algorithm:
	// zstd, snappy, lz4, gzip, none.
	Compression string `yaml:"compression"`
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return config, nil
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		DataDir: "/var/lib/vitalstore",
		Logging: LoggingConfig{
			Level: "info",
		},
		Query: QueryConfig{
			DefaultWindowDays: 7,
			Timeout:           30 * time.Second,
			MemoryLimit:       "2GB",
		},
		Percentile: PercentileConfig{
			Accuracy: 0.01,
		},
		Archive: ArchiveConfig{
			Compression: "zstd",
		},
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir must not be empty")
	}
	if _, err := parseLevelName(c.Logging.Level); err != nil {
		return err
	}
	if c.Query.DefaultWindowDays <= 0 {
		return fmt.Errorf("query.default_window_days must be positive, got %d", c.Query.DefaultWindowDays)
	}
	if c.Percentile.Accuracy <= 0 || c.Percentile.Accuracy >= 1 {
		return fmt.Errorf("percentile.accuracy must be in (0, 1), got %g", c.Percentile.Accuracy)
	}
	switch c.Archive.Compression {
	case "", "zstd", "snappy", "lz4", "gzip", "none":
	default:
		return fmt.Errorf("unknown archive compression %q", c.Archive.Compression)
	}
	return nil
}

func parseLevelName(s string) (string, error) {
	switch s {
	case "", "debug", "info", "warn", "warning", "error":
		return s, nil
	default:
		return "", fmt.Errorf("unknown log level %q", s)
	}
}

// DatabasePath returns the DuckDB database file path.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "vitalstore.db")
}

// ArchiveDir returns the Parquet export directory.
func (c *Config) ArchiveDir() string {
	if c.Archive.Dir != "" {
		return c.Archive.Dir
	}
	return filepath.Join(c.DataDir, "archive")
}

// EnsureDirectories creates all required directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.DataDir, c.ArchiveDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}
