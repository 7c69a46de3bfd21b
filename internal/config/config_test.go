package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config does not validate: %v", err)
	}
	if cfg.Query.DefaultWindowDays != 7 {
		t.Errorf("default window = %d, want 7", cfg.Query.DefaultWindowDays)
	}
	if cfg.Query.Timeout != 30*time.Second {
		t.Errorf("default timeout = %s", cfg.Query.Timeout)
	}
	if cfg.Percentile.Accuracy != 0.01 {
		t.Errorf("default accuracy = %g", cfg.Percentile.Accuracy)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
data_dir: /tmp/vitalstore-test
logging:
  level: debug
  json: true
query:
  default_window_days: 30
  timeout: 5s
  memory_limit: 512MB
percentile:
  accuracy: 0.02
archive:
  compression: snappy
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DataDir != "/tmp/vitalstore-test" {
		t.Errorf("data_dir = %q", cfg.DataDir)
	}
	if cfg.Logging.Level != "debug" || !cfg.Logging.JSON {
		t.Errorf("logging = %+v", cfg.Logging)
	}
	if cfg.Query.DefaultWindowDays != 30 || cfg.Query.Timeout != 5*time.Second {
		t.Errorf("query = %+v", cfg.Query)
	}
	if cfg.Percentile.Accuracy != 0.02 {
		t.Errorf("accuracy = %g", cfg.Percentile.Accuracy)
	}
	if cfg.Archive.Compression != "snappy" {
		t.Errorf("compression = %q", cfg.Archive.Compression)
	}
}

func TestLoadKeepsDefaultsForOmittedFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("data_dir: "+dir+"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Query.DefaultWindowDays != 7 {
		t.Errorf("window = %d, want default 7", cfg.Query.DefaultWindowDays)
	}
	if cfg.Archive.Compression != "zstd" {
		t.Errorf("compression = %q, want default zstd", cfg.Archive.Compression)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	// The daemon falls back to defaults when the config file is absent;
	// that detection must survive the wrapping Load applies. Note that
	// os.IsNotExist does not unwrap, only errors.Is does.
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("errors.Is(err, fs.ErrNotExist) = false for %v", err)
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty data dir", func(c *Config) { c.DataDir = "" }},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"zero window", func(c *Config) { c.Query.DefaultWindowDays = 0 }},
		{"negative window", func(c *Config) { c.Query.DefaultWindowDays = -1 }},
		{"accuracy too low", func(c *Config) { c.Percentile.Accuracy = 0 }},
		{"accuracy too high", func(c *Config) { c.Percentile.Accuracy = 1 }},
		{"bad compression", func(c *Config) { c.Archive.Compression = "bzip2" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestDerivedPaths(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DataDir = "/data/vs"

	if got := cfg.DatabasePath(); got != filepath.Join("/data/vs", "vitalstore.db") {
		t.Errorf("db path = %q", got)
	}
	if got := cfg.ArchiveDir(); got != filepath.Join("/data/vs", "archive") {
		t.Errorf("archive dir = %q", got)
	}

	cfg.Archive.Dir = "/cold/exports"
	if got := cfg.ArchiveDir(); got != "/cold/exports" {
		t.Errorf("explicit archive dir = %q", got)
	}
}

func TestEnsureDirectories(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DataDir = filepath.Join(t.TempDir(), "nested", "data")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	for _, dir := range []string{cfg.DataDir, cfg.ArchiveDir()} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Errorf("directory %s not created: %v", dir, err)
		}
	}
}
