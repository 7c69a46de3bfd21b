// vitalstored is the health-metric storage daemon.
package main

import (
	"context"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/lumohealth/vitalstore/internal/config"
	"github.com/lumohealth/vitalstore/internal/console"
	"github.com/lumohealth/vitalstore/internal/errors"
	"github.com/lumohealth/vitalstore/internal/logging"
	"github.com/lumohealth/vitalstore/internal/metrics/archive"
	"github.com/lumohealth/vitalstore/internal/metrics/query"
	"github.com/lumohealth/vitalstore/internal/metrics/registry"
	"github.com/lumohealth/vitalstore/internal/metrics/store"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	// CLI flags
	cfgPath := flag.String("config", "config.yaml", "config file path")
	dataDir := flag.String("data-dir", "", "data directory (overrides config)")
	logLevel := flag.String("log-level", "", "log level: debug, info, warn, error (overrides config)")
	logJSON := flag.Bool("log-json", false, "log in JSON format")
	seed := flag.Bool("seed", false, "register the stock metric series and exit")
	consoleMode := flag.Bool("console", false, "start an interactive console instead of the daemon loop")
	flag.Parse()

	// Load config. Load wraps the read error, so unwrap-aware matching is
	// required to detect the missing-file case.
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg = config.DefaultConfig()
		} else {
			log.Fatalf("Load config: %v", err)
		}
	}

	// CLI overrides
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if *logJSON {
		cfg.Logging.JSON = true
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("Create directories: %v", err)
	}

	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		log.Fatalf("Parse log level: %v", err)
	}
	logging.Init(level, cfg.Logging.JSON)
	logger := logging.Component("main")
	logger.Info("vitalstored starting", "version", Version, "data_dir", cfg.DataDir)

	// Open the store and build the service stack
	st, err := store.Open(cfg)
	if err != nil {
		log.Fatalf("Open store: %v", err)
	}
	defer st.Close()

	reg := registry.New(st)
	svc := query.New(cfg, st, reg)
	exporter := archive.NewExporter(cfg)

	ctx := context.Background()

	if *seed {
		if err := seedSeries(ctx, reg); err != nil {
			log.Fatalf("Seed series: %v", err)
		}
		logger.Info("stock series registered")
		return
	}

	if *consoleMode {
		if err := console.New(svc, exporter).Run(); err != nil {
			log.Fatalf("Console: %v", err)
		}
		return
	}

	// Daemon mode: hold the store open until signalled. The HTTP binding
	// that drives the service lives in a separate deployment unit.
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("vitalstored ready", "db", cfg.DatabasePath())
	<-sig

	logger.Info("shutting down")
	if err := st.Close(); err != nil {
		logger.Error("close store", "error", err)
	}
}

// stockSeries are the series registered by -seed. Each value schema is a
// draft-07 JSON Schema; the shape each one classifies to follows from its
// properties.
var stockSeries = []struct {
	series      string
	schema      string
	description string
}{
	{
		series:      "session.gut_health_score",
		schema:      `{"type":"object","properties":{"value":{"type":"number","minimum":0,"maximum":100}},"required":["value"],"additionalProperties":false}`,
		description: "Composite gut health score, 0-100",
	},
	{
		series:      "session.sleep_quality",
		schema:      `{"type":"object","properties":{"value":{"type":"number","minimum":0,"maximum":10}},"required":["value"],"additionalProperties":false}`,
		description: "Self-reported sleep quality, 0-10",
	},
	{
		series:      "session.urine.night_count",
		schema:      `{"type":"object","properties":{"value":{"type":"number","minimum":0,"multipleOf":1}},"required":["value"],"additionalProperties":false}`,
		description: "Integer count of nighttime urinations",
	},
	{
		series:      "session.urine.color",
		schema:      `{"type":"object","properties":{"r":{"type":"number","minimum":0,"maximum":255},"g":{"type":"number","minimum":0,"maximum":255},"b":{"type":"number","minimum":0,"maximum":255}},"required":["r","g","b"],"additionalProperties":false}`,
		description: "Urine color as an RGB triple",
	},
	{
		series:      "session.journal.note",
		schema:      `{"type":"object","properties":{"text":{"type":"string","maxLength":4096}},"required":["text"],"additionalProperties":false}`,
		description: "Free-form journal entry",
	},
}

func seedSeries(ctx context.Context, reg *registry.Registry) error {
	for _, s := range stockSeries {
		_, err := reg.Register(ctx, s.series, s.schema, s.description)
		if err != nil {
			if errors.Is(err, errors.ErrDuplicateSeries) {
				continue
			}
			return fmt.Errorf("register %s: %w", s.series, err)
		}
	}
	return nil
}
