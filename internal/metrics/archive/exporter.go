package archive

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/lumohealth/vitalstore/internal/config"
	"github.com/lumohealth/vitalstore/internal/logging"
	"github.com/lumohealth/vitalstore/internal/metrics/types"
)

// Exporter writes export files into the configured archive directory.
type Exporter struct {
	dir         string
	compression CompressionType
}

// NewExporter creates an exporter from the archive configuration.
func NewExporter(cfg *config.Config) *Exporter {
	return &Exporter{
		dir:         cfg.ArchiveDir(),
		compression: ParseCompressionType(cfg.Archive.Compression),
	}
}

// ExportSamples writes the given samples to a timestamped Parquet file and
// returns its path.
func (e *Exporter) ExportSamples(samples []types.Sample) (string, error) {
	path := filepath.Join(e.dir, fmt.Sprintf("samples-%s.parquet", time.Now().UTC().Format("20060102T150405")))

	w, err := NewSampleWriter(path, e.compression)
	if err != nil {
		return "", err
	}
	if err := w.Write(samples); err != nil {
		w.Close()
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	logging.Component("archive").Info("exported samples", "path", path, "rows", w.RowCount())
	return path, nil
}

// ExportAggregates writes the given aggregate rows to a timestamped Parquet
// file and returns its path.
func (e *Exporter) ExportAggregates(rows []types.AggregateRow) (string, error) {
	path := filepath.Join(e.dir, fmt.Sprintf("aggregates-%s.parquet", time.Now().UTC().Format("20060102T150405")))

	w, err := NewAggregateWriter(path, e.compression)
	if err != nil {
		return "", err
	}
	if err := w.Write(rows); err != nil {
		w.Close()
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	logging.Component("archive").Info("exported aggregates", "path", path, "rows", w.RowCount())
	return path, nil
}
