// Package archive exports filtered samples and aggregate results to Parquet
// files for offline analysis and long-term retention.
package archive

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress"

	"github.com/lumohealth/vitalstore/internal/metrics/types"
)

// CompressionType represents a Parquet compression algorithm.
type CompressionType int

const (
	CompressionNone CompressionType = iota
	CompressionSnappy
	CompressionZstd
	CompressionLZ4
	CompressionGzip
)

// ParseCompressionType parses a compression type string.
func ParseCompressionType(s string) CompressionType {
	switch s {
	case "snappy":
		return CompressionSnappy
	case "zstd":
		return CompressionZstd
	case "lz4":
		return CompressionLZ4
	case "gzip":
		return CompressionGzip
	case "none":
		return CompressionNone
	default:
		return CompressionZstd
	}
}

func getCompression(ct CompressionType) compress.Codec {
	switch ct {
	case CompressionSnappy:
		return &parquet.Snappy
	case CompressionZstd:
		return &parquet.Zstd
	case CompressionLZ4:
		return &parquet.Lz4Raw
	case CompressionGzip:
		return &parquet.Gzip
	default:
		return &parquet.Uncompressed
	}
}

// SampleRow is the Parquet representation of a raw sample. The value is
// carried as its JSON encoding so every schema shape fits one column.
type SampleRow struct {
	SessionID   string `parquet:"session_id,zstd"`
	Series      string `parquet:"series,zstd"`
	TimestampMs int64  `parquet:"timestamp_ms"`
	ValueJSON   string `parquet:"value_json,zstd"`
}

// AggregateParquetRow is the Parquet representation of an aggregate bucket.
type AggregateParquetRow struct {
	Series      string  `parquet:"series,zstd"`
	Shape       string  `parquet:"shape,zstd"`
	BucketStart int64   `parquet:"bucket_start"`
	BucketEnd   int64   `parquet:"bucket_end"`
	Count       int64   `parquet:"count"`
	Value       float64 `parquet:"value,optional"`
	R           float64 `parquet:"r,optional"`
	G           float64 `parquet:"g,optional"`
	B           float64 `parquet:"b,optional"`
	RawJSON     string  `parquet:"raw_json,optional,zstd"`
}

// SampleToRow converts a Sample to its Parquet row.
func SampleToRow(s *types.Sample) (SampleRow, error) {
	encoded, err := json.Marshal(s.Value)
	if err != nil {
		return SampleRow{}, fmt.Errorf("encode value: %w", err)
	}
	return SampleRow{
		SessionID:   s.SessionID.String(),
		Series:      s.Series,
		TimestampMs: s.TimestampMs,
		ValueJSON:   string(encoded),
	}, nil
}

// AggregateToRow converts an AggregateRow to its Parquet row.
func AggregateToRow(a *types.AggregateRow) (AggregateParquetRow, error) {
	row := AggregateParquetRow{
		Series:      a.Series,
		Shape:       a.Shape.String(),
		BucketStart: a.BucketStart,
		BucketEnd:   a.BucketEnd,
		Count:       a.Count,
	}
	if a.Value != nil {
		row.Value = *a.Value
	}
	if a.R != nil {
		row.R = *a.R
	}
	if a.G != nil {
		row.G = *a.G
	}
	if a.B != nil {
		row.B = *a.B
	}
	if a.Raw != nil {
		encoded, err := json.Marshal(a.Raw)
		if err != nil {
			return AggregateParquetRow{}, fmt.Errorf("encode raw value: %w", err)
		}
		row.RawJSON = string(encoded)
	}
	return row, nil
}

// SampleWriter writes raw samples to a Parquet file.
type SampleWriter struct {
	mu       sync.Mutex
	path     string
	file     *os.File
	writer   *parquet.GenericWriter[SampleRow]
	rowCount int64
	closed   bool
}

// NewSampleWriter creates a Parquet writer for raw samples.
func NewSampleWriter(path string, compression CompressionType) (*SampleWriter, error) {
	f, err := createFile(path)
	if err != nil {
		return nil, err
	}
	writer := parquet.NewGenericWriter[SampleRow](f,
		parquet.Compression(getCompression(compression)))
	return &SampleWriter{path: path, file: f, writer: writer}, nil
}

// Write appends samples to the file.
func (w *SampleWriter) Write(samples []types.Sample) error {
	if len(samples) == 0 {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWriterClosed
	}

	rows := make([]SampleRow, len(samples))
	for i := range samples {
		row, err := SampleToRow(&samples[i])
		if err != nil {
			return err
		}
		rows[i] = row
	}

	n, err := w.writer.Write(rows)
	if err != nil {
		return fmt.Errorf("write rows: %w", err)
	}
	w.rowCount += int64(n)
	return nil
}

// Close flushes and closes the file.
func (w *SampleWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	if err := w.writer.Close(); err != nil {
		w.file.Close()
		return fmt.Errorf("close writer: %w", err)
	}
	return w.file.Close()
}

// RowCount returns the number of rows written.
func (w *SampleWriter) RowCount() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rowCount
}

// Path returns the file path.
func (w *SampleWriter) Path() string {
	return w.path
}

// AggregateWriter writes aggregate buckets to a Parquet file.
type AggregateWriter struct {
	mu       sync.Mutex
	path     string
	file     *os.File
	writer   *parquet.GenericWriter[AggregateParquetRow]
	rowCount int64
	closed   bool
}

// NewAggregateWriter creates a Parquet writer for aggregate buckets.
func NewAggregateWriter(path string, compression CompressionType) (*AggregateWriter, error) {
	f, err := createFile(path)
	if err != nil {
		return nil, err
	}
	writer := parquet.NewGenericWriter[AggregateParquetRow](f,
		parquet.Compression(getCompression(compression)))
	return &AggregateWriter{path: path, file: f, writer: writer}, nil
}

// Write appends aggregate rows to the file.
func (w *AggregateWriter) Write(rows []types.AggregateRow) error {
	if len(rows) == 0 {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWriterClosed
	}

	out := make([]AggregateParquetRow, len(rows))
	for i := range rows {
		row, err := AggregateToRow(&rows[i])
		if err != nil {
			return err
		}
		out[i] = row
	}

	n, err := w.writer.Write(out)
	if err != nil {
		return fmt.Errorf("write rows: %w", err)
	}
	w.rowCount += int64(n)
	return nil
}

// Close flushes and closes the file.
func (w *AggregateWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	if err := w.writer.Close(); err != nil {
		w.file.Close()
		return fmt.Errorf("close writer: %w", err)
	}
	return w.file.Close()
}

// RowCount returns the number of rows written.
func (w *AggregateWriter) RowCount() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rowCount
}

// Path returns the file path.
func (w *AggregateWriter) Path() string {
	return w.path
}

func createFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create file: %w", err)
	}
	return f, nil
}

// ErrWriterClosed is returned when writing to a closed writer.
var ErrWriterClosed = fmt.Errorf("parquet writer is closed")
