package archive

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/parquet-go/parquet-go"

	"github.com/lumohealth/vitalstore/internal/metrics/types"
)

// SampleReader reads raw samples back from an export file.
type SampleReader struct {
	file   *os.File
	reader *parquet.GenericReader[SampleRow]
	path   string
}

// NewSampleReader opens an export file for reading.
func NewSampleReader(path string) (*SampleReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat file: %w", err)
	}
	pf, err := parquet.OpenFile(f, info.Size(), parquet.ReadBufferSize(1024*1024))
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("open parquet file: %w", err)
	}
	reader := parquet.NewGenericReader[SampleRow](pf)
	return &SampleReader{file: f, reader: reader, path: path}, nil
}

// ReadAll reads every sample in the file.
func (r *SampleReader) ReadAll() ([]types.Sample, error) {
	rows := make([]SampleRow, r.reader.NumRows())
	n, err := r.reader.Read(rows)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("read rows: %w", err)
	}

	samples := make([]types.Sample, n)
	for i := 0; i < n; i++ {
		sample, err := RowToSample(&rows[i])
		if err != nil {
			return nil, err
		}
		samples[i] = sample
	}
	return samples, nil
}

// NumRows returns the total number of rows in the file.
func (r *SampleReader) NumRows() int64 {
	return r.reader.NumRows()
}

// Close closes the reader.
func (r *SampleReader) Close() error {
	if err := r.reader.Close(); err != nil {
		r.file.Close()
		return err
	}
	return r.file.Close()
}

// RowToSample converts a Parquet row back to a Sample.
func RowToSample(r *SampleRow) (types.Sample, error) {
	sessionID, err := uuid.Parse(r.SessionID)
	if err != nil {
		return types.Sample{}, fmt.Errorf("parse session id %q: %w", r.SessionID, err)
	}
	var value any
	if err := json.Unmarshal([]byte(r.ValueJSON), &value); err != nil {
		return types.Sample{}, fmt.Errorf("decode value: %w", err)
	}
	return types.Sample{
		SessionID:   sessionID,
		Series:      r.Series,
		TimestampMs: r.TimestampMs,
		Value:       value,
	}, nil
}
