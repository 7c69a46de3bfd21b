// Package testutil provides shared fixtures for the metric packages: an
// in-memory store, a registry seeded with one series per shape class, and
// sample builders with deterministic timestamps.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/lumohealth/vitalstore/internal/config"
	"github.com/lumohealth/vitalstore/internal/metrics/registry"
	"github.com/lumohealth/vitalstore/internal/metrics/store"
	"github.com/lumohealth/vitalstore/internal/metrics/types"
)

// Schemas for the three shape classes, draft-07.
const (
	NumericSchema = `{"type":"object","properties":{"value":{"type":"number"}},"required":["value"],"additionalProperties":false}`
	RGBSchema     = `{"type":"object","properties":{"r":{"type":"number"},"g":{"type":"number"},"b":{"type":"number"}},"required":["r","g","b"],"additionalProperties":false}`
	OpaqueSchema  = `{"type":"object","properties":{"text":{"type":"string"}},"required":["text"],"additionalProperties":false}`
)

// Series names used by the fixtures.
const (
	NumericSeries = "session.gut_health_score"
	RGBSeries     = "session.urine.color"
	CountSeries   = "session.urine.night_count"
	OpaqueSeries  = "session.journal.note"
)

// TestConfig returns a config pointed at a per-test temp directory.
func TestConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()
	return cfg
}

// OpenStore opens an in-memory store and closes it when the test ends.
func OpenStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

// SeededRegistry returns a registry with one series registered per shape
// class, plus a second numeric series for multi-series scenarios.
func SeededRegistry(t *testing.T, st *store.Store) *registry.Registry {
	t.Helper()
	reg := registry.New(st)
	ctx := context.Background()

	seeds := []struct{ series, schema, description string }{
		{NumericSeries, NumericSchema, "gut health score"},
		{CountSeries, NumericSchema, "nighttime urination count"},
		{RGBSeries, RGBSchema, "urine color"},
		{OpaqueSeries, OpaqueSchema, "journal note"},
	}
	for _, s := range seeds {
		if _, err := reg.Register(ctx, s.series, s.schema, s.description); err != nil {
			t.Fatalf("register %s: %v", s.series, err)
		}
	}
	return reg
}

// Ts builds a UTC timestamp in milliseconds.
func Ts(year int, month time.Month, day, hour, min, sec int) int64 {
	return time.Date(year, month, day, hour, min, sec, 0, time.UTC).UnixMilli()
}

// NumericValue builds a numeric sample payload.
func NumericValue(v float64) map[string]any {
	return map[string]any{"value": v}
}

// RGBValue builds an rgb sample payload.
func RGBValue(r, g, b float64) map[string]any {
	return map[string]any{"r": r, "g": g, "b": b}
}

// TextValue builds an opaque sample payload.
func TextValue(s string) map[string]any {
	return map[string]any{"text": s}
}

// Sample builds a sample row for direct aggregation tests.
func Sample(series string, tsMs int64, value any) types.Sample {
	return types.Sample{Series: series, TimestampMs: tsMs, Value: value}
}

// IngestSample builds an ingestion request entry.
func IngestSample(series string, tsMs int64, value any) types.IngestSample {
	return types.IngestSample{Series: series, Time: time.UnixMilli(tsMs).UTC(), Value: value}
}

// NewUser returns a fresh user id.
func NewUser() uuid.UUID {
	return uuid.New()
}

// MustCreateSession persists a session with the given samples and returns
// its id.
func MustCreateSession(t *testing.T, st *store.Store, userID uuid.UUID, samples []types.Sample) uuid.UUID {
	t.Helper()
	sess := &types.Session{UserID: userID}
	if err := st.CreateSession(context.Background(), sess, samples); err != nil {
		t.Fatalf("create session: %v", err)
	}
	return sess.SessionID
}
