package types

import (
	"time"

	"github.com/google/uuid"
)

// MetricType describes a metric series: its unique dot-delimited name and
// the JSON Schema every sample value for the series must satisfy.
type MetricType struct {
	// Series is the unique series key (e.g. "session.urine.color").
	Series string

	// Schema is the raw JSON Schema document (draft-07) for sample values.
	// It is validated once at registration and never re-checked afterwards.
	Schema string

	// Description is free text for humans.
	Description string

	// CreatedAtMs is the registration time, Unix milliseconds.
	CreatedAtMs int64
}

// Session groups the samples reported in one ingest request.
// A session exclusively owns its samples; deleting it deletes them.
type Session struct {
	SessionID uuid.UUID
	UserID    uuid.UUID

	// StartTsMs is the optional client-reported session start,
	// Unix milliseconds. Zero means not reported.
	StartTsMs int64

	// CreatedAtMs is the insertion time, Unix milliseconds.
	CreatedAtMs int64
}

// Sample represents one stored time series data point.
// This is the primary data unit flowing through the store and the
// aggregation engine.
type Sample struct {
	// SampleID is the insertion-ordered row id. It breaks timestamp ties
	// when the first value in a bucket is selected.
	SampleID int64

	// SessionID is the owning session.
	SessionID uuid.UUID

	// Series is the series key. The series must be registered before any
	// sample referencing it can exist.
	Series string

	// TimestampMs is when the measurement occurred (not when it was
	// inserted), Unix milliseconds. This is the bucketing dimension.
	TimestampMs int64

	// Value is the decoded JSON payload. A stored sample's value always
	// satisfies its series' schema; that is enforced at write time.
	Value any
}

// TimestampTime returns the timestamp as a time.Time.
func (s *Sample) TimestampTime() time.Time {
	return time.UnixMilli(s.TimestampMs)
}

// IngestSample is one candidate data point inside an ingest request.
type IngestSample struct {
	Series string    `json:"series"`
	Time   time.Time `json:"time"`
	Value  any       `json:"value"`
}

// IngestRequest is a session creation request carrying zero or more samples.
// The whole request is validated before anything is persisted: if any single
// sample fails, no session and no samples are created.
type IngestRequest struct {
	UserID uuid.UUID `json:"user_id"`

	// SessionID is optional; a new identity is generated when absent.
	SessionID *uuid.UUID `json:"session_id,omitempty"`

	// StartTS is the optional session start time.
	StartTS *time.Time `json:"start_ts,omitempty"`

	Data []IngestSample `json:"data"`
}
