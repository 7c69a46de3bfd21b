package types

import "time"

// AggregateRow is one output row of the aggregation engine: one series in
// one time bucket, reduced according to the series' shape class.
type AggregateRow struct {
	// Identity
	Series string     `json:"series"`
	Shape  ShapeClass `json:"-"`

	// Time bucket, Unix milliseconds, half-open [BucketStart, BucketEnd).
	BucketStart int64 `json:"bucket"`
	BucketEnd   int64 `json:"-"`

	// Count is the number of samples reduced into this row.
	Count int64 `json:"count"`

	// Value is the reduced scalar for numeric shapes.
	Value *float64 `json:"value,omitempty"`

	// R, G, B are the per-channel reductions for rgb shapes.
	R *float64 `json:"r,omitempty"`
	G *float64 `json:"g,omitempty"`
	B *float64 `json:"b,omitempty"`

	// Raw is the chronologically first value for opaque shapes.
	Raw any `json:"raw,omitempty"`
}

// BucketStartTime returns the bucket start as a time.Time.
func (r *AggregateRow) BucketStartTime() time.Time {
	return time.UnixMilli(r.BucketStart)
}

// BucketEndTime returns the bucket end as a time.Time.
func (r *AggregateRow) BucketEndTime() time.Time {
	return time.UnixMilli(r.BucketEnd)
}

// QueryMetadata echoes the effective query parameters alongside results.
type QueryMetadata struct {
	Count    int    `json:"count"`
	Interval string `json:"interval"`
	AggFunc  string `json:"agg_func"`
}

// QueryResult is the full payload handed to the external boundary.
// Rows are ordered by bucket start, then series name.
type QueryResult struct {
	Metadata QueryMetadata  `json:"metadata"`
	Results  []AggregateRow `json:"results"`
}
