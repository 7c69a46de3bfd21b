package types

import (
	"time"

	"github.com/lumohealth/vitalstore/internal/errors"
)

// ShapeClass is the structural category a series' schema falls into.
// It is derived from the schema, never stored, and decides which
// aggregation semantics apply.
type ShapeClass int

const (
	// ShapeNumeric is a schema whose payload has a property "value" of
	// JSON type number. Reduced to one scalar per bucket.
	ShapeNumeric ShapeClass = iota
	// ShapeRGB is a schema whose payload has all of "r", "g" and "b".
	// Each channel is reduced independently.
	ShapeRGB
	// ShapeOpaque is everything else. The chronologically first raw value
	// per bucket is emitted; no arithmetic is applied.
	ShapeOpaque
)

// String returns a human-readable representation of the ShapeClass.
func (s ShapeClass) String() string {
	switch s {
	case ShapeNumeric:
		return "numeric"
	case ShapeRGB:
		return "rgb"
	case ShapeOpaque:
		return "opaque"
	default:
		return "unknown"
	}
}

// Interval is a calendar-aligned bucket width.
type Interval int

const (
	IntervalMinute Interval = iota
	IntervalWeek
	IntervalMonth
)

// ParseInterval parses an interval name. Unknown names are rejected with
// ErrInvalidParameter rather than silently producing an empty result.
func ParseInterval(s string) (Interval, error) {
	switch s {
	case "minute":
		return IntervalMinute, nil
	case "week", "":
		return IntervalWeek, nil
	case "month":
		return IntervalMonth, nil
	default:
		return 0, errors.NewInvalidParameter("interval", s)
	}
}

// String returns the interval name.
func (i Interval) String() string {
	switch i {
	case IntervalMinute:
		return "minute"
	case IntervalWeek:
		return "week"
	case IntervalMonth:
		return "month"
	default:
		return "unknown"
	}
}

// BucketStart returns the start of the bucket containing tsMs, in Unix
// milliseconds. Buckets are half-open [start, end) and aligned to fixed
// UTC boundaries: minutes truncate seconds, months truncate to the first
// of the civil month, weeks anchor on Monday 00:00 (ISO week). Identical
// inputs always produce identical boundaries.
func (i Interval) BucketStart(tsMs int64) int64 {
	t := time.UnixMilli(tsMs).UTC()
	switch i {
	case IntervalMinute:
		t = t.Truncate(time.Minute)
	case IntervalWeek:
		t = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		monday := (int(t.Weekday()) + 6) % 7
		t = t.AddDate(0, 0, -monday)
	case IntervalMonth:
		t = time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
	return t.UnixMilli()
}

// BucketEnd returns the exclusive end of the bucket starting at startMs.
func (i Interval) BucketEnd(startMs int64) int64 {
	t := time.UnixMilli(startMs).UTC()
	switch i {
	case IntervalMinute:
		t = t.Add(time.Minute)
	case IntervalWeek:
		t = t.AddDate(0, 0, 7)
	case IntervalMonth:
		t = t.AddDate(0, 1, 0)
	}
	return t.UnixMilli()
}

// AggFunc is the reduction applied per bucket to numeric and rgb shapes.
// Opaque shapes ignore it.
type AggFunc int

const (
	AggAvg AggFunc = iota
	AggMax
	AggMin
	AggCount
	AggP50
	AggP90
	AggP95
	AggP99
)

// ParseAggFunc parses an aggregate function name. Unknown names are
// rejected with ErrInvalidParameter.
func ParseAggFunc(s string) (AggFunc, error) {
	switch s {
	case "avg", "":
		return AggAvg, nil
	case "max":
		return AggMax, nil
	case "min":
		return AggMin, nil
	case "count":
		return AggCount, nil
	case "p50":
		return AggP50, nil
	case "p90":
		return AggP90, nil
	case "p95":
		return AggP95, nil
	case "p99":
		return AggP99, nil
	default:
		return 0, errors.NewInvalidParameter("agg_func", s)
	}
}

// String returns the function name.
func (f AggFunc) String() string {
	switch f {
	case AggAvg:
		return "avg"
	case AggMax:
		return "max"
	case AggMin:
		return "min"
	case AggCount:
		return "count"
	case AggP50:
		return "p50"
	case AggP90:
		return "p90"
	case AggP95:
		return "p95"
	case AggP99:
		return "p99"
	default:
		return "unknown"
	}
}

// IsPercentile returns true for the quantile functions.
func (f AggFunc) IsPercentile() bool {
	switch f {
	case AggP50, AggP90, AggP95, AggP99:
		return true
	}
	return false
}

// Quantile returns the quantile for percentile functions, zero otherwise.
func (f AggFunc) Quantile() float64 {
	switch f {
	case AggP50:
		return 0.50
	case AggP90:
		return 0.90
	case AggP95:
		return 0.95
	case AggP99:
		return 0.99
	}
	return 0
}
