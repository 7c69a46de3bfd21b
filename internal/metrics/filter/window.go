package filter

import (
	"time"

	"github.com/lumohealth/vitalstore/internal/errors"
)

// Accepted time parameter layouts: a full timestamp or a bare date.
// Bare dates are interpreted as midnight UTC, the store's civil calendar.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseTimeParam parses a query time parameter.
func ParseTimeParam(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.Wrapf(errors.ErrInvalidTimeValue, "parse %q", s)
}

// ResolveWindow turns the optional start/end parameters into a concrete
// inclusive window. An absent end defaults to now; an absent start defaults
// to end minus windowDays days.
func ResolveWindow(start, end string, now time.Time, windowDays int) (TimeWindowStage, error) {
	endT := now.UTC()
	if end != "" {
		t, err := ParseTimeParam(end)
		if err != nil {
			return TimeWindowStage{}, err
		}
		endT = t
	}

	startT := endT.AddDate(0, 0, -windowDays)
	if start != "" {
		t, err := ParseTimeParam(start)
		if err != nil {
			return TimeWindowStage{}, err
		}
		startT = t
	}

	if startT.After(endT) {
		return TimeWindowStage{}, errors.Wrapf(errors.ErrInvalidTimeValue, "start_time %s after end_time %s", startT, endT)
	}

	return TimeWindowStage{StartMs: startT.UnixMilli(), EndMs: endT.UnixMilli()}, nil
}
