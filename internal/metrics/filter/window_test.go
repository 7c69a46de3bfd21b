package filter

import (
	"testing"
	"time"

	"github.com/lumohealth/vitalstore/internal/errors"
)

func TestParseTimeParam(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2026-03-15T14:30:45Z", time.Date(2026, 3, 15, 14, 30, 45, 0, time.UTC)},
		{"2026-03-15T14:30:45", time.Date(2026, 3, 15, 14, 30, 45, 0, time.UTC)},
		{"2026-03-15", time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		got, err := ParseTimeParam(tt.in)
		if err != nil {
			t.Fatalf("ParseTimeParam(%q): %v", tt.in, err)
		}
		if !got.Equal(tt.want) {
			t.Errorf("ParseTimeParam(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestParseTimeParamRejectsGarbage(t *testing.T) {
	for _, in := range []string{"yesterday", "15/03/2026", "1742048445", ""} {
		if _, err := ParseTimeParam(in); !errors.Is(err, errors.ErrInvalidTimeValue) {
			t.Errorf("ParseTimeParam(%q) err = %v, want ErrInvalidTimeValue", in, err)
		}
	}
}

func TestResolveWindowDefaults(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	w, err := ResolveWindow("", "", now, 7)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if w.EndMs != now.UnixMilli() {
		t.Errorf("end = %d, want now", w.EndMs)
	}
	if want := now.AddDate(0, 0, -7).UnixMilli(); w.StartMs != want {
		t.Errorf("start = %d, want now-7d (%d)", w.StartMs, want)
	}
}

func TestResolveWindowExplicit(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	w, err := ResolveWindow("2026-03-01", "2026-03-10", now, 7)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if want := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC).UnixMilli(); w.StartMs != want {
		t.Errorf("start = %d, want %d", w.StartMs, want)
	}
	if want := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC).UnixMilli(); w.EndMs != want {
		t.Errorf("end = %d, want %d", w.EndMs, want)
	}
}

func TestResolveWindowStartOnly(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	w, err := ResolveWindow("2026-03-01", "", now, 7)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if w.EndMs != now.UnixMilli() {
		t.Errorf("end = %d, want now", w.EndMs)
	}
	if want := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC).UnixMilli(); w.StartMs != want {
		t.Errorf("start = %d, want %d", w.StartMs, want)
	}
}

func TestResolveWindowRejectsInvertedRange(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	if _, err := ResolveWindow("2026-03-10", "2026-03-01", now, 7); !errors.Is(err, errors.ErrInvalidTimeValue) {
		t.Errorf("err = %v, want ErrInvalidTimeValue", err)
	}
}
