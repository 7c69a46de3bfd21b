package aggregate

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/lumohealth/vitalstore/internal/errors"
	"github.com/lumohealth/vitalstore/internal/metrics/types"
	"github.com/lumohealth/vitalstore/internal/testutil"
)

const (
	numeric = testutil.NumericSeries
	rgb     = testutil.RGBSeries
	opaque  = testutil.OpaqueSeries
)

var shapes = map[string]types.ShapeClass{
	numeric: types.ShapeNumeric,
	rgb:     types.ShapeRGB,
	opaque:  types.ShapeOpaque,
}

func run(t *testing.T, samples []types.Sample, interval types.Interval, fn types.AggFunc) []types.AggregateRow {
	t.Helper()
	rows, err := New(0.01).Aggregate(context.Background(), samples, shapes, interval, fn)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	return rows
}

func scalar(t *testing.T, row types.AggregateRow) float64 {
	t.Helper()
	if row.Value == nil {
		t.Fatalf("row %s@%d has no value", row.Series, row.BucketStart)
	}
	return *row.Value
}

func TestNumericAvgSingleBucket(t *testing.T) {
	base := testutil.Ts(2026, time.March, 11, 9, 15, 0)
	samples := []types.Sample{
		testutil.Sample(numeric, base, testutil.NumericValue(10)),
		testutil.Sample(numeric, base+1000, testutil.NumericValue(20)),
		testutil.Sample(numeric, base+2000, testutil.NumericValue(30)),
	}

	rows := run(t, samples, types.IntervalMinute, types.AggAvg)
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	if got := scalar(t, rows[0]); got != 20.0 {
		t.Errorf("avg = %v, want 20.0", got)
	}
	if rows[0].Count != 3 {
		t.Errorf("count = %d, want 3", rows[0].Count)
	}
	if want := testutil.Ts(2026, time.March, 11, 9, 15, 0); rows[0].BucketStart != want {
		t.Errorf("bucket = %d, want %d", rows[0].BucketStart, want)
	}
}

func TestNumericMinuteBoundarySplits(t *testing.T) {
	samples := []types.Sample{
		testutil.Sample(numeric, testutil.Ts(2026, time.March, 11, 9, 15, 59), testutil.NumericValue(10)),
		testutil.Sample(numeric, testutil.Ts(2026, time.March, 11, 9, 16, 0), testutil.NumericValue(30)),
	}

	rows := run(t, samples, types.IntervalMinute, types.AggAvg)
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2 (samples straddle a minute boundary)", len(rows))
	}
	if scalar(t, rows[0]) != 10 || scalar(t, rows[1]) != 30 {
		t.Errorf("values = %v, %v", scalar(t, rows[0]), scalar(t, rows[1]))
	}
}

func TestNumericMinMaxCount(t *testing.T) {
	base := testutil.Ts(2026, time.March, 11, 9, 15, 0)
	samples := []types.Sample{
		testutil.Sample(numeric, base, testutil.NumericValue(42)),
		testutil.Sample(numeric, base+1000, testutil.NumericValue(7)),
		testutil.Sample(numeric, base+2000, testutil.NumericValue(99)),
	}

	if got := scalar(t, run(t, samples, types.IntervalMinute, types.AggMin)[0]); got != 7 {
		t.Errorf("min = %v, want 7", got)
	}
	if got := scalar(t, run(t, samples, types.IntervalMinute, types.AggMax)[0]); got != 99 {
		t.Errorf("max = %v, want 99", got)
	}
	if got := scalar(t, run(t, samples, types.IntervalMinute, types.AggCount)[0]); got != 3 {
		t.Errorf("count = %v, want 3", got)
	}
}

func TestNumericPercentile(t *testing.T) {
	base := testutil.Ts(2026, time.March, 11, 9, 15, 0)
	var samples []types.Sample
	for i := 1; i <= 100; i++ {
		samples = append(samples, testutil.Sample(numeric, base+int64(i), testutil.NumericValue(float64(i))))
	}

	rows := run(t, samples, types.IntervalMinute, types.AggP50)
	got := scalar(t, rows[0])
	// DDSketch guarantees 1% relative accuracy.
	if math.Abs(got-50) > 50*0.02 {
		t.Errorf("p50 = %v, want ~50", got)
	}

	rows = run(t, samples, types.IntervalMinute, types.AggP99)
	got = scalar(t, rows[0])
	if math.Abs(got-99) > 99*0.02 {
		t.Errorf("p99 = %v, want ~99", got)
	}
}

func TestRGBChannelsReducedIndependently(t *testing.T) {
	base := testutil.Ts(2026, time.March, 11, 0, 0, 0)
	samples := []types.Sample{
		testutil.Sample(rgb, base, testutil.RGBValue(100, 150, 200)),
		testutil.Sample(rgb, base+60_000, testutil.RGBValue(200, 50, 0)),
	}

	rows := run(t, samples, types.IntervalWeek, types.AggMax)
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	row := rows[0]
	if row.R == nil || row.G == nil || row.B == nil {
		t.Fatal("missing channel values")
	}
	if *row.R != 200 || *row.G != 150 || *row.B != 200 {
		t.Errorf("max = {r:%v g:%v b:%v}, want {r:200 g:150 b:200}", *row.R, *row.G, *row.B)
	}
	if row.Value != nil {
		t.Error("rgb row should not carry a scalar value")
	}
}

func TestRGBAvg(t *testing.T) {
	base := testutil.Ts(2026, time.March, 11, 0, 0, 0)
	samples := []types.Sample{
		testutil.Sample(rgb, base, testutil.RGBValue(100, 0, 255)),
		testutil.Sample(rgb, base+1000, testutil.RGBValue(200, 100, 255)),
	}

	row := run(t, samples, types.IntervalWeek, types.AggAvg)[0]
	if *row.R != 150 || *row.G != 50 || *row.B != 255 {
		t.Errorf("avg = {r:%v g:%v b:%v}, want {r:150 g:50 b:255}", *row.R, *row.G, *row.B)
	}
}

func TestOpaqueKeepsChronologicallyFirst(t *testing.T) {
	base := testutil.Ts(2026, time.March, 11, 9, 15, 0)
	samples := []types.Sample{
		testutil.Sample(opaque, base, testutil.TextValue("first entry")),
		testutil.Sample(opaque, base+10_000, testutil.TextValue("second entry")),
		testutil.Sample(opaque, base+20_000, testutil.TextValue("third entry")),
	}

	// The aggregate function is ignored for opaque shapes; every function
	// yields the same first-value row.
	for _, fn := range []types.AggFunc{types.AggAvg, types.AggMax, types.AggCount} {
		rows := run(t, samples, types.IntervalMinute, fn)
		if len(rows) != 1 {
			t.Fatalf("%s: rows = %d, want 1", fn, len(rows))
		}
		raw, ok := rows[0].Raw.(map[string]any)
		if !ok || raw["text"] != "first entry" {
			t.Errorf("%s: raw = %v, want first entry", fn, rows[0].Raw)
		}
		if rows[0].Count != 3 {
			t.Errorf("%s: count = %d, want 3", fn, rows[0].Count)
		}
	}
}

func TestOpaqueBucketsLikeOtherShapes(t *testing.T) {
	// One entry per minute: each lands in its own bucket rather than one
	// global first value.
	samples := []types.Sample{
		testutil.Sample(opaque, testutil.Ts(2026, time.March, 11, 9, 15, 5), testutil.TextValue("a")),
		testutil.Sample(opaque, testutil.Ts(2026, time.March, 11, 9, 16, 5), testutil.TextValue("b")),
		testutil.Sample(opaque, testutil.Ts(2026, time.March, 11, 9, 17, 5), testutil.TextValue("c")),
	}

	rows := run(t, samples, types.IntervalMinute, types.AggAvg)
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	for i, want := range []string{"a", "b", "c"} {
		raw := rows[i].Raw.(map[string]any)
		if raw["text"] != want {
			t.Errorf("bucket %d raw = %v, want %q", i, raw, want)
		}
	}
}

func TestWeekBucketGroupsAcrossDays(t *testing.T) {
	// Wed 2026-03-11 and Sun 2026-03-15 share the week of Mon 2026-03-09;
	// Mon 2026-03-16 starts the next week.
	samples := []types.Sample{
		testutil.Sample(numeric, testutil.Ts(2026, time.March, 11, 10, 0, 0), testutil.NumericValue(10)),
		testutil.Sample(numeric, testutil.Ts(2026, time.March, 15, 22, 0, 0), testutil.NumericValue(20)),
		testutil.Sample(numeric, testutil.Ts(2026, time.March, 16, 1, 0, 0), testutil.NumericValue(30)),
	}

	rows := run(t, samples, types.IntervalWeek, types.AggAvg)
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if got := scalar(t, rows[0]); got != 15 {
		t.Errorf("first week avg = %v, want 15", got)
	}
	if got := scalar(t, rows[1]); got != 30 {
		t.Errorf("second week avg = %v, want 30", got)
	}
	if want := testutil.Ts(2026, time.March, 9, 0, 0, 0); rows[0].BucketStart != want {
		t.Errorf("first bucket = %d, want monday %d", rows[0].BucketStart, want)
	}
}

func TestMultiSeriesRowOrdering(t *testing.T) {
	// Input ordered by series then ts, the order the store scan produces.
	samples := []types.Sample{
		testutil.Sample(numeric, testutil.Ts(2026, time.March, 11, 9, 15, 0), testutil.NumericValue(10)),
		testutil.Sample(numeric, testutil.Ts(2026, time.March, 11, 9, 16, 0), testutil.NumericValue(20)),
		testutil.Sample(rgb, testutil.Ts(2026, time.March, 11, 9, 15, 30), testutil.RGBValue(1, 2, 3)),
	}

	rows := run(t, samples, types.IntervalMinute, types.AggAvg)
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}

	// Bucket start first, series name second.
	if rows[0].Series != numeric || rows[1].Series != rgb {
		t.Errorf("first bucket order = %s, %s; want %s, %s", rows[0].Series, rows[1].Series, numeric, rgb)
	}
	if rows[2].Series != numeric {
		t.Errorf("second bucket series = %s", rows[2].Series)
	}
	for i := 1; i < len(rows); i++ {
		if rows[i].BucketStart < rows[i-1].BucketStart {
			t.Fatalf("rows not ordered by bucket start")
		}
	}
}

func TestEmptyInput(t *testing.T) {
	rows := run(t, nil, types.IntervalWeek, types.AggAvg)
	if len(rows) != 0 {
		t.Errorf("rows = %d, want 0", len(rows))
	}
}

func TestMissingShapeRejected(t *testing.T) {
	samples := []types.Sample{
		testutil.Sample("session.unregistered", testutil.Ts(2026, time.March, 11, 9, 15, 0), testutil.NumericValue(1)),
	}
	_, err := New(0.01).Aggregate(context.Background(), samples, shapes, types.IntervalWeek, types.AggAvg)
	if !errors.Is(err, errors.ErrUnknownSeries) {
		t.Errorf("err = %v, want ErrUnknownSeries", err)
	}
}

func TestInvalidIntervalAndFunc(t *testing.T) {
	e := New(0.01)
	ctx := context.Background()

	if _, err := e.Aggregate(ctx, nil, shapes, types.Interval(99), types.AggAvg); !errors.Is(err, errors.ErrInvalidParameter) {
		t.Errorf("bad interval err = %v, want ErrInvalidParameter", err)
	}
	if _, err := e.Aggregate(ctx, nil, shapes, types.IntervalWeek, types.AggFunc(99)); !errors.Is(err, errors.ErrInvalidParameter) {
		t.Errorf("bad func err = %v, want ErrInvalidParameter", err)
	}
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	samples := []types.Sample{
		testutil.Sample(numeric, testutil.Ts(2026, time.March, 11, 9, 15, 0), testutil.NumericValue(1)),
	}
	if _, err := New(0.01).Aggregate(ctx, samples, shapes, types.IntervalWeek, types.AggAvg); err == nil {
		t.Error("expected error from cancelled context")
	}
}
