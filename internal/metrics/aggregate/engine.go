// Package aggregate implements the schema-driven aggregation engine.
//
// The engine consumes a filtered, ordered sample set in a single pass:
// samples are partitioned by series, each series' schema shape decides the
// reduction, timestamps are bucketed into calendar-aligned intervals, and
// each bucket is reduced with the requested aggregate function. Per-series
// partitions are independent and reduced concurrently.
package aggregate

import (
	"context"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/lumohealth/vitalstore/internal/errors"
	"github.com/lumohealth/vitalstore/internal/logging"
	"github.com/lumohealth/vitalstore/internal/metrics/types"
)

// Engine computes time-bucketed aggregates over filtered sample sets.
type Engine struct {
	accuracy float64
	log      *slog.Logger
}

// New creates an engine. accuracy is the DDSketch relative accuracy used
// by the percentile aggregate functions (0.01 = 1% error).
func New(accuracy float64) *Engine {
	if accuracy <= 0 || accuracy >= 1 {
		accuracy = 0.01
	}
	return &Engine{
		accuracy: accuracy,
		log:      logging.Component("aggregate"),
	}
}

// partition is one series' contiguous slice of the ordered input.
type partition struct {
	series  string
	shape   types.ShapeClass
	samples []types.Sample
}

// Aggregate reduces samples into one row per series per bucket.
//
// samples must be ordered by series, then timestamp, then insertion order -
// the order ScanSamples produces. shapes must cover every distinct series
// present. The result is ordered by bucket start, then series name.
func (e *Engine) Aggregate(ctx context.Context, samples []types.Sample, shapes map[string]types.ShapeClass, interval types.Interval, fn types.AggFunc) ([]types.AggregateRow, error) {
	if interval.String() == "unknown" {
		return nil, errors.NewInvalidParameter("interval", int(interval))
	}
	if fn.String() == "unknown" {
		return nil, errors.NewInvalidParameter("agg_func", int(fn))
	}
	if len(samples) == 0 {
		return []types.AggregateRow{}, nil
	}

	parts, err := partitionBySeries(samples, shapes)
	if err != nil {
		return nil, err
	}

	// Partitions never share state; reduce them concurrently.
	results := make([][]types.AggregateRow, len(parts))
	g, ctx := errgroup.WithContext(ctx)
	for i, part := range parts {
		i, part := i, part
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			rows, err := e.reducePartition(part, interval, fn)
			if err != nil {
				return err
			}
			results[i] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var rows []types.AggregateRow
	for _, r := range results {
		rows = append(rows, r...)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].BucketStart != rows[j].BucketStart {
			return rows[i].BucketStart < rows[j].BucketStart
		}
		return rows[i].Series < rows[j].Series
	})

	e.log.Debug("aggregated", "series", len(parts), "rows", len(rows),
		"interval", interval, "agg_func", fn)
	return rows, nil
}

// partitionBySeries splits the ordered input into contiguous per-series
// partitions and attaches each series' shape class.
func partitionBySeries(samples []types.Sample, shapes map[string]types.ShapeClass) ([]partition, error) {
	var parts []partition
	start := 0
	for i := 1; i <= len(samples); i++ {
		if i < len(samples) && samples[i].Series == samples[start].Series {
			continue
		}
		series := samples[start].Series
		shape, ok := shapes[series]
		if !ok {
			return nil, errors.Wrapf(errors.ErrUnknownSeries, "no shape for series %s", series)
		}
		parts = append(parts, partition{series: series, shape: shape, samples: samples[start:i]})
		start = i
	}
	return parts, nil
}

// reducePartition walks one series' samples in timestamp order, cutting a
// new bucket whenever the bucket boundary changes, and reduces each bucket
// according to the series' shape class. The shape switch is exhaustive over
// the closed ShapeClass enum.
func (e *Engine) reducePartition(part partition, interval types.Interval, fn types.AggFunc) ([]types.AggregateRow, error) {
	var rows []types.AggregateRow

	var acc reducer
	currentBucket := int64(-1)

	flush := func() {
		if acc == nil {
			return
		}
		row := acc.finish(fn)
		row.Series = part.series
		row.Shape = part.shape
		row.BucketStart = currentBucket
		row.BucketEnd = interval.BucketEnd(currentBucket)
		rows = append(rows, row)
		acc = nil
	}

	for i := range part.samples {
		sample := &part.samples[i]
		bucket := interval.BucketStart(sample.TimestampMs)
		if bucket != currentBucket {
			flush()
			currentBucket = bucket
			acc = e.newReducer(part.shape)
		}
		acc.add(sample)
	}
	flush()

	return rows, nil
}

// newReducer returns the accumulator for a shape class.
func (e *Engine) newReducer(shape types.ShapeClass) reducer {
	switch shape {
	case types.ShapeNumeric:
		return newNumericReducer(e.accuracy)
	case types.ShapeRGB:
		return newRGBReducer(e.accuracy)
	case types.ShapeOpaque:
		return &opaqueReducer{}
	default:
		return &opaqueReducer{}
	}
}
