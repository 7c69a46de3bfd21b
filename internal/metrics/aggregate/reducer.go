package aggregate

import (
	"math"

	"github.com/DataDog/sketches-go/ddsketch"

	"github.com/lumohealth/vitalstore/internal/metrics/types"
)

// reducer accumulates one bucket of one series.
type reducer interface {
	add(s *types.Sample)
	finish(fn types.AggFunc) types.AggregateRow
}

// ============================================================================
// Numeric
// ============================================================================

// channel maintains running statistics for one stream of scalars.
// Percentile functions feed a DDSketch alongside the exact min/max/sum.
type channel struct {
	count  int64
	sum    float64
	min    float64
	max    float64
	sketch *ddsketch.DDSketch
}

func newChannel(accuracy float64, wantSketch bool) *channel {
	c := &channel{
		min: math.MaxFloat64,
		max: -math.MaxFloat64,
	}
	if wantSketch {
		if sketch, err := ddsketch.NewDefaultDDSketch(accuracy); err == nil {
			c.sketch = sketch
		}
	}
	return c
}

func (c *channel) add(v float64) {
	c.count++
	c.sum += v
	if v < c.min {
		c.min = v
	}
	if v > c.max {
		c.max = v
	}
	if c.sketch != nil {
		c.sketch.Add(v)
	}
}

func (c *channel) value(fn types.AggFunc) *float64 {
	if c.count == 0 {
		return nil
	}
	var v float64
	switch {
	case fn == types.AggAvg:
		v = c.sum / float64(c.count)
	case fn == types.AggMax:
		v = c.max
	case fn == types.AggMin:
		v = c.min
	case fn == types.AggCount:
		v = float64(c.count)
	case fn.IsPercentile():
		if c.sketch == nil {
			return nil
		}
		q, err := c.sketch.GetValueAtQuantile(fn.Quantile())
		if err != nil {
			return nil
		}
		v = q
	}
	return &v
}

type numericReducer struct {
	ch    *channel
	total int64
}

func newNumericReducer(accuracy float64) *numericReducer {
	// The sketch is only needed for percentile functions, but the reducer
	// does not know the function until finish; the empty sketch is cheap.
	return &numericReducer{ch: newChannel(accuracy, true)}
}

func (r *numericReducer) add(s *types.Sample) {
	r.total++
	if v, ok := numericValue(s.Value); ok {
		r.ch.add(v)
	}
}

func (r *numericReducer) finish(fn types.AggFunc) types.AggregateRow {
	return types.AggregateRow{
		Count: r.total,
		Value: r.ch.value(fn),
	}
}

// numericValue extracts the scalar from a numeric-shape payload
// {"value": <number>}. Stored samples always validated against their
// schema, so a failed extraction only skips the sample.
func numericValue(payload any) (float64, bool) {
	m, ok := payload.(map[string]any)
	if !ok {
		return 0, false
	}
	v, ok := m["value"].(float64)
	return v, ok
}

// ============================================================================
// RGB
// ============================================================================

type rgbReducer struct {
	r, g, b *channel
	total   int64
}

func newRGBReducer(accuracy float64) *rgbReducer {
	return &rgbReducer{
		r: newChannel(accuracy, true),
		g: newChannel(accuracy, true),
		b: newChannel(accuracy, true),
	}
}

func (r *rgbReducer) add(s *types.Sample) {
	r.total++
	m, ok := s.Value.(map[string]any)
	if !ok {
		return
	}
	if v, ok := m["r"].(float64); ok {
		r.r.add(v)
	}
	if v, ok := m["g"].(float64); ok {
		r.g.add(v)
	}
	if v, ok := m["b"].(float64); ok {
		r.b.add(v)
	}
}

// finish applies the aggregate function independently to each channel: max
// over {r:100,g:150,b:200} and {r:200,g:50,b:0} is {r:200,g:150,b:200}.
func (r *rgbReducer) finish(fn types.AggFunc) types.AggregateRow {
	return types.AggregateRow{
		Count: r.total,
		R:     r.r.value(fn),
		G:     r.g.value(fn),
		B:     r.b.value(fn),
	}
}

// ============================================================================
// Opaque
// ============================================================================

// opaqueReducer keeps the chronologically first raw value of the bucket.
// Input order is timestamp then insertion order, so the first sample seen
// is the one to keep; the aggregate function is ignored.
type opaqueReducer struct {
	first any
	seen  bool
	total int64
}

func (r *opaqueReducer) add(s *types.Sample) {
	r.total++
	if !r.seen {
		r.first = s.Value
		r.seen = true
	}
}

func (r *opaqueReducer) finish(types.AggFunc) types.AggregateRow {
	return types.AggregateRow{
		Count: r.total,
		Raw:   r.first,
	}
}
