// Package query is the external-facing orchestration over the metric core:
// it accepts raw query parameters, drives the filter pipeline and the
// aggregation engine, and shapes the result payload. The HTTP binding that
// calls it lives outside this repository.
package query

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/lumohealth/vitalstore/internal/config"
	"github.com/lumohealth/vitalstore/internal/errors"
	"github.com/lumohealth/vitalstore/internal/logging"
	"github.com/lumohealth/vitalstore/internal/metrics/aggregate"
	"github.com/lumohealth/vitalstore/internal/metrics/filter"
	"github.com/lumohealth/vitalstore/internal/metrics/registry"
	"github.com/lumohealth/vitalstore/internal/metrics/store"
	"github.com/lumohealth/vitalstore/internal/metrics/types"
	"github.com/lumohealth/vitalstore/internal/metrics/validator"
)

// Params are the raw query parameters as the boundary hands them over.
// UserID is required; everything else is optional with documented defaults.
type Params struct {
	UserID    string
	SessionID string

	// Series is a comma-separated list of exact names or '*' globs.
	Series string

	// StartTime/EndTime accept timestamps or bare dates. EndTime defaults
	// to now, StartTime to EndTime minus the configured window.
	StartTime string
	EndTime   string

	// Interval defaults to week, AggFunc to avg.
	Interval string
	AggFunc  string
}

// Stats holds façade statistics.
type Stats struct {
	QueriesExecuted int64
	RowsReturned    int64
	IngestsAccepted int64
	IngestsRejected int64
}

// Service orchestrates ingestion and querying. All collaborators are
// explicitly constructed and injected; the service holds no hidden state
// beyond counters.
type Service struct {
	cfg       *config.Config
	store     *store.Store
	registry  *registry.Registry
	validator *validator.Validator
	engine    *aggregate.Engine
	log       *slog.Logger

	queries  atomic.Int64
	rows     atomic.Int64
	accepted atomic.Int64
	rejected atomic.Int64

	// now is replaceable in tests for deterministic window defaulting.
	now func() time.Time
}

// New creates the query façade.
func New(cfg *config.Config, st *store.Store, reg *registry.Registry) *Service {
	return &Service{
		cfg:       cfg,
		store:     st,
		registry:  reg,
		validator: validator.New(reg),
		engine:    aggregate.New(cfg.Percentile.Accuracy),
		log:       logging.Component("query"),
		now:       time.Now,
	}
}

// Query answers a time-bucketed aggregate query.
//
// The user filter is mandatory; session, series patterns and time window
// are optional conjunctive restrictions. All distinct series matched by the
// filter are fetched in one scan, then aggregated per series per bucket.
func (s *Service) Query(ctx context.Context, p Params) (*types.QueryResult, error) {
	interval, err := types.ParseInterval(p.Interval)
	if err != nil {
		return nil, err
	}
	fn, err := types.ParseAggFunc(p.AggFunc)
	if err != nil {
		return nil, err
	}

	if s.cfg.Query.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Query.Timeout)
		defer cancel()
	}

	window, err := filter.ResolveWindow(p.StartTime, p.EndTime, s.now(), s.cfg.Query.DefaultWindowDays)
	if err != nil {
		return nil, err
	}
	pred, err := filter.Apply(
		filter.UserStage{UserID: p.UserID},
		filter.SessionStage{SessionID: p.SessionID},
		filter.SeriesStage{Patterns: p.Series},
		window,
	)
	if err != nil {
		return nil, err
	}

	samples, err := s.store.ScanSamples(ctx, pred)
	if err != nil {
		return nil, err
	}

	shapes, err := s.registry.Shapes(ctx, distinctSeries(samples))
	if err != nil {
		return nil, err
	}

	rows, err := s.engine.Aggregate(ctx, samples, shapes, interval, fn)
	if err != nil {
		return nil, err
	}

	s.queries.Add(1)
	s.rows.Add(int64(len(rows)))

	return &types.QueryResult{
		Metadata: types.QueryMetadata{
			Count:    len(rows),
			Interval: interval.String(),
			AggFunc:  fn.String(),
		},
		Results: rows,
	}, nil
}

// Ingest validates and persists a session creation request. Every sample
// is validated before any row is written; one bad sample rejects the whole
// request and leaves no session behind.
func (s *Service) Ingest(ctx context.Context, req types.IngestRequest) (uuid.UUID, error) {
	if req.UserID == uuid.Nil {
		s.rejected.Add(1)
		return uuid.Nil, errors.ErrEmptySession
	}

	if err := s.validator.ValidateAll(ctx, req.Data); err != nil {
		s.rejected.Add(1)
		return uuid.Nil, err
	}

	sess := &types.Session{UserID: req.UserID}
	if req.SessionID != nil {
		sess.SessionID = *req.SessionID
	}
	if req.StartTS != nil {
		sess.StartTsMs = req.StartTS.UnixMilli()
	}

	samples := make([]types.Sample, len(req.Data))
	for i, d := range req.Data {
		samples[i] = types.Sample{
			Series:      d.Series,
			TimestampMs: d.Time.UnixMilli(),
			Value:       d.Value,
		}
	}

	if err := s.store.CreateSession(ctx, sess, samples); err != nil {
		s.rejected.Add(1)
		return uuid.Nil, err
	}

	s.accepted.Add(1)
	s.log.Info("session ingested", "session", sess.SessionID, "samples", len(samples))
	return sess.SessionID, nil
}

// DeleteSession removes a session and all of its samples.
func (s *Service) DeleteSession(ctx context.Context, id uuid.UUID) error {
	return s.store.DeleteSession(ctx, id)
}

// ListSeries enumerates the registered metric types.
func (s *Service) ListSeries(ctx context.Context) ([]types.MetricType, error) {
	return s.registry.List(ctx)
}

// SamplesForExport runs the filtered scan without aggregation; the archive
// exporter feeds these rows into a Parquet file.
func (s *Service) SamplesForExport(ctx context.Context, p Params) ([]types.Sample, error) {
	window, err := filter.ResolveWindow(p.StartTime, p.EndTime, s.now(), s.cfg.Query.DefaultWindowDays)
	if err != nil {
		return nil, err
	}
	pred, err := filter.Apply(
		filter.UserStage{UserID: p.UserID},
		filter.SessionStage{SessionID: p.SessionID},
		filter.SeriesStage{Patterns: p.Series},
		window,
	)
	if err != nil {
		return nil, err
	}
	return s.store.ScanSamples(ctx, pred)
}

// Stats returns façade statistics.
func (s *Service) Stats() Stats {
	return Stats{
		QueriesExecuted: s.queries.Load(),
		RowsReturned:    s.rows.Load(),
		IngestsAccepted: s.accepted.Load(),
		IngestsRejected: s.rejected.Load(),
	}
}

func distinctSeries(samples []types.Sample) []string {
	var names []string
	for i := range samples {
		if i == 0 || samples[i].Series != samples[i-1].Series {
			names = append(names, samples[i].Series)
		}
	}
	return names
}
