// Package store implements the durable session/sample store on DuckDB.
//
// DuckDB provides the contract the rest of the system assumes: range scans
// over the indexed timestamp column, regular-expression matching on the
// indexed series column, and transactional multi-row inserts. All
// timestamps are stored as Unix milliseconds; sample values are stored as
// the JSON text they arrived as, already schema-validated.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	_ "github.com/marcboeker/go-duckdb"

	"github.com/lumohealth/vitalstore/internal/config"
	"github.com/lumohealth/vitalstore/internal/errors"
	"github.com/lumohealth/vitalstore/internal/logging"
	"github.com/lumohealth/vitalstore/internal/metrics/filter"
	"github.com/lumohealth/vitalstore/internal/metrics/types"
)

// Store provides access to the metric_types, sessions and samples tables.
type Store struct {
	db     *sql.DB
	log    *slog.Logger
	closed atomic.Bool
}

// Open opens (creating if necessary) the database configured in cfg.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}
	return open(cfg.DatabasePath(), cfg.Query.MemoryLimit)
}

// OpenMemory opens an in-memory database. Used by tests.
func OpenMemory() (*Store, error) {
	return open("", "")
}

func open(path, memoryLimit string) (*Store, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	if memoryLimit != "" {
		if _, err := db.Exec(fmt.Sprintf("SET memory_limit='%s'", memoryLimit)); err != nil {
			db.Close()
			return nil, fmt.Errorf("set memory limit: %w", err)
		}
	}

	for _, stmt := range schemaStatements {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply schema: %w", err)
		}
	}

	s := &Store{
		db:  db,
		log: logging.Component("store"),
	}
	s.log.Debug("store opened", "path", path)
	return s, nil
}

// Close closes the database. Further operations return ErrStoreClosed.
func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}

func (s *Store) guard() error {
	if s.closed.Load() {
		return errors.ErrStoreClosed
	}
	return nil
}

// ============================================================================
// Metric types
// ============================================================================

// InsertMetricType persists a new metric type. The schema document has
// already been compiled by the registry; the store treats it as text.
// Returns ErrDuplicateSeries if the series name is taken.
func (s *Store) InsertMetricType(ctx context.Context, mt *types.MetricType) error {
	if err := s.guard(); err != nil {
		return err
	}

	if mt.CreatedAtMs == 0 {
		mt.CreatedAtMs = time.Now().UnixMilli()
	}
	// A single INSERT keeps duplicate detection atomic: concurrent
	// registrations race to the primary key and the loser gets mapped to
	// ErrDuplicateSeries instead of a raw constraint violation.
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO metric_types (series, schema_json, description, created_at) VALUES (?, ?, ?, ?)",
		mt.Series, mt.Schema, mt.Description, mt.CreatedAtMs,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return errors.Wrapf(errors.ErrDuplicateSeries, "series %s", mt.Series)
		}
		return errors.Wrapf(err, "inserting series %s", mt.Series)
	}
	return nil
}

// isDuplicateKey reports whether err is a DuckDB primary key violation.
// The driver does not expose a typed constraint error, so this matches
// on the message.
func isDuplicateKey(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "primary key constraint")
}

// GetMetricType looks up one metric type by series name.
// Returns ErrUnknownSeries if absent.
func (s *Store) GetMetricType(ctx context.Context, series string) (*types.MetricType, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx,
		"SELECT series, schema_json, description, created_at FROM metric_types WHERE series = ?",
		series,
	)
	mt, err := scanMetricType(row.Scan)
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(errors.ErrUnknownSeries, "series %s", series)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "getting series %s", series)
	}
	return mt, nil
}

// ListMetricTypes enumerates all registered metric types ordered by series.
func (s *Store) ListMetricTypes(ctx context.Context) ([]types.MetricType, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT series, schema_json, description, created_at FROM metric_types ORDER BY series",
	)
	if err != nil {
		return nil, errors.Wrap(err, "listing metric types")
	}
	defer rows.Close()

	var result []types.MetricType
	for rows.Next() {
		mt, err := scanMetricType(rows.Scan)
		if err != nil {
			return nil, errors.Wrap(err, "scanning metric type")
		}
		result = append(result, *mt)
	}
	return result, rows.Err()
}

func scanMetricType(scan func(...any) error) (*types.MetricType, error) {
	var mt types.MetricType
	var desc sql.NullString
	if err := scan(&mt.Series, &mt.Schema, &desc, &mt.CreatedAtMs); err != nil {
		return nil, err
	}
	mt.Description = desc.String
	return &mt, nil
}

// ============================================================================
// Sessions and samples
// ============================================================================

// CreateSession persists a session and all of its samples in one
// transaction. The caller has already validated every sample; any failure
// here rolls the whole request back so a partially written session can
// never be observed.
func (s *Store) CreateSession(ctx context.Context, sess *types.Session, samples []types.Sample) error {
	if err := s.guard(); err != nil {
		return err
	}
	if sess.UserID == uuid.Nil {
		return errors.ErrEmptySession
	}
	if sess.SessionID == uuid.Nil {
		sess.SessionID = uuid.New()
	}
	if sess.CreatedAtMs == 0 {
		sess.CreatedAtMs = time.Now().UnixMilli()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning session transaction")
	}
	defer tx.Rollback()

	var startTs any
	if sess.StartTsMs != 0 {
		startTs = sess.StartTsMs
	}
	_, err = tx.ExecContext(ctx,
		"INSERT INTO sessions (session_id, user_id, start_ts, created_at) VALUES (?, ?, ?, ?)",
		sess.SessionID.String(), sess.UserID.String(), startTs, sess.CreatedAtMs,
	)
	if err != nil {
		return errors.Wrapf(err, "inserting session %s", sess.SessionID)
	}

	for i := range samples {
		valueJSON, err := json.Marshal(samples[i].Value)
		if err != nil {
			return errors.Wrapf(err, "encoding sample %d", i)
		}
		_, err = tx.ExecContext(ctx,
			"INSERT INTO samples (session_id, series, ts, value) VALUES (?, ?, ?, ?)",
			sess.SessionID.String(), samples[i].Series, samples[i].TimestampMs, string(valueJSON),
		)
		if err != nil {
			return errors.Wrapf(err, "inserting sample %d (series %s)", i, samples[i].Series)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrapf(err, "committing session %s", sess.SessionID)
	}

	s.log.Debug("session created", "session", sess.SessionID, "samples", len(samples))
	return nil
}

// GetSession looks up a session by id. Returns ErrSessionNotFound if absent.
func (s *Store) GetSession(ctx context.Context, id uuid.UUID) (*types.Session, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}

	var sess types.Session
	var sessionID, userID string
	var startTs sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		"SELECT session_id, user_id, start_ts, created_at FROM sessions WHERE session_id = ?",
		id.String(),
	).Scan(&sessionID, &userID, &startTs, &sess.CreatedAtMs)
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(errors.ErrSessionNotFound, "session %s", id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "getting session %s", id)
	}

	if sess.SessionID, err = uuid.Parse(sessionID); err != nil {
		return nil, errors.Wrapf(err, "parsing session id %s", sessionID)
	}
	if sess.UserID, err = uuid.Parse(userID); err != nil {
		return nil, errors.Wrapf(err, "parsing user id %s", userID)
	}
	sess.StartTsMs = startTs.Int64
	return &sess, nil
}

// DeleteSession removes a session and cascades to its samples.
// Returns ErrSessionNotFound if the session does not exist.
func (s *Store) DeleteSession(ctx context.Context, id uuid.UUID) error {
	if err := s.guard(); err != nil {
		return err
	}

	var exists bool
	err := s.db.QueryRowContext(ctx,
		"SELECT true FROM sessions WHERE session_id = ?", id.String(),
	).Scan(&exists)
	if err == sql.ErrNoRows {
		return errors.Wrapf(errors.ErrSessionNotFound, "session %s", id)
	}
	if err != nil {
		return errors.Wrapf(err, "checking session %s", id)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning delete transaction")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM samples WHERE session_id = ?", id.String()); err != nil {
		return errors.Wrapf(err, "deleting samples for session %s", id)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM sessions WHERE session_id = ?", id.String()); err != nil {
		return errors.Wrapf(err, "deleting session %s", id)
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrapf(err, "committing delete of session %s", id)
	}
	return nil
}

// ScanSamples runs the filtered range scan. The result is ordered by
// series, then timestamp, then insertion order - exactly the order the
// aggregation engine consumes in its single pass.
func (s *Store) ScanSamples(ctx context.Context, p *filter.Predicate) ([]types.Sample, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}

	query := strings.Builder{}
	query.WriteString(
		"SELECT samples.sample_id, samples.session_id, samples.series, samples.ts, samples.value " +
			"FROM samples JOIN sessions ON samples.session_id = sessions.session_id",
	)
	clause, args := p.Clause()
	if clause != "" {
		query.WriteString(" WHERE ")
		query.WriteString(clause)
	}
	query.WriteString(" ORDER BY samples.series, samples.ts, samples.sample_id")

	rows, err := s.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, errors.Wrap(err, "scanning samples")
	}
	defer rows.Close()

	var result []types.Sample
	for rows.Next() {
		var sample types.Sample
		var sessionID, valueJSON string
		if err := rows.Scan(&sample.SampleID, &sessionID, &sample.Series, &sample.TimestampMs, &valueJSON); err != nil {
			return nil, errors.Wrap(err, "scanning sample row")
		}
		if sample.SessionID, err = uuid.Parse(sessionID); err != nil {
			return nil, errors.Wrapf(err, "parsing session id %s", sessionID)
		}
		if err := json.Unmarshal([]byte(valueJSON), &sample.Value); err != nil {
			return nil, errors.Wrapf(err, "decoding value of sample %d", sample.SampleID)
		}
		result = append(result, sample)
	}
	return result, rows.Err()
}
