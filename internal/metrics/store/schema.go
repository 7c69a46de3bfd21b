package store

// Schema DDL. Timestamps are Unix milliseconds (BIGINT), value payloads and
// schemas are JSON text. sample_id is insertion-ordered so first-value
// selection has a stable tie break.
const (
	createMetricTypes = `CREATE TABLE IF NOT EXISTS metric_types (
    series TEXT PRIMARY KEY,
    schema_json TEXT NOT NULL,
    description TEXT,
    created_at BIGINT NOT NULL
);`

	createSessions = `CREATE TABLE IF NOT EXISTS sessions (
    session_id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    start_ts BIGINT,
    created_at BIGINT NOT NULL
);`

	createSamplesSeq = `CREATE SEQUENCE IF NOT EXISTS samples_seq;`

	createSamples = `CREATE TABLE IF NOT EXISTS samples (
    sample_id BIGINT PRIMARY KEY DEFAULT nextval('samples_seq'),
    session_id TEXT NOT NULL,
    series TEXT NOT NULL,
    ts BIGINT NOT NULL,
    value TEXT NOT NULL
);`

	indexSamplesSeriesTs = `CREATE INDEX IF NOT EXISTS idx_samples_series_ts ON samples (series, ts);`
	indexSamplesSession  = `CREATE INDEX IF NOT EXISTS idx_samples_session ON samples (session_id);`
	indexSessionsUser    = `CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions (user_id);`
)

// schemaStatements lists the DDL in dependency order.
var schemaStatements = []string{
	createMetricTypes,
	createSessions,
	createSamplesSeq,
	createSamples,
	indexSamplesSeriesTs,
	indexSamplesSession,
	indexSessionsUser,
}
