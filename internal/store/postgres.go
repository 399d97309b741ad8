// Package store persists leads, carousel scoring state, payments, reference
// tables, dead letters and job runs in PostgreSQL.
package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/leadops-cli/internal/db"
)

// DefaultBatchSize bounds COPY chunks when the caller does not.
const DefaultBatchSize = 1000

// PostgresStore implements every persistence interface of the back office
// over one pgx pool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "store: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "store: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "store: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewWithPool wraps an existing pool.
func NewWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Pool returns the underlying database pool.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const migration = `
CREATE TABLE IF NOT EXISTS leads (
	id         BIGSERIAL PRIMARY KEY,
	email      TEXT NOT NULL DEFAULT '',
	phone      TEXT NOT NULL DEFAULT '',
	name       TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	url        TEXT NOT NULL DEFAULT '',
	qa_1       TEXT NOT NULL DEFAULT '',
	qa_2       TEXT NOT NULL DEFAULT '',
	qa_3       TEXT NOT NULL DEFAULT '',
	qa_4       TEXT NOT NULL DEFAULT '',
	qa_5       TEXT NOT NULL DEFAULT '',
	qa_6       TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_leads_created_at ON leads(created_at);
CREATE INDEX IF NOT EXISTS idx_leads_email ON leads(lower(email));

CREATE TABLE IF NOT EXISTS carousel (
	id             BIGSERIAL PRIMARY KEY,
	lead_id        BIGINT NOT NULL UNIQUE REFERENCES leads(id) ON DELETE CASCADE,
	status         TEXT NOT NULL DEFAULT 'new',
	score          INTEGER NOT NULL DEFAULT 0,
	score_info     JSONB NOT NULL DEFAULT '{}',
	owner          TEXT NOT NULL DEFAULT '',
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	distributed_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_carousel_status ON carousel(status);
CREATE INDEX IF NOT EXISTS idx_carousel_created_at ON carousel(created_at);

CREATE TABLE IF NOT EXISTS payments (
	id             BIGSERIAL PRIMARY KEY,
	email          TEXT NOT NULL DEFAULT '',
	crm_id         TEXT NOT NULL,
	manager        TEXT NOT NULL DEFAULT '',
	manager_group  TEXT NOT NULL DEFAULT '',
	grp            TEXT NOT NULL DEFAULT '',
	course         TEXT NOT NULL DEFAULT '',
	profit         BIGINT NOT NULL DEFAULT 0,
	date_created   DATE,
	date_last_paid DATE,
	date_payment   DATE,
	date_zoom      DATE,
	type           TEXT NOT NULL DEFAULT 'other',
	url            TEXT NOT NULL DEFAULT '',
	target_url     TEXT NOT NULL DEFAULT '',
	channel        TEXT NOT NULL DEFAULT 'Undefined'
);

CREATE TABLE IF NOT EXISTS managers (
	first_name TEXT NOT NULL,
	last_name  TEXT NOT NULL,
	grp        TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (first_name, last_name)
);

CREATE TABLE IF NOT EXISTS channels (
	key   TEXT PRIMARY KEY,
	title TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS landing_pages (
	url  TEXT PRIMARY KEY,
	paid BOOLEAN NOT NULL DEFAULT false
);

CREATE TABLE IF NOT EXISTS category_urls (
	url      TEXT NOT NULL,
	category TEXT NOT NULL,
	PRIMARY KEY (url, category)
);

CREATE TABLE IF NOT EXISTS scoring_groups (
	name       TEXT PRIMARY KEY,
	is_default BOOLEAN NOT NULL DEFAULT false,
	urls       JSONB NOT NULL DEFAULT '[]',
	points     JSONB NOT NULL DEFAULT '{}',
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS expenses (
	date    DATE NOT NULL,
	landing TEXT NOT NULL,
	channel TEXT NOT NULL,
	amount  BIGINT NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_expenses_date ON expenses(date);

CREATE TABLE IF NOT EXISTS dead_letters (
	id             TEXT PRIMARY KEY,
	kind           TEXT NOT NULL,
	payload        JSONB NOT NULL,
	error          TEXT NOT NULL,
	error_type     TEXT NOT NULL DEFAULT 'transient',
	attempts       INTEGER NOT NULL DEFAULT 1,
	max_attempts   INTEGER NOT NULL DEFAULT 3,
	next_retry_at  TIMESTAMPTZ NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	last_failed_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_dead_letters_due ON dead_letters(kind, next_retry_at);

CREATE TABLE IF NOT EXISTS job_runs (
	id           TEXT PRIMARY KEY,
	job          TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'running',
	rows         BIGINT NOT NULL DEFAULT 0,
	error        TEXT NOT NULL DEFAULT '',
	started_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_job_runs_started_at ON job_runs(started_at DESC);
`

// Ping checks the connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "store: ping")
}

// Migrate creates the schema.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, migration)
	return eris.Wrap(err, "store: migrate")
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func batchSize(n int) int {
	if n <= 0 {
		return DefaultBatchSize
	}
	return n
}

// dateArg stores the zero time as NULL.
func dateArg(t time.Time) pgtype.Date {
	if t.IsZero() {
		return pgtype.Date{}
	}
	return pgtype.Date{Time: t.UTC(), Valid: true}
}

func dateValue(d pgtype.Date) time.Time {
	if !d.Valid {
		return time.Time{}
	}
	return d.Time
}
