package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/rekrytera/signals-cli/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock satisfies it
// in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// signalStatusNew is the initial workflow status of a persisted signal.
const signalStatusNew = "new"

const (
	findOrCreateCompanySQL = `INSERT INTO companies (id, name, domain, source, created_at) VALUES ($1, $2, $3, $4, $5) ON CONFLICT (name, source) DO UPDATE SET domain = CASE WHEN companies.domain = '' THEN excluded.domain ELSE companies.domain END RETURNING id`

	existingIdentifiersSQL = `SELECT external_id, url FROM job_records WHERE source = $1`

	insertRecordSQL = `INSERT INTO job_records (id, source, external_id, company_id, title, location, description, url, posted_at, job_type, salary, raw, is_valid, score, category, experience, reasoning, application_email, duration, eval_model, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)`

	insertSignalSQL = `INSERT INTO signals (id, company_id, record_id, source, title, score, category, reasoning, status, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	upsertContactSQL = `INSERT INTO contacts (id, company_id, record_id, source, method, first_name, last_name, title, email, profile_url, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11) ON CONFLICT DO NOTHING RETURNING id`

	insertRunSQL = `INSERT INTO runs (id, source, query, started_at, completed_at, stats, error, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
)

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"find_or_create_company": findOrCreateCompanySQL,
	"existing_identifiers":   existingIdentifiersSQL,
	"insert_record":          insertRecordSQL,
	"insert_signal":          insertSignalSQL,
	"upsert_contact":         upsertContactSQL,
	"insert_run":             insertRunSQL,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
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

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS companies (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	name       TEXT NOT NULL,
	domain     TEXT NOT NULL DEFAULT '',
	source     TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (name, source)
);

CREATE TABLE IF NOT EXISTS job_records (
	id                TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	source            TEXT NOT NULL,
	external_id       TEXT NOT NULL,
	company_id        TEXT NOT NULL REFERENCES companies(id),
	title             TEXT NOT NULL,
	location          TEXT NOT NULL DEFAULT '',
	description       TEXT NOT NULL DEFAULT '',
	url               TEXT NOT NULL DEFAULT '',
	posted_at         TIMESTAMPTZ,
	job_type          TEXT NOT NULL DEFAULT '',
	salary            TEXT NOT NULL DEFAULT '',
	raw               JSONB,
	is_valid          BOOLEAN NOT NULL,
	score             INTEGER NOT NULL,
	category          TEXT NOT NULL DEFAULT '',
	experience        TEXT NOT NULL DEFAULT '',
	reasoning         TEXT NOT NULL DEFAULT '',
	application_email TEXT NOT NULL DEFAULT '',
	duration          TEXT NOT NULL DEFAULT '',
	eval_model        TEXT NOT NULL DEFAULT '',
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (source, external_id)
);

CREATE INDEX IF NOT EXISTS idx_job_records_source_url ON job_records (source, url);
CREATE INDEX IF NOT EXISTS idx_job_records_company ON job_records (company_id);

CREATE TABLE IF NOT EXISTS signals (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	company_id TEXT NOT NULL REFERENCES companies(id),
	record_id  TEXT NOT NULL REFERENCES job_records(id),
	source     TEXT NOT NULL,
	title      TEXT NOT NULL DEFAULT '',
	score      INTEGER NOT NULL,
	category   TEXT NOT NULL DEFAULT '',
	reasoning  TEXT NOT NULL DEFAULT '',
	status     TEXT NOT NULL DEFAULT 'new',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_signals_company ON signals (company_id);
CREATE INDEX IF NOT EXISTS idx_signals_status ON signals (status);

CREATE TABLE IF NOT EXISTS contacts (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	company_id  TEXT NOT NULL REFERENCES companies(id),
	record_id   TEXT NOT NULL REFERENCES job_records(id),
	source      TEXT NOT NULL,
	method      TEXT NOT NULL,
	first_name  TEXT NOT NULL DEFAULT '',
	last_name   TEXT NOT NULL DEFAULT '',
	title       TEXT NOT NULL DEFAULT '',
	email       TEXT NOT NULL DEFAULT '',
	profile_url TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_contacts_company_email ON contacts (company_id, email) WHERE email <> '';
CREATE UNIQUE INDEX IF NOT EXISTS idx_contacts_company_profile ON contacts (company_id, profile_url) WHERE profile_url <> '';

CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY,
	source       TEXT NOT NULL,
	query        TEXT NOT NULL DEFAULT '',
	started_at   TIMESTAMPTZ NOT NULL,
	completed_at TIMESTAMPTZ NOT NULL,
	stats        JSONB NOT NULL,
	error        TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_runs_source ON runs (source);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs (started_at DESC);
`

// Migrate applies the schema. Statements are idempotent.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) FindOrCreateCompany(ctx context.Context, name, domain string, source model.Source) (string, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	var companyID string
	err := s.pool.QueryRow(ctx, findOrCreateCompanySQL,
		id, name, domain, string(source), now,
	).Scan(&companyID)
	if err != nil {
		return "", eris.Wrapf(err, "postgres: find or create company %s", name)
	}
	return companyID, nil
}

func (s *PostgresStore) ExistingIdentifiers(ctx context.Context, source model.Source) (map[string]struct{}, error) {
	rows, err := s.pool.Query(ctx, existingIdentifiersSQL, string(source))
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query identifiers")
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var externalID, url string
		if err := rows.Scan(&externalID, &url); err != nil {
			return nil, eris.Wrap(err, "postgres: scan identifiers")
		}
		if externalID != "" {
			ids[externalID] = struct{}{}
		}
		if url != "" {
			ids[url] = struct{}{}
		}
	}
	return ids, eris.Wrap(rows.Err(), "postgres: iterate identifiers")
}

func (s *PostgresStore) CreateRecord(ctx context.Context, item model.Item, eval model.Evaluation, companyID string) (string, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	var raw []byte
	if len(item.Raw) > 0 {
		raw = []byte(item.Raw)
	}

	_, err := s.pool.Exec(ctx, insertRecordSQL,
		id, string(item.Source), item.Identifier(), companyID, item.Title, item.Location,
		item.Description, item.URL, item.PostedAt, item.JobType, item.Salary, raw,
		eval.IsValid, eval.Score, eval.Category, eval.Experience, eval.Reasoning,
		eval.ApplicationEmail, eval.Duration, eval.Model, now,
	)
	if err != nil {
		return "", eris.Wrapf(err, "postgres: insert record %s", item.Identifier())
	}
	return id, nil
}

func (s *PostgresStore) CreateSignal(ctx context.Context, companyID, recordID string, item model.Item, eval model.Evaluation) (string, error) {
	id := uuid.New().String()

	_, err := s.pool.Exec(ctx, insertSignalSQL,
		id, companyID, recordID, string(item.Source), item.Title,
		eval.Score, eval.Category, eval.Reasoning, signalStatusNew, time.Now().UTC(),
	)
	if err != nil {
		return "", eris.Wrapf(err, "postgres: insert signal for record %s", recordID)
	}
	return id, nil
}

func (s *PostgresStore) UpsertContact(ctx context.Context, contact model.Contact) (string, error) {
	id := uuid.New().String()

	var contactID string
	err := s.pool.QueryRow(ctx, upsertContactSQL,
		id, contact.CompanyID, contact.RecordID, string(contact.Source), string(contact.Method),
		contact.FirstName, contact.LastName, contact.Title, contact.Email, contact.ProfileURL,
		time.Now().UTC(),
	).Scan(&contactID)
	if err != nil {
		// No row back means the conflict target matched an existing contact.
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", eris.Wrap(err, "postgres: upsert contact")
	}
	return contactID, nil
}

func (s *PostgresStore) SaveRun(ctx context.Context, result model.RunResult) error {
	summary := result.Summary()

	statsJSON, err := json.Marshal(summary.Stats)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal run stats")
	}

	_, err = s.pool.Exec(ctx, insertRunSQL,
		summary.RunID, string(summary.Source), summary.Query,
		summary.StartedAt, summary.CompletedAt, statsJSON, summary.Error,
		time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: save run %s", summary.RunID)
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.RunSummary, error) {
	query := `SELECT id, source, query, started_at, completed_at, stats, error FROM runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Source != "" {
		query += fmt.Sprintf(` AND source = $%d`, argIdx)
		args = append(args, string(filter.Source))
		argIdx++
	}
	query += ` ORDER BY started_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
		argIdx++
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.RunSummary
	for rows.Next() {
		var r model.RunSummary
		var statsJSON []byte

		if err := rows.Scan(&r.RunID, &r.Source, &r.Query, &r.StartedAt, &r.CompletedAt, &statsJSON, &r.Error); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		if err := json.Unmarshal(statsJSON, &r.Stats); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal run stats")
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `SELECT 1`)
	return eris.Wrap(err, "postgres: ping")
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}
