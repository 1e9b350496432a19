package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/rekrytera/signals-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS companies (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	domain     TEXT NOT NULL DEFAULT '',
	source     TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (name, source)
);

CREATE TABLE IF NOT EXISTS job_records (
	id                TEXT PRIMARY KEY,
	source            TEXT NOT NULL,
	external_id       TEXT NOT NULL,
	company_id        TEXT NOT NULL REFERENCES companies(id),
	title             TEXT NOT NULL,
	location          TEXT NOT NULL DEFAULT '',
	description       TEXT NOT NULL DEFAULT '',
	url               TEXT NOT NULL DEFAULT '',
	posted_at         DATETIME,
	job_type          TEXT NOT NULL DEFAULT '',
	salary            TEXT NOT NULL DEFAULT '',
	raw               TEXT,
	is_valid          BOOLEAN NOT NULL,
	score             INTEGER NOT NULL,
	category          TEXT NOT NULL DEFAULT '',
	experience        TEXT NOT NULL DEFAULT '',
	reasoning         TEXT NOT NULL DEFAULT '',
	application_email TEXT NOT NULL DEFAULT '',
	duration          TEXT NOT NULL DEFAULT '',
	eval_model        TEXT NOT NULL DEFAULT '',
	created_at        DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (source, external_id)
);

CREATE INDEX IF NOT EXISTS idx_job_records_source_url ON job_records(source, url);
CREATE INDEX IF NOT EXISTS idx_job_records_company ON job_records(company_id);

CREATE TABLE IF NOT EXISTS signals (
	id         TEXT PRIMARY KEY,
	company_id TEXT NOT NULL REFERENCES companies(id),
	record_id  TEXT NOT NULL REFERENCES job_records(id),
	source     TEXT NOT NULL,
	title      TEXT NOT NULL DEFAULT '',
	score      INTEGER NOT NULL,
	category   TEXT NOT NULL DEFAULT '',
	reasoning  TEXT NOT NULL DEFAULT '',
	status     TEXT NOT NULL DEFAULT 'new',
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_signals_company ON signals(company_id);
CREATE INDEX IF NOT EXISTS idx_signals_status ON signals(status);

CREATE TABLE IF NOT EXISTS contacts (
	id          TEXT PRIMARY KEY,
	company_id  TEXT NOT NULL REFERENCES companies(id),
	record_id   TEXT NOT NULL REFERENCES job_records(id),
	source      TEXT NOT NULL,
	method      TEXT NOT NULL,
	first_name  TEXT NOT NULL DEFAULT '',
	last_name   TEXT NOT NULL DEFAULT '',
	title       TEXT NOT NULL DEFAULT '',
	email       TEXT NOT NULL DEFAULT '',
	profile_url TEXT NOT NULL DEFAULT '',
	created_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_contacts_company_email ON contacts(company_id, email) WHERE email <> '';
CREATE UNIQUE INDEX IF NOT EXISTS idx_contacts_company_profile ON contacts(company_id, profile_url) WHERE profile_url <> '';

CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY,
	source       TEXT NOT NULL,
	query        TEXT NOT NULL DEFAULT '',
	started_at   DATETIME NOT NULL,
	completed_at DATETIME NOT NULL,
	stats        TEXT NOT NULL,
	error        TEXT NOT NULL DEFAULT '',
	created_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_runs_source ON runs(source);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) FindOrCreateCompany(ctx context.Context, name, domain string, source model.Source) (string, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	var companyID string
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO companies (id, name, domain, source, created_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (name, source) DO UPDATE SET domain = CASE WHEN domain = '' THEN excluded.domain ELSE domain END
		 RETURNING id`,
		id, name, domain, string(source), now,
	).Scan(&companyID)
	if err != nil {
		return "", eris.Wrapf(err, "sqlite: find or create company %s", name)
	}
	return companyID, nil
}

func (s *SQLiteStore) ExistingIdentifiers(ctx context.Context, source model.Source) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT external_id, url FROM job_records WHERE source = ?`,
		string(source),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query identifiers")
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var externalID, url string
		if err := rows.Scan(&externalID, &url); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan identifiers")
		}
		if externalID != "" {
			ids[externalID] = struct{}{}
		}
		if url != "" {
			ids[url] = struct{}{}
		}
	}
	return ids, eris.Wrap(rows.Err(), "sqlite: iterate identifiers")
}

func (s *SQLiteStore) CreateRecord(ctx context.Context, item model.Item, eval model.Evaluation, companyID string) (string, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	var raw any
	if len(item.Raw) > 0 {
		raw = string(item.Raw)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO job_records (id, source, external_id, company_id, title, location, description, url, posted_at, job_type, salary, raw, is_valid, score, category, experience, reasoning, application_email, duration, eval_model, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, string(item.Source), item.Identifier(), companyID, item.Title, item.Location,
		item.Description, item.URL, item.PostedAt, item.JobType, item.Salary, raw,
		eval.IsValid, eval.Score, eval.Category, eval.Experience, eval.Reasoning,
		eval.ApplicationEmail, eval.Duration, eval.Model, now,
	)
	if err != nil {
		return "", eris.Wrapf(err, "sqlite: insert record %s", item.Identifier())
	}
	return id, nil
}

func (s *SQLiteStore) CreateSignal(ctx context.Context, companyID, recordID string, item model.Item, eval model.Evaluation) (string, error) {
	id := uuid.New().String()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO signals (id, company_id, record_id, source, title, score, category, reasoning, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, companyID, recordID, string(item.Source), item.Title,
		eval.Score, eval.Category, eval.Reasoning, signalStatusNew, time.Now().UTC(),
	)
	if err != nil {
		return "", eris.Wrapf(err, "sqlite: insert signal for record %s", recordID)
	}
	return id, nil
}

func (s *SQLiteStore) UpsertContact(ctx context.Context, contact model.Contact) (string, error) {
	id := uuid.New().String()

	var contactID string
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO contacts (id, company_id, record_id, source, method, first_name, last_name, title, email, profile_url, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT DO NOTHING
		 RETURNING id`,
		id, contact.CompanyID, contact.RecordID, string(contact.Source), string(contact.Method),
		contact.FirstName, contact.LastName, contact.Title, contact.Email, contact.ProfileURL,
		time.Now().UTC(),
	).Scan(&contactID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", eris.Wrap(err, "sqlite: upsert contact")
	}
	return contactID, nil
}

func (s *SQLiteStore) SaveRun(ctx context.Context, result model.RunResult) error {
	summary := result.Summary()

	statsJSON, err := json.Marshal(summary.Stats)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal run stats")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, source, query, started_at, completed_at, stats, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		summary.RunID, string(summary.Source), summary.Query,
		summary.StartedAt, summary.CompletedAt, string(statsJSON), summary.Error,
		time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: save run %s", summary.RunID)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.RunSummary, error) {
	query := `SELECT id, source, query, started_at, completed_at, stats, error FROM runs WHERE 1=1`
	var args []any

	if filter.Source != "" {
		query += ` AND source = ?`
		args = append(args, string(filter.Source))
	}
	query += ` ORDER BY started_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.RunSummary
	for rows.Next() {
		var r model.RunSummary
		var statsJSON string

		if err := rows.Scan(&r.RunID, &r.Source, &r.Query, &r.StartedAt, &r.CompletedAt, &statsJSON, &r.Error); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		if err := json.Unmarshal([]byte(statsJSON), &r.Stats); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal run stats")
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
