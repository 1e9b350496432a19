// Package store persists companies, job records, signals, contacts and
// pipeline runs. Two implementations exist: Postgres (pgx) for deployments
// and SQLite for local runs and tests. Both apply the same schema through
// Migrate and enforce uniqueness of (source, external_id) on job records,
// which backstops the pre-pipeline deduplication pass.
package store

import (
	"context"

	"github.com/rekrytera/signals-cli/internal/model"
)

// RunFilter narrows ListRuns. Zero values mean "no filter"; Limit
// defaults to 100 when unset.
type RunFilter struct {
	Source model.Source
	Limit  int
	Offset int
}

// Store is the persistence surface used by the pipeline and the CLI.
type Store interface {
	// FindOrCreateCompany resolves a company by (name, source), creating it
	// on first sight, and returns its id. A non-empty domain backfills a
	// previously empty one.
	FindOrCreateCompany(ctx context.Context, name, domain string, source model.Source) (string, error)

	// ExistingIdentifiers returns the set of all external ids and URLs
	// already recorded for the source, for pre-pipeline deduplication.
	ExistingIdentifiers(ctx context.Context, source model.Source) (map[string]struct{}, error)

	// CreateRecord inserts a job record with its evaluation and returns the
	// record id. Inserting a second record with the same (source, external
	// id) fails on the unique constraint.
	CreateRecord(ctx context.Context, item model.Item, eval model.Evaluation, companyID string) (string, error)

	// CreateSignal inserts a qualified signal for a valid record.
	CreateSignal(ctx context.Context, companyID, recordID string, item model.Item, eval model.Evaluation) (string, error)

	// UpsertContact inserts a contact unless one with the same email or
	// profile URL already exists for the company. A duplicate is not an
	// error: it returns ("", nil).
	UpsertContact(ctx context.Context, contact model.Contact) (string, error)

	// SaveRun persists the summary of a completed pipeline run.
	SaveRun(ctx context.Context, result model.RunResult) error

	// ListRuns returns saved run summaries, newest first.
	ListRuns(ctx context.Context, filter RunFilter) ([]model.RunSummary, error)

	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
