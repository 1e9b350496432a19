package pipeline

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rekrytera/signals-cli/internal/contact"
	"github.com/rekrytera/signals-cli/internal/model"
)

// defaultConcurrency bounds in-flight items per chunk. Kept low to stay
// inside the AI provider's rate limits.
const defaultConcurrency = 3

// Store is the subset of the persistence layer the pipeline touches.
type Store interface {
	FindOrCreateCompany(ctx context.Context, name, domain string, source model.Source) (string, error)
	ExistingIdentifiers(ctx context.Context, source model.Source) (map[string]struct{}, error)
	CreateRecord(ctx context.Context, item model.Item, eval model.Evaluation, companyID string) (string, error)
	CreateSignal(ctx context.Context, companyID, recordID string, item model.Item, eval model.Evaluation) (string, error)
	UpsertContact(ctx context.Context, contact model.Contact) (string, error)
}

// Evaluator scores one normalized item.
type Evaluator interface {
	Evaluate(ctx context.Context, item model.Item) (model.Evaluation, error)
}

// BatchRunner processes items through evaluate, persist and contact
// extraction. Items are partitioned into consecutive chunks of at most the
// concurrency limit; a chunk's items run in parallel and chunks run strictly
// in sequence, so a slow chunk never interleaves with the next one.
type BatchRunner struct {
	store     Store
	evaluator Evaluator
	contacts  *contact.Extractor
	limit     int
}

// NewBatchRunner creates a BatchRunner. A non-positive limit falls back to
// the default chunk size.
func NewBatchRunner(st Store, ev Evaluator, limit int) *BatchRunner {
	if limit <= 0 {
		limit = defaultConcurrency
	}
	return &BatchRunner{
		store:     st,
		evaluator: ev,
		contacts:  contact.New(),
		limit:     limit,
	}
}

// Run processes every item and returns one outcome per item, positioned by
// input order. A failing item is recorded as an error outcome and never
// aborts its siblings.
func (b *BatchRunner) Run(ctx context.Context, items []model.Item) []model.Outcome {
	outcomes := make([]model.Outcome, len(items))
	chunks := (len(items) + b.limit - 1) / b.limit
	succeeded := 0

	for start := 0; start < len(items); start += b.limit {
		end := min(start+b.limit, len(items))

		g, gCtx := errgroup.WithContext(ctx)
		for i := start; i < end; i++ {
			g.Go(func() error {
				outcomes[i] = b.processItem(gCtx, items[i])
				return nil
			})
		}
		_ = g.Wait()

		for i := start; i < end; i++ {
			if outcomes[i].Success {
				succeeded++
			}
		}
		zap.L().Info("pipeline: chunk complete",
			zap.Int("chunk", start/b.limit+1),
			zap.Int("chunks", chunks),
			zap.Int("completed", end),
			zap.Int("total", len(items)),
			zap.String("success_rate", fmt.Sprintf("%d/%d", succeeded, end)),
		)
	}
	return outcomes
}

// processItem runs one item through the full per-item pipeline. Errors are
// absorbed into the returned outcome.
func (b *BatchRunner) processItem(ctx context.Context, item model.Item) model.Outcome {
	log := zap.L().With(
		zap.String("source", string(item.Source)),
		zap.String("item", item.Identifier()),
	)

	eval, err := b.evaluator.Evaluate(ctx, item)
	if err != nil {
		log.Error("pipeline: evaluation failed", zap.Error(err))
		return errorOutcome(item, eval, err)
	}

	companyID, err := b.store.FindOrCreateCompany(ctx, item.Company, companyDomain(item, eval), item.Source)
	if err != nil {
		log.Error("pipeline: resolve company failed", zap.String("company", item.Company), zap.Error(err))
		return errorOutcome(item, eval, err)
	}

	recordID, err := b.store.CreateRecord(ctx, item, eval, companyID)
	if err != nil {
		log.Error("pipeline: persist record failed", zap.Error(err))
		return errorOutcome(item, eval, err)
	}

	outcome := model.Outcome{
		Item:       item,
		Evaluation: eval,
		Success:    true,
		CompanyID:  companyID,
		RecordID:   recordID,
	}

	// Signals exist only for items the evaluation qualified.
	if eval.IsValid {
		signalID, err := b.store.CreateSignal(ctx, companyID, recordID, item, eval)
		if err != nil {
			log.Error("pipeline: persist signal failed", zap.Error(err))
			return errorOutcome(item, eval, err)
		}
		outcome.SignalID = signalID
	}

	for _, c := range b.contacts.Extract(item, eval) {
		c.CompanyID = companyID
		c.RecordID = recordID

		contactID, err := b.store.UpsertContact(ctx, c)
		if err != nil {
			// The record is already durable; a contact write failure is not
			// worth losing the item over.
			log.Warn("pipeline: contact upsert failed",
				zap.String("email", c.Email),
				zap.Error(err),
			)
			continue
		}
		if contactID != "" {
			outcome.ContactIDs = append(outcome.ContactIDs, contactID)
		}
	}

	log.Debug("pipeline: item processed",
		zap.Bool("valid", eval.IsValid),
		zap.Int("score", eval.Score),
		zap.Int("contacts", len(outcome.ContactIDs)),
	)
	return outcome
}

// errorOutcome converts a per-item failure into its terminal outcome. The
// evaluation carried so far is downgraded so error outcomes are never
// mistaken for qualified ones.
func errorOutcome(item model.Item, eval model.Evaluation, err error) model.Outcome {
	eval.IsValid = false
	eval.Category = model.CategoryError
	return model.Outcome{
		Item:       item,
		Evaluation: eval,
		Success:    false,
		Error:      err.Error(),
	}
}

// companyDomain derives the owning company's domain. Job postings carry it
// in the application email; places leads carry it in the item URL, which is
// the business website when the place had one.
func companyDomain(item model.Item, eval model.Evaluation) string {
	if _, domain, ok := strings.Cut(eval.ApplicationEmail, "@"); ok && domain != "" {
		return domain
	}
	if item.Source != model.SourceGooglePlaces || item.URL == "" {
		return ""
	}
	u, err := url.Parse(item.URL)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	host := strings.TrimPrefix(u.Hostname(), "www.")
	// Places without a website fall back to the maps URL; that host is
	// Google's, not the company's.
	if host == "google.com" || strings.HasSuffix(host, ".google.com") {
		return ""
	}
	return host
}
