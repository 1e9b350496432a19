package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rekrytera/signals-cli/internal/dedup"
	"github.com/rekrytera/signals-cli/internal/model"
	"github.com/rekrytera/signals-cli/internal/monitoring"
)

// Alerter is the fire-and-forget channel for run-level failures.
type Alerter interface {
	Emit(source, stage string, severity monitoring.Severity, title, message string, details map[string]any)
}

// Pipeline orchestrates one run: dedupe the fetched items, process the
// survivors in batches, partition the outcomes and compute run statistics.
type Pipeline struct {
	dedup  *dedup.Deduplicator
	batch  *BatchRunner
	alerts Alerter
}

// New creates a Pipeline with all dependencies. The limit bounds per-chunk
// concurrency in the batch runner.
func New(st Store, ev Evaluator, alerts Alerter, limit int) *Pipeline {
	return &Pipeline{
		dedup:  dedup.New(st),
		batch:  NewBatchRunner(st, ev, limit),
		alerts: alerts,
	}
}

// Run executes the pipeline over already-filtered items. It always returns a
// well-formed result: run-level failures surface through the alert channel
// and the result's error field, never as a returned error, so a scheduled
// caller is never left without statistics.
func (p *Pipeline) Run(ctx context.Context, source model.Source, query string, items []model.Item) model.RunResult {
	runID := uuid.New().String()
	startedAt := time.Now().UTC()
	log := zap.L().With(zap.String("run_id", runID), zap.String("source", string(source)))
	log.Info("pipeline: starting run", zap.Int("fetched", len(items)))

	result := model.RunResult{
		RunID:     runID,
		Source:    source,
		Query:     query,
		StartedAt: startedAt,
		Stats:     model.RunStats{Fetched: len(items)},
	}

	fresh, err := p.dedup.Filter(ctx, source, items)
	if err != nil {
		log.Error("pipeline: run failed", zap.Error(err))
		p.alerts.Emit(string(source), monitoring.StagePipelineFailure, monitoring.SeverityCritical,
			"Pipeline failure", err.Error(), map[string]any{
				"run_id":  runID,
				"fetched": len(items),
			})
		result.Error = err.Error()
		result.Stats.Errors = 1
		result.CompletedAt = time.Now().UTC()
		return result
	}

	result.Stats.AfterDedup = len(fresh)
	result.Stats.AfterFilter = len(fresh)

	if len(fresh) == 0 {
		log.Info("pipeline: nothing to process after dedup")
		result.CompletedAt = time.Now().UTC()
		return result
	}

	outcomes := p.batch.Run(ctx, fresh)

	for _, o := range outcomes {
		switch {
		case o.Success && o.Evaluation.IsValid:
			result.Valid = append(result.Valid, o)
		case o.Success:
			result.Discarded = append(result.Discarded, o)
		default:
			result.Errored = append(result.Errored, o)
		}
	}
	result.Stats.Valid = len(result.Valid)
	result.Stats.Discarded = len(result.Discarded)
	result.Stats.Errors = len(result.Errored)
	result.Stats.Processed = result.Stats.Valid + result.Stats.Discarded + result.Stats.Errors
	result.CompletedAt = time.Now().UTC()

	log.Info("pipeline: run complete",
		zap.Int("processed", result.Stats.Processed),
		zap.Int("valid", result.Stats.Valid),
		zap.Int("discarded", result.Stats.Discarded),
		zap.Int("errors", result.Stats.Errors),
		zap.Duration("duration", result.Duration()),
	)
	return result
}
