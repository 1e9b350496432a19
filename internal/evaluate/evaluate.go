// Package evaluate scores normalized items against the business-fit
// criteria using the Anthropic API, with model fallback and a
// deterministic degraded verdict when every attempt fails.
package evaluate

import (
	"context"

	"go.uber.org/zap"

	"github.com/rekrytera/signals-cli/internal/config"
	"github.com/rekrytera/signals-cli/internal/model"
	"github.com/rekrytera/signals-cli/internal/monitoring"
	"github.com/rekrytera/signals-cli/pkg/anthropic"
)

// Alerter is the subset of the alert emitter the evaluator needs.
type Alerter interface {
	Emit(source, stage string, severity monitoring.Severity, title, message string, details map[string]any)
}

// Attempt is one (client, model) pair in the escalation chain.
type Attempt struct {
	Client anthropic.Client
	Model  string
}

// AttemptsFromConfig builds the attempt chain from configuration: the
// primary model first, then the fallback model when one is configured.
func AttemptsFromConfig(cfg config.AnthropicConfig, client anthropic.Client) []Attempt {
	attempts := []Attempt{{Client: client, Model: cfg.Model}}
	if cfg.FallbackModel != "" && cfg.FallbackModel != cfg.Model {
		attempts = append(attempts, Attempt{Client: client, Model: cfg.FallbackModel})
	}
	return attempts
}

// Evaluator runs the attempt chain for one item at a time. A transport
// failure or a schema-invalid response escalates to the next attempt;
// when the chain is exhausted the evaluator emits a warning alert and
// returns the degraded verdict instead of an error. The error return is
// reserved for context cancellation.
type Evaluator struct {
	attempts    []Attempt
	alerts      Alerter
	maxTokens   int64
	temperature float64
}

// New creates an Evaluator. The attempt order is the escalation order.
func New(attempts []Attempt, alerts Alerter, cfg config.AnthropicConfig) *Evaluator {
	return &Evaluator{
		attempts:    attempts,
		alerts:      alerts,
		maxTokens:   int64(cfg.MaxTokens),
		temperature: cfg.Temperature,
	}
}

// Evaluate scores one item.
func (e *Evaluator) Evaluate(ctx context.Context, item model.Item) (model.Evaluation, error) {
	log := zap.L().With(
		zap.String("source", string(item.Source)),
		zap.String("item", item.Identifier()),
	)

	var lastErr error
	for _, attempt := range e.attempts {
		if err := ctx.Err(); err != nil {
			return model.Evaluation{}, err
		}

		eval, err := e.evaluateOnce(ctx, attempt, item)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return model.Evaluation{}, ctxErr
			}
			log.Warn("evaluate: attempt failed",
				zap.String("model", attempt.Model),
				zap.Error(err),
			)
			lastErr = err
			continue
		}

		log.Debug("evaluate: scored",
			zap.String("model", attempt.Model),
			zap.Bool("is_valid", eval.IsValid),
			zap.Int("score", eval.Score),
			zap.String("category", eval.Category),
		)
		return eval, nil
	}

	reason := "no evaluation attempts configured"
	if lastErr != nil {
		reason = lastErr.Error()
	}
	log.Warn("evaluate: all attempts failed, returning degraded evaluation",
		zap.Int("attempts", len(e.attempts)),
		zap.String("reason", reason),
	)
	e.alerts.Emit(string(item.Source), monitoring.StageAIEvaluation, monitoring.SeverityWarning,
		"AI evaluation degraded", reason, map[string]any{
			"item":     item.Identifier(),
			"title":    item.Title,
			"attempts": len(e.attempts),
		})

	return model.Evaluation{
		IsValid:   false,
		Score:     0,
		Category:  model.CategoryEvaluationFailed,
		Reasoning: "AI evaluation failed: " + reason,
	}, nil
}

func (e *Evaluator) evaluateOnce(ctx context.Context, attempt Attempt, item model.Item) (model.Evaluation, error) {
	temperature := e.temperature
	resp, err := attempt.Client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       attempt.Model,
		MaxTokens:   e.maxTokens,
		System:      anthropic.BuildCachedSystemBlocks(evaluateSystemPrompt),
		Messages:    []anthropic.Message{{Role: "user", Content: buildUserPrompt(item)}},
		Temperature: &temperature,
	})
	if err != nil {
		return model.Evaluation{}, err
	}

	resp.Usage.LogCost(attempt.Model, "evaluate")

	eval, err := parseEvaluation(extractText(resp))
	if err != nil {
		return model.Evaluation{}, err
	}

	eval.Model = resp.Model
	if eval.Model == "" {
		eval.Model = attempt.Model
	}
	return eval, nil
}
