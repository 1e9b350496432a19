package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/rekrytera/signals-cli/internal/config"
)

// Severity classifies an alert.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Stages that emit alerts.
const (
	StageAIEvaluation    = "ai_evaluation"
	StagePipelineFailure = "pipeline_failure"
	StageSourceFetch     = "source_fetch"
)

// Alert is a single pipeline notification.
type Alert struct {
	Source    string         `json:"source,omitempty"`
	Stage     string         `json:"stage"`
	Severity  Severity       `json:"severity"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

const queueSize = 64

// Emitter delivers alerts to a webhook. Emit never blocks: alerts are
// queued and delivered by a background goroutine, and delivery failures
// are logged rather than surfaced to the pipeline.
type Emitter struct {
	webhookURL string
	client     *http.Client
	queue      chan Alert
	done       chan struct{}
	closeOnce  sync.Once
}

// NewEmitter creates an Emitter. An empty webhook URL disables delivery;
// alerts are still logged.
func NewEmitter(cfg config.AlertsConfig) *Emitter {
	return newEmitter(cfg.WebhookURL, queueSize)
}

func newEmitter(webhookURL string, size int) *Emitter {
	e := &Emitter{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
		queue:      make(chan Alert, size),
		done:       make(chan struct{}),
	}
	go e.deliver()
	return e
}

// Emit queues an alert for delivery. When the queue is full the alert is
// dropped; the log line is the only trace of it.
func (e *Emitter) Emit(source, stage string, severity Severity, title, message string, details map[string]any) {
	alert := Alert{
		Source:    source,
		Stage:     stage,
		Severity:  severity,
		Title:     title,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
	}

	log := zap.L().With(
		zap.String("source", source),
		zap.String("stage", stage),
		zap.String("severity", string(severity)),
	)
	if severity == SeverityCritical {
		log.Error("monitoring: "+title, zap.String("message", message))
	} else {
		log.Warn("monitoring: "+title, zap.String("message", message))
	}

	if e.webhookURL == "" {
		return
	}

	select {
	case e.queue <- alert:
	default:
		log.Warn("monitoring: alert queue full, dropping alert")
	}
}

// Close flushes queued alerts and stops the delivery goroutine.
func (e *Emitter) Close() {
	e.closeOnce.Do(func() { close(e.queue) })
	<-e.done
}

func (e *Emitter) deliver() {
	defer close(e.done)
	for alert := range e.queue {
		if err := e.sendWebhook(context.Background(), alert); err != nil {
			zap.L().Error("monitoring: failed to deliver alert",
				zap.String("stage", alert.Stage),
				zap.Error(err),
			)
		}
	}
}

// sendWebhook posts a single alert to the webhook URL.
func (e *Emitter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
