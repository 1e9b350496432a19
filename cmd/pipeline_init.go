package main

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/rekrytera/signals-cli/internal/evaluate"
	"github.com/rekrytera/signals-cli/internal/model"
	"github.com/rekrytera/signals-cli/internal/monitoring"
	"github.com/rekrytera/signals-cli/internal/pipeline"
	"github.com/rekrytera/signals-cli/internal/registry"
	"github.com/rekrytera/signals-cli/internal/source"
	"github.com/rekrytera/signals-cli/internal/store"
	anthropicpkg "github.com/rekrytera/signals-cli/pkg/anthropic"
	"github.com/rekrytera/signals-cli/pkg/apify"
	"github.com/rekrytera/signals-cli/pkg/jobtech"
	"github.com/rekrytera/signals-cli/pkg/places"
)

// pipelineEnv holds the initialized store, source adapters, search registry,
// alert emitter, and the pipeline needed by the run/serve commands.
type pipelineEnv struct {
	Store    store.Store
	Pipeline *pipeline.Pipeline
	Adapters map[model.Source]source.Adapter
	Registry *registry.Registry
	Alerts   *monitoring.Emitter
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Alerts != nil {
		pe.Alerts.Close()
	}
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

// initPipeline sets up the store, source clients, search registry, evaluator,
// and the pipeline. Callers should defer env.Close().
func initPipeline(ctx context.Context) (*pipelineEnv, error) {
	if err := cfg.Validate("run"); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	reg, err := registry.Load(cfg.Registry.Path)
	if err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "load search registry")
	}

	apifyClient := apify.NewClient(cfg.Apify.Token,
		apify.WithBaseURL(cfg.Apify.BaseURL),
		apify.WithHTTPClient(&http.Client{Timeout: timeoutOrDefault(cfg.Apify.TimeoutSecs, 5*time.Minute)}),
	)
	jobtechClient := jobtech.NewClient(
		jobtech.WithBaseURL(cfg.JobTech.BaseURL),
		jobtech.WithHTTPClient(&http.Client{Timeout: timeoutOrDefault(cfg.JobTech.TimeoutSecs, 30*time.Second)}),
	)
	placesClient := places.NewClient(cfg.Places.Key,
		places.WithBaseURL(cfg.Places.BaseURL),
		places.WithHTTPClient(&http.Client{Timeout: timeoutOrDefault(cfg.Places.TimeoutSecs, 30*time.Second)}),
	)
	anthropicClient := anthropicpkg.NewClient(cfg.Anthropic.Key)

	adapters := map[model.Source]source.Adapter{
		model.SourceLinkedIn:     source.NewLinkedIn(apifyClient, cfg.Apify.LinkedInActor),
		model.SourceIndeed:       source.NewIndeed(apifyClient, cfg.Apify.IndeedActor),
		model.SourcePlatsbanken:  source.NewPlatsbanken(jobtechClient),
		model.SourceGooglePlaces: source.NewPlaces(placesClient),
	}

	alerts := monitoring.NewEmitter(cfg.Alerts)
	if cfg.Alerts.WebhookURL == "" {
		zap.L().Debug("SIGNALS_ALERTS_WEBHOOK_URL not set, alerts are log-only")
	}

	evaluator := evaluate.New(
		evaluate.AttemptsFromConfig(cfg.Anthropic, anthropicClient),
		alerts,
		cfg.Anthropic,
	)

	p := pipeline.New(st, evaluator, alerts, cfg.Pipeline.Concurrency)

	zap.L().Info("pipeline initialized",
		zap.String("store", cfg.Store.Driver),
		zap.Int("sources", len(adapters)),
		zap.String("model", cfg.Anthropic.Model),
		zap.Int("concurrency", cfg.Pipeline.Concurrency),
	)

	return &pipelineEnv{
		Store:    st,
		Pipeline: p,
		Adapters: adapters,
		Registry: reg,
		Alerts:   alerts,
	}, nil
}

// timeoutOrDefault converts a configured timeout in seconds, falling back
// when unset.
func timeoutOrDefault(secs int, fallback time.Duration) time.Duration {
	if secs <= 0 {
		return fallback
	}
	return time.Duration(secs) * time.Second
}
