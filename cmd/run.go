package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rekrytera/signals-cli/internal/model"
	"github.com/rekrytera/signals-cli/internal/monitoring"
	"github.com/rekrytera/signals-cli/internal/registry"
	"github.com/rekrytera/signals-cli/internal/source"
)

var (
	runSourceName string
	runAll        bool
	runLimit      int
	runQuery      string
	runLocation   string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Fetch and evaluate signals from one source or all of them",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if runSourceName == "" && !runAll {
			return eris.New("either --source or --all is required")
		}
		if runSourceName != "" && runAll {
			return eris.New("--source and --all are mutually exclusive")
		}

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		sources := model.AllSources
		if !runAll {
			src := model.Source(runSourceName)
			if !src.Valid() {
				return eris.Errorf("unknown source %q", runSourceName)
			}
			sources = []model.Source{src}
		}

		overrides := source.Options{
			Query:    runQuery,
			Location: runLocation,
			Limit:    runLimit,
		}

		results := make([]model.RunResult, 0, len(sources))
		for _, src := range sources {
			result, err := runSource(ctx, env, src, overrides)
			if err != nil {
				if !runAll {
					return err
				}
				zap.L().Error("run: source failed", zap.String("source", string(src)), zap.Error(err))
				continue
			}
			results = append(results, result)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if !runAll {
			return enc.Encode(results[0])
		}
		return enc.Encode(results)
	},
}

func init() {
	runCmd.Flags().StringVar(&runSourceName, "source", "", "source to fetch (linkedin, indeed, platsbanken, google_places)")
	runCmd.Flags().BoolVar(&runAll, "all", false, "run every configured source in sequence")
	runCmd.Flags().IntVar(&runLimit, "limit", 0, "max items to fetch (default from registry)")
	runCmd.Flags().StringVar(&runQuery, "query", "", "search query override")
	runCmd.Flags().StringVar(&runLocation, "location", "", "location override")
	rootCmd.AddCommand(runCmd)
}

// runSource fetches one source, applies the exclusion filter, runs the
// pipeline, and persists the run. Non-zero override fields win over the
// registry spec.
func runSource(ctx context.Context, env *pipelineEnv, src model.Source, overrides source.Options) (model.RunResult, error) {
	adapter, ok := env.Adapters[src]
	if !ok {
		return model.RunResult{}, eris.Errorf("no adapter for source %q", src)
	}

	opts := fetchOptions(env.Registry.Spec(src), overrides, cfg.Pipeline.DefaultLimit)

	items, err := adapter.Fetch(ctx, opts)
	if err != nil {
		env.Alerts.Emit(string(src), monitoring.StageSourceFetch, monitoring.SeverityWarning,
			"Source fetch failed", err.Error(), map[string]any{
				"query": opts.Query,
				"limit": opts.Limit,
			})
		return model.RunResult{}, eris.Wrapf(err, "fetch %s", src)
	}

	items = source.Filter(items, env.Registry.ExcludeKeywords)

	result := env.Pipeline.Run(ctx, src, opts.Query, items)

	// Run history is best-effort: the result is already in hand, so a
	// failed history write only costs the audit trail.
	if err := env.Store.SaveRun(ctx, result); err != nil {
		zap.L().Warn("run: failed to persist run history",
			zap.String("run_id", result.RunID),
			zap.Error(err),
		)
	}

	return result, nil
}

// fetchOptions merges the registry spec with caller overrides and the
// configured fallback limit.
func fetchOptions(spec registry.SourceSpec, overrides source.Options, defaultLimit int) source.Options {
	opts := source.Options{
		Query:      spec.Query,
		Location:   spec.Location,
		Limit:      spec.Limit,
		Categories: spec.Categories,
	}
	if overrides.Query != "" {
		opts.Query = overrides.Query
	}
	if overrides.Location != "" {
		opts.Location = overrides.Location
	}
	if overrides.Limit > 0 {
		opts.Limit = overrides.Limit
	}
	if opts.Limit <= 0 {
		opts.Limit = defaultLimit
	}
	return opts
}
