package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rekrytera/signals-cli/internal/model"
	"github.com/rekrytera/signals-cli/internal/source"
	"github.com/rekrytera/signals-cli/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the webhook server for triggering pipeline runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: buildRouter(ctx, env),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// buildRouter wires the HTTP surface: health, async run trigger, run history.
func buildRouter(ctx context.Context, env *pipelineEnv) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		if err := env.Store.Ping(req.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/webhook/run", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			Source   string `json:"source"`
			Query    string `json:"query"`
			Location string `json:"location"`
			Limit    int    `json:"limit"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}

		src := model.Source(body.Source)
		if !src.Valid() {
			http.Error(w, `{"error":"unknown source"}`, http.StatusBadRequest)
			return
		}

		overrides := source.Options{
			Query:    body.Query,
			Location: body.Location,
			Limit:    body.Limit,
		}

		// The run outlives the request: the server context, not the client
		// disconnect, bounds it.
		go func() {
			result, err := runSource(ctx, env, src, overrides)
			if err != nil {
				zap.L().Error("webhook run failed",
					zap.String("source", string(src)),
					zap.Error(err),
				)
				return
			}
			zap.L().Info("webhook run complete",
				zap.String("source", string(src)),
				zap.String("run_id", result.RunID),
				zap.Int("processed", result.Stats.Processed),
				zap.Int("valid", result.Stats.Valid),
			)
		}()

		writeJSON(w, http.StatusAccepted, map[string]string{
			"status": "accepted",
			"source": string(src),
		})
	})

	r.Get("/runs", func(w http.ResponseWriter, req *http.Request) {
		filter := store.RunFilter{
			Source: model.Source(req.URL.Query().Get("source")),
			Limit:  intQuery(req, "limit"),
			Offset: intQuery(req, "offset"),
		}

		runs, err := env.Store.ListRuns(req.Context(), filter)
		if err != nil {
			zap.L().Error("list runs failed", zap.Error(err))
			http.Error(w, `{"error":"list runs failed"}`, http.StatusInternalServerError)
			return
		}
		if runs == nil {
			runs = []model.RunSummary{}
		}
		writeJSON(w, http.StatusOK, runs)
	})

	return r
}

// writeJSON writes v as a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// intQuery parses an integer query parameter; absent or malformed values
// become zero so the store applies its own defaults.
func intQuery(req *http.Request, key string) int {
	n, _ := strconv.Atoi(req.URL.Query().Get(key))
	if n < 0 {
		return 0
	}
	return n
}
