package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/prospector-cli/internal/model"
	"github.com/sells-group/prospector-cli/internal/monitoring"
	"github.com/sells-group/prospector-cli/internal/store"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the webhook server for scrape requests",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEngine(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		collector := monitoring.NewCollector(env.Store, env.Cache)

		// Background loops: cache sweeping and alert checks. Both stop with ctx.
		go env.Cache.Janitor(ctx, time.Duration(cfg.Cache.JanitorIntervalSecs)*time.Second)
		checker := monitoring.NewChecker(collector, monitoring.NewAlerter(cfg.Monitoring), cfg.Monitoring)
		go checker.Run(ctx)

		mux := buildMux(ctx, env, collector)

		addr := serveAddr
		if addr == "" {
			addr = cfg.Server.Addr
		}

		srv := &http.Server{
			Addr:    addr,
			Handler: mux,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(sctx)
		}()

		zap.L().Info("starting server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// taskRequest is one scrape task in a webhook payload.
type taskRequest struct {
	Type       string            `json:"type"`
	Target     string            `json:"target"`
	Query      string            `json:"query"`
	MaxResults int               `json:"max_results"`
	Priority   string            `json:"priority"`
	Filters    map[string]string `json:"filters"`
}

// buildMux wires the HTTP routes. env may be nil in tests; handlers that need
// the engine or store degrade instead of panicking.
func buildMux(ctx context.Context, env *engineEnv, collector *monitoring.Collector) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("POST /webhook/scrape", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Tasks []taskRequest `json:"tasks"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}
		if len(req.Tasks) == 0 {
			http.Error(w, `{"error":"tasks is required"}`, http.StatusBadRequest)
			return
		}

		tasks := make([]model.Task, 0, len(req.Tasks))
		for _, tr := range req.Tasks {
			typ := model.TaskType(tr.Type)
			if !typ.Valid() {
				http.Error(w, `{"error":"unknown task type"}`, http.StatusBadRequest)
				return
			}
			if tr.Target == "" {
				http.Error(w, `{"error":"target is required"}`, http.StatusBadRequest)
				return
			}
			opts := []model.TaskOption{
				model.WithPriority(model.ParsePriority(tr.Priority)),
				model.WithQuery(tr.Query),
				model.WithMaxResults(tr.MaxResults),
				model.WithFilters(tr.Filters),
			}
			tasks = append(tasks, model.NewTask(typ, tr.Target, opts...))
		}

		run := model.NewRun(tasks)
		if env != nil && env.Store != nil {
			if err := env.Store.CreateRun(r.Context(), run); err != nil {
				zap.L().Warn("webhook: failed to record run", zap.String("run_id", run.ID), zap.Error(err))
			}
		}

		// Process asynchronously; the server ctx cancels in-flight runs on
		// shutdown and the engine settles them as cancelled.
		go func() {
			if env == nil || env.Engine == nil {
				return
			}
			report, err := env.Engine.Process(ctx, run)
			if err != nil {
				zap.L().Error("webhook run failed",
					zap.String("run_id", run.ID),
					zap.Error(err),
				)
				return
			}
			deliverReport(ctx, report)
			zap.L().Info("webhook run complete",
				zap.String("run_id", run.ID),
				zap.Int("records", len(report.Records)),
			)
		}()

		writeJSON(w, http.StatusAccepted, map[string]any{
			"status": "accepted",
			"run_id": run.ID,
			"tasks":  len(tasks),
		})
	})

	mux.HandleFunc("GET /runs", func(w http.ResponseWriter, r *http.Request) {
		if env == nil || env.Store == nil {
			http.Error(w, `{"error":"store unavailable"}`, http.StatusServiceUnavailable)
			return
		}

		filter := store.RunFilter{
			Status: model.RunStatus(r.URL.Query().Get("status")),
			Limit:  50,
		}
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				http.Error(w, `{"error":"invalid limit"}`, http.StatusBadRequest)
				return
			}
			filter.Limit = n
		}

		runs, err := env.Store.ListRuns(r.Context(), filter)
		if err != nil {
			zap.L().Error("list runs failed", zap.Error(err))
			http.Error(w, `{"error":"list runs failed"}`, http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"runs": runs, "count": len(runs)})
	})

	mux.HandleFunc("GET /metrics", func(w http.ResponseWriter, r *http.Request) {
		if collector == nil {
			http.Error(w, `{"error":"metrics unavailable"}`, http.StatusServiceUnavailable)
			return
		}
		snap, err := collector.Collect(r.Context(), cfgLookbackHours())
		if err != nil {
			zap.L().Error("collect metrics failed", zap.Error(err))
			http.Error(w, `{"error":"collect metrics failed"}`, http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	})

	return mux
}

// writeJSON writes v as a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// cfgLookbackHours reads the monitoring lookback window, tolerating a nil
// global config in tests.
func cfgLookbackHours() int {
	if cfg == nil {
		return 24
	}
	return cfg.Monitoring.LookbackWindowHours
}
