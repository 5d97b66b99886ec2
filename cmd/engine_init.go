package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/prospector-cli/internal/agents"
	"github.com/sells-group/prospector-cli/internal/cache"
	"github.com/sells-group/prospector-cli/internal/compliance"
	"github.com/sells-group/prospector-cli/internal/engine"
	"github.com/sells-group/prospector-cli/internal/resilience"
	"github.com/sells-group/prospector-cli/internal/store"
	"github.com/sells-group/prospector-cli/internal/validate"
	"github.com/sells-group/prospector-cli/pkg/extractor"
)

// engineEnv holds the initialized store, shared cache, and engine needed by
// the run/batch/serve commands.
type engineEnv struct {
	Store  store.Store
	Cache  *cache.Cache
	Engine *engine.Engine
}

// Close releases resources held by the environment.
func (ee *engineEnv) Close() {
	if ee.Store != nil {
		_ = ee.Store.Close()
	}
}

// initStore opens the run store selected by config.
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		return store.NewSQLite(cfg.Store.DatabaseURL)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &cfg.Store.Pool)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initEngine sets up the store, shared cache, compliance checker, agent
// registry, and the engine. mode selects which config sections Validate
// requires. Callers should defer env.Close().
func initEngine(ctx context.Context, mode string) (*engineEnv, error) {
	if err := cfg.Validate(mode); err != nil {
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

	// One cache instance backs extraction results, compliance decisions,
	// rate-limit timestamps, and validation verdicts.
	shared := cache.New(time.Duration(cfg.Cache.TTLSecs) * time.Second)

	checker, err := compliance.NewChecker(compliance.Config{
		RespectRobots: cfg.Compliance.RespectRobotsTxt,
		UserAgent:     cfg.Compliance.UserAgent,
		MinDelay:      time.Duration(cfg.Compliance.RateLimitDelayMS) * time.Millisecond,
		RulesFile:     cfg.Compliance.RulesFile,
	}, shared)
	if err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "init compliance checker")
	}

	opts := []extractor.Option{
		extractor.WithRetryConfig(resilience.FromRetryConfig(cfg.Extractor.MaxRetries, cfg.Extractor.RetryBackoffMS)),
		extractor.WithCircuitConfig(resilience.FromCircuitConfig(cfg.Extractor.CircuitThreshold, cfg.Extractor.CircuitResetSecs)),
	}
	if cfg.Extractor.BaseURL != "" {
		opts = append(opts, extractor.WithBaseURL(cfg.Extractor.BaseURL))
	}
	client := extractor.NewClient(cfg.Extractor.APIKey, opts...)

	reg := agents.NewRegistry()
	reg.Register(agents.NewLinkedIn(client, checker))
	reg.Register(agents.NewDirectory(client, checker))
	reg.Register(agents.NewWebsite(client, checker))

	var approver engine.Approver
	if cfg.Approval.WebhookURL != "" {
		approver = engine.NewWebhookApprover(cfg.Approval.WebhookURL)
	}

	eng := engine.New(engine.Config{
		RequireApproval:     cfg.Approval.RequireHumanApproval,
		AutoApprovePreviews: cfg.Approval.AutoApprovePreviews,
	}, engine.Deps{
		Agents:    reg,
		Cache:     shared,
		Validator: validate.New(shared),
		Store:     st,
		Approver:  approver,
	})

	return &engineEnv{Store: st, Cache: shared, Engine: eng}, nil
}
