package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/greensigteam/greensig-backend/internal/api"
	"github.com/greensigteam/greensig-backend/internal/clients"
	"github.com/greensigteam/greensig-backend/internal/config"
	"github.com/greensigteam/greensig-backend/internal/launcher"
	"github.com/greensigteam/greensig-backend/internal/manage"
	"github.com/greensigteam/greensig-backend/internal/orchestrator"
	"github.com/greensigteam/greensig-backend/internal/telemetry"
)

// AppContext holds all constructed application dependencies shared across
// subcommands. It is built once in PersistentPreRunE and referenced by
// run.go, check.go and serve.go.
type AppContext struct {
	cfg          *config.Config
	otelProvider *telemetry.Provider
	datastore    *clients.PostgresClient
	broker       orchestrator.Prober // nil when the broker probe is disabled
	runner       *manage.Runner
	orchestrator *orchestrator.Orchestrator
	router       *api.Router
}

// buildAppContext constructs all application dependencies from cfg:
//  1. Initialises the OTEL provider (best-effort, non-fatal)
//  2. Creates one circuit breaker per probed dependency
//  3. Creates the probes and the management-command runner
//  4. Creates the orchestrator with the exec launch strategy
//  5. Creates the HTTP router for serve mode
func buildAppContext(cfg *config.Config) (*AppContext, error) {
	app := &AppContext{cfg: cfg}

	// OTEL is best-effort: a missing collector must never block startup.
	// When OTLPEndpoint is empty, telemetry is disabled entirely.
	if cfg.Telemetry.OTLPEndpoint == "" {
		slog.Debug("OTEL telemetry disabled (no endpoint configured)")
	} else {
		tp, err := telemetry.InitProvider(
			context.Background(),
			cfg.Telemetry.OTLPEndpoint,
			cfg.Telemetry.ServiceName,
			cfg.Telemetry.OTLPInsecure,
		)
		if err != nil {
			slog.Warn("OTEL provider init failed, telemetry disabled", "err", err)
		} else {
			app.otelProvider = tp
		}
	}

	app.datastore = clients.NewPostgresClient(cfg.Postgres, clients.NewCircuitBreaker("postgres"))
	if cfg.BrokerProbeEnabled() {
		app.broker = clients.NewRedisClient(cfg.Redis, clients.NewCircuitBreaker("redis"))
	}
	app.runner = manage.New(cfg.Manage)

	app.orchestrator = app.newOrchestrator(launcher.NewExecLauncher())
	app.router = api.NewRouter(app.orchestrator)

	return app, nil
}

// newOrchestrator wires an orchestrator around the given launch strategy.
// run.go swaps in the spawn launcher under --spawn.
func (a *AppContext) newOrchestrator(l orchestrator.Launcher) *orchestrator.Orchestrator {
	return orchestrator.New(orchestrator.Params{
		Datastore:  a.datastore,
		Broker:     a.broker,
		Migrator:   a.runner,
		Collector:  a.runner,
		Launcher:   l,
		ServerArgv: a.cfg.ServerArgv(),
		Retry: orchestrator.RetryPolicy{
			MaxAttempts: a.cfg.Bootstrap.MaxAttempts,
			Delay:       a.cfg.Bootstrap.RetryDelay,
		},
		PreflightTimeout: a.cfg.Bootstrap.Timeout,
		// The exec launcher replaces the process image; flush spans first.
		BeforeLaunch: func(ctx context.Context) {
			flushCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			if err := a.otelProvider.Shutdown(flushCtx); err != nil {
				slog.Warn("OTEL shutdown error", "err", err)
			}
		},
	})
}
