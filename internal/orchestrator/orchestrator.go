// Package orchestrator sequences the GreenSIG container startup: wait for the
// datastore, apply schema migrations, collect static assets, then hand off to
// the application server. Execution is strictly sequential; the first failed
// stage aborts the whole run.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// Prober is satisfied by *clients.PostgresClient and *clients.RedisClient.
type Prober interface {
	Probe(ctx context.Context) ProbeResult
}

// Migrator applies pending schema migrations (manage.py migrate).
type Migrator interface {
	Apply(ctx context.Context) error
}

// Collector aggregates static assets (manage.py collectstatic).
type Collector interface {
	Collect(ctx context.Context) error
}

// Launcher hands off to the long-running application server.
// The exec implementation replaces the process image and only returns on error.
type Launcher interface {
	Launch(ctx context.Context, argv []string) error
}

// Params collects the dependencies of an Orchestrator. Broker may be nil, in
// which case the broker probe stage is skipped.
type Params struct {
	Datastore  Prober
	Broker     Prober
	Migrator   Migrator
	Collector  Collector
	Launcher   Launcher
	ServerArgv []string
	Retry      RetryPolicy

	// PreflightTimeout bounds the pre-launch stages of RunStartup. Zero means
	// no deadline. The launch itself is never subject to it: a deadline on the
	// server's own lifetime would make spawn-style launches kill the server.
	PreflightTimeout time.Duration

	// BeforeLaunch, when set, runs after a successful preflight and before the
	// launcher. The exec launcher replaces the process image, so this is the
	// last chance to flush telemetry.
	BeforeLaunch func(ctx context.Context)
}

// Orchestrator runs the startup stages and one-shot health probes.
type Orchestrator struct {
	datastore Prober
	broker    Prober
	migrator  Migrator
	collector Collector
	launcher  Launcher
	argv      []string
	retry     RetryPolicy

	preflightTimeout time.Duration
	beforeLaunch     func(ctx context.Context)

	preflightInProgress atomic.Bool
	lastResult          *RunResult
	resultMu            sync.RWMutex
}

// New constructs an Orchestrator from p.
func New(p Params) *Orchestrator {
	return &Orchestrator{
		datastore: p.Datastore,
		broker:    p.Broker,
		migrator:  p.Migrator,
		collector: p.Collector,
		launcher:  p.Launcher,
		argv:      p.ServerArgv,
		retry:     p.Retry,

		preflightTimeout: p.PreflightTimeout,
		beforeLaunch:     p.BeforeLaunch,
	}
}

// RunPreflight runs the pre-launch stages in order: datastore probe, broker
// probe (when configured), migrate, collectstatic. The first failure is
// terminal for the run. Returns ErrPreflightInProgress if a preflight is
// already running; the partial RunResult is returned alongside any stage error.
func (o *Orchestrator) RunPreflight(ctx context.Context) (*RunResult, error) {
	if !o.preflightInProgress.CompareAndSwap(false, true) {
		return nil, ErrPreflightInProgress
	}
	defer o.preflightInProgress.Store(false)

	result := &RunResult{
		ID:     uuid.NewString(),
		Status: StatusInProgress,
	}
	defer o.storeResult(result)

	ctx, span := otel.Tracer("greensig-entrypoint").Start(ctx, "entrypoint.preflight")
	defer span.End()
	span.SetAttributes(attribute.String("run.id", result.ID))

	slog.InfoContext(ctx, "preflight started", "run_id", result.ID)

	if err := o.probeStage(ctx, result, StageProbeDatastore, o.datastore); err != nil {
		return o.fail(ctx, span, result, err)
	}

	if o.broker != nil {
		if err := o.probeStage(ctx, result, StageProbeBroker, o.broker); err != nil {
			return o.fail(ctx, span, result, err)
		}
	} else {
		result.Stages = append(result.Stages, StageResult{Name: StageProbeBroker, Status: StatusSkipped})
	}

	if err := o.toolStage(ctx, result, StageMigrate, o.migrator.Apply); err != nil {
		return o.fail(ctx, span, result, err)
	}

	if err := o.toolStage(ctx, result, StageCollectStatic, o.collector.Collect); err != nil {
		return o.fail(ctx, span, result, err)
	}

	result.Status = StatusOK
	span.SetStatus(codes.Ok, "")
	slog.InfoContext(ctx, "preflight completed", "run_id", result.ID)
	return result, nil
}

// RunStartup runs the preflight and then hands off to the application server.
// With the exec launcher this call does not return on success: the process
// image is replaced and no supervisory wrapper remains around the server.
func (o *Orchestrator) RunStartup(ctx context.Context) (*RunResult, error) {
	preflightCtx := ctx
	if o.preflightTimeout > 0 {
		var cancel context.CancelFunc
		preflightCtx, cancel = context.WithTimeout(ctx, o.preflightTimeout)
		defer cancel()
	}

	result, err := o.RunPreflight(preflightCtx)
	if err != nil {
		return result, err
	}

	if o.beforeLaunch != nil {
		o.beforeLaunch(ctx)
	}

	slog.InfoContext(ctx, "handing off to application server", "argv", o.argv)

	if err := o.launcher.Launch(ctx, o.argv); err != nil {
		result.Stages = append(result.Stages, StageResult{
			Name:   StageLaunch,
			Status: StatusError,
			Error:  err.Error(),
		})
		result.Status = StatusError
		o.storeResult(result)
		return result, fmt.Errorf("launching server: %w", err)
	}

	// Reached only with a spawn-style launcher after the server exits.
	result.Stages = append(result.Stages, StageResult{Name: StageLaunch, Status: StatusOK})
	o.storeResult(result)
	return result, nil
}

// RunDeepHealth probes the datastore and broker concurrently, without retry.
func (o *Orchestrator) RunDeepHealth(ctx context.Context) map[string]ProbeResult {
	results := make(map[string]ProbeResult, 2)
	var mu sync.Mutex
	var g errgroup.Group

	g.Go(func() error {
		probe := o.datastore.Probe(ctx)
		mu.Lock()
		results["postgres"] = probe
		mu.Unlock()
		return nil
	})

	if o.broker != nil {
		g.Go(func() error {
			probe := o.broker.Probe(ctx)
			mu.Lock()
			results["redis"] = probe
			mu.Unlock()
			return nil
		})
	}

	_ = g.Wait()
	return results
}

// IsPreflightInProgress returns true while a preflight run is active.
func (o *Orchestrator) IsPreflightInProgress() bool {
	return o.preflightInProgress.Load()
}

// IsReady returns true if the last preflight completed with StatusOK.
func (o *Orchestrator) IsReady() bool {
	o.resultMu.RLock()
	defer o.resultMu.RUnlock()
	return o.lastResult != nil && o.lastResult.Status == StatusOK
}

// LastResult returns the most recent run result, or nil before the first run.
func (o *Orchestrator) LastResult() *RunResult {
	o.resultMu.RLock()
	defer o.resultMu.RUnlock()
	return o.lastResult
}

// probeStage runs a dependency probe under the retry policy, recording the
// attempt count. One progress line is emitted per failed attempt.
func (o *Orchestrator) probeStage(ctx context.Context, result *RunResult, name string, prober Prober) error {
	attempts := 0

	err := o.retry.Do(ctx, func(ctx context.Context) error {
		probe := prober.Probe(ctx)
		if probe.OK {
			return nil
		}
		return errors.New(probe.Error)
	}, func(attempt int, attemptErr error) {
		attempts = attempt
		slog.InfoContext(ctx, "waiting for dependency",
			"stage", name,
			"attempt", attempt,
			"max_attempts", o.retry.MaxAttempts,
			"error", attemptErr.Error(),
		)
	})

	stage := StageResult{Name: name, Status: StatusOK, Attempts: attempts + 1}
	if err != nil {
		stage.Status = StatusError
		stage.Attempts = attempts
		stage.Error = err.Error()
	}
	result.Stages = append(result.Stages, stage)

	if err == nil {
		slog.InfoContext(ctx, "dependency ready", "stage", name, "attempts", stage.Attempts)
	}
	return err
}

// toolStage runs an external management command; any failure is terminal.
func (o *Orchestrator) toolStage(ctx context.Context, result *RunResult, name string, fn func(context.Context) error) error {
	slog.InfoContext(ctx, "stage started", "stage", name)

	if err := fn(ctx); err != nil {
		result.Stages = append(result.Stages, StageResult{
			Name:   name,
			Status: StatusError,
			Error:  err.Error(),
		})
		return err
	}

	result.Stages = append(result.Stages, StageResult{Name: name, Status: StatusOK})
	slog.InfoContext(ctx, "stage completed", "stage", name)
	return nil
}

func (o *Orchestrator) fail(ctx context.Context, span trace.Span, result *RunResult, err error) (*RunResult, error) {
	result.Status = StatusError
	span.SetStatus(codes.Error, err.Error())
	slog.ErrorContext(ctx, "preflight failed", "run_id", result.ID, "error", err.Error())
	return result, err
}

func (o *Orchestrator) storeResult(result *RunResult) {
	o.resultMu.Lock()
	o.lastResult = result
	o.resultMu.Unlock()
}
