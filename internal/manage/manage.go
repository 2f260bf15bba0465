// Package manage invokes the GreenSIG Django management commands the
// entrypoint depends on: schema migration and static asset collection.
package manage

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/exec"

	"github.com/greensigteam/greensig-backend/internal/config"
	"github.com/greensigteam/greensig-backend/internal/orchestrator"
)

// runCommandFunc is the seam between Runner and os/exec, replaced in tests.
type runCommandFunc func(ctx context.Context, workdir, name string, args ...string) error

// exitCoder is implemented by *exec.ExitError and by test doubles.
type exitCoder interface {
	ExitCode() int
}

// Runner invokes manage.py subcommands non-interactively, propagating their
// exit status. Both commands are idempotent on the Django side, so re-running
// the entrypoint against an already-migrated database is safe.
type Runner struct {
	cfg config.ManageConfig
	run runCommandFunc
}

// New creates a Runner for the configured python interpreter and manage.py
// script.
func New(cfg config.ManageConfig) *Runner {
	return &Runner{cfg: cfg, run: runCommand}
}

// Apply brings the datastore schema to the version expected by the
// application code (manage.py migrate --noinput).
func (r *Runner) Apply(ctx context.Context) error {
	return r.invoke(ctx, "migrate", "--noinput")
}

// Collect aggregates static assets into the location the server serves them
// from (manage.py collectstatic --noinput).
func (r *Runner) Collect(ctx context.Context) error {
	return r.invoke(ctx, "collectstatic", "--noinput")
}

func (r *Runner) invoke(ctx context.Context, sub string, args ...string) error {
	argv := append([]string{r.cfg.Script, sub}, args...)
	slog.InfoContext(ctx, "running management command", "command", sub, "argv", argv)

	if err := r.run(ctx, r.cfg.Workdir, r.cfg.Python, argv...); err != nil {
		return &orchestrator.ToolError{
			Tool:     sub,
			ExitCode: exitCodeOf(err),
			Err:      err,
		}
	}
	return nil
}

// exitCodeOf extracts the child's exit code, defaulting to 1 when the command
// failed before producing one (e.g. binary not found).
func exitCodeOf(err error) int {
	var ec exitCoder
	if errors.As(err, &ec) && ec.ExitCode() > 0 {
		return ec.ExitCode()
	}
	return 1
}

// runCommand executes the command with stdio passed through, so migration and
// collectstatic output lands in the container log unaltered.
func runCommand(ctx context.Context, workdir, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = workdir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
