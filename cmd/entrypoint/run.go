package main

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/greensigteam/greensig-backend/internal/launcher"
	"github.com/greensigteam/greensig-backend/internal/orchestrator"
)

var spawnServer bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the container startup sequence and hand off to the server",
	Long: `Run the full startup sequence: wait for the datastore (bounded
retry), wait for the broker when configured, apply schema migrations,
collect static assets, then exec the application server.

On success this command does not return: the entrypoint process is replaced
by the server so signals reach it directly. Exit codes: 1 when the readiness
probe exhausts its retry budget, the tool's own exit code when migrate or
collectstatic fails.`,
	Run: runStartup,
}

func init() {
	runCmd.Flags().BoolVar(&spawnServer, "spawn", false,
		"spawn the server as a child process instead of replacing the entrypoint (dev only)")
}

func runStartup(cmd *cobra.Command, args []string) {
	o := app.orchestrator
	if spawnServer {
		o = app.newOrchestrator(launcher.NewSpawnLauncher())
	}

	if _, err := o.RunStartup(context.Background()); err != nil {
		slog.Error("startup failed", "error", err.Error())
		os.Exit(exitCode(err))
	}
	// Reached only in --spawn mode, after the server exited cleanly.
}

// exitCode maps the startup error taxonomy onto process exit codes: the
// external tool's own code for migrate/collectstatic failures, 1 for
// everything else including retry-budget exhaustion.
func exitCode(err error) int {
	var toolErr *orchestrator.ToolError
	if errors.As(err, &toolErr) && toolErr.ExitCode > 0 {
		return toolErr.ExitCode
	}
	return 1
}
