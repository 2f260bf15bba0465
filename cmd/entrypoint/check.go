package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/greensigteam/greensig-backend/internal/orchestrator"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Probe the backing services once and exit",
	Long: `Check probes the datastore and broker once each (no retry), prints
a JSON report to stdout, and exits 0 only when every dependency is
reachable. Intended for container HEALTHCHECK directives and CI smoke
tests.`,
	RunE: runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	defer func() {
		shutCtx, shutCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutCancel()
		_ = app.otelProvider.Shutdown(shutCtx)
	}()

	probes := app.orchestrator.RunDeepHealth(ctx)

	status := "ok"
	for _, p := range probes {
		if !p.OK {
			status = "error"
			break
		}
	}

	printCheckResult(status, probes)

	if status != "ok" {
		return fmt.Errorf("one or more dependencies are unreachable")
	}
	return nil
}

func printCheckResult(status string, probes map[string]orchestrator.ProbeResult) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(map[string]any{
		"status":       status,
		"dependencies": probes,
	}); err != nil {
		// Fallback to plain text if JSON encoding somehow fails.
		fmt.Fprintf(os.Stdout, `{"status":%q}`+"\n", status)
	}
}
