package orchestrator

import (
	"errors"
	"fmt"
)

// Stage names, in execution order.
const (
	StageProbeDatastore = "probe_datastore"
	StageProbeBroker    = "probe_broker"
	StageMigrate        = "migrate"
	StageCollectStatic  = "collectstatic"
	StageLaunch         = "launch"
)

// Status values used across RunResult and StageResult.
const (
	StatusOK         = "ok"
	StatusError      = "error"
	StatusInProgress = "in-progress"
	StatusSkipped    = "skipped"
)

// ErrRetryBudgetExhausted is returned when a readiness probe fails for every
// attempt in its budget. The process must exit 1 without invoking later stages.
var ErrRetryBudgetExhausted = errors.New("retry budget exhausted")

// ErrPreflightInProgress is returned when RunPreflight is called while a
// preflight is already running.
var ErrPreflightInProgress = errors.New("preflight already in progress")

// ToolError reports a non-zero exit from an external management command
// (migrate, collectstatic). The exit code is propagated as the process exit
// status.
type ToolError struct {
	Tool     string
	ExitCode int
	Err      error
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("%s exited with code %d: %v", e.Tool, e.ExitCode, e.Err)
}

func (e *ToolError) Unwrap() error { return e.Err }

// RunResult is the aggregate result of a preflight or startup run.
// Stages appear in execution order; a run stops at its first failed stage.
type RunResult struct {
	ID     string        `json:"id"`
	Status string        `json:"status"`
	Stages []StageResult `json:"stages"`
}

// StageResult represents the outcome of a single startup stage.
type StageResult struct {
	Name     string `json:"name"`
	Status   string `json:"status"`
	Attempts int    `json:"attempts,omitempty"`
	Error    string `json:"error,omitempty"`
}

// ProbeResult is returned by a dependency probe. Transient marks
// connection-refused/unreachable class failures; the distinction is advisory
// and does not change retry behavior.
type ProbeResult struct {
	Name      string `json:"name"`
	OK        bool   `json:"ok"`
	LatencyMs int64  `json:"latencyMs"`
	Transient bool   `json:"transient,omitempty"`
	Error     string `json:"error,omitempty"`
}
