// Package launcher hands execution off to the long-running application
// server. Two strategies exist: exec-and-replace for production, where no
// supervisory wrapper must remain so signals reach the server directly, and
// spawn-and-wait for dev shells and test harnesses.
package launcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"syscall"
)

// ExecLauncher replaces the current process image with the server process.
// Launch only returns on error; on success the entrypoint ceases to exist.
type ExecLauncher struct {
	// lookPath and execve are seams for tests; nil means the real thing.
	lookPath func(file string) (string, error)
	execve   func(argv0 string, argv []string, envv []string) error
}

// NewExecLauncher returns the production launch strategy.
func NewExecLauncher() *ExecLauncher {
	return &ExecLauncher{
		lookPath: exec.LookPath,
		execve:   syscall.Exec,
	}
}

// Launch resolves argv[0] on PATH and execs it with the current environment.
func (l *ExecLauncher) Launch(_ context.Context, argv []string) error {
	if len(argv) == 0 {
		return fmt.Errorf("empty server command")
	}

	path, err := l.lookPath(argv[0])
	if err != nil {
		return fmt.Errorf("resolving %s: %w", argv[0], err)
	}

	slog.Info("replacing process image", "path", path, "argv", argv)

	if err := l.execve(path, argv, os.Environ()); err != nil {
		return fmt.Errorf("exec %s: %w", path, err)
	}
	return nil
}

// SpawnLauncher starts the server as a child process and waits for it to
// exit, inheriting stdio. Used where exec-replacement is undesirable:
// tests asserting on the launched argv, and interactive dev shells.
type SpawnLauncher struct {
	// LaunchedArgv records the argv of the last Launch call.
	LaunchedArgv []string

	start func(ctx context.Context, argv []string) error
}

// NewSpawnLauncher returns the spawn-and-wait launch strategy.
func NewSpawnLauncher() *SpawnLauncher {
	return &SpawnLauncher{start: runChild}
}

// Launch runs the server command and blocks until it exits.
func (l *SpawnLauncher) Launch(ctx context.Context, argv []string) error {
	if len(argv) == 0 {
		return fmt.Errorf("empty server command")
	}

	l.LaunchedArgv = argv
	slog.Info("spawning server process", "argv", argv)

	if l.start == nil {
		return nil
	}
	if err := l.start(ctx, argv); err != nil {
		return fmt.Errorf("running %s: %w", argv[0], err)
	}
	return nil
}

func runChild(ctx context.Context, argv []string) error {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
