package manage

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greensigteam/greensig-backend/internal/config"
	"github.com/greensigteam/greensig-backend/internal/orchestrator"
)

// fakeExit implements exitCoder the way *exec.ExitError does.
type fakeExit struct {
	code int
}

func (f *fakeExit) Error() string { return fmt.Sprintf("exit status %d", f.code) }
func (f *fakeExit) ExitCode() int { return f.code }

type recordedCall struct {
	workdir string
	name    string
	args    []string
}

func makeRunner(err error) (*Runner, *[]recordedCall) {
	var calls []recordedCall
	r := &Runner{
		cfg: config.ManageConfig{Python: "python", Script: "manage.py", Workdir: "/app"},
		run: func(_ context.Context, workdir, name string, args ...string) error {
			calls = append(calls, recordedCall{workdir: workdir, name: name, args: args})
			return err
		},
	}
	return r, &calls
}

func TestApply(t *testing.T) {
	t.Parallel()

	r, calls := makeRunner(nil)
	require.NoError(t, r.Apply(context.Background()))

	require.Len(t, *calls, 1)
	call := (*calls)[0]
	assert.Equal(t, "/app", call.workdir)
	assert.Equal(t, "python", call.name)
	assert.Equal(t, []string{"manage.py", "migrate", "--noinput"}, call.args)
}

func TestCollect(t *testing.T) {
	t.Parallel()

	r, calls := makeRunner(nil)
	require.NoError(t, r.Collect(context.Background()))

	require.Len(t, *calls, 1)
	assert.Equal(t, []string{"manage.py", "collectstatic", "--noinput"}, (*calls)[0].args)
}

func TestInvoke_NonZeroExitBecomesToolError(t *testing.T) {
	t.Parallel()

	r, _ := makeRunner(&fakeExit{code: 3})
	err := r.Apply(context.Background())
	require.Error(t, err)

	var toolErr *orchestrator.ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, "migrate", toolErr.Tool)
	assert.Equal(t, 3, toolErr.ExitCode)
}

func TestInvoke_StartFailureDefaultsToExitOne(t *testing.T) {
	t.Parallel()

	r, _ := makeRunner(errors.New("exec: \"python\": executable file not found in $PATH"))
	err := r.Collect(context.Background())
	require.Error(t, err)

	var toolErr *orchestrator.ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, "collectstatic", toolErr.Tool)
	assert.Equal(t, 1, toolErr.ExitCode)
}

func TestRunCommand_PropagatesExitCode(t *testing.T) {
	t.Parallel()

	err := runCommand(context.Background(), "", "sh", "-c", "exit 7")
	require.Error(t, err)
	assert.Equal(t, 7, exitCodeOf(err))
}

func TestRunCommand_Success(t *testing.T) {
	t.Parallel()

	assert.NoError(t, runCommand(context.Background(), "", "true"))
}
