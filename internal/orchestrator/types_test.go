package orchestrator

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToolError(t *testing.T) {
	t.Parallel()

	cause := errors.New("exit status 2")
	err := &ToolError{Tool: "migrate", ExitCode: 2, Err: cause}

	assert.Equal(t, "migrate exited with code 2: exit status 2", err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestToolError_ErrorsAsThroughWrapping(t *testing.T) {
	t.Parallel()

	wrapped := fmt.Errorf("stage failed: %w", &ToolError{Tool: "collectstatic", ExitCode: 3})

	var toolErr *ToolError
	require.ErrorAs(t, wrapped, &toolErr)
	assert.Equal(t, "collectstatic", toolErr.Tool)
	assert.Equal(t, 3, toolErr.ExitCode)
}

func TestErrRetryBudgetExhausted_Identity(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("%w after 30 attempts: %w", ErrRetryBudgetExhausted, errors.New("connection refused"))
	assert.ErrorIs(t, err, ErrRetryBudgetExhausted)
}
