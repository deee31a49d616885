package agentloop

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func toolTurn(name, args string) ParsedTurn {
	return ParsedTurn{ToolCall: &ToolCall{Name: name, Arguments: json.RawMessage(args)}}
}

func TestLoopStateDefaults(t *testing.T) {
	l := NewLoopState(0, "")
	assert.Equal(t, StatusIdle, l.Status())
	assert.Equal(t, DefaultMaxAutoSteps, l.MaxAutoSteps())
	assert.Equal(t, PromptStreaming, l.PromptMode())
	assert.Nil(t, l.Pending())
}

func TestLoopStateStartOnlyFromIdle(t *testing.T) {
	l := NewLoopState(5, PromptBlocking)
	require.NoError(t, l.Start())
	assert.Equal(t, StatusAwaitingModel, l.Status())
	assert.ErrorIs(t, l.Start(), ErrIllegalTransition)
}

func TestLoopStateTextTurnCompletes(t *testing.T) {
	l := NewLoopState(5, "")
	require.NoError(t, l.Start())

	act, err := l.OnModelTurn(ParsedTurn{Text: "done"}, false)
	require.NoError(t, err)
	assert.Equal(t, Terminate{Status: StatusCompleted, Reason: "model finished"}, act)
	assert.Equal(t, StatusCompleted, l.Status())

	_, err = l.OnModelTurn(ParsedTurn{Text: "again"}, false)
	assert.ErrorIs(t, err, ErrIllegalTransition)
}

func TestLoopStateToolCycle(t *testing.T) {
	l := NewLoopState(5, "")
	require.NoError(t, l.Start())

	act, err := l.OnModelTurn(toolTurn("file_read", `{"path":"a"}`), false)
	require.NoError(t, err)
	inv, ok := act.(InvokeTool)
	require.True(t, ok)
	assert.Equal(t, "file_read", inv.Name)
	assert.Equal(t, 1, inv.StepIndex)
	assert.Equal(t, StatusExecutingTool, l.Status())
	require.NotNil(t, l.Pending())
	assert.Equal(t, 1, l.Pending().StepIndex)

	require.NoError(t, l.OnToolResult(false))
	assert.Equal(t, StatusAwaitingModel, l.Status())
	assert.Nil(t, l.Pending())
	assert.Equal(t, 1, l.StepCount())
}

func TestLoopStateStepBudget(t *testing.T) {
	l := NewLoopState(2, "")
	require.NoError(t, l.Start())

	for i := 0; i < 2; i++ {
		_, err := l.OnModelTurn(toolTurn("file_read", `{}`), false)
		require.NoError(t, err)
		require.NoError(t, l.OnToolResult(false))
	}

	act, err := l.OnModelTurn(toolTurn("file_read", `{}`), false)
	require.NoError(t, err)
	term, ok := act.(Terminate)
	require.True(t, ok)
	assert.Equal(t, StatusFailed, term.Status)
	assert.ErrorIs(t, term.Err, ErrStepBudgetExceeded)
	assert.Equal(t, "safety system intervened: step budget exceeded (2 tool calls)", term.Reason)
	assert.Equal(t, StatusFailed, l.Status())
	assert.Equal(t, 2, l.StepCount())
}

func TestLoopStateApproval(t *testing.T) {
	l := NewLoopState(5, "")
	require.NoError(t, l.Start())

	act, err := l.OnModelTurn(toolTurn("file_write", `{"path":"b"}`), true)
	require.NoError(t, err)
	req, ok := act.(RequestApproval)
	require.True(t, ok)
	assert.Equal(t, "file_write", req.Pending.ToolName)
	assert.Equal(t, 1, req.Pending.StepIndex)
	assert.Equal(t, StatusAwaitingApproval, l.Status())

	assert.ErrorIs(t, l.OnToolResult(false), ErrIllegalTransition)

	inv, err := l.Approve()
	require.NoError(t, err)
	assert.Equal(t, "file_write", inv.Name)
	assert.Equal(t, StatusExecutingTool, l.Status())
}

func TestLoopStateDeny(t *testing.T) {
	l := NewLoopState(5, "")
	require.NoError(t, l.Start())
	_, err := l.OnModelTurn(toolTurn("file_write", `{}`), true)
	require.NoError(t, err)

	require.NoError(t, l.Deny())
	assert.Equal(t, StatusAwaitingModel, l.Status())
	assert.Nil(t, l.Pending())

	_, err = l.Approve()
	assert.ErrorIs(t, err, ErrIllegalTransition)
}

func TestLoopStateToolResultTerminates(t *testing.T) {
	l := NewLoopState(5, "")
	require.NoError(t, l.Start())
	_, err := l.OnModelTurn(toolTurn("file_read", `{}`), false)
	require.NoError(t, err)

	require.NoError(t, l.OnToolResult(true))
	assert.Equal(t, StatusFailed, l.Status())
}

func TestLoopStateQuitAndFail(t *testing.T) {
	l := NewLoopState(5, "")
	require.NoError(t, l.Start())
	_, err := l.OnModelTurn(toolTurn("file_read", `{}`), false)
	require.NoError(t, err)

	l.Quit()
	assert.Equal(t, StatusCompleted, l.Status())
	assert.Nil(t, l.Pending())

	l.Fail()
	assert.Equal(t, StatusCompleted, l.Status(), "terminal states are final")
}
