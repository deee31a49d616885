package agentloop

import (
	"encoding/json"
	"fmt"
)

// LoopStatus represents the current lifecycle state of the loop.
type LoopStatus string

const (
	StatusIdle             LoopStatus = "idle"
	StatusAwaitingModel    LoopStatus = "awaiting_model"
	StatusExecutingTool    LoopStatus = "executing_tool"
	StatusAwaitingApproval LoopStatus = "awaiting_approval"
	StatusCompleted        LoopStatus = "completed"
	StatusFailed           LoopStatus = "failed"
)

// Terminal reports whether no further transitions are possible.
func (s LoopStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// PromptMode selects which model call the session uses for a turn.
type PromptMode string

const (
	PromptStreaming PromptMode = "streaming"
	PromptBlocking  PromptMode = "blocking"
)

// DefaultMaxAutoSteps bounds tool calls per session.
const DefaultMaxAutoSteps = 25

// ToolCall is a tool request parsed from a model turn.
type ToolCall struct {
	Name      string          `json:"tool"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// ParsedTurn is a completed model turn: either plain text or a tool call.
type ParsedTurn struct {
	Text     string
	ToolCall *ToolCall
}

// PendingTool is the tool call currently executing or awaiting approval.
type PendingTool struct {
	Name      string
	Arguments json.RawMessage
	StepIndex int
}

// LoopState is the per-session status machine.
type LoopState struct {
	status       LoopStatus
	stepCount    int
	maxAutoSteps int
	pending      *PendingTool
	promptMode   PromptMode
}

// NewLoopState creates an idle loop state. maxAutoSteps <= 0 selects
// DefaultMaxAutoSteps.
func NewLoopState(maxAutoSteps int, mode PromptMode) *LoopState {
	if maxAutoSteps <= 0 {
		maxAutoSteps = DefaultMaxAutoSteps
	}
	if mode == "" {
		mode = PromptStreaming
	}
	return &LoopState{
		status:       StatusIdle,
		maxAutoSteps: maxAutoSteps,
		promptMode:   mode,
	}
}

func (l *LoopState) Status() LoopStatus     { return l.status }
func (l *LoopState) StepCount() int         { return l.stepCount }
func (l *LoopState) MaxAutoSteps() int      { return l.maxAutoSteps }
func (l *LoopState) PromptMode() PromptMode { return l.promptMode }

// Pending returns a copy of the pending tool call, or nil.
func (l *LoopState) Pending() *PendingTool {
	if l.pending == nil {
		return nil
	}
	p := *l.pending
	return &p
}

func (l *LoopState) illegal(op string) error {
	return fmt.Errorf("%w: %s from %s", ErrIllegalTransition, op, l.status)
}

// Start moves an idle loop to awaiting_model.
func (l *LoopState) Start() error {
	if l.status != StatusIdle {
		return l.illegal("start")
	}
	l.status = StatusAwaitingModel
	l.stepCount = 0
	l.pending = nil
	return nil
}

// OnModelTurn applies a completed model turn. A plain-text turn completes the
// loop. A tool call either exhausts the step budget, or is admitted as step
// StepCount and moves to executing_tool, or to awaiting_approval when
// needsApproval is set. The returned action is one of Terminate, InvokeTool or
// RequestApproval; the latter only carries the tool fields.
func (l *LoopState) OnModelTurn(turn ParsedTurn, needsApproval bool) (Action, error) {
	if l.status != StatusAwaitingModel {
		return nil, l.illegal("model turn")
	}

	if turn.ToolCall == nil {
		l.status = StatusCompleted
		l.pending = nil
		return Terminate{Status: StatusCompleted, Reason: "model finished"}, nil
	}

	if l.stepCount >= l.maxAutoSteps {
		l.status = StatusFailed
		l.pending = nil
		return Terminate{
			Status: StatusFailed,
			Reason: fmt.Sprintf("safety system intervened: %s (%d tool calls)", ErrStepBudgetExceeded, l.maxAutoSteps),
			Err:    ErrStepBudgetExceeded,
		}, nil
	}

	l.stepCount++
	l.pending = &PendingTool{
		Name:      turn.ToolCall.Name,
		Arguments: turn.ToolCall.Arguments,
		StepIndex: l.stepCount,
	}

	if needsApproval {
		l.status = StatusAwaitingApproval
		return RequestApproval{Pending: PendingApproval{
			ToolName:  l.pending.Name,
			Arguments: l.pending.Arguments,
			StepIndex: l.pending.StepIndex,
		}}, nil
	}

	l.status = StatusExecutingTool
	return InvokeTool{Name: l.pending.Name, Arguments: l.pending.Arguments, StepIndex: l.pending.StepIndex}, nil
}

// Approve moves an approved call to executing_tool.
func (l *LoopState) Approve() (InvokeTool, error) {
	if l.status != StatusAwaitingApproval || l.pending == nil {
		return InvokeTool{}, l.illegal("approve")
	}
	l.status = StatusExecutingTool
	return InvokeTool{Name: l.pending.Name, Arguments: l.pending.Arguments, StepIndex: l.pending.StepIndex}, nil
}

// Deny drops the pending call and returns control to the model.
func (l *LoopState) Deny() error {
	if l.status != StatusAwaitingApproval {
		return l.illegal("deny")
	}
	l.pending = nil
	l.status = StatusAwaitingModel
	return nil
}

// OnToolResult clears the pending call. The loop goes back to the model
// unless terminate is set, in which case it fails.
func (l *LoopState) OnToolResult(terminate bool) error {
	if l.status != StatusExecutingTool {
		return l.illegal("tool result")
	}
	l.pending = nil
	if terminate {
		l.status = StatusFailed
		return nil
	}
	l.status = StatusAwaitingModel
	return nil
}

// Fail moves any non-terminal state to failed.
func (l *LoopState) Fail() {
	if l.status.Terminal() {
		return
	}
	l.pending = nil
	l.status = StatusFailed
}

// Quit completes the loop from any non-terminal state.
func (l *LoopState) Quit() {
	if l.status.Terminal() {
		return
	}
	l.pending = nil
	l.status = StatusCompleted
}
