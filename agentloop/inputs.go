package agentloop

import "encoding/json"

// Event is an input to Driver.ProcessEvent. Model events come from the
// background model goroutine, tool events from the tool worker, and the rest
// from the UI.
type Event interface {
	eventName() string
}

// ModelChunk is a streamed fragment of the current model turn.
type ModelChunk struct {
	Turn int
	Text string
}

// ModelTurnComplete carries the full text of a finished model turn.
type ModelTurnComplete struct {
	Turn int
	Text string
}

// ModelFailed reports a transport or provider failure for a turn.
type ModelFailed struct {
	Turn int
	Err  error
}

// ToolFinished reports the outcome of an InvokeTool action. ExecutionRef is
// the id of the persisted execution record.
type ToolFinished struct {
	StepIndex    int
	Name         string
	Arguments    json.RawMessage
	Outcome      ToolOutcome
	ExecutionRef string
}

// Decision is a user's answer to a pending approval.
type Decision string

const (
	DecisionApproveOnce    Decision = "approve_once"
	DecisionApproveSession Decision = "approve_session"
	DecisionDeny           Decision = "deny"
	DecisionQuit           Decision = "quit"
)

// ApprovalResponse is the UI's answer to a RequestApproval action.
type ApprovalResponse struct {
	Decision Decision
}

// Quit cancels the session. It takes priority over every other event.
type Quit struct{}

// ApprovalTimedOut is posted when an approval was not answered within the
// configured timeout. It is handled as a denial.
type ApprovalTimedOut struct {
	StepIndex int
}

func (ModelChunk) eventName() string        { return "model_chunk" }
func (ModelTurnComplete) eventName() string { return "model_turn_complete" }
func (ModelFailed) eventName() string       { return "model_failed" }
func (ToolFinished) eventName() string      { return "tool_finished" }
func (ApprovalResponse) eventName() string  { return "approval_response" }
func (Quit) eventName() string              { return "quit" }
func (ApprovalTimedOut) eventName() string  { return "approval_timed_out" }

// EventName returns a stable name for logging.
func EventName(e Event) string { return e.eventName() }
