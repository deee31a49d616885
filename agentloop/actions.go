package agentloop

import "encoding/json"

// ActionKind identifies the type of an Action.
type ActionKind string

const (
	ActionSendToModel     ActionKind = "send_to_model"
	ActionInvokeTool      ActionKind = "invoke_tool"
	ActionRequestApproval ActionKind = "request_approval"
	ActionEmitToUser      ActionKind = "emit_to_user"
	ActionTerminate       ActionKind = "terminate"
)

// Action is a side effect the Driver asks its host to perform.
type Action interface {
	ActionKind() ActionKind
}

// SendToModel asks the host to run one model turn for Prompt. Events produced
// by that turn must carry Turn.
type SendToModel struct {
	Prompt string
	Turn   int
	Mode   PromptMode
}

// InvokeTool asks the host to run a tool and report back with ToolFinished.
type InvokeTool struct {
	Name      string
	Arguments json.RawMessage
	StepIndex int
}

// RequestApproval asks the UI to render a pending approval.
type RequestApproval struct {
	Pending PendingApproval
}

// EmitKind classifies text shown to the user.
type EmitKind string

const (
	EmitAssistantDelta EmitKind = "assistant_delta"
	EmitAssistant      EmitKind = "assistant"
	EmitToolResult     EmitKind = "tool_result"
	EmitNotice         EmitKind = "notice"
)

// EmitToUser carries text for display.
type EmitToUser struct {
	Text string
	Kind EmitKind
}

// Terminate ends the session. Reason is human readable and, for failures,
// keeps the model/tool/safety prefix intact.
type Terminate struct {
	Status LoopStatus
	Reason string
	Err    error
}

func (SendToModel) ActionKind() ActionKind     { return ActionSendToModel }
func (InvokeTool) ActionKind() ActionKind      { return ActionInvokeTool }
func (RequestApproval) ActionKind() ActionKind { return ActionRequestApproval }
func (EmitToUser) ActionKind() ActionKind      { return ActionEmitToUser }
func (Terminate) ActionKind() ActionKind       { return ActionTerminate }
