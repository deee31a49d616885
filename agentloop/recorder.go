package agentloop

import (
	"context"
	"encoding/json"
	"time"
)

// ExecutionRecord is the audit entry for one tool invocation.
type ExecutionRecord struct {
	ExecutionID  string          `json:"execution_id"`
	SessionID    string          `json:"session_id"`
	ToolName     string          `json:"tool_name"`
	Arguments    json.RawMessage `json:"arguments,omitempty"`
	StepIndex    int             `json:"step_index"`
	Success      bool            `json:"success"`
	Output       string          `json:"output"`
	AffectedPath string          `json:"affected_path,omitempty"`
	Artifacts    []string        `json:"artifacts,omitempty"`
	StartedAt    time.Time       `json:"started_at"`
	FinishedAt   time.Time       `json:"finished_at"`
}

// ApprovalScope is the scope of an approval decision.
type ApprovalScope string

const (
	ScopeOnce            ApprovalScope = "once"
	ScopeSessionAllGated ApprovalScope = "session_all_gated"
	ScopeDenied          ApprovalScope = "denied"
)

// ApprovalRecord is the audit entry for one grant or denial.
type ApprovalRecord struct {
	SessionID string          `json:"session_id"`
	ToolName  string          `json:"tool_name"`
	Scope     ApprovalScope   `json:"scope"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
	StepIndex int             `json:"step_index"`
	Reason    string          `json:"reason,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// ApprovalRecorder receives approval decisions.
type ApprovalRecorder interface {
	RecordApproval(ctx context.Context, rec ApprovalRecord) error
}

// Recorder is the persistence collaborator. Record assigns rec.ExecutionID
// when it is empty.
type Recorder interface {
	ApprovalRecorder
	Record(ctx context.Context, rec *ExecutionRecord) error
}
