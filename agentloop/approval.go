package agentloop

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// PendingApproval describes a gated tool call waiting for a user decision.
type PendingApproval struct {
	SessionID    string          `json:"session_id"`
	ToolName     string          `json:"tool_name"`
	Arguments    json.RawMessage `json:"arguments,omitempty"`
	StepIndex    int             `json:"step_index"`
	AffectedPath string          `json:"affected_path,omitempty"`
	RequestedAt  time.Time       `json:"requested_at"`
}

// ApprovalGate scopes user approval of gated tools for one session.
type ApprovalGate struct {
	sessionID        string
	approvedAllGated bool
	approvedOnce     map[string]struct{}
	pending          *PendingApproval

	recorder ApprovalRecorder
	logger   zerolog.Logger
	now      func() time.Time
}

// NewApprovalGate creates a gate. recorder may be nil.
func NewApprovalGate(sessionID string, recorder ApprovalRecorder, logger zerolog.Logger) *ApprovalGate {
	return &ApprovalGate{
		sessionID:    sessionID,
		approvedOnce: make(map[string]struct{}),
		recorder:     recorder,
		logger:       logger,
		now:          time.Now,
	}
}

// Reset clears every grant and any pending request.
func (g *ApprovalGate) Reset() {
	g.approvedAllGated = false
	g.approvedOnce = make(map[string]struct{})
	g.pending = nil
}

// Pending returns the outstanding request, or nil.
func (g *ApprovalGate) Pending() *PendingApproval {
	if g.pending == nil {
		return nil
	}
	p := *g.pending
	return &p
}

// SessionWide reports whether all gated tools are approved for the session.
func (g *ApprovalGate) SessionWide() bool { return g.approvedAllGated }

// Request registers a pending approval.
func (g *ApprovalGate) Request(tool string, args json.RawMessage, stepIndex int, affectedPath string) (PendingApproval, error) {
	if g.pending != nil {
		return PendingApproval{}, fmt.Errorf("%w: %s at step %d", ErrDuplicatePending, g.pending.ToolName, g.pending.StepIndex)
	}
	p := PendingApproval{
		SessionID:    g.sessionID,
		ToolName:     tool,
		Arguments:    args,
		StepIndex:    stepIndex,
		AffectedPath: affectedPath,
		RequestedAt:  g.now(),
	}
	g.pending = &p
	return p, nil
}

// IsApproved reports whether tool may run without prompting.
func (g *ApprovalGate) IsApproved(tool string) bool {
	if g.approvedAllGated {
		return true
	}
	_, ok := g.approvedOnce[tool]
	return ok
}

// Grant records a grant of the given scope for tool and clears the pending
// request.
func (g *ApprovalGate) Grant(scope ApprovalScope, tool string) {
	switch scope {
	case ScopeOnce:
		g.approvedOnce[tool] = struct{}{}
	case ScopeSessionAllGated:
		g.approvedAllGated = true
	default:
		panic(fmt.Sprintf("agentloop: Grant with scope %q", scope))
	}
	g.report(scope, tool, "")
	g.pending = nil
}

// Deny records a denial of the pending request and clears it.
func (g *ApprovalGate) Deny(tool, reason string) {
	g.report(ScopeDenied, tool, reason)
	g.pending = nil
}

// ConsumeOnce removes a single-use grant after the call it authorized was
// dispatched.
func (g *ApprovalGate) ConsumeOnce(tool string) {
	delete(g.approvedOnce, tool)
}

func (g *ApprovalGate) report(scope ApprovalScope, tool, reason string) {
	rec := ApprovalRecord{
		SessionID: g.sessionID,
		ToolName:  tool,
		Scope:     scope,
		Reason:    reason,
		Timestamp: g.now(),
	}
	if g.pending != nil && g.pending.ToolName == tool {
		rec.Arguments = g.pending.Arguments
		rec.StepIndex = g.pending.StepIndex
	}

	g.logger.Info().
		Str("tool", tool).
		Str("scope", string(scope)).
		Int("step", rec.StepIndex).
		Msg("approval decision")

	if g.recorder == nil {
		return
	}
	if err := g.recorder.RecordApproval(context.Background(), rec); err != nil {
		g.logger.Error().Err(err).Str("tool", tool).Msg("recording approval decision")
	}
}
