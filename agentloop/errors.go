package agentloop

import "errors"

var (
	// ErrStepBudgetExceeded is returned when the model requests a tool call
	// after MaxAutoSteps tool calls have already been made.
	ErrStepBudgetExceeded = errors.New("step budget exceeded")

	// ErrCircuitOpen is returned when repeated tool failures tripped the
	// circuit breaker.
	ErrCircuitOpen = errors.New("circuit open")

	// ErrStalled is returned when the stall detector sees no progress.
	ErrStalled = errors.New("stalled")

	// ErrDuplicatePending is returned by ApprovalGate.Request while another
	// approval is outstanding.
	ErrDuplicatePending = errors.New("approval already pending")

	// ErrIllegalTransition is returned when a LoopState operation is invoked
	// from a status that does not allow it.
	ErrIllegalTransition = errors.New("illegal state transition")

	// ErrRecordFailed is returned by Session.Run when a tool outcome could not
	// be persisted.
	ErrRecordFailed = errors.New("execution record failed")
)
