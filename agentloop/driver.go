package agentloop

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config holds the per-session loop settings.
type Config struct {
	SessionID         string         `json:"session_id"`
	MaxAutoSteps      int            `json:"max_auto_steps"`
	CompactionCeiling int            `json:"compaction_ceiling"`
	StallThreshold    int            `json:"stall_threshold"`
	Breaker           BreakerConfig  `json:"breaker"`
	PromptMode        PromptMode     `json:"prompt_mode"`
	ApprovalTimeout   time.Duration  `json:"approval_timeout"` // 0 = wait indefinitely
	OutputLimits      map[string]int `json:"output_limits,omitempty"`
	Environment       string         `json:"environment,omitempty"`
	Instructions      string         `json:"instructions,omitempty"` // appended last to the preamble
}

// DefaultConfig returns the default loop configuration.
func DefaultConfig() Config {
	return Config{
		MaxAutoSteps:      DefaultMaxAutoSteps,
		CompactionCeiling: DefaultCompactionCeiling,
		StallThreshold:    DefaultStallThreshold,
		Breaker:           DefaultBreakerConfig(),
		PromptMode:        PromptStreaming,
	}
}

// Driver is the per-session orchestrator. It owns the frame stack, loop
// state, approval gate and safety layer, and is only ever called from one
// goroutine. ProcessEvent is its sole mutation entry point after Start.
type Driver struct {
	cfg      Config
	frames   *FrameStack
	state    *LoopState
	gate     *ApprovalGate
	safety   *Safety
	caps     *Capabilities
	parse    TurnParser
	preamble string
	logger   zerolog.Logger

	turn   int
	staged []string
}

// NewDriver creates a driver. caps may be nil (every tool is auto) and
// recorder may be nil.
func NewDriver(cfg Config, caps *Capabilities, recorder ApprovalRecorder, logger zerolog.Logger) *Driver {
	if caps == nil {
		caps = NewCapabilities()
	}
	logger = logger.With().Str("session_id", cfg.SessionID).Logger()

	frames := NewFrameStack(cfg.CompactionCeiling)
	frames.SetOutputLimits(cfg.OutputLimits)

	return &Driver{
		cfg:      cfg,
		frames:   frames,
		state:    NewLoopState(cfg.MaxAutoSteps, cfg.PromptMode),
		gate:     NewApprovalGate(cfg.SessionID, recorder, logger),
		safety:   NewSafety(cfg.Breaker, cfg.StallThreshold),
		caps:     caps,
		parse:    ParseTurn,
		preamble: BuildPreamble(caps, cfg.Environment, cfg.Instructions),
		logger:   logger,
	}
}

// SetParser replaces the turn parser.
func (d *Driver) SetParser(p TurnParser) { d.parse = p }

func (d *Driver) Config() Config              { return d.cfg }
func (d *Driver) Frames() *FrameStack         { return d.frames }
func (d *Driver) State() *LoopState           { return d.state }
func (d *Driver) Gate() *ApprovalGate         { return d.gate }
func (d *Driver) Safety() *Safety             { return d.safety }
func (d *Driver) Capabilities() *Capabilities { return d.caps }

// Turn returns the number of the current model turn.
func (d *Driver) Turn() int { return d.turn }

// Start resets the approval gate, records the user's message and asks for
// the first model turn.
func (d *Driver) Start(text string) []Action {
	d.gate.Reset()
	if err := d.state.Start(); err != nil {
		return []Action{Terminate{Status: StatusFailed, Reason: err.Error(), Err: err}}
	}
	d.frames.AppendUser(text)
	d.logger.Debug().Msg("session started")
	return []Action{d.sendToModel()}
}

// ProcessEvent applies one event and returns the actions the host must
// perform, in order. Events that no longer apply are discarded.
func (d *Driver) ProcessEvent(ev Event) []Action {
	if isQuit(ev) {
		return d.quit()
	}
	if d.state.Status().Terminal() {
		d.discard(ev, "session finished")
		return nil
	}

	switch e := ev.(type) {
	case ModelChunk:
		return d.onChunk(e)
	case ModelTurnComplete:
		return d.onTurnComplete(e)
	case ModelFailed:
		return d.onModelFailed(e)
	case ToolFinished:
		return d.onToolFinished(e)
	case ApprovalResponse:
		return d.onApprovalResponse(e)
	case ApprovalTimedOut:
		return d.onApprovalTimedOut(e)
	default:
		d.discard(ev, "unknown event")
		return nil
	}
}

func isQuit(ev Event) bool {
	switch e := ev.(type) {
	case Quit:
		return true
	case ApprovalResponse:
		return e.Decision == DecisionQuit
	}
	return false
}

func (d *Driver) discard(ev Event, why string) {
	d.logger.Debug().
		Str("event", EventName(ev)).
		Str("status", string(d.state.Status())).
		Str("reason", why).
		Msg("event discarded")
}

func (d *Driver) sendToModel() Action {
	d.turn++
	d.staged = nil
	return SendToModel{
		Prompt: BuildPrompt(d.preamble, d.frames.Materialize()),
		Turn:   d.turn,
		Mode:   d.state.PromptMode(),
	}
}

func (d *Driver) currentTurn(turn int, ev Event) bool {
	if turn != d.turn || d.state.Status() != StatusAwaitingModel {
		d.discard(ev, "stale model turn")
		return false
	}
	return true
}

func (d *Driver) onChunk(e ModelChunk) []Action {
	if !d.currentTurn(e.Turn, e) || e.Text == "" {
		return nil
	}
	d.staged = append(d.staged, e.Text)
	return []Action{EmitToUser{Text: e.Text, Kind: EmitAssistantDelta}}
}

func (d *Driver) onTurnComplete(e ModelTurnComplete) []Action {
	if !d.currentTurn(e.Turn, e) {
		return nil
	}
	text := e.Text
	if text == "" {
		text = strings.Join(d.staged, "")
	}
	turn := d.parse(text)

	if turn.ToolCall == nil {
		d.appendAssistant(text)
		act, err := d.state.OnModelTurn(turn, false)
		if err != nil {
			return d.fail(err.Error(), err)
		}
		d.logger.Debug().Int("steps", d.state.StepCount()).Msg("model finished")
		return []Action{EmitToUser{Text: turn.Text, Kind: EmitAssistant}, act}
	}

	call := turn.ToolCall
	needsApproval := d.caps.IsGated(call.Name) && !d.gate.IsApproved(call.Name)
	act, err := d.state.OnModelTurn(turn, needsApproval)
	if err != nil {
		return d.fail(err.Error(), err)
	}

	switch a := act.(type) {
	case Terminate:
		d.logger.Warn().Str("tool", call.Name).Str("reason", a.Reason).Msg("tool call refused")
		return []Action{a}
	case RequestApproval:
		pending, err := d.gate.Request(call.Name, call.Arguments, a.Pending.StepIndex, d.caps.AffectedPath(call.Name, call.Arguments))
		if err != nil {
			return d.fail(err.Error(), err)
		}
		d.logger.Debug().Str("tool", call.Name).Int("step", pending.StepIndex).Msg("awaiting approval")
		return []Action{RequestApproval{Pending: pending}}
	case InvokeTool:
		return d.dispatch(a)
	}
	return nil
}

// appendAssistant records a plain-text turn, replaying the streamed chunks
// when they add up to the final text.
func (d *Driver) appendAssistant(text string) {
	if len(d.staged) > 0 && strings.Join(d.staged, "") == text {
		for _, c := range d.staged {
			d.frames.AppendAssistantChunk(c)
		}
	} else {
		d.frames.AppendAssistantChunk(text)
	}
	d.frames.FinalizeAssistant()
	d.staged = nil
}

// dispatch checks the breaker and hands the call to the host. A single-use
// grant is spent here.
func (d *Driver) dispatch(inv InvokeTool) []Action {
	if iv := d.safety.Admit(); iv != nil {
		d.state.Fail()
		d.logger.Warn().Str("tool", inv.Name).Msg(iv.Message)
		return []Action{Terminate{Status: StatusFailed, Reason: iv.Message, Err: iv.Err}}
	}
	if d.caps.IsGated(inv.Name) && !d.gate.SessionWide() {
		d.gate.ConsumeOnce(inv.Name)
	}
	d.logger.Debug().Str("tool", inv.Name).Int("step", inv.StepIndex).Msg("dispatching tool")
	return []Action{inv}
}

func (d *Driver) onModelFailed(e ModelFailed) []Action {
	if !d.currentTurn(e.Turn, e) {
		return nil
	}
	msg := "model turn failed"
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return d.fail(msg, e.Err)
}

func (d *Driver) onToolFinished(e ToolFinished) []Action {
	pending := d.state.Pending()
	if d.state.Status() != StatusExecutingTool || pending == nil || pending.StepIndex != e.StepIndex {
		d.discard(e, "no matching tool call")
		return nil
	}

	out := e.Outcome
	d.frames.AppendToolResult(ToolResultFrame{
		ToolName:     pending.Name,
		Arguments:    CanonicalArguments(pending.Arguments),
		Success:      out.Success,
		Output:       out.Output,
		ExecutionRef: e.ExecutionRef,
	})

	iv := d.safety.RecordOutcome(pending.Name, pending.Arguments, out.Success, out.Output)
	if err := d.state.OnToolResult(iv != nil); err != nil {
		return d.fail(err.Error(), err)
	}

	summary := EmitToUser{Text: fmt.Sprintf("%s: ok", pending.Name), Kind: EmitToolResult}
	if !out.Success {
		summary.Text = fmt.Sprintf("tool failed: %s: %s", pending.Name, firstLine(out.Output))
	}

	if iv != nil {
		d.logger.Warn().Str("tool", pending.Name).Msg(iv.Message)
		return []Action{summary, Terminate{Status: StatusFailed, Reason: iv.Message, Err: iv.Err}}
	}
	return []Action{summary, d.sendToModel()}
}

func (d *Driver) onApprovalResponse(e ApprovalResponse) []Action {
	pending := d.state.Pending()
	if d.state.Status() != StatusAwaitingApproval || pending == nil {
		d.discard(e, "no pending approval")
		return nil
	}

	switch e.Decision {
	case DecisionApproveOnce:
		d.gate.Grant(ScopeOnce, pending.Name)
	case DecisionApproveSession:
		d.gate.Grant(ScopeSessionAllGated, pending.Name)
	case DecisionDeny:
		return d.deny(pending, "denied by user")
	default:
		d.discard(e, "unknown decision "+string(e.Decision))
		return nil
	}

	inv, err := d.state.Approve()
	if err != nil {
		return d.fail(err.Error(), err)
	}
	return d.dispatch(inv)
}

func (d *Driver) onApprovalTimedOut(e ApprovalTimedOut) []Action {
	pending := d.state.Pending()
	if d.state.Status() != StatusAwaitingApproval || pending == nil || pending.StepIndex != e.StepIndex {
		d.discard(e, "no matching approval")
		return nil
	}
	return d.deny(pending, fmt.Sprintf("approval timed out after %s", d.cfg.ApprovalTimeout))
}

// deny injects a synthetic denial frame and returns control to the model.
func (d *Driver) deny(pending *PendingTool, reason string) []Action {
	d.gate.Deny(pending.Name, reason)
	if err := d.state.Deny(); err != nil {
		return d.fail(err.Error(), err)
	}
	d.frames.AppendToolResult(ToolResultFrame{
		ToolName:  pending.Name,
		Arguments: CanonicalArguments(pending.Arguments),
		Output:    fmt.Sprintf("Tool call was not executed: %s. Choose a different approach or finish.", reason),
		Denied:    true,
	})
	return []Action{
		EmitToUser{Text: fmt.Sprintf("%s: %s", pending.Name, reason), Kind: EmitNotice},
		d.sendToModel(),
	}
}

func (d *Driver) quit() []Action {
	if d.state.Status().Terminal() {
		return nil
	}
	from := d.state.Status()
	d.state.Quit()
	d.logger.Debug().Str("from", string(from)).Msg("quit")
	return []Action{Terminate{Status: StatusCompleted, Reason: "quit by user"}}
}

// Abort fails the session for a host-side fault such as a lost channel or an
// execution record that could not be written.
func (d *Driver) Abort(msg string, err error) []Action {
	if d.state.Status().Terminal() {
		return nil
	}
	return d.fail(msg, err)
}

func (d *Driver) fail(msg string, err error) []Action {
	d.state.Fail()
	d.logger.Error().Err(err).Msg(msg)
	return []Action{Terminate{Status: StatusFailed, Reason: msg, Err: err}}
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i != -1 {
		return s[:i]
	}
	return s
}
