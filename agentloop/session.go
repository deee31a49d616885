package agentloop

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/martinemde/toolloop/unifiedllm"
	"github.com/rs/zerolog"
)

// UI is the user-facing collaborator. Answers to approvals come back through
// Session.Respond and Session.Quit.
type UI interface {
	ShowText(msg EmitToUser)
	ShowApproval(p PendingApproval)
	Finished(t Terminate)
}

// SessionOptions wires a session to its collaborators.
type SessionOptions struct {
	Config       Config
	Model        unifiedllm.Model
	Dispatcher   Dispatcher
	Capabilities *Capabilities
	Recorder     Recorder
	UI           UI
	Logger       zerolog.Logger
}

const modelChannelSize = 64

// Session runs one Driver. Run is the foreground goroutine: it alone touches
// the driver. Model turns run on a background goroutine that only posts
// events, and each tool call runs on a short-lived worker that Run waits on.
type Session struct {
	id         string
	driver     *Driver
	model      unifiedllm.Model
	dispatcher Dispatcher
	recorder   Recorder
	ui         UI
	logger     zerolog.Logger

	modelCh chan Event
	uiCh    chan Event
	toolCh  chan toolDone
	done    chan struct{}

	cancelModel   context.CancelFunc
	cancelTool    context.CancelFunc
	approvalTimer *time.Timer

	mu      sync.Mutex
	started bool
}

type toolDone struct {
	call       InvokeTool
	outcome    ToolOutcome
	startedAt  time.Time
	finishedAt time.Time
}

// NewSession validates the collaborators and creates a session. A missing
// session id is generated.
func NewSession(opts SessionOptions) (*Session, error) {
	switch {
	case opts.Model == nil:
		return nil, errors.New("session: model is required")
	case opts.Dispatcher == nil:
		return nil, errors.New("session: tool dispatcher is required")
	case opts.Recorder == nil:
		return nil, errors.New("session: execution recorder is unavailable")
	case opts.UI == nil:
		return nil, errors.New("session: ui is required")
	}

	cfg := opts.Config
	if cfg.SessionID == "" {
		cfg.SessionID = uuid.New().String()
	}
	logger := opts.Logger.With().Str("session_id", cfg.SessionID).Logger()

	return &Session{
		id:         cfg.SessionID,
		driver:     NewDriver(cfg, opts.Capabilities, opts.Recorder, opts.Logger),
		model:      opts.Model,
		dispatcher: opts.Dispatcher,
		recorder:   opts.Recorder,
		ui:         opts.UI,
		logger:     logger,
		modelCh:    make(chan Event, modelChannelSize),
		uiCh:       make(chan Event, 8),
		toolCh:     make(chan toolDone, 1),
		done:       make(chan struct{}),
	}, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Driver exposes the driver for inspection after Run returns.
func (s *Session) Driver() *Driver { return s.driver }

// Respond delivers the user's answer to the pending approval.
func (s *Session) Respond(d Decision) {
	if d == DecisionQuit {
		s.post(Quit{})
		return
	}
	s.post(ApprovalResponse{Decision: d})
}

// Quit cancels the session.
func (s *Session) Quit() { s.post(Quit{}) }

func (s *Session) post(ev Event) {
	select {
	case s.uiCh <- ev:
	case <-s.done:
	}
}

// Run processes userMessage until the loop terminates. The returned
// Terminate describes how it ended; the error is non-nil only when Run is
// misused or ctx is cancelled.
func (s *Session) Run(ctx context.Context, userMessage string) (Terminate, error) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return Terminate{}, errors.New("session: already run")
	}
	s.started = true
	s.mu.Unlock()

	defer close(s.done)
	defer s.stopWork()

	s.logger.Info().Msg("session start")
	actions := s.driver.Start(userMessage)

	for {
		if term, ok := s.perform(ctx, actions); ok {
			s.logger.Info().
				Str("status", string(term.Status)).
				Str("reason", term.Reason).
				Int("steps", s.driver.State().StepCount()).
				Msg("session end")
			return term, nil
		}

		ev, err := s.next(ctx)
		switch {
		case ctx.Err() != nil:
			// Work cut short by the cancellation is not reported as a failure.
			term, _ := s.perform(ctx, s.driver.ProcessEvent(Quit{}))
			return term, ctx.Err()
		case err != nil:
			actions = s.driver.Abort(err.Error(), err)
		default:
			actions = s.driver.ProcessEvent(ev)
		}
	}
}

// perform executes actions in order. It reports the Terminate action, if any.
func (s *Session) perform(ctx context.Context, actions []Action) (Terminate, bool) {
	for _, a := range actions {
		switch a := a.(type) {
		case SendToModel:
			s.startModel(ctx, a)
		case InvokeTool:
			s.startTool(ctx, a)
		case RequestApproval:
			s.ui.ShowApproval(a.Pending)
			s.armApprovalTimer(a.Pending.StepIndex)
		case EmitToUser:
			s.ui.ShowText(a)
		case Terminate:
			s.stopWork()
			s.ui.Finished(a)
			return a, true
		}
	}
	return Terminate{}, false
}

// next waits for the next event. Pending UI events are always taken first so
// that quit pre-empts model and tool events that are already queued.
func (s *Session) next(ctx context.Context) (Event, error) {
	select {
	case ev := <-s.uiCh:
		return ev, nil
	default:
	}

	select {
	case ev := <-s.uiCh:
		return ev, nil
	case ev := <-s.modelCh:
		return ev, nil
	case d := <-s.toolCh:
		return s.recordOutcome(ctx, d)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Session) startModel(ctx context.Context, a SendToModel) {
	if s.cancelModel != nil {
		s.cancelModel()
	}
	mctx, cancel := context.WithCancel(ctx)
	s.cancelModel = cancel

	out := s.modelCh
	post := func(ev Event) {
		select {
		case out <- ev:
		case <-mctx.Done():
		}
	}

	s.logger.Debug().Int("turn", a.Turn).Str("mode", string(a.Mode)).Int("prompt_bytes", len(a.Prompt)).Msg("model turn")
	go func() {
		var (
			text string
			err  error
		)
		if a.Mode == PromptBlocking {
			text, err = s.model.Generate(mctx, a.Prompt)
		} else {
			text, err = s.model.GenerateStreaming(mctx, a.Prompt, func(chunk string) {
				post(ModelChunk{Turn: a.Turn, Text: chunk})
			})
		}
		if err != nil {
			post(ModelFailed{Turn: a.Turn, Err: err})
			return
		}
		post(ModelTurnComplete{Turn: a.Turn, Text: text})
	}()
}

func (s *Session) startTool(ctx context.Context, a InvokeTool) {
	s.stopApprovalTimer()
	tctx, cancel := context.WithCancel(ctx)
	s.cancelTool = cancel

	s.logger.Debug().Str("tool", a.Name).Int("step", a.StepIndex).Msg("tool start")
	go func() {
		started := time.Now()
		outcome := s.dispatcher.Invoke(tctx, a.Name, a.Arguments)
		s.toolCh <- toolDone{call: a, outcome: outcome, startedAt: started, finishedAt: time.Now()}
	}()
}

// recordOutcome persists a tool outcome before the driver sees it.
func (s *Session) recordOutcome(ctx context.Context, d toolDone) (Event, error) {
	if s.cancelTool != nil {
		s.cancelTool()
		s.cancelTool = nil
	}

	args := d.call.Arguments
	if len(args) == 0 || !json.Valid(args) {
		args, _ = json.Marshal(string(d.call.Arguments))
	}
	rec := &ExecutionRecord{
		SessionID:    s.id,
		ToolName:     d.call.Name,
		Arguments:    args,
		StepIndex:    d.call.StepIndex,
		Success:      d.outcome.Success,
		Output:       d.outcome.Output,
		AffectedPath: d.outcome.AffectedPath,
		Artifacts:    d.outcome.Artifacts,
		StartedAt:    d.startedAt,
		FinishedAt:   d.finishedAt,
	}
	if err := s.recorder.Record(ctx, rec); err != nil {
		return nil, fmt.Errorf("%w for %s at step %d: %v", ErrRecordFailed, d.call.Name, d.call.StepIndex, err)
	}

	s.logger.Debug().
		Str("tool", d.call.Name).
		Bool("success", d.outcome.Success).
		Str("execution_id", rec.ExecutionID).
		Dur("elapsed", d.finishedAt.Sub(d.startedAt)).
		Msg("tool finished")

	return ToolFinished{
		StepIndex:    d.call.StepIndex,
		Name:         d.call.Name,
		Arguments:    d.call.Arguments,
		Outcome:      d.outcome,
		ExecutionRef: rec.ExecutionID,
	}, nil
}

func (s *Session) armApprovalTimer(step int) {
	timeout := s.driver.Config().ApprovalTimeout
	if timeout <= 0 {
		return
	}
	s.stopApprovalTimer()
	s.approvalTimer = time.AfterFunc(timeout, func() {
		s.post(ApprovalTimedOut{StepIndex: step})
	})
}

func (s *Session) stopApprovalTimer() {
	if s.approvalTimer != nil {
		s.approvalTimer.Stop()
		s.approvalTimer = nil
	}
}

func (s *Session) stopWork() {
	s.stopApprovalTimer()
	if s.cancelModel != nil {
		s.cancelModel()
		s.cancelModel = nil
	}
	if s.cancelTool != nil {
		s.cancelTool()
		s.cancelTool = nil
	}
}
