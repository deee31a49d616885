// Package agentloop implements a deterministic tool-calling loop: a language
// model proposes one tool call per turn, the loop runs it, records the
// outcome and feeds the result back, until the model answers in plain text or
// a safety limit stops the session.
//
// The model is never trusted to judge whether its actions succeeded. Every
// tool outcome is persisted through a Recorder before the model sees it, and
// the history sent to the model is rebuilt from frames on every turn.
//
// # Architecture
//
// The package is organized around these core concepts:
//
//   - Driver: the per-session orchestrator. Start and ProcessEvent are its
//     only mutation entry points; both return the Actions the host performs.
//   - FrameStack: append-only history of user, assistant and tool-result
//     frames. Older tool results are compacted to a placeholder that points
//     the model at the memory_query capability.
//   - LoopState: status machine, pending tool call and step budget.
//   - ApprovalGate: once, session-wide and deny scoping for gated tools.
//   - Safety: a CircuitBreaker over consecutive tool failures and a
//     StallDetector over recent step fingerprints.
//   - Session: the foreground goroutine that owns a Driver and performs its
//     Actions against a unifiedllm.Model, a Dispatcher, a Recorder and a UI.
//   - EventEmitter: a UI that publishes SessionEvents on a channel.
//
// # Quick Start
//
//	emitter := agentloop.NewEventEmitter("", 256)
//	session, err := agentloop.NewSession(agentloop.SessionOptions{
//	    Config:       agentloop.DefaultConfig(),
//	    Model:        model,
//	    Dispatcher:   workspace,
//	    Capabilities: workspace.Capabilities(),
//	    Recorder:     store,
//	    UI:           emitter,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	go func() {
//	    for ev := range emitter.Events() {
//	        if ev.Kind == agentloop.EventApprovalRequested {
//	            session.Respond(agentloop.DecisionApproveOnce)
//	        }
//	    }
//	}()
//
//	term, err := session.Run(ctx, "Rename Foo to Bar in pkg/foo.go")
package agentloop
