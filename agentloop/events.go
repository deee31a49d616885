package agentloop

import (
	"sync"
	"time"
)

// EventKind identifies the type of session event.
type EventKind string

const (
	EventAssistantTextDelta EventKind = "assistant_text_delta"
	EventAssistantText      EventKind = "assistant_text"
	EventToolResult         EventKind = "tool_result"
	EventNotice             EventKind = "notice"
	EventApprovalRequested  EventKind = "approval_requested"
	EventSessionEnd         EventKind = "session_end"
)

// SessionEvent is a typed event delivered to a channel-based host.
type SessionEvent struct {
	Kind      EventKind              `json:"kind"`
	Timestamp time.Time              `json:"timestamp"`
	SessionID string                 `json:"session_id"`
	Data      map[string]interface{} `json:"data,omitempty"`

	Approval  *PendingApproval `json:"approval,omitempty"`
	Terminate *Terminate       `json:"terminate,omitempty"`
}

var emitKinds = map[EmitKind]EventKind{
	EmitAssistantDelta: EventAssistantTextDelta,
	EmitAssistant:      EventAssistantText,
	EmitToolResult:     EventToolResult,
	EmitNotice:         EventNotice,
}

// EventEmitter is a UI that delivers session output on a channel. Streaming
// deltas are dropped when the buffer is full; every other event blocks until
// the host reads it, so approvals and the final result are never lost.
type EventEmitter struct {
	sessionID string
	ch        chan SessionEvent
	closed    bool
	mu        sync.Mutex
}

// NewEventEmitter creates a new EventEmitter with a buffered channel.
func NewEventEmitter(sessionID string, bufferSize int) *EventEmitter {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return &EventEmitter{
		sessionID: sessionID,
		ch:        make(chan SessionEvent, bufferSize),
	}
}

// ShowText implements UI.
func (e *EventEmitter) ShowText(msg EmitToUser) {
	kind, ok := emitKinds[msg.Kind]
	if !ok {
		kind = EventNotice
	}
	e.emit(SessionEvent{Kind: kind, Data: map[string]interface{}{"text": msg.Text}}, msg.Kind == EmitAssistantDelta)
}

// ShowApproval implements UI.
func (e *EventEmitter) ShowApproval(p PendingApproval) {
	e.emit(SessionEvent{Kind: EventApprovalRequested, Approval: &p}, false)
}

// Finished implements UI.
func (e *EventEmitter) Finished(t Terminate) {
	e.emit(SessionEvent{Kind: EventSessionEnd, Terminate: &t}, false)
}

func (e *EventEmitter) emit(ev SessionEvent, droppable bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	ev.Timestamp = time.Now()
	ev.SessionID = e.sessionID
	if droppable {
		select {
		case e.ch <- ev:
		default:
		}
		return
	}
	e.ch <- ev
}

// Events returns the read-only event channel.
func (e *EventEmitter) Events() <-chan SessionEvent {
	return e.ch
}

// Close closes the event channel. Safe to call multiple times, but not while
// an emit is blocked on a full channel.
func (e *EventEmitter) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.closed {
		e.closed = true
		close(e.ch)
	}
}
