package agentloop

import (
	"fmt"
	"strings"
	"time"
)

// FrameKind discriminates between frame types.
type FrameKind string

const (
	FrameUser       FrameKind = "user"
	FrameAssistant  FrameKind = "assistant"
	FrameToolResult FrameKind = "tool_result"
)

// DefaultCompactionCeiling is the number of uncompacted tool results allowed
// before Materialize compacts older ones.
const DefaultCompactionCeiling = 3

// MemoryQueryTool is the capability the model is pointed at to retrieve
// compacted tool output.
const MemoryQueryTool = "memory_query"

// Frame is a single entry in the conversation history.
type Frame struct {
	Kind       FrameKind        `json:"kind"`
	Timestamp  time.Time        `json:"timestamp"`
	User       *UserFrame       `json:"user,omitempty"`
	Assistant  *AssistantFrame  `json:"assistant,omitempty"`
	ToolResult *ToolResultFrame `json:"tool_result,omitempty"`
}

// UserFrame holds user input.
type UserFrame struct {
	Text string `json:"text"`
}

// AssistantFrame holds model text. Text only grows while Complete is false.
type AssistantFrame struct {
	Text     string `json:"text"`
	Complete bool   `json:"complete"`
}

// ToolResultFrame holds the outcome of one tool call.
type ToolResultFrame struct {
	ToolName     string `json:"tool_name"`
	Arguments    string `json:"arguments,omitempty"`
	Success      bool   `json:"success"`
	Output       string `json:"output"`
	Compacted    bool   `json:"compacted"`
	ExecutionRef string `json:"execution_ref,omitempty"`
	Denied       bool   `json:"denied,omitempty"`
}

// FrameStack is the append-only history of a session.
type FrameStack struct {
	frames   []Frame
	ceiling  int
	charCaps map[string]int
}

// NewFrameStack creates an empty stack. A ceiling <= 0 selects
// DefaultCompactionCeiling.
func NewFrameStack(ceiling int) *FrameStack {
	if ceiling <= 0 {
		ceiling = DefaultCompactionCeiling
	}
	return &FrameStack{ceiling: ceiling}
}

// SetOutputLimits overrides per-tool character limits used when rendering
// uncompacted output for the model.
func (s *FrameStack) SetOutputLimits(limits map[string]int) {
	s.charCaps = limits
}

// Len returns the number of frames.
func (s *FrameStack) Len() int { return len(s.frames) }

// At returns the frame at index i. It panics when i is out of range.
func (s *FrameStack) At(i int) Frame { return s.frames[i] }

// Frames returns a copy of the history.
func (s *FrameStack) Frames() []Frame {
	out := make([]Frame, len(s.frames))
	copy(out, s.frames)
	return out
}

// AppendUser appends a user frame.
func (s *FrameStack) AppendUser(text string) {
	s.frames = append(s.frames, Frame{
		Kind:      FrameUser,
		Timestamp: time.Now(),
		User:      &UserFrame{Text: text},
	})
}

// AppendAssistantChunk extends the trailing incomplete assistant frame, or
// starts a new one.
func (s *FrameStack) AppendAssistantChunk(text string) {
	if n := len(s.frames); n > 0 {
		last := s.frames[n-1]
		if last.Kind == FrameAssistant && !last.Assistant.Complete {
			last.Assistant.Text += text
			return
		}
	}
	s.frames = append(s.frames, Frame{
		Kind:      FrameAssistant,
		Timestamp: time.Now(),
		Assistant: &AssistantFrame{Text: text},
	})
}

// FinalizeAssistant marks the trailing assistant frame complete. It is a
// no-op when there is no open assistant frame.
func (s *FrameStack) FinalizeAssistant() {
	if n := len(s.frames); n > 0 {
		if last := s.frames[n-1]; last.Kind == FrameAssistant {
			last.Assistant.Complete = true
		}
	}
}

// AppendToolResult appends a tool result frame. The Compacted field of the
// argument is ignored; new results always start uncompacted.
func (s *FrameStack) AppendToolResult(r ToolResultFrame) {
	r.Compacted = false
	s.frames = append(s.frames, Frame{
		Kind:       FrameToolResult,
		Timestamp:  time.Now(),
		ToolResult: &r,
	})
}

// Compact leaves the keepRecent newest tool results uncompacted and marks all
// older ones compacted.
func (s *FrameStack) Compact(keepRecent int) {
	seen := 0
	for i := len(s.frames) - 1; i >= 0; i-- {
		f := s.frames[i]
		if f.Kind != FrameToolResult {
			continue
		}
		if seen < keepRecent {
			seen++
			continue
		}
		f.ToolResult.Compacted = true
	}
}

// UncompactedToolResults counts tool results that still carry full output.
func (s *FrameStack) UncompactedToolResults() int {
	n := 0
	for _, f := range s.frames {
		if f.Kind == FrameToolResult && !f.ToolResult.Compacted {
			n++
		}
	}
	return n
}

// Materialize renders the history as the ordered text the model sees. Older
// tool results are compacted first when more than the ceiling are live.
func (s *FrameStack) Materialize() string {
	if s.UncompactedToolResults() > s.ceiling {
		s.Compact(s.ceiling)
	}

	var sb strings.Builder
	for i, f := range s.frames {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		switch f.Kind {
		case FrameUser:
			sb.WriteString("[user]\n")
			sb.WriteString(f.User.Text)
		case FrameAssistant:
			sb.WriteString("[assistant]\n")
			sb.WriteString(f.Assistant.Text)
		case FrameToolResult:
			s.writeToolResult(&sb, f.ToolResult)
		}
	}
	return sb.String()
}

func (s *FrameStack) writeToolResult(sb *strings.Builder, r *ToolResultFrame) {
	status := "ok"
	switch {
	case r.Denied:
		status = "denied"
	case !r.Success:
		status = "error"
	}
	fmt.Fprintf(sb, "[tool_result %s %s]\n", r.ToolName, status)
	if r.Arguments != "" {
		fmt.Fprintf(sb, "arguments: %s\n", r.Arguments)
	}
	if r.Compacted {
		sb.WriteString(compactedPlaceholder(r.ExecutionRef))
		return
	}
	sb.WriteString(TruncateToolOutput(r.Output, r.ToolName, s.charCaps, nil))
}

func compactedPlaceholder(ref string) string {
	if ref == "" {
		return "[output compacted; no execution record is available]"
	}
	return fmt.Sprintf("[output compacted; call %s with {\"execution_ref\": %q} to retrieve it]", MemoryQueryTool, ref)
}
