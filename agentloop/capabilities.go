package agentloop

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/tidwall/gjson"
)

// Capability describes one tool: how the model sees it and whether it needs
// approval.
type Capability struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Gated       bool            `json:"gated"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
	// PathArgument names the argument that holds the path a call affects. It
	// is used to fill PendingApproval.AffectedPath.
	PathArgument string `json:"path_argument,omitempty"`
}

// Capabilities is the static gated/auto classification table. It is built
// once and never modified.
type Capabilities struct {
	byName map[string]Capability
}

// NewCapabilities builds a table. Later entries with the same name win.
func NewCapabilities(caps ...Capability) *Capabilities {
	t := &Capabilities{byName: make(map[string]Capability, len(caps))}
	for _, c := range caps {
		t.byName[c.Name] = c
	}
	return t
}

// Get returns the capability for name.
func (t *Capabilities) Get(name string) (Capability, bool) {
	c, ok := t.byName[name]
	return c, ok
}

// IsGated reports whether name requires approval. Unknown tools are auto; the
// dispatcher reports them as failures.
func (t *Capabilities) IsGated(name string) bool {
	return t.byName[name].Gated
}

// AffectedPath extracts the path argument of a call, if the capability
// declares one.
func (t *Capabilities) AffectedPath(name string, args json.RawMessage) string {
	c, ok := t.byName[name]
	if !ok || c.PathArgument == "" || !gjson.ValidBytes(args) {
		return ""
	}
	return gjson.GetBytes(args, c.PathArgument).String()
}

// List returns all capabilities sorted by name.
func (t *Capabilities) List() []Capability {
	out := make([]Capability, 0, len(t.byName))
	for _, c := range t.byName {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ToolOutcome is what a dispatcher reports for one invocation.
type ToolOutcome struct {
	Success      bool
	Output       string
	AffectedPath string
	Artifacts    []string
}

// Dispatcher runs tools by name. Failures, including malformed arguments and
// unknown tools, are reported as unsuccessful outcomes rather than errors.
type Dispatcher interface {
	Invoke(ctx context.Context, name string, args json.RawMessage) ToolOutcome
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(ctx context.Context, name string, args json.RawMessage) ToolOutcome

func (f DispatcherFunc) Invoke(ctx context.Context, name string, args json.RawMessage) ToolOutcome {
	return f(ctx, name, args)
}
