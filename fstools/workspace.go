// Package fstools is a small workspace tool set for the agent loop: reading,
// globbing, writing and editing files under one root directory, plus
// memory_query for reading back persisted tool executions.
package fstools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/martinemde/toolloop/agentloop"
	"github.com/rs/zerolog"
)

// Tool names.
const (
	ToolFileRead    = "file_read"
	ToolFileGlob    = "file_glob"
	ToolFileWrite   = "file_write"
	ToolFileEdit    = "file_edit"
	ToolMemoryQuery = agentloop.MemoryQueryTool
)

// DefaultGatedTools are the tools that need approval unless configured
// otherwise.
var DefaultGatedTools = []string{ToolFileWrite, ToolFileEdit}

type tool struct {
	capability agentloop.Capability
	run        func(ctx context.Context, w *Workspace, args json.RawMessage) (result, error)
}

// typed wraps a handler that takes a decoded argument struct.
func typed[T any](fn func(w *Workspace, ctx context.Context, a T) (result, error)) func(context.Context, *Workspace, json.RawMessage) (result, error) {
	return func(ctx context.Context, w *Workspace, raw json.RawMessage) (result, error) {
		var a T
		if len(bytes.TrimSpace(raw)) > 0 {
			dec := json.NewDecoder(bytes.NewReader(raw))
			dec.DisallowUnknownFields()
			if err := dec.Decode(&a); err != nil {
				return result{}, toolErr("ERR_INVALID_ARGS", "%v", err)
			}
		}
		return fn(w, ctx, a)
	}
}

var tools = []tool{
	{
		capability: agentloop.Capability{
			Name:         ToolFileRead,
			Description:  "Read a text file from the workspace. Returns line-numbered content.",
			Parameters:   GenerateSchema[FileReadArgs](),
			PathArgument: "path",
		},
		run: typed((*Workspace).fileRead),
	},
	{
		capability: agentloop.Capability{
			Name:        ToolFileGlob,
			Description: "List workspace files whose relative path matches a glob pattern.",
			Parameters:  GenerateSchema[FileGlobArgs](),
		},
		run: typed((*Workspace).fileGlob),
	},
	{
		capability: agentloop.Capability{
			Name:         ToolFileWrite,
			Description:  "Create or overwrite a file in the workspace.",
			Parameters:   GenerateSchema[FileWriteArgs](),
			PathArgument: "path",
		},
		run: typed((*Workspace).fileWrite),
	},
	{
		capability: agentloop.Capability{
			Name:         ToolFileEdit,
			Description:  "Replace an exact string in a workspace file.",
			Parameters:   GenerateSchema[FileEditArgs](),
			PathArgument: "path",
		},
		run: typed((*Workspace).fileEdit),
	},
	{
		capability: agentloop.Capability{
			Name:        ToolMemoryQuery,
			Description: "Retrieve the full result of an earlier tool call whose output was compacted, by its execution_ref.",
			Parameters:  GenerateSchema[MemoryQueryArgs](),
		},
		run: typed((*Workspace).memoryQuery),
	},
}

// Workspace runs the file tools against one root directory. It implements
// agentloop.Dispatcher.
type Workspace struct {
	root    string
	records RecordLookup
	gated   map[string]bool
	byName  map[string]tool
	logger  zerolog.Logger
}

// Option configures a Workspace.
type Option func(*Workspace)

// WithRecords enables memory_query against the given record store.
func WithRecords(r RecordLookup) Option {
	return func(w *Workspace) { w.records = r }
}

// WithGatedTools replaces the set of tools that require approval.
func WithGatedTools(names ...string) Option {
	return func(w *Workspace) {
		w.gated = make(map[string]bool, len(names))
		for _, n := range names {
			w.gated[n] = true
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(w *Workspace) { w.logger = l }
}

// NewWorkspace creates a workspace rooted at root, which must be an existing
// directory. An empty root is the current directory.
func NewWorkspace(root string, opts ...Option) (*Workspace, error) {
	abs, err := resolveRoot(root)
	if err != nil {
		return nil, err
	}
	w := &Workspace{
		root:   abs,
		byName: make(map[string]tool, len(tools)),
		logger: zerolog.Nop(),
	}
	WithGatedTools(DefaultGatedTools...)(w)
	for _, opt := range opts {
		opt(w)
	}
	for _, t := range tools {
		w.byName[t.capability.Name] = t
	}
	return w, nil
}

// Root returns the absolute workspace root.
func (w *Workspace) Root() string { return w.root }

// Capabilities returns the capability table for the workspace tools.
// memory_query is listed only when records are available.
func (w *Workspace) Capabilities() *agentloop.Capabilities {
	var caps []agentloop.Capability
	for _, t := range tools {
		if t.capability.Name == ToolMemoryQuery && w.records == nil {
			continue
		}
		c := t.capability
		c.Gated = w.gated[c.Name]
		caps = append(caps, c)
	}
	return agentloop.NewCapabilities(caps...)
}

// Invoke implements agentloop.Dispatcher. Every failure is reported as an
// unsuccessful outcome.
func (w *Workspace) Invoke(ctx context.Context, name string, args json.RawMessage) agentloop.ToolOutcome {
	t, ok := w.byName[name]
	if !ok || (name == ToolMemoryQuery && w.records == nil) {
		return agentloop.ToolOutcome{Output: fmt.Sprintf("unknown tool %q", name)}
	}
	if err := ctx.Err(); err != nil {
		return agentloop.ToolOutcome{Output: fmt.Sprintf("%s cancelled: %v", name, err)}
	}

	res, err := t.run(ctx, w, args)
	if err != nil {
		var te ToolError
		if !errors.As(err, &te) {
			w.logger.Warn().Err(err).Str("tool", name).Msg("tool error")
		}
		return agentloop.ToolOutcome{Output: err.Error(), AffectedPath: res.affected}
	}
	return agentloop.ToolOutcome{
		Success:      true,
		Output:       res.output,
		AffectedPath: res.affected,
		Artifacts:    res.artifacts,
	}
}

var _ agentloop.Dispatcher = (*Workspace)(nil)
