package fstools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/martinemde/toolloop/agentloop"
	"github.com/tidwall/gjson"
)

// RecordLookup retrieves persisted execution records. execlog.Store
// implements it.
type RecordLookup interface {
	Lookup(ctx context.Context, executionID string) (*agentloop.ExecutionRecord, error)
}

type MemoryQueryArgs struct {
	ExecutionRef string `json:"execution_ref" jsonschema_description:"The execution_ref shown in a compacted tool result."`
	Field        string `json:"field,omitempty" jsonschema_description:"Optional field path into the record, e.g. output or arguments.path. Omit to get the whole record."`
}

func (w *Workspace) memoryQuery(ctx context.Context, a MemoryQueryArgs) (result, error) {
	if w.records == nil {
		return result{}, toolErr("ERR_UNAVAILABLE", "no execution records are available in this session")
	}
	if a.ExecutionRef == "" {
		return result{}, toolErr("ERR_INVALID_ARGS", "execution_ref is required")
	}

	rec, err := w.records.Lookup(ctx, a.ExecutionRef)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return result{}, err
		}
		return result{}, toolErr("ERR_NOT_FOUND", "%v", err)
	}
	if rec == nil {
		return result{}, toolErr("ERR_NOT_FOUND", "no record for %s", a.ExecutionRef)
	}

	if a.Field != "" {
		raw, err := json.Marshal(rec)
		if err != nil {
			return result{}, err
		}
		v := gjson.GetBytes(raw, a.Field)
		if !v.Exists() {
			return result{}, toolErr("ERR_NO_FIELD", "record %s has no field %q", a.ExecutionRef, a.Field)
		}
		if v.Type == gjson.String {
			return result{output: v.String()}, nil
		}
		return result{output: v.Raw}, nil
	}

	status := "ok"
	if !rec.Success {
		status = "error"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "execution %s: %s step %d (%s)\n", rec.ExecutionID, rec.ToolName, rec.StepIndex, status)
	if len(rec.Arguments) > 0 {
		fmt.Fprintf(&sb, "arguments: %s\n", agentloop.CanonicalArguments(rec.Arguments))
	}
	if rec.AffectedPath != "" {
		fmt.Fprintf(&sb, "affected path: %s\n", rec.AffectedPath)
	}
	sb.WriteString("output:\n")
	sb.WriteString(rec.Output)
	return result{output: sb.String()}, nil
}
