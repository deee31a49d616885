package execlog

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/martinemde/toolloop/agentloop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestRecordAssignsIDAndAppends(t *testing.T) {
	dir := t.TempDir()
	day := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	s, err := Open(dir, WithClock(fixedClock(day)))
	require.NoError(t, err)

	ctx := context.Background()
	rec := &agentloop.ExecutionRecord{
		SessionID: "s1",
		ToolName:  "file_read",
		Arguments: json.RawMessage(`{"path":"a.txt"}`),
		StepIndex: 1,
		Success:   true,
		Output:    "hello",
	}
	require.NoError(t, s.Record(ctx, rec))
	require.NotEmpty(t, rec.ExecutionID)

	require.NoError(t, s.RecordApproval(ctx, agentloop.ApprovalRecord{
		SessionID: "s1",
		ToolName:  "file_write",
		Scope:     agentloop.ScopeOnce,
		StepIndex: 2,
	}))

	_, err = os.Stat(filepath.Join(dir, "2026-03-14.jsonl"))
	require.NoError(t, err)

	entries, err := s.ReadDay(ctx, day)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, EntryExecution, entries[0].Type)
	assert.Equal(t, rec.ExecutionID, entries[0].Execution.ExecutionID)
	assert.Equal(t, EntryApproval, entries[1].Type)
	assert.Equal(t, agentloop.ScopeOnce, entries[1].Approval.Scope)
}

func TestRecordKeepsExistingID(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	rec := &agentloop.ExecutionRecord{ExecutionID: "custom-id", ToolName: "file_glob"}
	require.NoError(t, s.Record(context.Background(), rec))
	assert.Equal(t, "custom-id", rec.ExecutionID)

	got, err := s.Lookup(context.Background(), "custom-id")
	require.NoError(t, err)
	assert.Equal(t, "file_glob", got.ToolName)
}

func TestLookup(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	var ids []string
	for i, out := range []string{"first", "second", "third"} {
		rec := &agentloop.ExecutionRecord{ToolName: "file_read", StepIndex: i + 1, Success: true, Output: out}
		require.NoError(t, s.Record(ctx, rec))
		ids = append(ids, rec.ExecutionID)
	}

	got, err := s.Lookup(ctx, ids[1])
	require.NoError(t, err)
	assert.Equal(t, "second", got.Output)
	assert.Equal(t, 2, got.StepIndex)

	_, err = s.Lookup(ctx, "01ARZ3NDEKTSV4RRFFQ69G5FAV")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLookupAcrossDays(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	// The id is minted "now" but written into an older day file, so the
	// ULID timestamp points at the wrong file.
	old, err := Open(dir, WithClock(fixedClock(time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC))))
	require.NoError(t, err)
	rec := &agentloop.ExecutionRecord{ToolName: "file_edit", Output: "patched"}
	require.NoError(t, old.Record(ctx, rec))

	s, err := Open(dir)
	require.NoError(t, err)
	got, err := s.Lookup(ctx, rec.ExecutionID)
	require.NoError(t, err)
	assert.Equal(t, "patched", got.Output)

	days, err := s.Days()
	require.NoError(t, err)
	require.Len(t, days, 2)
	assert.True(t, days[0].Before(days[1]))
}

func TestReadDaySkipsTornLine(t *testing.T) {
	dir := t.TempDir()
	day := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	s, err := Open(dir, WithClock(fixedClock(day)))
	require.NoError(t, err)
	require.NoError(t, s.Record(context.Background(), &agentloop.ExecutionRecord{ToolName: "file_read"}))

	f, err := os.OpenFile(filepath.Join(dir, "2026-05-01.jsonl"), os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(`{"type":"execution","execu`)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	entries, err := s.ReadDay(context.Background(), day)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestOpenUnwritableDir(t *testing.T) {
	file := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	_, err := Open(filepath.Join(file, "logs"))
	assert.Error(t, err)
}

func TestRecordCancelledContext(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Record(ctx, &agentloop.ExecutionRecord{}), context.Canceled)
}
