package agentloop

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type approvalLog struct {
	mu      sync.Mutex
	records []ApprovalRecord
	err     error
}

func (a *approvalLog) RecordApproval(_ context.Context, rec ApprovalRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records = append(a.records, rec)
	return a.err
}

func (a *approvalLog) all() []ApprovalRecord {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]ApprovalRecord(nil), a.records...)
}

func TestApprovalGateOnce(t *testing.T) {
	log := &approvalLog{}
	g := NewApprovalGate("s1", log, zerolog.Nop())

	p, err := g.Request("file_write", json.RawMessage(`{"path":"a"}`), 3, "a")
	require.NoError(t, err)
	assert.Equal(t, "s1", p.SessionID)
	assert.Equal(t, "a", p.AffectedPath)
	assert.False(t, p.RequestedAt.IsZero())
	require.NotNil(t, g.Pending())

	_, err = g.Request("file_edit", nil, 4, "")
	assert.ErrorIs(t, err, ErrDuplicatePending)

	g.Grant(ScopeOnce, "file_write")
	assert.Nil(t, g.Pending())
	assert.True(t, g.IsApproved("file_write"))
	assert.False(t, g.IsApproved("file_edit"))
	assert.False(t, g.SessionWide())

	g.ConsumeOnce("file_write")
	assert.False(t, g.IsApproved("file_write"), "a single-use grant is spent by one call")

	recs := log.all()
	require.Len(t, recs, 1)
	assert.Equal(t, ScopeOnce, recs[0].Scope)
	assert.Equal(t, 3, recs[0].StepIndex)
	assert.JSONEq(t, `{"path":"a"}`, string(recs[0].Arguments))
}

func TestApprovalGateSessionWide(t *testing.T) {
	g := NewApprovalGate("s1", nil, zerolog.Nop())
	_, err := g.Request("file_write", nil, 1, "")
	require.NoError(t, err)

	g.Grant(ScopeSessionAllGated, "file_write")
	assert.True(t, g.SessionWide())
	assert.True(t, g.IsApproved("file_write"))
	assert.True(t, g.IsApproved("file_edit"))

	g.ConsumeOnce("file_write")
	assert.True(t, g.IsApproved("file_write"))

	g.Reset()
	assert.False(t, g.SessionWide())
	assert.False(t, g.IsApproved("file_write"))
}

func TestApprovalGateDeny(t *testing.T) {
	log := &approvalLog{err: errors.New("disk full")}
	g := NewApprovalGate("s1", log, zerolog.Nop())
	_, err := g.Request("file_edit", nil, 2, "")
	require.NoError(t, err)

	g.Deny("file_edit", "denied by user")
	assert.Nil(t, g.Pending())
	assert.False(t, g.IsApproved("file_edit"))

	recs := log.all()
	require.Len(t, recs, 1)
	assert.Equal(t, ScopeDenied, recs[0].Scope)
	assert.Equal(t, "denied by user", recs[0].Reason)
	assert.Equal(t, 2, recs[0].StepIndex)
}

func TestApprovalGateResetClearsPending(t *testing.T) {
	g := NewApprovalGate("s1", nil, zerolog.Nop())
	_, err := g.Request("file_write", nil, 1, "")
	require.NoError(t, err)
	g.Reset()
	assert.Nil(t, g.Pending())
	_, err = g.Request("file_write", nil, 1, "")
	assert.NoError(t, err)
}

func TestApprovalGateGrantRejectsDeniedScope(t *testing.T) {
	g := NewApprovalGate("s1", nil, zerolog.Nop())
	assert.Panics(t, func() { g.Grant(ScopeDenied, "file_write") })
}
