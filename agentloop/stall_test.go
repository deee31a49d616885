package agentloop

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fp(tool, args string) Fingerprint {
	return NewFingerprint(tool, json.RawMessage(args), true, "same output")
}

func TestCanonicalArguments(t *testing.T) {
	assert.Equal(t, `{"a":2,"b":{"c":1,"d":[1,2]}}`, CanonicalArguments(json.RawMessage(`{ "b": {"d": [1, 2], "c": 1}, "a": 2 }`)))
	assert.Equal(t, "{}", CanonicalArguments(nil))
	assert.Equal(t, "not json", CanonicalArguments(json.RawMessage(" not json ")))
}

func TestFingerprintIgnoresKeyOrder(t *testing.T) {
	assert.Equal(t, fp("file_read", `{"path":"a","limit":5}`), fp("file_read", `{"limit":5,"path":"a"}`))
	assert.NotEqual(t, fp("file_read", `{"path":"a"}`), fp("file_read", `{"path":"b"}`))

	ok := NewFingerprint("t", nil, true, "x")
	failed := NewFingerprint("t", nil, false, "x")
	assert.NotEqual(t, ok, failed)
	assert.Contains(t, ok.String(), "t:")
}

func TestStallDetectorNoStateChange(t *testing.T) {
	d := NewStallDetector(5)
	for i := 0; i < 4; i++ {
		d.Push(fp("file_read", `{"path":"a"}`))
		assert.Nil(t, d.IsStalled())
	}
	d.Push(fp("file_read", `{"path":"a"}`))
	r := d.IsStalled()
	require.NotNil(t, r)
	assert.Equal(t, StallNoStateChange, *r)
}

func TestStallDetectorToolLoop(t *testing.T) {
	d := NewStallDetector(5)
	a, b := fp("file_read", `{"path":"a"}`), fp("file_read", `{"path":"b"}`)
	for _, f := range []Fingerprint{a, b, a, b, a} {
		d.Push(f)
	}
	r := d.IsStalled()
	require.NotNil(t, r)
	assert.Equal(t, StallToolLoop, *r)
}

func TestStallDetectorProgress(t *testing.T) {
	d := NewStallDetector(5)
	for i := 0; i < 10; i++ {
		d.Push(fp("file_read", fmt.Sprintf(`{"path":"f%d"}`, i)))
	}
	assert.Nil(t, d.IsStalled())
}

func TestStallDetectorWindowSlides(t *testing.T) {
	d := NewStallDetector(4)
	for i := 0; i < 4; i++ {
		d.Push(fp("file_glob", fmt.Sprintf(`{"pattern":"%d"}`, i)))
	}
	assert.Nil(t, d.IsStalled())
	for i := 0; i < 4; i++ {
		d.Push(fp("file_glob", `{"pattern":"*"}`))
	}
	require.NotNil(t, d.IsStalled())
}

func TestStallDetectorThresholdFloor(t *testing.T) {
	assert.Equal(t, DefaultStallThreshold, NewStallDetector(1).Threshold())
	assert.Equal(t, 2, NewStallDetector(2).Threshold())
}

func TestSafetyCircuitOpen(t *testing.T) {
	s := NewSafety(BreakerConfig{FailureThreshold: 2, SuccessThreshold: 1, OpenTimeout: time.Minute, HalfOpenMaxCalls: 1}, 5)
	assert.Nil(t, s.Admit())

	assert.Nil(t, s.RecordOutcome("file_read", json.RawMessage(`{"path":"a"}`), false, "ERR_NOT_FOUND: a"))
	iv := s.RecordOutcome("file_read", json.RawMessage(`{"path":"b"}`), false, "ERR_NOT_FOUND: b")
	require.NotNil(t, iv)
	assert.ErrorIs(t, iv.Err, ErrCircuitOpen)
	assert.Equal(t, "safety system intervened: circuit open after 2 consecutive tool failures", iv.Message)

	iv = s.Admit()
	require.NotNil(t, iv)
	assert.ErrorIs(t, iv.Err, ErrCircuitOpen)
}

func TestSafetyStalled(t *testing.T) {
	s := NewSafety(DefaultBreakerConfig(), 3)
	args := json.RawMessage(`{"path":"a"}`)
	assert.Nil(t, s.RecordOutcome("file_read", args, true, "x"))
	assert.Nil(t, s.RecordOutcome("file_read", args, true, "x"))
	iv := s.RecordOutcome("file_read", args, true, "x")
	require.NotNil(t, iv)
	assert.ErrorIs(t, iv.Err, ErrStalled)
	assert.Contains(t, iv.Message, "safety system intervened: stalled (no_state_change over the last 3 steps")
}
