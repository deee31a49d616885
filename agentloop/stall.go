package agentloop

import (
	"bytes"
	"crypto/sha256"
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
)

// DefaultStallThreshold is the number of recent steps inspected.
const DefaultStallThreshold = 5

// StallReason explains why the detector considers the loop stalled.
type StallReason string

const (
	StallNoStateChange StallReason = "no_state_change"
	StallToolLoop      StallReason = "tool_loop"
)

// Fingerprint identifies a step by tool, canonical arguments and outcome.
type Fingerprint struct {
	Tool      string
	Arguments string
	Outcome   string
}

// String returns a compact signature for logs.
func (f Fingerprint) String() string {
	h := sha256.Sum256([]byte(f.Arguments))
	return fmt.Sprintf("%s:%x:%s", f.Tool, h[:6], f.Outcome)
}

// CanonicalArguments returns arguments as compact JSON with sorted keys.
// Input that is not valid JSON is returned trimmed and unchanged.
func CanonicalArguments(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return "{}"
	}
	if !gjson.ValidBytes(trimmed) {
		return string(trimmed)
	}
	sorted := pretty.PrettyOptions(trimmed, &pretty.Options{SortKeys: true})
	return string(bytes.TrimSpace(pretty.Ugly(sorted)))
}

// NewFingerprint builds the fingerprint of a completed step.
func NewFingerprint(tool string, args json.RawMessage, success bool, output string) Fingerprint {
	h := sha256.New()
	if success {
		h.Write([]byte{1})
	} else {
		h.Write([]byte{0})
	}
	h.Write([]byte(output))
	return Fingerprint{
		Tool:      tool,
		Arguments: CanonicalArguments(args),
		Outcome:   fmt.Sprintf("%x", h.Sum(nil)[:8]),
	}
}

// StallDetector keeps a bounded ring of recent step fingerprints.
type StallDetector struct {
	threshold int
	ring      []Fingerprint
	next      int
	size      int
}

// NewStallDetector creates a detector. threshold < 2 selects
// DefaultStallThreshold.
func NewStallDetector(threshold int) *StallDetector {
	if threshold < 2 {
		threshold = DefaultStallThreshold
	}
	return &StallDetector{
		threshold: threshold,
		ring:      make([]Fingerprint, threshold),
	}
}

// Threshold returns the window size.
func (d *StallDetector) Threshold() int { return d.threshold }

// Push records a step, evicting the oldest when the ring is full.
func (d *StallDetector) Push(fp Fingerprint) {
	d.ring[d.next] = fp
	d.next = (d.next + 1) % len(d.ring)
	if d.size < len(d.ring) {
		d.size++
	}
}

// recent returns the buffered fingerprints oldest first.
func (d *StallDetector) recent() []Fingerprint {
	out := make([]Fingerprint, 0, d.size)
	start := (d.next - d.size + len(d.ring)) % len(d.ring)
	for i := 0; i < d.size; i++ {
		out = append(out, d.ring[(start+i)%len(d.ring)])
	}
	return out
}

// IsStalled inspects the ring. It returns nil until threshold steps have been
// recorded.
func (d *StallDetector) IsStalled() *StallReason {
	if d.size < d.threshold {
		return nil
	}
	window := d.recent()

	if hasPeriod(window, 1) {
		r := StallNoStateChange
		return &r
	}
	for p := 2; p <= d.threshold/2; p++ {
		if hasPeriod(window, p) {
			r := StallToolLoop
			return &r
		}
	}
	return nil
}

// hasPeriod reports whether every element equals the one p positions earlier.
func hasPeriod(window []Fingerprint, p int) bool {
	for i := p; i < len(window); i++ {
		if window[i] != window[i-p] {
			return false
		}
	}
	return true
}
