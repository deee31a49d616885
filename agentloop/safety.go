package agentloop

import (
	"encoding/json"
	"fmt"
)

// Intervention is a terminal decision by the safety layer.
type Intervention struct {
	Err     error
	Message string
}

// Safety combines the circuit breaker and the stall detector.
type Safety struct {
	breaker *CircuitBreaker
	stall   *StallDetector
}

// NewSafety creates the safety layer for one session.
func NewSafety(breaker BreakerConfig, stallThreshold int) *Safety {
	return &Safety{
		breaker: NewCircuitBreaker(breaker),
		stall:   NewStallDetector(stallThreshold),
	}
}

func (s *Safety) Breaker() *CircuitBreaker { return s.breaker }
func (s *Safety) Stall() *StallDetector    { return s.stall }

// Admit checks whether a tool call may be dispatched.
func (s *Safety) Admit() *Intervention {
	if s.breaker.Allow() {
		return nil
	}
	return s.circuitOpen()
}

// RecordOutcome feeds one completed step into the breaker and the ring and
// reports whether the loop must stop.
func (s *Safety) RecordOutcome(tool string, args json.RawMessage, success bool, output string) *Intervention {
	s.breaker.Record(success)
	s.stall.Push(NewFingerprint(tool, args, success, output))

	if s.breaker.State() == BreakerOpen {
		return s.circuitOpen()
	}
	if reason := s.stall.IsStalled(); reason != nil {
		return &Intervention{
			Err:     ErrStalled,
			Message: fmt.Sprintf("safety system intervened: %s (%s over the last %d steps, last tool %s)", ErrStalled, *reason, s.stall.Threshold(), tool),
		}
	}
	return nil
}

func (s *Safety) circuitOpen() *Intervention {
	return &Intervention{
		Err:     ErrCircuitOpen,
		Message: fmt.Sprintf("safety system intervened: %s after %d consecutive tool failures", ErrCircuitOpen, s.breaker.Config().FailureThreshold),
	}
}
