package agentloop

import "time"

// BreakerState is the state of a CircuitBreaker.
type BreakerState string

const (
	BreakerClosed   BreakerState = "closed"
	BreakerOpen     BreakerState = "open"
	BreakerHalfOpen BreakerState = "half_open"
)

// BreakerConfig configures a CircuitBreaker.
type BreakerConfig struct {
	FailureThreshold int           `json:"failure_threshold"`
	SuccessThreshold int           `json:"success_threshold"`
	OpenTimeout      time.Duration `json:"open_timeout"`
	HalfOpenMaxCalls int           `json:"half_open_max_calls"`
}

// DefaultBreakerConfig returns the default breaker configuration.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 3,
		SuccessThreshold: 1,
		OpenTimeout:      30 * time.Second,
		HalfOpenMaxCalls: 1,
	}
}

// CircuitBreaker halts tool dispatch after consecutive failures.
type CircuitBreaker struct {
	config        BreakerConfig
	state         BreakerState
	failureCount  int
	successCount  int
	halfOpenCalls int
	lastFailure   time.Time
	now           func() time.Time
}

// NewCircuitBreaker creates a closed breaker. Non-positive config values
// fall back to DefaultBreakerConfig.
func NewCircuitBreaker(cfg BreakerConfig) *CircuitBreaker {
	def := DefaultBreakerConfig()
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = def.SuccessThreshold
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = def.OpenTimeout
	}
	if cfg.HalfOpenMaxCalls <= 0 {
		cfg.HalfOpenMaxCalls = def.HalfOpenMaxCalls
	}
	return &CircuitBreaker{config: cfg, state: BreakerClosed, now: time.Now}
}

// SetClock replaces the time source.
func (b *CircuitBreaker) SetClock(now func() time.Time) { b.now = now }

func (b *CircuitBreaker) State() BreakerState   { return b.state }
func (b *CircuitBreaker) FailureCount() int     { return b.failureCount }
func (b *CircuitBreaker) Config() BreakerConfig { return b.config }

// Allow reports whether a call may proceed. An open breaker whose timeout has
// elapsed moves to half-open and admits up to HalfOpenMaxCalls trial calls.
func (b *CircuitBreaker) Allow() bool {
	switch b.state {
	case BreakerClosed:
		return true
	case BreakerOpen:
		if b.now().Sub(b.lastFailure) < b.config.OpenTimeout {
			return false
		}
		b.state = BreakerHalfOpen
		b.successCount = 0
		b.halfOpenCalls = 0
	}

	if b.halfOpenCalls >= b.config.HalfOpenMaxCalls {
		return false
	}
	b.halfOpenCalls++
	return true
}

// Record updates the breaker with a call outcome.
func (b *CircuitBreaker) Record(success bool) {
	switch b.state {
	case BreakerClosed:
		if success {
			b.failureCount = 0
			return
		}
		b.failureCount++
		b.lastFailure = b.now()
		if b.failureCount >= b.config.FailureThreshold {
			b.state = BreakerOpen
		}

	case BreakerHalfOpen:
		if !success {
			b.trip()
			return
		}
		b.successCount++
		if b.successCount >= b.config.SuccessThreshold {
			b.state = BreakerClosed
			b.failureCount = 0
			b.successCount = 0
			b.halfOpenCalls = 0
		} else if b.halfOpenCalls >= b.config.HalfOpenMaxCalls {
			// Probe budget spent; admit another round.
			b.halfOpenCalls = 0
		}

	case BreakerOpen:
		if !success {
			b.lastFailure = b.now()
		}
	}
}

func (b *CircuitBreaker) trip() {
	b.state = BreakerOpen
	b.successCount = 0
	b.halfOpenCalls = 0
	b.lastFailure = b.now()
}
