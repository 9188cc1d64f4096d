package ai

import (
	"sync"
	"time"
)

// BreakerState represents the state of the circuit breaker.
type BreakerState int

const (
	// StateClosed means calls flow normally.
	StateClosed BreakerState = iota
	// StateOpen means calls are short-circuited until the cooldown expires.
	StateOpen
	// StateHalfOpen means a probe call is allowed through.
	StateHalfOpen
)

// CircuitBreaker tracks consecutive LLM failures within one job. It opens
// after maxFailures consecutive failures, short-circuits calls for the
// cooldown, then half-opens to probe. Independently, a running failure rate
// at or above rateThreshold latches fallback mode for the rest of the job.
type CircuitBreaker struct {
	mu sync.Mutex

	maxFailures   int
	cooldown      time.Duration
	rateThreshold float64
	minSamples    int

	state        BreakerState
	consecutive  int
	lastFailure  time.Time
	totalCalls   int
	failedCalls  int
	fallbackMode bool

	now func() time.Time
}

// NewCircuitBreaker builds a breaker with the given consecutive-failure
// threshold and open-state cooldown.
func NewCircuitBreaker(maxFailures int, cooldown time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		maxFailures:   maxFailures,
		cooldown:      cooldown,
		rateThreshold: 0.6,
		minSamples:    5,
		now:           time.Now,
	}
}

// Allow reports whether a call may proceed. An open breaker transitions to
// half-open once the cooldown has elapsed, letting the next call probe.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == StateOpen {
		if cb.now().Sub(cb.lastFailure) < cb.cooldown {
			return false
		}
		cb.state = StateHalfOpen
	}
	return true
}

// RecordSuccess closes the breaker and resets the consecutive counter.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.totalCalls++
	cb.consecutive = 0
	cb.state = StateClosed
}

// RecordFailure counts a failed call, opening the breaker at the threshold
// and latching fallback mode when the failure rate is high enough.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.totalCalls++
	cb.failedCalls++
	cb.consecutive++
	cb.lastFailure = cb.now()
	if cb.state == StateHalfOpen || cb.consecutive >= cb.maxFailures {
		cb.state = StateOpen
	}
	if cb.totalCalls >= cb.minSamples &&
		float64(cb.failedCalls)/float64(cb.totalCalls) >= cb.rateThreshold {
		cb.fallbackMode = true
	}
}

// State returns the current breaker state.
func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// FallbackMode reports whether the failure rate latched degraded mode.
// Once set it stays set for the lifetime of the breaker.
func (cb *CircuitBreaker) FallbackMode() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.fallbackMode
}
