// Package gateway wraps the external generation provider behind a circuit
// breaker, prompt sanitization, and an embedding cache.
package gateway

import (
	"sync"
	"time"
)

// BreakerState is the circuit breaker state.
type BreakerState int

const (
	StateClosed BreakerState = iota
	StateOpen
	StateHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

const (
	defaultFailureThreshold  = 5
	defaultHalfOpenTimeout   = 30 * time.Second
	defaultHalfOpenSuccesses = 2
)

// Breaker is a circuit breaker shared by all queries flowing through one
// gateway. It is an injected instance, not package state, so pipelines in
// tests do not share counters.
type Breaker struct {
	failureThreshold  int
	halfOpenTimeout   time.Duration
	halfOpenSuccesses int
	now               func() time.Time

	mu              sync.Mutex
	state           BreakerState
	failureCount    int
	lastFailureTime time.Time
	successCount    int
	probeCount      int
}

// NewBreaker creates a breaker with the given thresholds. Zero values select
// the defaults (5 failures, 30s half-open timeout, 2 half-open successes).
func NewBreaker(failureThreshold int, halfOpenTimeout time.Duration, halfOpenSuccesses int) *Breaker {
	if failureThreshold <= 0 {
		failureThreshold = defaultFailureThreshold
	}
	if halfOpenTimeout <= 0 {
		halfOpenTimeout = defaultHalfOpenTimeout
	}
	if halfOpenSuccesses <= 0 {
		halfOpenSuccesses = defaultHalfOpenSuccesses
	}
	return &Breaker{
		failureThreshold:  failureThreshold,
		halfOpenTimeout:   halfOpenTimeout,
		halfOpenSuccesses: halfOpenSuccesses,
		now:               time.Now,
	}
}

// Allow reports whether a request may proceed. When the breaker is OPEN and
// the half-open timeout has elapsed since the last failure, the state moves
// to HALF_OPEN and the request is allowed as a probe. While HALF_OPEN, at
// most halfOpenSuccesses probes may be in flight at once; further requests
// are rejected until a probe completes.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case StateOpen:
		if b.now().Sub(b.lastFailureTime) >= b.halfOpenTimeout {
			b.state = StateHalfOpen
			b.successCount = 0
			b.probeCount = 1
			return true
		}
		return false
	case StateHalfOpen:
		if b.probeCount < b.halfOpenSuccesses {
			b.probeCount++
			return true
		}
		return false
	default:
		return true
	}
}

// RecordSuccess registers a successful provider call.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case StateHalfOpen:
		if b.probeCount > 0 {
			b.probeCount--
		}
		b.successCount++
		if b.successCount >= b.halfOpenSuccesses {
			b.state = StateClosed
			b.failureCount = 0
			b.successCount = 0
			b.probeCount = 0
		}
	default:
		b.failureCount = 0
	}
}

// RecordFailure registers a failed provider call. While HALF_OPEN, a single
// failure reopens the circuit without waiting for the full threshold.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastFailureTime = b.now()
	switch b.state {
	case StateHalfOpen:
		b.state = StateOpen
		b.successCount = 0
		b.probeCount = 0
	case StateClosed:
		b.failureCount++
		if b.failureCount >= b.failureThreshold {
			b.state = StateOpen
		}
	}
}

// State returns the current breaker state.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
