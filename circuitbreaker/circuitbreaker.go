package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"uta-go/logcolors"

	log "github.com/sirupsen/logrus"
)

// State represents the circuit breaker state
type State int

const (
	StateClosed   State = iota // Normal operation, requests allowed
	StateOpen                  // Circuit tripped, requests blocked
	StateHalfOpen              // One probe request in flight
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF-OPEN"
	default:
		return "UNKNOWN"
	}
}

var ErrCircuitOpen = errors.New("circuit breaker is open")

// Config holds circuit breaker configuration
type Config struct {
	Name            string        // Name for logging
	Threshold       int           // Consecutive failures before opening
	Cooldown        time.Duration // How long to stay open before probing
	HalfOpenTimeout time.Duration // How long a probe may take before the circuit reopens

	// OnStateChange, if set, is called after every transition with the lock released
	OnStateChange func(name string, from, to State)
}

// CircuitBreaker guards calls to a flaky upstream
type CircuitBreaker struct {
	cfg Config
	now func() time.Time

	mu            sync.RWMutex
	state         State
	failures      int
	openedAt      time.Time
	halfOpenStart time.Time
}

// New creates a closed circuit breaker
func New(cfg Config) *CircuitBreaker {
	if cfg.Threshold <= 0 {
		cfg.Threshold = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = time.Minute
	}
	if cfg.HalfOpenTimeout <= 0 {
		cfg.HalfOpenTimeout = 30 * time.Second
	}
	if cfg.Name == "" {
		cfg.Name = "default"
	}

	return &CircuitBreaker{cfg: cfg, now: time.Now}
}

// transition must be called with mu held; it returns the hook call to run
// once the lock is released
func (cb *CircuitBreaker) transition(to State) func() {
	from := cb.state
	cb.state = to
	if cb.cfg.OnStateChange == nil || from == to {
		return func() {}
	}
	hook, name := cb.cfg.OnStateChange, cb.cfg.Name
	return func() { hook(name, from, to) }
}

// Allow reports whether a request may proceed. After the cooldown exactly one
// caller is let through as a probe; everyone else waits for its outcome.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	notify := func() {}
	defer func() {
		cb.mu.Unlock()
		notify()
	}()

	prefix := logcolors.CircuitBreakerPrefix(cb.cfg.Name)
	now := cb.now()

	switch cb.state {
	case StateOpen:
		if now.Sub(cb.openedAt) < cb.cfg.Cooldown {
			return false
		}
		notify = cb.transition(StateHalfOpen)
		cb.halfOpenStart = now
		log.Infof("%s Cooldown passed, transitioning to HALF-OPEN", prefix)
		return true

	case StateHalfOpen:
		if now.Sub(cb.halfOpenStart) >= cb.cfg.HalfOpenTimeout {
			notify = cb.transition(StateOpen)
			cb.openedAt = now
			log.Warnf("%s Probe timed out, transitioning back to OPEN", prefix)
		}
		return false

	default:
		return true
	}
}

// RecordSuccess closes the circuit after a probe and resets the failure count
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	notify := func() {}
	if cb.state == StateHalfOpen {
		notify = cb.transition(StateClosed)
		log.Infof("%s Probe succeeded, transitioning to CLOSED", logcolors.CircuitBreakerPrefix(cb.cfg.Name))
	}
	cb.failures = 0
	cb.mu.Unlock()
	notify()
}

// RecordFailure counts a failure, opening the circuit at the threshold or
// straight away when a probe fails
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	notify := func() {}
	prefix := logcolors.CircuitBreakerPrefix(cb.cfg.Name)

	cb.failures++
	switch cb.state {
	case StateHalfOpen:
		notify = cb.transition(StateOpen)
		cb.openedAt = cb.now()
		log.Warnf("%s Probe failed, transitioning back to OPEN", prefix)
	case StateClosed:
		if cb.failures >= cb.cfg.Threshold {
			notify = cb.transition(StateOpen)
			cb.openedAt = cb.now()
			log.Warnf("%s Threshold reached (%d failures), transitioning to OPEN (cooldown: %v)",
				prefix, cb.failures, cb.cfg.Cooldown)
		}
	}
	cb.mu.Unlock()
	notify()
}

// Do runs fn if the circuit allows it and records the outcome. Context
// cancellation is not held against the upstream.
func (cb *CircuitBreaker) Do(ctx context.Context, fn func(context.Context) error) error {
	if !cb.Allow() {
		return ErrCircuitOpen
	}

	err := fn(ctx)
	switch {
	case err == nil:
		cb.RecordSuccess()
	case ctx.Err() != nil:
		cb.releaseProbe()
	default:
		cb.RecordFailure()
	}
	return err
}

// releaseProbe hands an abandoned probe slot to the next caller
func (cb *CircuitBreaker) releaseProbe() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == StateHalfOpen {
		cb.state = StateOpen
		cb.openedAt = cb.now().Add(-cb.cfg.Cooldown)
	}
}

// State returns the current state
func (cb *CircuitBreaker) State() State {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

// Failures returns the current consecutive failure count
func (cb *CircuitBreaker) Failures() int {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.failures
}

// Name returns the name used in logs
func (cb *CircuitBreaker) Name() string {
	return cb.cfg.Name
}

// Threshold returns the configured failure threshold
func (cb *CircuitBreaker) Threshold() int {
	return cb.cfg.Threshold
}

// TimeUntilRetry returns the remaining cooldown while open, the remaining
// probe time while half-open and 0 while closed
func (cb *CircuitBreaker) TimeUntilRetry() time.Duration {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	var start time.Time
	var window time.Duration
	switch cb.state {
	case StateOpen:
		start, window = cb.openedAt, cb.cfg.Cooldown
	case StateHalfOpen:
		start, window = cb.halfOpenStart, cb.cfg.HalfOpenTimeout
	default:
		return 0
	}

	if remaining := window - cb.now().Sub(start); remaining > 0 {
		return remaining
	}
	return 0
}

// Reset manually closes the circuit
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	notify := cb.transition(StateClosed)
	cb.failures = 0
	cb.openedAt = time.Time{}
	cb.halfOpenStart = time.Time{}
	cb.mu.Unlock()
	notify()
	log.Infof("%s Manually reset to CLOSED", logcolors.CircuitBreakerPrefix(cb.cfg.Name))
}
