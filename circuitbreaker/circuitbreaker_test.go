package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeClock lets tests move time without sleeping
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestBreaker(cfg Config) (*CircuitBreaker, *fakeClock) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	cb := New(cfg)
	cb.now = clock.Now
	return cb, clock
}

func TestNew(t *testing.T) {
	cb := New(Config{
		Name:      "catalog",
		Threshold: 3,
		Cooldown:  10 * time.Second,
	})

	if cb.Name() != "catalog" {
		t.Errorf("Expected name 'catalog', got %q", cb.Name())
	}
	if cb.Threshold() != 3 {
		t.Errorf("Expected threshold 3, got %d", cb.Threshold())
	}
	if cb.cfg.Cooldown != 10*time.Second {
		t.Errorf("Expected cooldown 10s, got %v", cb.cfg.Cooldown)
	}
	if cb.State() != StateClosed {
		t.Errorf("Expected initial state CLOSED, got %s", cb.State())
	}
}

func TestNew_Defaults(t *testing.T) {
	cb := New(Config{})

	if cb.cfg.Threshold != 5 {
		t.Errorf("Expected default threshold 5, got %d", cb.cfg.Threshold)
	}
	if cb.cfg.Cooldown != time.Minute {
		t.Errorf("Expected default cooldown 1m, got %v", cb.cfg.Cooldown)
	}
	if cb.cfg.HalfOpenTimeout != 30*time.Second {
		t.Errorf("Expected default halfOpenTimeout 30s, got %v", cb.cfg.HalfOpenTimeout)
	}
	if cb.cfg.Name != "default" {
		t.Errorf("Expected default name 'default', got %q", cb.cfg.Name)
	}
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb, _ := newTestBreaker(Config{Threshold: 3, Cooldown: time.Minute})

	for i := 1; i < 3; i++ {
		cb.RecordFailure()
		if cb.State() != StateClosed {
			t.Fatalf("Expected CLOSED after %d failures, got %s", i, cb.State())
		}
	}

	cb.RecordFailure()
	if cb.State() != StateOpen {
		t.Errorf("Expected OPEN after 3 failures, got %s", cb.State())
	}
	if cb.Allow() {
		t.Error("Expected Allow() to return false in OPEN state")
	}
}

func TestCircuitBreaker_SuccessResetsFailures(t *testing.T) {
	cb, _ := newTestBreaker(Config{Threshold: 3})

	cb.RecordFailure()
	cb.RecordFailure()
	if cb.Failures() != 2 {
		t.Errorf("Expected 2 failures, got %d", cb.Failures())
	}

	cb.RecordSuccess()
	if cb.Failures() != 0 {
		t.Errorf("Expected 0 failures after success, got %d", cb.Failures())
	}
}

func TestCircuitBreaker_HalfOpenProbe(t *testing.T) {
	tests := []struct {
		name     string
		outcome  func(cb *CircuitBreaker)
		expected State
	}{
		{"Probe succeeds", (*CircuitBreaker).RecordSuccess, StateClosed},
		{"Probe fails", (*CircuitBreaker).RecordFailure, StateOpen},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cb, clock := newTestBreaker(Config{Threshold: 2, Cooldown: time.Minute})
			cb.RecordFailure()
			cb.RecordFailure()

			clock.Advance(59 * time.Second)
			if cb.Allow() {
				t.Fatal("Expected request to be blocked during cooldown")
			}

			clock.Advance(time.Second)
			if !cb.Allow() {
				t.Fatal("Expected probe to be allowed after cooldown")
			}
			if cb.State() != StateHalfOpen {
				t.Fatalf("Expected HALF-OPEN, got %s", cb.State())
			}
			if cb.Allow() {
				t.Error("Expected second request to be blocked while probing")
			}

			tt.outcome(cb)
			if cb.State() != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, cb.State())
			}
		})
	}
}

func TestCircuitBreaker_HalfOpenTimeout(t *testing.T) {
	cb, clock := newTestBreaker(Config{Threshold: 1, Cooldown: time.Minute, HalfOpenTimeout: 10 * time.Second})
	cb.RecordFailure()

	clock.Advance(time.Minute)
	cb.Allow()

	clock.Advance(4 * time.Second)
	if got := cb.TimeUntilRetry(); got != 6*time.Second {
		t.Errorf("Expected 6s left on probe, got %v", got)
	}

	clock.Advance(6 * time.Second)
	if cb.Allow() {
		t.Error("Expected timed out probe to block")
	}
	if cb.State() != StateOpen {
		t.Errorf("Expected OPEN after probe timeout, got %s", cb.State())
	}
	if got := cb.TimeUntilRetry(); got != time.Minute {
		t.Errorf("Expected a fresh cooldown, got %v", got)
	}
}

func TestCircuitBreaker_TimeUntilRetry(t *testing.T) {
	cb, clock := newTestBreaker(Config{Threshold: 1, Cooldown: time.Minute})

	if got := cb.TimeUntilRetry(); got != 0 {
		t.Errorf("Expected 0 while closed, got %v", got)
	}

	cb.RecordFailure()
	clock.Advance(20 * time.Second)
	if got := cb.TimeUntilRetry(); got != 40*time.Second {
		t.Errorf("Expected 40s, got %v", got)
	}

	clock.Advance(time.Hour)
	if got := cb.TimeUntilRetry(); got != 0 {
		t.Errorf("Expected 0 after cooldown, got %v", got)
	}
}

func TestCircuitBreaker_Reset(t *testing.T) {
	cb, _ := newTestBreaker(Config{Threshold: 1})
	cb.RecordFailure()

	cb.Reset()
	if cb.State() != StateClosed || cb.Failures() != 0 {
		t.Errorf("Expected reset breaker, got %s with %d failures", cb.State(), cb.Failures())
	}
	if !cb.Allow() {
		t.Error("Expected Allow() after reset")
	}
}

func TestCircuitBreaker_OnStateChange(t *testing.T) {
	var transitions []string
	cb, clock := newTestBreaker(Config{
		Name:      "catalog",
		Threshold: 1,
		Cooldown:  time.Second,
		OnStateChange: func(name string, from, to State) {
			transitions = append(transitions, name+":"+from.String()+">"+to.String())
		},
	})

	cb.RecordFailure()
	clock.Advance(time.Second)
	cb.Allow()
	cb.RecordSuccess()
	cb.RecordSuccess()

	expected := []string{
		"catalog:CLOSED>OPEN",
		"catalog:OPEN>HALF-OPEN",
		"catalog:HALF-OPEN>CLOSED",
	}
	if len(transitions) != len(expected) {
		t.Fatalf("Expected %v, got %v", expected, transitions)
	}
	for i := range expected {
		if transitions[i] != expected[i] {
			t.Errorf("Transition %d: expected %q, got %q", i, expected[i], transitions[i])
		}
	}
}

func TestCircuitBreaker_Do(t *testing.T) {
	cb, _ := newTestBreaker(Config{Threshold: 2, Cooldown: time.Minute})
	upstream := errors.New("upstream down")
	calls := 0

	fail := func(context.Context) error {
		calls++
		return upstream
	}

	for i := 0; i < 2; i++ {
		if err := cb.Do(context.Background(), fail); !errors.Is(err, upstream) {
			t.Fatalf("Expected upstream error, got %v", err)
		}
	}

	if err := cb.Do(context.Background(), fail); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Expected ErrCircuitOpen, got %v", err)
	}
	if calls != 2 {
		t.Errorf("Expected fn not to run while open, ran %d times", calls)
	}
}

func TestCircuitBreaker_DoIgnoresCallerCancellation(t *testing.T) {
	cb, clock := newTestBreaker(Config{Threshold: 1, Cooldown: time.Minute})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := cb.Do(ctx, func(ctx context.Context) error { return ctx.Err() })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if cb.State() != StateClosed || cb.Failures() != 0 {
		t.Errorf("Expected cancellation not to count, got %s with %d failures", cb.State(), cb.Failures())
	}

	// an abandoned probe lets the next caller probe right away
	cb.RecordFailure()
	clock.Advance(time.Minute)
	cb.Do(ctx, func(ctx context.Context) error { return ctx.Err() })
	if !cb.Allow() {
		t.Error("Expected the next caller to get the probe slot")
	}
}

func TestCircuitBreaker_StateString(t *testing.T) {
	tests := []struct {
		state    State
		expected string
	}{
		{StateClosed, "CLOSED"},
		{StateOpen, "OPEN"},
		{StateHalfOpen, "HALF-OPEN"},
		{State(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		if tt.state.String() != tt.expected {
			t.Errorf("Expected %q, got %q", tt.expected, tt.state.String())
		}
	}
}

func TestCircuitBreaker_ConcurrentAccess(t *testing.T) {
	cb := New(Config{Threshold: 100, Cooldown: time.Minute})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				cb.Allow()
				cb.RecordFailure()
				cb.RecordSuccess()
				cb.Failures()
				cb.TimeUntilRetry()
			}
		}()
	}
	wg.Wait()

	state := cb.State()
	if state != StateClosed && state != StateOpen && state != StateHalfOpen {
		t.Errorf("Invalid state after concurrent access: %v", state)
	}
}
