package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// ErrOpen is returned by Call when the circuit rejects the call without running it.
var ErrOpen = errors.New("circuit breaker open")

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

// State is the circuit breaker state (Closed, Open, HalfOpen).
type State int

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// CircuitBreaker stops upstream calls after repeated failures and lets trial calls
// through once the open timeout has elapsed.
type CircuitBreaker struct {
	mu               sync.Mutex
	clock            clockwork.Clock
	state            State
	failureCount     int
	successCount     int
	openedAt         time.Time
	trialRunning     bool
	failureThreshold int
	successThreshold int
	timeout          time.Duration
	component        string
	onStateChange    func(component string, from, to State)
}

// Config holds circuit breaker parameters. Zero values use defaults (5 failures, 2 successes, 30s).
type Config struct {
	FailureThreshold int
	SuccessThreshold int
	Timeout          time.Duration
	Component        string
	Clock            clockwork.Clock
	OnStateChange    func(component string, from, to State)
}

// New creates a new CircuitBreaker with the given config.
func New(cfg Config) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 2
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return &CircuitBreaker{
		clock:            cfg.Clock,
		state:            StateClosed,
		failureThreshold: cfg.FailureThreshold,
		successThreshold: cfg.SuccessThreshold,
		timeout:          cfg.Timeout,
		component:        cfg.Component,
		onStateChange:    cfg.OnStateChange,
	}
}

// Call runs fn when the circuit allows it and records the result. When open and the
// timeout has not elapsed, or while a half-open trial call is already running, it returns
// ErrOpen without running fn. A failure with ctx already done is the caller giving up,
// not the upstream failing, and does not count.
func (cb *CircuitBreaker) Call(ctx context.Context, fn func(context.Context) error) error {
	cb.mu.Lock()
	cb.advanceLocked()
	switch cb.state {
	case StateOpen:
		cb.mu.Unlock()
		return ErrOpen
	case StateHalfOpen:
		if cb.trialRunning {
			cb.mu.Unlock()
			return ErrOpen
		}
		cb.trialRunning = true
	}
	trial := cb.state == StateHalfOpen
	cb.mu.Unlock()

	err := fn(ctx)

	cb.mu.Lock()
	defer cb.mu.Unlock()
	if trial {
		cb.trialRunning = false
	}

	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		cb.failureCount++
		if cb.state == StateHalfOpen || cb.failureCount >= cb.failureThreshold {
			cb.openedAt = cb.clock.Now()
			cb.transitionLocked(StateOpen)
		}
		return err
	}

	cb.failureCount = 0
	if cb.state == StateHalfOpen {
		cb.successCount++
		if cb.successCount >= cb.successThreshold {
			cb.transitionLocked(StateClosed)
		}
	}
	return nil
}

// advanceLocked moves open to half-open once the timeout has elapsed. Must be called with mu held.
func (cb *CircuitBreaker) advanceLocked() {
	if cb.state == StateOpen && cb.clock.Since(cb.openedAt) >= cb.timeout {
		cb.transitionLocked(StateHalfOpen)
	}
}

// transitionLocked moves to state "to" and resets counters. Must be called with mu held.
func (cb *CircuitBreaker) transitionLocked(to State) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to
	cb.failureCount = 0
	cb.successCount = 0
	cb.trialRunning = false
	if cb.onStateChange != nil {
		cb.onStateChange(cb.component, from, to)
	}
}

// State returns the current state, reporting half-open once the open timeout has elapsed
// even if no call has arrived since.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.advanceLocked()
	return cb.state
}
