package invoker

import (
	"errors"
	"sync"
	"time"
)

// ErrBreakerOpen is returned by Allow while a service's breaker is shedding
// calls.
var ErrBreakerOpen = errors.New("circuit breaker is open")

// BreakerState is the position of a CircuitBreaker.
type BreakerState int

// Breaker states. The zero value is closed.
const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

var breakerStateNames = [...]string{
	BreakerClosed:   "closed",
	BreakerOpen:     "open",
	BreakerHalfOpen: "half-open",
}

func (s BreakerState) String() string {
	if s < 0 || int(s) >= len(breakerStateNames) {
		return "unknown"
	}
	return breakerStateNames[s]
}

// GaugeValue is the value exported on the breaker state gauge. Closed is 0,
// half-open 1 and open 2, so the gauge rises with severity.
func (s BreakerState) GaugeValue() float64 {
	switch s {
	case BreakerHalfOpen:
		return 1
	case BreakerOpen:
		return 2
	}
	return 0
}

// CircuitBreaker guards one backend service. It opens after failureThreshold
// failures in a row, sheds calls for the cool-down, then lets trial calls through
// until successThreshold of them succeed. Any failed trial call reopens it.
type CircuitBreaker struct {
	failureThreshold int
	successThreshold int
	coolDown         time.Duration
	now              func() time.Time

	mu        sync.Mutex
	state     BreakerState
	failures  int
	successes int
	retryAt   time.Time
	onChange  func(BreakerState)
}

// NewCircuitBreaker returns a closed breaker. Non-positive arguments fall
// back to 5 failures, 2 trial successes and a 30s cool-down.
func NewCircuitBreaker(failureThreshold, successThreshold int, coolDown time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		failureThreshold: positiveOr(failureThreshold, 5),
		successThreshold: positiveOr(successThreshold, 2),
		coolDown:         positiveOr(coolDown, 30*time.Second),
		now:              time.Now,
	}
}

func positiveOr[T int | time.Duration](v, def T) T {
	if v <= 0 {
		return def
	}
	return v
}

// OnStateChange registers fn to run after each transition. fn is called
// with the breaker locked and must not call back into it.
func (cb *CircuitBreaker) OnStateChange(fn func(BreakerState)) {
	cb.mu.Lock()
	cb.onChange = fn
	cb.mu.Unlock()
}

// Allow returns ErrBreakerOpen while the cool-down is running.
func (cb *CircuitBreaker) Allow() error {
	if cb.State() == BreakerOpen {
		return ErrBreakerOpen
	}
	return nil
}

// RecordSuccess records a call that reached the backend and did not fail.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures = 0
	if cb.refresh() != BreakerHalfOpen {
		return
	}
	cb.successes++
	if cb.successes >= cb.successThreshold {
		cb.moveTo(BreakerClosed)
	}
}

// RecordFailure records a failed call.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.refresh() {
	case BreakerHalfOpen:
		cb.trip()
	case BreakerClosed:
		cb.failures++
		if cb.failures >= cb.failureThreshold {
			cb.trip()
		}
	}
}

// State returns the current state, moving an open breaker whose cool-down
// has elapsed to half-open.
func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.refresh()
}

// Counts returns the consecutive failure count and the half-open success count.
func (cb *CircuitBreaker) Counts() (failures, successes int) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failures, cb.successes
}

func (cb *CircuitBreaker) refresh() BreakerState {
	if cb.state == BreakerOpen && !cb.now().Before(cb.retryAt) {
		cb.moveTo(BreakerHalfOpen)
	}
	return cb.state
}

func (cb *CircuitBreaker) trip() {
	cb.retryAt = cb.now().Add(cb.coolDown)
	cb.moveTo(BreakerOpen)
}

func (cb *CircuitBreaker) moveTo(to BreakerState) {
	cb.failures, cb.successes = 0, 0
	if cb.state == to {
		return
	}
	cb.state = to
	if cb.onChange != nil {
		cb.onChange(to)
	}
}
