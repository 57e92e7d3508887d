package observability

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by Call while the breaker rejects calls.
var ErrCircuitOpen = errors.New("circuit open")

// BreakerState is the state of a CircuitBreaker.
type BreakerState int

const (
	StateClosed BreakerState = iota
	StateOpen
	StateHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreaker stops calling a failing dependency (the scored-event topic)
// after maxFailures consecutive errors and probes it again after cooldown.
type CircuitBreaker struct {
	name        string
	maxFailures int
	cooldown    time.Duration
	probes      int
	now         func() time.Time

	mu        sync.Mutex
	state     BreakerState
	failures  int
	successes int
	openedAt  time.Time
}

// NewCircuitBreaker creates a closed breaker. Half-open lets probes calls
// through and closes again once they all succeed.
func NewCircuitBreaker(name string, maxFailures int, cooldown time.Duration) *CircuitBreaker {
	if maxFailures < 1 {
		maxFailures = 1
	}
	return &CircuitBreaker{name: name, maxFailures: maxFailures, cooldown: cooldown, probes: 2, now: time.Now}
}

// Call runs fn unless the breaker is open.
func (cb *CircuitBreaker) Call(fn func() error) error {
	if !cb.allow() {
		return fmt.Errorf("%s: %w", cb.name, ErrCircuitOpen)
	}
	err := fn()
	cb.record(err)
	return err
}

func (cb *CircuitBreaker) allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == StateOpen && cb.now().Sub(cb.openedAt) >= cb.cooldown {
		cb.setState(StateHalfOpen)
		cb.successes = 0
	}
	return cb.state != StateOpen
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if err != nil {
		cb.failures++
		if cb.state == StateHalfOpen || cb.failures >= cb.maxFailures {
			cb.openedAt = cb.now()
			cb.setState(StateOpen)
		}
		return
	}
	switch cb.state {
	case StateClosed:
		cb.failures = 0
	case StateHalfOpen:
		cb.successes++
		if cb.successes >= cb.probes {
			cb.failures = 0
			cb.setState(StateClosed)
		}
	}
}

func (cb *CircuitBreaker) setState(s BreakerState) {
	cb.state = s
	CircuitBreakerStateGauge.WithLabelValues(cb.name).Set(float64(s))
}

// State returns the current state.
func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == StateOpen && cb.now().Sub(cb.openedAt) >= cb.cooldown {
		return StateHalfOpen
	}
	return cb.state
}
