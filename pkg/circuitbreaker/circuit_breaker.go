package circuitbreaker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// State represents the state of a circuit breaker
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// CircuitBreaker guards calls to an external API. After maxFailures
// consecutive failures the circuit opens and calls fail fast until the
// cooldown passes, when a limited number of probe calls is let through.
type CircuitBreaker struct {
	name             string
	maxFailures      uint32
	cooldown         time.Duration
	halfOpenMaxCalls uint32

	mu              sync.Mutex
	state           State
	failures        uint32
	halfOpenCalls   uint32
	probeSuccesses  uint32
	lastFailureTime time.Time

	logger *logrus.Logger
}

// New creates a circuit breaker named for the guarded endpoint.
func New(name string, maxFailures uint32, cooldown time.Duration) *CircuitBreaker {
	return NewWithLogger(name, maxFailures, cooldown, logrus.New())
}

// NewWithLogger creates a circuit breaker with a custom logger.
func NewWithLogger(name string, maxFailures uint32, cooldown time.Duration, logger *logrus.Logger) *CircuitBreaker {
	return &CircuitBreaker{
		name:             name,
		maxFailures:      maxFailures,
		cooldown:         cooldown,
		halfOpenMaxCalls: 3,
		state:            StateClosed,
		logger:           logger,
	}
}

// Execute runs fn unless the circuit is open. The function's error decides
// whether the circuit accumulates a failure or recovers.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if !cb.allowRequest() {
		return &OpenError{Name: cb.name, State: cb.State()}
	}

	if err := fn(ctx); err != nil {
		cb.onFailure()
		return err
	}

	cb.onSuccess()
	return nil
}

func (cb *CircuitBreaker) allowRequest() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.stateLocked() {
	case StateClosed:
		return true
	case StateHalfOpen:
		if cb.halfOpenCalls < cb.halfOpenMaxCalls {
			cb.halfOpenCalls++
			return true
		}
		return false
	default:
		return false
	}
}

// stateLocked returns the current state, moving an expired open circuit to
// half-open. Callers must hold mu.
func (cb *CircuitBreaker) stateLocked() State {
	if cb.state == StateOpen && time.Since(cb.lastFailureTime) >= cb.cooldown {
		cb.state = StateHalfOpen
		cb.halfOpenCalls = 0
		cb.probeSuccesses = 0
		cb.logger.WithField("circuit_breaker", cb.name).Info("Circuit breaker transitioned to half-open")
	}
	return cb.state
}

func (cb *CircuitBreaker) onSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateHalfOpen:
		cb.probeSuccesses++
		if cb.probeSuccesses >= cb.halfOpenMaxCalls {
			cb.state = StateClosed
			cb.failures = 0
			cb.logger.WithField("circuit_breaker", cb.name).Info("Circuit breaker closed after successful recovery")
		}
	case StateClosed:
		cb.failures = 0
	}
}

func (cb *CircuitBreaker) onFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.lastFailureTime = time.Now()

	switch cb.state {
	case StateClosed:
		if cb.failures >= cb.maxFailures {
			cb.trip()
		}
	case StateHalfOpen:
		cb.trip()
	}
}

// trip opens the circuit. Callers must hold mu.
func (cb *CircuitBreaker) trip() {
	cb.state = StateOpen
	cb.logger.WithFields(logrus.Fields{
		"circuit_breaker": cb.name,
		"failures":        cb.failures,
	}).Warn("Circuit breaker opened due to failures")
}

// State returns the current state of the circuit breaker.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.stateLocked()
}

// OpenError is returned for calls rejected by an open circuit.
type OpenError struct {
	Name  string
	State State
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("circuit breaker '%s' is %s", e.Name, e.State)
}

// IsOpenError checks if an error came from a rejecting circuit breaker.
func IsOpenError(err error) bool {
	_, ok := err.(*OpenError)
	return ok
}
