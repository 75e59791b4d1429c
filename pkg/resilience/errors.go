// Package resilience provides the guards CrateScout places in front of the
// Discogs API: a fixed-window rate limiter, a circuit breaker and a
// timeout-bounded future aggregator.
package resilience

import (
	"github.com/go-kratos/kratos/v2/errors"
)

// Error reasons shared by every guard in this package.
const (
	ReasonRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
	ReasonCircuitOpen       = "CIRCUIT_OPEN"
	ReasonTaskTimeout       = "TASK_TIMEOUT"
	ReasonTaskInterrupted   = "TASK_INTERRUPTED"
)

var (
	// ErrRateLimitExceeded is returned when the current window has no capacity left.
	// Callers decide whether to drop, retry or queue.
	ErrRateLimitExceeded = errors.New(429, ReasonRateLimitExceeded, "rate limit exceeded for the current window")

	// ErrCircuitOpen is returned without invoking the operation while the breaker is open.
	ErrCircuitOpen = errors.ServiceUnavailable(ReasonCircuitOpen, "circuit breaker is open")

	// ErrTaskTimeout marks a future that did not finish within the aggregate timeout.
	ErrTaskTimeout = errors.GatewayTimeout(ReasonTaskTimeout, "task did not complete before the aggregate timeout")

	// ErrTaskInterrupted marks a future whose wait was interrupted by the caller's context.
	ErrTaskInterrupted = errors.ClientClosed(ReasonTaskInterrupted, "wait for task was interrupted")
)

// IsRateLimited reports whether err was produced by a RateLimiter rejection.
func IsRateLimited(err error) bool {
	return errors.Reason(err) == ReasonRateLimitExceeded
}

// IsCircuitOpen reports whether err was produced by an open CircuitBreaker.
func IsCircuitOpen(err error) bool {
	return errors.Reason(err) == ReasonCircuitOpen
}
