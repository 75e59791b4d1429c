package resilience

// Guard combines the admission checks applied to every call to one dependency:
// the rate limiter admits the call, then the circuit breaker guards it.
// Either guard may be nil.
type Guard struct {
	Limiter *RateLimiter
	Breaker *CircuitBreaker

	// OnRejected is called when the limiter rejects a call.
	OnRejected func()
}

// NewGuard creates a Guard over limiter and breaker.
func NewGuard(limiter *RateLimiter, breaker *CircuitBreaker) *Guard {
	return &Guard{
		Limiter: limiter,
		Breaker: breaker,
	}
}

// Call runs fn through g. A limiter rejection returns ErrRateLimitExceeded and
// leaves the breaker untouched; otherwise the breaker decides.
func Call[T any](g *Guard, fn func() (T, error)) (T, error) {
	if g == nil {
		return fn()
	}

	if g.Limiter != nil {
		if err := g.Limiter.Acquire(); err != nil {
			if g.OnRejected != nil {
				g.OnRejected()
			}
			var zero T
			return zero, err
		}
	}

	if g.Breaker == nil {
		return fn()
	}
	return Execute(g.Breaker, fn)
}
