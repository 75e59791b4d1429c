package resilience

import (
	"sync"
	"time"

	"github.com/go-kratos/kratos/v2/log"
)

// State is the circuit breaker state.
type State int

const (
	// StateClosed admits every call and counts failures.
	StateClosed State = iota
	// StateOpen rejects every call until OpenTimeout has elapsed since the last failure.
	StateOpen
	// StateHalfOpen admits calls as a trial; any failure reopens the circuit.
	StateHalfOpen
)

// String returns the string representation of the state.
func (s State) String() string {
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

// CircuitBreakerConfig configures a CircuitBreaker. It is read once at construction.
type CircuitBreakerConfig struct {
	// Name identifies the guarded dependency in logs and callbacks.
	Name string

	// FailureThreshold is the failure count that trips Closed -> Open.
	// Default: 5
	FailureThreshold int

	// OpenTimeout is the minimum dwell time in Open before a probe is allowed.
	// Default: 60 seconds
	OpenTimeout time.Duration

	// HalfOpenMaxSuccesses is the number of successes in HalfOpen needed to close.
	// Default: 3
	HalfOpenMaxSuccesses int

	// OnStateChange is called after every transition, outside the breaker lock and
	// in transition order. A transition made while another caller is still inside
	// OnStateChange is queued and delivered by that caller once it returns.
	OnStateChange func(name string, from, to State, snapshot CircuitSnapshot)

	// Now overrides the clock. Default: time.Now
	Now func() time.Time
}

// CircuitSnapshot is a consistent view of the breaker's state record.
type CircuitSnapshot struct {
	State        State
	FailureCount int
	SuccessCount int
	LastFailure  time.Time
}

// CircuitBreaker guards a single downstream dependency. One instance is shared
// by every caller of that dependency; all fields below mu change together.
//
// Every state change starts a new generation. A call reports its outcome only
// into the generation it was admitted in, so a slow call admitted while Closed
// cannot count as a HalfOpen trial success or reopen a circuit it never saw.
type CircuitBreaker struct {
	config CircuitBreakerConfig
	logger *log.Helper

	mu          sync.Mutex
	state       State
	generation  uint64
	failures    int
	successes   int
	lastFailure time.Time

	// transitions waiting for delivery, guarded by mu
	pending     []transition
	dispatching bool
}

type transition struct {
	from, to State
	snap     CircuitSnapshot
}

// NewCircuitBreaker creates a circuit breaker in the Closed state.
func NewCircuitBreaker(config CircuitBreakerConfig, logger log.Logger) *CircuitBreaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 5
	}
	if config.OpenTimeout <= 0 {
		config.OpenTimeout = 60 * time.Second
	}
	if config.HalfOpenMaxSuccesses <= 0 {
		config.HalfOpenMaxSuccesses = 3
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	return &CircuitBreaker{
		config: config,
		logger: log.NewHelper(log.With(logger, "breaker", config.Name)),
		state:  StateClosed,
	}
}

// Execute runs fn through the breaker. While the circuit is open fn is not
// invoked and ErrCircuitOpen is returned. Errors from fn are returned unchanged.
func Execute[T any](cb *CircuitBreaker, fn func() (T, error)) (T, error) {
	gen, err := cb.beforeCall()
	if err != nil {
		var zero T
		return zero, err
	}

	v, err := fn()
	cb.afterCall(gen, err)
	return v, err
}

// Do is Execute for operations without a result.
func (cb *CircuitBreaker) Do(fn func() error) error {
	_, err := Execute(cb, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// State returns the current state. The Open -> HalfOpen transition is lazy and
// only happens when a call is attempted, so an expired Open circuit still reads Open.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// FailureCount returns the current failure count.
func (cb *CircuitBreaker) FailureCount() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failures
}

// Snapshot returns the whole state record read under a single lock.
func (cb *CircuitBreaker) Snapshot() CircuitSnapshot {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.snapshotLocked()
}

// Name returns the configured dependency name.
func (cb *CircuitBreaker) Name() string {
	return cb.config.Name
}

// Reset forces the breaker back to Closed.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	cb.setStateLocked(StateClosed)
	cb.dispatchLocked()
}

// beforeCall admits or rejects a call and returns the generation it runs in.
func (cb *CircuitBreaker) beforeCall() (uint64, error) {
	cb.mu.Lock()

	if cb.state != StateOpen {
		gen := cb.generation
		cb.mu.Unlock()
		return gen, nil
	}

	if cb.config.Now().Sub(cb.lastFailure) < cb.config.OpenTimeout {
		cb.mu.Unlock()
		return 0, ErrCircuitOpen
	}

	cb.setStateLocked(StateHalfOpen)
	gen := cb.generation
	cb.dispatchLocked()
	return gen, nil
}

func (cb *CircuitBreaker) afterCall(gen uint64, err error) {
	cb.mu.Lock()

	if gen != cb.generation {
		cb.mu.Unlock()
		return
	}

	if err != nil {
		cb.lastFailure = cb.config.Now()
		cb.failures++

		switch cb.state {
		case StateHalfOpen:
			cb.setStateLocked(StateOpen)
		case StateClosed:
			if cb.failures >= cb.config.FailureThreshold {
				cb.setStateLocked(StateOpen)
			}
		}
	} else {
		switch cb.state {
		case StateHalfOpen:
			cb.successes++
			if cb.successes >= cb.config.HalfOpenMaxSuccesses {
				cb.setStateLocked(StateClosed)
			}
		case StateClosed:
			// success clears accumulated failures; there is no sliding window
			cb.failures = 0
		}
	}

	cb.dispatchLocked()
}

// setStateLocked applies the on-entry rules of the target state and queues the
// transition for delivery. Nothing happens when the state does not change.
func (cb *CircuitBreaker) setStateLocked(to State) {
	from := cb.state
	if from == to {
		return
	}

	cb.state = to
	cb.generation++
	switch to {
	case StateClosed:
		cb.failures = 0
		cb.successes = 0
	case StateHalfOpen, StateOpen:
		cb.successes = 0
	}

	cb.pending = append(cb.pending, transition{from: from, to: to, snap: cb.snapshotLocked()})
}

// dispatchLocked delivers queued transitions in order and releases mu. Only one
// caller delivers at a time; the others leave their transitions in the queue.
func (cb *CircuitBreaker) dispatchLocked() {
	if cb.dispatching {
		cb.mu.Unlock()
		return
	}
	cb.dispatching = true

	// a panicking hook must not leave later transitions stuck in the queue
	defer func() {
		if r := recover(); r != nil {
			cb.mu.Lock()
			cb.dispatching = false
			cb.mu.Unlock()
			panic(r)
		}
	}()

	for len(cb.pending) > 0 {
		batch := cb.pending
		cb.pending = nil
		cb.mu.Unlock()

		for _, tr := range batch {
			cb.notify(tr)
		}

		cb.mu.Lock()
	}

	cb.dispatching = false
	cb.mu.Unlock()
}

func (cb *CircuitBreaker) snapshotLocked() CircuitSnapshot {
	return CircuitSnapshot{
		State:        cb.state,
		FailureCount: cb.failures,
		SuccessCount: cb.successes,
		LastFailure:  cb.lastFailure,
	}
}

func (cb *CircuitBreaker) notify(tr transition) {
	switch tr.to {
	case StateOpen:
		cb.logger.Warnw("msg", "circuit opened",
			"from", tr.from.String(),
			"failures", tr.snap.FailureCount,
			"open_timeout", cb.config.OpenTimeout)
	case StateHalfOpen:
		cb.logger.Infow("msg", "circuit half-open, probing dependency")
	case StateClosed:
		cb.logger.Infow("msg", "circuit closed", "from", tr.from.String())
	}

	if cb.config.OnStateChange != nil {
		cb.config.OnStateChange(cb.config.Name, tr.from, tr.to, tr.snap)
	}
}
