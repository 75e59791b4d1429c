package resilience

import (
	"context"
	"fmt"
	"time"

	"github.com/go-kratos/kratos/v2/log"
)

// DefaultAggregateTimeout is the per-task wait bound used when none is configured.
const DefaultAggregateTimeout = 50 * time.Second

// Future is a unit of work that was started by Submit and whose result has not
// been consumed yet.
type Future[T any] struct {
	done   chan struct{}
	cancel context.CancelFunc

	value T
	err   error
}

// Submit starts fn on its own goroutine and returns immediately. fn receives a
// child of ctx that is cancelled when the future is cancelled or finishes.
// A panic inside fn is recovered and reported as the future's error.
func Submit[T any](ctx context.Context, fn func(ctx context.Context) (T, error)) *Future[T] {
	taskCtx, cancel := context.WithCancel(ctx)
	f := &Future[T]{
		done:   make(chan struct{}),
		cancel: cancel,
	}

	go func() {
		defer close(f.done)
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				f.err = fmt.Errorf("task panicked: %v", r)
			}
		}()

		f.value, f.err = fn(taskCtx)
	}()

	return f
}

// Done is closed once the task has finished.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Cancel signals the task to stop. Cancellation is cooperative: the task only
// stops if fn observes its context.
func (f *Future[T]) Cancel() {
	f.cancel()
}

// OutcomeKind is the closed set of ways a task can end from the aggregator's view.
type OutcomeKind int

const (
	// OutcomeCompleted means the task returned a value without error in time.
	OutcomeCompleted OutcomeKind = iota
	// OutcomeTimedOut means the wait elapsed first; the task was cancelled.
	OutcomeTimedOut
	// OutcomeFailed means the task returned an error, panicked, or the wait was interrupted.
	OutcomeFailed
)

// String returns the string representation of the outcome kind.
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeCompleted:
		return "completed"
	case OutcomeTimedOut:
		return "timed_out"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome is the result of waiting on one future.
type Outcome[T any] struct {
	Kind  OutcomeKind
	Value T
	Err   error
}

// AggregatorConfig configures a FutureAggregator.
type AggregatorConfig struct {
	// Timeout bounds the wait for each individual task.
	// Default: DefaultAggregateTimeout
	Timeout time.Duration

	// OnOutcome is called once per collected task.
	OnOutcome func(kind OutcomeKind)
}

// FutureAggregator joins batches of already started futures under a uniform
// per-task deadline.
type FutureAggregator struct {
	timeout   time.Duration
	onOutcome func(kind OutcomeKind)
	logger    *log.Helper
}

// NewFutureAggregator creates a FutureAggregator.
func NewFutureAggregator(cfg AggregatorConfig, logger log.Logger) *FutureAggregator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultAggregateTimeout
	}

	return &FutureAggregator{
		timeout:   cfg.Timeout,
		onOutcome: cfg.OnOutcome,
		logger:    log.NewHelper(logger),
	}
}

// Timeout returns the per-task wait bound.
func (a *FutureAggregator) Timeout() time.Duration {
	return a.timeout
}

// CollectResults waits on every future in submission order, each for at most
// the aggregator timeout, and returns one Outcome per future in the same order.
// A timed-out future is cancelled. One future's outcome never affects the wait
// on the others.
func CollectResults[T any](ctx context.Context, a *FutureAggregator, futures []*Future[T]) []Outcome[T] {
	outcomes := make([]Outcome[T], len(futures))

	for i, f := range futures {
		outcomes[i] = await(ctx, f, a.timeout)

		if a.onOutcome != nil {
			a.onOutcome(outcomes[i].Kind)
		}
		if outcomes[i].Kind != OutcomeCompleted {
			a.logger.Debugw("msg", "aggregated task dropped",
				"index", i,
				"outcome", outcomes[i].Kind.String(),
				"error", outcomes[i].Err)
		}
	}

	return outcomes
}

// Collect returns the values of the futures that completed successfully, in
// submission order. Failed and timed-out futures are omitted without error.
func Collect[T any](ctx context.Context, a *FutureAggregator, futures []*Future[T]) []T {
	outcomes := CollectResults(ctx, a, futures)

	values := make([]T, 0, len(outcomes))
	for _, o := range outcomes {
		if o.Kind == OutcomeCompleted {
			values = append(values, o.Value)
		}
	}

	return values
}

func await[T any](ctx context.Context, f *Future[T], timeout time.Duration) Outcome[T] {
	// a task that already finished counts even if ctx is done
	select {
	case <-f.done:
		return finished(f)
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-f.done:
		return finished(f)
	case <-timer.C:
		f.Cancel()
		return Outcome[T]{Kind: OutcomeTimedOut, Err: ErrTaskTimeout}
	case <-ctx.Done():
		f.Cancel()
		return Outcome[T]{Kind: OutcomeFailed, Err: ErrTaskInterrupted.WithCause(ctx.Err())}
	}
}

func finished[T any](f *Future[T]) Outcome[T] {
	if f.err != nil {
		return Outcome[T]{Kind: OutcomeFailed, Err: f.err}
	}
	return Outcome[T]{Kind: OutcomeCompleted, Value: f.value}
}
