package resilience

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/robfig/cron/v3"
)

// DefaultResetSpec resets the window at second 0 of every wall-clock minute.
const DefaultResetSpec = "0 * * * * *"

// RateLimiterConfig configures a fixed-window RateLimiter.
type RateLimiterConfig struct {
	// MaxPerMinute is the number of operations admitted per window. Must be positive.
	MaxPerMinute int64
	// ResetSpec is the cron schedule (with seconds) that clears the window.
	// Default: DefaultResetSpec
	ResetSpec string
}

// RateLimiter admits at most MaxPerMinute operations per fixed window.
// The window is cleared by a cron job owned by the limiter, independent of
// when the first request arrives. TryAcquire never blocks.
type RateLimiter struct {
	max   int64
	count atomic.Int64

	cron     *cron.Cron
	stopOnce sync.Once
	stopped  context.Context

	logger *log.Helper
}

// NewRateLimiter creates a RateLimiter and starts its window reset schedule.
// Call Stop on shutdown to release the scheduler goroutine.
func NewRateLimiter(cfg RateLimiterConfig, logger log.Logger) (*RateLimiter, error) {
	if cfg.MaxPerMinute <= 0 {
		return nil, fmt.Errorf("rate limit per minute must be positive, got %d", cfg.MaxPerMinute)
	}

	spec := cfg.ResetSpec
	if spec == "" {
		spec = DefaultResetSpec
	}

	rl := &RateLimiter{
		max:    cfg.MaxPerMinute,
		logger: log.NewHelper(logger),
	}

	c := cron.New(cron.WithSeconds())
	if _, err := c.AddFunc(spec, rl.Reset); err != nil {
		return nil, fmt.Errorf("invalid rate limiter reset schedule %q: %w", spec, err)
	}
	c.Start()
	rl.cron = c

	return rl, nil
}

// TryAcquire attempts to admit one operation into the current window.
// The counter is advanced with a compare-and-swap so it never exceeds the
// configured maximum and never goes negative across a concurrent Reset.
func (rl *RateLimiter) TryAcquire() bool {
	for {
		current := rl.count.Load()
		if current >= rl.max {
			return false
		}
		if rl.count.CompareAndSwap(current, current+1) {
			return true
		}
	}
}

// Acquire is TryAcquire returning ErrRateLimitExceeded on rejection.
func (rl *RateLimiter) Acquire() error {
	if !rl.TryAcquire() {
		return ErrRateLimitExceeded
	}
	return nil
}

// Reset clears the current window.
func (rl *RateLimiter) Reset() {
	if previous := rl.count.Swap(0); previous > 0 {
		rl.logger.Debugw("rate limit window reset", "admitted", previous, "limit", rl.max)
	}
}

// Count returns the number of operations admitted in the current window.
func (rl *RateLimiter) Count() int64 {
	return rl.count.Load()
}

// Max returns the configured window capacity.
func (rl *RateLimiter) Max() int64 {
	return rl.max
}

// Stop cancels the reset schedule. The returned context is done once a reset
// that is already running has finished. Safe to call more than once.
func (rl *RateLimiter) Stop() context.Context {
	rl.stopOnce.Do(func() {
		rl.stopped = rl.cron.Stop()
		rl.logger.Info("rate limiter reset schedule stopped")
	})
	return rl.stopped
}
