package resilience

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// yearlyResetSpec keeps the scheduled reset out of the way of a test run.
const yearlyResetSpec = "0 0 0 1 1 *"

func newTestRateLimiter(t *testing.T, limit int64) *RateLimiter {
	t.Helper()

	rl, err := NewRateLimiter(RateLimiterConfig{
		MaxPerMinute: limit,
		ResetSpec:    yearlyResetSpec,
	}, log.DefaultLogger)
	require.NoError(t, err)

	t.Cleanup(func() { <-rl.Stop().Done() })
	return rl
}

func TestNewRateLimiter_InvalidMax(t *testing.T) {
	_, err := NewRateLimiter(RateLimiterConfig{MaxPerMinute: 0}, log.DefaultLogger)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "must be positive")
}

func TestNewRateLimiter_InvalidSchedule(t *testing.T) {
	_, err := NewRateLimiter(RateLimiterConfig{MaxPerMinute: 10, ResetSpec: "not a cron spec"}, log.DefaultLogger)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid rate limiter reset schedule")
}

func TestTryAcquire_AdmitsUpToMax(t *testing.T) {
	rl := newTestRateLimiter(t, 5)

	for i := 0; i < 5; i++ {
		assert.True(t, rl.TryAcquire(), "call %d should be admitted", i+1)
	}

	assert.False(t, rl.TryAcquire())
	assert.False(t, rl.TryAcquire())
	assert.Equal(t, int64(5), rl.Count())
	assert.Equal(t, int64(5), rl.Max())
}

func TestAcquire_ReturnsRateLimitError(t *testing.T) {
	rl := newTestRateLimiter(t, 1)

	require.NoError(t, rl.Acquire())

	err := rl.Acquire()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRateLimitExceeded))
	assert.True(t, IsRateLimited(err))
	assert.False(t, IsCircuitOpen(err))
}

func TestReset_StartsNewWindow(t *testing.T) {
	rl := newTestRateLimiter(t, 3)

	for i := 0; i < 3; i++ {
		require.True(t, rl.TryAcquire())
	}
	require.False(t, rl.TryAcquire())

	rl.Reset()
	assert.Equal(t, int64(0), rl.Count())

	for i := 0; i < 3; i++ {
		assert.True(t, rl.TryAcquire())
	}
	assert.False(t, rl.TryAcquire())
}

func TestTryAcquire_Concurrent(t *testing.T) {
	rl := newTestRateLimiter(t, 50)

	var admitted atomic.Int64
	var wg sync.WaitGroup
	for g := 0; g < 100; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				if rl.TryAcquire() {
					admitted.Add(1)
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(50), admitted.Load())
	assert.Equal(t, int64(50), rl.Count())
}

func TestTryAcquire_ConcurrentWithReset(t *testing.T) {
	rl := newTestRateLimiter(t, 20)

	stop := make(chan struct{})
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				rl.Reset()
			}
		}
	}()

	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 2000; i++ {
				rl.TryAcquire()
				count := rl.Count()
				assert.GreaterOrEqual(t, count, int64(0))
				assert.LessOrEqual(t, count, int64(20))
			}
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(stop)
	wg.Wait()
}

func TestRateLimiter_ScheduledReset(t *testing.T) {
	rl, err := NewRateLimiter(RateLimiterConfig{
		MaxPerMinute: 2,
		ResetSpec:    "@every 1s",
	}, log.DefaultLogger)
	require.NoError(t, err)
	defer rl.Stop()

	require.True(t, rl.TryAcquire())
	require.True(t, rl.TryAcquire())
	require.False(t, rl.TryAcquire())

	assert.Eventually(t, func() bool {
		return rl.Count() == 0
	}, 3*time.Second, 20*time.Millisecond)

	assert.True(t, rl.TryAcquire())
}

func TestRateLimiter_StopReleasesScheduler(t *testing.T) {
	ignore := goleak.IgnoreCurrent()

	rl, err := NewRateLimiter(RateLimiterConfig{MaxPerMinute: 10}, log.DefaultLogger)
	require.NoError(t, err)

	ctx := rl.Stop()
	<-ctx.Done()

	// second Stop is a no-op
	<-rl.Stop().Done()

	// acquiring after shutdown still works, the window just never resets
	assert.True(t, rl.TryAcquire())

	goleak.VerifyNone(t, ignore)
}

func TestRateLimiter_AdmissionProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 40

	properties := gopter.NewProperties(parameters)

	properties.Property("exactly max calls are admitted per window", prop.ForAll(
		func(limit int, extra int) bool {
			rl, err := NewRateLimiter(RateLimiterConfig{
				MaxPerMinute: int64(limit),
				ResetSpec:    yearlyResetSpec,
			}, log.DefaultLogger)
			if err != nil {
				return false
			}
			defer rl.Stop()

			admitted := 0
			for i := 0; i < limit+extra; i++ {
				if rl.TryAcquire() {
					admitted++
				}
			}
			return admitted == limit && rl.Count() == int64(limit)
		},
		gen.IntRange(1, 200),
		gen.IntRange(1, 50),
	))

	properties.Property("a reset restores full capacity", prop.ForAll(
		func(limit int, used int) bool {
			rl, err := NewRateLimiter(RateLimiterConfig{
				MaxPerMinute: int64(limit),
				ResetSpec:    yearlyResetSpec,
			}, log.DefaultLogger)
			if err != nil {
				return false
			}
			defer rl.Stop()

			for i := 0; i < used; i++ {
				rl.TryAcquire()
			}
			rl.Reset()

			for i := 0; i < limit; i++ {
				if !rl.TryAcquire() {
					return false
				}
			}
			return !rl.TryAcquire()
		},
		gen.IntRange(1, 100),
		gen.IntRange(0, 150),
	))

	properties.TestingRun(t)
}
