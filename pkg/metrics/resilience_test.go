package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CrateScout/pkg/resilience"
)

func TestMetrics_BreakerStateChanged(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry, nil)

	m.InitBreaker("discogs", resilience.StateClosed)
	assert.Equal(t, float64(0), testutil.ToFloat64(m.breakerState.WithLabelValues("discogs")))

	m.BreakerStateChanged("discogs", resilience.StateClosed, resilience.StateOpen)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.breakerState.WithLabelValues("discogs")))

	m.BreakerStateChanged("discogs", resilience.StateOpen, resilience.StateHalfOpen)
	assert.Equal(t, float64(2), testutil.ToFloat64(m.breakerState.WithLabelValues("discogs")))

	assert.Equal(t, float64(1), testutil.ToFloat64(
		m.breakerTransitions.WithLabelValues("discogs", "closed", "open")))
	assert.Equal(t, float64(1), testutil.ToFloat64(
		m.breakerTransitions.WithLabelValues("discogs", "open", "half-open")))
}

func TestMetrics_Counters(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry, nil)

	m.RateLimited()
	m.RateLimited()
	m.AggregatorOutcome(resilience.OutcomeCompleted)
	m.AggregatorOutcome(resilience.OutcomeTimedOut)
	m.AggregatorOutcome(resilience.OutcomeTimedOut)
	m.OwnershipChecked(OwnershipOwned)
	m.OwnershipChecked(OwnershipError)
	m.PriceCacheLookup(true)
	m.PriceCacheLookup(false)
	m.PriceCacheLookup(false)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.limiterRejected))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.aggregatorOutcomes.WithLabelValues("completed")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.aggregatorOutcomes.WithLabelValues("timed_out")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ownershipChecks.WithLabelValues(OwnershipOwned)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ownershipChecks.WithLabelValues(OwnershipError)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.priceCacheLookups.WithLabelValues("hit")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.priceCacheLookups.WithLabelValues("miss")))
}

func TestMetrics_LimiterInUse(t *testing.T) {
	registry := prometheus.NewRegistry()
	inUse := 7.0
	NewMetrics(registry, func() float64 { return inUse })

	expected := `
# HELP cratescout_rate_limiter_in_use Calls admitted in the current rate limiter window
# TYPE cratescout_rate_limiter_in_use gauge
cratescout_rate_limiter_in_use 7
`
	err := testutil.GatherAndCompare(registry, strings.NewReader(expected), "cratescout_rate_limiter_in_use")
	require.NoError(t, err)
}

func TestMetrics_NilRegistry(t *testing.T) {
	m := NewMetrics(nil, nil)
	require.NotNil(t, m)

	assert.NotPanics(t, func() {
		m.RateLimited()
		m.BreakerStateChanged("discogs", resilience.StateClosed, resilience.StateOpen)
	})
}

func TestMetrics_DuplicateRegistrationPanics(t *testing.T) {
	registry := prometheus.NewRegistry()
	NewMetrics(registry, nil)

	assert.Panics(t, func() { NewMetrics(registry, nil) })
}
