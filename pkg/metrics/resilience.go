// Package metrics exposes Prometheus collectors for the Discogs protection layer.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"CrateScout/pkg/resilience"
)

const namespace = "cratescout"

// Metrics holds Prometheus metrics for the rate limiter, circuit breaker,
// aggregator and ownership filter.
type Metrics struct {
	breakerState       *prometheus.GaugeVec
	breakerTransitions *prometheus.CounterVec
	limiterRejected    prometheus.Counter
	limiterInUse       prometheus.GaugeFunc
	aggregatorOutcomes *prometheus.CounterVec
	ownershipChecks    *prometheus.CounterVec
	priceCacheLookups  *prometheus.CounterVec
}

// Ownership check results.
const (
	OwnershipOwned    = "owned"
	OwnershipNotOwned = "not_owned"
	OwnershipError    = "error"
)

// NewMetrics creates and registers the collectors. A nil registry leaves them unregistered.
// inUse, when non-nil, reports the current fixed-window count of the rate limiter.
func NewMetrics(registry prometheus.Registerer, inUse func() float64) *Metrics {
	m := &Metrics{
		breakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_state",
				Help:      "Current state of the circuit breaker (0=closed, 1=open, 2=half-open)",
			},
			[]string{"name"},
		),
		breakerTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_transitions_total",
				Help:      "Total number of circuit breaker state transitions",
			},
			[]string{"name", "from", "to"},
		),
		limiterRejected: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limiter_rejected_total",
				Help:      "Total number of calls rejected by the per-minute rate limiter",
			},
		),
		aggregatorOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "aggregator_outcomes_total",
				Help:      "Total number of collected futures by outcome",
			},
			[]string{"outcome"},
		),
		ownershipChecks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ownership_checks_total",
				Help:      "Total number of release ownership checks by result",
			},
			[]string{"result"},
		),
		priceCacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "price_cache_lookups_total",
				Help:      "Total number of price cache lookups by result",
			},
			[]string{"result"},
		),
	}

	collectors := []prometheus.Collector{
		m.breakerState,
		m.breakerTransitions,
		m.limiterRejected,
		m.aggregatorOutcomes,
		m.ownershipChecks,
		m.priceCacheLookups,
	}

	if inUse != nil {
		m.limiterInUse = prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "rate_limiter_in_use",
				Help:      "Calls admitted in the current rate limiter window",
			},
			inUse,
		)
		collectors = append(collectors, m.limiterInUse)
	}

	if registry != nil {
		registry.MustRegister(collectors...)
	}

	return m
}

// BreakerStateChanged records a circuit breaker transition.
func (m *Metrics) BreakerStateChanged(name string, from, to resilience.State) {
	m.breakerState.WithLabelValues(name).Set(float64(to))
	m.breakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
}

// InitBreaker publishes the initial state so the gauge exists before the first transition.
func (m *Metrics) InitBreaker(name string, state resilience.State) {
	m.breakerState.WithLabelValues(name).Set(float64(state))
}

// RateLimited records a limiter rejection.
func (m *Metrics) RateLimited() {
	m.limiterRejected.Inc()
}

// AggregatorOutcome records the outcome of one collected future.
func (m *Metrics) AggregatorOutcome(kind resilience.OutcomeKind) {
	m.aggregatorOutcomes.WithLabelValues(kind.String()).Inc()
}

// OwnershipChecked records one ownership verdict.
func (m *Metrics) OwnershipChecked(result string) {
	m.ownershipChecks.WithLabelValues(result).Inc()
}

// PriceCacheLookup records a price cache hit or miss.
func (m *Metrics) PriceCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.priceCacheLookups.WithLabelValues(result).Inc()
}
