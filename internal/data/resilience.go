package data

import (
	"context"
	"sync"
	"time"

	"CrateScout/internal/conf"
	"CrateScout/internal/model"
	pkglog "CrateScout/pkg/log"
	"CrateScout/pkg/metrics"
	"CrateScout/pkg/resilience"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// DiscogsBreakerName labels the breaker guarding every Discogs call.
const DiscogsBreakerName = "discogs"

// circuitNotifier receives circuit breaker open and recovery events
type circuitNotifier interface {
	NotifyCircuitBroken(ctx context.Context, event *model.CircuitBrokenEvent) error
	NotifyCircuitRecovered(ctx context.Context, event *model.CircuitRecoveredEvent) error
}

// NewPrometheusRegistry creates the registry served on /metrics.
func NewPrometheusRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return registry
}

// NewMetrics registers the resilience collectors, reporting the limiter's window count.
func NewMetrics(registry *prometheus.Registry, limiter *resilience.RateLimiter) *metrics.Metrics {
	return metrics.NewMetrics(registry, func() float64 {
		return float64(limiter.Count())
	})
}

// NewRateLimiter creates the process-wide Discogs rate limiter. The cleanup stops its
// reset schedule and waits for a running reset to finish.
func NewRateLimiter(c *conf.Resilience, logger log.Logger) (*resilience.RateLimiter, func(), error) {
	rl, err := resilience.NewRateLimiter(resilience.RateLimiterConfig{
		MaxPerMinute: c.RateLimitPerMinute,
		ResetSpec:    c.RateLimitResetSpec,
	}, logger)
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {
		<-rl.Stop().Done()
	}

	return rl, cleanup, nil
}

// NewCircuitBreaker creates the process-wide Discogs circuit breaker. Transitions are
// exported as metrics and forwarded to the webhook service and the audit log.
func NewCircuitBreaker(c *conf.Resilience, m *metrics.Metrics, webhook *CircuitWebhook, audit *CircuitAuditLogger, logger log.Logger) *resilience.CircuitBreaker {
	tracker := &circuitEventTracker{
		notifiers: []circuitNotifier{webhook, audit},
		metrics:   m,
		now:       time.Now,
		log:       log.NewHelper(log.With(logger, "module", "data/circuit_events")),
	}

	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name:                 DiscogsBreakerName,
		FailureThreshold:     c.FailureThreshold,
		OpenTimeout:          c.OpenTimeout,
		HalfOpenMaxSuccesses: c.HalfOpenMaxSuccesses,
		OnStateChange:        tracker.onStateChange,
	}, logger)

	m.InitBreaker(DiscogsBreakerName, cb.State())
	return cb
}

// NewFutureAggregator creates the aggregator shared by the ownership and price fan-outs.
func NewFutureAggregator(c *conf.Resilience, m *metrics.Metrics, logger log.Logger) *resilience.FutureAggregator {
	return resilience.NewFutureAggregator(resilience.AggregatorConfig{
		Timeout:   c.AggregateTimeout,
		OnOutcome: m.AggregatorOutcome,
	}, logger)
}

// NewGuard combines the limiter and breaker, counting and logging limiter rejections.
func NewGuard(limiter *resilience.RateLimiter, breaker *resilience.CircuitBreaker, m *metrics.Metrics, logger log.Logger) *resilience.Guard {
	helper := pkglog.NewLogHelper(log.With(logger, "module", "data/guard"))

	g := resilience.NewGuard(limiter, breaker)
	g.OnRejected = func() {
		m.RateLimited()
		helper.RateLimit("discogs call rejected, window exhausted",
			"in_use", limiter.Count(),
			"max_per_minute", limiter.Max())
	}
	return g
}

// circuitEventTracker turns breaker transitions into metrics and notifier events.
// It remembers when the circuit last opened to report recovery time.
type circuitEventTracker struct {
	notifiers []circuitNotifier
	metrics   *metrics.Metrics
	now       func() time.Time
	log       *log.Helper

	mu       sync.Mutex
	openedAt time.Time
	probes   int
}

func (t *circuitEventTracker) onStateChange(name string, from, to resilience.State, snap resilience.CircuitSnapshot) {
	t.metrics.BreakerStateChanged(name, from, to)

	ctx := context.Background()

	switch to {
	case resilience.StateOpen:
		t.mu.Lock()
		firstOpen := from == resilience.StateClosed
		if firstOpen {
			t.openedAt = t.now()
			t.probes = 0
		}
		t.mu.Unlock()

		if firstOpen {
			event := &model.CircuitBrokenEvent{
				Breaker:      name,
				FailureCount: snap.FailureCount,
				BrokenAt:     snap.LastFailure,
			}
			for _, n := range t.notifiers {
				if err := n.NotifyCircuitBroken(ctx, event); err != nil {
					t.log.Debugw("msg", "circuit notifier failed", "event", model.EventCircuitBroken, "error", err)
				}
			}
		}

	case resilience.StateHalfOpen:
		t.mu.Lock()
		t.probes++
		t.mu.Unlock()

	case resilience.StateClosed:
		if from != resilience.StateHalfOpen {
			return
		}
		t.mu.Lock()
		event := &model.CircuitRecoveredEvent{
			Breaker:    name,
			ProbeCount: t.probes,
		}
		if !t.openedAt.IsZero() {
			event.RecoverTime = t.now().Sub(t.openedAt)
		}
		t.openedAt = time.Time{}
		t.probes = 0
		t.mu.Unlock()

		for _, n := range t.notifiers {
			if err := n.NotifyCircuitRecovered(ctx, event); err != nil {
				t.log.Debugw("msg", "circuit notifier failed", "event", model.EventCircuitRecovered, "error", err)
			}
		}
	}
}
