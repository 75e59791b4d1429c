package biz

import (
	"time"

	"CrateScout/internal/conf"
	"CrateScout/pkg/resilience"
)

// BreakerStatus describes the Discogs circuit breaker.
type BreakerStatus struct {
	Name         string     `json:"name"`
	State        string     `json:"state"`
	FailureCount int        `json:"failure_count"`
	SuccessCount int        `json:"success_count"`
	LastFailure  *time.Time `json:"last_failure,omitempty"`
}

// LimiterStatus describes the current rate limiter window.
type LimiterStatus struct {
	InUse     int64 `json:"in_use"`
	MaxPerMin int64 `json:"max_per_minute"`
}

// ResilienceStatus is the operator view of the guards in front of Discogs.
type ResilienceStatus struct {
	Breaker                 BreakerStatus `json:"circuit_breaker"`
	Limiter                 LimiterStatus `json:"rate_limiter"`
	AggregateTimeout        string        `json:"aggregate_timeout"`
	SearchCollectionEnabled bool          `json:"search_collection_enabled"`
}

// StatusUsecase reports the live state of the resilience layer.
type StatusUsecase struct {
	limiter    *resilience.RateLimiter
	breaker    *resilience.CircuitBreaker
	aggregator *resilience.FutureAggregator
	features   *conf.Features
}

// NewStatusUsecase creates a new status usecase.
func NewStatusUsecase(limiter *resilience.RateLimiter, breaker *resilience.CircuitBreaker, aggregator *resilience.FutureAggregator, features *conf.Features) *StatusUsecase {
	return &StatusUsecase{
		limiter:    limiter,
		breaker:    breaker,
		aggregator: aggregator,
		features:   features,
	}
}

// Status returns a point-in-time view. An expired open circuit still reads open
// until the next call probes it.
func (uc *StatusUsecase) Status() *ResilienceStatus {
	snap := uc.breaker.Snapshot()

	status := &ResilienceStatus{
		Breaker: BreakerStatus{
			Name:         uc.breaker.Name(),
			State:        snap.State.String(),
			FailureCount: snap.FailureCount,
			SuccessCount: snap.SuccessCount,
		},
		Limiter: LimiterStatus{
			InUse:     uc.limiter.Count(),
			MaxPerMin: uc.limiter.Max(),
		},
		AggregateTimeout:        uc.aggregator.Timeout().String(),
		SearchCollectionEnabled: uc.features != nil && uc.features.SearchCollectionEnabled,
	}

	if !snap.LastFailure.IsZero() {
		lastFailure := snap.LastFailure
		status.Breaker.LastFailure = &lastFailure
	}

	return status
}
