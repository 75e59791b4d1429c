// Package data provides data access layer implementations.
// It wraps the Discogs client, the Redis ownership cache and MySQL price snapshots.
package data

import (
	"CrateScout/internal/conf"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"
	"github.com/redis/go-redis/v9"
)

// ProviderSet is data providers.
var ProviderSet = wire.NewSet(
	NewData,
	NewRedisClient,
	NewCacheClient,
	NewMySQLClient,
	NewDiscogsClient,
	NewPrometheusRegistry,
	NewMetrics,
	NewRateLimiter,
	NewCircuitAuditLogger,
	NewCircuitBreaker,
	NewFutureAggregator,
	NewGuard,
)

// Data contains the shared data layer dependencies.
type Data struct {
	cache        CacheClient
	cacheEnabled bool
}

// NewData creates a new Data instance.
// A missing Redis does not prevent startup; ownership verdicts are then never cached.
func NewData(_ *conf.Data, logger log.Logger, rdb *redis.Client, cache CacheClient) (*Data, func(), error) {
	helper := log.NewHelper(log.With(logger, "module", "data"))

	if rdb == nil {
		helper.Warn("Redis client is nil, ownership verdicts will not be cached")
	}

	d := &Data{
		cache:        cache,
		cacheEnabled: rdb != nil,
	}

	cleanup := func() {
		helper.Info("closing the data resources")
	}

	return d, cleanup, nil
}

// GetCache returns the cache client for repository use.
func (d *Data) GetCache() CacheClient {
	return d.cache
}

// CacheEnabled reports whether a Redis client backs the cache.
func (d *Data) CacheEnabled() bool {
	return d.cacheEnabled
}
