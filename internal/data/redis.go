package data

import (
	"context"
	"time"

	"CrateScout/internal/conf"
	pkglog "CrateScout/pkg/log"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/redis/go-redis/v9"
)

const (
	redisPoolSize     = 32
	redisMinIdleConns = 4
	redisDialTimeout  = 3 * time.Second
)

// NewRedisClient connects the ownership verdict cache.
// Without an address the client is nil and verdicts are not cached. An unreachable
// server is only logged: go-redis reconnects lazily and lookups fall back to Discogs.
func NewRedisClient(c *conf.Data, logger log.Logger) (*redis.Client, func(), error) {
	helper := pkglog.NewLogHelper(log.With(logger, "module", "data/redis"))

	if c == nil || c.Redis == nil || c.Redis.Addr == "" {
		helper.Warnw("msg", "redis address is empty, ownership cache disabled")
		return nil, func() {}, nil
	}

	opts := &redis.Options{
		Network:         c.Redis.Network,
		Addr:            c.Redis.Addr,
		PoolSize:        redisPoolSize,
		MinIdleConns:    redisMinIdleConns,
		DialTimeout:     redisDialTimeout,
		ReadTimeout:     c.Redis.ReadTimeout,
		WriteTimeout:    c.Redis.WriteTimeout,
		ConnMaxIdleTime: 5 * time.Minute,
	}
	if opts.Network == "" {
		opts.Network = "tcp"
	}
	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), redisDialTimeout)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		helper.Warnw("msg", "redis unreachable, ownership lookups will go to Discogs until it recovers",
			"addr", c.Redis.Addr,
			"error", err)
	} else {
		helper.Cache("redis connected", "addr", c.Redis.Addr, "pool_size", redisPoolSize)
	}

	cleanup := func() {
		if err := rdb.Close(); err != nil {
			helper.Errorw("msg", "failed to close redis client", "error", err)
			return
		}
		helper.Cache("redis client closed", "addr", c.Redis.Addr)
	}

	return rdb, cleanup, nil
}
