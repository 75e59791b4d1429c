package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// cacheNamespace prefixes every key CrateScout writes so the Redis can be shared.
const cacheNamespace = "cratescout"

// CacheKeyOwnership is the prefix for ownership verdicts: cratescout:ownership:{username}:{release_id}
const CacheKeyOwnership = "ownership"

// TTLOwnership is the default TTL for ownership verdicts
const TTLOwnership = 10 * time.Minute

// errCacheUnavailable is returned by every operation when Redis is not configured
var errCacheUnavailable = errors.New("cache: redis client is nil")

// CacheClient stores JSON values in Redis. Batch calls use a single round trip.
type CacheClient interface {
	// GetMany returns the raw JSON of every key that exists. Missing keys are absent from the map.
	GetMany(ctx context.Context, keys []string) (map[string][]byte, error)

	// Set stores value as JSON with ttl.
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	// SetMany stores every entry with the same ttl in one pipeline.
	SetMany(ctx context.Context, entries map[string]interface{}, ttl time.Duration) error
}

type redisCache struct {
	client *redis.Client
}

// NewCacheClient wraps rdb. A nil rdb gives a client whose every call fails.
func NewCacheClient(rdb *redis.Client) CacheClient {
	return &redisCache{client: rdb}
}

func (c *redisCache) GetMany(ctx context.Context, keys []string) (map[string][]byte, error) {
	if c.client == nil {
		return nil, errCacheUnavailable
	}

	found := make(map[string][]byte, len(keys))
	if len(keys) == 0 {
		return found, nil
	}

	vals, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("cache: mget %d keys: %w", len(keys), err)
	}

	for i, v := range vals {
		// MGET yields nil for missing keys and string for present ones
		if s, ok := v.(string); ok {
			found[keys[i]] = []byte(s)
		}
	}
	return found, nil
}

func (c *redisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return c.SetMany(ctx, map[string]interface{}{key: value}, ttl)
}

func (c *redisCache) SetMany(ctx context.Context, entries map[string]interface{}, ttl time.Duration) error {
	if c.client == nil {
		return errCacheUnavailable
	}
	if len(entries) == 0 {
		return nil
	}

	pipe := c.client.Pipeline()
	for key, value := range entries {
		raw, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("cache: encode %s: %w", key, err)
		}
		pipe.Set(ctx, key, raw, ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache: write %d keys: %w", len(entries), err)
	}
	return nil
}

// BuildCacheKey namespaces prefix and parts with ":".
//
//	BuildCacheKey(CacheKeyOwnership, "alice", "101") -> "cratescout:ownership:alice:101"
func BuildCacheKey(prefix string, parts ...string) string {
	return strings.Join(append([]string{cacheNamespace, prefix}, parts...), ":")
}
