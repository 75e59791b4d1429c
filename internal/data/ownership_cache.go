package data

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"CrateScout/internal/conf"
	"CrateScout/internal/model"
)

// ownershipEntry is the cached verdict for one (username, release) pair
type ownershipEntry struct {
	Owned     bool      `json:"owned"`
	CheckedAt time.Time `json:"checked_at"`
}

// OwnershipCache stores ownership verdicts in Redis so repeated searches do not
// spend rate limiter slots on releases already checked.
// Without Redis every lookup misses and writes are dropped.
type OwnershipCache struct {
	cache   CacheClient
	enabled bool
	ttl     time.Duration
	now     func() time.Time
}

// NewOwnershipCache creates an OwnershipCache using the configured TTL.
func NewOwnershipCache(d *Data, c *conf.Data) *OwnershipCache {
	ttl := TTLOwnership
	if c != nil && c.OwnershipCacheTTL > 0 {
		ttl = c.OwnershipCacheTTL
	}

	return &OwnershipCache{
		cache:   d.GetCache(),
		enabled: d.CacheEnabled(),
		ttl:     ttl,
		now:     time.Now,
	}
}

// LookupOwnership returns the cached verdicts for username's releases in one round trip.
// Releases without a verdict, or with an unreadable one, are absent from the map.
func (c *OwnershipCache) LookupOwnership(ctx context.Context, username string, releaseIDs []int64) (map[int64]bool, error) {
	if !c.enabled || len(releaseIDs) == 0 {
		return map[int64]bool{}, nil
	}

	keys := make([]string, len(releaseIDs))
	for i, id := range releaseIDs {
		keys[i] = ownershipKey(username, id)
	}

	raw, err := c.cache.GetMany(ctx, keys)
	if err != nil {
		return nil, err
	}

	verdicts := make(map[int64]bool, len(raw))
	for i, key := range keys {
		b, ok := raw[key]
		if !ok {
			continue
		}
		var entry ownershipEntry
		if json.Unmarshal(b, &entry) != nil {
			continue
		}
		verdicts[releaseIDs[i]] = entry.Owned
	}
	return verdicts, nil
}

// SetOwnership caches a verdict.
func (c *OwnershipCache) SetOwnership(ctx context.Context, q model.OwnershipQuery, owned bool) error {
	if !c.enabled {
		return nil
	}
	return c.cache.Set(ctx, ownershipKey(q.Username, q.ReleaseID), ownershipEntry{Owned: owned, CheckedAt: c.now()}, c.ttl)
}

// Discogs usernames are case-insensitive
func ownershipKey(username string, releaseID int64) string {
	return BuildCacheKey(CacheKeyOwnership, strings.ToLower(username), strconv.FormatInt(releaseID, 10))
}
