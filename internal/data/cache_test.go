package data

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestCache(t *testing.T) (CacheClient, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return NewCacheClient(rdb), mr
}

func TestCache_SetAndGetMany(t *testing.T) {
	cache, mr := setupTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "a", map[string]bool{"owned": true}, time.Minute))
	require.NoError(t, cache.SetMany(ctx, map[string]interface{}{
		"b": map[string]bool{"owned": false},
		"c": 3,
	}, 30*time.Second))

	assert.Equal(t, time.Minute, mr.TTL("a"))
	assert.Equal(t, 30*time.Second, mr.TTL("b"))

	got, err := cache.GetMany(ctx, []string{"a", "missing", "c"})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.JSONEq(t, `{"owned":true}`, string(got["a"]))
	assert.Equal(t, "3", string(got["c"]))
	assert.NotContains(t, got, "missing")
}

func TestCache_Expiry(t *testing.T) {
	cache, mr := setupTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "k", 1, 5*time.Second))
	mr.FastForward(6 * time.Second)

	got, err := cache.GetMany(ctx, []string{"k"})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCache_EmptyBatches(t *testing.T) {
	cache, _ := setupTestCache(t)
	ctx := context.Background()

	got, err := cache.GetMany(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NoError(t, cache.SetMany(ctx, nil, time.Minute))
}

func TestCache_UnencodableValue(t *testing.T) {
	cache, mr := setupTestCache(t)

	err := cache.Set(context.Background(), "ch", make(chan int), time.Minute)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cache: encode ch")
	assert.False(t, mr.Exists("ch"))
}

func TestCache_NilClient(t *testing.T) {
	cache := NewCacheClient(nil)
	ctx := context.Background()

	_, err := cache.GetMany(ctx, []string{"k"})
	assert.ErrorIs(t, err, errCacheUnavailable)
	assert.ErrorIs(t, cache.Set(ctx, "k", 1, time.Minute), errCacheUnavailable)
}

func TestCache_RedisDown(t *testing.T) {
	cache, mr := setupTestCache(t)
	mr.Close()

	_, err := cache.GetMany(context.Background(), []string{"k"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cache: mget 1 keys")
}

func TestBuildCacheKey(t *testing.T) {
	assert.Equal(t, "cratescout:ownership", BuildCacheKey(CacheKeyOwnership))
	assert.Equal(t, "cratescout:ownership:alice:101", BuildCacheKey(CacheKeyOwnership, "alice", "101"))
}
