package data

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewData(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	tests := []struct {
		name        string
		rdb         *redis.Client
		wantEnabled bool
	}{
		{name: "with_redis", rdb: rdb, wantEnabled: true},
		{name: "without_redis", rdb: nil, wantEnabled: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cache := NewCacheClient(tt.rdb)

			d, cleanup, err := NewData(nil, log.DefaultLogger, tt.rdb, cache)
			require.NoError(t, err)
			defer cleanup()

			assert.Equal(t, tt.wantEnabled, d.CacheEnabled())
			assert.Equal(t, cache, d.GetCache())
		})
	}
}
