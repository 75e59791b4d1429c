package conf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	configPath := filepath.Join(t.TempDir(), "config.yaml")
	err := os.WriteFile(configPath, []byte(content), 0644)
	require.NoError(t, err)

	return configPath
}

func TestNewBootstrap_Defaults(t *testing.T) {
	configPath := writeConfig(t, `server:
  http:
    addr: :8080
data:
  redis:
    addr: 127.0.0.1:6379
`)
	t.Setenv("DISCOGS_TOKEN", "test-discogs-token")

	bc, err := NewBootstrap(configPath)
	require.NoError(t, err)
	require.NotNil(t, bc)

	// Server defaults
	assert.Equal(t, ":8080", bc.Server.HTTP.Addr)
	assert.Equal(t, "tcp", bc.Server.HTTP.Network)
	assert.Equal(t, 60*time.Second, bc.Server.HTTP.Timeout)
	assert.Equal(t, ":9000", bc.Server.GRPC.Addr)

	// Data defaults
	assert.Equal(t, "mysql", bc.Data.Database.Driver)
	assert.Empty(t, bc.Data.Database.Source)
	assert.Equal(t, 10, bc.Data.Database.MaxOpenConns)
	assert.Equal(t, 5, bc.Data.Database.MaxIdleConns)
	assert.Equal(t, time.Hour, bc.Data.Database.ConnMaxLifetime)
	assert.Equal(t, 200*time.Millisecond, bc.Data.Database.SlowQueryThreshold)
	assert.Equal(t, "127.0.0.1:6379", bc.Data.Redis.Addr)
	assert.Equal(t, 200*time.Millisecond, bc.Data.Redis.ReadTimeout)
	assert.Equal(t, 10*time.Minute, bc.Data.OwnershipCacheTTL)
	assert.Equal(t, 30*24*time.Hour, bc.Data.SnapshotRetention)
	assert.Equal(t, "0 30 3 * * *", bc.Data.SnapshotPruneSpec)

	// Discogs
	assert.Equal(t, "https://api.discogs.com", bc.Discogs.BaseURL)
	assert.Equal(t, "test-discogs-token", bc.Discogs.Token)
	assert.Equal(t, "CrateScout/1.0", bc.Discogs.UserAgent)
	assert.Equal(t, "USD", bc.Discogs.Currency)
	assert.Equal(t, 15*time.Second, bc.Discogs.Timeout)

	// Resilience
	assert.Equal(t, int64(60), bc.Resilience.RateLimitPerMinute)
	assert.Equal(t, "0 * * * * *", bc.Resilience.RateLimitResetSpec)
	assert.Equal(t, 5, bc.Resilience.FailureThreshold)
	assert.Equal(t, 60*time.Second, bc.Resilience.OpenTimeout)
	assert.Equal(t, 3, bc.Resilience.HalfOpenMaxSuccesses)
	assert.Equal(t, 50*time.Second, bc.Resilience.AggregateTimeout)
	assert.Empty(t, bc.Resilience.CircuitWebhookURL)
	assert.Equal(t, 5*time.Second, bc.Resilience.WebhookTimeout)

	// Features
	assert.True(t, bc.Features.SearchCollectionEnabled)
	assert.Equal(t, 1024, bc.Features.PriceCacheSize)

	// Log
	assert.Equal(t, "info", bc.Log.Level)
	assert.Equal(t, "json", bc.Log.Format)
	assert.Equal(t, 100, bc.Log.MaxSizeMB)
	assert.Equal(t, 7, bc.Log.MaxBackups)
	assert.Equal(t, 7, bc.Log.MaxAgeDays)
}

func TestNewBootstrap_FileValues(t *testing.T) {
	configPath := writeConfig(t, `resilience:
  rate_limit_per_minute: 25
  failure_threshold: 2
  open_timeout: 1500ms
  half_open_max_successes: 1
  aggregate_timeout: 5s
features:
  search_collection_enabled: false
`)

	bc, err := NewBootstrap(configPath)
	require.NoError(t, err)

	assert.Equal(t, int64(25), bc.Resilience.RateLimitPerMinute)
	assert.Equal(t, 2, bc.Resilience.FailureThreshold)
	assert.Equal(t, 1500*time.Millisecond, bc.Resilience.OpenTimeout)
	assert.Equal(t, 1, bc.Resilience.HalfOpenMaxSuccesses)
	assert.Equal(t, 5*time.Second, bc.Resilience.AggregateTimeout)
	assert.False(t, bc.Features.SearchCollectionEnabled)
}

func TestNewBootstrap_EnvOverrides(t *testing.T) {
	tests := []struct {
		name        string
		envVars     map[string]string
		expectedVal func(*Bootstrap) bool
		description string
	}{
		{
			name:    "override_http_addr",
			envVars: map[string]string{"CRATESCOUT_SERVER_HTTP_ADDR": ":9999"},
			expectedVal: func(bc *Bootstrap) bool {
				return bc.Server.HTTP.Addr == ":9999"
			},
			description: "CRATESCOUT_SERVER_HTTP_ADDR should override default :8080",
		},
		{
			name:    "override_rate_limit",
			envVars: map[string]string{"CRATESCOUT_RESILIENCE_RATE_LIMIT_PER_MINUTE": "120"},
			expectedVal: func(bc *Bootstrap) bool {
				return bc.Resilience.RateLimitPerMinute == 120
			},
			description: "CRATESCOUT_RESILIENCE_RATE_LIMIT_PER_MINUTE should override default 60",
		},
		{
			name:    "disable_collection_search",
			envVars: map[string]string{"CRATESCOUT_FEATURES_SEARCH_COLLECTION_ENABLED": "false"},
			expectedVal: func(bc *Bootstrap) bool {
				return !bc.Features.SearchCollectionEnabled
			},
			description: "feature flag should be switchable from the environment",
		},
		{
			name:    "mysql_dsn_alias",
			envVars: map[string]string{"MYSQL_DSN": "user:pass@tcp(localhost:3306)/crates"},
			expectedVal: func(bc *Bootstrap) bool {
				return bc.Data.Database.Source == "user:pass@tcp(localhost:3306)/crates"
			},
			description: "MYSQL_DSN should populate data.database.source",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := writeConfig(t, `server:
  http:
    addr: :8080
`)
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			bc, err := NewBootstrap(configPath)
			require.NoError(t, err, tt.description)
			require.NotNil(t, bc)

			assert.True(t, tt.expectedVal(bc), tt.description)
		})
	}
}

func TestNewBootstrap_InvalidValues(t *testing.T) {
	tests := []struct {
		name          string
		config        string
		expectedError string
	}{
		{
			name:          "zero_rate_limit",
			config:        "resilience:\n  rate_limit_per_minute: 0\n",
			expectedError: "resilience.rate_limit_per_minute",
		},
		{
			name:          "negative_failure_threshold",
			config:        "resilience:\n  failure_threshold: -1\n",
			expectedError: "resilience.failure_threshold",
		},
		{
			name:          "zero_aggregate_timeout",
			config:        "resilience:\n  aggregate_timeout: 0s\n",
			expectedError: "resilience.aggregate_timeout",
		},
		{
			name:          "empty_base_url",
			config:        "discogs:\n  base_url: \"\"\n",
			expectedError: "discogs.base_url",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := writeConfig(t, tt.config)

			bc, err := NewBootstrap(configPath)
			require.Error(t, err)
			assert.Nil(t, bc)
			assert.Contains(t, err.Error(), "invalid configuration fields")
			assert.Contains(t, err.Error(), tt.expectedError)
		})
	}
}

func TestNewBootstrap_ConfigFileNotFound(t *testing.T) {
	bc, err := NewBootstrap("/non/existent/config.yaml")
	assert.Error(t, err)
	assert.Nil(t, bc)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestNewBootstrap_EmptyConfigPath(t *testing.T) {
	bc, err := NewBootstrap("")
	require.NoError(t, err)
	require.NotNil(t, bc)

	assert.Equal(t, ":8080", bc.Server.HTTP.Addr)
	assert.Equal(t, ":9000", bc.Server.GRPC.Addr)
	assert.Equal(t, int64(60), bc.Resilience.RateLimitPerMinute)
}

func TestNewBootstrap_PriorityOrder(t *testing.T) {
	configPath := writeConfig(t, `server:
  http:
    addr: :7777
`)
	t.Setenv("CRATESCOUT_SERVER_HTTP_ADDR", ":8888")

	bc, err := NewBootstrap(configPath)
	require.NoError(t, err)

	assert.Equal(t, ":8888", bc.Server.HTTP.Addr, "Environment variable should override config file")
}

func TestValidate_AllFieldsPresent(t *testing.T) {
	bc := &Bootstrap{
		Discogs: &Discogs{BaseURL: "https://api.discogs.com"},
		Resilience: &Resilience{
			RateLimitPerMinute:   60,
			FailureThreshold:     5,
			OpenTimeout:          time.Minute,
			HalfOpenMaxSuccesses: 3,
			AggregateTimeout:     50 * time.Second,
		},
	}

	assert.NoError(t, Validate(bc))
}

func TestValidate_EmptyBootstrap(t *testing.T) {
	err := Validate(&Bootstrap{})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "discogs.base_url")
	assert.Contains(t, err.Error(), "resilience")
}
