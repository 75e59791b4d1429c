// Package conf provides configuration management using Viper.
// It supports loading configuration from YAML files and environment variables,
// with CLI flag overrides.
package conf

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// NewBootstrap creates and initializes a Bootstrap configuration.
// It loads configuration from the specified config file path, applies defaults,
// and allows overrides from environment variables prefixed with CRATESCOUT_.
//
// Configuration priority: Environment variables > Config file > Defaults
//
// Well-known environment variables:
//   - DISCOGS_TOKEN or CRATESCOUT_DISCOGS_TOKEN: Discogs personal access token
//   - MYSQL_DSN or CRATESCOUT_DATA_DATABASE_SOURCE: MySQL connection string (optional)
//
// Parameters:
//   - configPath: Path to the configuration file, empty for defaults + env only
//
// Returns:
//   - *Bootstrap: Loaded configuration
//   - error: Configuration loading or validation error
func NewBootstrap(configPath string) (*Bootstrap, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("CRATESCOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("data.database.source", "MYSQL_DSN", "CRATESCOUT_DATA_DATABASE_SOURCE")
	_ = v.BindEnv("discogs.token", "DISCOGS_TOKEN", "CRATESCOUT_DISCOGS_TOKEN")

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
	}

	bc := &Bootstrap{
		Server: &Server{
			HTTP: &HTTPServer{
				Network: v.GetString("server.http.network"),
				Addr:    v.GetString("server.http.addr"),
				Timeout: v.GetDuration("server.http.timeout"),
			},
			GRPC: &GRPCServer{
				Network: v.GetString("server.grpc.network"),
				Addr:    v.GetString("server.grpc.addr"),
				Timeout: v.GetDuration("server.grpc.timeout"),
			},
		},
		Data: &Data{
			Database: &Database{
				Driver:             v.GetString("data.database.driver"),
				Source:             v.GetString("data.database.source"),
				MaxOpenConns:       v.GetInt("data.database.max_open_conns"),
				MaxIdleConns:       v.GetInt("data.database.max_idle_conns"),
				ConnMaxLifetime:    v.GetDuration("data.database.conn_max_lifetime"),
				SlowQueryThreshold: v.GetDuration("data.database.slow_query_threshold"),
			},
			Redis: &Redis{
				Network:      v.GetString("data.redis.network"),
				Addr:         v.GetString("data.redis.addr"),
				ReadTimeout:  v.GetDuration("data.redis.read_timeout"),
				WriteTimeout: v.GetDuration("data.redis.write_timeout"),
			},
			OwnershipCacheTTL: v.GetDuration("data.ownership_cache_ttl"),
			SnapshotRetention: v.GetDuration("data.snapshot_retention"),
			SnapshotPruneSpec: v.GetString("data.snapshot_prune_spec"),
		},
		Discogs: &Discogs{
			BaseURL:           v.GetString("discogs.base_url"),
			Token:             v.GetString("discogs.token"),
			UserAgent:         v.GetString("discogs.user_agent"),
			ProxyURL:          v.GetString("discogs.proxy_url"),
			Currency:          v.GetString("discogs.currency"),
			Timeout:           v.GetDuration("discogs.timeout"),
			RequestsPerSecond: v.GetFloat64("discogs.requests_per_second"),
			Burst:             v.GetInt("discogs.burst"),
		},
		Resilience: &Resilience{
			RateLimitPerMinute:   v.GetInt64("resilience.rate_limit_per_minute"),
			RateLimitResetSpec:   v.GetString("resilience.rate_limit_reset_spec"),
			FailureThreshold:     v.GetInt("resilience.failure_threshold"),
			OpenTimeout:          v.GetDuration("resilience.open_timeout"),
			HalfOpenMaxSuccesses: v.GetInt("resilience.half_open_max_successes"),
			AggregateTimeout:     v.GetDuration("resilience.aggregate_timeout"),
			CircuitWebhookURL:    v.GetString("resilience.circuit_webhook_url"),
			WebhookTimeout:       v.GetDuration("resilience.webhook_timeout"),
		},
		Features: &Features{
			SearchCollectionEnabled: v.GetBool("features.search_collection_enabled"),
			PriceCacheSize:          v.GetInt("features.price_cache_size"),
			PriceCacheTTL:           v.GetDuration("features.price_cache_ttl"),
		},
		Log: &Log{
			Level:      v.GetString("log.level"),
			Format:     v.GetString("log.format"),
			Env:        v.GetString("log.env"),
			OutputFile: v.GetString("log.output_file"),
			MaxSizeMB:  v.GetInt("log.max_size_mb"),
			MaxBackups: v.GetInt("log.max_backups"),
			MaxAgeDays: v.GetInt("log.max_age_days"),
		},
	}

	if err := Validate(bc); err != nil {
		return nil, err
	}

	return bc, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.http.network", "tcp")
	v.SetDefault("server.http.addr", ":8080")
	v.SetDefault("server.http.timeout", 60*time.Second)

	v.SetDefault("server.grpc.network", "tcp")
	v.SetDefault("server.grpc.addr", ":9000")
	v.SetDefault("server.grpc.timeout", 60*time.Second)

	// Data defaults
	v.SetDefault("data.database.driver", "mysql")
	v.SetDefault("data.database.max_open_conns", 10)
	v.SetDefault("data.database.max_idle_conns", 5)
	v.SetDefault("data.database.conn_max_lifetime", time.Hour)
	v.SetDefault("data.database.slow_query_threshold", 200*time.Millisecond)
	// Note: data.database.source (MYSQL_DSN) is optional, snapshots are not persisted without it

	v.SetDefault("data.redis.network", "tcp")
	v.SetDefault("data.redis.addr", "127.0.0.1:6379")
	v.SetDefault("data.redis.read_timeout", 200*time.Millisecond)
	v.SetDefault("data.redis.write_timeout", 200*time.Millisecond)
	v.SetDefault("data.ownership_cache_ttl", 10*time.Minute)
	v.SetDefault("data.snapshot_retention", 30*24*time.Hour)
	v.SetDefault("data.snapshot_prune_spec", "0 30 3 * * *")

	// Discogs defaults
	v.SetDefault("discogs.base_url", "https://api.discogs.com")
	v.SetDefault("discogs.user_agent", "CrateScout/1.0")
	v.SetDefault("discogs.currency", "USD")
	v.SetDefault("discogs.timeout", 15*time.Second)
	v.SetDefault("discogs.requests_per_second", 0)
	v.SetDefault("discogs.burst", 1)

	// Resilience defaults (Discogs allows 60 authenticated requests per minute)
	v.SetDefault("resilience.rate_limit_per_minute", 60)
	v.SetDefault("resilience.rate_limit_reset_spec", "0 * * * * *")
	v.SetDefault("resilience.failure_threshold", 5)
	v.SetDefault("resilience.open_timeout", 60*time.Second)
	v.SetDefault("resilience.half_open_max_successes", 3)
	v.SetDefault("resilience.aggregate_timeout", 50*time.Second)
	v.SetDefault("resilience.webhook_timeout", 5*time.Second)

	// Feature flags
	v.SetDefault("features.search_collection_enabled", true)
	v.SetDefault("features.price_cache_size", 1024)
	v.SetDefault("features.price_cache_ttl", 15*time.Minute)

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 7)
	v.SetDefault("log.max_age_days", 7)
}

// Validate checks that all required configuration fields are present and valid.
// It returns an error listing every invalid field.
func Validate(bc *Bootstrap) error {
	var invalid []string

	if bc.Discogs == nil || bc.Discogs.BaseURL == "" {
		invalid = append(invalid, "discogs.base_url")
	}

	r := bc.Resilience
	if r == nil {
		invalid = append(invalid, "resilience")
	} else {
		if r.RateLimitPerMinute <= 0 {
			invalid = append(invalid, "resilience.rate_limit_per_minute (must be > 0)")
		}
		if r.FailureThreshold <= 0 {
			invalid = append(invalid, "resilience.failure_threshold (must be > 0)")
		}
		if r.OpenTimeout <= 0 {
			invalid = append(invalid, "resilience.open_timeout (must be > 0)")
		}
		if r.HalfOpenMaxSuccesses <= 0 {
			invalid = append(invalid, "resilience.half_open_max_successes (must be > 0)")
		}
		if r.AggregateTimeout <= 0 {
			invalid = append(invalid, "resilience.aggregate_timeout (must be > 0)")
		}
	}

	if len(invalid) > 0 {
		return fmt.Errorf("invalid configuration fields: %s", strings.Join(invalid, ", "))
	}

	return nil
}
