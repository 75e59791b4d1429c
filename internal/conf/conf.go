package conf

import "time"

// Bootstrap is the root configuration loaded once at startup.
type Bootstrap struct {
	Server     *Server
	Data       *Data
	Discogs    *Discogs
	Resilience *Resilience
	Features   *Features
	Log        *Log
}

// Server holds transport settings.
type Server struct {
	HTTP *HTTPServer
	GRPC *GRPCServer
}

// HTTPServer configures the Kratos HTTP server.
type HTTPServer struct {
	Network string
	Addr    string
	Timeout time.Duration
}

// GRPCServer configures the Kratos gRPC server.
type GRPCServer struct {
	Network string
	Addr    string
	Timeout time.Duration
}

// Data holds storage settings.
type Data struct {
	Database *Database
	Redis    *Redis
	// OwnershipCacheTTL is how long a collection lookup verdict stays cached in Redis.
	OwnershipCacheTTL time.Duration
	// SnapshotRetention is how long price snapshots are kept before the prune job removes them.
	SnapshotRetention time.Duration
	// SnapshotPruneSpec is the cron schedule (with seconds) of the prune job.
	SnapshotPruneSpec string
}

// Database configures the MySQL connection. An empty Source disables persistence.
type Database struct {
	Driver string
	Source string
	// MaxOpenConns caps concurrent connections; snapshot writes are batched so a small pool suffices.
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	// SlowQueryThreshold is when GORM starts logging a query as slow.
	SlowQueryThreshold time.Duration
}

// Redis configures the Redis connection. An empty Addr disables the ownership cache.
type Redis struct {
	Network      string
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Discogs configures the Discogs API client.
type Discogs struct {
	BaseURL           string
	Token             string
	UserAgent         string
	ProxyURL          string
	Currency          string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
}

// Resilience configures the guards placed in front of Discogs.
type Resilience struct {
	RateLimitPerMinute   int64
	RateLimitResetSpec   string
	FailureThreshold     int
	OpenTimeout          time.Duration
	HalfOpenMaxSuccesses int
	AggregateTimeout     time.Duration

	// CircuitWebhookURL receives a JSON POST for every circuit open and recovery. Empty logs only.
	CircuitWebhookURL string
	WebhookTimeout    time.Duration
}

// Features holds feature flags.
type Features struct {
	// SearchCollectionEnabled is the master switch for collection ownership filtering.
	SearchCollectionEnabled bool
	// PriceCacheSize is the capacity of the in-process price stats cache.
	PriceCacheSize int
	// PriceCacheTTL is how long price stats stay in the in-process cache.
	PriceCacheTTL time.Duration
}

// Log configures the Zap logger.
type Log struct {
	Level      string
	Format     string
	Env        string
	OutputFile string

	// Rotation of OutputFile; zero keeps lumberjack's own default.
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}
