// Package config provides centralized configuration management for the application.
// It loads configuration from an optional YAML file and environment variables with
// sensible defaults and validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"net"
	"strconv"
	"time"
)

// Config holds all application configuration.
// Every setting can be configured via environment variables.
type Config struct {
	Server   ServerConfig    `yaml:"server"`
	Database DatabaseConfig  `yaml:"database"`
	Import   ImportConfig    `yaml:"import"`
	API      APIConfig       `yaml:"api"`
	Events   EventsConfig    `yaml:"events"`
	History  HistoryConfig   `yaml:"history"`
	Rate     RateLimitConfig `yaml:"rate"`
	Security SecurityConfig  `yaml:"security"`
	Logging  LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `yaml:"host" env:"SERVER_HOST" env-default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `yaml:"port" env:"SERVER_PORT" env-default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `yaml:"read_timeout" env:"SERVER_READ_TIMEOUT" env-default:"15s"`

	// WriteTimeout is the maximum duration for writing response (default: 0 for SSE)
	WriteTimeout time.Duration `yaml:"write_timeout" env:"SERVER_WRITE_TIMEOUT" env-default:"0s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `yaml:"idle_timeout" env:"SERVER_IDLE_TIMEOUT" env-default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT" env-default:"30s"`

	// RequestTimeout is the middleware timeout for non-streaming requests (default: 60s)
	RequestTimeout time.Duration `yaml:"request_timeout" env:"SERVER_REQUEST_TIMEOUT" env-default:"60s"`
}

// DatabaseConfig holds settings for the import ledger database.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string. Empty disables the ledger.
	// Both DATABASE_URL and DB_URL are read.
	URL string `yaml:"url" env:"DATABASE_URL,DB_URL"`

	// MaxConns is the maximum number of connections in the pool (default: 10)
	MaxConns int `yaml:"max_conns" env:"DB_MAX_CONNS" env-default:"10"`

	// MinConns is the minimum number of connections to keep open (default: 2)
	MinConns int `yaml:"min_conns" env:"DB_MIN_CONNS" env-default:"2"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime" env:"DB_MAX_CONN_LIFETIME" env-default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time" env:"DB_MAX_CONN_IDLE_TIME" env-default:"30m"`

	// MigrateOnStart applies pending ledger migrations at startup (default: true)
	MigrateOnStart bool `yaml:"migrate_on_start" env:"DB_MIGRATE_ON_START" env-default:"true"`
}

// ImportConfig holds settings for CSV import runs.
type ImportConfig struct {
	// MaxFileSize is the maximum upload size in bytes (default: 100MB)
	MaxFileSize int64 `yaml:"max_file_size" env:"IMPORT_MAX_FILE_SIZE" env-default:"104857600"`

	// MaxConcurrent is the maximum number of simultaneous import runs (default: 5)
	MaxConcurrent int `yaml:"max_concurrent" env:"IMPORT_MAX_CONCURRENT" env-default:"5"`

	// MaxWaitTime is how long to wait for an import slot (default: 30s)
	MaxWaitTime time.Duration `yaml:"max_wait_time" env:"IMPORT_MAX_WAIT_TIME" env-default:"30s"`

	// Timeout is the maximum duration of one import run (default: 10m)
	Timeout time.Duration `yaml:"timeout" env:"IMPORT_TIMEOUT" env-default:"10m"`

	// Workers is the number of row validators per run; 1 validates inline (default: 4)
	Workers int `yaml:"workers" env:"IMPORT_WORKERS" env-default:"4"`

	// ReportEvery is the number of rows between progress reports (default: 100)
	ReportEvery int `yaml:"report_every" env:"IMPORT_REPORT_EVERY" env-default:"100"`

	// MaxRejected caps the rejected rows kept per run; 0 keeps all (default: 10000)
	MaxRejected int `yaml:"max_rejected" env:"IMPORT_MAX_REJECTED" env-default:"10000"`

	// ResultTTL is how long a finished run stays queryable (default: 1h)
	ResultTTL time.Duration `yaml:"result_ttl" env:"IMPORT_RESULT_TTL" env-default:"1h"`

	// SpoolDir is where uploads are buffered; empty uses the OS temp dir
	SpoolDir string `yaml:"spool_dir" env:"IMPORT_SPOOL_DIR"`
}

// APIConfig holds settings for the admin REST API that stores records.
type APIConfig struct {
	// BaseURL is the admin API root, e.g. https://admin.example.com/api (default: http://localhost:3000/api)
	BaseURL string `yaml:"base_url" env:"API_BASE_URL" env-default:"http://localhost:3000/api"`

	// Token is sent as a bearer token when set
	Token string `yaml:"token" env:"API_TOKEN"`

	// Timeout bounds each API request (default: 30s)
	Timeout time.Duration `yaml:"timeout" env:"API_TIMEOUT" env-default:"30s"`

	// PageSize is the page size used when fetching schedules for export (default: 500)
	PageSize int `yaml:"page_size" env:"API_PAGE_SIZE" env-default:"500"`

	// SubmitBatchSize is the number of records per bulk create call (default: 200)
	SubmitBatchSize int `yaml:"submit_batch_size" env:"API_SUBMIT_BATCH_SIZE" env-default:"200"`
}

// EventsConfig holds settings for import-completed notifications.
type EventsConfig struct {
	// AMQPURL is the broker URL. Empty disables publishing.
	AMQPURL string `yaml:"amqp_url" env:"AMQP_URL"`

	// Queue is the durable queue that receives events (default: import.completed)
	Queue string `yaml:"queue" env:"AMQP_QUEUE" env-default:"import.completed"`
}

// HistoryConfig holds settings for the import ledger retention job.
type HistoryConfig struct {
	// RetentionDays is how long ledger rows are kept (default: 90)
	RetentionDays int `yaml:"retention_days" env:"HISTORY_RETENTION_DAYS" env-default:"90"`

	// Schedule is the cron spec for the purge job (default: @daily)
	Schedule string `yaml:"schedule" env:"HISTORY_SCHEDULE" env-default:"@daily"`
}

// RateLimitConfig holds rate limiting settings.
type RateLimitConfig struct {
	// RequestsPerMinute is the max requests per IP per minute (default: 100)
	RequestsPerMinute int `yaml:"requests_per_minute" env:"RATE_LIMIT_RPM" env-default:"100"`

	// Burst is the token bucket burst size (default: 20)
	Burst int `yaml:"burst" env:"RATE_LIMIT_BURST" env-default:"20"`

	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `yaml:"enabled" env:"RATE_LIMIT_ENABLED" env-default:"true"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// RequireAPIKey rejects /api requests without a valid X-API-Key (default: false)
	RequireAPIKey bool `yaml:"require_api_key" env:"REQUIRE_API_KEY" env-default:"false"`

	// APIKeys is a comma-separated list of accepted keys
	APIKeys []string `yaml:"api_keys" env:"API_KEYS" env-separator:","`

	// TrustedProxies is a comma-separated list of proxy CIDRs whose
	// forwarding headers are honored
	TrustedProxies []string `yaml:"trusted_proxies" env:"TRUSTED_PROXIES" env-separator:","`

	// CSPPolicy is the Content-Security-Policy header value
	CSPPolicy string `yaml:"csp_policy" env:"CSP_POLICY" env-default:"default-src 'none'; frame-ancestors 'none'"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`

	// Format is the log output format: text, json (default: text)
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"text"`
}

// Addr returns the server address in host:port format.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
