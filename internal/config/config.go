// Package config provides centralized configuration for the extractor.
//
// Process-level settings load from environment variables with sensible
// defaults and are validated on startup so misconfiguration fails fast.
// The dataset list itself lives in a YAML manifest (see manifest.go), keeping
// dataset changes out of the binary.
package config

import "time"

// Config holds all process-level configuration.
type Config struct {
	App      AppConfig
	Pipeline PipelineConfig
	Journal  JournalConfig
	Database DatabaseConfig
	Server   ServerConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// AppConfig locates the dataset manifest.
type AppConfig struct {
	// ManifestPath is the dataset manifest to run (default: datasets.yaml)
	ManifestPath string `env:"EXTRACT_MANIFEST" default:"datasets.yaml" required:"true"`

	// BaseDir anchors relative paths in the manifest (default: .)
	BaseDir string `env:"EXTRACT_BASE_DIR" default:"."`
}

// PipelineConfig bounds pipeline concurrency.
type PipelineConfig struct {
	// MaxConcurrentDatasets is the number of datasets processed in parallel (default: 4)
	MaxConcurrentDatasets int `env:"EXTRACT_MAX_DATASETS" default:"4"`

	// WorkersPerDataset is the file worker pool size within one dataset (default: 4)
	WorkersPerDataset int `env:"EXTRACT_WORKERS" default:"4"`
}

// JournalConfig controls the rejection journal.
type JournalConfig struct {
	// Enabled toggles journal writing (default: true)
	Enabled bool `env:"EXTRACT_JOURNAL_ENABLED" default:"true"`

	// Path is the journal file, resolved against BaseDir when relative
	// (default: errors.log)
	Path string `env:"EXTRACT_JOURNAL_PATH" default:"errors.log"`

	// RetryAttempts bounds retries per journal append (default: 5)
	RetryAttempts int `env:"EXTRACT_JOURNAL_RETRIES" default:"5"`
}

// DatabaseConfig holds the optional run-history store settings. History is
// disabled entirely when URL is empty.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string (empty disables run history)
	URL string `env:"DATABASE_URL"`

	// MaxConns is the connection pool ceiling (default: 4)
	MaxConns int `env:"DB_MAX_CONNS" default:"4"`

	// MinConns is the number of connections kept open (default: 0)
	MinConns int `env:"DB_MIN_CONNS" default:"0"`

	// MaxConnLifetime recycles connections after this long (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
}

// ServerConfig holds the optional status server settings. The server is
// disabled when Addr is empty.
type ServerConfig struct {
	// Addr is the listen address, e.g. ":8080" (empty disables the server)
	Addr string `env:"EXTRACT_HTTP_ADDR"`

	// ReadTimeout is the maximum duration for reading a request (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// RequestTimeout cancels request handling after this long (default: 30s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"30s"`

	// ShutdownTimeout bounds graceful shutdown (default: 10s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"10s"`
}

// SecurityConfig holds access controls for the status server. All settings
// are inert while the server itself is disabled.
type SecurityConfig struct {
	// TrustedProxies lists proxy CIDRs (single IPs also accepted) whose
	// forwarding headers may override the client IP (comma-separated,
	// empty trusts none)
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// RequireAPIKey gates the /api routes behind an API key (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys lists accepted keys for the X-API-Key header (comma-separated)
	APIKeys []string `env:"API_KEYS"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log output format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}
