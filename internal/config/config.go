// Package config provides centralized configuration management for the
// application. It loads configuration from environment variables with
// defaults and validates all settings on startup to fail fast on
// misconfiguration.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	API      APIConfig
	Database DatabaseConfig
	Session  SessionConfig
	Export   ExportConfig
	Poll     PollConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	ReadTimeout  time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"2m"`
	IdleTimeout  time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout bounds graceful shutdown, including running exports
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// APIConfig holds settings for the Artemis REST API client.
type APIConfig struct {
	// BaseURL is the API root, e.g. https://artemis.example.com/api/v1 (required)
	BaseURL string `env:"ARTEMIS_API_URL" envAlt:"API_URL" required:"true"`

	// Key is a service API key used when the browser does not supply one
	Key string `env:"ARTEMIS_API_KEY"`

	Timeout time.Duration `env:"ARTEMIS_API_TIMEOUT" default:"30s"`

	// RequestsPerSecond throttles outbound calls; 0 disables throttling
	RequestsPerSecond float64 `env:"ARTEMIS_API_RPS" default:"20"`
	Burst             int     `env:"ARTEMIS_API_BURST" default:"10"`

	// Environment is development or production. Development shows schema
	// validation details to users.
	Environment string `env:"APP_ENV" default:"production"`
}

// DatabaseConfig holds settings for the optional preferences database.
// Without a URL preferences are kept in memory.
type DatabaseConfig struct {
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	MaxConns        int           `env:"DB_MAX_CONNS" default:"10"`
	MinConns        int           `env:"DB_MIN_CONNS" default:"1"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// Enabled reports whether a database is configured.
func (c DatabaseConfig) Enabled() bool {
	return c.URL != ""
}

// SessionConfig holds per-browser session settings.
type SessionConfig struct {
	// CookieName carries the browser id (default: artemis_browser)
	CookieName string `env:"SESSION_COOKIE_NAME" default:"artemis_browser"`

	// KeyCookieName carries the user's API key
	KeyCookieName string `env:"SESSION_KEY_COOKIE_NAME" default:"artemis_key"`

	// TTL is how long an idle browser session is kept (default: 24h)
	TTL time.Duration `env:"SESSION_TTL" default:"24h"`

	PruneInterval time.Duration `env:"SESSION_PRUNE_INTERVAL" default:"10m"`

	NotificationTTL time.Duration `env:"NOTIFICATION_TTL" default:"10s"`

	// ReloadDelay is how long after a session expiry the page reloads
	ReloadDelay time.Duration `env:"SESSION_RELOAD_DELAY" default:"5s"`
}

// ExportConfig holds table export settings.
type ExportConfig struct {
	MaxConcurrent int           `env:"EXPORT_MAX_CONCURRENT" default:"4"`
	MaxWaitTime   time.Duration `env:"EXPORT_MAX_WAIT_TIME" default:"15s"`
	Timeout       time.Duration `env:"EXPORT_TIMEOUT" default:"2m"`
}

// PollConfig holds auto-refresh settings.
type PollConfig struct {
	// ScanInterval is how often pages with running scans refresh (default: 5s)
	ScanInterval time.Duration `env:"POLL_SCAN_INTERVAL" default:"5s"`
}

// RateLimitConfig holds inbound rate limiting settings.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the limit per client IP (default: 300)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"300"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`

	// SecureCookies marks session cookies Secure (default: true)
	SecureCookies bool `env:"SECURITY_SECURE_COOKIES" default:"true"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`

	// File, when set, receives logs with size-based rotation instead of stdout
	File       string `env:"LOG_FILE"`
	MaxSizeMB  int    `env:"LOG_MAX_SIZE_MB" default:"100"`
	MaxBackups int    `env:"LOG_MAX_BACKUPS" default:"3"`
	MaxAgeDays int    `env:"LOG_MAX_AGE_DAYS" default:"28"`
	Compress   bool   `env:"LOG_COMPRESS" default:"true"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// Development reports whether the app runs in development mode.
func (c *APIConfig) Development() bool {
	return c.Environment == "development"
}
