package config

import (
	"time"
)

// Config represents the complete application configuration. Values merge in
// three layers: built-in defaults, an optional YAML config file, and
// CRMLINK_-prefixed environment variables.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	HubSpot   HubSpotConfig   `mapstructure:"hubspot"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`

	// AdminToken enables the admin endpoints when set.
	AdminToken string `mapstructure:"admin_token"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// HubSpotConfig contains upstream HubSpot credentials and client tuning.
type HubSpotConfig struct {
	BaseURL  string `mapstructure:"base_url"`
	TokenURL string `mapstructure:"token_url"`

	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RefreshToken string `mapstructure:"refresh_token"`

	Timeout     time.Duration `mapstructure:"timeout"`
	MaxRetries  int           `mapstructure:"max_retries"`
	BackoffBase time.Duration `mapstructure:"backoff_base"`
}

// RateLimitConfig contains the inbound fixed-window limiter settings.
type RateLimitConfig struct {
	// Limit is the number of requests allowed per window, per client IP.
	Limit int `mapstructure:"limit"`

	// Window is the fixed window length.
	Window time.Duration `mapstructure:"window"`
}

// LoggingConfig contains logging configuration.
// Valid levels: trace, debug, info, warn, error.
// Valid profiles: SIMPLE, STRUCTURED, ENTERPRISE.
type LoggingConfig struct {
	Level   string `mapstructure:"level"`
	Profile string `mapstructure:"profile"`
}

// MetricsConfig contains Prometheus metrics configuration
type MetricsConfig struct {
	// Enabled controls whether metrics are exposed
	Enabled bool `mapstructure:"enabled"`

	// Port is the dedicated metrics endpoint port (Prometheus format)
	Port int `mapstructure:"port"`
}
