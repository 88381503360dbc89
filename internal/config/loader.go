// Package config provides centralized configuration management for crmlink.
// It merges three layers with viper: built-in defaults, an optional YAML
// config file, and CRMLINK_-prefixed environment variables.
package config

import (
	"fmt"
	"strings"
	"sync"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	apperrors "github.com/crmlink/crmlink/internal/errors"
)

// EnvPrefix is the environment variable prefix for all config overrides,
// e.g. CRMLINK_HUBSPOT_CLIENT_ID maps to hubspot.client_id.
const EnvPrefix = "CRMLINK"

var (
	// appConfig holds the current application configuration
	appConfig *Config
	configMu  sync.RWMutex
)

// setDefaults installs the built-in layer 1 values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "15s")

	v.SetDefault("hubspot.base_url", "https://api.hubapi.com")
	v.SetDefault("hubspot.token_url", "https://api.hubapi.com/oauth/v1/token")
	// Credentials default empty so their keys resolve from the environment.
	v.SetDefault("hubspot.client_id", "")
	v.SetDefault("hubspot.client_secret", "")
	v.SetDefault("hubspot.refresh_token", "")
	v.SetDefault("admin_token", "")
	v.SetDefault("hubspot.timeout", "10s")
	v.SetDefault("hubspot.max_retries", 3)
	v.SetDefault("hubspot.backoff_base", "5s")

	v.SetDefault("rate_limit.limit", 60)
	v.SetDefault("rate_limit.window", "60s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.profile", "STRUCTURED")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)
}

// Load reads configuration from defaults, an optional config file, and the
// environment. An empty configFile skips the file layer; a named file that
// cannot be read is an error.
func Load(configFile string) (*Config, error) {
	v := viper.GetViper()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, apperrors.NewConfigInvalidError(
				fmt.Sprintf("failed to read config file %s: %v", configFile, err))
		}
	}

	cfg, err := decode(v.AllSettings())
	if err != nil {
		return nil, err
	}

	setConfig(cfg)
	return cfg, nil
}

// decode unmarshals merged settings into the typed config.
func decode(settings map[string]any) (*Config, error) {
	cfg := &Config{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return nil, apperrors.NewConfigInvalidError(fmt.Sprintf("failed to create decoder: %v", err))
	}

	if err := decoder.Decode(settings); err != nil {
		return nil, apperrors.NewConfigInvalidError(fmt.Sprintf("failed to unmarshal config: %v", err))
	}
	return cfg, nil
}

// ValidateForServe checks the fields the server cannot run without.
func (c *Config) ValidateForServe() error {
	var missing []string
	if strings.TrimSpace(c.HubSpot.ClientID) == "" {
		missing = append(missing, "hubspot.client_id")
	}
	if strings.TrimSpace(c.HubSpot.ClientSecret) == "" {
		missing = append(missing, "hubspot.client_secret")
	}
	if strings.TrimSpace(c.HubSpot.RefreshToken) == "" {
		missing = append(missing, "hubspot.refresh_token")
	}
	if len(missing) > 0 {
		return apperrors.NewConfigInvalidError(
			"missing required HubSpot credentials: " + strings.Join(missing, ", "))
	}

	if c.RateLimit.Limit <= 0 {
		return apperrors.NewConfigInvalidError("rate_limit.limit must be positive")
	}
	if c.RateLimit.Window <= 0 {
		return apperrors.NewConfigInvalidError("rate_limit.window must be positive")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return apperrors.NewConfigInvalidError(fmt.Sprintf("server.port %d out of range", c.Server.Port))
	}
	return nil
}

// GetConfig returns the current application configuration (thread-safe)
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

// setConfig updates the current configuration (thread-safe)
func setConfig(cfg *Config) {
	configMu.Lock()
	defer configMu.Unlock()
	appConfig = cfg
}
