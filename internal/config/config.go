// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Monitor  MonitorConfig  `mapstructure:"monitor"`
	Store    StoreConfig    `mapstructure:"store"`
	DB       DBConfig       `mapstructure:"db"`
	Facebook FacebookConfig `mapstructure:"facebook"`
	Webhook  WebhookConfig  `mapstructure:"webhook"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig holds the token signing secret and lifetimes.
type AuthConfig struct {
	Secret           string `mapstructure:"secret"`
	AccessTTLMinutes int    `mapstructure:"access_ttl_minutes"`
	RefreshTTLDays   int    `mapstructure:"refresh_ttl_days"`
	BcryptCost       int    `mapstructure:"bcrypt_cost"`
}

// MonitorConfig governs the periodic re-validation job.
type MonitorConfig struct {
	IntervalMinutes     int `mapstructure:"interval_minutes"`
	CheckTimeoutSeconds int `mapstructure:"check_timeout_seconds"`
}

// StoreConfig selects the durable store backend.
type StoreConfig struct {
	Provider string `mapstructure:"provider"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// FacebookConfig configures the Graph API status provider.
type FacebookConfig struct {
	AccessToken string `mapstructure:"access_token"`
	BaseURL     string `mapstructure:"base_url"`
}

// WebhookConfig configures outbound webhook delivery.
type WebhookConfig struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("POSTWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Required keys default to empty so Viper knows them; without a
	// registered key, AutomaticEnv is invisible to Unmarshal and an
	// env-only boot would fail validation.
	v.SetDefault("auth.secret", "")
	v.SetDefault("db.dsn", "")
	v.SetDefault("facebook.access_token", "")

	v.SetDefault("server.port", 8000)
	v.SetDefault("auth.access_ttl_minutes", 30)
	v.SetDefault("auth.refresh_ttl_days", 7)
	v.SetDefault("auth.bcrypt_cost", 0)
	v.SetDefault("monitor.interval_minutes", 3)
	v.SetDefault("monitor.check_timeout_seconds", 5)
	v.SetDefault("store.provider", "postgres")
	v.SetDefault("db.max_conns", 8)
	v.SetDefault("db.min_conns", 1)
	v.SetDefault("facebook.base_url", "https://graph.facebook.com/v17.0")
	v.SetDefault("webhook.timeout_seconds", 5)
	v.SetDefault("logging.development", false)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Auth.Secret == "" {
		return fmt.Errorf("auth.secret is required")
	}
	if c.Auth.AccessTTLMinutes <= 0 {
		return fmt.Errorf("auth.access_ttl_minutes must be > 0")
	}
	if c.Auth.RefreshTTLDays <= 0 {
		return fmt.Errorf("auth.refresh_ttl_days must be > 0")
	}
	if c.Monitor.IntervalMinutes <= 0 {
		return fmt.Errorf("monitor.interval_minutes must be > 0")
	}
	switch c.Store.Provider {
	case "postgres":
		if c.DB.DSN == "" {
			return fmt.Errorf("db.dsn is required when store.provider is postgres")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown store.provider %q", c.Store.Provider)
	}
	if c.Facebook.AccessToken == "" {
		return fmt.Errorf("facebook.access_token is required")
	}
	return nil
}

// AccessTTL returns the access token lifetime as a duration.
func (c Config) AccessTTL() time.Duration {
	return time.Duration(c.Auth.AccessTTLMinutes) * time.Minute
}

// RefreshTTL returns the refresh token lifetime as a duration.
func (c Config) RefreshTTL() time.Duration {
	return time.Duration(c.Auth.RefreshTTLDays) * 24 * time.Hour
}

// MonitorInterval returns the scheduler interval as a duration.
func (c Config) MonitorInterval() time.Duration {
	return time.Duration(c.Monitor.IntervalMinutes) * time.Minute
}

// CheckTimeout returns the status checker timeout as a duration.
func (c Config) CheckTimeout() time.Duration {
	return time.Duration(c.Monitor.CheckTimeoutSeconds) * time.Second
}

// WebhookTimeout returns the webhook delivery timeout as a duration.
func (c Config) WebhookTimeout() time.Duration {
	return time.Duration(c.Webhook.TimeoutSeconds) * time.Second
}
