// Package config loads and validates tracker configuration via Viper.
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
	Scraper  ScraperConfig  `mapstructure:"scraper"`
	Render   RenderConfig   `mapstructure:"render"`
	Tracking TrackingConfig `mapstructure:"tracking"`
	Notify   NotifyConfig   `mapstructure:"notify"`
	Store    StoreConfig    `mapstructure:"store"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// ScraperConfig governs the static extraction tier.
type ScraperConfig struct {
	UserAgent      string `mapstructure:"user_agent"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// RenderConfig governs the headless extraction tier.
type RenderConfig struct {
	NavTimeoutSeconds  int `mapstructure:"nav_timeout_seconds"`
	SettleMilliseconds int `mapstructure:"settle_ms"`
	SelectorTimeoutSec int `mapstructure:"selector_timeout_seconds"`
}

// TrackingConfig governs the background check loop.
type TrackingConfig struct {
	IntervalSeconds      int `mapstructure:"interval_seconds"`
	RecoveryDelaySeconds int `mapstructure:"recovery_delay_seconds"`
}

// NotifyConfig holds the two independent notification toggles plus the
// optional Telegram delivery settings.
type NotifyConfig struct {
	PriceDrop      bool   `mapstructure:"price_drop"`
	TargetReached  bool   `mapstructure:"target_reached"`
	TelegramToken  string `mapstructure:"telegram_token"`
	TelegramChatID int64  `mapstructure:"telegram_chat_id"`
}

// StoreConfig selects and configures the persistence backend.
type StoreConfig struct {
	// Driver is one of "sqlite", "postgres", or "memory".
	Driver string `mapstructure:"driver"`
	// DSN is a file path for sqlite or a connection string for postgres.
	DSN string `mapstructure:"dsn"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PRICEWATCH")
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
	v.SetDefault("server.port", 8080)
	v.SetDefault("scraper.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	v.SetDefault("scraper.timeout_seconds", 10)
	v.SetDefault("render.nav_timeout_seconds", 25)
	v.SetDefault("render.settle_ms", 2000)
	v.SetDefault("render.selector_timeout_seconds", 2)
	v.SetDefault("tracking.interval_seconds", 3600)
	v.SetDefault("tracking.recovery_delay_seconds", 60)
	v.SetDefault("notify.price_drop", true)
	v.SetDefault("notify.target_reached", true)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.dsn", "pricewatch.db")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits. Invalid values
// surface here, at the boundary where they were supplied, never as silent
// defaults.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Scraper.UserAgent == "" {
		return fmt.Errorf("scraper.user_agent must be set")
	}
	if c.Scraper.TimeoutSeconds <= 0 {
		return fmt.Errorf("scraper.timeout_seconds must be > 0")
	}
	if c.Render.NavTimeoutSeconds <= 0 {
		return fmt.Errorf("render.nav_timeout_seconds must be > 0")
	}
	if c.Tracking.IntervalSeconds <= 0 {
		return fmt.Errorf("tracking.interval_seconds must be > 0")
	}
	if c.Tracking.RecoveryDelaySeconds <= 0 {
		return fmt.Errorf("tracking.recovery_delay_seconds must be > 0")
	}
	switch c.Store.Driver {
	case "sqlite", "postgres", "memory":
	default:
		return fmt.Errorf("store.driver must be sqlite, postgres, or memory")
	}
	if c.Store.Driver != "memory" && c.Store.DSN == "" {
		return fmt.Errorf("store.dsn must be set for driver %q", c.Store.Driver)
	}
	if c.Notify.TelegramToken != "" && c.Notify.TelegramChatID == 0 {
		return fmt.Errorf("notify.telegram_chat_id must be set when notify.telegram_token is set")
	}
	return nil
}

// ScraperTimeout converts the static tier timeout into a duration.
func (c Config) ScraperTimeout() time.Duration {
	return time.Duration(c.Scraper.TimeoutSeconds) * time.Second
}

// NavTimeout converts the rendered tier navigation timeout into a duration.
func (c Config) NavTimeout() time.Duration {
	return time.Duration(c.Render.NavTimeoutSeconds) * time.Second
}

// SettleDelay converts the rendered tier settle wait into a duration.
func (c Config) SettleDelay() time.Duration {
	return time.Duration(c.Render.SettleMilliseconds) * time.Millisecond
}

// SelectorTimeout converts the per-selector probe budget into a duration.
func (c Config) SelectorTimeout() time.Duration {
	return time.Duration(c.Render.SelectorTimeoutSec) * time.Second
}

// TrackingInterval converts the check interval into a duration.
func (c Config) TrackingInterval() time.Duration {
	return time.Duration(c.Tracking.IntervalSeconds) * time.Second
}

// RecoveryDelay converts the whole-cycle failure backoff into a duration.
func (c Config) RecoveryDelay() time.Duration {
	return time.Duration(c.Tracking.RecoveryDelaySeconds) * time.Second
}
