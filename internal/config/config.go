// Package config loads Oracle's runtime tunables from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the process-wide set of tunables read once at boot.
type Config struct {
	DatabaseURL string `env:"DATABASE_URL"`
	RedisURL    string `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`

	PollIntervalMinutes    int `env:"POLL_INTERVAL_MINUTES" envDefault:"5"`
	DiscoveryIntervalHours int `env:"DISCOVERY_INTERVAL_HOURS" envDefault:"2"`
	PreStartWindowMinutes  int `env:"PRE_START_WINDOW_MINUTES" envDefault:"30"`

	Timezone string `env:"TIMEZONE" envDefault:"UTC"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	RequestDelaySeconds int `env:"REQUEST_DELAY_SECONDS" envDefault:"1"`
	MaxRetries          int `env:"MAX_RETRIES" envDefault:"3"`

	NotificationsEnabled bool   `env:"NOTIFICATIONS_ENABLED" envDefault:"true"`
	TelegramBotToken     string `env:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID       string `env:"TELEGRAM_CHAT_ID"`

	ProxyEnabled  bool   `env:"PROXY_ENABLED" envDefault:"false"`
	ProxyUsername string `env:"PROXY_USERNAME"`
	ProxyPassword string `env:"PROXY_PASSWORD"`
	ProxyEndpoint string `env:"PROXY_ENDPOINT"`

	EnableTimestampCorrection bool `env:"ENABLE_TIMESTAMP_CORRECTION" envDefault:"true"`

	WorkerPoolSize int `env:"WORKER_POOL_SIZE" envDefault:"4"`
}

// Load reads and validates the configuration from the process environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// Validate fails fast on a configuration that would leave a feature
// half-wired.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.NotificationsEnabled {
		if c.TelegramBotToken == "" || c.TelegramChatID == "" {
			return fmt.Errorf("TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID are required when NOTIFICATIONS_ENABLED=true")
		}
	}
	if c.ProxyEnabled {
		if c.ProxyEndpoint == "" || c.ProxyUsername == "" || c.ProxyPassword == "" {
			return fmt.Errorf("PROXY_ENDPOINT, PROXY_USERNAME and PROXY_PASSWORD are required when PROXY_ENABLED=true")
		}
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("MAX_RETRIES must be >= 0")
	}
	if c.WorkerPoolSize <= 0 {
		return fmt.Errorf("WORKER_POOL_SIZE must be > 0")
	}
	return nil
}

// Location resolves the configured display timezone, falling back to UTC
// when the name is invalid. Internal state always stays in UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
