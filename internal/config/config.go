// Package config loads relay settings from the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"chatrelay/internal/chat"
)

type Config struct {
	Env  string `env:"ENV" envDefault:"development"`
	Port string `env:"PORT" envDefault:"8080"`

	DatabaseURL string `env:"DATABASE_URL" envDefault:"sqlite://chatrelay.db"`

	ServiceAPIKey string `env:"SERVICE_API_KEY" envDefault:"change-me"`
	ClientAPIKey  string `env:"CLIENT_API_KEY" envDefault:"webhook-api-key-placeholder"`

	AutoReplyMode          string        `env:"AUTO_REPLY_MODE" envDefault:"echo"`
	AutomationURL          string        `env:"AUTOMATION_URL"`
	AutomationAllowedHosts []string      `env:"AUTOMATION_ALLOWED_HOSTS" envSeparator:","`
	AutomationTimeout      time.Duration `env:"AUTOMATION_TIMEOUT" envDefault:"5s"`

	StreamPollInterval time.Duration `env:"STREAM_POLL_INTERVAL" envDefault:"5s"`
	RequestTimeout     time.Duration `env:"REQUEST_TIMEOUT" envDefault:"15s"`
}

// Load parses the environment and validates the result.
func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values env tags cannot express.
func (c *Config) Validate() error {
	if _, err := chat.ParseReplyMode(c.AutoReplyMode); err != nil {
		return err
	}
	if strings.TrimSpace(c.Port) == "" {
		return fmt.Errorf("PORT must not be empty")
	}
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL must not be empty")
	}
	if c.StreamPollInterval < 100*time.Millisecond || c.StreamPollInterval > time.Minute {
		return fmt.Errorf("STREAM_POLL_INTERVAL %v outside 100ms..1m", c.StreamPollInterval)
	}
	if c.AutomationTimeout <= 0 {
		return fmt.Errorf("AUTOMATION_TIMEOUT must be positive")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}
	return nil
}

// ReplyMode returns the parsed auto reply mode. Validate has already vetted it.
func (c *Config) ReplyMode() chat.ReplyMode {
	mode, _ := chat.ParseReplyMode(c.AutoReplyMode)
	return mode
}

func (c *Config) Addr() string {
	return ":" + strings.TrimPrefix(strings.TrimSpace(c.Port), ":")
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
