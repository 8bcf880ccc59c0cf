// Package server provides configuration helpers that define runtime
// defaults, sanitization, and flood-protection parameters for the chatwire
// relay.
package server

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/samber/lo"
)

// RateLimitConfig defines the parameters for per-connection message flood
// protection.
type RateLimitConfig struct {
	Burst          int           `envconfig:"RATE_LIMIT_BURST"`
	RefillInterval time.Duration `envconfig:"RATE_LIMIT_REFILL_INTERVAL"`
}

// Config holds the server configuration. The zero value is unusable; obtain
// instances through NewConfig or NewConfigFromEnv so defaults and
// sanitization are applied.
type Config struct {
	Port            string        `envconfig:"SERVER_PORT" validate:"required"`
	AllowedOrigins  []string      `envconfig:"ALLOWED_ORIGINS"`
	MaxMessageSize  int64         `envconfig:"MAX_MESSAGE_SIZE" validate:"gt=0"`
	RateLimit       RateLimitConfig
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" validate:"gt=0"`
}

func defaultConfig() Config {
	return Config{
		// The relay historically listens on 3000.
		Port: ":3000",
		// Permissive by default; restrict via ALLOWED_ORIGINS in production.
		AllowedOrigins: []string{"*"},
		MaxMessageSize: 4096,
		RateLimit: RateLimitConfig{
			Burst:          20,
			RefillInterval: time.Second,
		},
		ShutdownTimeout: 10 * time.Second,
	}
}

func sanitizeConfig(cfg Config) Config {
	def := defaultConfig()

	if cfg.Port == "" {
		cfg.Port = def.Port
	}
	// Accept a bare port number ("3000") as well as a listen address.
	if !strings.Contains(cfg.Port, ":") {
		cfg.Port = ":" + cfg.Port
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = def.MaxMessageSize
	}
	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = def.RateLimit.Burst
	}
	if cfg.RateLimit.RefillInterval <= 0 {
		cfg.RateLimit.RefillInterval = def.RateLimit.RefillInterval
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = def.ShutdownTimeout
	}
	cfg.AllowedOrigins = lo.Filter(cfg.AllowedOrigins, func(origin string, _ int) bool {
		return strings.TrimSpace(origin) != ""
	})
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = append([]string(nil), def.AllowedOrigins...)
	}
	return cfg
}

// NewConfig creates a Config populated with default values for all settings.
func NewConfig() *Config {
	cfg := defaultConfig()
	return &cfg
}

// NewConfigFromEnv creates a Config from environment variables, falling back
// to defaults for anything unset. Unparseable variables are an error rather
// than a silent fallback.
func NewConfigFromEnv() (*Config, error) {
	cfg := defaultConfig()
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("reading configuration from environment: %w", err)
	}
	cfg = sanitizeConfig(cfg)

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}
