// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package config loads the Skippa front end configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// knownWeakSecrets contains default/example secrets that must be rejected.
var knownWeakSecrets = []string{
	"change-me-to-32-byte-secret-key!",
	"REPLACE_WITH_YOUR_OWN_SECRET_KEY!",
}

// Config holds the application configuration loaded from environment variables.
type Config struct {
	APIBaseURL    string `env:"SKIPPA_API_BASE_URL,required"`
	APITimeout    int    `env:"SKIPPA_API_TIMEOUT" envDefault:"30"` // seconds
	SessionSecret string `env:"SKIPPA_SESSION_SECRET,required"`
	AuthSecret    string `env:"SKIPPA_AUTH_SECRET,required"`

	DBPath          string `env:"SKIPPA_DB_PATH" envDefault:"./data/skippa.db"`
	SessionLifetime int    `env:"SKIPPA_SESSION_LIFETIME" envDefault:"24"` // hours
	ServerHost      string `env:"SKIPPA_SERVER_HOST" envDefault:"localhost"`
	ServerPort      int    `env:"SKIPPA_SERVER_PORT" envDefault:"8080"`
	Env             string `env:"SKIPPA_ENV" envDefault:"development"`
	LogLevel        string `env:"SKIPPA_LOG_LEVEL" envDefault:"info"`

	// Cache configuration
	RedisURL    string `env:"SKIPPA_REDIS_URL"`                           // Optional, hand-off slots and list cache
	CachePrefix string `env:"SKIPPA_CACHE_PREFIX" envDefault:"skippa:"`
	CacheTTL    int    `env:"SKIPPA_CACHE_TTL" envDefault:"300"` // seconds

	// Verification flow
	HandoffTTL int `env:"SKIPPA_HANDOFF_TTL" envDefault:"120"` // seconds
	OTPWindow  int `env:"SKIPPA_OTP_WINDOW" envDefault:"120"`  // seconds
	OTPLength  int `env:"SKIPPA_OTP_LENGTH" envDefault:"6"`
}

// IsDevelopment returns true if the application is running in development mode.
func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

// ServerAddr returns the full server address in host:port format.
func (c Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}

// UseRedisCache returns true if Redis caching is configured.
func (c Config) UseRedisCache() bool {
	return c.RedisURL != ""
}

// APITimeoutDuration returns the backend request timeout.
func (c Config) APITimeoutDuration() time.Duration {
	return time.Duration(c.APITimeout) * time.Second
}

// CacheTTLDuration returns the default cache entry lifetime.
func (c Config) CacheTTLDuration() time.Duration {
	return time.Duration(c.CacheTTL) * time.Second
}

// HandoffTTLDuration returns how long a held password stays retrievable.
func (c Config) HandoffTTLDuration() time.Duration {
	return time.Duration(c.HandoffTTL) * time.Second
}

// OTPWindowDuration returns the verification countdown window.
func (c Config) OTPWindowDuration() time.Duration {
	return time.Duration(c.OTPWindow) * time.Second
}

// SessionLifetimeDuration returns the server session lifetime.
func (c Config) SessionLifetimeDuration() time.Duration {
	return time.Duration(c.SessionLifetime) * time.Hour
}

// MinSecretLength is the minimum required length for the session and auth secrets.
const MinSecretLength = 32

// Load parses environment variables and returns a Config struct.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := validateSecret("SKIPPA_SESSION_SECRET", cfg.SessionSecret); err != nil {
		return nil, err
	}
	if err := validateSecret("SKIPPA_AUTH_SECRET", cfg.AuthSecret); err != nil {
		return nil, err
	}

	u, err := url.Parse(cfg.APIBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("SKIPPA_API_BASE_URL must be an absolute URL, got %q", cfg.APIBaseURL)
	}

	if cfg.OTPLength <= 0 {
		return nil, errors.New("SKIPPA_OTP_LENGTH must be positive")
	}
	if cfg.OTPWindow <= 0 || cfg.HandoffTTL <= 0 {
		return nil, errors.New("SKIPPA_OTP_WINDOW and SKIPPA_HANDOFF_TTL must be positive")
	}

	return cfg, nil
}

func validateSecret(name, secret string) error {
	if len(secret) < MinSecretLength {
		return fmt.Errorf("%s must be at least %d bytes long, got %d bytes; "+
			"generate a secure secret with: openssl rand -base64 32",
			name, MinSecretLength, len(secret))
	}

	for _, weak := range knownWeakSecrets {
		if secret == weak {
			return fmt.Errorf("%s is a known default value and must not be used; "+
				"generate a secure secret with: openssl rand -base64 32", name)
		}
	}

	if !hasMinimumEntropy(secret) {
		slog.Warn(name + " has low character diversity; " +
			"consider generating a random secret with: openssl rand -base64 32")
	}
	return nil
}

// hasMinimumEntropy checks that a secret contains at least 3 character classes
// (lowercase, uppercase, digits, special characters).
func hasMinimumEntropy(s string) bool {
	charTypes := 0
	if strings.ContainsAny(s, "abcdefghijklmnopqrstuvwxyz") {
		charTypes++
	}
	if strings.ContainsAny(s, "ABCDEFGHIJKLMNOPQRSTUVWXYZ") {
		charTypes++
	}
	if strings.ContainsAny(s, "0123456789") {
		charTypes++
	}
	if strings.ContainsAny(s, "!@#$%^&*()-_=+[]{}|;:,.<>?/~`'\"\\") {
		charTypes++
	}
	return charTypes >= 3
}
