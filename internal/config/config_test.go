// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

const (
	testSessionSecret = "test-Session-secret-32-bytes-ok!"
	testAuthSecret    = "test-Auth-secret-key-32-bytes-ok"
)

func setEnv(t *testing.T, key, value string) {
	t.Helper()
	if err := os.Setenv(key, value); err != nil {
		t.Fatalf("failed to set %s: %v", key, err)
	}
}

func setRequired(t *testing.T) {
	t.Helper()
	os.Clearenv()
	setEnv(t, "SKIPPA_API_BASE_URL", "https://api.skippa.test/v1")
	setEnv(t, "SKIPPA_SESSION_SECRET", testSessionSecret)
	setEnv(t, "SKIPPA_AUTH_SECRET", testAuthSecret)
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.DBPath != "./data/skippa.db" {
		t.Errorf("DBPath = %q, want %q", cfg.DBPath, "./data/skippa.db")
	}
	if cfg.ServerAddr() != "localhost:8080" {
		t.Errorf("ServerAddr() = %q, want %q", cfg.ServerAddr(), "localhost:8080")
	}
	if !cfg.IsDevelopment() {
		t.Error("IsDevelopment() = false, want true")
	}
	if cfg.HandoffTTLDuration() != 120*time.Second {
		t.Errorf("HandoffTTLDuration() = %v, want 2m", cfg.HandoffTTLDuration())
	}
	if cfg.OTPWindowDuration() != 120*time.Second {
		t.Errorf("OTPWindowDuration() = %v, want 2m", cfg.OTPWindowDuration())
	}
	if cfg.OTPLength != 6 {
		t.Errorf("OTPLength = %d, want 6", cfg.OTPLength)
	}
	if cfg.UseRedisCache() {
		t.Error("UseRedisCache() = true without SKIPPA_REDIS_URL")
	}
}

func TestLoad_CustomValues(t *testing.T) {
	setRequired(t)
	setEnv(t, "SKIPPA_SERVER_HOST", "0.0.0.0")
	setEnv(t, "SKIPPA_SERVER_PORT", "3000")
	setEnv(t, "SKIPPA_ENV", "production")
	setEnv(t, "SKIPPA_REDIS_URL", "redis://localhost:6379/0")
	setEnv(t, "SKIPPA_API_TIMEOUT", "5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.ServerAddr() != "0.0.0.0:3000" {
		t.Errorf("ServerAddr() = %q", cfg.ServerAddr())
	}
	if cfg.IsDevelopment() {
		t.Error("IsDevelopment() = true in production")
	}
	if !cfg.UseRedisCache() {
		t.Error("UseRedisCache() = false with SKIPPA_REDIS_URL set")
	}
	if cfg.APITimeoutDuration() != 5*time.Second {
		t.Errorf("APITimeoutDuration() = %v, want 5s", cfg.APITimeoutDuration())
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		wantErr string
	}{
		{"short session secret", "SKIPPA_SESSION_SECRET", "short", "SKIPPA_SESSION_SECRET must be at least"},
		{"weak auth secret", "SKIPPA_AUTH_SECRET", "change-me-to-32-byte-secret-key!", "known default"},
		{"relative base url", "SKIPPA_API_BASE_URL", "/api", "absolute URL"},
		{"zero otp length", "SKIPPA_OTP_LENGTH", "0", "SKIPPA_OTP_LENGTH"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			setEnv(t, tt.key, tt.value)

			_, err := Load()
			if err == nil {
				t.Fatal("Load() error = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load() error = %q, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	os.Clearenv()
	setEnv(t, "SKIPPA_SESSION_SECRET", testSessionSecret)

	if _, err := Load(); err == nil {
		t.Fatal("Load() should fail without SKIPPA_API_BASE_URL and SKIPPA_AUTH_SECRET")
	}
}

func TestHasMinimumEntropy(t *testing.T) {
	tests := []struct {
		secret string
		want   bool
	}{
		{"aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", false},
		{"abcABC123", true},
		{"abc123!!", true},
		{"ABCDEFG", false},
	}

	for _, tt := range tests {
		if got := hasMinimumEntropy(tt.secret); got != tt.want {
			t.Errorf("hasMinimumEntropy(%q) = %v, want %v", tt.secret, got, tt.want)
		}
	}
}
