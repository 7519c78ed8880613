// Copyright (c) 2024-2025 Polychat Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.DefaultProvider != "openai" {
		t.Errorf("DefaultProvider = %q", cfg.DefaultProvider)
	}
	if cfg.Transport.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d", cfg.Transport.MaxAttempts)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestTransportDurations(t *testing.T) {
	tr := TransportConfig{
		BaseDelayMs:           500,
		MaxDelayMs:            10000,
		HandshakeTimeoutSecs:  10,
		KeepaliveIntervalSecs: 30,
	}
	if tr.BaseDelay() != 500*time.Millisecond {
		t.Errorf("BaseDelay = %v", tr.BaseDelay())
	}
	if tr.HandshakeTimeout() != 10*time.Second {
		t.Errorf("HandshakeTimeout = %v", tr.HandshakeTimeout())
	}
	if tr.KeepaliveInterval() != 30*time.Second {
		t.Errorf("KeepaliveInterval = %v", tr.KeepaliveInterval())
	}
}

func TestLoadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
default_provider = "anthropic"
default_model = "claude-3-5-sonnet-20241022"
thinking_mode = true

[backend]
base_url = "https://chat.example.com"

[transport]
max_attempts = 2
base_delay_ms = 100

[credentials]
anthropic = "sk-ant-test"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}

	if cfg.DefaultProvider != "anthropic" {
		t.Errorf("DefaultProvider = %q", cfg.DefaultProvider)
	}
	if !cfg.ThinkingMode {
		t.Error("ThinkingMode should be enabled")
	}
	if cfg.Backend.BaseURL != "https://chat.example.com" {
		t.Errorf("BaseURL = %q", cfg.Backend.BaseURL)
	}
	if cfg.Transport.MaxAttempts != 2 {
		t.Errorf("MaxAttempts = %d", cfg.Transport.MaxAttempts)
	}
	// Unspecified fields fall back to defaults.
	if cfg.Transport.MaxDelayMs != 10000 {
		t.Errorf("MaxDelayMs = %d, want default", cfg.Transport.MaxDelayMs)
	}
	if cfg.Credentials["anthropic"] != "sk-ant-test" {
		t.Errorf("Credentials = %v", cfg.Credentials)
	}
}

func TestLoadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{"default_model": "gpt-4o-mini", "backend": {"base_url": "http://localhost:9000"}}`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}
	if cfg.DefaultModel != "gpt-4o-mini" {
		t.Errorf("DefaultModel = %q", cfg.DefaultModel)
	}
	if cfg.Backend.BaseURL != "http://localhost:9000" {
		t.Errorf("BaseURL = %q", cfg.Backend.BaseURL)
	}
}

func TestSaveLoadRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg := Default()
	cfg.DefaultModel = "gpt-4-turbo"
	cfg.Sync = SyncConfig{AccountID: "acc", APIToken: "tok", DatabaseID: "db", AutoSync: true}

	if err := SaveTOML(cfg, path); err != nil {
		t.Fatalf("SaveTOML: %v", err)
	}

	// Config files hold API keys: owner-only access.
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("config file mode = %v, want 0600", info.Mode().Perm())
	}

	loaded, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}
	if loaded.DefaultModel != "gpt-4-turbo" {
		t.Errorf("DefaultModel = %q", loaded.DefaultModel)
	}
	if !loaded.Sync.AutoSync || loaded.Sync.AccountID != "acc" {
		t.Errorf("Sync = %+v", loaded.Sync)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("POLYCHAT_BACKEND_URL", "https://override.example.com")
	t.Setenv("POLYCHAT_MODEL", "o1-mini")
	t.Setenv("POLYCHAT_THINKING", "true")
	t.Setenv("POLYCHAT_MAX_ATTEMPTS", "5")

	cfg := Default()
	cfg.ApplyEnvOverrides()

	if cfg.Backend.BaseURL != "https://override.example.com" {
		t.Errorf("BaseURL = %q", cfg.Backend.BaseURL)
	}
	if cfg.DefaultModel != "o1-mini" {
		t.Errorf("DefaultModel = %q", cfg.DefaultModel)
	}
	if !cfg.ThinkingMode {
		t.Error("ThinkingMode should be enabled")
	}
	if cfg.Transport.MaxAttempts != 5 {
		t.Errorf("MaxAttempts = %d", cfg.Transport.MaxAttempts)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid defaults", func(c *Config) {}, false},
		{"bad base url", func(c *Config) { c.Backend.BaseURL = "ftp://nope" }, true},
		{"too many attempts", func(c *Config) { c.Transport.MaxAttempts = 11 }, true},
		{"base delay above cap", func(c *Config) { c.Transport.BaseDelayMs = 20000 }, true},
		{"auto sync without credentials", func(c *Config) { c.Sync.AutoSync = true }, true},
		{"auto sync configured", func(c *Config) {
			c.Sync = SyncConfig{AccountID: "a", APIToken: "t", DatabaseID: "d", AutoSync: true}
		}, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.wantErr && err == nil {
				t.Error("expected validation error")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestGlobalSingleton(t *testing.T) {
	ResetGlobalForTesting()
	defer ResetGlobalForTesting()

	cfg := Default()
	cfg.DefaultModel = "pinned-model"
	SetGlobal(cfg)

	if Global().DefaultModel != "pinned-model" {
		t.Errorf("Global().DefaultModel = %q", Global().DefaultModel)
	}
}
