// Copyright (c) 2024-2025 Polychat Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/polychat/polychat/internal/util"
)

// =============================================================================
// CONFIG STRUCTURE
// =============================================================================

// Config is the root configuration for polychat.
type Config struct {
	Version string `toml:"version" json:"version"`

	// DefaultProvider and DefaultModel seed new conversations.
	DefaultProvider string `toml:"default_provider" json:"default_provider"`
	DefaultModel    string `toml:"default_model" json:"default_model"`

	// ThinkingMode asks supporting models for extended reasoning.
	ThinkingMode bool `toml:"thinking_mode" json:"thinking_mode"`

	Backend   BackendConfig   `toml:"backend" json:"backend"`
	Transport TransportConfig `toml:"transport" json:"transport"`
	Sync      SyncConfig      `toml:"sync" json:"sync"`
	Storage   StorageConfig   `toml:"storage" json:"storage"`

	// Credentials maps provider IDs to API keys. Environment variables
	// (OPENAI_API_KEY etc.) are consulted when a provider is absent.
	Credentials map[string]string `toml:"credentials" json:"credentials"`
}

// BackendConfig locates the polychat backend.
type BackendConfig struct {
	BaseURL string `toml:"base_url" json:"base_url"`
}

// TransportConfig tunes the duplex channel and reconnection policy.
type TransportConfig struct {
	// MaxAttempts bounds duplex connection attempts per turn.
	MaxAttempts int `toml:"max_attempts" json:"max_attempts"`

	// BaseDelayMs is the first backoff delay; it doubles per attempt.
	BaseDelayMs int `toml:"base_delay_ms" json:"base_delay_ms"`

	// MaxDelayMs caps the backoff.
	MaxDelayMs int `toml:"max_delay_ms" json:"max_delay_ms"`

	// HandshakeTimeoutSecs bounds the duplex handshake.
	HandshakeTimeoutSecs int `toml:"handshake_timeout_secs" json:"handshake_timeout_secs"`

	// KeepaliveIntervalSecs is the expected heartbeat cadence.
	KeepaliveIntervalSecs int `toml:"keepalive_interval_secs" json:"keepalive_interval_secs"`
}

// BaseDelay returns the backoff base as a duration.
func (t TransportConfig) BaseDelay() time.Duration {
	return time.Duration(t.BaseDelayMs) * time.Millisecond
}

// MaxDelay returns the backoff cap as a duration.
func (t TransportConfig) MaxDelay() time.Duration {
	return time.Duration(t.MaxDelayMs) * time.Millisecond
}

// HandshakeTimeout returns the handshake bound as a duration.
func (t TransportConfig) HandshakeTimeout() time.Duration {
	return time.Duration(t.HandshakeTimeoutSecs) * time.Second
}

// KeepaliveInterval returns the heartbeat cadence as a duration.
func (t TransportConfig) KeepaliveInterval() time.Duration {
	return time.Duration(t.KeepaliveIntervalSecs) * time.Second
}

// SyncConfig holds Cloudflare D1 sync settings.
type SyncConfig struct {
	AccountID  string `toml:"account_id" json:"account_id"`
	APIToken   string `toml:"api_token" json:"api_token"`
	DatabaseID string `toml:"database_id" json:"database_id"`

	// AutoSync uploads conversations after each completed turn.
	AutoSync bool `toml:"auto_sync" json:"auto_sync"`
}

// StorageConfig locates local persistence files.
type StorageConfig struct {
	// ConversationsPath is the live JSON snapshot file.
	ConversationsPath string `toml:"conversations_path" json:"conversations_path"`

	// ArchivePath is the SQLite history database.
	ArchivePath string `toml:"archive_path" json:"archive_path"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Version:         "1.0.0",
		DefaultProvider: "openai",
		DefaultModel:    "gpt-4o",
		ThinkingMode:    false,

		Backend: BackendConfig{
			BaseURL: "http://localhost:8000",
		},

		Transport: TransportConfig{
			MaxAttempts:           3,
			BaseDelayMs:           500,
			MaxDelayMs:            10000,
			HandshakeTimeoutSecs:  10,
			KeepaliveIntervalSecs: 30,
		},

		Sync: SyncConfig{
			AutoSync: false,
		},

		Credentials: map[string]string{},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the polychat configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".polychat"), nil
}

// ConfigPathTOML returns the TOML config file path.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the JSON config file path.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// =============================================================================
// LOADING
// =============================================================================

// Load reads configuration, trying TOML first, then JSON, then
// defaults. Environment overrides apply in every case.
func Load() (*Config, error) {
	cfg := Default()

	if path, err := ConfigPathTOML(); err == nil {
		if _, statErr := os.Stat(path); statErr == nil {
			if err := LoadTOML(cfg, path); err != nil {
				return nil, err
			}
			return finalize(cfg)
		}
	}

	if path, err := ConfigPathJSON(); err == nil {
		if _, statErr := os.Stat(path); statErr == nil {
			if err := LoadJSON(cfg, path); err != nil {
				return nil, err
			}
			return finalize(cfg)
		}
	}

	return finalize(cfg)
}

// LoadTOML loads configuration from a TOML file into cfg.
func LoadTOML(cfg *Config, path string) error {
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML config: %w", err)
	}
	return nil
}

// LoadJSON loads configuration from a JSON file into cfg.
func LoadJSON(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON config: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON config: %w", err)
	}
	return nil
}

// LoadFromPath loads a config file by extension, with full validation.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = LoadTOML(cfg, path)
	case ".json":
		err = LoadJSON(cfg, path)
	default:
		err = fmt.Errorf("unsupported config format: %s", path)
	}
	if err != nil {
		return nil, err
	}
	return finalize(cfg)
}

func finalize(cfg *Config) (*Config, error) {
	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// =============================================================================
// SAVING
// =============================================================================

// Save writes the config as TOML to the standard path.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes the config as TOML to path. Mode 0600: the file may
// hold API keys.
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return util.AtomicWriteFile(path, buf.Bytes(), 0600)
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies POLYCHAT_* environment variables:
//   - POLYCHAT_BACKEND_URL: overrides backend.base_url
//   - POLYCHAT_PROVIDER: overrides default_provider
//   - POLYCHAT_MODEL: overrides default_model
//   - POLYCHAT_THINKING: "1" or "true" enables thinking mode
//   - POLYCHAT_MAX_ATTEMPTS: overrides transport.max_attempts
//   - POLYCHAT_AUTO_SYNC: "1" or "true" enables auto-sync
func (c *Config) ApplyEnvOverrides() {
	if url := os.Getenv("POLYCHAT_BACKEND_URL"); url != "" {
		c.Backend.BaseURL = url
	}
	if provider := os.Getenv("POLYCHAT_PROVIDER"); provider != "" {
		c.DefaultProvider = provider
	}
	if model := os.Getenv("POLYCHAT_MODEL"); model != "" {
		c.DefaultModel = model
	}
	if thinking := os.Getenv("POLYCHAT_THINKING"); thinking != "" {
		c.ThinkingMode = thinking == "1" || strings.EqualFold(thinking, "true")
	}
	if attempts := os.Getenv("POLYCHAT_MAX_ATTEMPTS"); attempts != "" {
		if n, err := strconv.Atoi(attempts); err == nil && n > 0 {
			c.Transport.MaxAttempts = n
		}
	}
	if auto := os.Getenv("POLYCHAT_AUTO_SYNC"); auto != "" {
		c.Sync.AutoSync = auto == "1" || strings.EqualFold(auto, "true")
	}
}

// =============================================================================
// DEFAULTS AND VALIDATION
// =============================================================================

// SetDefaults fills zero-valued fields that loading may have left
// empty.
func (c *Config) SetDefaults() {
	def := Default()

	if c.DefaultProvider == "" {
		c.DefaultProvider = def.DefaultProvider
	}
	if c.DefaultModel == "" {
		c.DefaultModel = def.DefaultModel
	}
	if c.Backend.BaseURL == "" {
		c.Backend.BaseURL = def.Backend.BaseURL
	}
	if c.Transport.MaxAttempts <= 0 {
		c.Transport.MaxAttempts = def.Transport.MaxAttempts
	}
	if c.Transport.BaseDelayMs <= 0 {
		c.Transport.BaseDelayMs = def.Transport.BaseDelayMs
	}
	if c.Transport.MaxDelayMs <= 0 {
		c.Transport.MaxDelayMs = def.Transport.MaxDelayMs
	}
	if c.Transport.HandshakeTimeoutSecs <= 0 {
		c.Transport.HandshakeTimeoutSecs = def.Transport.HandshakeTimeoutSecs
	}
	if c.Transport.KeepaliveIntervalSecs <= 0 {
		c.Transport.KeepaliveIntervalSecs = def.Transport.KeepaliveIntervalSecs
	}
	if c.Credentials == nil {
		c.Credentials = map[string]string{}
	}
	if c.Storage.ConversationsPath == "" {
		if dir, err := ConfigDir(); err == nil {
			c.Storage.ConversationsPath = filepath.Join(dir, "conversations.json")
		}
	}
	if c.Storage.ArchivePath == "" {
		if dir, err := ConfigDir(); err == nil {
			c.Storage.ArchivePath = filepath.Join(dir, "archive.db")
		}
	}
}

// ValidationError describes one invalid config field.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	if !strings.HasPrefix(c.Backend.BaseURL, "http://") && !strings.HasPrefix(c.Backend.BaseURL, "https://") {
		return ValidationError{Field: "backend.base_url", Message: "must be an http or https URL"}
	}
	if c.Transport.MaxAttempts > 10 {
		return ValidationError{Field: "transport.max_attempts", Message: "must be at most 10"}
	}
	if c.Transport.BaseDelayMs > c.Transport.MaxDelayMs {
		return ValidationError{Field: "transport.base_delay_ms", Message: "must not exceed max_delay_ms"}
	}
	if c.Sync.AutoSync {
		if c.Sync.AccountID == "" || c.Sync.APIToken == "" || c.Sync.DatabaseID == "" {
			return ValidationError{Field: "sync.auto_sync", Message: "requires account_id, api_token, and database_id"}
		}
	}
	return nil
}

// =============================================================================
// SINGLETON PATTERN (THREAD-SAFE)
// =============================================================================

var (
	globalConfig     *Config
	globalConfigOnce sync.Once
	globalConfigMu   sync.RWMutex
)

// Global returns the global configuration instance, loading it on
// first access.
func Global() *Config {
	globalConfigOnce.Do(func() {
		globalConfigMu.RLock()
		present := globalConfig != nil
		globalConfigMu.RUnlock()
		if present {
			return
		}
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
			cfg, _ = finalize(Default())
		}
		globalConfig = cfg
	})

	globalConfigMu.RLock()
	defer globalConfigMu.RUnlock()
	return globalConfig
}

// SetGlobal replaces the global configuration instance.
func SetGlobal(cfg *Config) {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
}

// ResetGlobalForTesting resets global config state between test runs.
func ResetGlobalForTesting() {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = nil
	globalConfigOnce = sync.Once{}
}
