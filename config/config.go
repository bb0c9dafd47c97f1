// Package config defines the ranked daemon configuration and client paths.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// AppName is the application directory name.
const AppName = "ranked"

// Config is the top-level daemon configuration.
type Config struct {
	Server   ServerConfig  `json:"server" yaml:"server" toml:"server"`
	Gateway  GatewayConfig `json:"gateway" yaml:"gateway" toml:"gateway"`
	Reorder  ReorderConfig `json:"reorder" yaml:"reorder" toml:"reorder"`
	LogLevel string        `json:"log_level" yaml:"log_level" toml:"log_level"`
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Addr string `json:"addr" yaml:"addr" toml:"addr"` // listen address, e.g., ":9090"
}

// GatewayConfig selects and configures the remote model.
type GatewayConfig struct {
	Provider  string        `json:"provider" yaml:"provider" toml:"provider"` // "gemini", "anthropic", "openai", "mock"
	Model     string        `json:"model,omitempty" yaml:"model" toml:"model"`
	BaseURL   string        `json:"base_url,omitempty" yaml:"base_url" toml:"base_url"`
	APIKeyEnv string        `json:"api_key_env" yaml:"api_key_env" toml:"api_key_env"` // env var holding the credential
	Timeout   time.Duration `json:"timeout" yaml:"timeout" toml:"timeout"`
	// Credentials is "api_key" (default) or "adc" to authenticate Gemini with
	// Google Application Default Credentials instead of APIKeyEnv.
	Credentials string `json:"credentials,omitempty" yaml:"credentials" toml:"credentials"`
	// MockReplies scripts the mock provider.
	MockReplies []string `json:"mock_replies,omitempty" yaml:"mock_replies" toml:"mock_replies"`
}

// ReorderConfig tunes the reorder endpoint.
type ReorderConfig struct {
	// FallbackOnUpstreamError answers 200 with the new task appended when the
	// gateway fails, instead of 500.
	FallbackOnUpstreamError bool `json:"fallback_on_upstream_error" yaml:"fallback_on_upstream_error" toml:"fallback_on_upstream_error"`
	// HistorySize caps the number of reorder outcomes kept for GET /api/reorders.
	HistorySize int `json:"history_size" yaml:"history_size" toml:"history_size"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr: ":9090",
		},
		Gateway: GatewayConfig{
			Provider:  "gemini",
			Model:     "gemini-1.5-flash",
			APIKeyEnv: "GOOGLE_GEMINI_API_KEY",
			Timeout:   30 * time.Second,
		},
		Reorder: ReorderConfig{
			HistorySize: 200,
		},
		LogLevel: "info",
	}
}

// Load reads a config file and returns the parsed configuration. Files ending
// in .toml are decoded as TOML, everything else as YAML.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := DefaultConfig()
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		err = toml.Unmarshal(data, cfg)
	} else {
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// UsesADC reports whether the gateway authenticates with Application Default
// Credentials.
func (g GatewayConfig) UsesADC() bool {
	return strings.EqualFold(g.Credentials, "adc")
}

// APIKey returns the gateway credential from the environment, or "" when unset.
func (g GatewayConfig) APIKey() string {
	if g.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(g.APIKeyEnv)
}

// Level maps LogLevel onto a slog level. Unknown values mean info.
func (c *Config) Level() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// DefaultDataDir returns the client data directory.
// Uses XDG_DATA_HOME if set, otherwise $HOME/.local/share.
func DefaultDataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, AppName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return AppName
	}
	return filepath.Join(home, ".local", "share", AppName)
}

// DefaultStorePath returns the path of the client task database.
func DefaultStorePath() string {
	return filepath.Join(DefaultDataDir(), "tasks.db")
}
