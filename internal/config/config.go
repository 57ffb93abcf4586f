// Package config handles Anota configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./config.yaml, ~/.config/anota/config.yaml, /etc/anota/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"config.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "anota", "config.yaml"))
	}

	paths = append(paths, "/etc/anota/config.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
// Returns the path found, or an error if nothing was found.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all Anota configuration.
type Config struct {
	Listen   ListenConfig   `yaml:"listen"`
	Provider ProviderConfig `yaml:"provider"`
	Gateway  GatewayConfig  `yaml:"gateway"`
	Session  SessionConfig  `yaml:"session"`
	DataDir  string         `yaml:"data_dir"`
	LogLevel string         `yaml:"log_level"`
}

// ListenConfig defines the first-party API server settings.
type ListenConfig struct {
	Address string `yaml:"address"` // Bind address (default: "" = all interfaces)
	Port    int    `yaml:"port"`
}

// ProviderConfig defines the LLM provider connection and model selection.
type ProviderConfig struct {
	BaseURL string `yaml:"base_url"` // OpenAI-compatible endpoint
	APIKey  string `yaml:"api_key"`

	// WorkerModel handles tool-calling turns. RouterModel is the cheap
	// classifier; RouterFallbackModel is tried once when it fails.
	WorkerModel         string `yaml:"worker_model"`
	RouterModel         string `yaml:"router_model"`
	RouterFallbackModel string `yaml:"router_fallback_model"`
}

// GatewayConfig defines the messaging gateway connection.
type GatewayConfig struct {
	Enabled bool `yaml:"enabled"`
	// EventsURL is the WebSocket endpoint that streams inbound message
	// events. SendURL receives outbound text replies via POST.
	EventsURL string `yaml:"events_url"`
	SendURL   string `yaml:"send_url"`
	Token     string `yaml:"token"`
	// RateLimit is messages per sender per minute; 0 = unlimited.
	RateLimit int `yaml:"rate_limit"`
}

// SessionConfig defines conversation lifecycle settings.
type SessionConfig struct {
	// IdleTimeoutMinutes archives a session idle longer than this.
	// Zero means the 60-minute default.
	IdleTimeoutMinutes int `yaml:"idle_timeout_minutes"`
}

// IdleTimeout returns the configured idle timeout as a duration.
func (s SessionConfig) IdleTimeout() time.Duration {
	if s.IdleTimeoutMinutes <= 0 {
		return 60 * time.Minute
	}
	return time.Duration(s.IdleTimeoutMinutes) * time.Minute
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns a default configuration.
func Default() *Config {
	return &Config{
		Listen: ListenConfig{Port: 8080},
		Provider: ProviderConfig{
			BaseURL:             "https://api.openai.com/v1",
			WorkerModel:         "gpt-4o",
			RouterModel:         "gpt-4o-mini",
			RouterFallbackModel: "gpt-4o",
		},
		DataDir: "data",
	}
}

// Validate checks that required settings are present.
// A missing provider credential is a configuration error: the pipeline
// cannot produce a single reply without it.
func (c *Config) Validate() error {
	if c.Provider.APIKey == "" {
		return fmt.Errorf("provider.api_key is required")
	}
	if c.Provider.WorkerModel == "" {
		return fmt.Errorf("provider.worker_model is required")
	}
	if c.Gateway.Enabled {
		if c.Gateway.EventsURL == "" {
			return fmt.Errorf("gateway.events_url is required when gateway is enabled")
		}
		if c.Gateway.SendURL == "" {
			return fmt.Errorf("gateway.send_url is required when gateway is enabled")
		}
	}
	return nil
}
