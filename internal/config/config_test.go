package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadExpandsEnv(t *testing.T) {
	t.Setenv("ANOTA_TEST_KEY", "sk-from-env")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
provider:
  api_key: ${ANOTA_TEST_KEY}
  worker_model: gpt-4o
listen:
  port: 9090
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Provider.APIKey != "sk-from-env" {
		t.Errorf("APIKey = %q, want %q", cfg.Provider.APIKey, "sk-from-env")
	}
	if cfg.Listen.Port != 9090 {
		t.Errorf("Listen.Port = %d, want 9090", cfg.Listen.Port)
	}
	// Unset fields keep defaults.
	if cfg.Provider.RouterModel == "" {
		t.Error("RouterModel should default, got empty")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(c *Config) { c.Provider.APIKey = "k" }, wantErr: false},
		{name: "missing api key", mutate: func(c *Config) {}, wantErr: true},
		{
			name: "gateway enabled without urls",
			mutate: func(c *Config) {
				c.Provider.APIKey = "k"
				c.Gateway.Enabled = true
			},
			wantErr: true,
		},
		{
			name: "gateway enabled with urls",
			mutate: func(c *Config) {
				c.Provider.APIKey = "k"
				c.Gateway.Enabled = true
				c.Gateway.EventsURL = "ws://gw/events"
				c.Gateway.SendURL = "http://gw/send"
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSessionIdleTimeout(t *testing.T) {
	var s SessionConfig
	if got := s.IdleTimeout(); got != 60*time.Minute {
		t.Errorf("default IdleTimeout() = %v, want 60m", got)
	}

	s.IdleTimeoutMinutes = 15
	if got := s.IdleTimeout(); got != 15*time.Minute {
		t.Errorf("IdleTimeout() = %v, want 15m", got)
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{in: "", want: slog.LevelInfo},
		{in: "info", want: slog.LevelInfo},
		{in: "TRACE", want: LevelTrace},
		{in: " debug ", want: slog.LevelDebug},
		{in: "warning", want: slog.LevelWarn},
		{in: "error", want: slog.LevelError},
		{in: "verbose", want: slog.LevelInfo, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLogLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLogLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
