package infra

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"sudo_thrust/internal/domain"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoadConfig_DefaultsAndOverrides(t *testing.T) {
	path := writeConfig(t, `
app:
  name: thrust-test
feed:
  transport: poll
  max_attempts: 2
trading:
  initial_capital: 2500
  default_symbol: BTC-PERP
`)
	t.Setenv("THRUST_BLUEFIN_KEY", "env-key")
	t.Setenv("THRUST_BLUEFIN_SECRET", "env-secret")
	t.Setenv("THRUST_HTTP_ADDR", "127.0.0.1:9999")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.App.Name != "thrust-test" {
		t.Errorf("Expected name thrust-test, got %s", cfg.App.Name)
	}
	if cfg.Feed.Transport != "poll" || cfg.Feed.MaxAttempts != 2 {
		t.Errorf("Feed section not applied: %+v", cfg.Feed)
	}
	if cfg.Trading.InitialCapital != 2500 || cfg.Trading.DefaultSymbol != "BTC-PERP" {
		t.Errorf("Trading section not applied: %+v", cfg.Trading)
	}

	// Defaults survive for keys absent from the file.
	if cfg.Notify.Threshold != 10 || cfg.FlashDisplay() != 2*time.Second {
		t.Errorf("Expected notify defaults, got %+v", cfg.Notify)
	}
	if cfg.Trading.AccountSyncSpec != "@every 10s" {
		t.Errorf("Expected default sync spec, got %q", cfg.Trading.AccountSyncSpec)
	}
	if len(cfg.API.Bluefin.RestURLs) != 2 {
		t.Errorf("Expected 2 default endpoints, got %v", cfg.API.Bluefin.RestURLs)
	}

	if cfg.API.Bluefin.APIKey != "env-key" || cfg.API.Bluefin.APISecret != "env-secret" {
		t.Error("Expected secrets from environment")
	}
	if cfg.Server.Addr != "127.0.0.1:9999" {
		t.Errorf("Expected addr from environment, got %s", cfg.Server.Addr)
	}
}

func TestLoadConfig_Missing(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	if !errors.Is(err, domain.ErrConfigNotFound) {
		t.Errorf("Expected ErrConfigNotFound, got %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		field  string
	}{
		{"no endpoints", func(c *Config) { c.API.Bluefin.RestURLs = nil }, "api.bluefin.rest_urls"},
		{"bad endpoint", func(c *Config) { c.API.Bluefin.RestURLs = []string{"ftp://x"} }, "api.bluefin.rest_urls"},
		{"bad ws url", func(c *Config) { c.API.Bluefin.WSURL = "http://x" }, "api.bluefin.ws_url"},
		{"unknown transport", func(c *Config) { c.Feed.Transport = "carrier-pigeon" }, "feed.transport"},
		{"sim interval", func(c *Config) { c.Feed.SimMaxIntervalMS = 1000 }, "feed.sim_interval"},
		{"sim interval too slow", func(c *Config) { c.Feed.SimMaxIntervalMS = 60000 }, "feed.sim_max_interval_ms"},
		{"leverage", func(c *Config) { c.Trading.MaxLeverage = 100 }, "trading.max_leverage"},
		{"negative capital", func(c *Config) { c.Trading.InitialCapital = -1 }, "trading.initial_capital"},
		{"trend periods", func(c *Config) { c.Trend.ShortPeriod = 30 }, "trend"},
		{"no addr", func(c *Config) { c.Server.Addr = "" }, "server.addr"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			var ce *domain.ConfigError
			if !errors.As(err, &ce) {
				t.Fatalf("Expected ConfigError, got %v", err)
			}
			if ce.Field != tt.field {
				t.Errorf("Expected field %s, got %s", tt.field, ce.Field)
			}
		})
	}

	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("Default config should be valid: %v", err)
	}
}

func TestParseLevel(t *testing.T) {
	if ParseLevel("debug") != slog.LevelDebug || ParseLevel("warn") != slog.LevelWarn {
		t.Error("Known levels not mapped")
	}
	if ParseLevel("loud") != slog.LevelInfo {
		t.Error("Unknown level should map to info")
	}
}
