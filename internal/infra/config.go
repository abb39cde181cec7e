package infra

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"sudo_thrust/internal/domain"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultUserAgent is a browser-like user agent string to avoid bot detection
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// Config holds all application settings.
// After LoadConfig reads the file, secrets are overridden from the environment.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
		DataDir string `yaml:"data_dir"` // empty = per-user config dir
	} `yaml:"app"`

	API struct {
		Bluefin struct {
			RestURLs          []string `yaml:"rest_urls"`
			WSURL             string   `yaml:"ws_url"`
			Channel           string   `yaml:"channel"`
			PollIntervalMS    int      `yaml:"poll_interval_ms"`
			APIKey            string   `yaml:"api_key"`
			APISecret         string   `yaml:"api_secret"`
			RequestsPerSecond float64  `yaml:"requests_per_second"`
		} `yaml:"bluefin"`
	} `yaml:"api"`

	Feed struct {
		Transport        string  `yaml:"transport"` // ws | poll | none
		MaxAttempts      int     `yaml:"max_attempts"`
		ReconnectDelayMS int     `yaml:"reconnect_delay_ms"`
		SimMinIntervalMS int     `yaml:"sim_min_interval_ms"`
		SimMaxIntervalMS int     `yaml:"sim_max_interval_ms"`
		SimMaxStepPct    float64 `yaml:"sim_max_step_pct"`
		PriceWindow      int     `yaml:"price_window"`
		TradeWindow      int     `yaml:"trade_window"`
	} `yaml:"feed"`

	Trading struct {
		InitialCapital   float64 `yaml:"initial_capital"`
		MaxLeverage      int     `yaml:"max_leverage"`
		DefaultSymbol    string  `yaml:"default_symbol"`
		BackendTimeoutMS int     `yaml:"backend_timeout_ms"`
		AccountSyncSpec  string  `yaml:"account_sync_spec"`
		RequireWallet    bool    `yaml:"require_wallet"`
		WalletAddress    string  `yaml:"wallet_address"`
	} `yaml:"trading"`

	Trend struct {
		ShortPeriod int `yaml:"short_period"`
		LongPeriod  int `yaml:"long_period"`
	} `yaml:"trend"`

	Notify struct {
		Threshold float64 `yaml:"threshold"`
		DisplayMS int     `yaml:"display_ms"`
	} `yaml:"notify"`

	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`

	Logging struct {
		Level string `yaml:"level"`
		Dir   string `yaml:"dir"`
	} `yaml:"logging"`
}

// LoadConfig reads and parses the config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", path, domain.ErrConfigNotFound)
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, &domain.ConfigError{Field: "yaml", Err: err}
	}

	// .env is optional; real environment variables win over it.
	_ = godotenv.Load()
	overrideWithEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a config with every optional value filled in.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.App.Name = "thrust"
	cfg.App.Version = "0.1.0"
	cfg.API.Bluefin.RestURLs = []string{
		"https://dapi.api.sui-prod.bluefin.io",
		"https://api.sui-prod.bluefin.io",
	}
	cfg.API.Bluefin.WSURL = "wss://notifications.api.sui-prod.bluefin.io/"
	cfg.API.Bluefin.Channel = "globalUpdates"
	cfg.API.Bluefin.PollIntervalMS = 2000
	cfg.API.Bluefin.RequestsPerSecond = 5
	cfg.Feed.Transport = "ws"
	cfg.Feed.MaxAttempts = 5
	cfg.Feed.ReconnectDelayMS = 3000
	cfg.Feed.SimMinIntervalMS = 2000
	cfg.Feed.SimMaxIntervalMS = 5000
	cfg.Feed.SimMaxStepPct = 0.2
	cfg.Feed.PriceWindow = 300
	cfg.Feed.TradeWindow = 50
	cfg.Trading.InitialCapital = 1000
	cfg.Trading.MaxLeverage = domain.MaxLeverage
	cfg.Trading.DefaultSymbol = "ETH-PERP"
	cfg.Trading.BackendTimeoutMS = 5000
	cfg.Trading.AccountSyncSpec = "@every 10s"
	cfg.Trend.ShortPeriod = 7
	cfg.Trend.LongPeriod = 25
	cfg.Notify.Threshold = 10
	cfg.Notify.DisplayMS = 2000
	cfg.Server.Addr = ":8080"
	cfg.Logging.Level = "info"
	cfg.Logging.Dir = "logs"
	return cfg
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	b := c.API.Bluefin
	if len(b.RestURLs) == 0 {
		return &domain.ConfigError{Field: "api.bluefin.rest_urls", Err: errors.New("at least one endpoint is required")}
	}
	for _, u := range b.RestURLs {
		if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
			return &domain.ConfigError{Field: "api.bluefin.rest_urls", Err: fmt.Errorf("invalid URL: %s", u)}
		}
	}

	switch c.Feed.Transport {
	case "ws":
		if !strings.HasPrefix(b.WSURL, "ws://") && !strings.HasPrefix(b.WSURL, "wss://") {
			return &domain.ConfigError{Field: "api.bluefin.ws_url", Err: fmt.Errorf("invalid WS URL: %s", b.WSURL)}
		}
	case "poll":
		if b.PollIntervalMS <= 0 {
			return &domain.ConfigError{Field: "api.bluefin.poll_interval_ms", Err: errors.New("must be positive")}
		}
	case "none":
	default:
		return &domain.ConfigError{Field: "feed.transport", Err: fmt.Errorf("unknown transport %q", c.Feed.Transport)}
	}

	if c.Feed.MaxAttempts <= 0 {
		return &domain.ConfigError{Field: "feed.max_attempts", Err: errors.New("must be positive")}
	}
	if c.Feed.SimMinIntervalMS <= 0 || c.Feed.SimMaxIntervalMS < c.Feed.SimMinIntervalMS {
		return &domain.ConfigError{Field: "feed.sim_interval", Err: errors.New("need 0 < min <= max")}
	}
	if c.SimMaxInterval() > domain.MaxSimulatedTickInterval {
		return &domain.ConfigError{Field: "feed.sim_max_interval_ms", Err: fmt.Errorf("must not exceed %s", domain.MaxSimulatedTickInterval)}
	}
	if c.Trading.InitialCapital < 0 {
		return &domain.ConfigError{Field: "trading.initial_capital", Err: errors.New("must not be negative")}
	}
	if c.Trading.MaxLeverage < 1 || c.Trading.MaxLeverage > domain.MaxLeverage {
		return &domain.ConfigError{Field: "trading.max_leverage", Err: fmt.Errorf("must be within 1..%d", domain.MaxLeverage)}
	}
	if c.Trading.BackendTimeoutMS <= 0 {
		return &domain.ConfigError{Field: "trading.backend_timeout_ms", Err: errors.New("must be positive")}
	}
	if c.Trend.ShortPeriod < 1 || c.Trend.ShortPeriod >= c.Trend.LongPeriod {
		return &domain.ConfigError{Field: "trend", Err: errors.New("need 1 <= short_period < long_period")}
	}
	if c.Notify.Threshold <= 0 || c.Notify.DisplayMS <= 0 {
		return &domain.ConfigError{Field: "notify", Err: errors.New("threshold and display_ms must be positive")}
	}
	if c.Server.Addr == "" {
		return &domain.ConfigError{Field: "server.addr", Err: errors.New("required")}
	}

	return nil
}

// Duration helpers

func (c *Config) ReconnectDelay() time.Duration {
	return time.Duration(c.Feed.ReconnectDelayMS) * time.Millisecond
}

func (c *Config) SimMinInterval() time.Duration {
	return time.Duration(c.Feed.SimMinIntervalMS) * time.Millisecond
}

func (c *Config) SimMaxInterval() time.Duration {
	return time.Duration(c.Feed.SimMaxIntervalMS) * time.Millisecond
}

func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.API.Bluefin.PollIntervalMS) * time.Millisecond
}

func (c *Config) BackendTimeout() time.Duration {
	return time.Duration(c.Trading.BackendTimeoutMS) * time.Millisecond
}

func (c *Config) FlashDisplay() time.Duration {
	return time.Duration(c.Notify.DisplayMS) * time.Millisecond
}

// overrideWithEnv overrides values with environment variables when present.
func overrideWithEnv(cfg *Config) {
	if key := os.Getenv("THRUST_BLUEFIN_KEY"); key != "" {
		cfg.API.Bluefin.APIKey = key
	}
	if secret := os.Getenv("THRUST_BLUEFIN_SECRET"); secret != "" {
		cfg.API.Bluefin.APISecret = secret
	}
	if addr := os.Getenv("THRUST_WALLET_ADDRESS"); addr != "" {
		cfg.Trading.WalletAddress = addr
	}
	if addr := os.Getenv("THRUST_HTTP_ADDR"); addr != "" {
		cfg.Server.Addr = addr
	}
}
