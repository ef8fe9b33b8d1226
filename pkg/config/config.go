package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Log         struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
	} `yaml:"log"`
	Server struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	MarketData struct {
		BaseURL         string        `yaml:"base_url"`
		APIKey          string        `yaml:"api_key"`
		WebSocketURL    string        `yaml:"websocket_url"`
		Timeout         time.Duration `yaml:"timeout"`
		DailyLookback   int           `yaml:"daily_lookback"`
		RateLimitPerSec float64       `yaml:"rate_limit_per_sec"`
		RateBurst       float64       `yaml:"rate_burst"`
		FetchWorkers    int           `yaml:"fetch_workers"`
		StaticCacheTTL  time.Duration `yaml:"static_cache_ttl"`
		ReconnectDelay  time.Duration `yaml:"reconnect_delay"`
		PingInterval    time.Duration `yaml:"ping_interval"`
	} `yaml:"market_data"`
	Regime struct {
		VolatilityTicker string  `yaml:"volatility_ticker"`
		RateTicker       string  `yaml:"rate_ticker"`
		FallbackVol      float64 `yaml:"fallback_vol"`
		FallbackRate     float64 `yaml:"fallback_rate"`
	} `yaml:"regime"`
	Universe struct {
		Core      []string `yaml:"core"`
		Defensive []string `yaml:"defensive"`
		Index     string   `yaml:"index"`
		RemoteURL string   `yaml:"remote_url"`
		Exclude   []string `yaml:"exclude"`
	} `yaml:"universe"`
	Selector struct {
		URL         string        `yaml:"url"`
		APIKey      string        `yaml:"api_key"`
		Model       string        `yaml:"model"`
		Timeout     time.Duration `yaml:"timeout"`
		MaxAttempts int           `yaml:"max_attempts"`
		BackoffBase time.Duration `yaml:"backoff_base"`
		FailClosed  bool          `yaml:"fail_closed"`
	} `yaml:"selector"`
	Charts struct {
		RenderURL string        `yaml:"render_url"`
		Window    int           `yaml:"window"`
		Timeout   time.Duration `yaml:"timeout"`
	} `yaml:"charts"`
	Risk struct {
		TotalCapital        float64 `yaml:"total_capital"`
		TargetProfitUSD     float64 `yaml:"target_profit_usd"`
		SlotCapitalFraction float64 `yaml:"slot_capital_fraction"`
		MaxRiskFraction     float64 `yaml:"max_risk_fraction"`
		MaxGapUpPct         float64 `yaml:"max_gap_up_pct"`
		VolKillSwitch       float64 `yaml:"vol_kill_switch"`
		ElevatedVol         float64 `yaml:"elevated_vol"`
	} `yaml:"risk"`
	Scan struct {
		Workers int           `yaml:"workers"`
		Window  time.Duration `yaml:"window"`
	} `yaml:"scan"`
	Telegram struct {
		Enabled bool   `yaml:"enabled"`
		Token   string `yaml:"token"`
		ChatID  string `yaml:"chat_id"`
	} `yaml:"telegram"`
	Kafka struct {
		Enabled      bool          `yaml:"enabled"`
		Brokers      []string      `yaml:"brokers"`
		Topic        string        `yaml:"topic"`
		RequiredAcks int           `yaml:"required_acks"`
		Compression  string        `yaml:"compression"`
		MaxAttempts  int           `yaml:"max_attempts"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
		ReadTimeout  time.Duration `yaml:"read_timeout"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Enabled      bool          `yaml:"enabled"`
		Host         string        `yaml:"host"`
		Port         int           `yaml:"port"`
		Database     string        `yaml:"database"`
		User         string        `yaml:"user"`
		Password     string        `yaml:"password"`
		AsyncInsert  bool          `yaml:"async_insert"`
		WaitForAsync bool          `yaml:"wait_for_async_insert"`
		DialTimeout  time.Duration `yaml:"dial_timeout"`
		ReadTimeout  time.Duration `yaml:"read_timeout"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
	} `yaml:"clickhouse"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Queue struct {
		Workers    int           `yaml:"workers"`
		RetryLimit int           `yaml:"retry_limit"`
		RetryDelay time.Duration `yaml:"retry_delay"`
	} `yaml:"queue"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides secrets and endpoints
// with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("MARKETDATA_API_KEY"); v != "" {
		c.MarketData.APIKey = v
	}
	if v := os.Getenv("SELECTOR_API_KEY"); v != "" {
		c.Selector.APIKey = v
	}
	if v := os.Getenv("TELEGRAM_TOKEN"); v != "" {
		c.Telegram.Token = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		c.Telegram.ChatID = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}

	return c, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.MarketData.BaseURL == "" {
		return fmt.Errorf("market_data.base_url is required")
	}
	if len(c.Universe.Core) == 0 {
		return fmt.Errorf("universe.core cannot be empty")
	}
	if c.Universe.Index == "" {
		return fmt.Errorf("universe.index is required")
	}
	if c.Risk.TotalCapital <= 0 {
		return fmt.Errorf("risk.total_capital must be positive")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers required when kafka is enabled")
	}
	if c.ClickHouse.Enabled && c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host required when clickhouse is enabled")
	}
	return nil
}
