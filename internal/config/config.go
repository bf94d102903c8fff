package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/okorie22/Okorie-AI-sub005/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App         AppConfig         `mapstructure:"app"`
	Logging     logging.Config    `mapstructure:"logging"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Scheduler   SchedulerConfig   `mapstructure:"scheduler"`
	Liquidation LiquidationConfig `mapstructure:"liquidation"`
	Rates       RatesConfig       `mapstructure:"rates"`
	Arbitrage   ArbitrageConfig   `mapstructure:"arbitrage"`
	Alerting    AlertingConfig    `mapstructure:"alerting"`
	Narrator    NarratorConfig    `mapstructure:"narrator"`
	Ethereum    EthereumConfig    `mapstructure:"ethereum"`
	Export      ExportConfig      `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates the local SQLite file.
type DatabaseConfig struct {
	Path        string `mapstructure:"path"`
	BusyTimeout int    `mapstructure:"busy_timeout_ms"`
	// Retention bounds the alert audit trail and rate history. Zero disables
	// trimming.
	Retention time.Duration `mapstructure:"retention"`
}

// SchedulerConfig governs polling cadence.
type SchedulerConfig struct {
	Interval     time.Duration `mapstructure:"interval"`
	AlignToStart bool          `mapstructure:"align_to_start"`
	StartupDelay time.Duration `mapstructure:"startup_delay"`
	SymbolDelay  time.Duration `mapstructure:"symbol_delay"`
	ErrorBackoff time.Duration `mapstructure:"error_backoff"`
}

// LiquidationConfig tunes the liquidation spike monitor.
type LiquidationConfig struct {
	Symbols          []string      `mapstructure:"symbols"`
	Threshold        float64       `mapstructure:"threshold"`
	ComparisonWindow time.Duration `mapstructure:"comparison_window"`
	// Retention bounds how long collector events are kept before the run loop
	// trims them. Zero disables trimming.
	Retention time.Duration `mapstructure:"retention"`
}

// ProtocolConfig 描述单个协议的风险与数据来源。
type ProtocolConfig struct {
	RiskLevel string `mapstructure:"risk_level"`
	RatesURL  string `mapstructure:"rates_url"`
	Contract  string `mapstructure:"contract"`
}

// RatesConfig tunes the cross-protocol rate monitor.
type RatesConfig struct {
	Protocols      map[string]ProtocolConfig `mapstructure:"protocols"`
	CacheTTL       time.Duration             `mapstructure:"cache_ttl"`
	MoveThreshold  float64                   `mapstructure:"move_threshold"`
	HistoryPoints  int                       `mapstructure:"history_points"`
	RequestTimeout time.Duration             `mapstructure:"request_timeout"`
}

// ArbitrageConfig tunes the opportunity scorer.
type ArbitrageConfig struct {
	MinSpread   float64 `mapstructure:"min_spread"`
	NotionalUSD float64 `mapstructure:"notional_usd"`
}

// AlertingConfig defines alert routing and de-duplication.
type AlertingConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Cooldown time.Duration `mapstructure:"cooldown"`
	Channel  string        `mapstructure:"channel"`
	Redis    RedisConfig   `mapstructure:"redis"`
}

// RedisConfig 描述事件总线连接参数。
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// NarratorConfig covers the optional AI narration call.
type NarratorConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	BaseURL        string        `mapstructure:"base_url"`
	APIKey         string        `mapstructure:"api_key"`
	Model          string        `mapstructure:"model"`
	Temperature    float64       `mapstructure:"temperature"`
	MaxTokens      int           `mapstructure:"max_tokens"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// EthereumConfig covers on-chain rate access.
type EthereumConfig struct {
	RPCURL         string        `mapstructure:"rpc_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("MARKETWATCHER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "marketwatcher")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.service", "marketwatcher")

	v.SetDefault("database.path", "data/marketwatcher.db")
	v.SetDefault("database.busy_timeout_ms", 5000)
	v.SetDefault("database.retention", "720h")

	v.SetDefault("scheduler.interval", "5m")
	v.SetDefault("scheduler.align_to_start", true)
	v.SetDefault("scheduler.startup_delay", "0s")
	v.SetDefault("scheduler.symbol_delay", "2s")
	v.SetDefault("scheduler.error_backoff", "60s")

	v.SetDefault("liquidation.symbols", []string{"BTC", "ETH", "SOL"})
	v.SetDefault("liquidation.threshold", 0.5)
	v.SetDefault("liquidation.comparison_window", "15m")
	v.SetDefault("liquidation.retention", "72h")

	v.SetDefault("rates.cache_ttl", "5m")
	v.SetDefault("rates.move_threshold", 0.5)
	v.SetDefault("rates.history_points", 100)
	v.SetDefault("rates.request_timeout", "10s")

	v.SetDefault("arbitrage.min_spread", 0.03)
	v.SetDefault("arbitrage.notional_usd", 10000.0)

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.cooldown", "24h")
	v.SetDefault("alerting.channel", "market_alert")
	v.SetDefault("alerting.redis.addr", "localhost:6379")
	v.SetDefault("alerting.redis.db", 0)

	v.SetDefault("narrator.enabled", false)
	v.SetDefault("narrator.base_url", "https://api.deepseek.com")
	v.SetDefault("narrator.model", "deepseek-chat")
	v.SetDefault("narrator.temperature", 0.7)
	v.SetDefault("narrator.max_tokens", 300)
	v.SetDefault("narrator.request_timeout", "30s")

	v.SetDefault("ethereum.request_timeout", "10s")

	v.SetDefault("export.max_data_points", 100000)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than zero")
	}
	if c.Liquidation.Threshold < 0 {
		return fmt.Errorf("liquidation.threshold cannot be negative")
	}
	if c.Liquidation.ComparisonWindow <= 0 {
		return fmt.Errorf("liquidation.comparison_window must be greater than zero")
	}
	if c.Liquidation.Retention > 0 && c.Liquidation.Retention < c.Liquidation.ComparisonWindow {
		return fmt.Errorf("liquidation.retention must cover the comparison window")
	}
	if c.Rates.MoveThreshold < 0 {
		return fmt.Errorf("rates.move_threshold cannot be negative")
	}
	if c.Arbitrage.MinSpread < 0 {
		return fmt.Errorf("arbitrage.min_spread cannot be negative")
	}
	if c.Arbitrage.NotionalUSD <= 0 {
		return fmt.Errorf("arbitrage.notional_usd must be greater than zero")
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.Alerting.Enabled && c.Alerting.Redis.Addr == "" {
		return fmt.Errorf("alerting.redis.addr 必须配置")
	}
	if c.Narrator.Enabled && c.Narrator.APIKey == "" {
		return fmt.Errorf("narrator.api_key 必须配置")
	}
	for name, proto := range c.Rates.Protocols {
		if proto.RiskLevel == "" {
			continue
		}
		switch proto.RiskLevel {
		case "low", "medium", "medium_high", "high":
		default:
			return fmt.Errorf("rates.protocols.%s.risk_level 不合法: %s", name, proto.RiskLevel)
		}
	}
	return nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
