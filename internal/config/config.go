package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/newthinker/quantbench/internal/core"
	"github.com/newthinker/quantbench/internal/strategy"
	"github.com/newthinker/quantbench/internal/strategy/ma_crossover"
	"github.com/newthinker/quantbench/internal/strategy/mean_reversion"
	"github.com/newthinker/quantbench/internal/strategy/rsi_trend"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// DateLayout is the calendar date format used in configuration and caches.
const DateLayout = "2006-01-02"

type Config struct {
	Log        LogConfig                 `mapstructure:"log" yaml:"log"`
	Data       DataConfig                `mapstructure:"data" yaml:"data"`
	Collectors CollectorsConfig          `mapstructure:"collectors" yaml:"collectors"`
	Storage    StorageConfig             `mapstructure:"storage" yaml:"storage"`
	Capital    CapitalConfig             `mapstructure:"capital" yaml:"capital"`
	Strategies StrategiesConfig          `mapstructure:"strategies" yaml:"strategies"`
	Backtest   BacktestConfig            `mapstructure:"backtest" yaml:"backtest"`
	Broker     BrokerConfig              `mapstructure:"broker" yaml:"broker"`
	Notifiers  map[string]NotifierConfig `mapstructure:"notifiers" yaml:"notifiers"`
	Metrics    MetricsConfig             `mapstructure:"metrics" yaml:"metrics"`
	Watchlist  []core.Instrument         `mapstructure:"watchlist" yaml:"watchlist"`
}

type LogConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Development bool   `mapstructure:"development" yaml:"development"`
}

// DataConfig selects where price history comes from.
type DataConfig struct {
	Provider  string `mapstructure:"provider" yaml:"provider"` // "alpaca" or "yahoo"
	StartDate string `mapstructure:"start_date" yaml:"start_date"`
}

// Start parses StartDate.
func (d DataConfig) Start() (time.Time, error) {
	return time.Parse(DateLayout, d.StartDate)
}

type CollectorsConfig struct {
	Alpaca AlpacaDataConfig `mapstructure:"alpaca" yaml:"alpaca"`
	Yahoo  YahooConfig      `mapstructure:"yahoo" yaml:"yahoo"`
}

type AlpacaDataConfig struct {
	BaseURL    string `mapstructure:"base_url" yaml:"base_url"`
	APIKey     string `mapstructure:"api_key" yaml:"api_key"`
	APISecret  string `mapstructure:"api_secret" yaml:"api_secret"`
	TimeoutSec int    `mapstructure:"timeout_sec" yaml:"timeout_sec"`
}

type YahooConfig struct {
	BaseURL    string `mapstructure:"base_url" yaml:"base_url"`
	TimeoutSec int    `mapstructure:"timeout_sec" yaml:"timeout_sec"`
}

type StorageConfig struct {
	Archive ArchiveConfig `mapstructure:"archive" yaml:"archive"`
	Journal JournalConfig `mapstructure:"journal" yaml:"journal"`
}

// ArchiveConfig holds the blob store used for the price cache and run results.
type ArchiveConfig struct {
	Type  string      `mapstructure:"type" yaml:"type"` // "localfs", "s3" or "redis"
	Path  string      `mapstructure:"path" yaml:"path"` // For localfs
	S3    S3Config    `mapstructure:"s3" yaml:"s3"`
	Redis RedisConfig `mapstructure:"redis" yaml:"redis"`
}

type S3Config struct {
	Bucket    string `mapstructure:"bucket" yaml:"bucket"`
	Endpoint  string `mapstructure:"endpoint" yaml:"endpoint"`
	Region    string `mapstructure:"region" yaml:"region"`
	AccessKey string `mapstructure:"access_key" yaml:"access_key"`
	SecretKey string `mapstructure:"secret_key" yaml:"secret_key"`
	Prefix    string `mapstructure:"prefix" yaml:"prefix"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr" yaml:"addr"`
	Password string `mapstructure:"password" yaml:"password"`
	DB       int    `mapstructure:"db" yaml:"db"`
	Prefix   string `mapstructure:"prefix" yaml:"prefix"`
}

// JournalConfig enables the SQLite record of runs and results.
type JournalConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// CapitalConfig is shared by every strategy.
type CapitalConfig struct {
	Initial      float64 `mapstructure:"initial" yaml:"initial"`
	PositionSize float64 `mapstructure:"position_size" yaml:"position_size"`
}

type StrategiesConfig struct {
	MeanReversion MeanReversionConfig `mapstructure:"mean_reversion" yaml:"mean_reversion"`
	MACrossover   MACrossoverConfig   `mapstructure:"ma_crossover" yaml:"ma_crossover"`
	RSITrend      RSITrendConfig      `mapstructure:"rsi_trend" yaml:"rsi_trend"`
}

// ExitConfig holds the per-strategy exit and sizing rules.
type ExitConfig struct {
	StopLoss   float64 `mapstructure:"stop_loss" yaml:"stop_loss"`
	TakeProfit float64 `mapstructure:"take_profit" yaml:"take_profit"`
	Sizing     string  `mapstructure:"sizing" yaml:"sizing"` // "compounding" or "fixed"
}

type MeanReversionConfig struct {
	Enabled    bool    `mapstructure:"enabled" yaml:"enabled"`
	Lookback   int     `mapstructure:"lookback" yaml:"lookback"`
	ZThreshold float64 `mapstructure:"z_threshold" yaml:"z_threshold"`
	ExitConfig `mapstructure:",squash" yaml:",inline"`
}

type MACrossoverConfig struct {
	Enabled    bool `mapstructure:"enabled" yaml:"enabled"`
	FastPeriod int  `mapstructure:"fast_period" yaml:"fast_period"`
	SlowPeriod int  `mapstructure:"slow_period" yaml:"slow_period"`
	ExitConfig `mapstructure:",squash" yaml:",inline"`
}

type RSITrendConfig struct {
	Enabled     bool    `mapstructure:"enabled" yaml:"enabled"`
	Period      int     `mapstructure:"period" yaml:"period"`
	Oversold    float64 `mapstructure:"oversold" yaml:"oversold"`
	Overbought  float64 `mapstructure:"overbought" yaml:"overbought"`
	TrendPeriod int     `mapstructure:"trend_period" yaml:"trend_period"`
	ExitConfig  `mapstructure:",squash" yaml:",inline"`
}

type BacktestConfig struct {
	Workers     int    `mapstructure:"workers" yaml:"workers"`
	ResultsFile string `mapstructure:"results_file" yaml:"results_file"`
}

// BrokerConfig holds order submission settings.
type BrokerConfig struct {
	Enabled   bool   `mapstructure:"enabled" yaml:"enabled"`
	Live      bool   `mapstructure:"live" yaml:"live"` // false logs orders without sending them
	Provider  string `mapstructure:"provider" yaml:"provider"`
	BaseURL   string `mapstructure:"base_url" yaml:"base_url"`
	APIKey    string `mapstructure:"api_key" yaml:"api_key"`
	APISecret string `mapstructure:"api_secret" yaml:"api_secret"`
	Quantity  int64  `mapstructure:"quantity" yaml:"quantity"`
	// MaxOrders caps orders per run; 0 means no cap.
	MaxOrders int `mapstructure:"max_orders" yaml:"max_orders"`
	// MaxOrderPct caps one buy as a percentage of buying power; 0 means no cap.
	MaxOrderPct float64 `mapstructure:"max_order_pct" yaml:"max_order_pct"`
}

// NotifierConfig configures one notifier; the map key in Config.Notifiers
// names its type (webhook, telegram or email).
type NotifierConfig struct {
	Enabled bool              `mapstructure:"enabled" yaml:"enabled"`
	URL     string            `mapstructure:"url" yaml:"url,omitempty"`
	Headers map[string]string `mapstructure:"headers" yaml:"headers,omitempty"`
	// Telegram notifier fields
	BotToken string `mapstructure:"bot_token" yaml:"bot_token,omitempty"`
	ChatID   string `mapstructure:"chat_id" yaml:"chat_id,omitempty"`
	// Email notifier fields
	Host     string   `mapstructure:"host" yaml:"host,omitempty"`
	Port     int      `mapstructure:"port" yaml:"port,omitempty"`
	Username string   `mapstructure:"username" yaml:"username,omitempty"`
	Password string   `mapstructure:"password" yaml:"password,omitempty"`
	From     string   `mapstructure:"from" yaml:"from,omitempty"`
	To       []string `mapstructure:"to" yaml:"to,omitempty"`
}

// Params flattens the settings into the form notifiers are initialized with.
func (n NotifierConfig) Params() map[string]any {
	return map[string]any{
		"url":       n.URL,
		"headers":   n.Headers,
		"bot_token": n.BotToken,
		"chat_id":   n.ChatID,
		"host":      n.Host,
		"port":      n.Port,
		"username":  n.Username,
		"password":  n.Password,
		"from":      n.From,
		"to":        n.To,
	}
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	Textfile string `mapstructure:"textfile" yaml:"textfile"` // node_exporter textfile output
}

// Load reads configuration from file on top of Defaults. Lists in the file
// replace the default lists.
func Load(path string) (*Config, error) {
	defaults, err := yaml.Marshal(Defaults())
	if err != nil {
		return nil, fmt.Errorf("encoding defaults: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return nil, fmt.Errorf("reading defaults: %w", err)
	}

	// Support environment variable overrides
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetConfigFile(path)
	if err := v.MergeInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// Expand environment variables in string values
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
			envKey := strings.TrimSuffix(strings.TrimPrefix(val, "${"), "}")
			v.Set(key, os.Getenv(envKey))
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}
	}
	return os.WriteFile(path, buf.Bytes(), 0644)
}

// Defaults returns the stock configuration: the 14-ticker watchlist since
// 2020 with the tuned parameters of each strategy.
func Defaults() *Config {
	return &Config{
		Log: LogConfig{Level: "info"},
		Data: DataConfig{
			Provider:  "alpaca",
			StartDate: "2020-01-01",
		},
		Collectors: CollectorsConfig{
			Alpaca: AlpacaDataConfig{
				BaseURL:    "https://data.alpaca.markets",
				APIKey:     "${APCA_API_KEY_ID}",
				APISecret:  "${APCA_API_SECRET_KEY}",
				TimeoutSec: 30,
			},
			Yahoo: YahooConfig{
				BaseURL:    "https://query1.finance.yahoo.com",
				TimeoutSec: 30,
			},
		},
		Storage: StorageConfig{
			Archive: ArchiveConfig{
				Type: "localfs",
				Path: "data",
				Redis: RedisConfig{
					Addr:   "localhost:6379",
					Prefix: "quantbench",
				},
			},
			Journal: JournalConfig{
				Path: "quantbench.db",
			},
		},
		Capital: CapitalConfig{
			Initial:      10000,
			PositionSize: 0.50,
		},
		Strategies: StrategiesConfig{
			MeanReversion: MeanReversionConfig{
				Enabled:    true,
				Lookback:   25,
				ZThreshold: 2.2,
				ExitConfig: ExitConfig{StopLoss: 0.05, TakeProfit: 0.03, Sizing: string(strategy.SizingCompounding)},
			},
			MACrossover: MACrossoverConfig{
				Enabled:    true,
				FastPeriod: 10,
				SlowPeriod: 100,
				ExitConfig: ExitConfig{StopLoss: 0.04, TakeProfit: 0.10, Sizing: string(strategy.SizingFixed)},
			},
			RSITrend: RSITrendConfig{
				Enabled:     true,
				Period:      14,
				Oversold:    45,
				Overbought:  100,
				TrendPeriod: 150,
				ExitConfig:  ExitConfig{StopLoss: 0.09, TakeProfit: 0.20, Sizing: string(strategy.SizingCompounding)},
			},
		},
		Backtest: BacktestConfig{
			ResultsFile: "results.json",
		},
		Broker: BrokerConfig{
			Enabled:   true,
			Provider:  "alpaca",
			BaseURL:   "https://paper-api.alpaca.markets",
			APIKey:    "${APCA_API_KEY_ID}",
			APISecret: "${APCA_API_SECRET_KEY}",
			Quantity:  1,
		},
		Notifiers: map[string]NotifierConfig{},
		Watchlist: []core.Instrument{
			{Symbol: "AAPL", Sector: "Tech"},
			{Symbol: "NVDA", Sector: "Tech"},
			{Symbol: "GOOG", Sector: "Tech"},
			{Symbol: "META", Sector: "Tech"},
			{Symbol: "FCX", Sector: "Materials"},
			{Symbol: "GLD", Sector: "Materials"},
			{Symbol: "SLV", Sector: "Materials"},
			{Symbol: "CAT", Sector: "Industrials"},
			{Symbol: "UPS", Sector: "Industrials"},
			{Symbol: "LMT", Sector: "Industrials"},
			{Symbol: "SPY", Sector: "ETF"},
			{Symbol: "QQQ", Sector: "ETF"},
			{Symbol: "AMD", Sector: "HighRisk"},
			{Symbol: "PLTR", Sector: "HighRisk"},
		},
	}
}

func (c *Config) risk(e ExitConfig) strategy.Risk {
	return strategy.Risk{
		InitialCapital: c.Capital.Initial,
		PositionSize:   c.Capital.PositionSize,
		StopLoss:       e.StopLoss,
		TakeProfit:     e.TakeProfit,
		Sizing:         strategy.Sizing(e.Sizing),
	}
}

// MeanReversionParams converts the mean_reversion section.
func (c *Config) MeanReversionParams() mean_reversion.Params {
	s := c.Strategies.MeanReversion
	return mean_reversion.Params{
		Lookback:  s.Lookback,
		Threshold: s.ZThreshold,
		Risk:      c.risk(s.ExitConfig),
	}
}

// MACrossoverParams converts the ma_crossover section.
func (c *Config) MACrossoverParams() ma_crossover.Params {
	s := c.Strategies.MACrossover
	return ma_crossover.Params{
		FastPeriod: s.FastPeriod,
		SlowPeriod: s.SlowPeriod,
		Risk:       c.risk(s.ExitConfig),
	}
}

// RSITrendParams converts the rsi_trend section.
func (c *Config) RSITrendParams() rsi_trend.Params {
	s := c.Strategies.RSITrend
	return rsi_trend.Params{
		Period:      s.Period,
		Oversold:    s.Oversold,
		Overbought:  s.Overbought,
		TrendPeriod: s.TrendPeriod,
		Risk:        c.risk(s.ExitConfig),
	}
}

// Simulators builds the enabled simulators in a fixed order.
func (c *Config) Simulators() ([]strategy.Simulator, error) {
	var sims []strategy.Simulator
	if c.Strategies.MeanReversion.Enabled {
		s, err := mean_reversion.New(c.MeanReversionParams())
		if err != nil {
			return nil, core.WrapError(core.ErrConfigInvalid, err)
		}
		sims = append(sims, s)
	}
	if c.Strategies.MACrossover.Enabled {
		s, err := ma_crossover.New(c.MACrossoverParams())
		if err != nil {
			return nil, core.WrapError(core.ErrConfigInvalid, err)
		}
		sims = append(sims, s)
	}
	if c.Strategies.RSITrend.Enabled {
		s, err := rsi_trend.New(c.RSITrendParams())
		if err != nil {
			return nil, core.WrapError(core.ErrConfigInvalid, err)
		}
		sims = append(sims, s)
	}
	return sims, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if _, err := c.Data.Start(); err != nil {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("start_date must be YYYY-MM-DD, got %q", c.Data.StartDate))
	}

	switch c.Data.Provider {
	case "alpaca":
		if c.Collectors.Alpaca.APIKey == "" || c.Collectors.Alpaca.APISecret == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("alpaca api_key and api_secret required when provider is alpaca"))
		}
	case "yahoo":
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("unknown data provider %q", c.Data.Provider))
	}

	if len(c.Watchlist) == 0 {
		return core.WrapError(core.ErrConfigMissing, fmt.Errorf("watchlist is empty"))
	}
	seen := make(map[string]struct{}, len(c.Watchlist))
	for _, inst := range c.Watchlist {
		if inst.Symbol == "" {
			return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("watchlist entry without symbol"))
		}
		if _, dup := seen[inst.Symbol]; dup {
			return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("duplicate watchlist symbol %s", inst.Symbol))
		}
		seen[inst.Symbol] = struct{}{}
	}

	sims, err := c.Simulators()
	if err != nil {
		return err
	}
	if len(sims) == 0 {
		return core.WrapError(core.ErrConfigMissing, fmt.Errorf("no strategy enabled"))
	}

	if err := c.Storage.Archive.validate(); err != nil {
		return err
	}
	if c.Storage.Journal.Enabled && c.Storage.Journal.Path == "" {
		return core.WrapError(core.ErrConfigMissing, fmt.Errorf("journal path required when journal is enabled"))
	}

	if c.Broker.Enabled {
		if c.Broker.Quantity <= 0 {
			return core.WrapError(core.ErrConfigInvalid,
				fmt.Errorf("broker quantity must be positive, got %d", c.Broker.Quantity))
		}
		if c.Broker.MaxOrders < 0 || c.Broker.MaxOrderPct < 0 || c.Broker.MaxOrderPct > 100 {
			return core.WrapError(core.ErrConfigInvalid,
				fmt.Errorf("broker max_orders and max_order_pct must be within range"))
		}
		if c.Broker.Live && (c.Broker.APIKey == "" || c.Broker.APISecret == "") {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("broker api_key and api_secret required for live orders"))
		}
	}

	for name, n := range c.Notifiers {
		if !n.Enabled {
			continue
		}
		if err := n.validate(name); err != nil {
			return err
		}
	}

	if c.Backtest.Workers < 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("workers cannot be negative, got %d", c.Backtest.Workers))
	}

	return nil
}

func (n NotifierConfig) validate(name string) error {
	switch name {
	case "webhook":
		if n.URL == "" {
			return core.WrapError(core.ErrConfigMissing, fmt.Errorf("webhook notifier requires url"))
		}
	case "telegram":
		if n.BotToken == "" || n.ChatID == "" {
			return core.WrapError(core.ErrConfigMissing, fmt.Errorf("telegram notifier requires bot_token and chat_id"))
		}
	case "email":
		if n.Host == "" || n.From == "" || len(n.To) == 0 {
			return core.WrapError(core.ErrConfigMissing, fmt.Errorf("email notifier requires host, from and to"))
		}
	default:
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown notifier %q", name))
	}
	return nil
}

func (a ArchiveConfig) validate() error {
	switch a.Type {
	case "localfs":
		if a.Path == "" {
			return core.WrapError(core.ErrConfigMissing, fmt.Errorf("archive path required for localfs"))
		}
	case "s3":
		if a.S3.Bucket == "" {
			return core.WrapError(core.ErrConfigMissing, fmt.Errorf("s3 bucket required for s3 archive"))
		}
	case "redis":
		if a.Redis.Addr == "" {
			return core.WrapError(core.ErrConfigMissing, fmt.Errorf("redis addr required for redis archive"))
		}
	default:
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown archive type %q", a.Type))
	}
	return nil
}
