package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for papertrade.
type Config struct {
	Server       Server       `yaml:"server"`
	Market       Market       `yaml:"market"`
	Finnhub      Finnhub      `yaml:"finnhub"`
	AlphaVantage AlphaVantage `yaml:"alphavantage"`
	Alpaca       Alpaca       `yaml:"alpaca"`
	News         News         `yaml:"news"`
	Storage      Storage      `yaml:"storage"`
	Trading      Trading      `yaml:"trading"`
	Logging      Logging      `yaml:"logging"`
}

// Server holds network listener configuration.
type Server struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	GRPCPort int    `yaml:"grpc_port"`
}

// Market selects the market data provider and shared HTTP settings.
type Market struct {
	// Provider is "finnhub" (quotes and news from Finnhub, history from
	// Alpha Vantage) or "alpaca".
	Provider       string        `yaml:"provider"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// Finnhub holds the quote and news provider endpoint and token.
type Finnhub struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// AlphaVantage holds the price history provider endpoint and token.
type AlphaVantage struct {
	APIKey          string `yaml:"api_key"`
	BaseURL         string `yaml:"base_url"`
	RateLimitPerMin int    `yaml:"rate_limit_per_min"`
}

// Alpaca holds credentials and endpoints for the Alpaca market data API.
type Alpaca struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	DataURL   string `yaml:"data_url"`
	Feed      string `yaml:"feed"`
}

// News controls the article lists.
type News struct {
	LookbackDays int `yaml:"lookback_days"`
	SymbolLimit  int `yaml:"symbol_limit"`
	MarketLimit  int `yaml:"market_limit"`
	SummaryChars int `yaml:"summary_chars"`
}

// Storage selects the persistence backend for ledger state.
type Storage struct {
	// Backend is one of "file", "sqlite", "redis" or "memory".
	Backend       string `yaml:"backend"`
	DataDir       string `yaml:"data_dir"`
	FilePath      string `yaml:"file_path"`
	SQLitePath    string `yaml:"sqlite_path"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	KeyPrefix     string `yaml:"key_prefix"`
}

// Trading holds ledger and valuation parameters.
type Trading struct {
	// StartingBalance is the cash of a fresh ledger; zero means 10000.
	StartingBalance   decimal.Decimal `yaml:"starting_balance"`
	ValuationInterval time.Duration   `yaml:"valuation_interval"`
	ArchiveValuations bool            `yaml:"archive_valuations"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ---------------------------------------------------------------------------
// Defaults
// ---------------------------------------------------------------------------

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.GRPCPort == 0 {
		cfg.Server.GRPCPort = 9090
	}
	if cfg.Market.Provider == "" {
		cfg.Market.Provider = "finnhub"
	}
	if cfg.Market.RequestTimeout == 0 {
		cfg.Market.RequestTimeout = 10 * time.Second
	}
	if cfg.Finnhub.BaseURL == "" {
		cfg.Finnhub.BaseURL = "https://finnhub.io/api/v1"
	}
	if cfg.AlphaVantage.BaseURL == "" {
		cfg.AlphaVantage.BaseURL = "https://www.alphavantage.co/query"
	}
	if cfg.AlphaVantage.RateLimitPerMin == 0 {
		cfg.AlphaVantage.RateLimitPerMin = 5
	}
	if cfg.Alpaca.Feed == "" {
		cfg.Alpaca.Feed = "iex"
	}
	if cfg.News.LookbackDays == 0 {
		cfg.News.LookbackDays = 30
	}
	if cfg.News.SymbolLimit == 0 {
		cfg.News.SymbolLimit = 5
	}
	if cfg.News.MarketLimit == 0 {
		cfg.News.MarketLimit = 10
	}
	if cfg.News.SummaryChars == 0 {
		cfg.News.SummaryChars = 100
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "file"
	}
	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = "data"
	}
	if cfg.Storage.KeyPrefix == "" {
		cfg.Storage.KeyPrefix = "papertrade:"
	}
	if cfg.Trading.StartingBalance.IsZero() {
		cfg.Trading.StartingBalance = decimal.NewFromInt(10000)
	}
	if cfg.Trading.ValuationInterval == 0 {
		cfg.Trading.ValuationInterval = 15 * time.Second
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads the YAML configuration file at the given path, parses it into a
// Config struct, applies defaults and then environment variable overrides.
// The returned error wraps fs.ErrNotExist when the file is missing.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	if err := finish(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault behaves like Load but falls back to Default (plus
// environment overrides) when the file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg = &Config{}
		if err := finish(cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	return cfg, err
}

func finish(cfg *Config) error {
	applyEnvOverrides(cfg)
	applyDefaults(cfg)
	return cfg.Validate()
}

// Validate checks enumerated settings and numeric ranges.
func (c *Config) Validate() error {
	switch c.Market.Provider {
	case "finnhub", "alpaca":
	default:
		return fmt.Errorf("market.provider: unknown provider %q", c.Market.Provider)
	}
	switch c.Storage.Backend {
	case "file", "sqlite", "redis", "memory":
	default:
		return fmt.Errorf("storage.backend: unknown backend %q", c.Storage.Backend)
	}
	if c.Trading.StartingBalance.IsNegative() {
		return fmt.Errorf("trading.starting_balance: must not be negative")
	}
	if c.Trading.ValuationInterval < time.Second {
		return fmt.Errorf("trading.valuation_interval: %s is below 1s", c.Trading.ValuationInterval)
	}
	return nil
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// GRPCAddr returns the gRPC listen address.
func (c *Config) GRPCAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.GRPCPort)
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FINNHUB_API_KEY"); v != "" {
		cfg.Finnhub.APIKey = v
	}
	if v := os.Getenv("FINNHUB_BASE_URL"); v != "" {
		cfg.Finnhub.BaseURL = v
	}

	if v := os.Getenv("ALPHAVANTAGE_API_KEY"); v != "" {
		cfg.AlphaVantage.APIKey = v
	}
	if v := os.Getenv("ALPHAVANTAGE_BASE_URL"); v != "" {
		cfg.AlphaVantage.BaseURL = v
	}

	if v := os.Getenv("MARKET_PROVIDER"); v != "" {
		cfg.Market.Provider = v
	}

	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("STORAGE_BACKEND"); v != "" {
		cfg.Storage.Backend = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Storage.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Storage.RedisPassword = v
	}

	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = p
		}
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// Standard Alpaca env vars (canonical names used by the SDK).
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}
	if v := os.Getenv("APCA_API_DATA_URL"); v != "" {
		cfg.Alpaca.DataURL = v
	}
}
