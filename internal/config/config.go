// Package config handles configuration loading for dcfvalue.
// It supports YAML config files with environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "DCFVALUE"

// Config represents the complete application configuration.
type Config struct {
	Providers ProvidersConfig `mapstructure:"providers" yaml:"providers"`
	Valuation ValuationConfig `mapstructure:"valuation" yaml:"valuation"`
	Logging   LoggingConfig   `mapstructure:"logging"   yaml:"logging"`
}

// ProvidersConfig holds data provider credentials and HTTP behaviour.
type ProvidersConfig struct {
	FredAPIKey         string        `mapstructure:"fred_api_key"          yaml:"fred_api_key"`
	FMPAPIKey          string        `mapstructure:"fmp_api_key"           yaml:"fmp_api_key"`
	AlphaVantageAPIKey string        `mapstructure:"alpha_vantage_api_key" yaml:"alpha_vantage_api_key"`
	SECUserAgent       string        `mapstructure:"sec_user_agent"        yaml:"sec_user_agent"`
	Order              []string      `mapstructure:"order"                 yaml:"order"`       // financial record sources, in preference order
	YieldOrder         []string      `mapstructure:"yield_order"           yaml:"yield_order"` // risk-free rate sources
	Retries            int           `mapstructure:"retries"               yaml:"retries"`
	RetryDelay         time.Duration `mapstructure:"retry_delay"           yaml:"retry_delay"`
	Timeout            time.Duration `mapstructure:"timeout"               yaml:"timeout"`
	RequestsPerSecond  float64       `mapstructure:"requests_per_second"   yaml:"requests_per_second"`
}

// ValuationConfig holds engine and simulation settings.
type ValuationConfig struct {
	Horizon        int           `mapstructure:"horizon"          yaml:"horizon"`
	Iterations     int           `mapstructure:"iterations"       yaml:"iterations"`
	Workers        int           `mapstructure:"workers"          yaml:"workers"`
	Seed           int64         `mapstructure:"seed"             yaml:"seed"` // 0 seeds from the clock
	MaxOverrideAge time.Duration `mapstructure:"max_override_age" yaml:"max_override_age"`
	TickerDelay    time.Duration `mapstructure:"ticker_delay"     yaml:"ticker_delay"`
	MarketIndex    string        `mapstructure:"market_index"     yaml:"market_index"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `mapstructure:"format" yaml:"format"` // "text" or "json"
}

// Load reads the configuration from file and environment variables.
// Config file search order:
//  1. ./config/config.yaml (project root)
//  2. ~/.dcfvalue/config.yaml (home directory)
//  3. /etc/dcfvalue/config.yaml (system)
//
// A .env file in the working directory is loaded first when present.
// Environment variables override config file values.
// Format: DCFVALUE_<SECTION>_<KEY>, e.g., DCFVALUE_PROVIDERS_FMP_API_KEY
func Load() (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(filepath.Join(homeDir(), ".dcfvalue"))
	v.AddConfigPath("/etc/dcfvalue")

	// Read config file (not required to exist)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}
	return decode(v)
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}
	return decode(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	overrideFromEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// loadDotEnv exports the variables in path without overriding ones that
// are already set. A missing file is not an error.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("error loading %s: %w", path, err)
	}
	return nil
}

// setDefaults sets sensible defaults for all config values.
func setDefaults(v *viper.Viper) {
	// Providers. Keys default to empty so AutomaticEnv can see them.
	v.SetDefault("providers.fred_api_key", "")
	v.SetDefault("providers.fmp_api_key", "")
	v.SetDefault("providers.alpha_vantage_api_key", "")
	v.SetDefault("providers.sec_user_agent", "")
	v.SetDefault("providers.order", []string{"sec", "fmp", "alphavantage", "yfinance"})
	v.SetDefault("providers.yield_order", []string{"treasury", "federal_reserve", "fred", "yfinance"})
	v.SetDefault("providers.retries", 3)
	v.SetDefault("providers.retry_delay", "2s")
	v.SetDefault("providers.timeout", "20s")
	v.SetDefault("providers.requests_per_second", 5.0)

	// Valuation
	v.SetDefault("valuation.horizon", 10)
	v.SetDefault("valuation.iterations", 1000)
	v.SetDefault("valuation.workers", 1)
	v.SetDefault("valuation.seed", 0)
	v.SetDefault("valuation.max_override_age", "17520h") // two years
	v.SetDefault("valuation.ticker_delay", "1s")
	v.SetDefault("valuation.market_index", "^GSPC")

	// Logging
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// overrideFromEnv falls back to the conventional unprefixed variable names
// for credentials that the prefixed lookup left empty.
func overrideFromEnv(cfg *Config) {
	if cfg.Providers.FMPAPIKey == "" {
		cfg.Providers.FMPAPIKey = os.Getenv("FMP_API_KEY")
	}
	if cfg.Providers.AlphaVantageAPIKey == "" {
		cfg.Providers.AlphaVantageAPIKey = firstEnv("ALPHA_VANTAGE_API_KEY", "ALPHA_VANTAGE_KEY")
	}
	if cfg.Providers.FredAPIKey == "" {
		cfg.Providers.FredAPIKey = os.Getenv("FRED_API_KEY")
	}
	if cfg.Providers.SECUserAgent == "" {
		cfg.Providers.SECUserAgent = os.Getenv("SEC_USER_AGENT")
	}
}

func firstEnv(names ...string) string {
	for _, n := range names {
		if v := os.Getenv(n); v != "" {
			return v
		}
	}
	return ""
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.Valuation.Horizon < 1:
		return fmt.Errorf("valuation.horizon must be positive, got %d", c.Valuation.Horizon)
	case c.Valuation.Iterations < 1:
		return fmt.Errorf("valuation.iterations must be positive, got %d", c.Valuation.Iterations)
	case c.Valuation.Workers < 1:
		return fmt.Errorf("valuation.workers must be positive, got %d", c.Valuation.Workers)
	case c.Providers.Retries < 0:
		return fmt.Errorf("providers.retries must not be negative, got %d", c.Providers.Retries)
	case len(c.Providers.Order) == 0:
		return errors.New("providers.order must name at least one source")
	}
	return nil
}

// homeDir returns the user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
