package config

import (
	"cmp"
	"fmt"
	"net/url"
	"os"

	"github.com/quantdesk/backtesting-backend/internal/model"
	"gopkg.in/yaml.v3"
)

type ServerConfig struct {
	Port               string   `yaml:"port"`
	LogLevel           string   `yaml:"log_level"`
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`

	// JWTSecret comes from the JWT_SECRET env var, never from the file.
	// Empty secret disables token verification.
	JWTSecret string `yaml:"-"`
}

const (
	_defaultPort     = "8002"
	_defaultLogLevel = "info"
)

func (c *ServerConfig) Setup() *ServerConfig {
	c.Port = cmp.Or(c.Port, _defaultPort)
	c.LogLevel = cmp.Or(c.LogLevel, _defaultLogLevel)
	if len(c.CORSAllowedOrigins) == 0 {
		c.CORSAllowedOrigins = []string{"*"}
	}
	c.JWTSecret = os.Getenv("JWT_SECRET")
	return c
}

func LoadServerConfig(filename string) (*ServerConfig, error) {
	cfg := &ServerConfig{}
	if filename != "" {
		data, err := os.ReadFile(filename)
		if err != nil {
			return nil, fmt.Errorf("%w: can't read server config", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%w: can't parse server config", err)
		}
	}
	return cfg.Setup(), nil
}

type BinanceConfig struct {
	Address           string `yaml:"address"`
	RequestsPerMinute int    `yaml:"requests_per_minute"`
}

const (
	_defaultBinanceAddress = "https://fapi.binance.com"
	_defaultRequestsPerMin = 500
)

func (c *BinanceConfig) Setup() {
	c.Address = cmp.Or(c.Address, _defaultBinanceAddress)
	if c.RequestsPerMinute <= 0 {
		c.RequestsPerMinute = _defaultRequestsPerMin
	}
}

type CollectorConfig struct {
	Symbols   []string      `yaml:"symbols"`
	Intervals []string      `yaml:"intervals"`
	Limit     int           `yaml:"limit"`
	CronSpec  string        `yaml:"cron"`
	LogLevel  string        `yaml:"log_level"`
	Binance   BinanceConfig `yaml:"binance"`
}

const (
	_defaultLimit    = 500
	_defaultCronSpec = "@every 1m"
)

func (c *CollectorConfig) Setup() *CollectorConfig {
	if len(c.Symbols) == 0 {
		c.Symbols = []string{"BTCUSDT"}
	}
	if len(c.Intervals) == 0 {
		c.Intervals = []string{"1m"}
	}
	if c.Limit <= 0 || c.Limit > 1500 {
		c.Limit = _defaultLimit
	}
	c.CronSpec = cmp.Or(c.CronSpec, _defaultCronSpec)
	c.LogLevel = cmp.Or(c.LogLevel, _defaultLogLevel)
	c.Binance.Setup()
	return c
}

func (c *CollectorConfig) Validate() error {
	if _, err := url.Parse(c.Binance.Address); err != nil {
		return fmt.Errorf("%w: invalid binance address", err)
	}
	for _, iv := range c.Intervals {
		if !model.ValidInterval(iv) {
			return fmt.Errorf("unsupported interval %q", iv)
		}
	}
	return nil
}

func LoadCollectorConfig(filename string) (*CollectorConfig, error) {
	cfg := &CollectorConfig{}
	if filename != "" {
		data, err := os.ReadFile(filename)
		if err != nil {
			return nil, fmt.Errorf("%w: can't read collector config", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%w: can't parse collector config", err)
		}
	}
	cfg.Setup()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
