package store

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Service struct {
		URL              string `yaml:"url"`
		TimeoutSeconds   int    `yaml:"timeout_seconds"`
		ReadyWaitSeconds int    `yaml:"ready_wait_seconds"`
	} `yaml:"service"`
	Listen   string `yaml:"listen"`
	Accounts struct {
		Trading  int64 `yaml:"trading"`
		Training int64 `yaml:"training"`
	} `yaml:"accounts"`
	Symbols       []string `yaml:"symbols"`
	DefaultSymbol string   `yaml:"default_symbol"`
	Candles       struct {
		Limit    int    `yaml:"limit"`
		Interval string `yaml:"interval"`
	} `yaml:"candles"`
	Training struct {
		Limit  int `yaml:"limit"`
		Offset int `yaml:"offset"`
	} `yaml:"training"`
	Poll struct {
		TradingSeconds int `yaml:"trading_seconds"`
		TrainingMillis int `yaml:"training_millis"`
		MarketSeconds  int `yaml:"market_seconds"`
	} `yaml:"poll"`
	SnapshotWindow int    `yaml:"snapshot_window"`
	Alignment      string `yaml:"alignment"`
	MaxMarkers     int    `yaml:"max_markers"`
	Journal        struct {
		Dir           string `yaml:"dir"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"journal"`
}

func (c *Config) Validate() error {
	if c.Service.URL == "" {
		return errors.New("service.url cannot be empty")
	}
	if c.Accounts.Trading <= 0 || c.Accounts.Training <= 0 {
		return fmt.Errorf("account ids must be positive, got trading=%d training=%d", c.Accounts.Trading, c.Accounts.Training)
	}
	if c.Accounts.Trading == c.Accounts.Training {
		return fmt.Errorf("trading and training must use distinct accounts, both are %d", c.Accounts.Trading)
	}
	if len(c.Symbols) == 0 {
		return errors.New("symbols cannot be empty")
	}
	if !slices.Contains(c.Symbols, c.DefaultSymbol) {
		return fmt.Errorf("default_symbol '%s' is not in symbols", c.DefaultSymbol)
	}
	if c.Candles.Limit < 1 {
		return fmt.Errorf("candles.limit must be positive, got %d", c.Candles.Limit)
	}
	// the replay strategy needs 21 candles of history
	if c.Training.Limit < 21 {
		return fmt.Errorf("training.limit must be at least 21, got %d", c.Training.Limit)
	}
	if c.Training.Offset < 0 {
		return fmt.Errorf("training.offset cannot be negative, got %d", c.Training.Offset)
	}
	if c.Poll.TradingSeconds <= 0 || c.Poll.TrainingMillis <= 0 || c.Poll.MarketSeconds <= 0 {
		return errors.New("poll periods must be positive")
	}
	if c.SnapshotWindow < 1 {
		return fmt.Errorf("snapshot_window must be at least 1, got %d", c.SnapshotWindow)
	}
	switch c.Alignment {
	case "auto", "bucket", "nearest":
	default:
		return fmt.Errorf("alignment must be 'auto', 'bucket', or 'nearest', got '%s'", c.Alignment)
	}
	if c.MaxMarkers < 1 {
		return fmt.Errorf("max_markers must be positive, got %d", c.MaxMarkers)
	}
	return nil
}

func (c *Config) TradingPeriod() time.Duration {
	return time.Duration(c.Poll.TradingSeconds) * time.Second
}

func (c *Config) TrainingPeriod() time.Duration {
	return time.Duration(c.Poll.TrainingMillis) * time.Millisecond
}

func (c *Config) MarketPeriod() time.Duration {
	return time.Duration(c.Poll.MarketSeconds) * time.Second
}

func (c *Config) ServiceTimeout() time.Duration {
	return time.Duration(c.Service.TimeoutSeconds) * time.Second
}

func (c *Config) ReadyWait() time.Duration {
	return time.Duration(c.Service.ReadyWaitSeconds) * time.Second
}

// Default returns the configuration used when a key is absent from the file.
func Default() Config {
	var c Config
	c.Service.URL = "http://localhost:8080"
	c.Service.TimeoutSeconds = 10
	c.Service.ReadyWaitSeconds = 30
	c.Listen = ":8090"
	c.Accounts.Trading = 1
	c.Accounts.Training = 2
	c.Symbols = []string{"BTCUSDT", "ETHUSDT", "BNBUSDT", "SOLUSDT"}
	c.DefaultSymbol = "BTCUSDT"
	c.Candles.Limit = 100
	c.Candles.Interval = "1m"
	c.Training.Limit = 200
	c.Training.Offset = 500
	c.Poll.TradingSeconds = 10
	c.Poll.TrainingMillis = 500
	c.Poll.MarketSeconds = 5
	c.SnapshotWindow = 200
	c.Alignment = "auto"
	c.MaxMarkers = 30
	c.Journal.Dir = "logs"
	c.Journal.RetentionDays = 3
	return c
}

// LoadConfig reads path over the defaults. A missing file yields the
// defaults. BOTVIEW_SERVICE_URL and BOTVIEW_LISTEN override the file.
func LoadConfig(path string) (*Config, error) {
	c := Default()
	// a key present in the file replaces the default list wholesale
	c.Symbols = nil

	b, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, err
		}
	}

	if len(c.Symbols) == 0 {
		c.Symbols = Default().Symbols
	}
	if c.DefaultSymbol == "" || (!slices.Contains(c.Symbols, c.DefaultSymbol) && c.DefaultSymbol == Default().DefaultSymbol) {
		c.DefaultSymbol = c.Symbols[0]
	}
	if v := os.Getenv("BOTVIEW_SERVICE_URL"); v != "" {
		c.Service.URL = v
	}
	if v := os.Getenv("BOTVIEW_LISTEN"); v != "" {
		c.Listen = v
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &c, nil
}
