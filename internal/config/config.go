// Package config provides configuration management for the trading core.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"portfolio-trader/internal/errors"
)

// Config holds all application configuration.
type Config struct {
	Account   AccountConfig   `mapstructure:"account"`
	Orders    OrderConfig     `mapstructure:"orders"`
	Sim       SimConfig       `mapstructure:"sim"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Snapshots SnapshotConfig  `mapstructure:"snapshots"`
}

// AccountConfig holds the trading credentials pushed into every trade.
type AccountConfig struct {
	BrokerID string `mapstructure:"broker_id"`
	Account  string `mapstructure:"account"`
}

// OrderConfig holds portfolio-wide order defaults.
type OrderConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
	// "ignore" drops reports for unknown order ids; "adopt"
	// incorporates them into the position with a warning.
	ExternalReports string `mapstructure:"external_reports"`
	CancelOnTimeout bool   `mapstructure:"cancel_on_timeout"`
}

// SimConfig holds simulated venue settings for the sim command.
type SimConfig struct {
	Latency     time.Duration      `mapstructure:"latency"`
	PartialLots int64              `mapstructure:"partial_lots"`
	Prices      map[string]float64 `mapstructure:"prices"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `mapstructure:"level"`
	Console bool   `mapstructure:"console"`
	File    bool   `mapstructure:"file"`
}

// SnapshotConfig holds position snapshot settings.
type SnapshotConfig struct {
	Path string `mapstructure:"path"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/portfolio-trader"
	}
	return filepath.Join(home, ".config", "portfolio-trader")
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("loading config.toml: %w", err)
		}
		// No config file is fine; defaults apply.
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// viper lowercases TOML map keys; the price table is keyed by
	// symbol, which is uppercase everywhere else.
	if len(cfg.Sim.Prices) > 0 {
		prices := make(map[string]float64, len(cfg.Sim.Prices))
		for sym, px := range cfg.Sim.Prices {
			prices[strings.ToUpper(sym)] = px
		}
		cfg.Sim.Prices = prices
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("account.broker_id", "")
	v.SetDefault("account.account", "")
	v.SetDefault("orders.timeout", time.Minute)
	v.SetDefault("orders.external_reports", "ignore")
	v.SetDefault("orders.cancel_on_timeout", false)
	v.SetDefault("sim.latency", 5*time.Millisecond)
	v.SetDefault("sim.partial_lots", 0)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.console", true)
	v.SetDefault("logging.file", true)
	v.SetDefault("snapshots.path", filepath.Join(DefaultConfigDir(), "positions.db"))
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TRADER_BROKER_ID"); v != "" {
		cfg.Account.BrokerID = v
	}
	if v := os.Getenv("TRADER_ACCOUNT"); v != "" {
		cfg.Account.Account = v
	}
	if v := os.Getenv("TRADER_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Orders.Timeout <= 0 {
		return fmt.Errorf("%w: orders.timeout must be positive", errors.ErrConfigInvalid)
	}
	switch c.Orders.ExternalReports {
	case "ignore", "adopt":
	default:
		return fmt.Errorf("%w: orders.external_reports must be 'ignore' or 'adopt', got %q",
			errors.ErrConfigInvalid, c.Orders.ExternalReports)
	}
	if c.Sim.Latency < 0 {
		return fmt.Errorf("%w: sim.latency must be non-negative", errors.ErrConfigInvalid)
	}
	return nil
}

// HasAccountInfo reports whether broker id and account are both set.
func (c *Config) HasAccountInfo() bool {
	return c.Account.BrokerID != "" && c.Account.Account != ""
}
