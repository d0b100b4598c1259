package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// DefaultConfigPath is used when no config file path is provided
const DefaultConfigPath = "./adaptrisk.yaml"

// Load reads the strategy configuration from a YAML file, creating it
// with defaults when absent. Environment variables override file
// values. The returned config has already passed Validate.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = DefaultConfigPath
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := saveDefaultConfig(configPath); err != nil {
			return nil, err
		}
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read configuration %s: %w", configPath, err)
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration %s: %w", configPath, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// saveDefaultConfig writes the default configuration file so a first
// run leaves a template the operator can tune
func saveDefaultConfig(configPath string) error {
	configDir := filepath.Dir(configPath)
	if _, err := os.Stat(configDir); os.IsNotExist(err) {
		if err := os.MkdirAll(configDir, 0755); err != nil {
			return fmt.Errorf("could not create configuration directory: %w", err)
		}
	}

	cfg := Default()

	v := viper.New()
	v.Set("risk_reward_ratio", cfg.RiskRewardRatio)
	v.Set("min_roi", cfg.MinROI)
	v.Set("max_roi", cfg.MaxROI)
	v.Set("default_roi", cfg.DefaultROI)
	v.Set("long_roi_boost", cfg.LongROIBoost)
	v.Set("use_dynamic_stoploss", cfg.UseDynamicStoploss)
	v.Set("static_stoploss", cfg.StaticStoploss)
	v.Set("min_stoploss", cfg.MinStoploss)
	v.Set("max_stoploss", cfg.MaxStoploss)
	v.Set("counter_trend_factor", cfg.CounterTrendFactor)
	v.Set("aligned_trend_factor", cfg.AlignedTrendFactor)
	v.Set("counter_trend_stoploss_factor", cfg.CounterTrendStoplossFactor)
	v.Set("aligned_trend_stoploss_factor", cfg.AlignedTrendStoplossFactor)
	v.Set("min_win_rate", cfg.MinWinRate)
	v.Set("max_win_rate", cfg.MaxWinRate)
	v.Set("regime_win_rate_diff", cfg.RegimeWinRateDiff)
	v.Set("min_recent_trades_per_direction", cfg.MinRecentTradesPerDirection)
	v.Set("max_recent_trades", cfg.MaxRecentTrades)
	v.Set("persist_interval", cfg.PersistInterval)
	v.Set("persist_batch", cfg.PersistBatch)

	v.SetConfigFile(configPath)

	if err := v.WriteConfig(); err != nil {
		return fmt.Errorf("could not save default configuration: %w", err)
	}

	return nil
}
