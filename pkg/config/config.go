// Package config holds the validated strategy configuration.
package config

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	str2duration "github.com/xhit/go-str2duration/v2"
)

// Config is the adaptive risk configuration. It is constructed once at
// startup and must pass Validate before any component consumes it;
// after that it is treated as immutable.
type Config struct {
	// RiskRewardRatio is a "reward:risk" string, e.g. "1:2". The parsed
	// ratio (reward/risk) scales the stoploss magnitude relative to ROI.
	RiskRewardRatio string `mapstructure:"risk_reward_ratio" yaml:"risk_reward_ratio"`

	// ROI bounds for the adaptive scaling between MinWinRate and MaxWinRate
	MinROI     float64 `mapstructure:"min_roi" yaml:"min_roi"`
	MaxROI     float64 `mapstructure:"max_roi" yaml:"max_roi"`
	DefaultROI float64 `mapstructure:"default_roi" yaml:"default_roi"`

	// LongROIBoost is added to long trade ROI after the alignment factor
	// multiplication
	LongROIBoost float64 `mapstructure:"long_roi_boost" yaml:"long_roi_boost"`

	// Stoploss band. Values are negative: MinStoploss is the bound
	// closest to zero (tightest), MaxStoploss the most negative (widest).
	UseDynamicStoploss bool    `mapstructure:"use_dynamic_stoploss" yaml:"use_dynamic_stoploss"`
	StaticStoploss     float64 `mapstructure:"static_stoploss" yaml:"static_stoploss"`
	MinStoploss        float64 `mapstructure:"min_stoploss" yaml:"min_stoploss"`
	MaxStoploss        float64 `mapstructure:"max_stoploss" yaml:"max_stoploss"`

	// Regime alignment multipliers
	CounterTrendFactor         float64 `mapstructure:"counter_trend_factor" yaml:"counter_trend_factor"`
	AlignedTrendFactor         float64 `mapstructure:"aligned_trend_factor" yaml:"aligned_trend_factor"`
	CounterTrendStoplossFactor float64 `mapstructure:"counter_trend_stoploss_factor" yaml:"counter_trend_stoploss_factor"`
	AlignedTrendStoplossFactor float64 `mapstructure:"aligned_trend_stoploss_factor" yaml:"aligned_trend_stoploss_factor"`

	// Win rate and regime detection settings
	MinWinRate                  float64 `mapstructure:"min_win_rate" yaml:"min_win_rate"`
	MaxWinRate                  float64 `mapstructure:"max_win_rate" yaml:"max_win_rate"`
	RegimeWinRateDiff           float64 `mapstructure:"regime_win_rate_diff" yaml:"regime_win_rate_diff"`
	MinRecentTradesPerDirection int     `mapstructure:"min_recent_trades_per_direction" yaml:"min_recent_trades_per_direction"`
	MaxRecentTrades             int     `mapstructure:"max_recent_trades" yaml:"max_recent_trades"`

	// Replay-mode persistence debouncing: state is flushed every
	// PersistInterval or every PersistBatch outcomes, whichever first
	PersistInterval string `mapstructure:"persist_interval" yaml:"persist_interval"`
	PersistBatch    int    `mapstructure:"persist_batch" yaml:"persist_batch"`

	riskReward      float64
	persistInterval time.Duration
}

// Default returns the baseline configuration for the 15m timeframe
func Default() *Config {
	return &Config{
		RiskRewardRatio:             "1:1.5",
		MinROI:                      0.05,
		MaxROI:                      0.10,
		DefaultROI:                  0.15,
		LongROIBoost:                0,
		UseDynamicStoploss:          true,
		StaticStoploss:              -0.05,
		MinStoploss:                 -0.02,
		MaxStoploss:                 -0.10,
		CounterTrendFactor:          0.6,
		AlignedTrendFactor:          1.2,
		CounterTrendStoplossFactor:  1.2,
		AlignedTrendStoplossFactor:  0.8,
		MinWinRate:                  0.4,
		MaxWinRate:                  0.8,
		RegimeWinRateDiff:           0.15,
		MinRecentTradesPerDirection: 5,
		MaxRecentTrades:             10,
		PersistInterval:             "5m",
		PersistBatch:                100,
	}
}

// RiskReward returns the parsed reward/risk ratio. Only valid after
// Validate succeeded.
func (c *Config) RiskReward() float64 {
	return c.riskReward
}

// PersistEvery returns the parsed persistence debounce interval. Only
// valid after Validate succeeded.
func (c *Config) PersistEvery() time.Duration {
	return c.persistInterval
}

// ParseRiskReward parses a "reward:risk" string into a reward/risk
// ratio. "1:2" yields 0.5: the stoploss magnitude is half the ROI.
func ParseRiskReward(s string) (float64, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("risk reward ratio %q: want \"reward:risk\"", s)
	}

	reward, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, fmt.Errorf("risk reward ratio %q: invalid reward: %w", s, err)
	}

	risk, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, fmt.Errorf("risk reward ratio %q: invalid risk: %w", s, err)
	}

	if reward <= 0 || risk <= 0 {
		return 0, fmt.Errorf("risk reward ratio %q: both sides must be positive", s)
	}

	return reward / risk, nil
}

// ConfigError aggregates every validation violation found in a Config
type ConfigError struct {
	Issues []string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %s", strings.Join(e.Issues, "; "))
}

// Validate checks all parameter constraints and computes the derived
// ratio and interval values. It returns a *ConfigError listing every
// violation, so a misconfiguration surfaces completely on first run.
func (c *Config) Validate() error {
	var issues []string

	ratio, err := ParseRiskReward(c.RiskRewardRatio)
	if err != nil {
		issues = append(issues, err.Error())
	} else {
		c.riskReward = ratio
	}

	if c.MinROI <= 0 {
		issues = append(issues, fmt.Sprintf("min_roi must be positive, got %v", c.MinROI))
	}
	if c.MaxROI <= 0 {
		issues = append(issues, fmt.Sprintf("max_roi must be positive, got %v", c.MaxROI))
	}
	if c.MinROI >= c.MaxROI {
		issues = append(issues, fmt.Sprintf("min_roi (%v) must be less than max_roi (%v)", c.MinROI, c.MaxROI))
	}
	if c.DefaultROI <= 0 {
		issues = append(issues, fmt.Sprintf("default_roi must be positive, got %v", c.DefaultROI))
	}
	if c.LongROIBoost < 0 {
		issues = append(issues, fmt.Sprintf("long_roi_boost must not be negative, got %v", c.LongROIBoost))
	}

	if c.StaticStoploss >= 0 {
		issues = append(issues, fmt.Sprintf("static_stoploss must be negative, got %v", c.StaticStoploss))
	}
	if c.MinStoploss >= 0 {
		issues = append(issues, fmt.Sprintf("min_stoploss must be negative, got %v", c.MinStoploss))
	}
	if c.MaxStoploss >= 0 {
		issues = append(issues, fmt.Sprintf("max_stoploss must be negative, got %v", c.MaxStoploss))
	}
	// min_stoploss is the tight bound: it must sit closer to zero than
	// max_stoploss
	if c.MinStoploss <= c.MaxStoploss {
		issues = append(issues, fmt.Sprintf(
			"min_stoploss (%v) must be closer to zero than max_stoploss (%v)", c.MinStoploss, c.MaxStoploss))
	}

	for name, factor := range map[string]float64{
		"counter_trend_factor":          c.CounterTrendFactor,
		"aligned_trend_factor":          c.AlignedTrendFactor,
		"counter_trend_stoploss_factor": c.CounterTrendStoplossFactor,
		"aligned_trend_stoploss_factor": c.AlignedTrendStoplossFactor,
	} {
		if factor <= 0 || math.IsInf(factor, 0) || math.IsNaN(factor) {
			issues = append(issues, fmt.Sprintf("%s must be a positive multiplier, got %v", name, factor))
		}
	}

	if c.MinWinRate < 0 || c.MinWinRate > 1 {
		issues = append(issues, fmt.Sprintf("min_win_rate must be in [0,1], got %v", c.MinWinRate))
	}
	if c.MaxWinRate < 0 || c.MaxWinRate > 1 {
		issues = append(issues, fmt.Sprintf("max_win_rate must be in [0,1], got %v", c.MaxWinRate))
	}
	if c.MinWinRate >= c.MaxWinRate {
		issues = append(issues, fmt.Sprintf(
			"min_win_rate (%v) must be less than max_win_rate (%v)", c.MinWinRate, c.MaxWinRate))
	}
	if c.RegimeWinRateDiff <= 0 || c.RegimeWinRateDiff > 1 {
		issues = append(issues, fmt.Sprintf("regime_win_rate_diff must be in (0,1], got %v", c.RegimeWinRateDiff))
	}
	if c.MinRecentTradesPerDirection < 1 {
		issues = append(issues, fmt.Sprintf(
			"min_recent_trades_per_direction must be at least 1, got %d", c.MinRecentTradesPerDirection))
	}
	if c.MaxRecentTrades < c.MinRecentTradesPerDirection {
		issues = append(issues, fmt.Sprintf(
			"max_recent_trades (%d) must be at least min_recent_trades_per_direction (%d)",
			c.MaxRecentTrades, c.MinRecentTradesPerDirection))
	}

	if c.PersistInterval != "" {
		interval, err := str2duration.ParseDuration(c.PersistInterval)
		if err != nil {
			issues = append(issues, fmt.Sprintf("persist_interval %q: %v", c.PersistInterval, err))
		} else {
			c.persistInterval = interval
		}
	}
	if c.PersistBatch < 0 {
		issues = append(issues, fmt.Sprintf("persist_batch must not be negative, got %d", c.PersistBatch))
	}

	if len(issues) > 0 {
		return &ConfigError{Issues: issues}
	}

	return nil
}
