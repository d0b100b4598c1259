package risk

import (
	"math"
	"sync/atomic"

	"github.com/raykavin/adaptrisk/pkg/config"
	"github.com/raykavin/adaptrisk/pkg/core"
	"github.com/raykavin/adaptrisk/pkg/logger"
)

// StoplossCalculator derives the stoploss level from the ROI target and
// the configured reward/risk ratio, then clamps it into the configured
// safety band.
type StoplossCalculator struct {
	cfg       *config.Config
	log       logger.Logger
	fallbacks atomic.Int64
}

// NewStoplossCalculator creates a stoploss calculator
func NewStoplossCalculator(cfg *config.Config, log logger.Logger) *StoplossCalculator {
	return &StoplossCalculator{cfg: cfg, log: log}
}

// Compute returns the stoploss for a trade as a negative fraction.
// With dynamic stoploss disabled the static value is returned
// unchanged. A non-finite result falls back to static_stoploss, logged
// and counted.
//
// The clamp is deliberately not a plain numeric min/max: stoploss
// values are negative, min_stoploss is the bound closest to zero and
// max_stoploss the most negative one. A value less negative than
// min_stoploss is too tight and clamps down to it; a value more
// negative than max_stoploss is too wide and clamps up to it.
func (c *StoplossCalculator) Compute(roi float64, isCounterTrend, isAlignedTrend bool) float64 {
	if !c.cfg.UseDynamicStoploss {
		return c.cfg.StaticStoploss
	}

	stoploss := -1 * roi * c.cfg.RiskReward()

	switch {
	case isCounterTrend:
		stoploss *= c.cfg.CounterTrendStoplossFactor
	case isAlignedTrend:
		stoploss *= c.cfg.AlignedTrendStoplossFactor
	}

	if math.IsNaN(stoploss) || math.IsInf(stoploss, 0) {
		c.fallbacks.Add(1)
		c.log.Warnf("stoploss computation produced %v for roi %v, falling back to static %.4f",
			stoploss, roi, c.cfg.StaticStoploss)
		return c.cfg.StaticStoploss
	}

	// A stoploss must stay negative regardless of inputs
	if stoploss >= 0 {
		stoploss = c.cfg.MinStoploss
	}

	switch {
	case stoploss > c.cfg.MinStoploss:
		return c.cfg.MinStoploss
	case stoploss < c.cfg.MaxStoploss:
		return c.cfg.MaxStoploss
	default:
		return stoploss
	}
}

// StoplossPrice converts a fractional stoploss into an absolute price
// level. For shorts the stop sits above the entry, so the negative
// fraction is subtracted.
func (c *StoplossCalculator) StoplossPrice(entryRate, stoploss float64, direction core.Direction) float64 {
	if direction == core.DirectionShort {
		return entryRate * (1 - stoploss)
	}
	return entryRate * (1 + stoploss)
}

// FallbackCount returns how many times the static stoploss fallback
// fired
func (c *StoplossCalculator) FallbackCount() int64 {
	return c.fallbacks.Load()
}
