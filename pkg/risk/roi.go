// Package risk derives take-profit and stoploss targets from win rate,
// regime alignment and the configured risk-reward ratio.
package risk

import (
	"math"
	"sync/atomic"

	"github.com/raykavin/adaptrisk/pkg/config"
	"github.com/raykavin/adaptrisk/pkg/core"
	"github.com/raykavin/adaptrisk/pkg/logger"
	"github.com/raykavin/adaptrisk/pkg/performance"
	"github.com/raykavin/adaptrisk/pkg/regime"
)

// ROICalculator computes adaptive ROI targets. The target scales
// linearly between min_roi and max_roi as the recent win rate moves
// between min_win_rate and max_win_rate, then gets adjusted for regime
// alignment.
type ROICalculator struct {
	tracker   *performance.Tracker
	detector  *regime.Detector
	cfg       *config.Config
	log       logger.Logger
	fallbacks atomic.Int64
}

// NewROICalculator creates an ROI calculator
func NewROICalculator(tracker *performance.Tracker, detector *regime.Detector, cfg *config.Config, log logger.Logger) *ROICalculator {
	return &ROICalculator{
		tracker:  tracker,
		detector: detector,
		cfg:      cfg,
		log:      log,
	}
}

// Compute derives the ROI target from a win rate and alignment flags.
// Any non-finite intermediate falls back to default_roi; the fallback
// is logged and counted so it stays observable.
func (c *ROICalculator) Compute(direction core.Direction, winRate float64, isCounterTrend, isAlignedTrend bool) float64 {
	span := c.cfg.MaxWinRate - c.cfg.MinWinRate

	// Degenerate configuration: with a zero span the normalization is
	// defined as 0 rather than dividing by zero
	normalized := 0.0
	if span != 0 {
		normalized = core.Clamp((winRate-c.cfg.MinWinRate)/span, 0, 1)
	}

	roi := c.cfg.MinROI + normalized*(c.cfg.MaxROI-c.cfg.MinROI)

	switch {
	case isCounterTrend:
		roi *= c.cfg.CounterTrendFactor
	case isAlignedTrend:
		roi *= c.cfg.AlignedTrendFactor
	}

	// The long boost is additive after the alignment multiplication
	if direction == core.DirectionLong {
		roi += c.cfg.LongROIBoost
	}

	if math.IsNaN(roi) || math.IsInf(roi, 0) || roi <= 0 {
		c.fallbacks.Add(1)
		c.log.WithFields(map[string]any{
			"direction": direction,
			"win_rate":  winRate,
		}).Warnf("roi computation produced %v, falling back to default %.4f", roi, c.cfg.DefaultROI)
		return c.cfg.DefaultROI
	}

	return roi
}

// TradeROI computes the ROI target for a new trade in the given
// direction using the current performance state
func (c *ROICalculator) TradeROI(direction core.Direction) float64 {
	return c.Compute(
		direction,
		c.tracker.RecentWinRate(direction),
		c.detector.IsCounterTrend(direction),
		c.detector.IsAlignedTrend(direction),
	)
}

// FallbackCount returns how many times the default ROI fallback fired
func (c *ROICalculator) FallbackCount() int64 {
	return c.fallbacks.Load()
}
