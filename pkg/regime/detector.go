// Package regime classifies the market as bullish, bearish or neutral
// from the relative recent performance of long and short trades.
package regime

import (
	"github.com/raykavin/adaptrisk/pkg/config"
	"github.com/raykavin/adaptrisk/pkg/core"
	"github.com/raykavin/adaptrisk/pkg/performance"
)

// Detector derives the market regime from tracker win rates. It holds
// no state of its own: every call reads the current performance state.
type Detector struct {
	tracker *performance.Tracker
	cfg     *config.Config
}

// NewDetector creates a regime detector
func NewDetector(tracker *performance.Tracker, cfg *config.Config) *Detector {
	return &Detector{tracker: tracker, cfg: cfg}
}

// Detect returns the current market regime. With fewer than the
// configured minimum of recent trades in either direction the evidence
// is insufficient and the regime is neutral. At exactly the configured
// win rate difference the regime is also neutral: the strict comparison
// keeps the classification from oscillating at the threshold.
func (d *Detector) Detect() core.Regime {
	if d.tracker.RecentCount(core.DirectionLong) < d.cfg.MinRecentTradesPerDirection ||
		d.tracker.RecentCount(core.DirectionShort) < d.cfg.MinRecentTradesPerDirection {
		return core.RegimeNeutral
	}

	diff := d.tracker.RecentWinRate(core.DirectionLong) - d.tracker.RecentWinRate(core.DirectionShort)

	switch {
	case diff > d.cfg.RegimeWinRateDiff:
		return core.RegimeBullish
	case diff < -d.cfg.RegimeWinRateDiff:
		return core.RegimeBearish
	default:
		return core.RegimeNeutral
	}
}

// IsCounterTrend reports whether a trade in the given direction opposes
// the detected regime
func (d *Detector) IsCounterTrend(direction core.Direction) bool {
	regime := d.Detect()
	return regime != core.RegimeNeutral && regime.Favors(direction.Opposite())
}

// IsAlignedTrend reports whether a trade in the given direction matches
// the detected regime
func (d *Detector) IsAlignedTrend(direction core.Direction) bool {
	return d.Detect().Favors(direction)
}
