package risk

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/raykavin/adaptrisk/pkg/config"
	"github.com/raykavin/adaptrisk/pkg/core"
)

func stoplossConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.RiskRewardRatio = "1:2"
	cfg.MinStoploss = -0.01
	cfg.MaxStoploss = -0.05
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestStoplossFromROI(t *testing.T) {
	calc := NewStoplossCalculator(stoplossConfig(t), testLogger(t))

	// roi 0.04 at ratio 0.5 yields -0.02, inside the band
	stoploss := calc.Compute(0.04, false, false)
	require.InDelta(t, -0.02, stoploss, 1e-12)
}

func TestStoplossAlignmentFactors(t *testing.T) {
	cfg := stoplossConfig(t)
	cfg.CounterTrendStoplossFactor = 1.2
	cfg.AlignedTrendStoplossFactor = 0.8
	calc := NewStoplossCalculator(cfg, testLogger(t))

	require.InDelta(t, -0.024, calc.Compute(0.04, true, false), 1e-12)
	require.InDelta(t, -0.016, calc.Compute(0.04, false, true), 1e-12)
}

func TestStoplossClampBand(t *testing.T) {
	cfg := stoplossConfig(t)
	calc := NewStoplossCalculator(cfg, testLogger(t))

	// too tight clamps to min_stoploss, too wide clamps to max_stoploss
	require.InDelta(t, cfg.MinStoploss, calc.Compute(0.001, false, false), 1e-12)
	require.InDelta(t, cfg.MaxStoploss, calc.Compute(5.0, false, false), 1e-12)
}

func TestStoplossClampBandProperty(t *testing.T) {
	cfg := stoplossConfig(t)
	calc := NewStoplossCalculator(cfg, testLogger(t))

	for roi := 0.001; roi < 1.0; roi += 0.013 {
		stoploss := calc.Compute(roi, false, false)
		require.LessOrEqual(t, stoploss, cfg.MinStoploss, "roi %v", roi)
		require.GreaterOrEqual(t, stoploss, cfg.MaxStoploss, "roi %v", roi)
	}
}

func TestStoplossStaticWhenDynamicDisabled(t *testing.T) {
	cfg := stoplossConfig(t)
	cfg.UseDynamicStoploss = false
	calc := NewStoplossCalculator(cfg, testLogger(t))

	require.InDelta(t, cfg.StaticStoploss, calc.Compute(0.04, false, true), 1e-12)
}

func TestStoplossNonNegativeInputForcedTight(t *testing.T) {
	cfg := stoplossConfig(t)
	calc := NewStoplossCalculator(cfg, testLogger(t))

	// a zero or negative roi would produce a non-negative stoploss,
	// which gets forced to the tight bound
	require.InDelta(t, cfg.MinStoploss, calc.Compute(0, false, false), 1e-12)
	require.InDelta(t, cfg.MinStoploss, calc.Compute(-0.04, false, false), 1e-12)
}

func TestStoplossFallbackOnNonFinite(t *testing.T) {
	cfg := stoplossConfig(t)
	calc := NewStoplossCalculator(cfg, testLogger(t))

	require.InDelta(t, cfg.StaticStoploss, calc.Compute(math.NaN(), false, false), 1e-12)
	require.InDelta(t, cfg.StaticStoploss, calc.Compute(math.Inf(1), false, false), 1e-12)
	require.Equal(t, int64(2), calc.FallbackCount())
}

func TestStoplossPrice(t *testing.T) {
	calc := NewStoplossCalculator(stoplossConfig(t), testLogger(t))

	require.InDelta(t, 98.0, calc.StoplossPrice(100, -0.02, core.DirectionLong), 1e-9)
	require.InDelta(t, 102.0, calc.StoplossPrice(100, -0.02, core.DirectionShort), 1e-9)
}
