package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseRiskReward(t *testing.T) {
	tt := []struct {
		input string
		want  float64
		fails bool
	}{
		{input: "1:2", want: 0.5},
		{input: "1:1.5", want: 1 / 1.5},
		{input: "2:1", want: 2},
		{input: "1:1", want: 1},
		{input: "1-2", fails: true},
		{input: "0:2", fails: true},
		{input: "1:-2", fails: true},
		{input: "abc:2", fails: true},
		{input: "", fails: true},
	}

	for _, tc := range tt {
		ratio, err := ParseRiskReward(tc.input)
		if tc.fails {
			require.Error(t, err, "input %q", tc.input)
			continue
		}
		require.NoError(t, err, "input %q", tc.input)
		require.InDelta(t, tc.want, ratio, 1e-12, "input %q", tc.input)
	}
}

func TestValidateDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	require.InDelta(t, 1/1.5, cfg.RiskReward(), 1e-12)
	require.Equal(t, "5m0s", cfg.PersistEvery().String())
}

func TestValidateStoplossOrdering(t *testing.T) {
	// min_stoploss must be closer to zero than max_stoploss; the
	// inverted ordering is the classic mistake and must be rejected
	cfg := Default()
	cfg.MinStoploss = -0.10
	cfg.MaxStoploss = -0.02

	err := cfg.Validate()
	require.Error(t, err)

	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	require.Contains(t, err.Error(), "min_stoploss")
}

func TestValidateWinRateBounds(t *testing.T) {
	cfg := Default()
	cfg.MinWinRate = 0.8
	cfg.MaxWinRate = 0.4
	require.Error(t, cfg.Validate())

	cfg = Default()
	cfg.MaxWinRate = 1.5
	require.Error(t, cfg.Validate())
}

func TestValidateCollectsAllIssues(t *testing.T) {
	cfg := Default()
	cfg.MinROI = -1
	cfg.StaticStoploss = 0.05
	cfg.RegimeWinRateDiff = 0
	cfg.CounterTrendFactor = 0

	err := cfg.Validate()
	require.Error(t, err)

	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	require.GreaterOrEqual(t, len(cfgErr.Issues), 4)
}

func TestValidateRecentTradeCounts(t *testing.T) {
	cfg := Default()
	cfg.MinRecentTradesPerDirection = 0
	require.Error(t, cfg.Validate())

	cfg = Default()
	cfg.MinRecentTradesPerDirection = 20
	cfg.MaxRecentTrades = 10
	require.Error(t, cfg.Validate())
}

func TestValidateBadPersistInterval(t *testing.T) {
	cfg := Default()
	cfg.PersistInterval = "not-a-duration"
	require.Error(t, cfg.Validate())
}
