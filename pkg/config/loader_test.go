package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "adaptrisk.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.FileExists(t, path)
	require.Equal(t, Default().RiskRewardRatio, cfg.RiskRewardRatio)
	require.InDelta(t, Default().MinROI, cfg.MinROI, 1e-12)

	// second load reads the file it just wrote
	again, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg.MaxRecentTrades, again.MaxRecentTrades)
}

func TestLoadReadsExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "adaptrisk.yaml")
	content := `
risk_reward_ratio: "1:2"
min_roi: 0.02
max_roi: 0.06
min_win_rate: 0.2
max_win_rate: 0.8
min_stoploss: -0.01
max_stoploss: -0.05
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.InDelta(t, 0.5, cfg.RiskReward(), 1e-12)
	require.InDelta(t, 0.02, cfg.MinROI, 1e-12)

	// fields absent from the file keep their defaults
	require.Equal(t, Default().MaxRecentTrades, cfg.MaxRecentTrades)
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "adaptrisk.yaml")
	require.NoError(t, os.WriteFile(path, []byte("min_roi: 0.5\nmax_roi: 0.1\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}
