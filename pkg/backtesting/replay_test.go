package backtesting

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/raykavin/adaptrisk/pkg/core"
	"github.com/raykavin/adaptrisk/pkg/logger"
	"github.com/raykavin/adaptrisk/pkg/logger/zerolog"
	"github.com/raykavin/adaptrisk/pkg/performance"
	"github.com/raykavin/adaptrisk/pkg/storage"
)

func testLogger(t *testing.T) logger.Logger {
	t.Helper()
	log, err := zerolog.NewZerolog("error", "15:04:05", false)
	require.NoError(t, err)
	return log
}

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	file := filepath.Join(t.TempDir(), "outcomes.csv")
	require.NoError(t, os.WriteFile(file, []byte(content), 0o644))
	return file
}

func TestParseFile(t *testing.T) {
	file := writeCSV(t, "1764590400,long,0.03\n1764594000,short,-0.01\n")

	outcomes, err := ParseFile(file)
	require.NoError(t, err)
	require.Len(t, outcomes, 2)
	require.Equal(t, core.DirectionLong, outcomes[0].Direction)
	require.InDelta(t, 0.03, outcomes[0].ProfitRatio, 1e-12)
	require.Equal(t, time.Unix(1764590400, 0), outcomes[0].ClosedAt)
	require.Equal(t, core.DirectionShort, outcomes[1].Direction)
}

func TestParseFileSkipsHeader(t *testing.T) {
	file := writeCSV(t, "timestamp,direction,profit\n1764590400,long,0.03\n")

	outcomes, err := ParseFile(file)
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
}

func TestParseFileRejectsBadRows(t *testing.T) {
	for name, content := range map[string]string{
		"short row":     "1764590400,long\n",
		"bad direction": "1764590400,sideways,0.03\n",
		"bad profit":    "1764590400,long,abc\n",
		"bad timestamp": "1764590400,long,0.01\nnope,long,0.01\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseFile(writeCSV(t, content))
			require.Error(t, err)
		})
	}
}

func TestParseFileMissing(t *testing.T) {
	_, err := ParseFile(filepath.Join(t.TempDir(), "absent.csv"))
	require.Error(t, err)
}

func TestRunFeedsTracker(t *testing.T) {
	store, err := storage.NewFromMemory()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	log := testLogger(t)
	tracker := performance.NewTracker(context.Background(), store, 10, log,
		performance.WithPersistDebounce(time.Hour, 1000))

	// pre-existing history must be wiped before the replay starts
	tracker.RecordOutcome(context.Background(), core.DirectionLong, 0.5, time.Now())

	file := writeCSV(t,
		"1764590400,long,0.03\n"+
			"1764594000,long,-0.01\n"+
			"1764597600,short,0.02\n")

	replayer := NewReplayer(tracker, log)
	require.NoError(t, replayer.Run(context.Background(), file))

	require.Equal(t, 2, tracker.RecentCount(core.DirectionLong))
	require.Equal(t, 1, tracker.RecentCount(core.DirectionShort))
	require.InDelta(t, 0.5, tracker.RecentWinRate(core.DirectionLong), 1e-12)
	require.InDelta(t, 0.02, tracker.TotalProfit(core.DirectionShort), 1e-12)

	// the final flush made the replayed state durable
	state, err := store.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, state.Long.Wins)
	require.Equal(t, 1, state.Long.Losses)
	require.Equal(t, 1, state.Short.Wins)
}
