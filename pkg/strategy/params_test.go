package strategy

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/raykavin/adaptrisk/pkg/config"
	"github.com/raykavin/adaptrisk/pkg/core"
	"github.com/raykavin/adaptrisk/pkg/logger"
	"github.com/raykavin/adaptrisk/pkg/logger/zerolog"
	"github.com/raykavin/adaptrisk/pkg/performance"
	"github.com/raykavin/adaptrisk/pkg/regime"
	"github.com/raykavin/adaptrisk/pkg/risk"
	"github.com/raykavin/adaptrisk/pkg/storage"
)

type fixture struct {
	cache   *ParamsCache
	tracker *performance.Tracker
	store   *storage.BuntStore
	cfg     *config.Config
	log     logger.Logger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cfg := config.Default()
	cfg.MinRecentTradesPerDirection = 3
	cfg.RegimeWinRateDiff = 0.2
	require.NoError(t, cfg.Validate())

	log, err := zerolog.NewZerolog("error", "15:04:05", false)
	require.NoError(t, err)

	store, err := storage.NewFromMemory()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	tracker := performance.NewTracker(context.Background(), store, cfg.MaxRecentTrades, log)
	detector := regime.NewDetector(tracker, cfg)
	roi := risk.NewROICalculator(tracker, detector, cfg, log)
	stoploss := risk.NewStoplossCalculator(cfg, log)
	cache := NewParamsCache(tracker, detector, roi, stoploss, store, log)

	return &fixture{cache: cache, tracker: tracker, store: store, cfg: cfg, log: log}
}

func (f *fixture) rebuildCache() *ParamsCache {
	tracker := performance.NewTracker(context.Background(), f.store, f.cfg.MaxRecentTrades, f.log)
	detector := regime.NewDetector(tracker, f.cfg)
	roi := risk.NewROICalculator(tracker, detector, f.cfg, f.log)
	stoploss := risk.NewStoplossCalculator(f.cfg, f.log)
	return NewParamsCache(tracker, detector, roi, stoploss, f.store, f.log)
}

func TestGetOrCreateComputesTuple(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	params := f.cache.GetOrCreate(ctx, "t1", core.DirectionLong, 100, time.Now())

	require.Greater(t, params.ROI, 0.0)
	require.Less(t, params.Stoploss, 0.0)
	require.LessOrEqual(t, params.Stoploss, f.cfg.MinStoploss)
	require.GreaterOrEqual(t, params.Stoploss, f.cfg.MaxStoploss)
	require.Equal(t, core.RegimeNeutral, params.Regime)
	require.Equal(t, core.DirectionLong, params.Direction)
	require.NotNil(t, params.StoplossPrice)
	require.InDelta(t, 100*(1+params.Stoploss), *params.StoplossPrice, 1e-9)
	require.Equal(t, 1, f.cache.Len())
}

func TestGetOrCreateNoPriceWithoutEntryRate(t *testing.T) {
	f := newFixture(t)

	params := f.cache.GetOrCreate(context.Background(), "t1", core.DirectionShort, 0, time.Now())
	require.Nil(t, params.StoplossPrice)
}

func TestParamsFrozenWhileStateShifts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.cache.GetOrCreate(ctx, "t1", core.DirectionLong, 100, time.Now())

	// other trades closing moves win rates and may flip the regime, but
	// t1 keeps the tuple computed at its first evaluation
	for i := 0; i < 5; i++ {
		f.cache.OnTradeClosedWithDirection(ctx, "other-long", core.DirectionLong, 0.02, time.Now())
		f.cache.OnTradeClosedWithDirection(ctx, "other-short", core.DirectionShort, -0.02, time.Now())
	}

	again := f.cache.GetOrCreate(ctx, "t1", core.DirectionLong, 100, time.Now())
	require.Equal(t, first, again)

	// a fresh trade sees the shifted state
	fresh := f.cache.GetOrCreate(ctx, "t2", core.DirectionLong, 100, time.Now())
	require.Equal(t, core.RegimeBullish, fresh.Regime)
	require.True(t, fresh.IsAlignedTrend)
	require.NotEqual(t, first.ROI, fresh.ROI)
}

func TestAccessors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	params := f.cache.GetOrCreate(ctx, "t1", core.DirectionLong, 100, time.Now())

	roi, err := f.cache.ROI("t1")
	require.NoError(t, err)
	require.InDelta(t, params.ROI, roi, 1e-12)

	stoploss, err := f.cache.Stoploss("t1")
	require.NoError(t, err)
	require.InDelta(t, params.Stoploss, stoploss, 1e-12)

	price, err := f.cache.StoplossPrice("t1")
	require.NoError(t, err)
	require.NotNil(t, price)

	_, err = f.cache.ROI("missing")
	require.ErrorIs(t, err, core.ErrTradeNotFound)
}

func TestOnTradeClosedEvictsAndRecords(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.cache.GetOrCreate(ctx, "t1", core.DirectionShort, 100, time.Now())
	f.cache.OnTradeClosed(ctx, "t1", 0.03, time.Now())

	require.Zero(t, f.cache.Len())
	_, err := f.cache.Params("t1")
	require.ErrorIs(t, err, core.ErrTradeNotFound)

	// the outcome landed on the right direction
	require.Equal(t, 1, f.tracker.RecentCount(core.DirectionShort))
	require.InDelta(t, 1.0, f.tracker.RecentWinRate(core.DirectionShort), 1e-12)

	// and the persisted record is gone
	records, err := f.store.Trades(ctx, core.WithOpen())
	require.NoError(t, err)
	require.Empty(t, records)
}

func TestCloseAfterRestartUsesPersistedDirection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.cache.GetOrCreate(ctx, "t1", core.DirectionShort, 100, time.Now())

	// restart without rehydration: the rebuilt cache has no entry, but
	// the record in the store still knows the trade was short
	rebuilt := f.rebuildCache()
	rebuilt.OnTradeClosed(ctx, "t1", 0.03, time.Now())

	tracker := f.rebuildCache().tracker
	require.Equal(t, 1, tracker.RecentCount(core.DirectionShort))
	require.Zero(t, tracker.RecentCount(core.DirectionLong))
	require.InDelta(t, 1.0, tracker.RecentWinRate(core.DirectionShort), 1e-12)

	// the record was consumed by the close
	records, err := f.store.Trades(ctx, core.WithOpen())
	require.NoError(t, err)
	require.Empty(t, records)
}

func TestCloseForUnknownTradeDropsOutcome(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// neither cached nor persisted: there is no direction to attribute
	// the outcome to, so nothing may be recorded
	f.cache.OnTradeClosed(ctx, "ghost", 0.03, time.Now())

	require.Zero(t, f.tracker.RecentCount(core.DirectionLong))
	require.Zero(t, f.tracker.RecentCount(core.DirectionShort))
}

func TestRehydrateRestoresFrozenParams(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	original := f.cache.GetOrCreate(ctx, "t1", core.DirectionLong, 100, time.Now())

	// shift the performance state so a recompute would differ
	for i := 0; i < 5; i++ {
		f.cache.OnTradeClosedWithDirection(ctx, "x", core.DirectionLong, 0.02, time.Now())
		f.cache.OnTradeClosedWithDirection(ctx, "y", core.DirectionShort, -0.02, time.Now())
	}

	rebuilt := f.rebuildCache()
	require.NoError(t, rebuilt.Rehydrate(ctx))
	require.Equal(t, 1, rebuilt.Len())

	restored, err := rebuilt.Params("t1")
	require.NoError(t, err)
	require.InDelta(t, original.ROI, restored.ROI, 1e-12)
	require.InDelta(t, original.Stoploss, restored.Stoploss, 1e-12)
	require.Equal(t, original.Regime, restored.Regime)
}

func TestRehydrateRecomputesWhenParamsMissing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// a record persisted without its tuple, as an older process version
	// would have left it
	require.NoError(t, f.store.SaveTrade(ctx, &core.TradeRecord{
		ID:        "legacy",
		Direction: core.DirectionLong,
		EntryRate: 50,
		OpenedAt:  time.Now(),
		IsOpen:    true,
	}))

	require.NoError(t, f.cache.Rehydrate(ctx))

	params, err := f.cache.Params("legacy")
	require.NoError(t, err)
	require.Greater(t, params.ROI, 0.0)
	require.Less(t, params.Stoploss, 0.0)

	// the recomputed tuple was persisted back onto the record
	records, err := f.store.Trades(ctx, core.WithOpen())
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.NotNil(t, records[0].Params)
}

func TestRehydrateSkipsClosedTrades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.store.SaveTrade(ctx, &core.TradeRecord{
		ID:        "done",
		Direction: core.DirectionShort,
		IsOpen:    false,
	}))

	require.NoError(t, f.cache.Rehydrate(ctx))
	require.Zero(t, f.cache.Len())
}
