// Package strategy coordinates regime detection and risk calculation
// per open trade, freezing each trade's parameters for its lifetime.
package strategy

import (
	"context"
	"sync"
	"time"

	"github.com/StudioSol/set"
	"github.com/raykavin/adaptrisk/pkg/core"
	"github.com/raykavin/adaptrisk/pkg/logger"
	"github.com/raykavin/adaptrisk/pkg/performance"
	"github.com/raykavin/adaptrisk/pkg/regime"
	"github.com/raykavin/adaptrisk/pkg/risk"
)

// ParamsCache maps trade identifiers to their frozen RiskParameters.
// An entry is computed lazily on first lookup from the performance
// state at that instant and never changes afterwards, so a trade's exit
// targets cannot move mid-flight. Eviction is lifecycle driven: the
// entry goes away when the trade closes.
//
// A single lock serializes lookups against outcome recording; the
// critical sections are tiny, so per-trade locking would buy nothing.
type ParamsCache struct {
	mu      sync.Mutex
	entries map[string]*core.RiskParameters

	tracker  *performance.Tracker
	detector *regime.Detector
	roi      *risk.ROICalculator
	stoploss *risk.StoplossCalculator
	trades   core.TradeRepository
	log      logger.Logger
}

// NewParamsCache creates the per-trade parameter cache
func NewParamsCache(
	tracker *performance.Tracker,
	detector *regime.Detector,
	roi *risk.ROICalculator,
	stoploss *risk.StoplossCalculator,
	trades core.TradeRepository,
	log logger.Logger,
) *ParamsCache {
	return &ParamsCache{
		entries:  make(map[string]*core.RiskParameters),
		tracker:  tracker,
		detector: detector,
		roi:      roi,
		stoploss: stoploss,
		trades:   trades,
		log:      log,
	}
}

// GetOrCreate returns the trade's risk parameters, computing and
// persisting them on first access. Subsequent calls return the same
// tuple even if regime or win rates have shifted since.
func (c *ParamsCache) GetOrCreate(ctx context.Context, id string, direction core.Direction, entryRate float64, openedAt time.Time) core.RiskParameters {
	c.mu.Lock()
	defer c.mu.Unlock()
	return *c.getOrCreateLocked(ctx, id, direction, entryRate, openedAt, nil)
}

// Params returns the cached tuple for an open trade
func (c *ParamsCache) Params(id string) (core.RiskParameters, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[id]
	if !ok {
		return core.RiskParameters{}, core.ErrTradeNotFound
	}
	return *entry, nil
}

// ROI returns the cached take-profit target for an open trade
func (c *ParamsCache) ROI(id string) (float64, error) {
	params, err := c.Params(id)
	return params.ROI, err
}

// Stoploss returns the cached stoploss fraction for an open trade
func (c *ParamsCache) Stoploss(id string) (float64, error) {
	params, err := c.Params(id)
	return params.Stoploss, err
}

// StoplossPrice returns the cached absolute stoploss price, or nil when
// none was derived
func (c *ParamsCache) StoplossPrice(id string) (*float64, error) {
	params, err := c.Params(id)
	return params.StoplossPrice, err
}

// Len returns the number of open trades currently cached
func (c *ParamsCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// OnTradeClosed evicts the trade's entry, removes its persisted record
// and forwards the outcome to the performance tracker. All three happen
// under the cache lock so another trade's first evaluation can never
// observe a half-applied close.
func (c *ParamsCache) OnTradeClosed(ctx context.Context, id string, profitRatio float64, closedAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var direction core.Direction
	known := false

	if entry, ok := c.entries[id]; ok {
		direction = entry.Direction
		known = true
	} else if record := c.lookupRecord(ctx, id); record != nil {
		// Restart without rehydration: the persisted record still holds
		// the trade's true direction
		direction = record.Direction
		known = true
	}

	delete(c.entries, id)

	if err := c.trades.DeleteTrade(ctx, id); err != nil {
		c.log.WithError(err).WithField("trade_id", id).Warn("could not delete trade record")
	}

	if !known {
		c.log.WithField("trade_id", id).Warn("close received for unknown trade, dropping outcome")
		return
	}

	c.tracker.RecordOutcome(ctx, direction, profitRatio, closedAt)
}

func (c *ParamsCache) lookupRecord(ctx context.Context, id string) *core.TradeRecord {
	records, err := c.trades.Trades(ctx, core.WithID(id))
	if err != nil {
		c.log.WithError(err).WithField("trade_id", id).Warn("could not look up trade record")
		return nil
	}
	if len(records) == 0 {
		return nil
	}
	return records[0]
}

// OnTradeClosedWithDirection records a close for a trade the cache may
// not know, e.g. after a restart without rehydration
func (c *ParamsCache) OnTradeClosedWithDirection(ctx context.Context, id string, direction core.Direction, profitRatio float64, closedAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, id)

	if err := c.trades.DeleteTrade(ctx, id); err != nil {
		c.log.WithError(err).WithField("trade_id", id).Warn("could not delete trade record")
	}

	c.tracker.RecordOutcome(ctx, direction, profitRatio, closedAt)
}

// Rehydrate rebuilds cache entries for every still-open persisted
// trade. Records carrying their frozen parameters are restored
// verbatim; records without them (older store, crash before the save)
// are recomputed from the current performance state with a warning,
// never silently defaulted.
func (c *ParamsCache) Rehydrate(ctx context.Context) error {
	records, err := c.trades.Trades(ctx, core.WithOpen())
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	seen := set.NewLinkedHashSetString()
	byID := make(map[string]*core.TradeRecord, len(records))
	for _, record := range records {
		seen.Add(record.ID)
		byID[record.ID] = record
	}

	restored, recomputed := 0, 0
	for id := range seen.Iter() {
		record := byID[id]
		if _, ok := c.entries[id]; ok {
			continue
		}

		if record.Params != nil {
			params := *record.Params
			c.entries[id] = &params
			restored++
			continue
		}

		c.log.WithFields(map[string]any{
			"trade_id":  id,
			"direction": record.Direction,
		}).Warn("trade record has no saved parameters, recomputing")
		c.getOrCreateLocked(ctx, id, record.Direction, record.EntryRate, record.OpenedAt, record)
		recomputed++
	}

	c.log.Infof("rehydrated %d open trades (%d restored, %d recomputed)",
		seen.Length(), restored, recomputed)

	return nil
}

// getOrCreateLocked is the only write path into the cache. It runs
// regime detection, ROI and stoploss computation against the
// performance state at this instant and stores the whole tuple
// atomically.
func (c *ParamsCache) getOrCreateLocked(ctx context.Context, id string, direction core.Direction, entryRate float64, openedAt time.Time, existing *core.TradeRecord) *core.RiskParameters {
	if entry, ok := c.entries[id]; ok {
		return entry
	}

	detected := c.detector.Detect()
	isCounterTrend := detected != core.RegimeNeutral && detected.Favors(direction.Opposite())
	isAlignedTrend := detected.Favors(direction)

	winRate := c.tracker.RecentWinRate(direction)
	roi := c.roi.Compute(direction, winRate, isCounterTrend, isAlignedTrend)
	stoploss := c.stoploss.Compute(roi, isCounterTrend, isAlignedTrend)

	params := &core.RiskParameters{
		ROI:            roi,
		Stoploss:       stoploss,
		IsCounterTrend: isCounterTrend,
		IsAlignedTrend: isAlignedTrend,
		Regime:         detected,
		Direction:      direction,
		EntryRate:      entryRate,
		ComputedAt:     openedAt,
	}

	if entryRate > 0 {
		price := c.stoploss.StoplossPrice(entryRate, stoploss, direction)
		params.StoplossPrice = &price
	}

	c.entries[id] = params

	record := existing
	if record == nil {
		record = &core.TradeRecord{
			ID:        id,
			Direction: direction,
			EntryRate: entryRate,
			OpenedAt:  openedAt,
		}
	}
	record.IsOpen = true
	record.Params = params

	if err := c.trades.SaveTrade(ctx, record); err != nil {
		c.log.WithError(err).WithField("trade_id", id).Warn("could not persist trade record")
	}

	c.log.WithFields(map[string]any{
		"trade_id":  id,
		"direction": direction,
		"regime":    detected,
	}).Infof("trade parameters fixed: roi %.4f stoploss %.4f", roi, stoploss)

	return params
}
