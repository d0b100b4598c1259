package core

import "context"

// PerformanceStore persists the rolling performance state so win/loss
// history survives process restarts. Implementations must make Save a
// fast, idempotent write: the tracker calls it synchronously after
// every recorded outcome.
type PerformanceStore interface {
	// Load retrieves the last persisted state, or an empty state when
	// nothing was persisted yet
	Load(ctx context.Context) (*PerformanceState, error)

	// Save persists the full state snapshot
	Save(ctx context.Context, state *PerformanceState) error

	// Clear removes all persisted performance data
	Clear(ctx context.Context) error
}

// TradeRepository persists open trade records so per-trade risk
// parameters can be rehydrated after a restart
type TradeRepository interface {
	// SaveTrade stores or replaces a trade record
	SaveTrade(ctx context.Context, record *TradeRecord) error

	// Trades retrieves trade records matching all provided filters
	Trades(ctx context.Context, filters ...TradeFilter) ([]*TradeRecord, error)

	// DeleteTrade removes the record for the given trade identifier
	DeleteTrade(ctx context.Context, id string) error
}
