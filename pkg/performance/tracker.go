// Package performance tracks rolling win/loss statistics per trade
// direction and keeps them persisted between restarts.
package performance

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/jpillora/backoff"
	"github.com/raykavin/adaptrisk/pkg/core"
	"github.com/raykavin/adaptrisk/pkg/logger"
	"github.com/samber/lo"
)

const (
	// neutralWinRate is returned while a direction has no recorded
	// outcomes, so regime detection is not biased before enough data
	// exists
	neutralWinRate = 0.5

	// saveAttempts bounds the synchronous persistence retry so the
	// strategy loop is never blocked for long
	saveAttempts = 3
)

// Tracker owns the rolling trade-outcome history per direction. All
// mutations go through RecordOutcome, which persists the updated state
// synchronously. When the store is unreachable the tracker degrades to
// in-memory operation instead of blocking the evaluation loop.
type Tracker struct {
	mu        sync.Mutex
	store     core.PerformanceStore
	state     *core.PerformanceState
	maxRecent int
	log       logger.Logger

	degraded     bool
	saveFailures int

	// flush debouncing, used by replay runs where per-outcome saves
	// would dominate the run time
	flushEvery time.Duration
	flushBatch int
	lastFlush  time.Time
	pending    int
}

// Option configures a Tracker
type Option func(*Tracker)

// WithPersistDebounce batches persistence writes: state is flushed when
// the interval elapses or the batch size is reached, whichever first.
// A zero value disables the respective trigger.
func WithPersistDebounce(every time.Duration, batch int) Option {
	return func(t *Tracker) {
		t.flushEvery = every
		t.flushBatch = batch
	}
}

// NewTracker creates a tracker seeded from the store. A load failure is
// not fatal: the tracker starts empty and degraded, and keeps trying to
// persist on subsequent writes.
func NewTracker(ctx context.Context, store core.PerformanceStore, maxRecent int, log logger.Logger, opts ...Option) *Tracker {
	t := &Tracker{
		store:     store,
		maxRecent: maxRecent,
		log:       log,
		lastFlush: time.Now(),
	}

	for _, opt := range opts {
		opt(t)
	}

	state, err := store.Load(ctx)
	if err != nil {
		log.WithError(err).Warn("could not load performance state, starting empty")
		t.degraded = true
		state = core.NewPerformanceState()
	}
	if state == nil {
		state = core.NewPerformanceState()
	}
	// A shrunk max_recent_trades must not leave oversized rings behind
	for _, d := range []core.Direction{core.DirectionLong, core.DirectionShort} {
		stats := state.Stats(d)
		if len(stats.Recent) > maxRecent {
			stats.Recent = stats.Recent[len(stats.Recent)-maxRecent:]
		}
	}
	t.state = state

	return t
}

// RecordOutcome appends a completed trade result for the direction,
// updates cumulative counters and the consecutive streak, and persists
// the state. Non-finite profit ratios are rejected with a warning.
func (t *Tracker) RecordOutcome(ctx context.Context, direction core.Direction, profitRatio float64, closedAt time.Time) {
	if math.IsNaN(profitRatio) || math.IsInf(profitRatio, 0) {
		t.log.WithField("direction", direction).
			Warnf("discarding outcome with non-finite profit ratio %v", profitRatio)
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	outcome := core.TradeOutcome{
		Direction:   direction,
		ProfitRatio: profitRatio,
		ClosedAt:    closedAt,
	}

	stats := t.state.Stats(direction)
	if outcome.Win() {
		stats.Wins++
		if stats.Streak > 0 {
			stats.Streak++
		} else {
			stats.Streak = 1
		}
	} else {
		stats.Losses++
		if stats.Streak < 0 {
			stats.Streak--
		} else {
			stats.Streak = -1
		}
	}

	stats.Recent = append(stats.Recent, outcome)
	if len(stats.Recent) > t.maxRecent {
		stats.Recent = stats.Recent[len(stats.Recent)-t.maxRecent:]
	}

	stats.TotalProfit += profitRatio

	t.log.WithFields(map[string]any{
		"direction": direction,
		"win":       outcome.Win(),
		"streak":    stats.Streak,
	}).Debugf("trade exit %.2f%%", profitRatio*100)

	t.persistLocked(ctx)
}

// RecentWinRate returns the win rate over the bounded recent ring, or a
// neutral 0.5 while the ring is empty
func (t *Tracker) RecentWinRate(direction core.Direction) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	recent := t.state.Stats(direction).Recent
	if len(recent) == 0 {
		return neutralWinRate
	}

	wins := lo.CountBy(recent, core.TradeOutcome.Win)
	return float64(wins) / float64(len(recent))
}

// OverallWinRate returns the cumulative win rate, or a neutral 0.5
// before any trade closed
func (t *Tracker) OverallWinRate(direction core.Direction) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	stats := t.state.Stats(direction)
	total := stats.Wins + stats.Losses
	if total == 0 {
		return neutralWinRate
	}
	return float64(stats.Wins) / float64(total)
}

// ConsecutiveCount returns the signed streak counter: positive during a
// win streak, negative during a loss streak
func (t *Tracker) ConsecutiveCount(direction core.Direction) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.Stats(direction).Streak
}

// TotalProfit returns the cumulative profit ratio sum for the direction
func (t *Tracker) TotalProfit(direction core.Direction) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.Stats(direction).TotalProfit
}

// RecentCount returns the number of outcomes currently in the ring
func (t *Tracker) RecentCount(direction core.Direction) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.state.Stats(direction).Recent)
}

// Snapshot returns a copy of the current performance state for
// diagnostics
func (t *Tracker) Snapshot() core.PerformanceState {
	t.mu.Lock()
	defer t.mu.Unlock()

	snapshot := *t.state
	snapshot.Long.Recent = append([]core.TradeOutcome(nil), t.state.Long.Recent...)
	snapshot.Short.Recent = append([]core.TradeOutcome(nil), t.state.Short.Recent...)
	return snapshot
}

// Degraded reports whether the tracker is currently operating without a
// reachable store
func (t *Tracker) Degraded() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.degraded
}

// SaveFailures returns how many persistence writes were abandoned after
// exhausting retries
func (t *Tracker) SaveFailures() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.saveFailures
}

// Clear resets all tracked state and wipes the store. Used when
// entering a fresh backtest run so live-trading history never leaks
// into a simulation.
func (t *Tracker) Clear(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.state = core.NewPerformanceState()
	t.pending = 0
	t.lastFlush = time.Now()

	if err := t.store.Clear(ctx); err != nil {
		t.log.WithError(err).Warn("could not clear persisted performance state")
	}
}

// Flush forces a pending debounced state write
func (t *Tracker) Flush(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.saveLocked(ctx)
}

func (t *Tracker) persistLocked(ctx context.Context) {
	if t.flushEvery > 0 || t.flushBatch > 0 {
		t.pending++
		intervalDue := t.flushEvery > 0 && time.Since(t.lastFlush) >= t.flushEvery
		batchDue := t.flushBatch > 0 && t.pending >= t.flushBatch
		if !intervalDue && !batchDue {
			return
		}
	}
	t.saveLocked(ctx)
}

func (t *Tracker) saveLocked(ctx context.Context) {
	retry := &backoff.Backoff{
		Min:    20 * time.Millisecond,
		Max:    200 * time.Millisecond,
		Factor: 2,
	}

	var lastErr error
	for attempt := 0; attempt < saveAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(retry.Duration())
		}

		if lastErr = t.store.Save(ctx, t.state); lastErr == nil {
			t.pending = 0
			t.lastFlush = time.Now()
			if t.degraded {
				t.degraded = false
				t.log.Info("performance store reachable again")
			}
			return
		}
	}

	t.saveFailures++
	if !t.degraded {
		t.degraded = true
		t.log.WithError(lastErr).Warn("performance store unavailable, continuing in-memory")
	}
}
