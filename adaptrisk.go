package adaptrisk

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aybabtme/uniplot/histogram"
	"github.com/olekukonko/tablewriter"

	"github.com/raykavin/adaptrisk/pkg/config"
	"github.com/raykavin/adaptrisk/pkg/core"
	"github.com/raykavin/adaptrisk/pkg/logger"
	"github.com/raykavin/adaptrisk/pkg/metric"
	"github.com/raykavin/adaptrisk/pkg/performance"
	"github.com/raykavin/adaptrisk/pkg/regime"
	"github.com/raykavin/adaptrisk/pkg/risk"
	"github.com/raykavin/adaptrisk/pkg/storage"
	"github.com/raykavin/adaptrisk/pkg/strategy"
)

const defaultDatabase = "adaptrisk.db"

// Engine is the adaptive risk decision core. The host bot feeds it
// trade lifecycle events and queries the frozen per-trade ROI and
// stoploss targets on every evaluation tick.
type Engine struct {
	cfg    *config.Config
	log    logger.Logger
	store  core.PerformanceStore
	trades core.TradeRepository

	tracker  *performance.Tracker
	detector *regime.Detector
	roi      *risk.ROICalculator
	stoploss *risk.StoplossCalculator
	cache    *strategy.ParamsCache

	backtest bool
}

// Option is a functional option for configuring an Engine instance
type Option func(*Engine)

// WithLogger sets the engine logger
func WithLogger(log logger.Logger) Option {
	return func(e *Engine) {
		e.log = log
	}
}

// WithPerformanceStore sets the performance state store, by default a
// local BuntDB file is used
func WithPerformanceStore(store core.PerformanceStore) Option {
	return func(e *Engine) {
		e.store = store
	}
}

// WithTradeRepository sets the open-trade record repository
func WithTradeRepository(trades core.TradeRepository) Option {
	return func(e *Engine) {
		e.trades = trades
	}
}

// WithBacktest switches the engine to backtest mode: performance state
// is cleared at start so live history never leaks into a simulation,
// and persistence writes are debounced.
func WithBacktest() Option {
	return func(e *Engine) {
		e.backtest = true
	}
}

// NewEngine validates the configuration and wires the performance
// tracker, regime detector, risk calculators and trade parameter cache
func NewEngine(ctx context.Context, cfg *config.Config, options ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	engine := &Engine{cfg: cfg}

	for _, option := range options {
		option(engine)
	}

	if engine.log == nil {
		engine.log = DefaultLog
	}

	if engine.store == nil || engine.trades == nil {
		bunt, err := storage.NewFromFile(defaultDatabase)
		if err != nil {
			return nil, err
		}
		if engine.store == nil {
			engine.store = bunt
		}
		if engine.trades == nil {
			engine.trades = bunt
		}
	}

	var trackerOpts []performance.Option
	if engine.backtest {
		trackerOpts = append(trackerOpts,
			performance.WithPersistDebounce(cfg.PersistEvery(), cfg.PersistBatch))
	}

	engine.tracker = performance.NewTracker(ctx, engine.store, cfg.MaxRecentTrades, engine.log, trackerOpts...)
	if engine.backtest {
		engine.tracker.Clear(ctx)
	}

	engine.detector = regime.NewDetector(engine.tracker, cfg)
	engine.roi = risk.NewROICalculator(engine.tracker, engine.detector, cfg, engine.log)
	engine.stoploss = risk.NewStoplossCalculator(cfg, engine.log)
	engine.cache = strategy.NewParamsCache(
		engine.tracker, engine.detector, engine.roi, engine.stoploss, engine.trades, engine.log)

	return engine, nil
}

// OnTradeOpened computes and freezes the risk parameters for a newly
// opened trade
func (e *Engine) OnTradeOpened(ctx context.Context, id string, direction core.Direction, entryRate float64, openedAt time.Time) core.RiskParameters {
	return e.cache.GetOrCreate(ctx, id, direction, entryRate, openedAt)
}

// OnTradeClosed evicts the trade's parameters and records its outcome
func (e *Engine) OnTradeClosed(ctx context.Context, id string, profitRatio float64, closedAt time.Time) {
	e.cache.OnTradeClosed(ctx, id, profitRatio, closedAt)
}

// ROI returns the frozen take-profit target for an open trade
func (e *Engine) ROI(id string) (float64, error) {
	return e.cache.ROI(id)
}

// Stoploss returns the frozen stoploss fraction for an open trade
func (e *Engine) Stoploss(id string) (float64, error) {
	return e.cache.Stoploss(id)
}

// StoplossPrice returns the frozen absolute stoploss price for an open
// trade, or nil when none was derived
func (e *Engine) StoplossPrice(id string) (*float64, error) {
	return e.cache.StoplossPrice(id)
}

// Rehydrate rebuilds the parameter cache from persisted open trade
// records after a restart
func (e *Engine) Rehydrate(ctx context.Context) error {
	return e.cache.Rehydrate(ctx)
}

// Regime returns the currently detected market regime
func (e *Engine) Regime() core.Regime {
	return e.detector.Detect()
}

// Tracker exposes the performance tracker, mainly for replays and
// diagnostics
func (e *Engine) Tracker() *performance.Tracker {
	return e.tracker
}

// Cache exposes the trade parameter cache
func (e *Engine) Cache() *strategy.ParamsCache {
	return e.cache
}

// Summary renders a human-readable diagnostics report: regime,
// per-direction performance, fallback counters and the distribution of
// recent profit ratios
func (e *Engine) Summary() string {
	var buffer bytes.Buffer

	state := e.tracker.Snapshot()

	table := tablewriter.NewWriter(&buffer)
	table.SetHeader([]string{"", "Trades", "Win", "Loss", "Recent WR %", "Overall WR %", "Streak", "Profit"})

	returns := make([]float64, 0, len(state.Long.Recent)+len(state.Short.Recent))
	for _, direction := range []core.Direction{core.DirectionLong, core.DirectionShort} {
		stats := state.Stats(direction)
		table.Append([]string{
			string(direction),
			strconv.Itoa(stats.Wins + stats.Losses),
			strconv.Itoa(stats.Wins),
			strconv.Itoa(stats.Losses),
			fmt.Sprintf("%.1f", e.tracker.RecentWinRate(direction)*100),
			fmt.Sprintf("%.1f", e.tracker.OverallWinRate(direction)*100),
			strconv.Itoa(stats.Streak),
			fmt.Sprintf("%.4f", stats.TotalProfit),
		})

		for _, outcome := range stats.Recent {
			returns = append(returns, outcome.ProfitRatio)
		}
	}
	table.Render()

	fmt.Fprintf(&buffer, "regime: %s | risk/reward: %s | dynamic stoploss: %v\n",
		e.detector.Detect(), e.cfg.RiskRewardRatio, e.cfg.UseDynamicStoploss)
	fmt.Fprintf(&buffer, "open trades: %d | roi fallbacks: %d | stoploss fallbacks: %d\n",
		e.cache.Len(), e.roi.FallbackCount(), e.stoploss.FallbackCount())
	if e.tracker.Degraded() {
		fmt.Fprintf(&buffer, "WARNING: performance store unavailable, %d writes lost\n",
			e.tracker.SaveFailures())
	}

	if len(returns) > 0 {
		returnsPercent := make([]float64, len(returns))
		for i, p := range returns {
			returnsPercent[i] = p * 100
		}

		fmt.Fprintln(&buffer, "------ RECENT RETURNS (%) -------")
		hist := histogram.Hist(10, returnsPercent)
		_ = histogram.Fprint(&buffer, hist, histogram.Linear(10))

		meanInterval := metric.Bootstrap(returns, metric.Mean, 10000, 0.95)
		payoffInterval := metric.Bootstrap(returns, metric.Payoff, 10000, 0.95)
		fmt.Fprintf(&buffer, "RETURN: %.2f%% (%.2f%% ~ %.2f%%)\n",
			meanInterval.Mean*100, meanInterval.Lower*100, meanInterval.Upper*100)
		fmt.Fprintf(&buffer, "PAYOFF: %.2f (%.2f ~ %.2f)\n",
			payoffInterval.Mean, payoffInterval.Lower, payoffInterval.Upper)
	}

	return buffer.String()
}
