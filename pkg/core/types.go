package core

import "time"

// Direction identifies which way a trade profits
type Direction string

// Trade direction constants
const (
	DirectionLong  Direction = "long"
	DirectionShort Direction = "short"
)

// Opposite returns the opposing trade direction
func (d Direction) Opposite() Direction {
	if d == DirectionShort {
		return DirectionLong
	}
	return DirectionShort
}

// Regime classifies which trade direction is currently outperforming
type Regime string

// Market regime constants
const (
	RegimeBullish Regime = "bullish"
	RegimeBearish Regime = "bearish"
	RegimeNeutral Regime = "neutral"
)

// Favors reports whether the regime favors the given trade direction
func (r Regime) Favors(d Direction) bool {
	return (r == RegimeBullish && d == DirectionLong) ||
		(r == RegimeBearish && d == DirectionShort)
}

// TradeOutcome represents a completed trade result.
// Outcomes are append-only and never mutated once recorded.
type TradeOutcome struct {
	Direction   Direction `json:"direction"`
	ProfitRatio float64   `json:"profit_ratio"`
	ClosedAt    time.Time `json:"closed_at"`
}

// Win reports whether the trade closed in profit
func (o TradeOutcome) Win() bool {
	return o.ProfitRatio > 0
}

// DirectionStats holds rolling and cumulative performance for a single
// trade direction. Recent is a bounded ring: the oldest outcome is
// evicted once it exceeds the configured size. Streak is positive
// during a win streak and negative during a loss streak.
type DirectionStats struct {
	Recent      []TradeOutcome `json:"recent"`
	Wins        int            `json:"wins"`
	Losses      int            `json:"losses"`
	TotalProfit float64        `json:"total_profit"`
	Streak      int            `json:"streak"`
}

// PerformanceState is the process-wide performance snapshot persisted
// through a PerformanceStore
type PerformanceState struct {
	Long  DirectionStats `json:"long"`
	Short DirectionStats `json:"short"`
}

// NewPerformanceState creates an empty performance state
func NewPerformanceState() *PerformanceState {
	return &PerformanceState{}
}

// Stats returns the stats bucket for the given direction
func (s *PerformanceState) Stats(d Direction) *DirectionStats {
	if d == DirectionShort {
		return &s.Short
	}
	return &s.Long
}

// RiskParameters is the tuple computed once per trade at its first
// evaluation and frozen for the trade's lifetime. StoplossPrice is nil
// when no absolute price was derived.
type RiskParameters struct {
	ROI            float64   `json:"roi"`
	Stoploss       float64   `json:"stoploss"`
	StoplossPrice  *float64  `json:"stoploss_price,omitempty"`
	IsCounterTrend bool      `json:"is_counter_trend"`
	IsAlignedTrend bool      `json:"is_aligned_trend"`
	Regime         Regime    `json:"regime"`
	Direction      Direction `json:"direction"`
	EntryRate      float64   `json:"entry_rate"`
	ComputedAt     time.Time `json:"computed_at"`
}

// TradeRecord is the persisted view of an open trade, sufficient to
// rebuild its risk parameters after a process restart. Params carries
// the frozen tuple so rehydration does not drift from what the trade
// was opened with.
type TradeRecord struct {
	ID        string          `json:"id" gorm:"primaryKey"`
	Direction Direction       `json:"direction"`
	EntryRate float64         `json:"entry_rate"`
	OpenedAt  time.Time       `json:"opened_at"`
	IsOpen    bool            `json:"is_open"`
	Params    *RiskParameters `json:"params,omitempty" gorm:"serializer:json"`
}

// TradeFilter defines a function type for filtering trade records
type TradeFilter func(record TradeRecord) bool

// WithOpen filters records of trades that are still open
func WithOpen() TradeFilter {
	return func(record TradeRecord) bool {
		return record.IsOpen
	}
}

// WithDirection filters records by trade direction
func WithDirection(direction Direction) TradeFilter {
	return func(record TradeRecord) bool {
		return record.Direction == direction
	}
}

// WithID filters records by trade identifier
func WithID(id string) TradeFilter {
	return func(record TradeRecord) bool {
		return record.ID == id
	}
}
