package types

import "time"

type Candle struct {
	Timestamp time.Time `json:"t"`
	Open      float64   `json:"o"`
	High      float64   `json:"h"`
	Low       float64   `json:"l"`
	Close     float64   `json:"c"`
	Volume    float64   `json:"v"`
}

// Range returns high minus low for the candle.
func (c Candle) Range() float64 {
	return c.High - c.Low
}

// Body returns the absolute size of the candle body.
func (c Candle) Body() float64 {
	if c.Close >= c.Open {
		return c.Close - c.Open
	}
	return c.Open - c.Close
}

func (c Candle) Bullish() bool {
	return c.Close > c.Open
}

type Quote struct {
	Bid    float64
	Ask    float64
	Spread float64
}

// Snapshot is an immutable per-tick view of one instrument. It is built
// fresh on every scheduler tick and owned exclusively by that tick.
type Snapshot struct {
	Symbol    string
	Timeframe string
	Price     float64
	Candles   []Candle // fixed window, newest last
	VWAP      float64
	ATR       float64
	FlowHint  float64 // optional cross-asset order-flow hint, 0 when absent
	TakenAt   time.Time
}

func (s *Snapshot) Last() Candle {
	return s.Candles[len(s.Candles)-1]
}

func (s *Snapshot) HasCandles(n int) bool {
	return len(s.Candles) >= n
}

type Regime string

const (
	RegimeVWAPReversion Regime = "VWAP_REVERSION"
	RegimeRange         Regime = "RANGE"
	RegimeBalancedZone  Regime = "BALANCED_ZONE"
	RegimeUnknown       Regime = "UNKNOWN"
)

type RegimeResult struct {
	Regime     Regime
	Confidence float64            // 0-100
	SubScores  map[Regime]float64 // per-candidate confidence
}

// Direction constants shared across signal detection and order placement
const (
	DirectionLong  = "LONG"
	DirectionShort = "SHORT"
)

// OrderResult is the execution collaborator's answer to a placement.
type OrderResult struct {
	Accepted bool
	Handle   string
	Reason   string
}

// TradeIdea is produced only when a condition checker passes. It is
// consumed once by the admission stage and then discarded.
type TradeIdea struct {
	ID              string
	Symbol          string
	Direction       string
	EntryPrice      float64
	StopLoss        float64
	TakeProfit      float64
	Volume          float64
	StrategyName    string
	ConfluenceScore float64
	CreatedAt       time.Time
}
