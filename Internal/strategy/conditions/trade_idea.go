package conditions

import (
	"time"

	"github.com/google/uuid"

	"github.com/quantpulse/regimescout/Internal/types"
)

const (
	stopATRMult   = 1.5
	targetATRMult = 2.5
	baseVolume    = 1.0
	aplusVolume   = 1.5
)

// Percentage stop fallbacks used when ATR is unusable, per symbol. The
// default suits FX majors; wider percentages for instruments that move.
var stopPercentFallback = map[string]float64{
	"XAUUSD": 0.006,
	"BTCUSD": 0.012,
	"ETHUSD": 0.015,
}

const defaultStopPercent = 0.004

// GenerateTradeIdea turns a passed check into an order instruction. The
// direction comes from the same signal sources layer 3 used, in priority
// order: structure shift, then liquidity sweep, then which side of VWAP
// price sits on. Returns nil when no direction can be determined.
func GenerateTradeIdea(snap *types.Snapshot, result ConditionCheckResult) *types.TradeIdea {
	if !result.Passed || result.Signals == nil {
		return nil
	}

	direction := directionFromSignals(snap, result.Signals)
	if direction == "" {
		return nil
	}

	entry := snap.Price
	stopDistance := snap.ATR * stopATRMult
	targetDistance := snap.ATR * targetATRMult
	if stopDistance <= 0 {
		pct, ok := stopPercentFallback[snap.Symbol]
		if !ok {
			pct = defaultStopPercent
		}
		stopDistance = entry * pct
		targetDistance = stopDistance * (targetATRMult / stopATRMult)
	}

	var stop, target float64
	if direction == types.DirectionLong {
		stop = entry - stopDistance
		target = entry + targetDistance
	} else {
		stop = entry + stopDistance
		target = entry - targetDistance
	}

	volume := baseVolume
	if result.IsAPlusSetup {
		volume = aplusVolume
	}

	return &types.TradeIdea{
		ID:              uuid.NewString(),
		Symbol:          snap.Symbol,
		Direction:       direction,
		EntryPrice:      entry,
		StopLoss:        stop,
		TakeProfit:      target,
		Volume:          volume,
		StrategyName:    result.StrategyName,
		ConfluenceScore: result.ConfluenceScore,
		CreatedAt:       time.Now(),
	}
}

func directionFromSignals(snap *types.Snapshot, sig *SignalResult) string {
	for _, name := range []string{"structure_shift", "liquidity_sweep"} {
		for _, s := range sig.Primary {
			if s.Name == name && s.Direction != "" {
				return s.Direction
			}
		}
	}
	// VWAP-side fallback: a stretched price reverts toward VWAP
	if snap.VWAP > 0 && snap.Price != snap.VWAP {
		if snap.Price < snap.VWAP {
			return types.DirectionLong
		}
		return types.DirectionShort
	}
	return ""
}
