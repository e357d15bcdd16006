package conditions

import (
	"fmt"
	"math"

	"github.com/quantpulse/regimescout/Internal/strategy/indicators"
	"github.com/quantpulse/regimescout/Internal/types"
	"github.com/quantpulse/regimescout/Internal/utils/config"
)

const (
	reversionMinSigma = 1.0
	reversionMaxSigma = 3.5
	// VWAP slope above this fraction of ATR per candle means the level is
	// trending away, not mean-reverting
	reversionMaxSlopeATR = 0.15
)

// VWAPReversionChecker validates mean-reversion setups: price stretched
// away from a flat VWAP, snapping back on a confirmed trigger.
type VWAPReversionChecker struct {
	cfg config.StrategyConfig
}

func NewVWAPReversionChecker(cfg config.StrategyConfig) *VWAPReversionChecker {
	return &VWAPReversionChecker{cfg: cfg}
}

func (c *VWAPReversionChecker) Name() string { return "vwap_reversion" }

func (c *VWAPReversionChecker) CheckLocation(snap *types.Snapshot) LocationResult {
	if snap.VWAP == 0 {
		return LocationResult{Reason: "location: VWAP unavailable"}
	}

	sigma := indicators.DeviationSigma(snap.Price, snap.VWAP, snap.Candles, 20)
	absSigma := math.Abs(sigma)
	if absSigma < reversionMinSigma {
		return LocationResult{Reason: fmt.Sprintf("location: price only %.2f sigma from VWAP, need %.1f", absSigma, reversionMinSigma)}
	}
	if absSigma > reversionMaxSigma {
		return LocationResult{Reason: fmt.Sprintf("location: price %.2f sigma from VWAP, beyond reversion band %.1f", absSigma, reversionMaxSigma)}
	}

	slope := indicators.VWAPSlope(snap.Candles, 5)
	if snap.ATR > 0 && math.Abs(slope) > snap.ATR*reversionMaxSlopeATR {
		return LocationResult{Reason: fmt.Sprintf("location: VWAP slope %.5f incompatible with reversion", slope)}
	}

	return LocationResult{
		Passed: true,
		Detail: fmt.Sprintf("price %.2f sigma from VWAP with flat slope", sigma),
	}
}

func (c *VWAPReversionChecker) DetectSignals(snap *types.Snapshot) SignalResult {
	var result SignalResult

	if s, ok := indicators.DetectStructureShift(snap.Candles, 2); ok {
		result.Primary = append(result.Primary, s)
	}
	if s, ok := indicators.DetectLiquiditySweep(snap.Candles, 10); ok {
		result.Primary = append(result.Primary, s)
	}
	if s, ok := indicators.DetectVolumeSpike(snap.Candles, 20, 1.8); ok {
		result.Secondary = append(result.Secondary, s)
	}
	if s, ok := indicators.DetectAbsorptionWick(snap.Candles, 0.5); ok {
		result.Secondary = append(result.Secondary, s)
	}
	return result
}

func (c *VWAPReversionChecker) ScoreConfluence(snap *types.Snapshot, sig SignalResult) ConfluenceResult {
	breakdown := make(map[string]float64)
	score := scoreSignals(c.cfg.ConfluenceWeights, sig, breakdown)

	// distance bonus: a deeper stretch is a stronger reversion candidate
	sigma := math.Abs(indicators.DeviationSigma(snap.Price, snap.VWAP, snap.Candles, 20))
	if w := c.cfg.ConfluenceWeights["vwap_distance"]; sigma >= 2.0 {
		breakdown["vwap_distance"] += w
		score += w
	} else if sigma >= 1.5 {
		breakdown["vwap_distance"] += w / 2
		score += w / 2
	}

	score += flowAlignmentBonus(c.cfg.ConfluenceWeights, snap, sig, breakdown)

	return ConfluenceResult{
		Score:       score,
		MinForTrade: c.cfg.MinScoreForTrade,
		MinForAPlus: c.cfg.MinScoreForAPlus,
		Breakdown:   breakdown,
	}
}
