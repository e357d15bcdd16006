package regime

import (
	"math"

	"github.com/quantpulse/regimescout/Internal/strategy/indicators"
	"github.com/quantpulse/regimescout/Internal/types"
	"github.com/quantpulse/regimescout/Internal/utils/config"
)

const (
	sigmaPeriod   = 20
	pivotStrength = 2
	// sigma readings map linearly onto confidence between these bounds
	minSigma = 1.0
	maxSigma = 3.0
)

// candidate evaluation order doubles as the tie-break priority
var priority = []types.Regime{
	types.RegimeVWAPReversion,
	types.RegimeRange,
	types.RegimeBalancedZone,
}

// Detector classifies a snapshot into a market regime. It is a pure
// function of the snapshot plus static thresholds; no shared state.
type Detector struct {
	thresholds map[types.Regime]float64
}

func NewDetector(regimes map[string]config.RegimeConfig) *Detector {
	thresholds := make(map[types.Regime]float64, len(regimes))
	for name, rc := range regimes {
		thresholds[types.Regime(name)] = rc.DetectionThreshold
	}
	return &Detector{thresholds: thresholds}
}

// Classify scores every candidate regime and returns the single highest
// confidence one that clears its configured threshold. Ties go to the
// fixed priority order; nothing clearing a threshold yields UNKNOWN.
func (d *Detector) Classify(snap *types.Snapshot) types.RegimeResult {
	scores := map[types.Regime]float64{
		types.RegimeVWAPReversion: vwapReversionScore(snap),
		types.RegimeRange:         rangeScore(snap),
		types.RegimeBalancedZone:  balancedZoneScore(snap),
	}

	result := types.RegimeResult{Regime: types.RegimeUnknown, SubScores: scores}
	for _, candidate := range priority {
		score := scores[candidate]
		threshold, ok := d.thresholds[candidate]
		if !ok || score < threshold {
			continue
		}
		// strict greater-than keeps earlier priority on equal scores
		if score > result.Confidence {
			result.Regime = candidate
			result.Confidence = score
		}
	}
	return result
}

// vwapReversionScore rewards stretched distance from VWAP: below minSigma
// there is nothing to revert, at maxSigma and beyond confidence saturates.
func vwapReversionScore(snap *types.Snapshot) float64 {
	if !snap.HasCandles(sigmaPeriod+1) || snap.VWAP == 0 {
		return 0
	}
	sigma := math.Abs(indicators.DeviationSigma(snap.Price, snap.VWAP, snap.Candles, sigmaPeriod))
	if sigma < minSigma {
		return 0
	}
	confidence := (sigma - minSigma) / (maxSigma - minSigma) * 100
	return math.Min(confidence, 100)
}

// rangeScore counts confirmed bounces at detected range edges. Each
// respect beyond the initial touch of an edge is a bounce.
func rangeScore(snap *types.Snapshot) float64 {
	if !snap.HasCandles(sigmaPeriod+1) || snap.ATR <= 0 {
		return 0
	}
	edges, ok := indicators.DetectRangeEdges(snap.Candles, pivotStrength, snap.ATR*0.25)
	if !ok {
		return 0
	}
	// a tradable range needs both edges respected and price inside it
	if edges.UpperRespects < 1 || edges.LowerRespects < 1 {
		return 0
	}
	if snap.Price > edges.Upper || snap.Price < edges.Lower {
		return 0
	}
	bounces := (edges.UpperRespects - 1) + (edges.LowerRespects - 1)
	return math.Min(float64(bounces)*25, 100)
}

// balancedZoneScore measures Bollinger-width compression: the current
// short-window width against the width of the full lookback.
func balancedZoneScore(snap *types.Snapshot) float64 {
	if !snap.HasCandles(sigmaPeriod * 2) {
		return 0
	}
	current := indicators.BollingerWidth(snap.Candles, sigmaPeriod, 2.0)
	reference := indicators.BollingerWidth(snap.Candles, len(snap.Candles), 2.0)
	if current <= 0 || reference <= 0 {
		return 0
	}
	ratio := current / reference
	if ratio >= 1 {
		return 0
	}
	return math.Min((1-ratio)*100, 100)
}
