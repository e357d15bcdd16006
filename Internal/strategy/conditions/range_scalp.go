package conditions

import (
	"fmt"

	"github.com/quantpulse/regimescout/Internal/strategy/indicators"
	"github.com/quantpulse/regimescout/Internal/types"
	"github.com/quantpulse/regimescout/Internal/utils/config"
)

const (
	// price must sit within this many ATRs of a range edge
	edgeProximityATR = 0.5
	// an edge is validated only after this many respects
	minEdgeRespects = 2
)

// RangeScalpChecker validates fades at the edges of an established
// trading range.
type RangeScalpChecker struct {
	cfg config.StrategyConfig
}

func NewRangeScalpChecker(cfg config.StrategyConfig) *RangeScalpChecker {
	return &RangeScalpChecker{cfg: cfg}
}

func (c *RangeScalpChecker) Name() string { return "range_scalp" }

func (c *RangeScalpChecker) CheckLocation(snap *types.Snapshot) LocationResult {
	edges, ok := indicators.DetectRangeEdges(snap.Candles, 2, snap.ATR*0.25)
	if !ok {
		return LocationResult{Reason: "location: no two-sided range structure detected"}
	}

	proximity := snap.ATR * edgeProximityATR
	atUpper := edges.Upper-snap.Price <= proximity && snap.Price <= edges.Upper+proximity
	atLower := snap.Price-edges.Lower <= proximity && snap.Price >= edges.Lower-proximity

	switch {
	case atUpper && edges.UpperRespects >= minEdgeRespects:
		return LocationResult{
			Passed: true,
			Detail: fmt.Sprintf("at upper edge %.5f (%d respects)", edges.Upper, edges.UpperRespects),
		}
	case atLower && edges.LowerRespects >= minEdgeRespects:
		return LocationResult{
			Passed: true,
			Detail: fmt.Sprintf("at lower edge %.5f (%d respects)", edges.Lower, edges.LowerRespects),
		}
	case atUpper || atLower:
		return LocationResult{Reason: fmt.Sprintf("location: at a range edge but it lacks %d respects", minEdgeRespects)}
	default:
		return LocationResult{Reason: "location: price mid-range, not at a validated edge"}
	}
}

func (c *RangeScalpChecker) DetectSignals(snap *types.Snapshot) SignalResult {
	var result SignalResult

	if s, ok := indicators.DetectLiquiditySweep(snap.Candles, 10); ok {
		result.Primary = append(result.Primary, s)
	}
	if s, ok := indicators.DetectStructureShift(snap.Candles, 2); ok {
		result.Primary = append(result.Primary, s)
	}
	if s, ok := indicators.DetectAbsorptionWick(snap.Candles, 0.45); ok {
		result.Secondary = append(result.Secondary, s)
	}
	if s, ok := indicators.DetectVolumeSpike(snap.Candles, 20, 1.5); ok {
		result.Secondary = append(result.Secondary, s)
	}
	return result
}

func (c *RangeScalpChecker) ScoreConfluence(snap *types.Snapshot, sig SignalResult) ConfluenceResult {
	breakdown := make(map[string]float64)
	score := scoreSignals(c.cfg.ConfluenceWeights, sig, breakdown)

	// a heavily respected edge is worth extra
	if edges, ok := indicators.DetectRangeEdges(snap.Candles, 2, snap.ATR*0.25); ok {
		if edges.UpperRespects >= minEdgeRespects+1 || edges.LowerRespects >= minEdgeRespects+1 {
			w := c.cfg.ConfluenceWeights["edge_respects"]
			breakdown["edge_respects"] += w
			score += w
		}
	}

	score += flowAlignmentBonus(c.cfg.ConfluenceWeights, snap, sig, breakdown)

	return ConfluenceResult{
		Score:       score,
		MinForTrade: c.cfg.MinScoreForTrade,
		MinForAPlus: c.cfg.MinScoreForAPlus,
		Breakdown:   breakdown,
	}
}
