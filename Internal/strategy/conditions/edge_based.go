package conditions

import (
	"github.com/quantpulse/regimescout/Internal/strategy/indicators"
	"github.com/quantpulse/regimescout/Internal/types"
	"github.com/quantpulse/regimescout/Internal/utils/config"
)

// EdgeBasedChecker is the fallback when no regime classifies with enough
// confidence. It has no regime-specific location thesis, only a demand
// for visible swing structure, and compensates with a stricter minimum
// confluence score.
type EdgeBasedChecker struct {
	cfg config.StrategyConfig
}

func NewEdgeBasedChecker(cfg config.StrategyConfig) *EdgeBasedChecker {
	return &EdgeBasedChecker{cfg: cfg}
}

func (c *EdgeBasedChecker) Name() string { return "edge_based" }

func (c *EdgeBasedChecker) CheckLocation(snap *types.Snapshot) LocationResult {
	highs := indicators.FindSwingHighs(snap.Candles, 2)
	lows := indicators.FindSwingLows(snap.Candles, 2)
	if len(highs) == 0 || len(lows) == 0 {
		return LocationResult{Reason: "location: no swing structure to trade against"}
	}
	return LocationResult{Passed: true, Detail: "swing structure present"}
}

func (c *EdgeBasedChecker) DetectSignals(snap *types.Snapshot) SignalResult {
	var result SignalResult

	if s, ok := indicators.DetectStructureShift(snap.Candles, 2); ok {
		result.Primary = append(result.Primary, s)
	}
	if s, ok := indicators.DetectLiquiditySweep(snap.Candles, 10); ok {
		result.Primary = append(result.Primary, s)
	}
	if s, ok := indicators.DetectCompressionBreakout(snap.Candles, 12, snap.ATR, 0.8, 1.2); ok {
		result.Primary = append(result.Primary, s)
	}
	if s, ok := indicators.DetectVolumeSpike(snap.Candles, 20, 2.0); ok {
		result.Secondary = append(result.Secondary, s)
	}
	if s, ok := indicators.DetectAbsorptionWick(snap.Candles, 0.5); ok {
		result.Secondary = append(result.Secondary, s)
	}
	return result
}

func (c *EdgeBasedChecker) ScoreConfluence(snap *types.Snapshot, sig SignalResult) ConfluenceResult {
	breakdown := make(map[string]float64)
	score := scoreSignals(c.cfg.ConfluenceWeights, sig, breakdown)
	score += flowAlignmentBonus(c.cfg.ConfluenceWeights, snap, sig, breakdown)

	return ConfluenceResult{
		Score:       score,
		MinForTrade: c.cfg.MinScoreForTrade,
		MinForAPlus: c.cfg.MinScoreForAPlus,
		Breakdown:   breakdown,
	}
}
