package conditions

import (
	"fmt"

	"github.com/quantpulse/regimescout/Internal/strategy/indicators"
	"github.com/quantpulse/regimescout/Internal/types"
	"github.com/quantpulse/regimescout/Internal/utils/config"
)

const (
	// band width ratio below this marks a compression block
	compressionWidthMax = 0.02
	compressionBlockLen = 12
)

// BalancedZoneChecker validates breakouts out of a compressed, balanced
// price block with resting liquidity at equal highs or lows.
type BalancedZoneChecker struct {
	cfg config.StrategyConfig
}

func NewBalancedZoneChecker(cfg config.StrategyConfig) *BalancedZoneChecker {
	return &BalancedZoneChecker{cfg: cfg}
}

func (c *BalancedZoneChecker) Name() string { return "balanced_zone" }

func (c *BalancedZoneChecker) CheckLocation(snap *types.Snapshot) LocationResult {
	width := indicators.BollingerWidth(snap.Candles, 20, 2.0)
	if width <= 0 || width > compressionWidthMax {
		return LocationResult{Reason: fmt.Sprintf("location: band width %.4f, not compressed (max %.4f)", width, compressionWidthMax)}
	}
	if !indicators.HasEqualExtremes(snap.Candles, 2, snap.ATR*0.2) {
		return LocationResult{Reason: "location: compression block without equal highs/lows"}
	}
	return LocationResult{
		Passed: true,
		Detail: fmt.Sprintf("compression block (width %.4f) with equal extremes", width),
	}
}

func (c *BalancedZoneChecker) DetectSignals(snap *types.Snapshot) SignalResult {
	var result SignalResult

	if s, ok := indicators.DetectCompressionBreakout(snap.Candles, compressionBlockLen, snap.ATR, 0.8, 1.2); ok {
		result.Primary = append(result.Primary, s)
	}
	if s, ok := indicators.DetectStructureShift(snap.Candles, 2); ok {
		result.Primary = append(result.Primary, s)
	}
	if s, ok := indicators.DetectCompressionConfirm(snap.Candles, 20, compressionWidthMax); ok {
		result.Secondary = append(result.Secondary, s)
	}
	if s, ok := indicators.DetectVolumeSpike(snap.Candles, 20, 1.8); ok {
		result.Secondary = append(result.Secondary, s)
	}
	return result
}

func (c *BalancedZoneChecker) ScoreConfluence(snap *types.Snapshot, sig SignalResult) ConfluenceResult {
	breakdown := make(map[string]float64)
	score := scoreSignals(c.cfg.ConfluenceWeights, sig, breakdown)

	if indicators.HasEqualExtremes(snap.Candles, 2, snap.ATR*0.2) {
		w := c.cfg.ConfluenceWeights["equal_extremes"]
		breakdown["equal_extremes"] += w
		score += w
	}

	score += flowAlignmentBonus(c.cfg.ConfluenceWeights, snap, sig, breakdown)

	return ConfluenceResult{
		Score:       score,
		MinForTrade: c.cfg.MinScoreForTrade,
		MinForAPlus: c.cfg.MinScoreForAPlus,
		Breakdown:   breakdown,
	}
}
