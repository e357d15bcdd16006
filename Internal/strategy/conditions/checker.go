package conditions

import (
	"fmt"

	"github.com/quantpulse/regimescout/Internal/strategy/indicators"
	"github.com/quantpulse/regimescout/Internal/types"
)

// MaxSpreadATRRatio is the spread sanity bound: a spread above this
// multiple of ATR fails the pre-trade layer and the pre-dispatch
// re-check alike.
const MaxSpreadATRRatio = 0.25

// minimum candle window any checker needs
const minCandles = 30

// PreTradeResult is the layer-1 record: cheap sanity filters that must
// hold before any structural work is done.
type PreTradeResult struct {
	Passed       bool
	ATRAvailable bool
	CandlesOK    bool
	SpreadOK     bool
	Reason       string
}

// LocationResult is the layer-2 record: the regime-specific structural
// precondition.
type LocationResult struct {
	Passed bool
	Detail string
	Reason string
}

// SignalResult is the layer-3 record. Both a primary trigger and a
// secondary confluence signal are required.
type SignalResult struct {
	Passed    bool
	Primary   []indicators.Signal
	Secondary []indicators.Signal
	Reason    string
}

// ConfluenceResult is the layer-4 record: the weighted rubric outcome.
type ConfluenceResult struct {
	Passed       bool
	Score        float64
	MinForTrade  float64
	MinForAPlus  float64
	Breakdown    map[string]float64
	Reason       string
}

// ConditionCheckResult is the terminal output of the 4-layer state
// machine for one snapshot. When Passed is false exactly one layer holds
// the failure and all later layers are nil.
type ConditionCheckResult struct {
	StrategyName             string
	Passed                   bool
	IsAPlusSetup             bool
	ConfluenceScore          float64
	PrimaryTriggerCount      int
	SecondaryConfluenceCount int
	PreTrade                 *PreTradeResult
	Location                 *LocationResult
	Signals                  *SignalResult
	Confluence               *ConfluenceResult
	Reasons                  []string
}

// Checker is one regime-specific condition state machine. The shared
// Evaluate driver sequences the layers; implementations supply the
// regime-specific behavior of layers 2-4.
type Checker interface {
	Name() string
	CheckLocation(snap *types.Snapshot) LocationResult
	DetectSignals(snap *types.Snapshot) SignalResult
	ScoreConfluence(snap *types.Snapshot, signals SignalResult) ConfluenceResult
}

// Evaluate runs the four layers strictly in order, short-circuiting on the
// first failure. The quote may be nil when the execution collaborator is
// absent; spread sanity then degrades to allow.
func Evaluate(c Checker, snap *types.Snapshot, quote *types.Quote) ConditionCheckResult {
	result := ConditionCheckResult{StrategyName: c.Name()}

	pre := checkPreTrade(snap, quote)
	result.PreTrade = &pre
	if !pre.Passed {
		result.Reasons = append(result.Reasons, pre.Reason)
		return result
	}
	result.Reasons = append(result.Reasons, "pre-trade filters passed")

	loc := c.CheckLocation(snap)
	result.Location = &loc
	if !loc.Passed {
		result.Reasons = append(result.Reasons, loc.Reason)
		return result
	}
	result.Reasons = append(result.Reasons, "location filter passed: "+loc.Detail)

	sig := c.DetectSignals(snap)
	sig.Passed = len(sig.Primary) > 0 && len(sig.Secondary) > 0
	if !sig.Passed && sig.Reason == "" {
		sig.Reason = fmt.Sprintf("insufficient candle signals: %d primary, %d secondary (need >=1 of each)",
			len(sig.Primary), len(sig.Secondary))
	}
	result.Signals = &sig
	result.PrimaryTriggerCount = len(sig.Primary)
	result.SecondaryConfluenceCount = len(sig.Secondary)
	if !sig.Passed {
		result.Reasons = append(result.Reasons, sig.Reason)
		return result
	}
	result.Reasons = append(result.Reasons,
		fmt.Sprintf("candle signals passed: %d primary, %d secondary", len(sig.Primary), len(sig.Secondary)))

	conf := c.ScoreConfluence(snap, sig)
	conf.Passed = conf.Score >= conf.MinForTrade
	if !conf.Passed {
		conf.Reason = fmt.Sprintf("confluence score %.2f below minimum %.2f (gap %.2f)",
			conf.Score, conf.MinForTrade, conf.MinForTrade-conf.Score)
	}
	result.Confluence = &conf
	result.ConfluenceScore = conf.Score
	if !conf.Passed {
		result.Reasons = append(result.Reasons, conf.Reason)
		return result
	}

	result.Passed = true
	result.IsAPlusSetup = conf.Score >= conf.MinForAPlus
	result.Reasons = append(result.Reasons,
		fmt.Sprintf("confluence score %.2f cleared minimum %.2f", conf.Score, conf.MinForTrade))
	return result
}

func checkPreTrade(snap *types.Snapshot, quote *types.Quote) PreTradeResult {
	pre := PreTradeResult{
		ATRAvailable: snap.ATR > 0,
		CandlesOK:    snap.HasCandles(minCandles),
		SpreadOK:     true,
	}

	if quote != nil && snap.ATR > 0 && quote.Spread > snap.ATR*MaxSpreadATRRatio {
		pre.SpreadOK = false
	}

	switch {
	case !pre.CandlesOK:
		pre.Reason = fmt.Sprintf("pre-trade: only %d candles, need %d", len(snap.Candles), minCandles)
	case !pre.ATRAvailable:
		pre.Reason = "pre-trade: ATR unavailable"
	case !pre.SpreadOK:
		pre.Reason = fmt.Sprintf("pre-trade: spread %.5f exceeds %.2f x ATR", quote.Spread, MaxSpreadATRRatio)
	default:
		pre.Passed = true
	}
	return pre
}

// scoreSignals sums the configured weights of every detected signal. The
// weights are non-negative, so adding a qualifying signal never lowers
// the score.
func scoreSignals(weights map[string]float64, sig SignalResult, breakdown map[string]float64) float64 {
	total := 0.0
	for _, s := range sig.Primary {
		w := weights[s.Name]
		breakdown[s.Name] += w
		total += w
	}
	for _, s := range sig.Secondary {
		w := weights[s.Name]
		breakdown[s.Name] += w
		total += w
	}
	return total
}

// flowAlignmentBonus awards the flow weight when the cross-asset hint
// agrees with the dominant primary signal direction.
func flowAlignmentBonus(weights map[string]float64, snap *types.Snapshot, sig SignalResult, breakdown map[string]float64) float64 {
	if snap.FlowHint == 0 {
		return 0
	}
	dir := dominantDirection(sig)
	if dir == "" {
		return 0
	}
	if (snap.FlowHint > 0 && dir == types.DirectionLong) || (snap.FlowHint < 0 && dir == types.DirectionShort) {
		w := weights["flow_alignment"]
		breakdown["flow_alignment"] += w
		return w
	}
	return 0
}

func dominantDirection(sig SignalResult) string {
	for _, s := range sig.Primary {
		if s.Direction != "" {
			return s.Direction
		}
	}
	return ""
}
