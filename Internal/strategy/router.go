package strategy

import (
	"fmt"

	"github.com/quantpulse/regimescout/Internal/strategy/conditions"
	"github.com/quantpulse/regimescout/Internal/types"
	"github.com/quantpulse/regimescout/Internal/utils/config"
)

const FallbackStrategy = "edge_based"

var regimeToStrategy = map[types.Regime]string{
	types.RegimeVWAPReversion: "vwap_reversion",
	types.RegimeRange:         "range_scalp",
	types.RegimeBalancedZone:  "balanced_zone",
}

// Router maps a regime classification onto the condition checker to run.
// It holds no mutable state; rebuild it when configuration changes.
type Router struct {
	thresholds map[types.Regime]float64
	checkers   map[string]conditions.Checker
}

func NewRouter(cfg *config.Config) *Router {
	thresholds := make(map[types.Regime]float64, len(cfg.Regimes))
	for name, rc := range cfg.Regimes {
		thresholds[types.Regime(name)] = rc.RoutingThreshold
	}

	return &Router{
		thresholds: thresholds,
		checkers: map[string]conditions.Checker{
			"vwap_reversion": conditions.NewVWAPReversionChecker(cfg.Strategies["vwap_reversion"]),
			"range_scalp":    conditions.NewRangeScalpChecker(cfg.Strategies["range_scalp"]),
			"balanced_zone":  conditions.NewBalancedZoneChecker(cfg.Strategies["balanced_zone"]),
			FallbackStrategy: conditions.NewEdgeBasedChecker(cfg.Strategies[FallbackStrategy]),
		},
	}
}

// SelectStrategy returns the strategy name for the regime result. A
// confidence below the regime's routing threshold, or an UNKNOWN regime,
// routes to the edge_based fallback. An unrecognized regime name is a
// programming error and fails loudly.
func (r *Router) SelectStrategy(snap *types.Snapshot, result types.RegimeResult) (string, error) {
	if result.Regime == types.RegimeUnknown {
		return FallbackStrategy, nil
	}

	name, ok := regimeToStrategy[result.Regime]
	if !ok {
		return "", fmt.Errorf("unrecognized regime %q for %s", result.Regime, snap.Symbol)
	}
	if result.Confidence < r.thresholds[result.Regime] {
		return FallbackStrategy, nil
	}
	return name, nil
}

// Checker returns the condition checker registered under name.
func (r *Router) Checker(name string) (conditions.Checker, error) {
	c, ok := r.checkers[name]
	if !ok {
		return nil, fmt.Errorf("no condition checker registered for strategy %q", name)
	}
	return c, nil
}
