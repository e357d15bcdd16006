package tolerance

import (
	"sync"

	"github.com/quantpulse/regimescout/Internal/utils/config"
)

// kill-switch tolerance as a fraction of base: deliberately below the 0.3
// floor so the entry zone becomes too narrow for any price to enter
const killSwitchFraction = 0.10

const (
	floorFraction = 0.3
	// ATR re-scale floor as a fraction of base
	rescaleFloorFraction = 0.5
	// cross-reference deviation above this applies the secondary penalty
	crossRefPenaltyAbove = 2.0
	crossRefPenalty      = 0.85
)

// Result carries the final admissible tolerance plus the intermediate
// readings, so a kill-switch denial is distinguishable from an ordinary
// threshold failure downstream.
type Result struct {
	Tolerance  float64
	Base       float64
	Smoothed   float64
	KillSwitch bool
}

// Adaptive wraps the base Calculator with the volatility-regime
// adjustment: EWMA smoothing of the deviation signal, a hard kill-switch
// on extreme readings, graduated band multipliers, an independent ATR
// re-scale, and floor/ceiling clamping.
type Adaptive struct {
	calc *Calculator

	mu       sync.Mutex
	smoothed map[string]float64
}

func NewAdaptive(calc *Calculator) *Adaptive {
	return &Adaptive{
		calc:     calc,
		smoothed: make(map[string]float64),
	}
}

// Smooth folds a raw deviation reading into the symbol's running EWMA.
// The first observation passes through unchanged. State persists for the
// process lifetime.
func (a *Adaptive) Smooth(symbol string, raw, alpha float64) float64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	prev, seen := a.smoothed[symbol]
	if !seen {
		a.smoothed[symbol] = raw
		return raw
	}
	next := alpha*raw + (1-alpha)*prev
	a.smoothed[symbol] = next
	return next
}

// FinalTolerance computes the admissible price tolerance for order-zone
// entry under the current volatility regime.
//
// The kill-switch is a hard override: once the smoothed deviation exceeds
// the symbol threshold the result is base x 0.10, bypassing the floor
// clamp, and nothing else in the function may relax it.
func (a *Adaptive) FinalTolerance(symbol, timeframe string, atr, rawDeviation, crossRefDeviation float64, p config.ToleranceParams, alpha float64) Result {
	base := a.calc.BaseTolerance(symbol, timeframe, atr, p)
	smoothed := a.Smooth(symbol, rawDeviation, alpha)

	if smoothed > p.KillSwitchThreshold {
		return Result{
			Tolerance:  base * killSwitchFraction,
			Base:       base,
			Smoothed:   smoothed,
			KillSwitch: true,
		}
	}

	mult := bandMultiplier(smoothed)
	if crossRefDeviation > crossRefPenaltyAbove {
		mult *= crossRefPenalty
	}
	adjusted := base * mult

	// independent ATR re-scale, capped and floored against base
	rescaled := atr * p.ATRRescaleMult
	if ceiling := base * p.ATRRescaleCap; rescaled > ceiling {
		rescaled = ceiling
	}
	if floor := base * rescaleFloorFraction; rescaled < floor {
		rescaled = floor
	}

	final := adjusted
	if rescaled < final {
		final = rescaled
	}

	if floor := base * floorFraction; final < floor {
		final = floor
	}
	if final > p.MaxTolerance {
		final = p.MaxTolerance
	}

	return Result{Tolerance: final, Base: base, Smoothed: smoothed}
}

// graduated deviation bands: elevated volatility tightens the zone,
// unusually quiet tape tightens slightly too
func bandMultiplier(smoothed float64) float64 {
	switch {
	case smoothed > 2.5:
		return 0.6
	case smoothed > 2.0:
		return 0.75
	case smoothed < 1.0:
		return 0.9
	default:
		return 1.0
	}
}
