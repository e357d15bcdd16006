package metrics

import (
	"github.com/quantpulse/regimescout/Internal/handlers/monitoring"
)

// StrategyStats aggregates condition-check outcomes for one strategy.
type StrategyStats struct {
	Strategy    string  `json:"strategy"`
	Evaluations int     `json:"evaluations"`
	Passes      int     `json:"passes"`
	PassRate    float64 `json:"pass_rate"` // 0-100
	AvgScore    float64 `json:"avg_score"`
	Orders      int     `json:"orders"`
	Denials     int     `json:"denials"`
}

// Summary is the aggregate view over a decision window.
type Summary struct {
	Total      int                       `json:"total"`
	Strategies map[string]*StrategyStats `json:"strategies"`
	Regimes    map[string]int            `json:"regimes"`
	Outcomes   map[string]int            `json:"outcomes"`
}

// Summarize computes per-strategy and per-regime aggregates over a set of
// recent decisions. Pure function of its input; safe from any goroutine.
func Summarize(decisions []monitoring.Decision) *Summary {
	summary := &Summary{
		Total:      len(decisions),
		Strategies: make(map[string]*StrategyStats),
		Regimes:    make(map[string]int),
		Outcomes:   make(map[string]int),
	}

	scoreSums := make(map[string]float64)
	for _, d := range decisions {
		stats, ok := summary.Strategies[d.Strategy]
		if !ok {
			stats = &StrategyStats{Strategy: d.Strategy}
			summary.Strategies[d.Strategy] = stats
		}

		stats.Evaluations++
		scoreSums[d.Strategy] += d.Score
		if d.Passed {
			stats.Passes++
		}
		switch d.Outcome {
		case "order_placed":
			stats.Orders++
		case "admission_denied", "kill_switch":
			stats.Denials++
		}

		summary.Regimes[d.Regime]++
		summary.Outcomes[d.Outcome]++
	}

	for name, stats := range summary.Strategies {
		if stats.Evaluations > 0 {
			stats.PassRate = float64(stats.Passes) / float64(stats.Evaluations) * 100
			stats.AvgScore = scoreSums[name] / float64(stats.Evaluations)
		}
	}
	return summary
}
