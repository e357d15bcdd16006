package metrics

import (
	"testing"

	"github.com/quantpulse/regimescout/Internal/handlers/monitoring"
)

func TestSummarize(t *testing.T) {
	decisions := []monitoring.Decision{
		{Strategy: "vwap_reversion", Regime: "VWAP_REVERSION", Passed: true, Score: 6.0, Outcome: "order_placed"},
		{Strategy: "vwap_reversion", Regime: "VWAP_REVERSION", Passed: true, Score: 8.0, Outcome: "admission_denied"},
		{Strategy: "vwap_reversion", Regime: "VWAP_REVERSION", Passed: false, Score: 2.0, Outcome: "conditions_failed"},
		{Strategy: "edge_based", Regime: "UNKNOWN", Passed: false, Score: 0.0, Outcome: "conditions_failed"},
	}

	summary := Summarize(decisions)

	if summary.Total != 4 {
		t.Errorf("Total = %d, want 4", summary.Total)
	}

	vwap := summary.Strategies["vwap_reversion"]
	if vwap == nil {
		t.Fatal("missing vwap_reversion stats")
	}
	if vwap.Evaluations != 3 || vwap.Passes != 2 {
		t.Errorf("vwap stats = %d evals / %d passes, want 3/2", vwap.Evaluations, vwap.Passes)
	}
	if vwap.PassRate < 66.6 || vwap.PassRate > 66.7 {
		t.Errorf("PassRate = %v, want ~66.67", vwap.PassRate)
	}
	if vwap.AvgScore != (6.0+8.0+2.0)/3 {
		t.Errorf("AvgScore = %v, want %v", vwap.AvgScore, (6.0+8.0+2.0)/3)
	}
	if vwap.Orders != 1 || vwap.Denials != 1 {
		t.Errorf("Orders/Denials = %d/%d, want 1/1", vwap.Orders, vwap.Denials)
	}

	if summary.Regimes["VWAP_REVERSION"] != 3 || summary.Regimes["UNKNOWN"] != 1 {
		t.Errorf("Regimes = %v, want VWAP_REVERSION:3 UNKNOWN:1", summary.Regimes)
	}
	if summary.Outcomes["conditions_failed"] != 2 {
		t.Errorf("Outcomes = %v, want conditions_failed:2", summary.Outcomes)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	summary := Summarize(nil)
	if summary.Total != 0 || len(summary.Strategies) != 0 {
		t.Errorf("Summarize(nil) = %+v, want empty summary", summary)
	}
}
