package regime

import (
	"testing"
	"time"

	"github.com/quantpulse/regimescout/Internal/types"
	"github.com/quantpulse/regimescout/Internal/utils/config"
)

func makeCandle(high, low, close float64) types.Candle {
	return types.Candle{
		Timestamp: time.Now(),
		Open:      close,
		High:      high,
		Low:       low,
		Close:     close,
		Volume:    100,
	}
}

func flatCandles(n int, price, height float64) []types.Candle {
	candles := make([]types.Candle, n)
	for i := range candles {
		candles[i] = makeCandle(price+height/2, price-height/2, price)
	}
	return candles
}

func newTestDetector() *Detector {
	return NewDetector(config.DefaultConfig().Regimes)
}

func TestClassifyStretchedPriceIsVWAPReversion(t *testing.T) {
	snap := &types.Snapshot{
		Symbol:  "XAUUSD",
		Price:   101.5,
		VWAP:    100.0,
		ATR:     2.0,
		Candles: flatCandles(30, 100, 2.0),
	}

	result := newTestDetector().Classify(snap)
	if result.Regime != types.RegimeVWAPReversion {
		t.Errorf("Classify() = %s, want VWAP_REVERSION", result.Regime)
	}
	if result.Confidence < 60 {
		t.Errorf("Classify() confidence = %v, want >= 60", result.Confidence)
	}
}

func TestClassifyCompressedSeriesIsNotVWAPReversion(t *testing.T) {
	// 50 tightly alternating closes around 100. Raw stddev is tiny, so
	// without the quarter-ATR deviation floor a half-point excursion
	// would read as many sigmas and misclassify as reversion.
	candles := make([]types.Candle, 50)
	for i := range candles {
		close := 99.95
		if i%2 == 0 {
			close = 100.05
		}
		candles[i] = makeCandle(close+1, close-1, close)
	}

	snap := &types.Snapshot{
		Symbol:  "EURUSD",
		Price:   100.5,
		VWAP:    100.0,
		ATR:     2.0,
		Candles: candles,
	}

	result := newTestDetector().Classify(snap)
	if result.Regime == types.RegimeVWAPReversion {
		t.Errorf("Classify() on compressed series = VWAP_REVERSION, want anything else (got confidence %v)",
			result.Confidence)
	}
	if score := result.SubScores[types.RegimeVWAPReversion]; score >= 60 {
		t.Errorf("VWAP reversion sub-score on compressed series = %v, want < 60", score)
	}
}

func TestClassifyRespectedEdgesIsRange(t *testing.T) {
	candles := flatCandles(30, 100, 1.0)
	candles[5] = makeCandle(110, 99.5, 100)
	candles[12] = makeCandle(109.8, 99.5, 100)
	candles[8] = makeCandle(100.5, 90, 100)
	candles[18] = makeCandle(100.5, 90.1, 100)

	snap := &types.Snapshot{
		Symbol:  "EURUSD",
		Price:   100.0,
		VWAP:    100.0,
		ATR:     2.0,
		Candles: candles,
	}

	result := newTestDetector().Classify(snap)
	if result.Regime != types.RegimeRange {
		t.Errorf("Classify() = %s (scores %v), want RANGE", result.Regime, result.SubScores)
	}
}

func TestClassifyNothingClearsThresholdIsUnknown(t *testing.T) {
	snap := &types.Snapshot{
		Symbol:  "EURUSD",
		Price:   100.0,
		VWAP:    100.0,
		ATR:     1.0,
		Candles: flatCandles(30, 100, 1.0),
	}

	result := newTestDetector().Classify(snap)
	if result.Regime != types.RegimeUnknown {
		t.Errorf("Classify() = %s, want UNKNOWN", result.Regime)
	}
	if result.Confidence != 0 {
		t.Errorf("Classify() confidence = %v, want 0", result.Confidence)
	}
}

func TestClassifyNoConfiguredThresholds(t *testing.T) {
	detector := NewDetector(nil)
	snap := &types.Snapshot{
		Symbol:  "XAUUSD",
		Price:   101.5,
		VWAP:    100.0,
		ATR:     2.0,
		Candles: flatCandles(30, 100, 2.0),
	}

	result := detector.Classify(snap)
	if result.Regime != types.RegimeUnknown {
		t.Errorf("Classify() with no thresholds = %s, want UNKNOWN", result.Regime)
	}
}
