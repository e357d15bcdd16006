package indicators

import (
	"fmt"

	"github.com/quantpulse/regimescout/Internal/types"
)

// Signal is one detected candle-level trigger or confluence marker.
type Signal struct {
	Name      string
	Direction string // LONG / SHORT, empty when directionless
	Detail    string
}

// Primary trigger names
const (
	SignalStructureShift      = "structure_shift"
	SignalLiquiditySweep      = "liquidity_sweep"
	SignalCompressionBreakout = "compression_breakout"
)

// Secondary confluence names
const (
	SignalVolumeSpike        = "volume_spike"
	SignalAbsorptionWick     = "absorption_wick"
	SignalCompressionConfirm = "compression_confirm"
)

// DetectStructureShift checks whether the newest candle closed through the
// most recent confirmed swing level: above the last swing high is a bullish
// shift, below the last swing low a bearish one.
func DetectStructureShift(candles []types.Candle, pivotStrength int) (Signal, bool) {
	if len(candles) < pivotStrength*2+2 {
		return Signal{}, false
	}

	last := candles[len(candles)-1]
	prior := candles[:len(candles)-1]

	highs := FindSwingHighs(prior, pivotStrength)
	if len(highs) > 0 {
		level := highs[len(highs)-1].Price
		if last.Close > level {
			return Signal{
				Name:      SignalStructureShift,
				Direction: types.DirectionLong,
				Detail:    fmt.Sprintf("close %.5f above swing high %.5f", last.Close, level),
			}, true
		}
	}
	lows := FindSwingLows(prior, pivotStrength)
	if len(lows) > 0 {
		level := lows[len(lows)-1].Price
		if last.Close < level {
			return Signal{
				Name:      SignalStructureShift,
				Direction: types.DirectionShort,
				Detail:    fmt.Sprintf("close %.5f below swing low %.5f", last.Close, level),
			}, true
		}
	}
	return Signal{}, false
}

// DetectLiquiditySweep checks whether the newest candle wicked through the
// prior window extreme and closed back inside. A sweep of the lows is a
// long trigger, a sweep of the highs a short one.
func DetectLiquiditySweep(candles []types.Candle, lookback int) (Signal, bool) {
	if len(candles) < lookback+1 {
		return Signal{}, false
	}

	last := candles[len(candles)-1]
	window := candles[len(candles)-1-lookback : len(candles)-1]

	lowest := window[0].Low
	highest := window[0].High
	for _, c := range window {
		if c.Low < lowest {
			lowest = c.Low
		}
		if c.High > highest {
			highest = c.High
		}
	}

	if last.Low < lowest && last.Close > lowest {
		return Signal{
			Name:      SignalLiquiditySweep,
			Direction: types.DirectionLong,
			Detail:    fmt.Sprintf("swept low %.5f, closed back at %.5f", lowest, last.Close),
		}, true
	}
	if last.High > highest && last.Close < highest {
		return Signal{
			Name:      SignalLiquiditySweep,
			Direction: types.DirectionShort,
			Detail:    fmt.Sprintf("swept high %.5f, closed back at %.5f", highest, last.Close),
		}, true
	}
	return Signal{}, false
}

// DetectCompressionBreakout checks for a volatile candle leaving a
// compression block: the preceding candles averaged a range below
// compressionRatio of ATR and the newest candle closed outside the block
// with an expanded range.
func DetectCompressionBreakout(candles []types.Candle, blockLen int, atr, compressionRatio, breakoutMult float64) (Signal, bool) {
	if len(candles) < blockLen+1 || atr <= 0 {
		return Signal{}, false
	}

	last := candles[len(candles)-1]
	block := candles[len(candles)-1-blockLen : len(candles)-1]

	avgRange := 0.0
	blockHigh := block[0].High
	blockLow := block[0].Low
	for _, c := range block {
		avgRange += c.Range()
		if c.High > blockHigh {
			blockHigh = c.High
		}
		if c.Low < blockLow {
			blockLow = c.Low
		}
	}
	avgRange /= float64(blockLen)

	if avgRange > atr*compressionRatio {
		return Signal{}, false
	}
	if last.Range() < atr*breakoutMult {
		return Signal{}, false
	}

	if last.Close > blockHigh {
		return Signal{
			Name:      SignalCompressionBreakout,
			Direction: types.DirectionLong,
			Detail:    fmt.Sprintf("broke above block high %.5f", blockHigh),
		}, true
	}
	if last.Close < blockLow {
		return Signal{
			Name:      SignalCompressionBreakout,
			Direction: types.DirectionShort,
			Detail:    fmt.Sprintf("broke below block low %.5f", blockLow),
		}, true
	}
	return Signal{}, false
}

// DetectVolumeSpike reports whether the newest candle traded more than
// spikeMult times the recent average volume.
func DetectVolumeSpike(candles []types.Candle, period int, spikeMult float64) (Signal, bool) {
	avg := AverageVolume(candles, period)
	if avg <= 0 {
		return Signal{}, false
	}
	last := candles[len(candles)-1]
	if last.Volume >= avg*spikeMult {
		return Signal{
			Name:   SignalVolumeSpike,
			Detail: fmt.Sprintf("volume %.0f vs avg %.0f", last.Volume, avg),
		}, true
	}
	return Signal{}, false
}

// DetectAbsorptionWick reports a rejection wick: the tail against the
// candle close makes up at least wickRatio of the full range. The wick
// side determines direction (long lower wick = absorption of sellers).
func DetectAbsorptionWick(candles []types.Candle, wickRatio float64) (Signal, bool) {
	if len(candles) == 0 {
		return Signal{}, false
	}
	last := candles[len(candles)-1]
	rng := last.Range()
	if rng <= 0 {
		return Signal{}, false
	}

	bodyLow := last.Open
	bodyHigh := last.Close
	if last.Open > last.Close {
		bodyLow, bodyHigh = last.Close, last.Open
	}
	lowerWick := bodyLow - last.Low
	upperWick := last.High - bodyHigh

	if lowerWick/rng >= wickRatio {
		return Signal{
			Name:      SignalAbsorptionWick,
			Direction: types.DirectionLong,
			Detail:    fmt.Sprintf("lower wick %.0f%% of range", lowerWick/rng*100),
		}, true
	}
	if upperWick/rng >= wickRatio {
		return Signal{
			Name:      SignalAbsorptionWick,
			Direction: types.DirectionShort,
			Detail:    fmt.Sprintf("upper wick %.0f%% of range", upperWick/rng*100),
		}, true
	}
	return Signal{}, false
}

// DetectCompressionConfirm reports whether the band width sits below the
// compression threshold, confirming a coiled market.
func DetectCompressionConfirm(candles []types.Candle, period int, maxWidthRatio float64) (Signal, bool) {
	width := BollingerWidth(candles, period, 2.0)
	if width <= 0 || width > maxWidthRatio {
		return Signal{}, false
	}
	return Signal{
		Name:   SignalCompressionConfirm,
		Detail: fmt.Sprintf("band width ratio %.4f", width),
	}, true
}
