package indicators

import (
	"math"

	"github.com/quantpulse/regimescout/Internal/types"
)

// ATR computes the average true range over the given period using the
// most recent candles. Returns 0 when there is not enough data.
func ATR(candles []types.Candle, period int) float64 {
	if len(candles) < period+1 {
		return 0
	}

	sum := 0.0
	start := len(candles) - period
	for i := start; i < len(candles); i++ {
		sum += trueRange(candles[i], candles[i-1])
	}
	return sum / float64(period)
}

func trueRange(cur, prev types.Candle) float64 {
	tr := cur.High - cur.Low
	if hc := math.Abs(cur.High - prev.Close); hc > tr {
		tr = hc
	}
	if lc := math.Abs(cur.Low - prev.Close); lc > tr {
		tr = lc
	}
	return tr
}

// VWAP computes the volume-weighted average price across the window.
// Falls back to a plain average of typical prices when volume is zero.
func VWAP(candles []types.Candle) float64 {
	if len(candles) == 0 {
		return 0
	}

	var pvSum, volSum float64
	for _, c := range candles {
		typical := (c.High + c.Low + c.Close) / 3.0
		pvSum += typical * c.Volume
		volSum += c.Volume
	}

	if volSum == 0 {
		var sum float64
		for _, c := range candles {
			sum += (c.High + c.Low + c.Close) / 3.0
		}
		return sum / float64(len(candles))
	}
	return pvSum / volSum
}

// SMA over closing prices of the last period candles.
func SMA(candles []types.Candle, period int) float64 {
	if len(candles) < period || period == 0 {
		return 0
	}
	sum := 0.0
	for _, c := range candles[len(candles)-period:] {
		sum += c.Close
	}
	return sum / float64(period)
}

// StdDev of closing prices over the last period candles.
func StdDev(candles []types.Candle, period int) float64 {
	if len(candles) < period || period < 2 {
		return 0
	}
	mean := SMA(candles, period)
	var sq float64
	for _, c := range candles[len(candles)-period:] {
		d := c.Close - mean
		sq += d * d
	}
	return math.Sqrt(sq / float64(period))
}

// BollingerWidth returns band width (2k sigma) relative to the middle
// band. A small ratio means the series is compressed.
func BollingerWidth(candles []types.Candle, period int, k float64) float64 {
	mid := SMA(candles, period)
	if mid == 0 {
		return 0
	}
	return (2 * k * StdDev(candles, period)) / mid
}

// DeviationSigma expresses the distance of price from a reference level
// in standard-deviation units. The deviation unit is floored at a quarter
// ATR so fully compressed series do not inflate sigma readings.
func DeviationSigma(price, reference float64, candles []types.Candle, period int) float64 {
	unit := StdDev(candles, period)
	atr := ATR(candles, period)
	if floor := atr * 0.25; unit < floor {
		unit = floor
	}
	if unit == 0 {
		return 0
	}
	return (price - reference) / unit
}

// VWAPSlope approximates the slope of the rolling VWAP as the change in
// window VWAP over the last `shift` candles, per candle.
func VWAPSlope(candles []types.Candle, shift int) float64 {
	if len(candles) <= shift || shift == 0 {
		return 0
	}
	prev := VWAP(candles[:len(candles)-shift])
	cur := VWAP(candles)
	return (cur - prev) / float64(shift)
}

// AverageVolume over the last period candles, excluding the newest one.
func AverageVolume(candles []types.Candle, period int) float64 {
	if len(candles) < period+1 {
		return 0
	}
	sum := 0.0
	for _, c := range candles[len(candles)-period-1 : len(candles)-1] {
		sum += c.Volume
	}
	return sum / float64(period)
}

// SwingHigh / SwingLow points detected with the given pivot strength.
type SwingPoint struct {
	Index int
	Price float64
}

// FindSwingHighs returns pivot highs: candles whose high exceeds the highs
// of `strength` neighbors on both sides. Newest-last ordering is assumed.
func FindSwingHighs(candles []types.Candle, strength int) []SwingPoint {
	var points []SwingPoint
	for i := strength; i < len(candles)-strength; i++ {
		pivot := true
		for j := i - strength; j <= i+strength; j++ {
			if j == i {
				continue
			}
			if candles[j].High >= candles[i].High {
				pivot = false
				break
			}
		}
		if pivot {
			points = append(points, SwingPoint{Index: i, Price: candles[i].High})
		}
	}
	return points
}

// FindSwingLows mirrors FindSwingHighs for pivot lows.
func FindSwingLows(candles []types.Candle, strength int) []SwingPoint {
	var points []SwingPoint
	for i := strength; i < len(candles)-strength; i++ {
		pivot := true
		for j := i - strength; j <= i+strength; j++ {
			if j == i {
				continue
			}
			if candles[j].Low <= candles[i].Low {
				pivot = false
				break
			}
		}
		if pivot {
			points = append(points, SwingPoint{Index: i, Price: candles[i].Low})
		}
	}
	return points
}

// RangeEdges describes a detected trading range: the upper and lower edge
// levels and how many times each has been respected (touched and rejected).
type RangeEdges struct {
	Upper         float64
	Lower         float64
	UpperRespects int
	LowerRespects int
}

// DetectRangeEdges clusters swing highs and lows into range boundaries.
// Swings within tolerance of the extreme level count as respects of that
// edge. Returns false when no two-sided range structure is present.
func DetectRangeEdges(candles []types.Candle, pivotStrength int, tolerance float64) (RangeEdges, bool) {
	highs := FindSwingHighs(candles, pivotStrength)
	lows := FindSwingLows(candles, pivotStrength)
	if len(highs) == 0 || len(lows) == 0 {
		return RangeEdges{}, false
	}

	edges := RangeEdges{}
	for _, p := range highs {
		if p.Price > edges.Upper {
			edges.Upper = p.Price
		}
	}
	edges.Lower = lows[0].Price
	for _, p := range lows {
		if p.Price < edges.Lower {
			edges.Lower = p.Price
		}
	}
	if edges.Upper-edges.Lower <= 0 {
		return RangeEdges{}, false
	}

	for _, p := range highs {
		if edges.Upper-p.Price <= tolerance {
			edges.UpperRespects++
		}
	}
	for _, p := range lows {
		if p.Price-edges.Lower <= tolerance {
			edges.LowerRespects++
		}
	}
	return edges, true
}

// HasEqualExtremes reports whether the window shows equal highs or equal
// lows within tolerance, a liquidity-pool marker used by the balanced-zone
// checker.
func HasEqualExtremes(candles []types.Candle, pivotStrength int, tolerance float64) bool {
	highs := FindSwingHighs(candles, pivotStrength)
	for i := 1; i < len(highs); i++ {
		if math.Abs(highs[i].Price-highs[i-1].Price) <= tolerance {
			return true
		}
	}
	lows := FindSwingLows(candles, pivotStrength)
	for i := 1; i < len(lows); i++ {
		if math.Abs(lows[i].Price-lows[i-1].Price) <= tolerance {
			return true
		}
	}
	return false
}
