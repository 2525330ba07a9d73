package regime

import (
	"math"
	"sort"

	"FxPulse/internal/domain/models"
)

// SupportResistance clusters pivot highs and lows and returns the nearest
// cluster below and above the last close. Without a cluster on a side the
// window low or high is used.
func SupportResistance(candles []models.Candle, span int, tolerance float64) (float64, float64) {
	if len(candles) == 0 {
		return 0, 0
	}
	last := candles[len(candles)-1].Close
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, c := range candles {
		lo = math.Min(lo, c.Low)
		hi = math.Max(hi, c.High)
	}

	support, resistance := math.Inf(-1), math.Inf(1)
	for _, level := range cluster(pivots(candles, span), tolerance) {
		if level < last && level > support {
			support = level
		}
		if level > last && level < resistance {
			resistance = level
		}
	}
	if math.IsInf(support, -1) {
		support = lo
	}
	if math.IsInf(resistance, 1) {
		resistance = hi
	}
	return support, resistance
}

// pivots returns highs and lows that are extreme among span neighbours on
// each side.
func pivots(candles []models.Candle, span int) []float64 {
	var out []float64
	for i := span; i < len(candles)-span; i++ {
		isHigh, isLow := true, true
		for j := i - span; j <= i+span; j++ {
			if j == i {
				continue
			}
			if candles[j].High > candles[i].High {
				isHigh = false
			}
			if candles[j].Low < candles[i].Low {
				isLow = false
			}
		}
		if isHigh {
			out = append(out, candles[i].High)
		}
		if isLow {
			out = append(out, candles[i].Low)
		}
	}
	return out
}

// cluster merges sorted levels whose relative distance to the running
// cluster mean is within tolerance.
func cluster(levels []float64, tolerance float64) []float64 {
	if len(levels) == 0 {
		return nil
	}
	sorted := append([]float64(nil), levels...)
	sort.Float64s(sorted)

	var out []float64
	sum, n := sorted[0], 1
	for _, l := range sorted[1:] {
		mean := sum / float64(n)
		if math.Abs(l-mean) <= tolerance*mean {
			sum += l
			n++
			continue
		}
		out = append(out, mean)
		sum, n = l, 1
	}
	return append(out, sum/float64(n))
}
