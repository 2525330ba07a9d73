package features

import (
	"math"

	"FxPulse/internal/domain/models"
)

// Closes extracts close prices in order.
func Closes(candles []models.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

// Volumes extracts volumes in order.
func Volumes(candles []models.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Volume
	}
	return out
}

// ComputeLogReturns computes log returns r_t = ln(C_t / C_{t-1}).
// It returns a slice of length len(candles)-1, or nil if insufficient data.
func ComputeLogReturns(candles []models.Candle) []float64 {
	return LogReturns(Closes(candles))
}

// LogReturns is ComputeLogReturns over a raw close series.
func LogReturns(closes []float64) []float64 {
	if len(closes) < 2 {
		return nil
	}
	out := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		prev := closes[i-1]
		cur := closes[i]
		if prev <= 0 || cur <= 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, math.Log(cur/prev))
	}
	return out
}

// MeanStd returns the mean and population standard deviation of xs.
func MeanStd(xs []float64) (mean, std float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	for _, x := range xs {
		mean += x
	}
	n := float64(len(xs))
	mean /= n
	var ss float64
	for _, x := range xs {
		d := x - mean
		ss += d * d
	}
	return mean, math.Sqrt(ss / n)
}

// RealizedVolatility returns the sample stdev of the last window log returns.
// Not annualized; see Annualize. Uses Welford's update so that near-constant
// returns do not cancel.
func RealizedVolatility(logReturns []float64, window int) float64 {
	if window <= 1 || len(logReturns) < window {
		return 0
	}
	var mean, m2 float64
	for k, r := range logReturns[len(logReturns)-window:] {
		delta := r - mean
		mean += delta / float64(k+1)
		m2 += delta * (r - mean)
	}
	return math.Sqrt(m2 / float64(window-1))
}

// Annualize scales a per-bar sigma to a yearly figure.
func Annualize(sigma float64, tf models.Timeframe) float64 {
	return sigma * math.Sqrt(BarsPerYearForTF(tf))
}

// BarsPerYearForTF returns the approximate number of bars per year for a timeframe.
func BarsPerYearForTF(tf models.Timeframe) float64 {
	d := tf.Duration()
	if d <= 0 {
		d = models.TF1m.Duration()
	}
	return float64(365*24*60*60) / d.Seconds()
}

// Slope returns the least-squares slope of ys against their index.
func Slope(ys []float64) float64 {
	n := float64(len(ys))
	if n < 2 {
		return 0
	}
	var sx, sy, sxy, sxx float64
	for i, y := range ys {
		x := float64(i)
		sx += x
		sy += y
		sxy += x * y
		sxx += x * x
	}
	den := n*sxx - sx*sx
	if den == 0 {
		return 0
	}
	return (n*sxy - sx*sy) / den
}
