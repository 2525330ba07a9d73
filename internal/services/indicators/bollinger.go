package indicators

import (
	"math"

	"FxPulse/internal/domain/models"

	"github.com/moznion/go-optional"
)

// Bollinger yields [middle, upper, lower, bandwidth] using the population stdev.
type Bollinger struct {
	period int
	k      float64
}

func NewBollinger(period int, k float64) (*Bollinger, error) {
	if err := positive("indicators.bollinger_period", period); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, models.NewConfigurationError("indicators.bollinger_k", "must be positive, got %v", k)
	}
	return &Bollinger{period: period, k: k}, nil
}

func (b *Bollinger) Kind() models.IndicatorKind { return models.IndicatorBollinger }

func (b *Bollinger) Warmup() int { return b.period }

func (b *Bollinger) Compute(s Series) optional.Option[[]float64] {
	if s.Len() < b.period {
		return optional.None[[]float64]()
	}
	mean, variance := meanVariance(s.Close[s.Len()-b.period:])
	std := math.Sqrt(variance)
	upper := mean + b.k*std
	lower := mean - b.k*std
	width := 0.0
	if mean != 0 {
		width = (upper - lower) / mean
	}
	return optional.Some([]float64{mean, upper, lower, width})
}

func meanVariance(xs []float64) (float64, float64) {
	mean := sma(xs)
	var ss float64
	for _, x := range xs {
		d := x - mean
		ss += d * d
	}
	return mean, ss / float64(len(xs))
}
