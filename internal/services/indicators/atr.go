package indicators

import (
	"math"

	"FxPulse/internal/domain/models"

	"github.com/moznion/go-optional"
)

// ATR is the Average True Range with Wilder smoothing.
type ATR struct {
	period int
}

func NewATR(period int) (*ATR, error) {
	if err := positive("indicators.atr_period", period); err != nil {
		return nil, err
	}
	return &ATR{period: period}, nil
}

func (a *ATR) Kind() models.IndicatorKind { return models.IndicatorATR }

// Warmup counts candles: the first true range needs a previous close.
func (a *ATR) Warmup() int { return a.period + 1 }

func (a *ATR) Compute(s Series) optional.Option[[]float64] {
	n := s.Len()
	if n < a.Warmup() {
		return optional.None[[]float64]()
	}
	tr := make([]float64, 0, n-1)
	for i := 1; i < n; i++ {
		prev := s.Close[i-1]
		tr = append(tr, math.Max(s.High[i]-s.Low[i], math.Max(math.Abs(s.High[i]-prev), math.Abs(s.Low[i]-prev))))
	}
	return optional.Some([]float64{wilder(tr, a.period)})
}
