package indicators

import (
	"FxPulse/internal/domain/models"

	"github.com/moznion/go-optional"
)

// RSI is the Relative Strength Index with Wilder smoothing over close changes.
type RSI struct {
	period int
}

func NewRSI(period int) (*RSI, error) {
	if err := positive("indicators.rsi_period", period); err != nil {
		return nil, err
	}
	return &RSI{period: period}, nil
}

func (r *RSI) Kind() models.IndicatorKind { return models.IndicatorRSI }

// Warmup counts candles: period changes need period+1 closes.
func (r *RSI) Warmup() int { return r.period + 1 }

func (r *RSI) Compute(s Series) optional.Option[[]float64] {
	closes := s.Close
	if len(closes) < r.Warmup() {
		return optional.None[[]float64]()
	}
	gains := make([]float64, 0, len(closes)-1)
	losses := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			gains = append(gains, change)
			losses = append(losses, 0)
		} else {
			gains = append(gains, 0)
			losses = append(losses, -change)
		}
	}
	avgGain := wilder(gains, r.period)
	avgLoss := wilder(losses, r.period)
	if avgLoss == 0 {
		return optional.Some([]float64{100})
	}
	rs := avgGain / avgLoss
	return optional.Some([]float64{100 - 100/(1+rs)})
}
