package indicators

import (
	"FxPulse/internal/domain/models"

	"github.com/moznion/go-optional"
)

// MACD yields [line, signal, histogram].
type MACD struct {
	fast, slow, signal int
}

func NewMACD(fast, slow, signal int) (*MACD, error) {
	if err := positive("indicators.macd_fast", fast); err != nil {
		return nil, err
	}
	if err := positive("indicators.macd_signal", signal); err != nil {
		return nil, err
	}
	if fast >= slow {
		return nil, models.NewConfigurationError("indicators.macd_fast", "must be lower than macd_slow (%d >= %d)", fast, slow)
	}
	return &MACD{fast: fast, slow: slow, signal: signal}, nil
}

func (m *MACD) Kind() models.IndicatorKind { return models.IndicatorMACD }

func (m *MACD) Warmup() int { return m.slow + m.signal - 1 }

func (m *MACD) Compute(s Series) optional.Option[[]float64] {
	closes := s.Close
	if len(closes) < m.Warmup() {
		return optional.None[[]float64]()
	}
	line := m.Line(closes)
	sig := emaSeries(line, m.signal)
	l := line[len(line)-1]
	sg := sig[len(sig)-1]
	return optional.Some([]float64{l, sg, l - sg})
}

// Line returns the MACD line series, one value per close from index slow-1.
func (m *MACD) Line(closes []float64) []float64 {
	if len(closes) < m.slow {
		return nil
	}
	fast := emaSeries(closes, m.fast)
	slow := emaSeries(closes, m.slow)
	// slow[0] sits at index slow-1 and fast[0] at fast-1
	offset := m.slow - m.fast
	line := make([]float64, len(slow))
	for i := range slow {
		line[i] = fast[i+offset] - slow[i]
	}
	return line
}
