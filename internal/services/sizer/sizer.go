package sizer

import (
	"math"

	"FxPulse/internal/domain/models"
	"FxPulse/pkg/config"
)

type multipliers struct{ stop, take float64 }

var regimeMultipliers = map[models.RegimeLabel]multipliers{
	models.RegimeStrongTrendUp:   {1.5, 2.0},
	models.RegimeStrongTrendDown: {1.5, 2.0},
	models.RegimeTransition:      {1.2, 1.5},
	models.RegimeChoppy:          {1.0, 1.2},
}

// Sizer derives position size, stop and target from a candidate. Size is a
// pure function of its arguments.
type Sizer struct {
	cfg config.SizerConfig
}

func New(cfg config.SizerConfig) *Sizer {
	return &Sizer{cfg: cfg}
}

func (s *Sizer) Size(c models.SignalCandidate, st models.RiskState, m models.MarketContext) (models.RiskAdjustedSignal, error) {
	if !(m.ATR > 0) || math.IsInf(m.ATR, 0) {
		return models.RiskAdjustedSignal{}, models.NewInsufficientHistoryError(string(models.IndicatorATR), 1, 0)
	}

	scale := config.RiskLevelScale(s.cfg.RiskLevel)
	maxPos := s.cfg.MaxPosition * scale
	tolerance := s.cfg.DrawdownTolerance * scale
	risk := s.cfg.BaseRiskPercent * scale
	if st.RecoveryMode {
		risk *= s.cfg.Recovery.Factor
	}

	winFactor := 1 + (st.RecentWinRate-0.5)*2*s.cfg.WinRateSensitivity
	ddFactor := math.Max(s.cfg.DrawdownFloor, 1-st.CurrentDrawdown/tolerance)
	size := s.cfg.BasePosition * winFactor * ddFactor * c.Confidence
	size = math.Max(s.cfg.MinPosition, math.Min(maxPos, size))

	entry := m.Close
	if entry == 0 {
		entry = c.Price
	}
	label := m.Regime
	if label == "" {
		label = c.Regime
	}
	mult, ok := regimeMultipliers[label]
	if !ok {
		mult = regimeMultipliers[models.RegimeChoppy]
	}

	out := models.RiskAdjustedSignal{
		SignalCandidate: c,
		PositionSize:    size,
		StopLoss:        entry,
		TakeProfit:      entry,
		RiskPercent:     risk,
		RiskLevel:       s.cfg.RiskLevel,
		RecoveryMode:    st.RecoveryMode,
	}
	switch c.Direction {
	case models.DirectionLong:
		out.StopLoss = entry - m.ATR*mult.stop
		out.TakeProfit = entry + m.ATR*mult.take
	case models.DirectionShort:
		out.StopLoss = entry + m.ATR*mult.stop
		out.TakeProfit = entry - m.ATR*mult.take
	default:
		out.PositionSize = 0
	}
	return out, nil
}
