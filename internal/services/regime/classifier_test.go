package regime

import (
	"testing"
	"time"

	"FxPulse/internal/domain/models"
	"FxPulse/pkg/config"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

var stream = models.StreamKey{Symbol: "EURUSD", Timeframe: models.TF1m}

func series(closes []float64) []models.Candle {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.Candle, len(closes))
	for i, c := range closes {
		out[i] = models.Candle{
			Symbol: "EURUSD", Timeframe: models.TF1m,
			OpenTime: base.Add(time.Duration(i) * time.Minute),
			Open:     c, High: c + 0.00005, Low: c - 0.00005, Close: c, Volume: 1000,
		}
	}
	return out
}

func trending(n int, step float64) []models.Candle {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = 1.1 + float64(i)*step
	}
	return series(closes)
}

func choppy(n int) []models.Candle {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = 1.1
		if i%2 == 1 {
			closes[i] = 1.1001
		}
	}
	return series(closes)
}

type ClassifierSuite struct {
	suite.Suite
	cfg config.RegimeConfig
	c   *Classifier
}

func (s *ClassifierSuite) SetupTest() {
	cfg, err := config.Default()
	s.Require().NoError(err)
	s.cfg = cfg.Regime
	s.c = NewClassifier(stream, s.cfg)
}

func (s *ClassifierSuite) eval(candles []models.Candle) models.RegimeState {
	st, err := s.c.Evaluate(models.IndicatorSnapshot{}, candles)
	s.Require().NoError(err)
	return st
}

func (s *ClassifierSuite) TestInsufficientHistoryLeavesStateUnchanged() {
	st, err := s.c.Evaluate(models.IndicatorSnapshot{}, trending(10, 0.0001))
	s.Require().Error(err)
	s.True(models.IsInsufficientHistory(err))
	s.Equal(models.InitialRegime(), st)
	s.Equal(models.RegimeChoppy, s.c.State().Label)
}

func (s *ClassifierSuite) TestCommitsOnlyAfterDebounceTicks() {
	up := trending(40, 0.0001)
	for i := 0; i < s.cfg.Debounce-1; i++ {
		st := s.eval(up[:30+i])
		s.Equal(models.RegimeTransition, st.Label, "tick %d", i+1)
		s.Equal(models.RegimeChoppy, st.Committed)
		s.Equal(models.RegimeStrongTrendUp, st.Pending)
		s.Equal(i+1, st.PendingTicks)
	}
	st := s.eval(up[:30+s.cfg.Debounce])
	s.Equal(models.RegimeStrongTrendUp, st.Label)
	s.Equal(models.RegimeStrongTrendUp, st.Committed)
	s.Empty(st.Pending)
	s.Equal(1, st.Direction)
	s.Greater(st.TrendStrength, s.cfg.TrendThreshold)
}

func (s *ClassifierSuite) TestSpikeRevertingWithinDebounceLeavesRegime() {
	up := trending(40, 0.0001)
	for i := 0; i < s.cfg.Debounce; i++ {
		s.eval(up[:30+i])
	}
	s.Require().Equal(models.RegimeStrongTrendUp, s.c.State().Committed)

	for i := 0; i < s.cfg.Debounce-1; i++ {
		st := s.eval(choppy(30))
		s.Equal(models.RegimeTransition, st.Label)
		s.Equal(models.RegimeStrongTrendUp, st.Committed)
	}
	st := s.eval(up)
	s.Equal(models.RegimeStrongTrendUp, st.Label)
	s.Empty(st.Pending)
	s.Zero(st.PendingTicks)
}

func (s *ClassifierSuite) TestCandidateChangeRestartsCount() {
	s.eval(trending(30, 0.0001))
	s.eval(trending(30, 0.0001))
	st := s.eval(trending(30, -0.0001))
	s.Equal(models.RegimeTransition, st.Label)
	s.Equal(models.RegimeStrongTrendDown, st.Pending)
	s.Equal(1, st.PendingTicks)
	s.Equal(-1, st.Direction)
}

func (s *ClassifierSuite) TestHighVolatilityIsChoppy() {
	s.cfg.Baselines = map[string]float64{"EURUSD": 1e-9}
	s.cfg.Debounce = 1
	c := NewClassifier(stream, s.cfg)

	closes := make([]float64, 30)
	closes[0] = 1.1
	for i := 1; i < len(closes); i++ {
		step := 0.0001
		if i%2 == 0 {
			step = 0.0005
		}
		closes[i] = closes[i-1] + step
	}
	st, err := c.Evaluate(models.IndicatorSnapshot{}, series(closes))
	s.Require().NoError(err)
	s.Equal(models.RegimeChoppy, st.Label)
	s.Greater(st.Volatility, s.cfg.MaxVolatility)
}

func TestClassifierSuite(t *testing.T) {
	suite.Run(t, new(ClassifierSuite))
}

func TestSupportResistance(t *testing.T) {
	closes := []float64{1.0, 1.2, 1.0, 0.8, 1.0, 1.2, 1.0, 0.8, 1.0}
	candles := series(closes)
	for i := range candles {
		candles[i].High, candles[i].Low = candles[i].Close, candles[i].Close
	}
	sup, res := SupportResistance(candles, 1, 0.001)
	require.InDelta(t, 0.8, sup, 1e-12)
	require.InDelta(t, 1.2, res, 1e-12)

	top := candles[len(candles)-1]
	top.Close, top.High, top.Low = 1.3, 1.3, 1.3
	candles = append(candles, top)
	sup, res = SupportResistance(candles, 1, 0.001)
	require.InDelta(t, 1.2, sup, 1e-12)
	require.InDelta(t, 1.3, res, 1e-12)
}
