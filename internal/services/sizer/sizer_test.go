package sizer

import (
	"sync"
	"testing"
	"time"

	"FxPulse/internal/domain/models"
	"FxPulse/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func sizerConfig(t *testing.T) config.SizerConfig {
	t.Helper()
	cfg, err := config.Default()
	require.NoError(t, err)
	return cfg.Sizer
}

type RiskBookSuite struct {
	suite.Suite
	cfg  config.SizerConfig
	book *RiskBook
}

func (s *RiskBookSuite) SetupTest() {
	s.cfg = sizerConfig(s.T())
	s.book = NewRiskBook(s.cfg)
}

func (s *RiskBookSuite) outcome(win bool, at time.Time) models.RiskState {
	return s.book.ApplyOutcome(models.TradeOutcome{Symbol: "EURUSD", Win: win, ClosedAt: at})
}

func (s *RiskBookSuite) TestUnknownSymbolSnapshot() {
	st := s.book.Snapshot("GBPUSD", t0)
	s.Equal("GBPUSD", st.Symbol)
	s.Equal(0.5, st.RecentWinRate)
	s.False(st.RecoveryMode)
}

func (s *RiskBookSuite) TestRecoveryActivatesExactlyAtThreshold() {
	for i := 1; i < s.cfg.Recovery.LossThreshold; i++ {
		st := s.outcome(false, t0.Add(time.Duration(i)*time.Minute))
		s.False(st.RecoveryMode, "loss %d", i)
	}
	st := s.outcome(false, t0.Add(time.Hour))
	s.True(st.RecoveryMode)
	s.Equal(t0.Add(time.Hour), st.RecoverySince)
	s.Equal(s.cfg.Recovery.LossThreshold, st.ConsecutiveLosses)
}

func (s *RiskBookSuite) TestRecoveryExitsAfterConsecutiveWins() {
	for i := 0; i < s.cfg.Recovery.LossThreshold; i++ {
		s.outcome(false, t0)
	}
	for i := 1; i < s.cfg.Recovery.ExitWins; i++ {
		s.True(s.outcome(true, t0.Add(time.Minute)).RecoveryMode)
	}
	st := s.outcome(true, t0.Add(2*time.Minute))
	s.False(st.RecoveryMode)
	s.True(st.RecoverySince.IsZero())
}

func (s *RiskBookSuite) TestRecoveryCooldown() {
	for i := 0; i < s.cfg.Recovery.LossThreshold; i++ {
		s.outcome(false, t0)
	}
	s.True(s.book.Snapshot("EURUSD", t0.Add(time.Hour)).RecoveryMode)

	after := t0.Add(s.cfg.Recovery.Cooldown)
	s.False(s.book.Snapshot("EURUSD", after).RecoveryMode)
	// snapshots never mutate
	s.True(s.book.Snapshot("EURUSD", t0.Add(time.Hour)).RecoveryMode)

	st := s.outcome(false, after.Add(time.Minute))
	s.False(st.RecoveryMode)
	s.Equal(1, st.ConsecutiveLosses)
}

func (s *RiskBookSuite) TestWinRateWindowAndDrawdownClamp() {
	s.cfg.WinRateWindow = 4
	s.book = NewRiskBook(s.cfg)
	for _, win := range []bool{false, false, true, true, true, true} {
		s.outcome(win, t0)
	}
	s.Equal(1.0, s.book.Snapshot("EURUSD", t0).RecentWinRate)

	st := s.book.ApplyOutcome(models.TradeOutcome{Symbol: "EURUSD", Win: false, DrawdownDelta: 0.8, ClosedAt: t0})
	s.InDelta(0.8, st.CurrentDrawdown, 1e-12)
	st = s.book.ApplyOutcome(models.TradeOutcome{Symbol: "EURUSD", Win: false, DrawdownDelta: 0.8, ClosedAt: t0})
	s.Equal(1.0, st.CurrentDrawdown)
	st = s.book.ApplyOutcome(models.TradeOutcome{Symbol: "EURUSD", Win: true, DrawdownDelta: -5, ClosedAt: t0})
	s.Zero(st.CurrentDrawdown)
	s.Equal(9, st.Trades)
}

func (s *RiskBookSuite) TestConcurrentOutcomes() {
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.book.ApplyOutcome(models.TradeOutcome{Symbol: "EURUSD", Win: i%2 == 0, ClosedAt: t0})
		}(i)
	}
	wg.Wait()
	s.Equal(50, s.book.Snapshot("EURUSD", t0).Trades)
	s.Equal([]string{"EURUSD"}, s.book.Symbols())
}

func TestRiskBookSuite(t *testing.T) {
	suite.Run(t, new(RiskBookSuite))
}

func candidate(dir models.Direction, conf float64) models.SignalCandidate {
	return models.SignalCandidate{
		Symbol: "EURUSD", Timeframe: models.TF1m, Timestamp: t0,
		Direction: dir, Confidence: conf, Price: 1.1, Regime: models.RegimeStrongTrendUp,
	}
}

var market = models.MarketContext{ATR: 0.001, Close: 1.1, Regime: models.RegimeStrongTrendUp}

func TestSizeLong(t *testing.T) {
	s := New(sizerConfig(t))
	got, err := s.Size(candidate(models.DirectionLong, 0.8), models.RiskState{RecentWinRate: 0.5}, market)
	require.NoError(t, err)
	assert.InDelta(t, 0.8, got.PositionSize, 1e-12)
	assert.InDelta(t, 1.0985, got.StopLoss, 1e-12)
	assert.InDelta(t, 1.102, got.TakeProfit, 1e-12)
	assert.InDelta(t, 0.02, got.RiskPercent, 1e-12)
	assert.Equal(t, 3, got.RiskLevel)
	assert.False(t, got.RecoveryMode)
}

func TestSizeShortChoppy(t *testing.T) {
	s := New(sizerConfig(t))
	m := market
	m.Regime = models.RegimeChoppy
	got, err := s.Size(candidate(models.DirectionShort, 0.8), models.RiskState{RecentWinRate: 0.5}, m)
	require.NoError(t, err)
	assert.InDelta(t, 1.101, got.StopLoss, 1e-12)
	assert.InDelta(t, 1.0988, got.TakeProfit, 1e-12)
}

func TestSizeRecoveryAndDrawdown(t *testing.T) {
	s := New(sizerConfig(t))
	st := models.RiskState{RecentWinRate: 0.5, CurrentDrawdown: 0.12, RecoveryMode: true}
	got, err := s.Size(candidate(models.DirectionLong, 0.8), st, market)
	require.NoError(t, err)
	assert.InDelta(t, 0.4, got.PositionSize, 1e-12)
	assert.InDelta(t, 0.01, got.RiskPercent, 1e-12)
	assert.True(t, got.RecoveryMode)
}

func TestSizeClampsAndScalesByRiskLevel(t *testing.T) {
	cfg := sizerConfig(t)
	s := New(cfg)
	got, err := s.Size(candidate(models.DirectionLong, 0.05), models.RiskState{RecentWinRate: 0.5}, market)
	require.NoError(t, err)
	assert.Equal(t, cfg.MinPosition, got.PositionSize)

	cfg.RiskLevel = 5
	cfg.BasePosition = 10
	s = New(cfg)
	got, err = s.Size(candidate(models.DirectionLong, 1), models.RiskState{RecentWinRate: 0.5}, market)
	require.NoError(t, err)
	assert.InDelta(t, 3.0, got.PositionSize, 1e-12)
	assert.InDelta(t, 0.03, got.RiskPercent, 1e-12)
}

func TestSizeIsIdempotent(t *testing.T) {
	s := New(sizerConfig(t))
	st := models.RiskState{RecentWinRate: 0.7, CurrentDrawdown: 0.05}
	a, err := s.Size(candidate(models.DirectionLong, 0.75), st, market)
	require.NoError(t, err)
	b, err := s.Size(candidate(models.DirectionLong, 0.75), st, market)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestSizeRequiresATR(t *testing.T) {
	s := New(sizerConfig(t))
	m := market
	m.ATR = 0
	_, err := s.Size(candidate(models.DirectionLong, 0.8), models.RiskState{}, m)
	assert.ErrorIs(t, err, models.ErrInsufficientHistory)
}
