package scorer

import (
	"math"
	"testing"
	"time"

	"FxPulse/internal/domain/models"
	"FxPulse/pkg/config"

	"github.com/moznion/go-optional"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	stream = models.StreamKey{Symbol: "EURUSD", Timeframe: models.TF1m}
	ts     = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
)

func defaults(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Default()
	require.NoError(t, err)
	return cfg
}

func snapshot(rsi, hist float64, withATR bool) models.IndicatorSnapshot {
	values := map[models.IndicatorKind]optional.Option[[]float64]{
		models.IndicatorRSI:       optional.Some([]float64{rsi}),
		models.IndicatorMACD:      optional.Some([]float64{hist, 0, hist}),
		models.IndicatorBollinger: optional.Some([]float64{1.0970, 1.0980, 1.0960, 0.002}),
		models.IndicatorVolumeMA:  optional.Some([]float64{1000, 100}),
		models.IndicatorATR:       optional.None[[]float64](),
	}
	if withATR {
		values[models.IndicatorATR] = optional.Some([]float64{0.0010})
	}
	return models.NewIndicatorSnapshot(stream, ts, 1.0950, 40, values)
}

func bullishInput() ScoreInput {
	return ScoreInput{
		Snapshot: snapshot(20, 0.0001, true),
		Previous: optional.Some(snapshot(25, -0.0001, true)),
		Regime: models.RegimeState{
			Label: models.RegimeStrongTrendUp, Committed: models.RegimeStrongTrendUp, TrendStrength: 0.8,
		},
		Candle: models.Candle{
			Symbol: "EURUSD", Timeframe: models.TF1m, OpenTime: ts,
			Open: 1.0940, High: 1.0955, Low: 1.0935, Close: 1.0950, Volume: 3000,
		},
		Closes: []float64{1.0930, 1.0940, 1.0950},
	}
}

func TestScoreMissingIndicator(t *testing.T) {
	cfg := defaults(t)
	s := New(cfg.Scorer, cfg.Indicators)
	in := bullishInput()
	in.Snapshot = snapshot(20, 0.0001, false)

	_, err := s.Score(in)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrInsufficientHistory)
	var ih *models.InsufficientHistoryError
	require.ErrorAs(t, err, &ih)
	assert.Equal(t, string(models.IndicatorATR), ih.Indicator)
	assert.Equal(t, 15, ih.Required)
}

func TestScoreLong(t *testing.T) {
	cfg := defaults(t)
	s := New(cfg.Scorer, cfg.Indicators)

	got, err := s.Score(bullishInput())
	require.NoError(t, err)
	assert.Equal(t, models.DirectionLong, got.Direction)
	// rsi .25*.6 + macd .25 + bollinger .1 + volume .1 + price_action .1 + regime .1*.8
	assert.InDelta(t, 0.78, got.Confidence, 1e-9)
	assert.InDelta(t, 0.25, got.Factors[FactorMACD], 1e-9)
	assert.InDelta(t, 0.08, got.Factors[FactorRegime], 1e-9)
	assert.Zero(t, got.Factors[FactorCorrelation])
	assert.Equal(t, 1.0950, got.Price)
	assert.Equal(t, models.RegimeStrongTrendUp, got.Regime)
	assert.Contains(t, got.Indicators, "rsi")
}

func TestScoreIsDeterministic(t *testing.T) {
	cfg := defaults(t)
	s := New(cfg.Scorer, cfg.Indicators)
	a, err := s.Score(bullishInput())
	require.NoError(t, err)
	b, err := s.Score(bullishInput())
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestScoreConfidenceBitsAreStable(t *testing.T) {
	cfg := defaults(t)
	cfg.Scorer.Weights = map[string]float64{
		FactorRSI:         0.1731,
		FactorMACD:        0.1379,
		FactorBollinger:   0.0917,
		FactorVolume:      0.1213,
		FactorPriceAction: 0.0733,
		FactorRegime:      0.1117,
		FactorCorrelation: 0.1971,
	}
	cfg.Scorer.Correlated = map[string]map[string]float64{
		"EURUSD": {"GBPUSD": 0.8, "AUDUSD": 0.6, "USDCHF": -0.9},
	}
	s := New(cfg.Scorer, cfg.Indicators)
	in := bullishInput()
	in.Correlations = map[string]models.Direction{
		"GBPUSD": models.DirectionLong,
		"AUDUSD": models.DirectionShort,
		"USDCHF": models.DirectionShort,
	}

	first, err := s.Score(in)
	require.NoError(t, err)
	want := math.Float64bits(first.Confidence)
	for i := 0; i < 2000; i++ {
		got, err := s.Score(in)
		require.NoError(t, err)
		require.Equal(t, want, math.Float64bits(got.Confidence), "run %d", i)
		require.Equal(t, first.Factors, got.Factors)
	}
}

func TestScoreBelowThresholdIsNone(t *testing.T) {
	cfg := defaults(t)
	s := New(cfg.Scorer, cfg.Indicators)
	in := bullishInput()
	in.Previous = optional.None[models.IndicatorSnapshot]()
	in.Snapshot = snapshot(20, 0, true)
	in.Candle.Close, in.Candle.Open, in.Candle.Volume = 1.0970, 1.0970, 1000
	in.Closes = []float64{1.0970, 1.0970, 1.0970}
	in.Regime = models.InitialRegime()

	got, err := s.Score(in)
	require.NoError(t, err)
	assert.Equal(t, models.DirectionNone, got.Direction)
	assert.InDelta(t, 0.15, got.Confidence, 1e-9)
}

func TestScoreTieIsNone(t *testing.T) {
	cfg := defaults(t)
	s := New(cfg.Scorer, cfg.Indicators)
	in := bullishInput()
	in.Previous = optional.None[models.IndicatorSnapshot]()
	in.Snapshot = snapshot(50, 0, true)
	in.Candle.Close, in.Candle.Open, in.Candle.Volume = 1.0970, 1.0970, 1000
	in.Closes = nil
	in.Regime = models.InitialRegime()

	got, err := s.Score(in)
	require.NoError(t, err)
	assert.Equal(t, models.DirectionNone, got.Direction)
	assert.Zero(t, got.Confidence)
}

func TestScoreDisallowedDuringTransition(t *testing.T) {
	cfg := defaults(t)
	s := New(cfg.Scorer, cfg.Indicators)
	in := bullishInput()
	in.Regime = models.RegimeState{
		Label: models.RegimeTransition, Committed: models.RegimeChoppy, Pending: models.RegimeStrongTrendDown,
	}

	got, err := s.Score(in)
	require.NoError(t, err)
	assert.Equal(t, models.DirectionNone, got.Direction)
	assert.InDelta(t, 0.70, got.Confidence, 1e-9)

	in.Regime.Pending = models.RegimeStrongTrendUp
	got, err = s.Score(in)
	require.NoError(t, err)
	assert.Equal(t, models.DirectionLong, got.Direction)
}

func TestScoreConfidenceIsClamped(t *testing.T) {
	cfg := defaults(t)
	for k := range cfg.Scorer.Weights {
		cfg.Scorer.Weights[k] = 1
	}
	s := New(cfg.Scorer, cfg.Indicators)
	got, err := s.Score(bullishInput())
	require.NoError(t, err)
	assert.Equal(t, 1.0, got.Confidence)
}

func TestScoreCorrelationInvertsNegativePeers(t *testing.T) {
	cfg := defaults(t)
	cfg.Scorer.Weights = map[string]float64{FactorCorrelation: 1}
	cfg.Scorer.Correlated = map[string]map[string]float64{
		"EURUSD": {"GBPUSD": 0.8, "USDCHF": -0.9},
	}
	s := New(cfg.Scorer, cfg.Indicators)
	in := bullishInput()
	in.Correlations = map[string]models.Direction{
		"GBPUSD": models.DirectionLong,
		"USDCHF": models.DirectionShort,
	}

	got, err := s.Score(in)
	require.NoError(t, err)
	assert.Equal(t, models.DirectionLong, got.Direction)
	assert.Equal(t, 1.0, got.Confidence)

	in.Correlations["USDCHF"] = models.DirectionLong
	got, err = s.Score(in)
	require.NoError(t, err)
	assert.Equal(t, models.DirectionNone, got.Direction)
	assert.InDelta(t, 0.5, got.Confidence, 1e-9)
}
