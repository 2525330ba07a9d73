package indicators

import (
	"testing"
	"time"

	"FxPulse/internal/domain/models"
	"FxPulse/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var stream = models.StreamKey{Symbol: "EURUSD", Timeframe: models.TF1m}

func defaultIndicators(t *testing.T) config.IndicatorsConfig {
	t.Helper()
	cfg, err := config.Default()
	require.NoError(t, err)
	return cfg.Indicators
}

func ascending(n int) []models.Candle {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.Candle, n)
	for i := range out {
		px := 1.1000 + float64(i)*0.0001
		out[i] = models.Candle{
			Symbol: "EURUSD", Timeframe: models.TF1m,
			OpenTime: base.Add(time.Duration(i) * time.Minute),
			Open:     px - 0.00005, High: px + 0.0001, Low: px - 0.0001, Close: px,
			Volume: 1000, Final: true,
		}
	}
	return out
}

func TestCapacity(t *testing.T) {
	cfg := defaultIndicators(t)
	// MACD slow+signal = 35 dominates regime lookback+1 = 31
	assert.Equal(t, 35+cfg.Buffer, Capacity(cfg, 30))
	assert.Equal(t, 61+cfg.Buffer, Capacity(cfg, 60))
}

func TestEngineWindowNeverExceedsCapacity(t *testing.T) {
	e, err := NewEngine(stream, defaultIndicators(t), 30, WithCapacity(10))
	require.NoError(t, err)
	for _, c := range ascending(25) {
		_, err := e.Update(models.CheckedCandle{Candle: c, Valid: true})
		require.NoError(t, err)
		assert.LessOrEqual(t, e.Len(), 10)
	}
	valid := e.ValidCandles()
	require.Len(t, valid, 10)
	assert.Equal(t, ascending(25)[15].OpenTime, valid[0].OpenTime)
}

func TestEngineRSIAvailability(t *testing.T) {
	e, err := NewEngine(stream, defaultIndicators(t), 30)
	require.NoError(t, err)
	for i, c := range ascending(50) {
		snap, err := e.Update(models.CheckedCandle{Candle: c, Valid: true})
		require.NoError(t, err)
		if i+1 < 15 {
			assert.False(t, snap.Available(models.IndicatorRSI), "tick %d", i+1)
		} else {
			assert.True(t, snap.Available(models.IndicatorRSI), "tick %d", i+1)
		}
	}
}

func TestEngineInvalidCandleAdvancesWindow(t *testing.T) {
	e, err := NewEngine(stream, defaultIndicators(t), 30)
	require.NoError(t, err)
	cs := ascending(3)
	_, err = e.Update(models.CheckedCandle{Candle: cs[0], Valid: true})
	require.NoError(t, err)

	flags := []models.AnomalyFlag{{Kind: models.AnomalyPriceGap, Severity: models.SeverityHigh}}
	snap, err := e.Update(models.CheckedCandle{Candle: cs[1], Flags: flags, Valid: false})
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrDataQuality)
	assert.True(t, snap.IsZero())
	assert.Equal(t, 2, e.Len())
	assert.Len(t, e.ValidCandles(), 1)

	snap, err = e.Update(models.CheckedCandle{Candle: cs[2], Valid: true})
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Samples())
}

func TestEngineIsDeterministic(t *testing.T) {
	run := func() []map[string]float64 {
		e, err := NewEngine(stream, defaultIndicators(t), 30)
		require.NoError(t, err)
		var out []map[string]float64
		for _, c := range ascending(50) {
			snap, err := e.Update(models.CheckedCandle{Candle: c, Valid: true})
			require.NoError(t, err)
			out = append(out, snap.Flatten())
		}
		return out
	}
	assert.Equal(t, run(), run())
}
