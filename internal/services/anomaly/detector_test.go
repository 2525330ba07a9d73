package anomaly

import (
	"testing"
	"time"

	"FxPulse/internal/domain/models"
	"FxPulse/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func anomalyConfig(t *testing.T) config.AnomalyConfig {
	t.Helper()
	cfg, err := config.Default()
	require.NoError(t, err)
	return cfg.Anomaly
}

func history(n int) []models.Candle {
	out := make([]models.Candle, n)
	for i := range out {
		px := 1.1000 + float64(i)*0.0001
		vol := 1000.0
		if i%2 == 1 {
			vol = 1100
		}
		out[i] = models.Candle{
			Symbol: "EURUSD", Timeframe: models.TF1m,
			OpenTime: base.Add(time.Duration(i) * time.Minute),
			Open:     px, High: px + 0.0001, Low: px - 0.0001, Close: px,
			Volume: vol, Final: true,
		}
	}
	return out
}

func next(h []models.Candle) models.Candle {
	c := h[len(h)-1]
	c.OpenTime = c.OpenTime.Add(time.Minute)
	c.Open = c.Close
	c.Volume = 1050
	return c
}

func TestCleanCandlePasses(t *testing.T) {
	d := NewDetector(anomalyConfig(t))
	h := history(20)
	got := d.Check(next(h), h)
	assert.True(t, got.Valid)
	assert.Empty(t, got.Flags)
}

func TestSingleVolumeSpikeIsClipped(t *testing.T) {
	d := NewDetector(anomalyConfig(t))
	h := history(20)
	c := next(h)
	c.Volume = 50000

	got := d.Check(c, h)
	require.True(t, got.Valid)
	require.Len(t, got.Flags, 1)
	f := got.Flags[0]
	assert.Equal(t, models.AnomalyVolumeSpike, f.Kind)
	assert.Equal(t, models.SeverityLow, f.Severity)
	assert.True(t, f.CorrectionApplied)
	// mean 1050, population std 50, sigma 4
	assert.InDelta(t, 1250.0, got.Candle.Volume, 1e-9)
}

func TestSinglePriceGapPassesThrough(t *testing.T) {
	d := NewDetector(anomalyConfig(t))
	h := history(20)
	c := next(h)
	c.Open *= 1.01
	c.High = c.Open

	got := d.Check(c, h)
	require.True(t, got.Valid)
	require.Len(t, got.Flags, 1)
	assert.Equal(t, models.AnomalyPriceGap, got.Flags[0].Kind)
	assert.Equal(t, models.SeverityLow, got.Flags[0].Severity)
	assert.False(t, got.Flags[0].CorrectionApplied)
	assert.Equal(t, c, got.Candle)
}

func TestTwoFactorsAreHighAndExcluded(t *testing.T) {
	d := NewDetector(anomalyConfig(t))
	h := history(20)
	c := next(h)
	c.Open *= 1.5
	c.High, c.Close = c.Open, c.Open
	c.Volume *= 50

	got := d.Check(c, h)
	assert.False(t, got.Valid)
	require.Len(t, got.Flags, 2)
	for _, f := range got.Flags {
		assert.Equal(t, models.SeverityHigh, f.Severity)
		assert.False(t, f.CorrectionApplied)
	}
	assert.True(t, got.HasHighSeverity())
	assert.Equal(t, c.Volume, got.Candle.Volume)
}

func TestStaleFeedFlag(t *testing.T) {
	d := NewDetector(anomalyConfig(t))
	h := history(20)
	c := next(h)
	c.OpenTime = c.OpenTime.Add(5 * time.Minute)

	got := d.Check(c, h)
	require.True(t, got.Valid)
	require.Len(t, got.Flags, 1)
	assert.Equal(t, models.AnomalyStaleFeed, got.Flags[0].Kind)
}

func TestShortHistorySkipsGapAndVolume(t *testing.T) {
	d := NewDetector(anomalyConfig(t))
	h := history(3)
	c := next(h)
	c.Open *= 1.5
	c.Volume *= 50

	got := d.Check(c, h)
	assert.True(t, got.Valid)
	assert.Empty(t, got.Flags)
}
