package anomaly

import (
	"math"
	"time"

	"FxPulse/internal/domain/models"
	"FxPulse/internal/domain/repository"
	"FxPulse/internal/services/features"
	"FxPulse/pkg/config"
	"FxPulse/pkg/logger"
	"FxPulse/pkg/metrics"
)

type Option func(*Detector)

func WithLogger(l *logger.Logger) Option {
	return func(d *Detector) { d.log = l.Component("anomaly") }
}

func WithMetrics(m repository.Metrics) Option {
	return func(d *Detector) { d.metrics = m }
}

// Detector flags price gaps, volume spikes and stale feeds against the
// trailing valid history and applies the correction policy.
type Detector struct {
	cfg     config.AnomalyConfig
	log     *logger.Logger
	metrics repository.Metrics
}

func NewDetector(cfg config.AnomalyConfig, opts ...Option) *Detector {
	d := &Detector{cfg: cfg, log: logger.Nop(), metrics: metrics.Nop{}}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Check evaluates c against history, the prior valid candles oldest first.
func (d *Detector) Check(c models.Candle, history []models.Candle) models.CheckedCandle {
	if len(history) > d.cfg.Lookback+1 {
		history = history[len(history)-d.cfg.Lookback-1:]
	}

	var flags []models.AnomalyFlag
	var volumeUpper float64

	if len(history) >= d.cfg.MinHistory {
		if f, ok := d.priceGap(c, history); ok {
			flags = append(flags, f)
		}
		if f, upper, ok := d.volumeSpike(c, history); ok {
			flags = append(flags, f)
			volumeUpper = upper
		}
	}
	if len(history) > 0 {
		if f, ok := d.stale(c, history[len(history)-1]); ok {
			flags = append(flags, f)
		}
	}

	out := models.CheckedCandle{Candle: c, Valid: true}
	switch {
	case len(flags) >= 2:
		for i := range flags {
			flags[i].Severity = models.SeverityHigh
			flags[i].CorrectionApplied = false
		}
		out.Valid = false
	case len(flags) == 1:
		flags[0].Severity = models.SeverityLow
		if flags[0].Kind == models.AnomalyVolumeSpike {
			out.Candle.Volume = volumeUpper
			flags[0].CorrectionApplied = true
		}
	}
	out.Flags = flags

	for _, f := range flags {
		d.metrics.RecordAnomaly(f.Kind, f.Severity)
		d.log.Warn("anomaly detected",
			logger.String("symbol", c.Symbol),
			logger.String("timeframe", string(c.Timeframe)),
			logger.Time("open_time", c.OpenTime),
			logger.String("kind", string(f.Kind)),
			logger.String("severity", string(f.Severity)),
			logger.Bool("corrected", f.CorrectionApplied),
			logger.Float64("observed", f.Observed),
			logger.Float64("threshold", f.Threshold),
		)
	}
	return out
}

func (d *Detector) priceGap(c models.Candle, history []models.Candle) (models.AnomalyFlag, bool) {
	prev := history[len(history)-1]
	if prev.Close <= 0 {
		return models.AnomalyFlag{}, false
	}
	_, sigma := features.MeanStd(features.ComputeLogReturns(history))
	sigma = math.Max(sigma, d.cfg.MinSigma)
	gap := math.Abs(c.Open-prev.Close) / prev.Close
	threshold := d.cfg.GapSigma * sigma
	if gap <= threshold {
		return models.AnomalyFlag{}, false
	}
	return models.AnomalyFlag{Kind: models.AnomalyPriceGap, Observed: gap, Threshold: threshold}, true
}

// volumeSpike also returns the band's upper bound used for clipping.
func (d *Detector) volumeSpike(c models.Candle, history []models.Candle) (models.AnomalyFlag, float64, bool) {
	vols := features.Volumes(history)
	if len(vols) > d.cfg.Lookback {
		vols = vols[len(vols)-d.cfg.Lookback:]
	}
	mean, std := features.MeanStd(vols)
	upper := mean + d.cfg.VolumeSigma*std
	floor := mean * d.cfg.VolumeMinRatio
	if c.Volume <= upper || c.Volume <= floor {
		return models.AnomalyFlag{}, 0, false
	}
	return models.AnomalyFlag{Kind: models.AnomalyVolumeSpike, Observed: c.Volume, Threshold: math.Max(upper, floor)}, upper, true
}

func (d *Detector) stale(c, prev models.Candle) (models.AnomalyFlag, bool) {
	tf := c.Timeframe.Duration()
	if tf <= 0 {
		return models.AnomalyFlag{}, false
	}
	gap := c.OpenTime.Sub(prev.OpenTime)
	limit := float64(tf) * d.cfg.StaleFactor
	if float64(gap) <= limit {
		return models.AnomalyFlag{}, false
	}
	return models.AnomalyFlag{Kind: models.AnomalyStaleFeed, Observed: gap.Seconds(), Threshold: time.Duration(limit).Seconds()}, true
}
