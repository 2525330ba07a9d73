package metrics

import (
	"FxPulse/internal/domain/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	candles     *prometheus.CounterVec
	anomalies   *prometheus.CounterVec
	signals     *prometheus.CounterVec
	dispatches  *prometheus.CounterVec
	drops       *prometheus.CounterVec
	feedMode    *prometheus.GaugeVec
	feedDown    *prometheus.GaugeVec
	errorsTotal *prometheus.CounterVec
	lastPrice   *prometheus.GaugeVec
	latency     *prometheus.HistogramVec
}

// New creates a recorder registered on the default registry.
func New() *Recorder {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers every collector on reg; tests pass a fresh
// prometheus.NewRegistry() to avoid duplicate registration panics.
func NewWithRegisterer(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		candles: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fxpulse_candles_total",
				Help: "Finalized candles emitted downstream by source",
			},
			[]string{"symbol", "timeframe", "source"},
		),
		anomalies: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fxpulse_anomalies_total",
				Help: "Anomaly flags raised by kind and severity",
			},
			[]string{"kind", "severity"},
		),
		signals: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fxpulse_signals_total",
				Help: "Risk-adjusted signals produced",
			},
			[]string{"symbol", "direction"},
		),
		dispatches: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fxpulse_dispatch_total",
				Help: "Dispatch outcomes by status and reason",
			},
			[]string{"status", "reason"},
		),
		drops: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fxpulse_alerts_dropped_total",
				Help: "Alerts evicted from the bounded dispatch queue",
			},
			[]string{"priority"},
		),
		feedMode: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fxpulse_feed_mode",
				Help: "Current feed mode per stream (1 for the active mode)",
			},
			[]string{"stream", "mode"},
		),
		feedDown: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fxpulse_feed_down",
				Help: "1 while the primary feed is in FEED_DOWN",
			},
			[]string{"stream"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fxpulse_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastPrice: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fxpulse_last_price",
				Help: "Last close per symbol",
			},
			[]string{"symbol"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fxpulse_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

func (r *Recorder) RecordCandle(symbol string, tf models.Timeframe, source models.CandleSource) {
	r.candles.WithLabelValues(symbol, string(tf), string(source)).Inc()
}

func (r *Recorder) RecordAnomaly(kind models.AnomalyKind, severity models.Severity) {
	r.anomalies.WithLabelValues(string(kind), string(severity)).Inc()
}

func (r *Recorder) RecordSignal(symbol string, direction models.Direction) {
	r.signals.WithLabelValues(symbol, string(direction)).Inc()
}

func (r *Recorder) RecordDispatch(status models.DispatchStatus, reason string) {
	r.dispatches.WithLabelValues(string(status), reason).Inc()
}

func (r *Recorder) RecordDrop(priority models.Priority) {
	r.drops.WithLabelValues(priority.String()).Inc()
}

// RecordFeedMode sets the active mode to 1 and the others to 0.
func (r *Recorder) RecordFeedMode(stream models.StreamKey, mode models.FeedMode, down bool) {
	for _, m := range []models.FeedMode{models.FeedPrimary, models.FeedFallback, models.FeedReconciling} {
		v := 0.0
		if m == mode {
			v = 1
		}
		r.feedMode.WithLabelValues(stream.String(), string(m)).Set(v)
	}
	d := 0.0
	if down {
		d = 1
	}
	r.feedDown.WithLabelValues(stream.String()).Set(d)
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLastPrice records the last price for a symbol.
func (r *Recorder) RecordLastPrice(symbol string, price float64) {
	r.lastPrice.WithLabelValues(symbol).Set(price)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// Nop discards every measurement.
type Nop struct{}

func (Nop) RecordCandle(string, models.Timeframe, models.CandleSource) {}
func (Nop) RecordAnomaly(models.AnomalyKind, models.Severity)          {}
func (Nop) RecordSignal(string, models.Direction)                      {}
func (Nop) RecordDispatch(models.DispatchStatus, string)               {}
func (Nop) RecordDrop(models.Priority)                                 {}
func (Nop) RecordFeedMode(models.StreamKey, models.FeedMode, bool)     {}
func (Nop) RecordError(string)                                         {}
func (Nop) RecordLastPrice(string, float64)                            {}
func (Nop) RecordLatency(string, float64)                              {}
