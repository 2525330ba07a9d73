package models

import (
	"time"

	"github.com/moznion/go-optional"
)

// IndicatorKind tags an indicator variant.
type IndicatorKind string

const (
	IndicatorRSI       IndicatorKind = "RSI"
	IndicatorMACD      IndicatorKind = "MACD"
	IndicatorBollinger IndicatorKind = "BOLLINGER"
	IndicatorVolumeMA  IndicatorKind = "VOLUME_MA"
	IndicatorATR       IndicatorKind = "ATR"
)

// Component offsets for vector-valued indicators.
const (
	MACDLine      = 0
	MACDSignal    = 1
	MACDHistogram = 2

	BollingerMiddle    = 0
	BollingerUpper     = 1
	BollingerLower     = 2
	BollingerBandwidth = 3

	VolumeMean     = 0
	VolumeVariance = 1
)

// IndicatorSnapshot holds every indicator value computed for one valid tick.
// It is immutable: accessors hand out copies.
type IndicatorSnapshot struct {
	stream    StreamKey
	timestamp time.Time
	close     float64
	samples   int
	values    map[IndicatorKind]optional.Option[[]float64]
}

// NewIndicatorSnapshot copies values into a new snapshot.
func NewIndicatorSnapshot(stream StreamKey, ts time.Time, close float64, samples int, values map[IndicatorKind]optional.Option[[]float64]) IndicatorSnapshot {
	cp := make(map[IndicatorKind]optional.Option[[]float64], len(values))
	for k, v := range values {
		if v.IsSome() {
			cp[k] = optional.Some(append([]float64(nil), v.Unwrap()...))
			continue
		}
		cp[k] = optional.None[[]float64]()
	}
	return IndicatorSnapshot{stream: stream, timestamp: ts, close: close, samples: samples, values: cp}
}

func (s IndicatorSnapshot) Stream() StreamKey    { return s.stream }
func (s IndicatorSnapshot) Timestamp() time.Time { return s.timestamp }
func (s IndicatorSnapshot) Close() float64       { return s.close }

// Samples is the number of valid candles the snapshot was computed from.
func (s IndicatorSnapshot) Samples() int { return s.samples }

// IsZero reports whether the snapshot was never populated.
func (s IndicatorSnapshot) IsZero() bool { return s.values == nil }

// Get returns the full vector for kind, or None while not yet available.
func (s IndicatorSnapshot) Get(kind IndicatorKind) optional.Option[[]float64] {
	v, ok := s.values[kind]
	if !ok || v.IsNone() {
		return optional.None[[]float64]()
	}
	return optional.Some(append([]float64(nil), v.Unwrap()...))
}

// Value returns one component of kind.
func (s IndicatorSnapshot) Value(kind IndicatorKind, component int) optional.Option[float64] {
	v, ok := s.values[kind]
	if !ok || v.IsNone() {
		return optional.None[float64]()
	}
	vec := v.Unwrap()
	if component < 0 || component >= len(vec) {
		return optional.None[float64]()
	}
	return optional.Some(vec[component])
}

// Available reports whether kind has a value.
func (s IndicatorSnapshot) Available(kind IndicatorKind) bool {
	v, ok := s.values[kind]
	return ok && v.IsSome()
}

// Kinds lists the indicators present in the snapshot, available or not.
func (s IndicatorSnapshot) Kinds() []IndicatorKind {
	out := make([]IndicatorKind, 0, len(s.values))
	for k := range s.values {
		out = append(out, k)
	}
	return out
}

// Flatten renders the snapshot as name → value for transport and logging.
// Unavailable indicators are omitted.
func (s IndicatorSnapshot) Flatten() map[string]float64 {
	names := map[IndicatorKind][]string{
		IndicatorRSI:       {"rsi"},
		IndicatorMACD:      {"macd", "macd_signal", "macd_hist"},
		IndicatorBollinger: {"bb_middle", "bb_upper", "bb_lower", "bb_width"},
		IndicatorVolumeMA:  {"volume_ma", "volume_var"},
		IndicatorATR:       {"atr"},
	}
	out := make(map[string]float64)
	for k, v := range s.values {
		if v.IsNone() {
			continue
		}
		vec := v.Unwrap()
		labels := names[k]
		for i, x := range vec {
			if i < len(labels) {
				out[labels[i]] = x
			}
		}
	}
	return out
}
