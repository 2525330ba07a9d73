package models

import (
	"fmt"
	"math"
	"time"
)

// Timeframe is a candle resolution such as "1m".
type Timeframe string

const (
	TF1m  Timeframe = "1m"
	TF5m  Timeframe = "5m"
	TF15m Timeframe = "15m"
	TF1h  Timeframe = "1h"
	TF4h  Timeframe = "4h"
	TF1d  Timeframe = "1d"
)

// Duration returns the bucket length of the timeframe, or 0 when unknown.
func (tf Timeframe) Duration() time.Duration {
	switch tf {
	case TF1m:
		return time.Minute
	case TF5m:
		return 5 * time.Minute
	case TF15m:
		return 15 * time.Minute
	case TF1h:
		return time.Hour
	case TF4h:
		return 4 * time.Hour
	case TF1d:
		return 24 * time.Hour
	default:
		return 0
	}
}

// StreamKey identifies one (symbol, timeframe) ingestion stream.
type StreamKey struct {
	Symbol    string    `json:"symbol"`
	Timeframe Timeframe `json:"timeframe"`
}

func (k StreamKey) String() string { return k.Symbol + "@" + string(k.Timeframe) }

// CandleSource tells which feed produced a candle.
type CandleSource string

const (
	SourcePrimary  CandleSource = "primary"
	SourceFallback CandleSource = "fallback"
)

// Candle is a fixed-interval OHLCV record. A finalized candle is never mutated;
// in-progress updates arrive with Final=false and replace each other.
type Candle struct {
	Symbol    string       `json:"symbol"`
	Timeframe Timeframe    `json:"timeframe"`
	OpenTime  time.Time    `json:"open_time"`
	Open      float64      `json:"open"`
	High      float64      `json:"high"`
	Low       float64      `json:"low"`
	Close     float64      `json:"close"`
	Volume    float64      `json:"volume"`
	Final     bool         `json:"final"`
	Source    CandleSource `json:"source"`
}

// Key returns the stream the candle belongs to.
func (c Candle) Key() StreamKey { return StreamKey{Symbol: c.Symbol, Timeframe: c.Timeframe} }

// Validate rejects candles that cannot be repaired.
func (c Candle) Validate() error {
	if c.Symbol == "" {
		return fmt.Errorf("candle symbol empty")
	}
	if c.OpenTime.IsZero() {
		return fmt.Errorf("candle open_time empty")
	}
	for _, v := range []float64{c.Open, c.High, c.Low, c.Close} {
		if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("candle %s %s: invalid price %v", c.Symbol, c.OpenTime.Format(time.RFC3339), v)
		}
	}
	if c.Volume < 0 || math.IsNaN(c.Volume) {
		return fmt.Errorf("candle %s %s: invalid volume %v", c.Symbol, c.OpenTime.Format(time.RFC3339), c.Volume)
	}
	return nil
}

// Normalize restores high >= max(open, close) and low <= min(open, close).
func (c Candle) Normalize() Candle {
	c.High = math.Max(c.High, math.Max(c.Open, c.Close))
	c.Low = math.Min(c.Low, math.Min(c.Open, c.Close))
	return c
}

// Matches reports whether two candles for the same open_time agree on OHLCV
// within a relative tolerance.
func (c Candle) Matches(o Candle, tolerance float64) bool {
	if !c.OpenTime.Equal(o.OpenTime) {
		return false
	}
	return within(c.Open, o.Open, tolerance) &&
		within(c.High, o.High, tolerance) &&
		within(c.Low, o.Low, tolerance) &&
		within(c.Close, o.Close, tolerance) &&
		within(c.Volume, o.Volume, tolerance)
}

func within(a, b, tol float64) bool {
	if a == b {
		return true
	}
	scale := math.Max(math.Abs(a), math.Abs(b))
	return math.Abs(a-b) <= tol*scale
}

// WindowEntry is a candle as stored in the rolling window.
type WindowEntry struct {
	Candle Candle
	Valid  bool
}
