package models

import "time"

// Direction of a signal.
type Direction string

const (
	DirectionLong  Direction = "LONG"
	DirectionShort Direction = "SHORT"
	DirectionNone  Direction = "NONE"
)

// Sign returns +1 for LONG, -1 for SHORT and 0 otherwise.
func (d Direction) Sign() int {
	switch d {
	case DirectionLong:
		return 1
	case DirectionShort:
		return -1
	default:
		return 0
	}
}

// Opposite returns the reverse direction; NONE stays NONE.
func (d Direction) Opposite() Direction {
	switch d {
	case DirectionLong:
		return DirectionShort
	case DirectionShort:
		return DirectionLong
	default:
		return DirectionNone
	}
}

// SignalCandidate is produced fresh on every evaluation.
type SignalCandidate struct {
	Symbol     string             `json:"symbol"`
	Timeframe  Timeframe          `json:"timeframe"`
	Timestamp  time.Time          `json:"timestamp"`
	Direction  Direction          `json:"direction"`
	Confidence float64            `json:"confidence"`
	Factors    map[string]float64 `json:"contributing_factors"`
	Price      float64            `json:"price"`
	Regime     RegimeLabel        `json:"regime"`
	Indicators map[string]float64 `json:"indicators,omitempty"`
}

// RiskAdjustedSignal is a candidate sized against the symbol's RiskState.
type RiskAdjustedSignal struct {
	SignalCandidate
	PositionSize float64 `json:"position_size"`
	StopLoss     float64 `json:"stop_loss"`
	TakeProfit   float64 `json:"take_profit"`
	RiskPercent  float64 `json:"risk_percent"`
	RiskLevel    int     `json:"risk_level"`
	RecoveryMode bool    `json:"recovery_mode"`
}
