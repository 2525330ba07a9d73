package models

import "time"

// RegimeLabel classifies current market behaviour.
type RegimeLabel string

const (
	RegimeStrongTrendUp   RegimeLabel = "STRONG_TREND_UP"
	RegimeStrongTrendDown RegimeLabel = "STRONG_TREND_DOWN"
	RegimeChoppy          RegimeLabel = "CHOPPY"
	RegimeTransition      RegimeLabel = "TRANSITION"
)

// RegimeState is the classifier output for a tick. Label is what downstream
// consumes: the committed regime, or TRANSITION while a candidate is pending.
type RegimeState struct {
	Label         RegimeLabel `json:"label"`
	Committed     RegimeLabel `json:"committed"`
	Pending       RegimeLabel `json:"pending,omitempty"`
	PendingTicks  int         `json:"pending_ticks"`
	TrendStrength float64     `json:"trend_strength"`
	Direction     int         `json:"direction"`
	Volatility    float64     `json:"volatility"`
	Support       float64     `json:"support"`
	Resistance    float64     `json:"resistance"`
	At            time.Time   `json:"at"`
}

// InitialRegime is the state every stream starts in.
func InitialRegime() RegimeState {
	return RegimeState{Label: RegimeChoppy, Committed: RegimeChoppy}
}

// IsStrongTrend reports whether label is one of the committed trend labels.
func (l RegimeLabel) IsStrongTrend() bool {
	return l == RegimeStrongTrendUp || l == RegimeStrongTrendDown
}
