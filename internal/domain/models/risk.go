package models

import "time"

// TradeOutcome is a completed trade reported by the external trade tracker.
type TradeOutcome struct {
	Symbol        string    `json:"symbol" validate:"required"`
	Win           bool      `json:"win"`
	PnL           float64   `json:"pnl"`
	DrawdownDelta float64   `json:"drawdown_delta"`
	ClosedAt      time.Time `json:"closed_at"`
}

// RiskState is the per-symbol feedback state owned by the sizer.
type RiskState struct {
	Symbol            string    `json:"symbol"`
	ConsecutiveLosses int       `json:"consecutive_losses"`
	ConsecutiveWins   int       `json:"consecutive_wins"`
	RecentWinRate     float64   `json:"recent_win_rate"`
	CurrentDrawdown   float64   `json:"current_drawdown"`
	RecoveryMode      bool      `json:"recovery_mode"`
	RecoverySince     time.Time `json:"recovery_since,omitempty"`
	Trades            int       `json:"trades"`
	LastOutcomeAt     time.Time `json:"last_outcome_at,omitempty"`
}

// MarketContext carries the volatility inputs the sizer needs.
type MarketContext struct {
	ATR        float64
	Close      float64
	Regime     RegimeLabel
	Volatility float64
}
