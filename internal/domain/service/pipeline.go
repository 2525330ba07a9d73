package service

import (
	"context"
	"time"

	"FxPulse/internal/domain/models"
)

// AnomalyChecker validates a candle against recent valid history.
type AnomalyChecker interface {
	Check(c models.Candle, history []models.Candle) models.CheckedCandle
}

// IndicatorEngine maintains the rolling window of one stream.
type IndicatorEngine interface {
	Update(c models.CheckedCandle) (models.IndicatorSnapshot, error)
	ValidCandles() []models.Candle
}

// RegimeClassifier re-evaluates the regime of one stream every tick.
type RegimeClassifier interface {
	Evaluate(snap models.IndicatorSnapshot, candles []models.Candle) (models.RegimeState, error)
	State() models.RegimeState
}

// RiskBook owns the per-symbol RiskState.
type RiskBook interface {
	ApplyOutcome(o models.TradeOutcome) models.RiskState
	Snapshot(symbol string, at time.Time) models.RiskState
}

// SignalDispatcher is the single entry point towards alert delivery.
type SignalDispatcher interface {
	OnSignal(ctx context.Context, s models.RiskAdjustedSignal) models.DispatchOutcome
}
