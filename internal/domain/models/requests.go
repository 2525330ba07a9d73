package models

import "encoding/json"

// Requests for the status HTTP endpoints.

type OutcomeRequest struct {
	Symbol        string  `json:"symbol" validate:"required"`
	Win           bool    `json:"win"`
	PnL           float64 `json:"pnl"`
	DrawdownDelta float64 `json:"drawdown_delta" validate:"gte=-1,lte=1"`
	ClosedAt      string  `json:"closed_at"`
}

// CorrelationsRequest is the bare JSON map instrument → direction.
type CorrelationsRequest struct {
	Directions map[string]Direction `validate:"required,dive,keys,required,endkeys,oneof=LONG SHORT NONE"`
}

func (r *CorrelationsRequest) UnmarshalJSON(b []byte) error {
	return json.Unmarshal(b, &r.Directions)
}

type RiskRequest struct {
	Symbol string `param:"symbol" validate:"required"`
}

type StreamsRequest struct {
	Symbol string `query:"symbol"`
	Limit  int    `query:"limit" default:"50" validate:"gte=1,lte=500"`
}

type SignalsRequest struct {
	Symbol string `param:"symbol" validate:"required"`
	Since  string `query:"since"`
	Limit  int    `query:"limit" default:"50" validate:"gte=1,lte=500"`
}
