package models

import (
	"time"

	"github.com/google/uuid"
)

// Priority orders alerts for queue eviction.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityMedium
	PriorityHigh
	PriorityCritical
)

func (p Priority) String() string {
	switch p {
	case PriorityCritical:
		return "critical"
	case PriorityHigh:
		return "high"
	case PriorityMedium:
		return "medium"
	default:
		return "low"
	}
}

// Alert is what crosses the transport boundary.
type Alert struct {
	ID        uuid.UUID          `json:"id"`
	Signal    RiskAdjustedSignal `json:"signal"`
	Priority  Priority           `json:"priority"`
	CreatedAt time.Time          `json:"created_at"`
}

// DispatchStatus is the result of offering a signal to the dispatcher.
type DispatchStatus string

const (
	DispatchSent       DispatchStatus = "SENT"
	DispatchSuppressed DispatchStatus = "SUPPRESSED"
)

// Suppression reasons.
const (
	ReasonCooldown      = "cooldown"
	ReasonRateLimited   = "rate_limited"
	ReasonNoDirection   = "no_direction"
	ReasonDailyLimit    = "daily_limit"
	ReasonLowConfidence = "low_confidence"
	ReasonQueueRejected = "queue_rejected"
)

// DispatchOutcome is returned by OnSignal.
type DispatchOutcome struct {
	Status  DispatchStatus `json:"status"`
	AlertID uuid.UUID      `json:"alert_id,omitempty"`
	Reason  string         `json:"reason,omitempty"`
}
