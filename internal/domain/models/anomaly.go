package models

// AnomalyKind enumerates the independent anomaly checks.
type AnomalyKind string

const (
	AnomalyPriceGap    AnomalyKind = "PRICE_GAP"
	AnomalyVolumeSpike AnomalyKind = "VOLUME_SPIKE"
	AnomalyStaleFeed   AnomalyKind = "STALE_FEED"
)

type Severity string

const (
	SeverityLow  Severity = "LOW"
	SeverityHigh Severity = "HIGH"
)

// AnomalyFlag is attached to a candle before it enters the indicator engine.
type AnomalyFlag struct {
	Kind              AnomalyKind `json:"kind"`
	Severity          Severity    `json:"severity"`
	CorrectionApplied bool        `json:"correction_applied"`
	Observed          float64     `json:"observed"`
	Threshold         float64     `json:"threshold"`
}

// CheckedCandle is the detector's verdict on one candle. Valid is false only
// when an uncorrected high-severity flag is present.
type CheckedCandle struct {
	Candle Candle        `json:"candle"`
	Flags  []AnomalyFlag `json:"flags,omitempty"`
	Valid  bool          `json:"valid"`
}

// HasHighSeverity reports whether any flag blocks indicator computation.
func (c CheckedCandle) HasHighSeverity() bool {
	for _, f := range c.Flags {
		if f.Severity == SeverityHigh && !f.CorrectionApplied {
			return true
		}
	}
	return false
}
