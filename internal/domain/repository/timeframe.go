package repository

import "FxPulse/internal/domain/models"

// IsValidTimeframe returns true if tf is a supported timeframe.
func IsValidTimeframe(tf models.Timeframe) bool {
	return tf.Duration() > 0
}

// DefaultTimeframe returns the default timeframe.
func DefaultTimeframe() models.Timeframe { return models.TF1m }

// NormalizeTimeframe converts raw string to a valid timeframe (or default).
func NormalizeTimeframe(s string) models.Timeframe {
	if s == "" {
		return DefaultTimeframe()
	}
	tf := models.Timeframe(s)
	if IsValidTimeframe(tf) {
		return tf
	}
	return DefaultTimeframe()
}

// ParseStream parses "SYMBOL@tf" (tf optional) into a stream key.
func ParseStream(s string) models.StreamKey {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '@' {
			return models.StreamKey{Symbol: s[:i], Timeframe: NormalizeTimeframe(s[i+1:])}
		}
	}
	return models.StreamKey{Symbol: s, Timeframe: DefaultTimeframe()}
}
