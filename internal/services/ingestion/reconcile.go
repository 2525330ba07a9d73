package ingestion

import (
	"time"

	"FxPulse/internal/domain/models"
	"FxPulse/internal/services/indicators"
)

// tail remembers the candles emitted from the fallback so a reconnected
// primary can confirm or contradict them.
type tail struct {
	w *indicators.RollingWindow[models.Candle]
}

func newTail(size int) *tail {
	return &tail{w: indicators.NewRollingWindow[models.Candle](size)}
}

func (t *tail) add(c models.Candle) { t.w.Push(c) }

func (t *tail) find(openTime time.Time) (models.Candle, bool) {
	for _, c := range t.w.Items() {
		if c.OpenTime.Equal(openTime) {
			return c, true
		}
	}
	return models.Candle{}, false
}

func (t *tail) reset() { t.w.Reset() }

// pending holds fallback candles fetched while reconciling. They are never
// emitted from here; the primary either supersedes them or the manager falls
// back and refetches.
type pending struct {
	byTime map[int64]models.Candle
}

func newPending() *pending { return &pending{byTime: make(map[int64]models.Candle)} }

func (p *pending) add(c models.Candle) { p.byTime[c.OpenTime.UnixMilli()] = c }

func (p *pending) discardThrough(t time.Time) {
	for k, c := range p.byTime {
		if !c.OpenTime.After(t) {
			delete(p.byTime, k)
		}
	}
}

func (p *pending) len() int { return len(p.byTime) }

func (p *pending) reset() { clear(p.byTime) }

type verdict int

const (
	verdictIgnore verdict = iota
	verdictSuperseded
	verdictConfirmed
	verdictContradicted
)

func (v verdict) String() string {
	switch v {
	case verdictSuperseded:
		return "superseded"
	case verdictConfirmed:
		return "confirmed"
	case verdictContradicted:
		return "contradicted"
	default:
		return "ignore"
	}
}

// reconcile judges a finalized primary candle against the last emitted
// open_time and the fallback tail.
func reconcile(c models.Candle, last time.Time, t *tail, tolerance float64) verdict {
	if c.OpenTime.After(last) {
		return verdictSuperseded
	}
	prev, ok := t.find(c.OpenTime)
	if !ok {
		// Emitted by the primary before it failed.
		if c.OpenTime.Equal(last) {
			return verdictConfirmed
		}
		return verdictIgnore
	}
	if !c.Matches(prev, tolerance) {
		return verdictContradicted
	}
	if c.OpenTime.Equal(last) {
		return verdictConfirmed
	}
	return verdictIgnore
}
