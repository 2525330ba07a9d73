package dispatch

import (
	"context"
	"sync"
	"time"

	"FxPulse/internal/domain/models"
	"FxPulse/internal/domain/repository"
	"FxPulse/internal/domain/service"
	"FxPulse/internal/service/ratelimit"
	"FxPulse/pkg/config"
	"FxPulse/pkg/logger"
	"FxPulse/pkg/metrics"

	"github.com/google/uuid"
)

type Option func(*Dispatcher)

func WithLogger(l *logger.Logger) Option {
	return func(d *Dispatcher) { d.log = l.Component("dispatch") }
}

func WithMetrics(m repository.Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// WithClock injects the time source for cooldowns, daily caps and rate limits.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

func WithQueue(q *Queue) Option {
	return func(d *Dispatcher) { d.queue = q }
}

type dedupKey struct {
	symbol    string
	direction models.Direction
}

type dailyCount struct {
	day string
	n   int
}

// Dispatcher applies suppression rules and enqueues alerts. OnSignal never blocks
// on delivery.
type Dispatcher struct {
	cfg     config.DispatchConfig
	queue   *Queue
	limiter *ratelimit.Limiter
	now     func() time.Time
	log     *logger.Logger
	metrics repository.Metrics

	mu       sync.Mutex
	lastSent map[dedupKey]time.Time
	daily    map[dedupKey]dailyCount
}

func NewDispatcher(cfg config.DispatchConfig, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		cfg:      cfg,
		limiter:  ratelimit.New(cfg.RatePerMinute, cfg.Burst),
		now:      time.Now,
		log:      logger.Nop(),
		metrics:  metrics.Nop{},
		lastSent: make(map[dedupKey]time.Time),
		daily:    make(map[dedupKey]dailyCount),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.queue == nil {
		d.queue = NewQueue(cfg.QueueSize)
	}
	return d
}

func (d *Dispatcher) Queue() *Queue { return d.queue }

// PriorityFor maps confidence onto an alert priority.
func PriorityFor(confidence float64) models.Priority {
	switch {
	case confidence >= 0.9:
		return models.PriorityCritical
	case confidence >= 0.8:
		return models.PriorityHigh
	case confidence >= 0.7:
		return models.PriorityMedium
	default:
		return models.PriorityLow
	}
}

func (d *Dispatcher) OnSignal(ctx context.Context, s models.RiskAdjustedSignal) models.DispatchOutcome {
	if s.Direction == models.DirectionNone {
		return d.suppress(s, models.ReasonNoDirection)
	}
	if s.Confidence < d.cfg.MinConfidence {
		return d.suppress(s, models.ReasonLowConfidence)
	}

	now := d.now()
	key := dedupKey{symbol: s.Symbol, direction: s.Direction}
	day := now.UTC().Format("2006-01-02")

	d.mu.Lock()
	if last, ok := d.lastSent[key]; ok && now.Sub(last) < d.cfg.Cooldown {
		d.mu.Unlock()
		return d.suppress(s, models.ReasonCooldown)
	}
	dc := d.daily[key]
	if dc.day != day {
		dc = dailyCount{day: day}
	}
	if d.cfg.MaxDaily > 0 && dc.n >= d.cfg.MaxDaily {
		d.mu.Unlock()
		return d.suppress(s, models.ReasonDailyLimit)
	}
	if !d.limiter.AllowAt(s.Symbol, now) {
		d.mu.Unlock()
		return d.suppress(s, models.ReasonRateLimited)
	}

	alert := &models.Alert{
		ID:        uuid.New(),
		Signal:    s,
		Priority:  PriorityFor(s.Confidence),
		CreatedAt: now,
	}
	dropped, accepted := d.queue.Push(alert)
	if accepted {
		d.lastSent[key] = now
		dc.n++
		d.daily[key] = dc
		if dropped != nil {
			d.forget(dropped)
		}
	}
	d.mu.Unlock()

	if dropped != nil {
		d.metrics.RecordDrop(dropped.Priority)
		d.log.Warn("alert dropped",
			logger.String("alert_id", dropped.ID.String()),
			logger.String("symbol", dropped.Signal.Symbol),
			logger.String("priority", dropped.Priority.String()),
			logger.Int64("dropped_total", d.queue.Dropped()),
		)
	}
	if !accepted {
		return d.suppress(s, models.ReasonQueueRejected)
	}

	d.metrics.RecordDispatch(models.DispatchSent, "")
	d.log.Debug("alert queued",
		logger.String("alert_id", alert.ID.String()),
		logger.String("symbol", s.Symbol),
		logger.String("direction", string(s.Direction)),
		logger.Float64("confidence", s.Confidence),
		logger.String("priority", alert.Priority.String()),
	)
	return models.DispatchOutcome{Status: models.DispatchSent, AlertID: alert.ID}
}

// forget undoes the cooldown and daily count an evicted alert recorded, so
// the next signal for its key is not held back by an alert never delivered.
// Caller holds d.mu.
func (d *Dispatcher) forget(a *models.Alert) {
	key := dedupKey{symbol: a.Signal.Symbol, direction: a.Signal.Direction}
	if last, ok := d.lastSent[key]; ok && last.Equal(a.CreatedAt) {
		delete(d.lastSent, key)
	}
	day := a.CreatedAt.UTC().Format("2006-01-02")
	if dc, ok := d.daily[key]; ok && dc.day == day && dc.n > 0 {
		dc.n--
		d.daily[key] = dc
	}
}

func (d *Dispatcher) suppress(s models.RiskAdjustedSignal, reason string) models.DispatchOutcome {
	d.metrics.RecordDispatch(models.DispatchSuppressed, reason)
	if reason != models.ReasonNoDirection {
		d.log.Debug("signal suppressed",
			logger.String("symbol", s.Symbol),
			logger.String("direction", string(s.Direction)),
			logger.String("reason", reason),
		)
	}
	return models.DispatchOutcome{Status: models.DispatchSuppressed, Reason: reason}
}

var _ service.SignalDispatcher = (*Dispatcher)(nil)
