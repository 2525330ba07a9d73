package ingestion

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/moznion/go-optional"

	"FxPulse/internal/domain/models"
	"FxPulse/internal/domain/repository"
	"FxPulse/internal/service/breaker"
	"FxPulse/pkg/config"
	"FxPulse/pkg/logger"
	"FxPulse/pkg/metrics"
	"FxPulse/pkg/util"
)

type Option func(*Manager)

func WithLogger(l *logger.Logger) Option {
	return func(m *Manager) { m.log = l }
}

func WithMetrics(r repository.Metrics) Option {
	return func(m *Manager) { m.metrics = r }
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithRand replaces the jitter source; f must return values in [0,1).
func WithRand(f func() float64) Option {
	return func(m *Manager) { m.backoff.Rand = f }
}

func WithBreaker(b *breaker.Breaker) Option {
	return func(m *Manager) { m.breaker = b }
}

// WithEventHandler receives FEED_DOWN, FEED_UP and mode changes. It is called
// from both the run loop and the reconnect goroutine.
func WithEventHandler(fn func(models.FeedEvent)) Option {
	return func(m *Manager) { m.onEvent = fn }
}

// session is one live primary connection.
type session struct {
	stream  repository.MarketStream
	cancel  context.CancelFunc
	candles <-chan models.Candle
	errs    <-chan error
}

// Manager owns ingestion for a single stream: it emits finalized candles in
// strictly increasing open_time order, failing over between the primary push
// feed and the pull fallback.
type Manager struct {
	key      models.StreamKey
	cfg      config.FeedConfig
	dial     repository.MarketStreamFactory
	fallback repository.FallbackSource
	breaker  *breaker.Breaker
	backoff  Backoff
	log      *logger.Logger
	metrics  repository.Metrics
	now      func() time.Time
	onEvent  func(models.FeedEvent)

	mu     sync.RWMutex
	status models.FeedStatus

	// Owned by the Run goroutine.
	out           chan<- models.Candle
	mode          models.FeedMode
	last          time.Time
	inProgress    optional.Option[models.Candle]
	tail          *tail
	pending       *pending
	sess          *session
	reconnected   chan repository.MarketStream
	stopReconnect context.CancelFunc
	stale         *time.Timer
	poll          *time.Timer
	reconcile     *time.Timer
}

func NewManager(key models.StreamKey, cfg config.FeedConfig, dial repository.MarketStreamFactory, fallback repository.FallbackSource, opts ...Option) *Manager {
	m := &Manager{
		key:      key,
		cfg:      cfg,
		dial:     dial,
		fallback: fallback,
		backoff:  Backoff{Base: cfg.Backoff.Base, Cap: cfg.Backoff.Cap, Jitter: cfg.Backoff.Jitter},
		log:      logger.Nop(),
		metrics:  metrics.Nop{},
		now:      time.Now,
		mode:     models.FeedPrimary,
		status:   models.FeedStatus{Stream: key, Mode: models.FeedPrimary},
	}
	for _, opt := range opts {
		opt(m)
	}
	m.log = m.log.With(
		logger.String("component", "ingestion"),
		logger.String("symbol", key.Symbol),
		logger.String("timeframe", string(key.Timeframe)),
	)
	if m.breaker == nil {
		m.breaker = breaker.New(breaker.Settings{
			Name:        "fallback:" + key.String(),
			MaxFailures: cfg.Breaker.MaxFailures,
			Interval:    cfg.Breaker.Interval,
			Timeout:     cfg.Breaker.Timeout,
			OnStateChange: func(name, from, to string) {
				m.log.Warn("fallback breaker state changed",
					logger.String("breaker", name), logger.String("from", from), logger.String("to", to))
			},
		})
	}
	size := cfg.PollLimit
	if size < 1 {
		size = 1
	}
	m.tail = newTail(size)
	m.pending = newPending()
	return m
}

func (m *Manager) Key() models.StreamKey { return m.key }

// Status returns a snapshot safe to hand to other goroutines.
func (m *Manager) Status() models.FeedStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// Run emits finalized candles on out until ctx is cancelled. It is not
// reentrant: one Run per Manager.
func (m *Manager) Run(ctx context.Context, out chan<- models.Candle) error {
	m.out = out
	m.stale = idleTimer()
	m.poll = idleTimer()
	m.reconcile = idleTimer()
	defer m.shutdown()

	s := m.dial(m.key)
	if err := m.open(ctx, s); err != nil {
		m.primaryFailed(ctx, models.NewFeedError(m.key, "connect", err))
	} else {
		m.attach(ctx, s)
		m.metrics.RecordFeedMode(m.key, models.FeedPrimary, false)
		m.log.Info("primary feed connected")
	}

	for {
		var (
			candles <-chan models.Candle
			errs    <-chan error
		)
		if m.sess != nil {
			candles, errs = m.sess.candles, m.sess.errs
		}

		select {
		case <-ctx.Done():
			return nil
		case c, ok := <-candles:
			if !ok {
				m.primaryFailed(ctx, models.NewFeedError(m.key, "read", errors.New("stream closed")))
				continue
			}
			m.stale.Reset(m.cfg.StaleTimeout)
			m.onPrimary(ctx, c)
		case err, ok := <-errs:
			if !ok {
				err = errors.New("stream closed")
			}
			m.primaryFailed(ctx, models.NewFeedError(m.key, "read", err))
		case <-m.stale.C:
			m.primaryFailed(ctx, models.NewFeedError(m.key, "stale",
				fmt.Errorf("no update within %s", m.cfg.StaleTimeout)))
		case <-m.poll.C:
			m.pollFallback(ctx)
			m.poll.Reset(m.cfg.PollInterval)
		case s := <-m.reconnected:
			m.onReconnected(ctx, s)
		case <-m.reconcile.C:
			m.primaryFailed(ctx, models.NewFeedError(m.key, "reconcile",
				fmt.Errorf("tail not confirmed within %s", m.cfg.ReconcileTimeout)))
		}
	}
}

// open connects and subscribes within op_timeout.
func (m *Manager) open(ctx context.Context, s repository.MarketStream) error {
	opCtx, cancel := context.WithTimeout(ctx, m.cfg.OpTimeout)
	defer cancel()
	if err := s.Connect(opCtx); err != nil {
		_ = s.Close()
		return fmt.Errorf("connect: %w", err)
	}
	if err := s.Subscribe(opCtx); err != nil {
		_ = s.Close()
		return fmt.Errorf("subscribe: %w", err)
	}
	return nil
}

func (m *Manager) attach(ctx context.Context, s repository.MarketStream) {
	rctx, cancel := context.WithCancel(ctx)
	candles, errs := s.Read(rctx)
	m.sess = &session{stream: s, cancel: cancel, candles: candles, errs: errs}
	m.stale.Reset(m.cfg.StaleTimeout)
}

func (m *Manager) closeSession() {
	if m.sess == nil {
		return
	}
	m.sess.cancel()
	_ = m.sess.stream.Close()
	m.sess = nil
}

func (m *Manager) shutdown() {
	if m.stopReconnect != nil {
		m.stopReconnect()
	}
	m.closeSession()
	m.stale.Stop()
	m.poll.Stop()
	m.reconcile.Stop()
}

// primaryFailed drops the primary connection and switches to the fallback.
func (m *Manager) primaryFailed(ctx context.Context, err *models.FeedError) {
	m.closeSession()
	m.stale.Stop()
	m.reconcile.Stop()
	m.inProgress = optional.None[models.Candle]()
	m.pending.reset()
	m.metrics.RecordError("feed_" + err.Op)

	m.setMode(models.FeedFallback, err)
	m.poll.Reset(0)
	m.startReconnect(ctx)
}

func (m *Manager) onReconnected(ctx context.Context, s repository.MarketStream) {
	m.stopReconnect()
	m.stopReconnect = nil
	m.reconnected = nil

	m.attach(ctx, s)
	m.pending.reset()
	m.reconcile.Reset(m.cfg.ReconcileTimeout)
	m.markUp()
	m.setMode(models.FeedReconciling, nil)
}

// onPrimary handles one update from the primary feed. In-progress updates
// replace each other; a newer open_time promotes the previous one.
func (m *Manager) onPrimary(ctx context.Context, c models.Candle) {
	c.Source = models.SourcePrimary
	hasPrev := m.inProgress.IsSome()
	prev := m.inProgress.Unwrap()

	if !c.Final {
		if hasPrev {
			if c.OpenTime.Before(prev.OpenTime) {
				return
			}
			if c.OpenTime.After(prev.OpenTime) {
				m.onFinal(ctx, prev)
			}
		}
		m.inProgress = optional.Some(c)
		return
	}

	if hasPrev {
		if prev.OpenTime.Before(c.OpenTime) {
			m.onFinal(ctx, prev)
		}
		if !prev.OpenTime.After(c.OpenTime) {
			m.inProgress = optional.None[models.Candle]()
		}
	}
	m.onFinal(ctx, c)
}

func (m *Manager) onFinal(ctx context.Context, c models.Candle) {
	c = c.Normalize()
	c.Final = true
	if err := c.Validate(); err != nil {
		m.metrics.RecordError("invalid_candle")
		m.log.Warn("dropping invalid candle", logger.Error(err))
		return
	}

	switch m.mode {
	case models.FeedPrimary:
		if c.OpenTime.After(m.last) {
			m.emit(ctx, c)
		}
	case models.FeedReconciling:
		v := reconcile(c, m.last, m.tail, m.cfg.Tolerance)
		switch v {
		case verdictSuperseded:
			m.pending.discardThrough(c.OpenTime)
			if m.emit(ctx, c) {
				m.confirmPrimary(v)
			}
		case verdictConfirmed:
			m.confirmPrimary(v)
		case verdictContradicted:
			m.mu.Lock()
			m.status.Contradictions++
			n := m.status.Contradictions
			m.mu.Unlock()
			m.metrics.RecordError("reconcile_contradiction")
			m.log.Warn("primary contradicts fallback candle",
				logger.Time("open_time", c.OpenTime),
				logger.Float64("close", c.Close),
				logger.Int("contradictions", n))
		}
	}
}

func (m *Manager) confirmPrimary(v verdict) {
	m.reconcile.Stop()
	m.poll.Stop()
	m.log.Debug("fallback tail reconciled",
		logger.String("verdict", v.String()), logger.Int("pending_discarded", m.pending.len()))
	m.pending.reset()
	m.tail.reset()
	m.setMode(models.FeedPrimary, nil)
}

// pollFallback fetches candles newer than the last emitted one. In FALLBACK
// they are emitted; while reconciling they are only held.
func (m *Manager) pollFallback(ctx context.Context) {
	if m.fallback == nil || m.mode == models.FeedPrimary {
		return
	}
	now := m.now()
	d := m.key.Timeframe.Duration()
	since := m.last
	if since.IsZero() {
		since = util.AlignTo(now, d).Add(-time.Duration(m.cfg.PollLimit) * d)
	}

	opCtx, cancel := context.WithTimeout(ctx, m.cfg.OpTimeout)
	defer cancel()
	start := time.Now()
	res, err := m.breaker.Execute(func() (any, error) {
		return m.fallback.FetchSince(opCtx, m.key, since, m.cfg.PollLimit)
	})
	m.metrics.RecordLatency("fallback_fetch", time.Since(start).Seconds())
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		m.metrics.RecordError("fallback_fetch")
		m.log.Debug("fallback fetch failed", logger.String("source", m.fallback.Name()), logger.Error(err))
		return
	}

	candles, _ := res.([]models.Candle)
	sort.Slice(candles, func(i, j int) bool { return candles[i].OpenTime.Before(candles[j].OpenTime) })
	for _, c := range candles {
		if !c.Final || !util.BarClosed(c.OpenTime, d, now) || !c.OpenTime.After(m.last) {
			continue
		}
		c.Symbol, c.Timeframe, c.Source = m.key.Symbol, m.key.Timeframe, models.SourceFallback
		c = c.Normalize()
		if err := c.Validate(); err != nil {
			m.metrics.RecordError("invalid_candle")
			continue
		}
		switch m.mode {
		case models.FeedFallback:
			if !m.emit(ctx, c) {
				return
			}
			m.tail.add(c)
		case models.FeedReconciling:
			m.pending.add(c)
		}
	}
}

func (m *Manager) emit(ctx context.Context, c models.Candle) bool {
	select {
	case m.out <- c:
	case <-ctx.Done():
		return false
	}
	m.last = c.OpenTime
	m.mu.Lock()
	m.status.LastOpenTime = c.OpenTime
	m.status.Emitted++
	m.mu.Unlock()
	m.metrics.RecordCandle(c.Symbol, c.Timeframe, c.Source)
	m.metrics.RecordLastPrice(c.Symbol, c.Close)
	return true
}

func (m *Manager) setMode(to models.FeedMode, cause error) {
	from := m.mode
	if from == to {
		return
	}
	m.mode = to
	m.mu.Lock()
	m.status.Mode = to
	down := m.status.Down
	m.mu.Unlock()

	m.metrics.RecordFeedMode(m.key, to, down)
	fields := []logger.Field{logger.String("from", string(from)), logger.String("to", string(to))}
	if cause != nil {
		fields = append(fields, logger.Error(cause))
	}
	m.log.Info("feed mode changed", fields...)
	m.notify(models.FeedEvent{Stream: m.key, Kind: models.FeedEventModeChange, From: from, To: to, At: m.now(), Err: cause})
}

func (m *Manager) startReconnect(ctx context.Context) {
	if m.stopReconnect != nil {
		m.stopReconnect()
	}
	rctx, cancel := context.WithCancel(ctx)
	ch := make(chan repository.MarketStream, 1)
	m.stopReconnect = cancel
	m.reconnected = ch
	go m.reconnectLoop(rctx, ch)
}

// reconnectLoop retries the primary with exponential backoff. After
// max_attempts failures FEED_DOWN is reported and retries pause for
// down_cooldown before a fresh attempt window.
func (m *Manager) reconnectLoop(ctx context.Context, out chan<- repository.MarketStream) {
	attempt := 0
	for {
		if !sleep(ctx, m.backoff.Delay(attempt)) {
			return
		}
		s := m.dial(m.key)
		err := m.open(ctx, s)
		if err == nil {
			select {
			case out <- s:
			case <-ctx.Done():
				_ = s.Close()
			}
			return
		}
		if ctx.Err() != nil {
			return
		}

		attempt++
		m.mu.Lock()
		m.status.Attempts++
		m.mu.Unlock()
		m.log.Debug("primary reconnect failed", logger.Int("attempt", attempt), logger.Error(err))

		if attempt >= m.cfg.Backoff.MaxAttempts {
			m.markDown(models.NewFeedError(m.key, "down", err))
			if !sleep(ctx, m.cfg.DownCooldown) {
				return
			}
			attempt = 0
		}
	}
}

func (m *Manager) markDown(err *models.FeedError) {
	m.mu.Lock()
	if m.status.Down {
		m.mu.Unlock()
		return
	}
	m.status.Down = true
	mode := m.status.Mode
	attempts := m.status.Attempts
	m.mu.Unlock()

	m.metrics.RecordFeedMode(m.key, mode, true)
	m.log.Error("primary feed down", logger.Int("attempts", attempts), logger.Error(err))
	m.notify(models.FeedEvent{Stream: m.key, Kind: models.FeedEventDown, From: mode, To: mode, At: m.now(), Err: err})
}

func (m *Manager) markUp() {
	m.mu.Lock()
	wasDown := m.status.Down
	m.status.Down = false
	m.status.Attempts = 0
	mode := m.status.Mode
	m.mu.Unlock()

	if !wasDown {
		return
	}
	m.metrics.RecordFeedMode(m.key, mode, false)
	m.log.Info("primary feed up")
	m.notify(models.FeedEvent{Stream: m.key, Kind: models.FeedEventUp, From: mode, To: mode, At: m.now()})
}

func (m *Manager) notify(ev models.FeedEvent) {
	if m.onEvent != nil {
		m.onEvent(ev)
	}
}

func idleTimer() *time.Timer {
	t := time.NewTimer(time.Hour)
	t.Stop()
	return t
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
