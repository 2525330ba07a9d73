package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"FxPulse/internal/domain/models"
	domrepo "FxPulse/internal/domain/repository"
	"FxPulse/internal/services/ingestion"
	"FxPulse/pkg/config"
	"FxPulse/pkg/logger"
	"FxPulse/pkg/metrics"

	"golang.org/x/sync/errgroup"
)

type SupervisorOption func(*Supervisor)

func WithSupervisorLogger(l *logger.Logger) SupervisorOption {
	return func(s *Supervisor) { s.base = l }
}

func WithSupervisorMetrics(m domrepo.Metrics) SupervisorOption {
	return func(s *Supervisor) { s.metrics = m }
}

func WithCorrelationSource(src domrepo.CorrelationSource) SupervisorOption {
	return func(s *Supervisor) { s.corr = src }
}

// WithManagerOptions appends options to every ingestion manager, e.g. a test clock.
func WithManagerOptions(opts ...ingestion.Option) SupervisorOption {
	return func(s *Supervisor) { s.managerOpts = append(s.managerOpts, opts...) }
}

type streamHandle struct {
	manager   *ingestion.Manager
	evaluator *Evaluator
	cancel    context.CancelFunc
}

// Supervisor owns one ingestion manager and one evaluator per stream, joined
// by a bounded channel. A failing stream never cancels its siblings.
type Supervisor struct {
	cfg      *config.Config
	dial     domrepo.MarketStreamFactory
	fallback domrepo.FallbackSource
	book     RiskSnapshotter
	sink     SignalSink

	base        *logger.Logger
	log         *logger.Logger
	metrics     domrepo.Metrics
	corr        domrepo.CorrelationSource
	managerOpts []ingestion.Option

	mu      sync.Mutex
	group   *errgroup.Group
	gctx    context.Context
	streams map[models.StreamKey]*streamHandle
}

func NewSupervisor(cfg *config.Config, dial domrepo.MarketStreamFactory, fallback domrepo.FallbackSource, book RiskSnapshotter, sink SignalSink, opts ...SupervisorOption) *Supervisor {
	s := &Supervisor{
		cfg:      cfg,
		dial:     dial,
		fallback: fallback,
		book:     book,
		sink:     sink,
		base:     logger.Nop(),
		metrics:  metrics.Nop{},
		streams:  make(map[models.StreamKey]*streamHandle),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.base.Component("supervisor")
	return s
}

// Run starts every configured stream and blocks until ctx is done and all
// stream goroutines have returned.
func (s *Supervisor) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	s.mu.Lock()
	s.group, s.gctx = g, gctx
	s.mu.Unlock()

	g.Go(func() error {
		<-gctx.Done()
		return nil
	})
	for _, raw := range s.cfg.Streams {
		if err := s.StartStream(domrepo.ParseStream(raw)); err != nil {
			s.log.Error("stream not started", logger.String("stream", raw), logger.Error(err))
		}
	}
	s.log.Info("supervisor started", logger.Int("streams", len(s.cfg.Streams)))

	err := g.Wait()

	s.mu.Lock()
	s.group, s.gctx = nil, nil
	clear(s.streams)
	s.mu.Unlock()
	s.log.Info("supervisor stopped")
	return err
}

// StartStream adds a stream to a running supervisor.
func (s *Supervisor) StartStream(key models.StreamKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.group == nil {
		return fmt.Errorf("start %s: supervisor not running", key)
	}
	if _, ok := s.streams[key]; ok {
		return fmt.Errorf("start %s: already running", key)
	}
	if key.Timeframe.Duration() <= 0 {
		return fmt.Errorf("start %s: unknown timeframe", key)
	}

	ev, err := NewEvaluator(key, s.cfg, s.book, s.sink,
		WithEvaluatorLogger(s.base),
		WithEvaluatorMetrics(s.metrics),
		WithCorrelations(s.corr, s.cfg.Feed.OpTimeout),
	)
	if err != nil {
		return fmt.Errorf("start %s: %w", key, err)
	}
	mopts := append([]ingestion.Option{
		ingestion.WithLogger(s.base),
		ingestion.WithMetrics(s.metrics),
	}, s.managerOpts...)
	mgr := ingestion.NewManager(key, s.cfg.Feed, s.dial, s.fallback, mopts...)

	ctx, cancel := context.WithCancel(s.gctx)
	candles := make(chan models.Candle, s.cfg.Pipeline.QueueSize)
	s.streams[key] = &streamHandle{manager: mgr, evaluator: ev, cancel: cancel}

	s.group.Go(func() error {
		if err := mgr.Run(ctx, candles); err != nil {
			s.metrics.RecordError("ingestion")
			s.log.Error("ingestion stopped", logger.String("stream", key.String()), logger.Error(err))
		}
		return nil
	})
	s.group.Go(func() error {
		return ev.Run(ctx, candles)
	})
	s.log.Info("stream started", logger.String("stream", key.String()))
	return nil
}

// StopStream cancels one stream. It reports false when the stream is unknown.
func (s *Supervisor) StopStream(key models.StreamKey) bool {
	s.mu.Lock()
	h, ok := s.streams[key]
	delete(s.streams, key)
	s.mu.Unlock()
	if !ok {
		return false
	}
	h.cancel()
	s.log.Info("stream stopped", logger.String("stream", key.String()))
	return true
}

// Statuses returns the feed status of every running stream ordered by key.
func (s *Supervisor) Statuses() []models.FeedStatus {
	s.mu.Lock()
	out := make([]models.FeedStatus, 0, len(s.streams))
	for _, h := range s.streams {
		out = append(out, h.manager.Status())
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Stream.String() < out[j].Stream.String() })
	return out
}
