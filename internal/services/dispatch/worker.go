package dispatch

import (
	"context"
	"time"

	"FxPulse/internal/domain/repository"
	"FxPulse/pkg/logger"
	"FxPulse/pkg/metrics"
)

type WorkerOption func(*Worker)

func WithWorkerLogger(l *logger.Logger) WorkerOption {
	return func(w *Worker) { w.log = l.Component("dispatch_worker") }
}

func WithWorkerMetrics(m repository.Metrics) WorkerOption {
	return func(w *Worker) { w.metrics = m }
}

// WithJournal records every delivered alert.
func WithJournal(j repository.SignalJournal) WorkerOption {
	return func(w *Worker) { w.journal = j }
}

func WithSendTimeout(d time.Duration) WorkerOption {
	return func(w *Worker) {
		if d > 0 {
			w.sendTimeout = d
		}
	}
}

// Worker drains a Queue into an AlertTransport. Each alert is offered once.
type Worker struct {
	queue       *Queue
	transport   repository.AlertTransport
	journal     repository.SignalJournal
	sendTimeout time.Duration
	log         *logger.Logger
	metrics     repository.Metrics
}

func NewWorker(q *Queue, t repository.AlertTransport, opts ...WorkerOption) *Worker {
	w := &Worker{
		queue:       q,
		transport:   t,
		sendTimeout: 5 * time.Second,
		log:         logger.Nop(),
		metrics:     metrics.Nop{},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run delivers until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	for {
		w.drain(ctx)
		select {
		case <-ctx.Done():
			return nil
		case <-w.queue.Ready():
		}
	}
}

func (w *Worker) drain(ctx context.Context) {
	for ctx.Err() == nil {
		a, ok := w.queue.Pop()
		if !ok {
			return
		}
		start := time.Now()
		sendCtx, cancel := context.WithTimeout(ctx, w.sendTimeout)
		err := w.transport.Publish(sendCtx, a)
		cancel()
		if err != nil {
			w.metrics.RecordError("dispatch_publish")
			w.log.Error("alert delivery failed",
				logger.String("alert_id", a.ID.String()),
				logger.String("symbol", a.Signal.Symbol),
				logger.Error(err),
			)
			continue
		}
		w.metrics.RecordLatency("dispatch_publish", time.Since(start).Seconds())

		if w.journal == nil {
			continue
		}
		jctx, cancel := context.WithTimeout(ctx, w.sendTimeout)
		if err := w.journal.Record(jctx, a); err != nil {
			w.metrics.RecordError("journal_record")
			w.log.Warn("journal record failed", logger.String("alert_id", a.ID.String()), logger.Error(err))
		}
		cancel()
	}
}
