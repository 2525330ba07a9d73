package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	domrepo "FxPulse/internal/domain/repository"
	"FxPulse/internal/services/dispatch"
	"FxPulse/internal/usecase"
	"FxPulse/pkg/config"
	xhttp "FxPulse/pkg/http"
	pkgkafka "FxPulse/pkg/kafka"
	"FxPulse/pkg/logger"

	"golang.org/x/sync/errgroup"
)

// Closers are infrastructure handles released last, in order.
type Closers []io.Closer

// App owns the process lifecycle: pipeline, outcome consumer, alert worker
// and HTTP server.
type App struct {
	cfg        *config.Config
	log        *logger.Logger
	supervisor *usecase.Supervisor
	worker     *dispatch.Worker
	consumer   *pkgkafka.Consumer
	outcomes   *usecase.OutcomeHandler
	httpServer *xhttp.Server
	journal    domrepo.SignalJournal
	closers    Closers
}

func New(
	cfg *config.Config,
	l *logger.Logger,
	supervisor *usecase.Supervisor,
	worker *dispatch.Worker,
	consumer *pkgkafka.Consumer,
	outcomes *usecase.OutcomeHandler,
	httpServer *xhttp.Server,
	journal domrepo.SignalJournal,
	closers Closers,
) *App {
	return &App{
		cfg:        cfg,
		log:        l.Component("app"),
		supervisor: supervisor,
		worker:     worker,
		consumer:   consumer,
		outcomes:   outcomes,
		httpServer: httpServer,
		journal:    journal,
		closers:    closers,
	}
}

// Run blocks until SIGINT/SIGTERM.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext starts every component and shuts them down in reverse order
// once ctx is done or the HTTP listener fails.
func (a *App) RunContext(ctx context.Context) error {
	if a.journal != nil {
		initCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err := a.journal.Init(initCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("init signal journal: %w", err)
		}
	}

	pipeCtx, cancelPipe := context.WithCancel(context.Background())
	defer cancelPipe()
	g, gctx := errgroup.WithContext(pipeCtx)

	g.Go(func() error { return a.worker.Run(gctx) })
	g.Go(func() error { return a.supervisor.Run(gctx) })
	a.log.Info("pipeline started", logger.Strings("streams", a.cfg.Streams), logger.String("transport", a.cfg.Dispatch.Transport))

	if a.consumer != nil {
		a.consumer.RegisterHandler(a.outcomes)
		if err := a.consumer.Start(gctx); err != nil {
			cancelPipe()
			_ = g.Wait()
			return fmt.Errorf("start outcome consumer: %w", err)
		}
		a.log.Info("outcome consumer started", logger.String("topic", a.outcomes.Topic()))
	}

	if err := a.httpServer.Start(); err != nil {
		cancelPipe()
		_ = g.Wait()
		return fmt.Errorf("start http server: %w", err)
	}

	var runErr error
	select {
	case <-ctx.Done():
		a.log.Info("shutdown signal received")
	case runErr = <-a.httpServer.Err():
	case <-gctx.Done():
		runErr = errors.New("pipeline stopped unexpectedly")
	}

	return errors.Join(runErr, a.shutdown(cancelPipe, g))
}

func (a *App) shutdown(cancelPipe context.CancelFunc, g *errgroup.Group) error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.httpServer.Stop(ctx); err != nil {
		errs = append(errs, err)
	}
	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop consumer: %w", err))
		}
	}
	cancelPipe()
	if err := g.Wait(); err != nil {
		errs = append(errs, fmt.Errorf("pipeline: %w", err))
	}
	for _, c := range a.closers {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil {
			a.log.Warn("close resource", logger.Error(err))
		}
	}
	a.log.Info("shutdown complete")
	return errors.Join(errs...)
}
