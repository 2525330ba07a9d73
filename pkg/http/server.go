package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"FxPulse/pkg/http/middleware"
	"FxPulse/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler registers its routes on the server.
type Handler interface {
	RegisterRoutes(e *echo.Echo)
}

type ServerOption func(*ServerConfig)

type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	CORS            bool
	MetricsPath     string
	Logger          *logger.Logger
}

// Server wraps an Echo instance with the service middleware chain.
type Server struct {
	echo   *echo.Echo
	config *ServerConfig
	log    *logger.Logger
	errCh  chan error
}

func NewServer(handlers []Handler, opts ...ServerOption) *Server {
	cfg := &ServerConfig{
		Host:            "0.0.0.0",
		Port:            8080,
		ReadTimeout:     10 * time.Second,
		WriteTimeout:    10 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		CORS:            true,
		Logger:          logger.Nop(),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	l := cfg.Logger.Component("http")

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadTimeout = cfg.ReadTimeout
	e.Server.WriteTimeout = cfg.WriteTimeout

	e.Use(middleware.Recover(l))
	e.Use(middleware.Metrics())
	e.Use(middleware.RequestLogging(l))
	if cfg.CORS {
		e.Use(middleware.CORS(middleware.CORSConfig{
			AllowOrigins: []string{"*"},
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
		}))
	}

	for _, h := range handlers {
		if h != nil {
			h.RegisterRoutes(e)
		}
	}
	if cfg.MetricsPath != "" {
		e.GET(cfg.MetricsPath, echo.WrapHandler(promhttp.Handler()))
	}

	return &Server{echo: e, config: cfg, log: l, errCh: make(chan error, 1)}
}

// Start listens in the background. A listen failure is reported on Err.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	go func() {
		s.log.Info("http server listening", logger.String("addr", addr))
		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("http server failed", logger.Error(err))
			s.errCh <- err
		}
	}()
	return nil
}

// Err yields at most one fatal listen error.
func (s *Server) Err() <-chan error { return s.errCh }

func (s *Server) Stop(ctx context.Context) error {
	if s.config.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.ShutdownTimeout)
		defer cancel()
	}
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	s.log.Info("http server stopped")
	return nil
}

func (s *Server) Echo() *echo.Echo { return s.echo }

func WithHost(host string) ServerOption {
	return func(c *ServerConfig) { c.Host = host }
}

func WithPort(port int) ServerOption {
	return func(c *ServerConfig) { c.Port = port }
}

func WithTimeouts(read, write, shutdown time.Duration) ServerOption {
	return func(c *ServerConfig) {
		c.ReadTimeout = read
		c.WriteTimeout = write
		c.ShutdownTimeout = shutdown
	}
}

func WithCORS(enabled bool) ServerOption {
	return func(c *ServerConfig) { c.CORS = enabled }
}

// WithMetricsPath exposes the Prometheus registry; empty disables it.
func WithMetricsPath(path string) ServerOption {
	return func(c *ServerConfig) { c.MetricsPath = path }
}

func WithLogger(l *logger.Logger) ServerOption {
	return func(c *ServerConfig) { c.Logger = l }
}
