package api

import (
	"context"
	"strings"
	"time"

	"FxPulse/internal/domain/models"
	domrepo "FxPulse/internal/domain/repository"
	xhttp "FxPulse/pkg/http"
	"FxPulse/pkg/logger"
	"FxPulse/pkg/util"

	"github.com/labstack/echo/v4"
)

// StatusSource reports per-stream feed status.
type StatusSource interface {
	Statuses() []models.FeedStatus
}

// RiskReader exposes read-only RiskState copies.
type RiskReader interface {
	Snapshot(symbol string, at time.Time) models.RiskState
}

// OutcomeApplier folds a trade outcome into the risk book.
type OutcomeApplier interface {
	Apply(o models.TradeOutcome) models.RiskState
}

type Option func(*Handler)

// WithJournal enables GET /api/v1/signals/:symbol.
func WithJournal(j domrepo.SignalJournal) Option {
	return func(h *Handler) { h.journal = j }
}

func WithClock(now func() time.Time) Option {
	return func(h *Handler) { h.now = now }
}

// Handler serves the status, risk, outcome and correlation endpoints.
type Handler struct {
	log          *logger.Logger
	streams      StatusSource
	risk         RiskReader
	outcomes     OutcomeApplier
	correlations domrepo.CorrelationStore
	journal      domrepo.SignalJournal
	now          func() time.Time
}

func NewHandler(l *logger.Logger, streams StatusSource, risk RiskReader, outcomes OutcomeApplier, corr domrepo.CorrelationStore, opts ...Option) *Handler {
	h := &Handler{
		log:          l.Component("api"),
		streams:      streams,
		risk:         risk,
		outcomes:     outcomes,
		correlations: corr,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)

	g := e.Group("/api/v1")
	g.GET("/streams", h.Streams)
	g.GET("/risk/:symbol", h.Risk)
	g.POST("/outcomes", h.Outcome)
	g.PUT("/correlations", h.Correlations)
	g.GET("/signals/:symbol", h.Signals)
}

type healthResponse struct {
	Status  string `json:"status"`
	Streams int    `json:"streams"`
	Down    int    `json:"down"`
}

// Health stays 200 while any stream is down; one feed never takes the service out.
func (h *Handler) Health(c echo.Context) error {
	st := h.streams.Statuses()
	res := healthResponse{Status: "ok", Streams: len(st)}
	for _, s := range st {
		if s.Down {
			res.Down++
		}
	}
	if res.Down > 0 {
		res.Status = "degraded"
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *Handler) Streams(c echo.Context) error {
	req := &models.StreamsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	out := make([]models.FeedStatus, 0)
	for _, s := range h.streams.Statuses() {
		if req.Symbol != "" && !strings.EqualFold(s.Stream.Symbol, req.Symbol) {
			continue
		}
		out = append(out, s)
		if len(out) == req.Limit {
			break
		}
	}
	return xhttp.SuccessResponse(c, out)
}

func (h *Handler) Risk(c echo.Context) error {
	req := &models.RiskRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	return xhttp.SuccessResponse(c, h.risk.Snapshot(strings.ToUpper(req.Symbol), h.now()))
}

func (h *Handler) Outcome(c echo.Context) error {
	req := &models.OutcomeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	o := models.TradeOutcome{
		Symbol:        strings.ToUpper(req.Symbol),
		Win:           req.Win,
		PnL:           req.PnL,
		DrawdownDelta: req.DrawdownDelta,
	}
	if req.ClosedAt != "" {
		t, ok := util.ParseTime(req.ClosedAt)
		if !ok {
			return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("closed_at %q is not a valid time", req.ClosedAt))
		}
		o.ClosedAt = t
	}
	st := h.outcomes.Apply(o)
	h.log.Info("outcome accepted",
		logger.String("symbol", o.Symbol),
		logger.Bool("win", o.Win),
		logger.Bool("recovery_mode", st.RecoveryMode),
	)
	return xhttp.AcceptedResponse(c, st)
}

func (h *Handler) Correlations(c echo.Context) error {
	req := &models.CorrelationsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if err := h.correlations.SetDirections(c.Request().Context(), req.Directions); err != nil {
		h.log.Error("store correlations", logger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.UnavailableErrorf("correlation store unavailable").WithError(err))
	}
	return xhttp.SuccessResponse(c, req.Directions)
}

func (h *Handler) Signals(c echo.Context) error {
	if h.journal == nil {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("signal journal disabled"))
	}
	req := &models.SignalsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	since := util.ParseTimeDefault(req.Since, h.now().Add(-24*time.Hour))

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	rows, err := h.journal.Recent(ctx, strings.ToUpper(req.Symbol), since, req.Limit)
	if err != nil {
		h.log.Error("journal query", logger.String("symbol", req.Symbol), logger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.UnavailableErrorf("signal journal unavailable").WithError(err))
	}
	if rows == nil {
		rows = []models.RiskAdjustedSignal{}
	}
	return xhttp.SuccessResponse(c, rows)
}
