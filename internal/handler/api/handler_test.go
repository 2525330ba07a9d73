package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FxPulse/internal/domain/models"
	"FxPulse/internal/repository"
	"FxPulse/internal/services/sizer"
	"FxPulse/pkg/cache"
	"FxPulse/pkg/config"
	"FxPulse/pkg/logger"
)

var now = time.Date(2024, 5, 6, 12, 0, 0, 0, time.UTC)

type staticStatuses []models.FeedStatus

func (s staticStatuses) Statuses() []models.FeedStatus { return s }

type bookApplier struct{ book *sizer.RiskBook }

func (b bookApplier) Apply(o models.TradeOutcome) models.RiskState { return b.book.ApplyOutcome(o) }

type fakeJournal struct {
	rows   []models.RiskAdjustedSignal
	err    error
	symbol string
	since  time.Time
	limit  int
}

func (j *fakeJournal) Init(context.Context) error { return nil }
func (j *fakeJournal) Record(context.Context, *models.Alert) error { return nil }
func (j *fakeJournal) Close() error { return nil }
func (j *fakeJournal) Recent(_ context.Context, symbol string, since time.Time, limit int) ([]models.RiskAdjustedSignal, error) {
	j.symbol, j.since, j.limit = symbol, since, limit
	return j.rows, j.err
}

type envelope struct {
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
}

type fixture struct {
	e       *echo.Echo
	book    *sizer.RiskBook
	store   *repository.CacheCorrelationStore
	journal *fakeJournal
}

func newFixture(t *testing.T, statuses staticStatuses) *fixture {
	t.Helper()
	cfg, err := config.Default()
	require.NoError(t, err)

	mc := cache.NewMemoryCache()
	t.Cleanup(func() { _ = mc.Close() })

	f := &fixture{
		e:       echo.New(),
		book:    sizer.NewRiskBook(cfg.Sizer),
		store:   repository.NewCacheCorrelationStore(mc),
		journal: &fakeJournal{},
	}
	h := NewHandler(logger.Nop(), statuses, f.book, bookApplier{f.book}, f.store,
		WithJournal(f.journal), WithClock(func() time.Time { return now }))
	h.RegisterRoutes(f.e)
	return f
}

func (f *fixture) do(t *testing.T, method, target, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func TestHealthReportsDegradedStreams(t *testing.T) {
	f := newFixture(t, staticStatuses{
		{Stream: models.StreamKey{Symbol: "EURUSD", Timeframe: models.TF1m}, Mode: models.FeedPrimary},
		{Stream: models.StreamKey{Symbol: "GBPUSD", Timeframe: models.TF1m}, Mode: models.FeedFallback, Down: true},
	})
	rec, env := f.do(t, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, http.StatusOK, env.Status)

	var res healthResponse
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, "degraded", res.Status)
	assert.Equal(t, 2, res.Streams)
	assert.Equal(t, 1, res.Down)
}

func TestStreamsFiltersBySymbol(t *testing.T) {
	f := newFixture(t, staticStatuses{
		{Stream: models.StreamKey{Symbol: "EURUSD", Timeframe: models.TF1m}},
		{Stream: models.StreamKey{Symbol: "EURUSD", Timeframe: models.TF5m}},
		{Stream: models.StreamKey{Symbol: "GBPUSD", Timeframe: models.TF1m}},
	})

	rec, env := f.do(t, http.MethodGet, "/api/v1/streams?symbol=eurusd", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got []models.FeedStatus
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Len(t, got, 2)

	rec, _ = f.do(t, http.MethodGet, "/api/v1/streams?limit=0", "")
	assert.Equal(t, http.StatusOK, rec.Code, "zero limit falls back to the default")

	rec, _ = f.do(t, http.MethodGet, "/api/v1/streams?limit=1000", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOutcomeThenRisk(t *testing.T) {
	f := newFixture(t, nil)

	body := `{"symbol":"eurusd","win":false,"pnl":-10,"drawdown_delta":0.02,"closed_at":"2024-05-06T11:00:00Z"}`
	for i := 0; i < 3; i++ {
		rec, _ := f.do(t, http.MethodPost, "/api/v1/outcomes", body)
		require.Equal(t, http.StatusAccepted, rec.Code)
	}

	rec, env := f.do(t, http.MethodGet, "/api/v1/risk/EURUSD", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var st models.RiskState
	require.NoError(t, json.Unmarshal(env.Data, &st))
	assert.Equal(t, 3, st.ConsecutiveLosses)
	assert.True(t, st.RecoveryMode)
	assert.InDelta(t, 0.06, st.CurrentDrawdown, 1e-9)
}

func TestOutcomeValidation(t *testing.T) {
	f := newFixture(t, nil)

	rec, _ := f.do(t, http.MethodPost, "/api/v1/outcomes", `{"win":true}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = f.do(t, http.MethodPost, "/api/v1/outcomes", `{"symbol":"EURUSD","closed_at":"yesterday"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = f.do(t, http.MethodPost, "/api/v1/outcomes", `{"symbol":"EURUSD","drawdown_delta":3}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCorrelationsRoundTrip(t *testing.T) {
	f := newFixture(t, nil)

	rec, _ := f.do(t, http.MethodPut, "/api/v1/correlations", `{"DXY":"SHORT","GBPUSD":"LONG"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	dirs, err := f.store.Directions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]models.Direction{"DXY": models.DirectionShort, "GBPUSD": models.DirectionLong}, dirs)

	rec, _ = f.do(t, http.MethodPut, "/api/v1/correlations", `{"DXY":"UP"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSignalsQueriesJournal(t *testing.T) {
	f := newFixture(t, nil)
	f.journal.rows = []models.RiskAdjustedSignal{{
		SignalCandidate: models.SignalCandidate{Symbol: "EURUSD", Direction: models.DirectionLong, Confidence: 0.8},
		PositionSize:    1.2,
	}}

	rec, env := f.do(t, http.MethodGet, "/api/v1/signals/eurusd?limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got []models.RiskAdjustedSignal
	require.NoError(t, json.Unmarshal(env.Data, &got))
	require.Len(t, got, 1)
	assert.Equal(t, models.DirectionLong, got[0].Direction)

	assert.Equal(t, "EURUSD", f.journal.symbol)
	assert.Equal(t, 5, f.journal.limit)
	assert.Equal(t, now.Add(-24*time.Hour), f.journal.since)

	f.journal.err = errors.New("clickhouse down")
	rec, _ = f.do(t, http.MethodGet, "/api/v1/signals/EURUSD", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
