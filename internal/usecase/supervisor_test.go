package usecase

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FxPulse/internal/domain/models"
	domrepo "FxPulse/internal/domain/repository"
	"FxPulse/internal/services/sizer"
)

type replayStream struct {
	candles chan models.Candle
	errs    chan error
	closed  atomic.Bool
}

func newReplayStream(cs []models.Candle) *replayStream {
	s := &replayStream{candles: make(chan models.Candle, len(cs)), errs: make(chan error)}
	for _, c := range cs {
		s.candles <- c
	}
	return s
}

func (s *replayStream) Connect(context.Context) error   { return nil }
func (s *replayStream) Subscribe(context.Context) error { return nil }
func (s *replayStream) Read(context.Context) (<-chan models.Candle, <-chan error) {
	return s.candles, s.errs
}
func (s *replayStream) Close() error      { s.closed.Store(true); return nil }
func (s *replayStream) IsConnected() bool { return !s.closed.Load() }

type emptyFallback struct{}

func (emptyFallback) FetchSince(context.Context, models.StreamKey, time.Time, int) ([]models.Candle, error) {
	return nil, nil
}
func (emptyFallback) Name() string { return "empty" }

func TestSupervisorRunsAndStopsStreams(t *testing.T) {
	cfg := testConfig(t)
	cfg.Streams = []string{"EURUSD@1m", "GBPUSD@1m"}
	cfg.Feed.StaleTimeout = time.Hour

	dial := func(key models.StreamKey) domrepo.MarketStream {
		cs := ascending(40)
		for i := range cs {
			cs[i].Symbol = key.Symbol
		}
		return newReplayStream(cs)
	}
	sink := &recordingSink{}
	sup := NewSupervisor(cfg, dial, emptyFallback{}, sizer.NewRiskBook(cfg.Sizer), sink)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sup.Run(ctx) }()

	require.Eventually(t, func() bool {
		st := sup.Statuses()
		if len(st) != 2 {
			return false
		}
		return st[0].Emitted == 40 && st[1].Emitted == 40
	}, 5*time.Second, 10*time.Millisecond)

	st := sup.Statuses()
	assert.Equal(t, "EURUSD", st[0].Stream.Symbol)
	assert.Equal(t, "GBPUSD", st[1].Stream.Symbol)
	assert.Equal(t, models.FeedPrimary, st[0].Mode)

	require.Eventually(t, func() bool { return sink.count() > 0 }, 5*time.Second, 10*time.Millisecond)

	assert.Error(t, sup.StartStream(models.StreamKey{Symbol: "EURUSD", Timeframe: models.TF1m}))
	assert.True(t, sup.StopStream(models.StreamKey{Symbol: "GBPUSD", Timeframe: models.TF1m}))
	assert.False(t, sup.StopStream(models.StreamKey{Symbol: "GBPUSD", Timeframe: models.TF1m}))
	assert.Len(t, sup.Statuses(), 1)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("supervisor did not stop")
	}
}

func TestSupervisorRejectsStartWhenIdle(t *testing.T) {
	cfg := testConfig(t)
	sup := NewSupervisor(cfg, nil, emptyFallback{}, sizer.NewRiskBook(cfg.Sizer), &recordingSink{})
	assert.Error(t, sup.StartStream(models.StreamKey{Symbol: "EURUSD", Timeframe: models.TF1m}))
}
