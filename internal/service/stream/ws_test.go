package stream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"FxPulse/internal/domain/models"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var key = models.StreamKey{Symbol: "EURUSD", Timeframe: models.TF1m}

// feedServer replies to a subscribe frame with the given raw frames.
func feedServer(t *testing.T, frames []string, gotSub chan<- subscribeFrame) *httptest.Server {
	t.Helper()
	up := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		var sub subscribeFrame
		if err := conn.ReadJSON(&sub); err != nil {
			return
		}
		if gotSub != nil {
			gotSub <- sub
		}
		for _, f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
		// keep the connection open until the client goes away
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
}

func wsURL(srv *httptest.Server) string { return "ws" + strings.TrimPrefix(srv.URL, "http") }

func TestReadDecodesCandles(t *testing.T) {
	frames := []string{
		`{"type":"ack"}`,
		`{"type":"candle","symbol":"GBPUSD","timeframe":"1m","t":1704067200000,"o":1.27,"h":1.28,"l":1.26,"c":1.27,"v":10,"final":true}`,
		`{"type":"candle","symbol":"EURUSD","timeframe":"1m","t":1704067200000,"o":1.1,"h":1.2,"l":1.0,"c":1.15,"v":42,"final":true}`,
	}
	subs := make(chan subscribeFrame, 1)
	srv := feedServer(t, frames, subs)
	defer srv.Close()

	s := New(key, wsURL(srv), "secret")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Connect(ctx))
	require.True(t, s.IsConnected())
	require.NoError(t, s.Subscribe(ctx))

	sub := <-subs
	assert.Equal(t, subscribeFrame{Type: "subscribe", Symbol: "EURUSD", Timeframe: "1m"}, sub)

	candles, _ := s.Read(ctx)
	select {
	case c := <-candles:
		assert.Equal(t, "EURUSD", c.Symbol)
		assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), c.OpenTime)
		assert.Equal(t, 1.15, c.Close)
		assert.True(t, c.Final)
		assert.Equal(t, models.SourcePrimary, c.Source)
	case <-ctx.Done():
		t.Fatal("no candle received")
	}
	require.NoError(t, s.Close())
	assert.False(t, s.IsConnected())
}

func TestReadFailsAfterConsecutiveInvalidFrames(t *testing.T) {
	frames := []string{"not json", `{"type":"candle","symbol":"EURUSD","t":1704067200000,"o":-1,"h":1,"l":1,"c":1,"v":1}`, "{"}
	srv := feedServer(t, frames, nil)
	defer srv.Close()

	s := New(key, wsURL(srv), "", WithMaxInvalid(3))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Connect(ctx))
	require.NoError(t, s.Subscribe(ctx))
	defer s.Close()

	_, errs := s.Read(ctx)
	select {
	case err := <-errs:
		assert.ErrorIs(t, err, ErrTooManyInvalid)
	case <-ctx.Done():
		t.Fatal("expected invalid-frame error")
	}
}

func TestSubscribeRequiresConnection(t *testing.T) {
	s := New(key, "ws://127.0.0.1:0", "")
	assert.Error(t, s.Subscribe(context.Background()))
}
