package binance

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"FxPulse/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchSince(t *testing.T) {
	var gotQuery map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{
			"path":      r.URL.Path,
			"symbol":    r.URL.Query().Get("symbol"),
			"interval":  r.URL.Query().Get("interval"),
			"startTime": r.URL.Query().Get("startTime"),
			"limit":     r.URL.Query().Get("limit"),
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			[1704067260000,"1.1000","1.1010","1.0990","1.1005","12.5",1704067319999,"0",3,"0","0","0"],
			[1704067320000,"1.1005","1.1020","1.1000","1.1015","8",1704067379999,"0",2,"0","0","0"]
		]`))
	}))
	defer srv.Close()

	now := time.Date(2024, 1, 1, 0, 2, 30, 0, time.UTC)
	src := New("", "",
		WithBaseURL(srv.URL),
		WithSymbolMap(map[string]string{"EURUSD": "EURUSDT"}),
		WithClock(func() time.Time { return now }),
	)
	assert.Equal(t, "binance", src.Name())

	key := models.StreamKey{Symbol: "EURUSD", Timeframe: models.TF1m}
	since := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	got, err := src.FetchSince(context.Background(), key, since, 100)
	require.NoError(t, err)

	assert.Equal(t, "/api/v3/klines", gotQuery["path"])
	assert.Equal(t, "EURUSDT", gotQuery["symbol"])
	assert.Equal(t, "1m", gotQuery["interval"])
	assert.Equal(t, "1704067200001", gotQuery["startTime"])
	assert.Equal(t, "100", gotQuery["limit"])

	require.Len(t, got, 2)
	assert.Equal(t, "EURUSD", got[0].Symbol)
	assert.Equal(t, since.Add(time.Minute), got[0].OpenTime)
	assert.Equal(t, 1.1005, got[0].Close)
	assert.Equal(t, 12.5, got[0].Volume)
	assert.Equal(t, models.SourceFallback, got[0].Source)
	assert.True(t, got[0].Final)
	// 00:02 bar is still open at 00:02:30
	assert.False(t, got[1].Final)
}

func TestFetchSinceRejectsUnknownTimeframe(t *testing.T) {
	src := New("", "")
	_, err := src.FetchSince(context.Background(), models.StreamKey{Symbol: "EURUSD", Timeframe: "7m"}, time.Time{}, 10)
	assert.Error(t, err)
}
