package binance

import (
	"context"
	"fmt"
	"time"

	"FxPulse/internal/domain/models"
	"FxPulse/pkg/util"

	gobinance "github.com/adshao/go-binance/v2"
)

type Option func(*KlineSource)

// WithBaseURL points the REST client at another host (testnet, test server).
func WithBaseURL(u string) Option {
	return func(k *KlineSource) {
		if u != "" {
			k.client.BaseURL = u
		}
	}
}

// WithSymbolMap maps stream symbols onto exchange symbols (EURUSD -> EURUSDT).
func WithSymbolMap(m map[string]string) Option {
	return func(k *KlineSource) {
		for from, to := range m {
			k.symbols[from] = to
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(k *KlineSource) { k.now = now }
}

// KlineSource is a pull-based FallbackSource over Binance klines.
type KlineSource struct {
	client  *gobinance.Client
	symbols map[string]string
	now     func() time.Time
}

func New(apiKey, apiSecret string, opts ...Option) *KlineSource {
	k := &KlineSource{
		client:  gobinance.NewClient(apiKey, apiSecret),
		symbols: make(map[string]string),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

func (k *KlineSource) Name() string { return "binance" }

func (k *KlineSource) exchangeSymbol(s string) string {
	if m, ok := k.symbols[s]; ok {
		return m
	}
	return s
}

// FetchSince returns klines opening strictly after since, oldest first.
// Final is set for klines whose bar has elapsed.
func (k *KlineSource) FetchSince(ctx context.Context, key models.StreamKey, since time.Time, limit int) ([]models.Candle, error) {
	tf := key.Timeframe.Duration()
	if tf <= 0 {
		return nil, fmt.Errorf("binance: unsupported timeframe %q", key.Timeframe)
	}
	svc := k.client.NewKlinesService().
		Symbol(k.exchangeSymbol(key.Symbol)).
		Interval(string(key.Timeframe)).
		Limit(limit)
	if !since.IsZero() {
		svc = svc.StartTime(util.ToUnixMillis(since) + 1)
	}
	klines, err := svc.Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance klines %s: %w", key, err)
	}

	now := k.now()
	out := make([]models.Candle, 0, len(klines))
	for _, kl := range klines {
		c, err := toCandle(key, kl)
		if err != nil {
			return nil, err
		}
		if !since.IsZero() && !c.OpenTime.After(since) {
			continue
		}
		c.Final = util.BarClosed(c.OpenTime, tf, now)
		out = append(out, c)
	}
	return out, nil
}

func toCandle(key models.StreamKey, kl *gobinance.Kline) (models.Candle, error) {
	c := models.Candle{
		Symbol:    key.Symbol,
		Timeframe: key.Timeframe,
		OpenTime:  util.FromUnixMillis(kl.OpenTime),
		Source:    models.SourceFallback,
	}
	fields := []struct {
		raw string
		dst *float64
	}{
		{kl.Open, &c.Open}, {kl.High, &c.High}, {kl.Low, &c.Low}, {kl.Close, &c.Close}, {kl.Volume, &c.Volume},
	}
	for _, f := range fields {
		v, err := util.ParseFloat(f.raw)
		if err != nil {
			return models.Candle{}, fmt.Errorf("binance kline %s at %d: %w", key, kl.OpenTime, err)
		}
		*f.dst = v
	}
	return c, nil
}
