package repository

import (
	"context"
	"time"

	"FxPulse/internal/domain/models"
)

// MarketStream is the primary push feed for one (symbol, timeframe) stream.
type MarketStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan models.Candle, <-chan error)
	Close() error
	IsConnected() bool
}

// MarketStreamFactory builds a fresh primary stream per ingestion stream.
type MarketStreamFactory func(key models.StreamKey) MarketStream

// FallbackSource is the pull-based secondary feed.
type FallbackSource interface {
	// FetchSince returns finalized candles with open_time after since, oldest first.
	FetchSince(ctx context.Context, key models.StreamKey, since time.Time, limit int) ([]models.Candle, error)
	Name() string
}

// AlertTransport is the boundary towards the external notification service.
type AlertTransport interface {
	Publish(ctx context.Context, a *models.Alert) error
	Close() error
}

// CorrelationSource yields the last known direction per correlated instrument.
type CorrelationSource interface {
	Directions(ctx context.Context) (map[string]models.Direction, error)
}

// CorrelationStore also accepts updates from the API.
type CorrelationStore interface {
	CorrelationSource
	SetDirections(ctx context.Context, dirs map[string]models.Direction) error
}

type Metrics interface {
	RecordCandle(symbol string, tf models.Timeframe, source models.CandleSource)
	RecordAnomaly(kind models.AnomalyKind, severity models.Severity)
	RecordSignal(symbol string, direction models.Direction)
	RecordDispatch(status models.DispatchStatus, reason string)
	RecordDrop(priority models.Priority)
	RecordFeedMode(stream models.StreamKey, mode models.FeedMode, down bool)
	RecordError(kind string)
	RecordLastPrice(symbol string, price float64)
	RecordLatency(op string, seconds float64)
}
