package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"FxPulse/internal/domain/models"
	drepo "FxPulse/internal/domain/repository"
	"FxPulse/pkg/logger"
	"FxPulse/pkg/util"

	"github.com/gorilla/websocket"
)

// ErrTooManyInvalid is sent on the error channel after max_invalid
// consecutive frames could not be turned into a valid candle.
var ErrTooManyInvalid = errors.New("too many invalid frames")

type Option func(*WSStream)

func WithPingInterval(d time.Duration) Option {
	return func(s *WSStream) {
		if d > 0 {
			s.pingInterval = d
		}
	}
}

func WithMaxInvalid(n int) Option {
	return func(s *WSStream) {
		if n > 0 {
			s.maxInvalid = n
		}
	}
}

func WithLogger(l *logger.Logger) Option {
	return func(s *WSStream) { s.log = l.Component("ws_stream") }
}

func WithDialer(d *websocket.Dialer) Option {
	return func(s *WSStream) { s.dialer = d }
}

// WSStream is a MarketStream for a single symbol and timeframe over a JSON
// websocket feed.
type WSStream struct {
	key          models.StreamKey
	apiKey       string
	websocketURL string
	pingInterval time.Duration
	maxInvalid   int
	dialer       *websocket.Dialer
	log          *logger.Logger

	mu        sync.Mutex // guards conn and writes
	conn      *websocket.Conn
	connected atomic.Bool
}

func New(key models.StreamKey, websocketURL, apiKey string, opts ...Option) *WSStream {
	s := &WSStream{
		key:          key,
		apiKey:       apiKey,
		websocketURL: websocketURL,
		pingInterval: 30 * time.Second,
		maxInvalid:   5,
		dialer:       websocket.DefaultDialer,
		log:          logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Factory adapts New to a repository.MarketStreamFactory.
func Factory(websocketURL, apiKey string, opts ...Option) drepo.MarketStreamFactory {
	return func(key models.StreamKey) drepo.MarketStream {
		return New(key, websocketURL, apiKey, opts...)
	}
}

func (s *WSStream) Connect(ctx context.Context) error {
	u := s.websocketURL
	if s.apiKey != "" {
		parsed, err := url.Parse(u)
		if err != nil {
			return fmt.Errorf("ws url: %w", err)
		}
		q := parsed.Query()
		q.Set("token", s.apiKey)
		parsed.RawQuery = q.Encode()
		u = parsed.String()
	}
	conn, _, err := s.dialer.DialContext(ctx, u, nil)
	if err != nil {
		return fmt.Errorf("ws connect: %w", err)
	}
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	s.connected.Store(true)
	s.log.Debug("connected", logger.String("stream", s.key.String()))
	return nil
}

type subscribeFrame struct {
	Type      string `json:"type"`
	Symbol    string `json:"symbol"`
	Timeframe string `json:"timeframe"`
}

func (s *WSStream) Subscribe(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil || !s.connected.Load() {
		return fmt.Errorf("ws not connected")
	}
	if dl, ok := ctx.Deadline(); ok {
		_ = s.conn.SetWriteDeadline(dl)
		defer s.conn.SetWriteDeadline(time.Time{})
	}
	msg := subscribeFrame{Type: "subscribe", Symbol: s.key.Symbol, Timeframe: string(s.key.Timeframe)}
	if err := s.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("subscribe %s: %w", s.key, err)
	}
	return nil
}

// candleFrame is the wire format of a candle update; t is unix milliseconds.
type candleFrame struct {
	Type      string  `json:"type"`
	Symbol    string  `json:"symbol"`
	Timeframe string  `json:"timeframe"`
	T         int64   `json:"t"`
	O         float64 `json:"o"`
	H         float64 `json:"h"`
	L         float64 `json:"l"`
	C         float64 `json:"c"`
	V         float64 `json:"v"`
	Final     bool    `json:"final"`
}

// Decode turns a frame into a candle. ok is false for frames that are not
// candle updates for this stream (heartbeats, acks, other symbols).
func (s *WSStream) Decode(b []byte) (c models.Candle, ok bool, err error) {
	var f candleFrame
	if err := json.Unmarshal(b, &f); err != nil {
		return models.Candle{}, false, fmt.Errorf("decode frame: %w", err)
	}
	if f.Type != "candle" {
		return models.Candle{}, false, nil
	}
	if f.Symbol != s.key.Symbol || (f.Timeframe != "" && models.Timeframe(f.Timeframe) != s.key.Timeframe) {
		return models.Candle{}, false, nil
	}
	c = models.Candle{
		Symbol:    s.key.Symbol,
		Timeframe: s.key.Timeframe,
		OpenTime:  util.FromUnixMillis(f.T),
		Open:      f.O,
		High:      f.H,
		Low:       f.L,
		Close:     f.C,
		Volume:    f.V,
		Final:     f.Final,
		Source:    models.SourcePrimary,
	}
	if err := c.Validate(); err != nil {
		return models.Candle{}, false, err
	}
	return c, true, nil
}

// Read streams candle updates. The error channel receives at most one error,
// after which both channels are closed.
func (s *WSStream) Read(ctx context.Context) (<-chan models.Candle, <-chan error) {
	candles := make(chan models.Candle, 64)
	errs := make(chan error, 1)

	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()

	readCtx, stop := context.WithCancel(ctx)

	go func() {
		ticker := time.NewTicker(s.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-readCtx.Done():
				return
			case <-ticker.C:
				if conn != nil {
					_ = conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.pingInterval/2))
				}
			}
		}
	}()

	go func() {
		defer stop()
		defer close(candles)
		defer close(errs)
		if conn == nil {
			errs <- fmt.Errorf("ws conn nil")
			return
		}
		invalid := 0
		for {
			_, b, err := conn.ReadMessage()
			if err != nil {
				if readCtx.Err() == nil {
					errs <- fmt.Errorf("ws read: %w", err)
				}
				return
			}
			c, ok, err := s.Decode(b)
			if err != nil {
				invalid++
				s.log.Debug("invalid frame", logger.String("stream", s.key.String()), logger.Int("consecutive", invalid), logger.Error(err))
				if invalid >= s.maxInvalid {
					errs <- fmt.Errorf("%w: %d consecutive: %v", ErrTooManyInvalid, invalid, err)
					return
				}
				continue
			}
			if !ok {
				continue
			}
			invalid = 0
			select {
			case candles <- c:
			case <-readCtx.Done():
				return
			}
		}
	}()

	return candles, errs
}

func (s *WSStream) Close() error {
	s.connected.Store(false)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}

func (s *WSStream) IsConnected() bool { return s.connected.Load() }
