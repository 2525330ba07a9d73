package kafka

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"

	"FxPulse/pkg/logger"
)

// MessageHandler handles messages from one topic.
type MessageHandler interface {
	Topic() string
	Handle(context.Context, []byte) error
}

// Reader is the subset of *kafka.Reader the consumer needs.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type ReaderFactory func(topic string) Reader

type ConsumerOption func(*ConsumerConfig)

type ConsumerConfig struct {
	Brokers     []string
	GroupID     string
	WorkerCount int
	BufferSize  int
	RetryMax    int
	BackoffMin  time.Duration
	BackoffMax  time.Duration
	DLQTopic    string
	MinBytes    int
	MaxBytes    int

	log       *logger.Logger
	newReader ReaderFactory
	dlq       Writer
}

func WithConsumerBrokers(brokers []string) ConsumerOption {
	return func(c *ConsumerConfig) { c.Brokers = brokers }
}

func WithConsumerGroupID(groupID string) ConsumerOption {
	return func(c *ConsumerConfig) { c.GroupID = groupID }
}

func WithConsumerWorkers(count int) ConsumerOption {
	return func(c *ConsumerConfig) {
		if count > 0 {
			c.WorkerCount = count
		}
	}
}

// WithConsumerRetry configures handler retries and the backoff range between them.
func WithConsumerRetry(retries int, backoffMin, backoffMax time.Duration) ConsumerOption {
	return func(c *ConsumerConfig) {
		c.RetryMax = retries
		c.BackoffMin = backoffMin
		c.BackoffMax = backoffMax
	}
}

// WithConsumerDLQ routes messages that exhausted their retries to topic.
func WithConsumerDLQ(topic string) ConsumerOption {
	return func(c *ConsumerConfig) { c.DLQTopic = topic }
}

func WithConsumerFetch(minBytes, maxBytes int) ConsumerOption {
	return func(c *ConsumerConfig) {
		c.MinBytes = minBytes
		c.MaxBytes = maxBytes
	}
}

func WithConsumerBufferSize(n int) ConsumerOption {
	return func(c *ConsumerConfig) {
		if n > 0 {
			c.BufferSize = n
		}
	}
}

func WithConsumerLogger(l *logger.Logger) ConsumerOption {
	return func(c *ConsumerConfig) { c.log = l }
}

// WithReaderFactory replaces the kafka-go reader, mainly for tests.
func WithReaderFactory(f ReaderFactory) ConsumerOption {
	return func(c *ConsumerConfig) { c.newReader = f }
}

// WithDLQWriter replaces the dead-letter writer, mainly for tests.
func WithDLQWriter(w Writer) ConsumerOption {
	return func(c *ConsumerConfig) { c.dlq = w }
}

// Consumer fans fetched messages out to a worker pool. Offsets are committed
// after a successful handle, or after the message went to the DLQ.
type Consumer struct {
	cfg      *ConsumerConfig
	log      *logger.Logger
	readers  map[string]Reader
	handlers map[string]MessageHandler
	msgs     chan message
	dlq      Writer
	hook     ConsumerHook

	partMu    sync.Mutex
	partLocks map[string]*sync.Mutex

	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

type message struct {
	topic string
	km    kafka.Message
}

func NewConsumer(opts ...ConsumerOption) (*Consumer, error) {
	cfg := &ConsumerConfig{
		GroupID:     "fxpulse",
		WorkerCount: 1,
		BufferSize:  64,
		RetryMax:    3,
		BackoffMin:  50 * time.Millisecond,
		BackoffMax:  2 * time.Second,
		MinBytes:    1,
		MaxBytes:    10e6,
		log:         logger.Nop(),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if len(cfg.Brokers) == 0 && cfg.newReader == nil {
		return nil, fmt.Errorf("brokers are required")
	}
	if cfg.newReader == nil {
		cfg.newReader = func(topic string) Reader {
			return kafka.NewReader(kafka.ReaderConfig{
				Brokers:  cfg.Brokers,
				Topic:    topic,
				GroupID:  cfg.GroupID,
				MinBytes: cfg.MinBytes,
				MaxBytes: cfg.MaxBytes,
			})
		}
	}
	if cfg.dlq == nil && cfg.DLQTopic != "" && len(cfg.Brokers) > 0 {
		cfg.dlq = &kafka.Writer{Addr: kafka.TCP(cfg.Brokers...), Balancer: &kafka.LeastBytes{}}
	}

	initConsumerMetrics()
	return &Consumer{
		cfg:       cfg,
		log:       cfg.log.Component("kafka_consumer"),
		readers:   make(map[string]Reader),
		handlers:  make(map[string]MessageHandler),
		msgs:      make(chan message, cfg.BufferSize),
		dlq:       cfg.dlq,
		hook:      NoopHook{},
		partLocks: make(map[string]*sync.Mutex),
	}, nil
}

// RegisterHandler must be called before Start.
func (c *Consumer) RegisterHandler(h MessageHandler) {
	if _, ok := c.handlers[h.Topic()]; ok {
		c.log.Warn("handler already registered", logger.String("topic", h.Topic()))
		return
	}
	c.handlers[h.Topic()] = h
}

// WithHook sets lifecycle hooks around message handling.
func (c *Consumer) WithHook(h ConsumerHook) {
	if h != nil {
		c.hook = h
	}
}

// Start launches one fetch loop per topic and the worker pool.
func (c *Consumer) Start(ctx context.Context) error {
	if len(c.handlers) == 0 {
		return errors.New("no handlers registered")
	}
	ctx, c.cancel = context.WithCancel(ctx)

	for topic := range c.handlers {
		c.readers[topic] = c.cfg.newReader(topic)
	}
	for i := 0; i < c.cfg.WorkerCount; i++ {
		c.wg.Add(1)
		go c.worker(ctx)
	}
	for topic, r := range c.readers {
		c.wg.Add(1)
		go c.fetch(ctx, topic, r)
	}
	c.log.Info("consumer started", logger.Int("workers", c.cfg.WorkerCount), logger.Int("topics", len(c.readers)))
	return nil
}

// Stop cancels fetching and waits for in-flight handlers, bounded by ctx.
func (c *Consumer) Stop(ctx context.Context) error {
	var err error
	c.stopOnce.Do(func() {
		if c.cancel != nil {
			c.cancel()
		}
		done := make(chan struct{})
		go func() {
			c.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			err = fmt.Errorf("timeout waiting for consumer to stop: %w", ctx.Err())
		}
		for topic, r := range c.readers {
			if cerr := r.Close(); cerr != nil {
				c.log.Warn("close reader", logger.String("topic", topic), logger.Error(cerr))
			}
		}
		if c.dlq != nil {
			_ = c.dlq.Close()
		}
	})
	return err
}

func (c *Consumer) fetch(ctx context.Context, topic string, r Reader) {
	defer c.wg.Done()
	failures := 0
	for {
		km, err := r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			failures++
			c.log.Warn("fetch failed", logger.String("topic", topic), logger.Error(err))
			select {
			case <-time.After(backoffWithJitter(c.cfg.BackoffMin, c.cfg.BackoffMax, failures)):
				continue
			case <-ctx.Done():
				return
			}
		}
		failures = 0
		select {
		case c.msgs <- message{topic: topic, km: km}:
			consumerQueueDepth.WithLabelValues(topic).Set(float64(len(c.msgs)))
		case <-ctx.Done():
			return
		}
	}
}

func (c *Consumer) worker(ctx context.Context) {
	defer c.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case m := <-c.msgs:
			c.process(ctx, m)
		}
	}
}

func (c *Consumer) process(ctx context.Context, m message) {
	h, ok := c.handlers[m.topic]
	if !ok {
		return
	}
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("panic in message handler", logger.String("topic", m.topic), logger.Any("panic", r))
		}
		consumerHandleLatency.WithLabelValues(m.topic).Observe(time.Since(start).Seconds())
	}()

	// At most one message in flight per (topic, partition).
	pl := c.partitionLock(m.topic, m.km.Partition)
	pl.Lock()
	defer pl.Unlock()

	var err error
	attempts := 0
	for {
		attempts++
		hctx, hmsg, data, berr := c.hook.BeforeHandle(ctx, m.topic, m.km, m.km.Value)
		if berr != nil {
			err = berr
			break
		}
		err = h.Handle(hctx, data)
		c.hook.AfterHandle(hctx, m.topic, hmsg, data, err)
		if err == nil || attempts > c.cfg.RetryMax {
			break
		}
		select {
		case <-time.After(backoffWithJitter(c.cfg.BackoffMin, c.cfg.BackoffMax, attempts)):
		case <-ctx.Done():
			return
		}
	}

	dead := false
	if err != nil {
		c.hook.OnError(ctx, m.topic, m.km, m.km.Value, err)
		consumerFailures.WithLabelValues(m.topic).Inc()
		c.log.Error("message handling failed",
			logger.String("topic", m.topic), logger.Int("attempts", attempts), logger.Error(err))
		if c.dlq != nil && c.cfg.DLQTopic != "" {
			werr := c.dlq.WriteMessages(ctx, kafka.Message{
				Topic:   c.cfg.DLQTopic,
				Key:     m.km.Key,
				Value:   m.km.Value,
				Time:    time.Now(),
				Headers: []kafka.Header{{Key: "source_topic", Value: []byte(m.topic)}},
			})
			if werr != nil {
				c.log.Error("dlq write failed", logger.String("topic", c.cfg.DLQTopic), logger.Error(werr))
			} else {
				dead = true
			}
		}
	}

	if err == nil || dead {
		if r := c.readers[m.topic]; r != nil {
			cctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			if cerr := r.CommitMessages(cctx, m.km); cerr != nil {
				c.log.Warn("commit failed", logger.String("topic", m.topic), logger.Error(cerr))
			}
			cancel()
		}
	}
}

func (c *Consumer) partitionLock(topic string, partition int) *sync.Mutex {
	k := fmt.Sprintf("%s/%d", topic, partition)
	c.partMu.Lock()
	defer c.partMu.Unlock()
	l, ok := c.partLocks[k]
	if !ok {
		l = &sync.Mutex{}
		c.partLocks[k] = l
	}
	return l
}

// backoffWithJitter doubles lo per attempt up to hi and subtracts up to 50% jitter.
func backoffWithJitter(lo, hi time.Duration, attempt int) time.Duration {
	if lo <= 0 {
		lo = 50 * time.Millisecond
	}
	if hi < lo {
		hi = lo
	}
	exp := lo
	for i := 1; i < attempt && exp < hi; i++ {
		exp *= 2
	}
	if exp > hi {
		exp = hi
	}
	if half := int64(exp) / 2; half > 0 {
		exp -= time.Duration(rand.Int63n(half))
	}
	return exp
}

var (
	consumerQueueDepth    *prometheus.GaugeVec
	consumerHandleLatency *prometheus.HistogramVec
	consumerFailures      *prometheus.CounterVec
	consumerOnce          sync.Once
)

func initConsumerMetrics() {
	consumerOnce.Do(func() {
		consumerQueueDepth = promauto.NewGaugeVec(
			prometheus.GaugeOpts{Name: "fxpulse_kafka_consumer_queue_depth", Help: "Messages waiting for a worker"},
			[]string{"topic"},
		)
		consumerHandleLatency = promauto.NewHistogramVec(
			prometheus.HistogramOpts{Name: "fxpulse_kafka_consumer_handle_seconds", Help: "Handling time per message"},
			[]string{"topic"},
		)
		consumerFailures = promauto.NewCounterVec(
			prometheus.CounterOpts{Name: "fxpulse_kafka_consumer_failures_total", Help: "Messages that exhausted their retries"},
			[]string{"topic"},
		)
	})
}
