package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
)

// Writer is the subset of *kafka.Writer the producer needs.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes JSON payloads keyed by symbol.
type Producer struct {
	writer Writer
	comp   string
}

func NewProducer(opts ...ProducerOption) (*Producer, error) {
	cfg := &ProducerConfig{
		RequiredAcks: -1,
		Compression:  "snappy",
		MaxAttempts:  3,
		WriteTimeout: 10 * time.Second,
		ReadTimeout:  10 * time.Second,
		BatchSize:    100,
		BatchBytes:   1048576,
		BatchTimeout: 10 * time.Millisecond,
		HashByKey:    true,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("brokers are required")
	}

	bal := kafka.Balancer(&kafka.LeastBytes{})
	if cfg.HashByKey {
		bal = &kafka.Hash{}
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     bal,
		RequiredAcks: kafka.RequiredAcks(cfg.RequiredAcks),
		Compression:  parseCompression(cfg.Compression),
		MaxAttempts:  cfg.MaxAttempts,
		WriteTimeout: cfg.WriteTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		BatchSize:    cfg.BatchSize,
		BatchBytes:   int64(cfg.BatchBytes),
		BatchTimeout: cfg.BatchTimeout,
		Async:        cfg.Async,
	}
	return NewProducerWithWriter(w, cfg.Compression), nil
}

// NewProducerWithWriter wraps an existing writer; tests pass a fake.
func NewProducerWithWriter(w Writer, compression string) *Producer {
	initProducerMetrics()
	return &Producer{writer: w, comp: compression}
}

// Publish marshals value to JSON unless it is already []byte or string.
func (p *Producer) Publish(ctx context.Context, topic string, key []byte, value any) error {
	v, err := encode(value)
	if err != nil {
		return err
	}
	start := time.Now()
	err = p.writer.WriteMessages(ctx, kafka.Message{Topic: topic, Key: key, Value: v, Time: start})
	observeProducer(topic, p.comp, len(v), time.Since(start), err)
	if err != nil {
		return fmt.Errorf("kafka publish %s: %w", topic, err)
	}
	return nil
}

func (p *Producer) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

func encode(value any) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		b, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("marshal value: %w", err)
		}
		return b, nil
	}
}

func parseCompression(s string) kafka.Compression {
	switch s {
	case "gzip":
		return kafka.Gzip
	case "lz4":
		return kafka.Lz4
	case "zstd":
		return kafka.Zstd
	default:
		return kafka.Snappy
	}
}

var (
	producerMsgs    *prometheus.CounterVec
	producerBytes   *prometheus.CounterVec
	producerLatency *prometheus.HistogramVec
	producerOnce    sync.Once
)

func initProducerMetrics() {
	producerOnce.Do(func() {
		producerMsgs = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fxpulse_kafka_producer_messages_total",
				Help: "Messages published to Kafka",
			},
			[]string{"topic", "result"},
		)
		producerBytes = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fxpulse_kafka_producer_bytes_total",
				Help: "Payload bytes published",
			},
			[]string{"topic", "compression"},
		)
		producerLatency = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fxpulse_kafka_producer_publish_seconds",
				Help:    "Publish latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"topic"},
		)
	})
}

func observeProducer(topic, comp string, bytes int, dur time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	producerMsgs.WithLabelValues(topic, result).Inc()
	producerBytes.WithLabelValues(topic, comp).Add(float64(bytes))
	producerLatency.WithLabelValues(topic).Observe(dur.Seconds())
}
