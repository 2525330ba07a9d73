package kafka

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReader struct {
	msgs      chan kafka.Message
	mu        sync.Mutex
	committed []kafka.Message
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case m := <-r.msgs:
		return m, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *fakeReader) Close() error { return nil }

func (r *fakeReader) commits() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.committed)
}

type fakeWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func (w *fakeWriter) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.msgs)
}

type flakyHandler struct {
	failures int32
	calls    atomic.Int32
}

func (h *flakyHandler) Topic() string { return "outcomes" }

func (h *flakyHandler) Handle(context.Context, []byte) error {
	if h.calls.Add(1) <= h.failures {
		return errors.New("transient")
	}
	return nil
}

func newTestConsumer(t *testing.T, r *fakeReader, dlq *fakeWriter, retries int) *Consumer {
	t.Helper()
	c, err := NewConsumer(
		WithReaderFactory(func(string) Reader { return r }),
		WithConsumerRetry(retries, time.Millisecond, 2*time.Millisecond),
		WithConsumerDLQ("outcomes.dlq"),
		WithDLQWriter(dlq),
	)
	require.NoError(t, err)
	return c
}

func TestConsumerRetriesThenCommits(t *testing.T) {
	r := &fakeReader{msgs: make(chan kafka.Message, 1)}
	dlq := &fakeWriter{}
	c := newTestConsumer(t, r, dlq, 3)
	h := &flakyHandler{failures: 2}
	c.RegisterHandler(h)
	require.NoError(t, c.Start(context.Background()))
	defer func() { require.NoError(t, c.Stop(context.Background())) }()

	r.msgs <- kafka.Message{Topic: "outcomes", Value: []byte(`{}`)}

	require.Eventually(t, func() bool { return r.commits() == 1 }, time.Second, 2*time.Millisecond)
	assert.EqualValues(t, 3, h.calls.Load())
	assert.Zero(t, dlq.count())
}

func TestConsumerSendsExhaustedMessagesToDLQ(t *testing.T) {
	r := &fakeReader{msgs: make(chan kafka.Message, 1)}
	dlq := &fakeWriter{}
	c := newTestConsumer(t, r, dlq, 1)
	h := &flakyHandler{failures: 100}
	c.RegisterHandler(h)
	require.NoError(t, c.Start(context.Background()))
	defer func() { require.NoError(t, c.Stop(context.Background())) }()

	r.msgs <- kafka.Message{Topic: "outcomes", Key: []byte("EURUSD"), Value: []byte(`bad`)}

	require.Eventually(t, func() bool { return dlq.count() == 1 }, time.Second, 2*time.Millisecond)
	require.Eventually(t, func() bool { return r.commits() == 1 }, time.Second, 2*time.Millisecond)
	assert.EqualValues(t, 2, h.calls.Load())

	dlq.mu.Lock()
	defer dlq.mu.Unlock()
	assert.Equal(t, "outcomes.dlq", dlq.msgs[0].Topic)
	assert.Equal(t, "outcomes", string(dlq.msgs[0].Headers[0].Value))
}

func TestStartWithoutHandlers(t *testing.T) {
	c, err := NewConsumer(WithReaderFactory(func(string) Reader { return &fakeReader{} }))
	require.NoError(t, err)
	assert.Error(t, c.Start(context.Background()))
}

func TestBackoffWithJitterBounds(t *testing.T) {
	for attempt := 1; attempt <= 8; attempt++ {
		d := backoffWithJitter(10*time.Millisecond, 100*time.Millisecond, attempt)
		assert.LessOrEqual(t, d, 100*time.Millisecond)
		assert.Greater(t, d, time.Duration(0))
	}
}

func TestProducerPublishEncodesJSON(t *testing.T) {
	w := &fakeWriter{}
	p := NewProducerWithWriter(w, "snappy")
	require.NoError(t, p.Publish(context.Background(), "alerts", []byte("EURUSD"), map[string]string{"direction": "LONG"}))
	require.NoError(t, p.Publish(context.Background(), "alerts", nil, "raw"))

	require.Equal(t, 2, w.count())
	assert.JSONEq(t, `{"direction":"LONG"}`, string(w.msgs[0].Value))
	assert.Equal(t, "EURUSD", string(w.msgs[0].Key))
	assert.Equal(t, "raw", string(w.msgs[1].Value))
	assert.Equal(t, kafka.Snappy, parseCompression("unknown"))
}
