package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	domoutbox "github.com/Zhima-Mochi/minishop-checkout/internal/domain/outbox"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEvent struct {
	ID   string `json:"id"`
	Note string `json:"note"`
}

func (testEvent) EventName() string     { return "test.happened" }
func (e testEvent) AggregateID() string { return e.ID }

type plainEvent struct{}

func (plainEvent) EventName() string { return "test.plain" }

func TestBusDeliversToEverySubscriber(t *testing.T) {
	ctx := context.Background()
	bus := NewBus(nil, WithConcurrency(2))
	var hits atomic.Int32
	for i := 0; i < 3; i++ {
		bus.Subscribe("test.happened", func(ctx context.Context, e domoutbox.Event) error {
			hits.Add(1)
			return nil
		})
	}
	bus.Start(ctx)

	require.NoError(t, bus.Publish(ctx, testEvent{ID: "o1"}))
	require.NoError(t, bus.Publish(ctx, plainEvent{}))
	bus.Stop(ctx)

	assert.Equal(t, int32(3), hits.Load())
}

func TestBusSurvivesFailingHandlers(t *testing.T) {
	ctx := context.Background()
	bus := NewBus(nil)
	var ok atomic.Bool
	bus.Subscribe("test.happened", func(context.Context, domoutbox.Event) error { panic("boom") })
	bus.Subscribe("test.happened", func(context.Context, domoutbox.Event) error { return errors.New("nope") })
	bus.Subscribe("test.happened", func(context.Context, domoutbox.Event) error {
		ok.Store(true)
		return nil
	})
	bus.Start(ctx)

	require.NoError(t, bus.Publish(ctx, testEvent{ID: "o1"}))
	bus.Stop(ctx)
	assert.True(t, ok.Load())
}

func TestBusRejectsPublishAfterStop(t *testing.T) {
	ctx := context.Background()
	bus := NewBus(nil)
	bus.Start(ctx)
	bus.Stop(ctx)
	bus.Stop(ctx)

	assert.ErrorIs(t, bus.Publish(ctx, testEvent{}), ErrBusClosed)
}

func TestBusPublishHonoursContextWhenFull(t *testing.T) {
	bus := NewBus(nil, WithQueueSize(1))
	require.NoError(t, bus.Publish(context.Background(), testEvent{}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, bus.Publish(ctx, testEvent{}), context.DeadlineExceeded)
}

type MockWriter struct {
	mu        sync.Mutex
	Messages  []kafka.Message
	WriteFunc func(ctx context.Context, msgs ...kafka.Message) error
}

func (w *MockWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w.WriteFunc != nil {
		return w.WriteFunc(ctx, msgs...)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.Messages = append(w.Messages, msgs...)
	return nil
}

func (w *MockWriter) Close() error { return nil }

func TestKafkaPublisherKeysByAggregate(t *testing.T) {
	w := &MockWriter{}
	pub := NewKafkaPublisher(w)

	require.NoError(t, pub.Publish(context.Background(), testEvent{ID: "order-7", Note: "hi"}))

	require.Len(t, w.Messages, 1)
	msg := w.Messages[0]
	assert.Equal(t, "order-7", string(msg.Key))
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "test.happened", string(msg.Headers[0].Value))

	var env envelope
	require.NoError(t, json.Unmarshal(msg.Value, &env))
	assert.Equal(t, "test.happened", env.Event)
	assert.Equal(t, "order-7", env.AggregateID)
	assert.JSONEq(t, `{"id":"order-7","note":"hi"}`, string(env.Payload))
}

func TestKafkaPublisherWrapsWriteErrors(t *testing.T) {
	boom := errors.New("broker down")
	pub := NewKafkaPublisher(&MockWriter{WriteFunc: func(context.Context, ...kafka.Message) error { return boom }})

	assert.ErrorIs(t, pub.Publish(context.Background(), plainEvent{}), boom)
}

func TestFanoutContinuesPastFailures(t *testing.T) {
	boom := errors.New("broker down")
	failing := NewKafkaPublisher(&MockWriter{WriteFunc: func(context.Context, ...kafka.Message) error { return boom }})
	w := &MockWriter{}

	err := Fanout{failing, nil, NewKafkaPublisher(w)}.Publish(context.Background(), testEvent{ID: "x"})
	assert.ErrorIs(t, err, boom)
	assert.Len(t, w.Messages, 1)
}

func TestParseBrokers(t *testing.T) {
	assert.Equal(t, []string{"a:9092", "b:9092"}, ParseBrokers(" a:9092, ,b:9092 "))
	assert.Empty(t, ParseBrokers(""))
}
