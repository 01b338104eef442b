package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	domoutbox "github.com/Zhima-Mochi/minishop-checkout/internal/domain/outbox"
	"github.com/segmentio/kafka-go"
)

// MessageWriter is the subset of *kafka.Writer the relay needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher relays domain events to a topic. Messages are keyed by aggregate id so
// every event of one order lands on the same partition in publish order.
type KafkaPublisher struct {
	w MessageWriter
}

// ParseBrokers splits a comma separated broker list, dropping blanks.
func ParseBrokers(csv string) []string {
	var brokers []string
	for _, b := range strings.Split(csv, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}
}

func NewKafkaPublisher(w MessageWriter) *KafkaPublisher {
	return &KafkaPublisher{w: w}
}

type envelope struct {
	Event       string          `json:"event"`
	AggregateID string          `json:"aggregate_id,omitempty"`
	PublishedAt time.Time       `json:"published_at"`
	Payload     json.RawMessage `json:"payload"`
}

func (p *KafkaPublisher) Publish(ctx context.Context, e domoutbox.Event) error {
	if e == nil {
		return nil
	}
	msg, err := encode(e, time.Now().UTC())
	if err != nil {
		return err
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("outbox: kafka write %s: %w", e.EventName(), err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error { return p.w.Close() }

func encode(e domoutbox.Event, now time.Time) (kafka.Message, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("outbox: encode %s: %w", e.EventName(), err)
	}
	env := envelope{Event: e.EventName(), PublishedAt: now, Payload: payload}
	if k, ok := e.(domoutbox.Keyed); ok {
		env.AggregateID = k.AggregateID()
	}
	value, err := json.Marshal(env)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("outbox: encode envelope: %w", err)
	}
	return kafka.Message{
		Key:     []byte(env.AggregateID),
		Value:   value,
		Time:    now,
		Headers: []kafka.Header{{Key: "event", Value: []byte(env.Event)}},
	}, nil
}

// Fanout publishes every event to each publisher in turn; one failing does not stop the rest.
type Fanout []domoutbox.Publisher

func (f Fanout) Publish(ctx context.Context, e domoutbox.Event) error {
	var errs []error
	for _, p := range f {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
