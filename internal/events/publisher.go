// Package events publishes committed ride transitions to Kafka.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"ridecore/internal/domain"
)

// KafkaPublisher writes ride transitions to a topic, keyed by ride ID so
// every event of one ride lands on the same partition.
type KafkaPublisher struct {
	writer  *kafka.Writer
	timeout time.Duration
}

// NewKafkaPublisher creates a publisher for topic.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
	return &KafkaPublisher{writer: w, timeout: 2 * time.Second}
}

// PublishTransition writes one transition event.
func (p *KafkaPublisher) PublishTransition(ctx context.Context, t domain.RideTransition) error {
	msg, err := Encode(t)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return p.writer.WriteMessages(ctx, msg)
}

// Close flushes and closes the writer.
func (p *KafkaPublisher) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

// Encode builds the Kafka message of a transition.
func Encode(t domain.RideTransition) (kafka.Message, error) {
	b, err := json.Marshal(t)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(t.RideID),
		Value: b,
		Time:  t.At,
		Headers: []kafka.Header{
			{Key: "event", Value: []byte(t.Event)},
		},
	}, nil
}

// Discard drops every event. It stands in when no broker is configured.
type Discard struct{}

// PublishTransition does nothing.
func (Discard) PublishTransition(context.Context, domain.RideTransition) error { return nil }
