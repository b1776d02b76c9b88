// Package ingest consumes driver location updates from Kafka.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// LocationUpdate is one driver position report.
type LocationUpdate struct {
	DriverID string    `json:"driver_id"`
	Lat      float64   `json:"lat"`
	Lng      float64   `json:"lng"`
	At       time.Time `json:"at"`
}

// Sink applies a decoded update.
type Sink interface {
	ApplyLocation(ctx context.Context, u LocationUpdate) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, u LocationUpdate) error

// ApplyLocation calls f.
func (f SinkFunc) ApplyLocation(ctx context.Context, u LocationUpdate) error { return f(ctx, u) }

// Result classifies the handling of one message.
type Result string

const (
	ResultApplied Result = "applied"
	ResultInvalid Result = "invalid"
	ResultFailed  Result = "failed"
)

// ErrInvalidMessage is returned for payloads that can never be applied.
var ErrInvalidMessage = errors.New("invalid location message")

// LocationConsumer reads location messages and applies them to a Sink.
type LocationConsumer struct {
	reader   *kafka.Reader
	sink     Sink
	logger   *slog.Logger
	observe  func(Result)
	attempts int
}

// NewLocationConsumer creates a consumer-group reader for topic.
func NewLocationConsumer(brokers []string, topic, group string, sink Sink, logger *slog.Logger) *LocationConsumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  group,
		MinBytes: 10e3,
		MaxBytes: 10e6,
	})
	return &LocationConsumer{reader: r, sink: sink, logger: logger, attempts: 3}
}

// Observe sets a callback invoked with the result of every message.
func (c *LocationConsumer) Observe(fn func(Result)) {
	c.observe = fn
}

// Run reads until ctx is cancelled, backing off on broker errors.
func (c *LocationConsumer) Run(ctx context.Context) error {
	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		m, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Warn("kafka read error; backing off", "error", err, "backoff", backoff)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, maxBackoff)
			continue
		}
		backoff = time.Second

		res := c.Handle(ctx, m.Value)
		if c.observe != nil {
			c.observe(res)
		}
	}
}

// Handle decodes and applies one message payload, retrying the sink briefly.
func (c *LocationConsumer) Handle(ctx context.Context, payload []byte) Result {
	u, err := Decode(payload)
	if err != nil {
		c.logger.Warn("dropping location message", "error", err)
		return ResultInvalid
	}

	delay := 200 * time.Millisecond
	for i := 1; ; i++ {
		err = c.sink.ApplyLocation(ctx, u)
		if err == nil {
			return ResultApplied
		}
		if errors.Is(err, ErrInvalidMessage) {
			c.logger.Warn("location rejected", "driver_id", u.DriverID, "error", err)
			return ResultInvalid
		}
		if i >= c.attempts || ctx.Err() != nil {
			c.logger.Error("location update failed", "driver_id", u.DriverID, "error", err)
			return ResultFailed
		}
		select {
		case <-ctx.Done():
			return ResultFailed
		case <-time.After(delay):
		}
		delay *= 2
	}
}

// Close closes the reader.
func (c *LocationConsumer) Close() error {
	return c.reader.Close()
}

// Decode parses a payload; a missing timestamp defaults to now.
func Decode(payload []byte) (LocationUpdate, error) {
	var u LocationUpdate
	if err := json.Unmarshal(payload, &u); err != nil {
		return u, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if u.DriverID == "" {
		return u, fmt.Errorf("%w: missing driver_id", ErrInvalidMessage)
	}
	if u.At.IsZero() {
		u.At = time.Now().UTC()
	}
	return u, nil
}
