package ingest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
)

func newTestConsumer(sink Sink) *LocationConsumer {
	return &LocationConsumer{
		sink:     sink,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		attempts: 3,
	}
}

func TestDecode(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		payload string
		wantErr bool
	}{
		{"valid", `{"driver_id":"d1","lat":12.9,"lng":77.6}`, false},
		{"missing driver", `{"lat":1,"lng":2}`, true},
		{"garbage", `not-json`, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			u, err := Decode([]byte(tc.payload))
			if tc.wantErr {
				if !errors.Is(err, ErrInvalidMessage) {
					t.Errorf("expected ErrInvalidMessage, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if u.At.IsZero() {
				t.Error("missing timestamp should default to now")
			}
		})
	}
}

func TestHandle_RetriesTransientSinkErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	c := newTestConsumer(SinkFunc(func(context.Context, LocationUpdate) error {
		if calls.Add(1) < 2 {
			return errors.New("redis down")
		}
		return nil
	}))

	if res := c.Handle(context.Background(), []byte(`{"driver_id":"d1","lat":1,"lng":2}`)); res != ResultApplied {
		t.Errorf("expected applied, got %s", res)
	}
	if calls.Load() != 2 {
		t.Errorf("expected 2 sink calls, got %d", calls.Load())
	}
}

func TestHandle_InvalidIsNotRetried(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	c := newTestConsumer(SinkFunc(func(context.Context, LocationUpdate) error {
		calls.Add(1)
		return ErrInvalidMessage
	}))

	if res := c.Handle(context.Background(), []byte(`{"driver_id":"d1","lat":100,"lng":2}`)); res != ResultInvalid {
		t.Errorf("expected invalid, got %s", res)
	}
	if calls.Load() != 1 {
		t.Errorf("expected a single call, got %d", calls.Load())
	}
}
