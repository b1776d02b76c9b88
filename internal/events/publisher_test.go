package events

import (
	"encoding/json"
	"testing"
	"time"

	"ridecore/internal/domain"
)

func TestEncode_KeyedByRide(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	msg, err := Encode(domain.RideTransition{
		RideID: "ride-9", From: domain.RideStatusPending, To: domain.RideStatusAccepted,
		Event: domain.RideEventAccept, ActorID: "d1", At: at,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(msg.Key) != "ride-9" {
		t.Errorf("expected ride key, got %q", msg.Key)
	}
	if len(msg.Headers) != 1 || string(msg.Headers[0].Value) != "accept" {
		t.Errorf("expected event header, got %+v", msg.Headers)
	}

	var decoded map[string]any
	if err := json.Unmarshal(msg.Value, &decoded); err != nil {
		t.Fatalf("value is not JSON: %v", err)
	}
	if decoded["to"] != "accepted" || decoded["actor_id"] != "d1" {
		t.Errorf("unexpected payload %v", decoded)
	}
}
