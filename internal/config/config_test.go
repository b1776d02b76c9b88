package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("expected port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Dispatch.SearchRadiusKm != 5 {
		t.Errorf("expected 5 km radius, got %v", cfg.Dispatch.SearchRadiusKm)
	}
	if cfg.Dispatch.PendingTTL != 30*time.Minute {
		t.Errorf("expected 30m pending TTL, got %v", cfg.Dispatch.PendingTTL)
	}
	if !cfg.Dispatch.StrictFareRules || !cfg.Dispatch.RequireOTP {
		t.Error("strict fare rules and OTP should default to on")
	}
	if cfg.Ledger.LockTimeout != 3*time.Second {
		t.Errorf("expected 3s lock timeout, got %v", cfg.Ledger.LockTimeout)
	}
	if cfg.Kafka.RideEventTopic != "ride-events" || len(cfg.Kafka.Brokers) != 0 {
		t.Errorf("unexpected kafka defaults: %+v", cfg.Kafka)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DISPATCH_PENDING_TTL", "45m")
	t.Setenv("DISPATCH_STRICT_FARE_RULES", "false")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Dispatch.PendingTTL != 45*time.Minute {
		t.Errorf("expected 45m, got %v", cfg.Dispatch.PendingTTL)
	}
	if cfg.Dispatch.StrictFareRules {
		t.Error("expected lenient fare rules")
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "k2:9092" {
		t.Errorf("expected two brokers, got %v", cfg.Kafka.Brokers)
	}
}

func TestLoad_ReportsEveryInvalidSetting(t *testing.T) {
	t.Setenv("DISPATCH_WORKERS", "0")
	t.Setenv("LEDGER_LOCK_TIMEOUT", "0s")
	t.Setenv("STRIPE_API_KEY", "sk_test_x")

	_, err := Load()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"DISPATCH_WORKERS", "LEDGER_LOCK_TIMEOUT", "PAYMENT_SIGNING_SECRET"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected error to mention %s, got %v", want, err)
		}
	}
}

func TestLoad_BadDuration(t *testing.T) {
	t.Setenv("DISPATCH_SWEEP_INTERVAL", "soon")

	if _, err := Load(); err == nil {
		t.Fatal("expected parse error for bad duration")
	}
}
