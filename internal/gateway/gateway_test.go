package gateway

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestSigner_RoundTrip(t *testing.T) {
	t.Parallel()

	s := NewSigner("secret")
	sig := s.Sign("order_1", "pay_1")

	if !s.Verify("order_1", "pay_1", sig) {
		t.Error("expected signature to verify")
	}

	cases := []struct {
		name               string
		order, payment, sg string
	}{
		{"other payment", "order_1", "pay_2", sig},
		{"other order", "order_2", "pay_1", sig},
		{"not hex", "order_1", "pay_1", "zz"},
		{"empty", "order_1", "pay_1", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if s.Verify(tc.order, tc.payment, tc.sg) {
				t.Error("expected verification to fail")
			}
		})
	}
}

func TestSigner_EmptySecretNeverVerifies(t *testing.T) {
	t.Parallel()

	s := NewSigner("")
	if s.Verify("o", "p", s.Sign("o", "p")) {
		t.Error("empty secret must not verify")
	}
}

func TestMinorUnits(t *testing.T) {
	t.Parallel()

	if got := minorUnits(decimal.RequireFromString("84.5")); got != 8450 {
		t.Errorf("expected 8450, got %d", got)
	}
}

func TestMockGateway(t *testing.T) {
	t.Parallel()

	g := NewMockGateway("k")
	ctx := context.Background()

	if _, err := g.CreateOrder(ctx, decimal.Zero); err == nil {
		t.Error("zero order should fail")
	}
	ref, err := g.CreateOrder(ctx, decimal.NewFromInt(84))
	if err != nil || ref == "" {
		t.Fatalf("unexpected order result %q %v", ref, err)
	}

	g.DeclinePayouts = true
	if _, err := g.Payout(ctx, "acct", decimal.NewFromInt(10), "driver"); !errors.Is(err, ErrPayoutDeclined) {
		t.Errorf("expected ErrPayoutDeclined, got %v", err)
	}
}
