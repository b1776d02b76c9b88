package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/shopspring/decimal"
)

// MockGateway is an in-process gateway for local runs. Orders always open;
// signatures are checked with the same HMAC scheme as production.
type MockGateway struct {
	signer Signer
	seq    atomic.Int64

	// DeclinePayouts makes every payout fail.
	DeclinePayouts bool
}

// NewMockGateway creates a MockGateway signing with secret.
func NewMockGateway(secret string) *MockGateway {
	return &MockGateway{signer: NewSigner(secret)}
}

// CreateOrder returns a sequential mock order reference.
func (g *MockGateway) CreateOrder(_ context.Context, amount decimal.Decimal) (string, error) {
	if !amount.IsPositive() {
		return "", errors.New("order amount must be positive")
	}
	return fmt.Sprintf("mock_order_%d", g.seq.Add(1)), nil
}

// VerifySignature checks an HMAC signature.
func (g *MockGateway) VerifySignature(orderRef, paymentRef, signature string) bool {
	return g.signer.Verify(orderRef, paymentRef, signature)
}

// Payout succeeds unless DeclinePayouts is set.
func (g *MockGateway) Payout(_ context.Context, account string, _ decimal.Decimal, _ string) (PayoutResult, error) {
	if g.DeclinePayouts {
		return PayoutResult{}, ErrPayoutDeclined
	}
	return PayoutResult{Success: true, PayoutID: fmt.Sprintf("mock_payout_%s_%d", account, g.seq.Add(1))}, nil
}
