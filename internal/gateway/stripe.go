package gateway

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	stripe "github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/paymentintent"
	"github.com/stripe/stripe-go/v74/transfer"
)

// StripeGateway creates orders as PaymentIntents and pays drivers out with Transfers.
type StripeGateway struct {
	currency string
	signer   Signer
}

// NewStripeGateway configures stripe-go with apiKey.
func NewStripeGateway(apiKey, signingSecret, currency string) *StripeGateway {
	stripe.Key = apiKey
	return &StripeGateway{currency: currency, signer: NewSigner(signingSecret)}
}

// CreateOrder opens a PaymentIntent for amount and returns its ID as the order reference.
func (g *StripeGateway) CreateOrder(ctx context.Context, amount decimal.Decimal) (string, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(minorUnits(amount)),
		Currency: stripe.String(g.currency),
	}
	params.Context = ctx
	pi, err := paymentintent.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe create payment intent: %w", err)
	}
	return pi.ID, nil
}

// VerifySignature checks the signature the client relays after paying.
func (g *StripeGateway) VerifySignature(orderRef, paymentRef, signature string) bool {
	return g.signer.Verify(orderRef, paymentRef, signature)
}

// Payout transfers amount to the connected account.
func (g *StripeGateway) Payout(ctx context.Context, account string, amount decimal.Decimal, beneficiary string) (PayoutResult, error) {
	params := &stripe.TransferParams{
		Amount:      stripe.Int64(minorUnits(amount)),
		Currency:    stripe.String(g.currency),
		Destination: stripe.String(account),
	}
	params.Context = ctx
	params.AddMetadata("beneficiary", beneficiary)

	tr, err := transfer.New(params)
	if err != nil {
		return PayoutResult{}, fmt.Errorf("stripe transfer: %w", err)
	}
	return PayoutResult{Success: true, PayoutID: tr.ID}, nil
}
