// Package gateway talks to the payment provider: order creation, payouts
// and verification of the provider's payment signatures.
package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"github.com/shopspring/decimal"
)

// ErrPayoutDeclined is returned when the provider refuses a payout.
var ErrPayoutDeclined = errors.New("payout declined by provider")

// PayoutResult is the provider's answer to a payout.
type PayoutResult struct {
	Success  bool   `json:"success"`
	PayoutID string `json:"payout_id"`
}

// Signer computes and checks HMAC-SHA256 payment signatures over "orderRef|paymentRef".
type Signer struct {
	secret []byte
}

// NewSigner creates a Signer for secret.
func NewSigner(secret string) Signer {
	return Signer{secret: []byte(secret)}
}

// Sign returns the hex signature of an order/payment pair.
func (s Signer) Sign(orderRef, paymentRef string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(orderRef + "|" + paymentRef))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature matches the pair. An empty secret never verifies.
func (s Signer) Verify(orderRef, paymentRef, signature string) bool {
	if len(s.secret) == 0 || signature == "" {
		return false
	}
	expected, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(orderRef + "|" + paymentRef))
	return hmac.Equal(mac.Sum(nil), expected)
}

// minorUnits converts a whole-currency amount to the provider's smallest unit.
func minorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}
