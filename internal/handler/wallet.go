package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"ridecore/internal/domain"
	"ridecore/internal/service"
)

// WalletHandler handles HTTP requests for wallets.
type WalletHandler struct {
	ledger *service.LedgerService
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(ledger *service.LedgerService) *WalletHandler {
	return &WalletHandler{ledger: ledger}
}

// WalletMutationRequest is the HTTP request body for deposits and withdrawals.
type WalletMutationRequest struct {
	Kind        string          `json:"kind"` // rider (default) or driver
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description,omitempty"`
}

// BalanceResponse is the HTTP response for a wallet balance.
type BalanceResponse struct {
	OwnerID string          `json:"owner_id"`
	Kind    string          `json:"kind"`
	Balance decimal.Decimal `json:"balance"`
}

// PlatformWalletResponse is the HTTP response for the platform wallet.
type PlatformWalletResponse struct {
	Balance         decimal.Decimal `json:"balance"`
	TotalCommission decimal.Decimal `json:"total_commission"`
	TotalGST        decimal.Decimal `json:"total_gst"`
	UpdatedAt       *time.Time      `json:"updated_at,omitempty"`
}

// TransactionResponse is one ledger row.
type TransactionResponse struct {
	ID           string          `json:"id"`
	Type         string          `json:"type"`
	Amount       decimal.Decimal `json:"amount"`
	Description  string          `json:"description"`
	BalanceAfter decimal.Decimal `json:"balance_after"`
	RideID       string          `json:"ride_id,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

func accountKind(kind string) domain.AccountKind {
	if kind == "" {
		return domain.AccountKindRider
	}
	return domain.AccountKind(kind)
}

func (h *WalletHandler) mutate(c *gin.Context, op func(ctx *gin.Context, req service.WalletRequest) (decimal.Decimal, error)) {
	var req WalletMutationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	in := service.WalletRequest{
		OwnerID:     c.Param("owner"),
		Kind:        accountKind(req.Kind),
		Amount:      req.Amount,
		Description: req.Description,
	}
	balance, err := op(c, in)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, BalanceResponse{OwnerID: in.OwnerID, Kind: string(in.Kind), Balance: balance})
}

// Deposit handles POST /v1/wallets/:owner/deposit
func (h *WalletHandler) Deposit(c *gin.Context) {
	h.mutate(c, func(ctx *gin.Context, req service.WalletRequest) (decimal.Decimal, error) {
		return h.ledger.Deposit(ctx.Request.Context(), req)
	})
}

// Withdraw handles POST /v1/wallets/:owner/withdraw
func (h *WalletHandler) Withdraw(c *gin.Context) {
	h.mutate(c, func(ctx *gin.Context, req service.WalletRequest) (decimal.Decimal, error) {
		return h.ledger.Withdraw(ctx.Request.Context(), req)
	})
}

// Balance handles GET /v1/wallets/:owner
func (h *WalletHandler) Balance(c *gin.Context) {
	ref := service.AccountRef{OwnerID: c.Param("owner"), Kind: accountKind(c.Query("kind"))}
	acct, err := h.ledger.Balance(c.Request.Context(), ref)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, BalanceResponse{OwnerID: acct.OwnerID, Kind: string(acct.Kind), Balance: acct.Balance})
}

// Transactions handles GET /v1/wallets/:owner/transactions
func (h *WalletHandler) Transactions(c *gin.Context) {
	ref := service.AccountRef{OwnerID: c.Param("owner"), Kind: accountKind(c.Query("kind"))}
	txns, err := h.ledger.Transactions(c.Request.Context(), ref, limitParam(c))
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]TransactionResponse, 0, len(txns))
	for _, t := range txns {
		out = append(out, TransactionResponse{
			ID:           t.ID,
			Type:         string(t.Type),
			Amount:       t.Amount,
			Description:  t.Description,
			BalanceAfter: t.BalanceAfter,
			RideID:       t.RideID,
			CreatedAt:    t.CreatedAt,
		})
	}
	respondJSON(c, http.StatusOK, out)
}

// Platform handles GET /v1/platform/wallet
func (h *WalletHandler) Platform(c *gin.Context) {
	acct, err := h.ledger.PlatformSummary(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, PlatformWalletResponse{
		Balance:         acct.Balance,
		TotalCommission: acct.TotalCommission,
		TotalGST:        acct.TotalGST,
		UpdatedAt:       timePtr(acct.UpdatedAt),
	})
}
