package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"ridecore/internal/domain"
	"ridecore/internal/service"
)

// PaymentHandler handles HTTP requests for payments.
type PaymentHandler struct {
	paymentService *service.PaymentService
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(paymentService *service.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService}
}

// ConfirmPaymentRequest is the gateway callback body.
type ConfirmPaymentRequest struct {
	OrderRef   string `json:"order_ref"`
	PaymentRef string `json:"payment_ref"`
	Signature  string `json:"signature"`
}

// PaymentResponse is the HTTP response for payment operations.
type PaymentResponse struct {
	ID         string          `json:"id"`
	RideID     string          `json:"ride_id"`
	Type       string          `json:"type"`
	Amount     decimal.Decimal `json:"amount"`
	Status     string          `json:"status"`
	OrderRef   string          `json:"order_ref,omitempty"`
	PaymentRef string          `json:"payment_ref,omitempty"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

func toPaymentResponse(p *domain.Payment) PaymentResponse {
	return PaymentResponse{
		ID:         p.ID,
		RideID:     p.RideID,
		Type:       string(p.Type),
		Amount:     p.Amount,
		Status:     string(p.Status),
		OrderRef:   p.OrderRef,
		PaymentRef: p.PaymentRef,
		UpdatedAt:  p.UpdatedAt,
	}
}

// ConfirmPayment handles POST /v1/payments/confirm
func (h *PaymentHandler) ConfirmPayment(c *gin.Context) {
	var req ConfirmPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	payment, err := h.paymentService.ConfirmPayment(c.Request.Context(), service.ConfirmPaymentRequest{
		OrderRef:   req.OrderRef,
		PaymentRef: req.PaymentRef,
		Signature:  req.Signature,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toPaymentResponse(payment))
}

// GetRidePayment handles GET /v1/rides/:id/payment
func (h *PaymentHandler) GetRidePayment(c *gin.Context) {
	payment, err := h.paymentService.GetByRide(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toPaymentResponse(payment))
}

// ReceiptResponse is the HTTP response for a ride receipt.
type ReceiptResponse struct {
	ID              string                `json:"id"`
	RideID          string                `json:"ride_id"`
	RiderID         string                `json:"rider_id"`
	DriverID        string                `json:"driver_id"`
	Pickup          domain.Point          `json:"pickup"`
	Drop            domain.Point          `json:"drop"`
	VehicleTier     string                `json:"vehicle_tier"`
	DistanceKm      float64               `json:"distance_km"`
	Fare            domain.FareBreakdown  `json:"fare"`
	Reward          domain.CustomerReward `json:"reward"`
	PaymentType     string                `json:"payment_type"`
	PaymentStatus   string                `json:"payment_status"`
	DurationMinutes int                   `json:"duration_minutes"`
	CompletedAt     time.Time             `json:"completed_at"`
	IssuedAt        time.Time             `json:"issued_at"`
}

// Receipt handles GET /v1/rides/:id/receipt. ?format=text renders it for print.
func (h *PaymentHandler) Receipt(c *gin.Context) {
	r, err := h.paymentService.Receipt(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if c.Query("format") == "text" {
		c.String(http.StatusOK, service.FormatReceipt(r))
		return
	}
	respondJSON(c, http.StatusOK, ReceiptResponse{
		ID:              r.ID,
		RideID:          r.RideID,
		RiderID:         r.RiderID,
		DriverID:        r.DriverID,
		Pickup:          r.Pickup,
		Drop:            r.Drop,
		VehicleTier:     string(r.VehicleTier),
		DistanceKm:      r.DistanceKm,
		Fare:            r.Fare,
		Reward:          r.Reward,
		PaymentType:     string(r.PaymentType),
		PaymentStatus:   string(r.PaymentStatus),
		DurationMinutes: int(r.Duration.Minutes()),
		CompletedAt:     r.CompletedAt,
		IssuedAt:        r.IssuedAt,
	})
}
