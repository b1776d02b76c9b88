package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"ridecore/internal/domain"
	"ridecore/internal/service"
)

// RideHandler handles HTTP requests for rides.
type RideHandler struct {
	dispatchService *service.DispatchService
	rideService     *service.RideService
	paymentService  *service.PaymentService
}

// NewRideHandler creates a new RideHandler.
func NewRideHandler(dispatchService *service.DispatchService, rideService *service.RideService, paymentService *service.PaymentService) *RideHandler {
	return &RideHandler{
		dispatchService: dispatchService,
		rideService:     rideService,
		paymentService:  paymentService,
	}
}

// BookRideRequest is the HTTP request body for booking a ride.
type BookRideRequest struct {
	RiderID     string        `json:"rider_id"`
	Pickup      domain.Point  `json:"pickup"`
	Drop        *domain.Point `json:"drop,omitempty"`
	DistanceKm  float64       `json:"distance_km,omitempty"`
	VehicleTier string        `json:"vehicle_tier"`
	PickupMode  string        `json:"pickup_mode,omitempty"` // now, later
	PickupTime  *time.Time    `json:"pickup_time,omitempty"`
	PaymentType string        `json:"payment_type,omitempty"` // cod, wallet, gateway
}

// TransitionRequest is the HTTP request body for a driver action on a ride.
type TransitionRequest struct {
	ActorID string `json:"actor_id"`
	Event   string `json:"event"`
	OTP     string `json:"otp,omitempty"`
}

// CancelRideRequest is the HTTP request body for cancelling a ride.
type CancelRideRequest struct {
	ActorID string `json:"actor_id"`
	Reason  string `json:"reason,omitempty"`
}

// RefundRideRequest is the HTTP request body for refunding a ride.
type RefundRideRequest struct {
	Amount          decimal.Decimal `json:"amount"`
	SplitCommission bool            `json:"split_commission"`
	SplitGST        bool            `json:"split_gst"`
	Reason          string          `json:"reason,omitempty"`
}

// RideResponse is the HTTP response for a ride.
type RideResponse struct {
	ID                 string                `json:"id"`
	BookingID          string                `json:"booking_id"`
	RiderID            string                `json:"rider_id"`
	DriverID           string                `json:"driver_id,omitempty"`
	Pickup             domain.Point          `json:"pickup"`
	Drop               domain.Point          `json:"drop"`
	VehicleTier        string                `json:"vehicle_tier"`
	PickupMode         string                `json:"pickup_mode"`
	ScheduledAt        *time.Time            `json:"scheduled_at,omitempty"`
	DistanceKm         float64               `json:"distance_km"`
	Fare               domain.FareBreakdown  `json:"fare"`
	DriverIncentive    int64                 `json:"driver_incentive"`
	CustomerReward     domain.CustomerReward `json:"customer_reward"`
	Status             string                `json:"status"`
	PaymentType        string                `json:"payment_type"`
	Paid               bool                  `json:"paid"`
	CancellationCharge decimal.Decimal       `json:"cancellation_charge"`
	RejectedBy         []string              `json:"rejected_by,omitempty"`
	CreatedAt          time.Time             `json:"created_at"`
	CompletedAt        *time.Time            `json:"completed_at,omitempty"`
	CancelledAt        *time.Time            `json:"cancelled_at,omitempty"`
}

// BookRideResponse adds the start code, shown only to the rider who booked.
type BookRideResponse struct {
	RideResponse
	OTP string `json:"otp"`
}

// CancelRideResponse is the HTTP response for a cancellation.
type CancelRideResponse struct {
	Ride                       RideResponse    `json:"ride"`
	CancellationCharge         decimal.Decimal `json:"cancellation_charge"`
	UserWalletBalance          decimal.Decimal `json:"user_wallet_balance"`
	ChargeStatus               string          `json:"charge_status"`
	RemainingFreeCancellations int             `json:"remaining_free_cancellations"`
}

// RefundRideResponse is the HTTP response for a refund.
type RefundRideResponse struct {
	RideID            string          `json:"ride_id"`
	Amount            decimal.Decimal `json:"amount"`
	UserWalletBalance decimal.Decimal `json:"user_wallet_balance"`
	PaymentStatus     string          `json:"payment_status"`
}

func toRideResponse(r *domain.Ride) RideResponse {
	return RideResponse{
		ID:                 r.ID,
		BookingID:          r.BookingID,
		RiderID:            r.RiderID,
		DriverID:           r.DriverID,
		Pickup:             r.Pickup,
		Drop:               r.Drop,
		VehicleTier:        string(r.VehicleTier),
		PickupMode:         string(r.PickupMode),
		ScheduledAt:        timePtr(r.ScheduledAt),
		DistanceKm:         r.DistanceKm,
		Fare:               r.Fare,
		DriverIncentive:    r.DriverIncentive,
		CustomerReward:     r.CustomerReward,
		Status:             string(r.Status),
		PaymentType:        string(r.PaymentType),
		Paid:               r.Paid,
		CancellationCharge: r.CancellationCharge,
		RejectedBy:         r.RejectedBy,
		CreatedAt:          r.CreatedAt,
		CompletedAt:        timePtr(r.CompletedAt),
		CancelledAt:        timePtr(r.CancelledAt),
	}
}

func toRideResponses(rides []*domain.Ride) []RideResponse {
	out := make([]RideResponse, 0, len(rides))
	for _, r := range rides {
		out = append(out, toRideResponse(r))
	}
	return out
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// BookRide handles POST /v1/rides
func (h *RideHandler) BookRide(c *gin.Context) {
	var req BookRideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	in := service.BookRideRequest{
		RiderID:     req.RiderID,
		Pickup:      req.Pickup,
		Drop:        req.Drop,
		DistanceKm:  req.DistanceKm,
		VehicleTier: domain.VehicleTier(req.VehicleTier),
		PickupMode:  domain.PickupMode(req.PickupMode),
		PaymentType: domain.PaymentType(req.PaymentType),
	}
	if req.PickupTime != nil {
		in.ScheduledAt = *req.PickupTime
	}

	ride, err := h.dispatchService.BookRide(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusCreated, BookRideResponse{RideResponse: toRideResponse(ride), OTP: ride.OTP})
}

// GetRide handles GET /v1/rides/:id
func (h *RideHandler) GetRide(c *gin.Context) {
	ride, err := h.rideService.GetRide(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toRideResponse(ride))
}

// Transition handles POST /v1/rides/:id/transitions
func (h *RideHandler) Transition(c *gin.Context) {
	var req TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	ride, err := h.rideService.Transition(c.Request.Context(), service.TransitionRequest{
		RideID:  c.Param("id"),
		ActorID: req.ActorID,
		Event:   domain.RideEvent(req.Event),
		OTP:     req.OTP,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toRideResponse(ride))
}

// CancelRide handles POST /v1/rides/:id/cancel
func (h *RideHandler) CancelRide(c *gin.Context) {
	var req CancelRideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	res, err := h.rideService.Cancel(c.Request.Context(), service.CancelRideRequest{
		RideID:  c.Param("id"),
		ActorID: req.ActorID,
		Reason:  req.Reason,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, CancelRideResponse{
		Ride:                       toRideResponse(res.Ride),
		CancellationCharge:         res.Charge,
		UserWalletBalance:          res.NewBalance,
		ChargeStatus:               res.ChargeStatus,
		RemainingFreeCancellations: res.RemainingFreeCancellations,
	})
}

// RefundRide handles POST /v1/rides/:id/refund
func (h *RideHandler) RefundRide(c *gin.Context) {
	var req RefundRideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	rideID := c.Param("id")
	res, err := h.paymentService.RefundRide(c.Request.Context(), service.RefundRequest{
		RideID:          rideID,
		Amount:          req.Amount,
		SplitCommission: req.SplitCommission,
		SplitGST:        req.SplitGST,
		Reason:          req.Reason,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, RefundRideResponse{
		RideID:            rideID,
		Amount:            res.Amount,
		UserWalletBalance: res.NewBalance,
		PaymentStatus:     string(res.Payment.Status),
	})
}

// RiderHistory handles GET /v1/riders/:id/rides
func (h *RideHandler) RiderHistory(c *gin.Context) {
	rides, err := h.rideService.RiderHistory(c.Request.Context(), c.Param("id"), limitParam(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toRideResponses(rides))
}

// DriverHistory handles GET /v1/drivers/:id/rides
func (h *RideHandler) DriverHistory(c *gin.Context) {
	rides, err := h.rideService.DriverHistory(c.Request.Context(), c.Param("id"), limitParam(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toRideResponses(rides))
}
