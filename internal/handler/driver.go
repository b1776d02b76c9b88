package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"ridecore/internal/domain"
	"ridecore/internal/realtime"
	"ridecore/internal/service"
)

// DriverHandler handles HTTP requests for drivers.
type DriverHandler struct {
	driverService   *service.DriverService
	matchingService *service.MatchingService
	paymentService  *service.PaymentService
	hub             *realtime.Hub
}

// NewDriverHandler creates a new DriverHandler.
func NewDriverHandler(
	driverService *service.DriverService,
	matchingService *service.MatchingService,
	paymentService *service.PaymentService,
	hub *realtime.Hub,
) *DriverHandler {
	return &DriverHandler{
		driverService:   driverService,
		matchingService: matchingService,
		paymentService:  paymentService,
		hub:             hub,
	}
}

// UpdateLocationRequest is the HTTP request body for updating driver location.
type UpdateLocationRequest struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// UpdateStatusRequest is the HTTP request body for toggling a driver.
type UpdateStatusRequest struct {
	Online    *bool `json:"online,omitempty"`
	Available *bool `json:"available,omitempty"`
}

// PayoutRequest is the HTTP request body for a driver payout.
type PayoutRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Beneficiary string          `json:"beneficiary"`
}

// DriverStatusResponse is the HTTP response for a status toggle.
type DriverStatusResponse struct {
	ID          string `json:"id"`
	Online      bool   `json:"online"`
	Available   bool   `json:"available"`
	VehicleTier string `json:"vehicle_tier"`
}

// LocationResponse is the HTTP response for a driver location.
type LocationResponse struct {
	DriverID  string    `json:"driver_id"`
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NearestDriverResponse is the HTTP response for the nearest-driver query.
type NearestDriverResponse struct {
	Driver     domain.DriverRef `json:"driver"`
	DistanceKm float64          `json:"distance_km"`
}

// PayoutResponse is the HTTP response for a driver payout.
type PayoutResponse struct {
	PayoutID      string          `json:"payout_id"`
	WalletBalance decimal.Decimal `json:"wallet_balance"`
}

// UpdateLocation handles POST /v1/drivers/:id/location
func (h *DriverHandler) UpdateLocation(c *gin.Context) {
	var req UpdateLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	err := h.driverService.UpdateLocation(c.Request.Context(), service.UpdateLocationRequest{
		DriverID: c.Param("id"),
		Lat:      req.Lat,
		Lng:      req.Lng,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetLocation handles GET /v1/drivers/:id/location
func (h *DriverHandler) GetLocation(c *gin.Context) {
	loc, err := h.driverService.GetLocation(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, LocationResponse{DriverID: loc.DriverID, Lat: loc.Lat, Lng: loc.Lng, UpdatedAt: loc.UpdatedAt})
}

// UpdateStatus handles POST /v1/drivers/:id/status
func (h *DriverHandler) UpdateStatus(c *gin.Context) {
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	person, err := h.driverService.SetStatus(c.Request.Context(), service.SetStatusRequest{
		DriverID:  c.Param("id"),
		Online:    req.Online,
		Available: req.Available,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, DriverStatusResponse{
		ID:          person.ID,
		Online:      person.Driver.Online,
		Available:   person.Driver.Available,
		VehicleTier: string(person.Driver.VehicleTier),
	})
}

// Payout handles POST /v1/drivers/:id/payout
func (h *DriverHandler) Payout(c *gin.Context) {
	var req PayoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	res, err := h.paymentService.DriverPayout(c.Request.Context(), service.PayoutRequest{
		DriverID:    c.Param("id"),
		Amount:      req.Amount,
		Beneficiary: req.Beneficiary,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, PayoutResponse{PayoutID: res.PayoutID, WalletBalance: res.NewBalance})
}

// Nearest handles GET /v1/drivers/nearest?lat=&lng=&tier=
func (h *DriverHandler) Nearest(c *gin.Context) {
	lat, errLat := strconv.ParseFloat(c.Query("lat"), 64)
	lng, errLng := strconv.ParseFloat(c.Query("lng"), 64)
	if errLat != nil || errLng != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "lat and lng query parameters are required"})
		return
	}

	m, err := h.matchingService.GetNearestDriver(c.Request.Context(), lat, lng, domain.VehicleTier(c.Query("tier")))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, NearestDriverResponse{Driver: m.Driver, DistanceKm: m.DistanceKm})
}

// Live handles GET /v1/drivers/live?lat=&lng=&radius_km=
func (h *DriverHandler) Live(c *gin.Context) {
	lat, errLat := strconv.ParseFloat(c.Query("lat"), 64)
	lng, errLng := strconv.ParseFloat(c.Query("lng"), 64)
	if errLat != nil || errLng != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "lat and lng query parameters are required"})
		return
	}
	var radius float64
	if raw := c.Query("radius_km"); raw != "" {
		r, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "radius_km must be a number"})
			return
		}
		radius = r
	}

	locs, err := h.driverService.LiveNearby(c.Request.Context(), lat, lng, radius)
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]LocationResponse, 0, len(locs))
	for _, l := range locs {
		out = append(out, LocationResponse{DriverID: l.DriverID, Lat: l.Lat, Lng: l.Lng, UpdatedAt: l.UpdatedAt})
	}
	respondJSON(c, http.StatusOK, out)
}

// Stream handles GET /v1/drivers/:id/ws
func (h *DriverHandler) Stream(c *gin.Context) {
	if err := h.hub.Serve(c.Writer, c.Request, c.Param("id")); err != nil {
		// The upgrader has already written the error response.
		_ = c.Error(err)
	}
}
