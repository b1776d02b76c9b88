package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ridecore/internal/service"
)

// UserHandler handles HTTP requests for people.
type UserHandler struct {
	people *service.PeopleService
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(people *service.PeopleService) *UserHandler {
	return &UserHandler{people: people}
}

// PushTokenRequest is the HTTP request body for registering a device token.
type PushTokenRequest struct {
	PushToken string `json:"push_token"`
}

// UserResponse is the HTTP response for a person.
type UserResponse struct {
	ID     string          `json:"id"`
	Name   string          `json:"name"`
	Phone  string          `json:"phone"`
	Email  string          `json:"email,omitempty"`
	Role   string          `json:"role"`
	Driver *DriverResponse `json:"driver,omitempty"`
}

// DriverResponse is the driving profile of a person.
type DriverResponse struct {
	VehicleTier   string `json:"vehicle_tier"`
	PlateNumber   string `json:"plate_number"`
	Online        bool   `json:"online"`
	Available     bool   `json:"available"`
	ApprovalState string `json:"approval_state"`
}

// Get handles GET /v1/users/:id
func (h *UserHandler) Get(c *gin.Context) {
	p, err := h.people.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	resp := UserResponse{ID: p.ID, Name: p.Name, Phone: p.Phone, Email: p.Email, Role: string(p.Role())}
	if d := p.Driver; d != nil {
		resp.Driver = &DriverResponse{
			VehicleTier:   string(d.VehicleTier),
			PlateNumber:   d.PlateNumber,
			Online:        d.Online,
			Available:     d.Available,
			ApprovalState: string(d.ApprovalState),
		}
	}
	respondJSON(c, http.StatusOK, resp)
}

// UpdatePushToken handles PUT /v1/users/:id/push-token
func (h *UserHandler) UpdatePushToken(c *gin.Context) {
	var req PushTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	if err := h.people.UpdatePushToken(c.Request.Context(), c.Param("id"), req.PushToken); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
