package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"ridecore/internal/repository"
	"ridecore/internal/service"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// respondError sends an error response with the appropriate HTTP status code.
func respondError(c *gin.Context, err error) {
	code := mapErrorToHTTPStatus(err)
	if code >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.JSON(code, ErrorResponse{Error: err.Error()})
}

// respondJSON sends a JSON response with the given status code.
func respondJSON(c *gin.Context, code int, data any) {
	c.JSON(code, data)
}

// badRequest rejects a body that could not be decoded.
func badRequest(c *gin.Context) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
}

// mapErrorToHTTPStatus maps service/repository errors to HTTP status codes.
func mapErrorToHTTPStatus(err error) int {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound

	case errors.Is(err, service.ErrValidation),
		errors.Is(err, service.ErrInvalidOTP):
		return http.StatusBadRequest

	case errors.Is(err, service.ErrForbidden),
		errors.Is(err, service.ErrSignatureMismatch):
		return http.StatusForbidden

	case errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrRideNotPaid),
		errors.Is(err, service.ErrRideBusy):
		return http.StatusConflict

	case errors.Is(err, service.ErrInsufficientBalance):
		return http.StatusPaymentRequired

	case errors.Is(err, service.ErrNoFareRule):
		return http.StatusUnprocessableEntity

	case errors.Is(err, service.ErrExternalService):
		return http.StatusBadGateway

	case errors.Is(err, service.ErrNoDriverAvailable),
		errors.Is(err, service.ErrConcurrencyTimeout):
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}

// limitParam reads ?limit= and falls back to zero (the service default).
func limitParam(c *gin.Context) int {
	n, err := strconv.Atoi(c.Query("limit"))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
