package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/spoonbill/claims-factoring/internal/application/service"
	"github.com/spoonbill/claims-factoring/internal/domain/lifecycle"
)

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// respondError translates a service failure into an HTTP status.
// Business-rule failures carry their reason to the caller; invariant
// violations and unknown errors stay opaque.
func (h *Handlers) respondError(c *gin.Context, err error) {
	var transition *lifecycle.InvalidTransitionError

	switch {
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, Response{Success: false, Error: err.Error()})
	case errors.Is(err, service.ErrDuplicateClaim),
		errors.Is(err, service.ErrDuplicateEntry),
		errors.Is(err, service.ErrPaymentAlreadyExists):
		c.JSON(http.StatusConflict, Response{Success: false, Error: err.Error()})
	case errors.As(err, &transition):
		c.JSON(http.StatusUnprocessableEntity, Response{Success: false, Error: transition.Reason})
	case service.IsBusinessError(err):
		c.JSON(http.StatusUnprocessableEntity, Response{Success: false, Error: err.Error()})
	case service.IsInvariantViolation(err):
		h.logger.Error("Invariant violation", "error", err)
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "internal accounting error"})
	default:
		h.logger.Error("Unhandled service error", "error", err)
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "internal error"})
	}
}
