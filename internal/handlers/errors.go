package handlers

import (
	"errors"
	"net/http"

	"casino-backend/internal/services"

	"github.com/gin-gonic/gin"
)

func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrGameNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrNotOwner):
		return http.StatusForbidden
	case errors.Is(err, services.ErrInvalidTransition),
		errors.Is(err, services.ErrStepPending),
		errors.Is(err, services.ErrStaleSettlement):
		return http.StatusConflict
	case errors.Is(err, services.ErrInvalidBet),
		errors.Is(err, services.ErrInsufficientFunds):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrComputationAborted),
		errors.Is(err, services.ErrConsistency):
		return http.StatusUnprocessableEntity
	case errors.Is(err, services.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, services.ErrDispatchFailed):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func respondError(c *gin.Context, message string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		c.Error(err)
		c.JSON(status, gin.H{"error": message})
		return
	}
	c.JSON(status, gin.H{
		"error":   message,
		"details": err.Error(),
	})
}
