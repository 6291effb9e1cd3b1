package handlers

import (
	"errors"
	"net/http"

	"settlement-backend/internal/repository"
	"settlement-backend/internal/services"

	"github.com/gin-gonic/gin"
)

// HealthCheckHandler reports service liveness.
// GET /health
func HealthCheckHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "settlement-backend",
		"api":     "healthy",
	})
}

// writeServiceError maps service errors onto HTTP statuses. Anything not in
// the taxonomy is a 500.
func writeServiceError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrInvalidAmount):
		status = http.StatusBadRequest
	case errors.Is(err, services.ErrTokenNotWhitelisted),
		errors.Is(err, services.ErrDecimalsMismatch):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, services.ErrTransferFailed),
		errors.Is(err, services.ErrInsufficientAvailable),
		errors.Is(err, services.ErrInsufficientCustody):
		status = http.StatusConflict
	case errors.Is(err, services.ErrUnmappedToken),
		errors.Is(err, services.ErrMappingNotFound),
		errors.Is(err, services.ErrTokenNotFound),
		errors.Is(err, services.ErrChainNotRegistered),
		errors.Is(err, services.ErrDestinationNotConfigured),
		errors.Is(err, repository.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, services.ErrMappingExists),
		errors.Is(err, services.ErrTokenExists),
		errors.Is(err, repository.ErrDuplicate):
		status = http.StatusConflict
	case errors.Is(err, services.ErrUnauthorizedSender):
		status = http.StatusForbidden
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
