package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/niaga-platform/service-returns/internal/repository"
	"github.com/niaga-platform/service-returns/internal/services"
)

// respondSuccess writes the standard success envelope.
func respondSuccess(c *gin.Context, status int, data interface{}, message string) {
	c.JSON(status, gin.H{
		"success": true,
		"data":    data,
		"message": message,
	})
}

// respondError writes the standard error envelope.
func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{
		"success": false,
		"message": message,
	})
}

// respondServiceError maps the service error taxonomy onto HTTP status
// codes: missing aggregates are 404, guard and validation failures 400,
// ownership 403, concurrent transitions 409, gateway trouble 502 and
// everything else 500.
func respondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrReturnNotFound),
		errors.Is(err, services.ErrOrderNotFound):
		respondError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrNotOrderOwner):
		respondError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, services.ErrInvalidTransition),
		errors.Is(err, services.ErrSKUNotInOrder),
		errors.Is(err, services.ErrInvalidQuantity),
		errors.Is(err, services.ErrQuantityExceeds),
		errors.Is(err, services.ErrDuplicateReturn),
		errors.Is(err, services.ErrNotEligible):
		respondError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, repository.ErrVersionConflict):
		respondError(c, http.StatusConflict, err.Error())
	case errors.Is(err, services.ErrRefundFailed):
		respondError(c, http.StatusBadGateway, err.Error())
	default:
		respondError(c, http.StatusInternalServerError, "Internal server error")
	}
}
