package handler

import (
	"errors"
	"net/http"

	"crewdesk/internal/transport/httpdto"
	crewdesk_errors "crewdesk/pkg/errors"

	"github.com/gin-gonic/gin"
)

// writeError maps domain errors onto HTTP statuses. Failures propagate
// unchanged from the service layer; nothing is retried here.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, crewdesk_errors.ErrNotFound):
		c.JSON(http.StatusNotFound, httpdto.NewErrorResponse(err.Error(), "NOT_FOUND"))
	case errors.Is(err, crewdesk_errors.ErrAlreadyParticipant),
		errors.Is(err, crewdesk_errors.ErrAlreadyExists),
		errors.Is(err, crewdesk_errors.ErrConflict):
		c.JSON(http.StatusConflict, httpdto.NewErrorResponse(err.Error(), "CONFLICT"))
	case errors.Is(err, crewdesk_errors.ErrInvalidInput),
		errors.Is(err, crewdesk_errors.ErrDirectChatImmutable):
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse(err.Error(), "INVALID_REQUEST"))
	case errors.Is(err, crewdesk_errors.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
	case errors.Is(err, crewdesk_errors.ErrRateLimited):
		c.JSON(http.StatusTooManyRequests, httpdto.NewErrorResponse(err.Error(), "RATE_LIMITED"))
	default:
		c.JSON(http.StatusInternalServerError, httpdto.NewErrorResponse(err.Error(), "INTERNAL_ERROR"))
	}
}
