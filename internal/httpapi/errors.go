package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"voiceagents/internal/calls"
	"voiceagents/internal/campaigns"
	"voiceagents/internal/engine"
	"voiceagents/internal/reporting"
	"voiceagents/internal/telephony"
	"voiceagents/pkg/logger"
)

// writeError maps service errors to status codes. Unknown errors are logged
// and reported as 500 without detail.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, campaigns.ErrNotFound), errors.Is(err, calls.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, campaigns.ErrInvalidArgument), errors.Is(err, calls.ErrInvalidArgument),
		errors.Is(err, campaigns.ErrSourceNotOwned), errors.Is(err, reporting.ErrInvalidRequest):
		status = http.StatusBadRequest
	case errors.Is(err, campaigns.ErrInvalidTransition), errors.Is(err, calls.ErrInvalidTransition),
		errors.Is(err, calls.ErrOutcomeAlreadySet):
		status = http.StatusConflict
	case errors.Is(err, telephony.ErrNoOutboundTrunk):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, engine.ErrCallFailed):
		status = http.StatusBadGateway
	}

	if status == http.StatusInternalServerError {
		logger.FromGin(c).Error("request failed", "err", err)
		c.AbortWithStatusJSON(status, gin.H{"error": "internal error"})
		return
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}
