package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	apperrors "github.com/havenloop/dispatch-api/pkg/errors"
)

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	TraceID string `json:"trace_id,omitempty"`
}

func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		traceID := c.GetString(ContextRequestID)

		for _, e := range c.Errors {
			log.Error().
				Err(e.Err).
				Str("request_id", traceID).
				Str("path", c.Request.URL.Path).
				Str("method", c.Request.Method).
				Msg("Request error")
		}

		lastErr := c.Errors.Last()
		c.JSON(statusFor(lastErr.Err), ErrorResponse{
			Code:    statusFor(lastErr.Err),
			Message: lastErr.Error(),
			TraceID: traceID,
		})
	}
}

func statusFor(err error) int {
	switch {
	case apperrors.HasCode(err, apperrors.ErrNotFound):
		return http.StatusNotFound
	case apperrors.HasCode(err, apperrors.ErrBadRequest),
		apperrors.HasCode(err, apperrors.ErrInvalidAddress):
		return http.StatusBadRequest
	case apperrors.HasCode(err, apperrors.ErrNoEligibleContacts):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
