package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	apperrors "github.com/jwalitptl/checkin-kiosk/pkg/errors"
)

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Code           int               `json:"code"`
	Message        string            `json:"message"`
	TraceID        string            `json:"trace_id,omitempty"`
	UpstreamStatus int               `json:"upstream_status,omitempty"`
	Errors         []ValidationError `json:"errors,omitempty"`
}

// ErrorHandler renders the last error a handler attached with c.Error.
// Unauthenticated requests are sent to loginPath to authorize again.
func ErrorHandler(loginPath string) gin.HandlerFunc {
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

		if c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		if apperrors.IsUnauthenticated(err) {
			c.Redirect(http.StatusFound, loginPath)
			return
		}

		status := http.StatusInternalServerError
		var coded interface{ StatusCode() int }
		if errors.As(err, &coded) {
			status = coded.StatusCode()
		}

		resp := ErrorResponse{
			Code:    status,
			Message: publicMessage(err, status),
			TraceID: traceID,
			Errors:  validationErrors(err),
		}
		if upErr, ok := apperrors.AsUpstream(err); ok {
			resp.UpstreamStatus = upErr.Status
		}
		c.JSON(status, resp)
	}
}

// publicMessage never exposes wrapped causes; they may carry upstream bodies.
func publicMessage(err error, status int) string {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	if _, ok := apperrors.AsUpstream(err); ok {
		return "clinical API request failed"
	}
	return http.StatusText(status)
}
