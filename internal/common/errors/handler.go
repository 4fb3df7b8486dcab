// internal/common/errors/handler.go
package errors

import (
	"github.com/gin-gonic/gin"
)

type Logger interface {
	Error(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
}

// ErrorHandler writes StandardErrors as JSON responses.
type ErrorHandler struct {
	logger Logger
}

func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// Respond normalizes err, logs it, and writes the
// {success:false, message, error, fields?} body with the mapped status.
func (h *ErrorHandler) Respond(c *gin.Context, event string, err error) {
	stdErr := As(err)
	status := stdErr.HTTPStatus()

	fields := map[string]interface{}{
		"event":         event,
		"errorCode":     string(stdErr.Code),
		"errorCategory": GetErrorCategory(stdErr.Code),
		"details":       stdErr.Details,
		"retryable":     stdErr.Retryable,
		"statusCode":    status,
		"route":         c.FullPath(),
	}
	if status >= 500 {
		h.logger.Error(stdErr.Message, fields)
	} else {
		h.logger.Warn(stdErr.Message, fields)
	}

	body := gin.H{
		"success": false,
		"message": stdErr.Message,
		"error":   errorText(stdErr),
	}
	if len(stdErr.Fields) > 0 {
		body["fields"] = stdErr.Fields
	}
	c.AbortWithStatusJSON(status, body)
}

func errorText(e *StandardError) string {
	if e.Details != "" {
		return e.Details
	}
	return e.Message
}
