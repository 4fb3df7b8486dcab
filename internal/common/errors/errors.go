// Package errors provides the standardized error taxonomy shared by the intake
// and CRM services and its mapping onto HTTP responses.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeValidationFailed     ErrorCode = "VALIDATION_FAILED"
	ErrCodeConflict             ErrorCode = "CONFLICT"
	ErrCodeNotFound             ErrorCode = "NOT_FOUND"
	ErrCodeUpstreamRelayFailed  ErrorCode = "UPSTREAM_RELAY_FAILED"
	ErrCodePersistenceFailed    ErrorCode = "PERSISTENCE_FAILED"
	ErrCodeAuthenticationFailed ErrorCode = "AUTHENTICATION_FAILED"
	ErrCodeInvalidRequest       ErrorCode = "INVALID_REQUEST"
	ErrCodeInternal             ErrorCode = "INTERNAL_ERROR"
)

// FieldError describes one offending input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Fields    []FieldError           `json:"fields,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// Is matches on code so callers can compare against the Err* sentinels below.
func (e *StandardError) Is(target error) bool {
	t, ok := target.(*StandardError)
	if !ok {
		return false
	}
	return t.Code == e.Code && t.Message == ""
}

// HTTPStatus returns the response status for the error's code.
func (e *StandardError) HTTPStatus() int {
	return HTTPStatus(e.Code)
}

// Sentinels for errors.Is checks.
var (
	ErrValidation  = &StandardError{Code: ErrCodeValidationFailed}
	ErrConflict    = &StandardError{Code: ErrCodeConflict}
	ErrNotFound    = &StandardError{Code: ErrCodeNotFound}
	ErrRelay       = &StandardError{Code: ErrCodeUpstreamRelayFailed}
	ErrPersistence = &StandardError{Code: ErrCodePersistenceFailed}
	ErrAuth        = &StandardError{Code: ErrCodeAuthenticationFailed}
)

// NewValidationError creates a non-retryable validation error listing the offending fields.
func NewValidationError(fields []FieldError) *StandardError {
	names := make([]string, 0, len(fields))
	for _, f := range fields {
		names = append(names, f.Field)
	}
	return &StandardError{
		Code:      ErrCodeValidationFailed,
		Message:   "Application data validation failed",
		Details:   fmt.Sprintf("invalid fields: %s", strings.Join(names, ", ")),
		Retryable: false,
		Fields:    fields,
		Timestamp: time.Now().UTC(),
	}
}

// NewConflictError creates a non-retryable unique identifier collision error.
func NewConflictError(field, value string) *StandardError {
	return &StandardError{
		Code:      ErrCodeConflict,
		Message:   "Application already exists",
		Details:   fmt.Sprintf("%s: %s", field, value),
		Retryable: false,
		Fields:    []FieldError{{Field: field, Message: "already exists", Code: "DUPLICATE"}},
		Timestamp: time.Now().UTC(),
	}
}

// NewNotFoundError creates a non-retryable lookup miss.
func NewNotFoundError(id string) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotFound,
		Message:   "Application not found",
		Details:   fmt.Sprintf("id: %s", id),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewUpstreamRelayError creates a retryable webhook delivery failure.
func NewUpstreamRelayError(statusCode int, reason string) *StandardError {
	return &StandardError{
		Code:      ErrCodeUpstreamRelayFailed,
		Message:   "Webhook delivery failed",
		Details:   reason,
		Retryable: true,
		Metadata:  map[string]interface{}{"statusCode": statusCode},
		Timestamp: time.Now().UTC(),
	}
}

// NewPersistenceError creates a retryable store-level failure.
func NewPersistenceError(op string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodePersistenceFailed,
		Message:   fmt.Sprintf("Error %s", op),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewAuthenticationError creates a non-retryable auth failure.
func NewAuthenticationError(message string) *StandardError {
	return &StandardError{
		Code:      ErrCodeAuthenticationFailed,
		Message:   message,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidRequestError covers malformed bodies and query strings.
func NewInvalidRequestError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidRequest,
		Message:   "Invalid request",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// HTTPStatus maps an error code to the status returned to API callers.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeValidationFailed, ErrCodeInvalidRequest:
		return http.StatusBadRequest
	case ErrCodeConflict:
		return http.StatusConflict
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeAuthenticationFailed:
		return http.StatusUnauthorized
	case ErrCodeUpstreamRelayFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// As normalizes any error into a StandardError.
func As(err error) *StandardError {
	if err == nil {
		return nil
	}
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// IsRetryable reports whether a caller may safely repeat the operation.
func IsRetryable(err error) bool {
	if stdErr := As(err); stdErr != nil {
		return stdErr.Retryable
	}
	return false
}

// GetErrorCategory returns the category of the error code, used as a metrics label.
func GetErrorCategory(code ErrorCode) string {
	switch code {
	case ErrCodeValidationFailed, ErrCodeInvalidRequest:
		return "VALIDATION"
	case ErrCodeConflict, ErrCodeNotFound, ErrCodePersistenceFailed:
		return "DATABASE"
	case ErrCodeUpstreamRelayFailed:
		return "RELAY"
	case ErrCodeAuthenticationFailed:
		return "AUTH"
	default:
		return "OTHER"
	}
}
