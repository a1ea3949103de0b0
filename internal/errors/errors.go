package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	ErrorTypeValidation        ErrorType = "validation"
	ErrorTypeBusy              ErrorType = "busy"
	ErrorTypeMissingCredential ErrorType = "missing_credential"
	ErrorTypeUpstream          ErrorType = "upstream"
	ErrorTypeUnparseable       ErrorType = "unparseable"
	ErrorTypeNetwork           ErrorType = "network"
	ErrorTypeTimeout           ErrorType = "timeout"
	ErrorTypeInternal          ErrorType = "internal"
)

// Messages surfaced verbatim to the user.
const (
	MsgMissingCredential = "missing credential"
	MsgUnparseable       = "Failed to parse analysis results"
	MsgBusy              = "an analysis is already in progress"
)

// AppError represents a structured application error
type AppError struct {
	Type       ErrorType `json:"type"`
	Message    string    `json:"message"`
	Details    string    `json:"details,omitempty"`
	StatusCode int       `json:"status_code"`
	Cause      error     `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches any AppError of the same type, so sentinel comparisons work
// through wrapping.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && t.Type == e.Type && (t.Message == "" || t.Message == e.Message)
}

func newError(t ErrorType, status int, message string, cause error) *AppError {
	return &AppError{Type: t, Message: message, StatusCode: status, Cause: cause}
}

// NewValidationError creates a new validation error
func NewValidationError(message string, cause error) *AppError {
	return newError(ErrorTypeValidation, http.StatusBadRequest, message, cause)
}

// NewBusyError reports a submit attempted while another request is in flight.
func NewBusyError() *AppError {
	return newError(ErrorTypeBusy, http.StatusConflict, MsgBusy, nil)
}

// NewMissingCredentialError is returned by a live backend with no API key.
func NewMissingCredentialError() *AppError {
	return newError(ErrorTypeMissingCredential, http.StatusServiceUnavailable, MsgMissingCredential, nil)
}

// NewUpstreamError wraps a transport or service failure from the model
// provider. The message is the underlying one so the user sees it as is.
func NewUpstreamError(cause error) *AppError {
	msg := "analysis service error"
	if cause != nil {
		msg = cause.Error()
	}
	return newError(ErrorTypeUpstream, http.StatusBadGateway, msg, cause)
}

// NewUnparseableError reports a JSON-shaped reply that could not be decoded.
func NewUnparseableError(cause error) *AppError {
	e := newError(ErrorTypeUnparseable, http.StatusUnprocessableEntity, MsgUnparseable, cause)
	if cause != nil {
		e.Details = cause.Error()
	}
	return e
}

// NewNetworkError creates a new network error
func NewNetworkError(message string, cause error) *AppError {
	return newError(ErrorTypeNetwork, http.StatusBadGateway, message, cause)
}

// NewTimeoutError creates a new timeout error
func NewTimeoutError(message string, cause error) *AppError {
	return newError(ErrorTypeTimeout, http.StatusGatewayTimeout, message, cause)
}

// NewInternalError creates a new internal error
func NewInternalError(message string, cause error) *AppError {
	return newError(ErrorTypeInternal, http.StatusInternalServerError, message, cause)
}

// IsType checks if the error is of a specific type
func IsType(err error, errorType ErrorType) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == errorType
	}
	return false
}

// GetStatusCode extracts the HTTP status code from an error
func GetStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}
	return http.StatusInternalServerError
}

// TypeOf returns the error type, or internal for foreign errors.
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ErrorTypeInternal
}

// UserMessage is the single displayable line for a failure.
func UserMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
