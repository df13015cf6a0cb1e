package api

import (
	"errors"
	"fmt"
)

// ErrorType represents the category of an API error. The category
// decides the retry behavior; the numeric code decides the category.
type ErrorType string

const (
	// ErrorTypeAuth covers invalid credentials and identity-endpoint
	// failures. Never retried automatically.
	ErrorTypeAuth ErrorType = "auth_error"

	// ErrorTypeTransient covers rate limiting, server overload, and
	// mid-flight token expiry. Retried per policy.
	ErrorTypeTransient ErrorType = "transient_error"

	// ErrorTypeFatal covers malformed requests, permission denials,
	// and unsupported models. Never retried.
	ErrorTypeFatal ErrorType = "fatal_request_error"

	// ErrorTypeStreamDecode covers malformed SSE framing or an
	// unparseable payload inside a frame. Terminates the stream.
	ErrorTypeStreamDecode ErrorType = "stream_decode_error"

	// ErrorTypeTimeout means the overall call budget was exceeded,
	// whether waiting on the limiter, the connection, or retries.
	ErrorTypeTimeout ErrorType = "timeout_error"
)

// APIError is the structured error surfaced by every layer of the
// client. Code and Message always carry the platform's original values
// so callers can branch on provider-specific codes after retry
// exhaustion.
type APIError struct {
	Type    ErrorType `json:"type"`
	Code    int       `json:"error_code,omitempty"`
	Message string    `json:"error_msg"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s: %s (error_code: %d)", e.Type, e.Message, e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// ErrorPayload is the platform's JSON error body, both as a full
// non-streaming response and embedded in SSE data frames.
type ErrorPayload struct {
	ErrorCode int    `json:"error_code"`
	ErrorMsg  string `json:"error_msg"`
}

// Classify converts a platform error payload into a typed APIError.
// Classification happens once, at the boundary where the payload is
// observed; the retry layer only consults the result.
func Classify(code int, message string) *APIError {
	switch code {
	case CodePermissionDenied, CodeNoPermissionToAPI, CodeInvalidArgument,
		CodeInvalidAPIKey, CodeUnsupportedModel, CodeUnsupportedMethod:
		return &APIError{Type: ErrorTypeFatal, Code: code, Message: message}
	case CodeInvalidAccessToken:
		return &APIError{Type: ErrorTypeAuth, Code: code, Message: message}
	default:
		if _, ok := defaultRetryable[code]; ok {
			return &APIError{Type: ErrorTypeTransient, Code: code, Message: message}
		}
		return &APIError{Type: ErrorTypeFatal, Code: code, Message: message}
	}
}

// NewAuthError creates an APIError for credential or identity failures.
func NewAuthError(message string) *APIError {
	return &APIError{Type: ErrorTypeAuth, Message: message}
}

// NewTransientError creates an APIError for retriable service failures.
func NewTransientError(code int, message string) *APIError {
	return &APIError{Type: ErrorTypeTransient, Code: code, Message: message}
}

// NewFatalError creates an APIError for non-retriable request failures.
func NewFatalError(code int, message string) *APIError {
	return &APIError{Type: ErrorTypeFatal, Code: code, Message: message}
}

// NewStreamDecodeError creates an APIError for broken SSE framing or
// payload decoding.
func NewStreamDecodeError(message string) *APIError {
	return &APIError{Type: ErrorTypeStreamDecode, Message: message}
}

// NewTimeoutError creates an APIError for an exceeded call budget.
func NewTimeoutError(message string) *APIError {
	return &APIError{Type: ErrorTypeTimeout, Message: message}
}

// IsTransient reports whether err is an APIError classified as
// transient.
func IsTransient(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Type == ErrorTypeTransient
}

// AsAPIError unwraps err to an *APIError if one is in its chain.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
