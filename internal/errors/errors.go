package errors

import (
	"errors"
	"net/http"
)

var (
	// ErrValidation is returned when request input is missing or malformed.
	ErrValidation = errors.New("validation failed")
	// ErrConflict is returned when the identifier is already registered.
	ErrConflict = errors.New("conflict")
	// ErrUnauthorized is returned for bad credentials, inactive accounts and missing tokens.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden is returned when a presented token is invalid or expired.
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound is returned when an authenticated user's record is missing.
	ErrNotFound = errors.New("not found")
	// ErrRateLimited is returned when a client exceeded its attempt budget.
	ErrRateLimited = errors.New("rate limited")
)

// DomainError carries a caller-facing message for one of the error kinds above.
type DomainError struct {
	Kind    error
	Message string
	Fields  []string
}

func (e *DomainError) Error() string {
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Kind
}

// New creates a DomainError of the given kind.
func New(kind error, message string) *DomainError {
	return &DomainError{Kind: kind, Message: message}
}

// Validation creates a validation error naming the offending fields.
func Validation(message string, fields ...string) *DomainError {
	return &DomainError{Kind: ErrValidation, Message: message, Fields: fields}
}

// ErrorResponse represents a standardized error response.
type ErrorResponse struct {
	Error  string   `json:"error"`
	Code   string   `json:"code"`
	Fields []string `json:"fields,omitempty"`
}

// HTTPError represents an HTTP error with status code.
type HTTPError struct {
	StatusCode int
	Message    string
	Code       string
	Fields     []string
}

func (e *HTTPError) Error() string {
	return e.Message
}

// NewHTTPError creates a new HTTP error.
func NewHTTPError(statusCode int, message, code string) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		Message:    message,
		Code:       code,
	}
}

// ToErrorResponse converts an HTTPError to ErrorResponse.
func (e *HTTPError) ToErrorResponse() ErrorResponse {
	return ErrorResponse{
		Error:  e.Message,
		Code:   e.Code,
		Fields: e.Fields,
	}
}

// MapErrorToHTTP maps domain errors to HTTP errors.
func MapErrorToHTTP(err error) *HTTPError {
	status, code, ok := classify(err)
	if !ok {
		return NewHTTPError(http.StatusInternalServerError, "internal server error", CodeInternal)
	}

	httpErr := NewHTTPError(status, err.Error(), code)
	var de *DomainError
	if errors.As(err, &de) {
		httpErr.Message = de.Message
		httpErr.Fields = de.Fields
	}
	return httpErr
}

func classify(err error) (int, string, bool) {
	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest, CodeValidation, true
	case errors.Is(err, ErrConflict):
		return http.StatusConflict, CodeConflict, true
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, CodeUnauthorized, true
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, CodeForbidden, true
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, CodeNotFound, true
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, CodeRateLimited, true
	default:
		return 0, "", false
	}
}

// Machine-readable codes carried in ErrorResponse.Code.
const (
	CodeValidation   = "VALIDATION_ERROR"
	CodeConflict     = "CONFLICT"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"
	CodeNotFound     = "NOT_FOUND"
	CodeRateLimited  = "RATE_LIMITED"
	CodeInternal     = "INTERNAL_ERROR"
)

// CodeForStatus picks the code used when only a status is known,
// e.g. for errors raised by the HTTP framework itself.
func CodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return CodeValidation
	case http.StatusUnauthorized:
		return CodeUnauthorized
	case http.StatusForbidden:
		return CodeForbidden
	case http.StatusNotFound:
		return CodeNotFound
	case http.StatusConflict:
		return CodeConflict
	case http.StatusTooManyRequests:
		return CodeRateLimited
	case http.StatusMethodNotAllowed:
		return "METHOD_NOT_ALLOWED"
	case http.StatusRequestEntityTooLarge:
		return "PAYLOAD_TOO_LARGE"
	case http.StatusServiceUnavailable:
		return "SERVICE_UNAVAILABLE"
	default:
		return CodeInternal
	}
}
