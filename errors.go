package chartstore

import "fmt"

// Error type identifiers returned in the error_type field of API error
// responses. Clients can switch on these instead of parsing detail text.
const (
	ErrorTypeValidation = "validation_error"
	ErrorTypeNotFound   = "not_found"
	ErrorTypeConflict   = "conflict"
	ErrorTypeForbidden  = "forbidden"
	ErrorTypeRateLimit  = "rate_limit_exceeded"
	ErrorTypeStorage    = "storage_error"
)

// APIError represents an error response returned to clients.
type APIError struct {
	// Type is one of the ErrorType* identifiers.
	Type string
	// Detail is the human-readable message placed in the detail field.
	Detail string
	// Status is the HTTP status code for the response.
	Status int
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Detail)
}

// NewAPIError creates a new API error with the given type, detail and
// HTTP status.
func NewAPIError(errType, detail string, status int) *APIError {
	return &APIError{
		Type:   errType,
		Detail: detail,
		Status: status,
	}
}

// Common error constructors.
var (
	// ErrValidation rejects malformed or invalid input (HTTP 422).
	ErrValidation = func(detail string) *APIError {
		return NewAPIError(ErrorTypeValidation, detail, 422)
	}

	// ErrNotFound reports a missing record or chart (HTTP 404).
	ErrNotFound = func(detail string) *APIError {
		return NewAPIError(ErrorTypeNotFound, detail, 404)
	}

	// ErrConflict reports a state conflict such as an item ID collision
	// or an update that changes nothing (HTTP 400).
	ErrConflict = func(detail string) *APIError {
		return NewAPIError(ErrorTypeConflict, detail, 400)
	}

	// ErrForbidden rejects requests that fail CSRF validation (HTTP 403).
	ErrForbidden = func(detail string) *APIError {
		return NewAPIError(ErrorTypeForbidden, detail, 403)
	}

	// ErrRateLimited rejects requests over the per-client rate limit
	// (HTTP 429).
	ErrRateLimited = func(detail string) *APIError {
		return NewAPIError(ErrorTypeRateLimit, detail, 429)
	}

	// ErrStorage reports a backend storage failure without exposing
	// internals to the client (HTTP 500).
	ErrStorage = func(detail string) *APIError {
		return NewAPIError(ErrorTypeStorage, detail, 500)
	}
)
