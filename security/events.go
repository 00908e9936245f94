package security

// Event type constants for security audit logging.
// These constants ensure consistency across the codebase and prevent typos
// when logging security-relevant events.
const (
	// EventCSRFTokenIssued is logged when a new CSRF token is issued
	EventCSRFTokenIssued = "csrf_token_issued"

	// EventCSRFValidationFailed is logged when a mutating request fails
	// CSRF validation (missing, mismatched or expired token)
	EventCSRFValidationFailed = "csrf_validation_failed"

	// EventRateLimitExceeded is logged when a client exceeds its request
	// budget and gets a 429
	EventRateLimitExceeded = "rate_limit_exceeded"

	// EventValidationFailed is logged when a payload is rejected by input
	// validation (forbidden characters, size bounds, unknown fields)
	EventValidationFailed = "validation_failed"

	// EventInvalidHostHeader is logged when a request is rejected by the
	// trusted-host check
	EventInvalidHostHeader = "invalid_host_header"
)
