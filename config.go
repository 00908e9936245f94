package chartstore

import "time"

// ExtraFieldPolicy controls how the validator treats JSON keys outside a
// model's declared schema.
type ExtraFieldPolicy int

const (
	// ExtraFieldDefault resolves to the model's built-in behavior:
	// records reject unknown fields, charts preserve them.
	ExtraFieldDefault ExtraFieldPolicy = iota

	// ExtraFieldStrict rejects any unknown field with a validation error.
	ExtraFieldStrict

	// ExtraFieldPermissive accepts unknown fields and preserves them on
	// the stored document.
	ExtraFieldPermissive
)

// String returns a human-readable name for the policy.
func (p ExtraFieldPolicy) String() string {
	switch p {
	case ExtraFieldStrict:
		return "strict"
	case ExtraFieldPermissive:
		return "permissive"
	default:
		return "default"
	}
}

// RateLimitConfig holds rate limiting settings.
type RateLimitConfig struct {
	// MaxRequestsPerWindow is the number of requests each client may
	// make per window (default: 100).
	MaxRequestsPerWindow int

	// Window is the sliding window duration (default: 60 seconds).
	Window time.Duration

	// MaxClients caps the number of tracked client buckets
	// (default: 10000).
	MaxClients int

	// TrustProxy enables reading the client IP from X-Forwarded-For.
	// Only enable when a trusted reverse proxy sets the header,
	// otherwise clients can spoof their IP to evade rate limits
	// (default: false).
	TrustProxy bool

	// TrustedProxyCount is the number of trailing proxies in
	// X-Forwarded-For that are operated by you (default: 1).
	TrustedProxyCount int
}

// SecurityConfig holds CSRF and host validation settings.
type SecurityConfig struct {
	// CSRFTokenTTL is how long issued CSRF tokens stay valid
	// (default: 24 hours).
	CSRFTokenTTL time.Duration

	// CSRFCookieSecure marks the XSRF-TOKEN cookie as Secure so
	// browsers only send it over HTTPS. Enable in production behind
	// TLS (default: false).
	CSRFCookieSecure bool

	// AllowedHosts lists Host header values that requests may carry.
	// Entries of the form "*.example.com" match any subdomain. An
	// empty list or a "*" entry disables host validation
	// (default: localhost, 127.0.0.1).
	AllowedHosts []string

	// EnableAuditLogging emits structured security audit events for
	// CSRF failures, rate limiting and validation failures
	// (default: false).
	EnableAuditLogging bool
}

// CORSConfig holds cross-origin resource sharing settings.
type CORSConfig struct {
	// AllowedOrigins lists origins allowed to make credentialed
	// cross-origin requests. Comparison ignores a trailing slash
	// (default: http://localhost:3000, http://127.0.0.1:3000).
	AllowedOrigins []string

	// DisableCredentials turns off Access-Control-Allow-Credentials.
	// Credentials stay enabled by default because the CSRF cookie
	// must travel with cross-origin requests (default: false).
	DisableCredentials bool

	// MaxAge is the preflight cache lifetime in seconds
	// (default: 3600).
	MaxAge int
}

// ValidationConfig holds input validation limits.
type ValidationConfig struct {
	// MaxTitleLength is the maximum title length in characters
	// (default: 200).
	MaxTitleLength int

	// MaxDescriptionLength is the maximum description length in
	// characters (default: 1000).
	MaxDescriptionLength int

	// MaxChartTypeLength is the maximum chart type length in
	// characters (default: 50).
	MaxChartTypeLength int

	// MaxTraces is the maximum number of traces in a chart's data
	// array (default: 100).
	MaxTraces int

	// MaxDataBytes is the maximum serialized size of a data payload
	// (default: 10 MiB).
	MaxDataBytes int

	// DataExtraFields controls unknown-field handling for generic
	// data records (default: strict).
	DataExtraFields ExtraFieldPolicy

	// ChartExtraFields controls unknown-field handling for chart
	// documents (default: permissive).
	ChartExtraFields ExtraFieldPolicy
}

// Config holds all server configuration.
type Config struct {
	// RateLimit holds rate limiting settings.
	RateLimit RateLimitConfig

	// Security holds CSRF and host validation settings.
	Security SecurityConfig

	// CORS holds cross-origin settings.
	CORS CORSConfig

	// Validation holds input validation limits.
	Validation ValidationConfig
}
