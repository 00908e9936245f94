// Package security provides the cross-cutting security components for the
// chartstore server: CSRF token lifecycle, sliding-window rate limiting,
// client IP derivation, request IDs, security headers, and audit logging.
//
// # CSRF Tokens
//
// TokenStore implements the double-submit cookie scheme. GET /csrf-token
// issues a 64-hex-character token that the server sets as the XSRF-TOKEN
// cookie; clients echo it back in the X-CSRF-Token header on every mutating
// request. Validate checks presence, byte equality and freshness (24h TTL by
// default). Expired entries are swept opportunistically on issue; tokens
// live in process memory and do not survive restarts.
//
// # Rate Limiting
//
// RateLimiter is a sliding-window limiter keyed by client IP: each client
// gets a budget of requests per trailing window (100 per 60s by default),
// and rejected requests are not recorded, so a blocked client's window
// drains at the normal rate.
//
// ## Memory Management
//
// To prevent unbounded growth under distributed attacks, the limiter caps
// the number of tracked clients. At capacity the least recently used entry
// is evicted, and a background loop removes entries idle past the window.
//
// Default configuration:
//   - MaxClients: 10,000 unique client keys
//   - CleanupInterval: 1 minute
//   - Window: 60 seconds
//
// ## Example Usage
//
//	limiter := security.NewRateLimiter(logger)
//	defer limiter.Stop()
//
//	key := security.GetClientIP(r, cfg.TrustProxy, cfg.TrustedProxyCount)
//	if key == "" {
//		key = security.UnknownClientKey
//	}
//	if !limiter.Allow(key) {
//		// Rate limit exceeded
//		return http.StatusTooManyRequests
//	}
//
//	// Monitor memory usage
//	stats := limiter.GetStats()
//	if stats.MemoryPressure > 80.0 {
//		logger.Warn("Rate limiter memory pressure high",
//			"pressure", stats.MemoryPressure,
//			"current_clients", stats.CurrentClients,
//			"max_clients", stats.MaxClients)
//	}
//
// # Client IPs
//
// GetClientIP reads RemoteAddr by default and honors X-Forwarded-For and
// X-Real-IP only when the caller enables proxy trust with an explicit
// trusted proxy count. Requests whose IP cannot be derived share the
// UnknownClientKey rate limit bucket.
//
// # Audit Logging
//
// Auditor writes structured security events (CSRF failures, rate limit
// rejections, validation failures, host header rejections) with client IPs
// hashed before they reach log storage. Event type constants live in
// events.go.
package security
