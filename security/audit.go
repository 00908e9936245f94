package security

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"

	"github.com/joelmoran101/chartstore/internal/util"
)

const (
	// hostLogLength caps logged Host header values. Hostnames are at most
	// 253 bytes; anything longer is an attack payload we do not want in
	// log storage.
	hostLogLength = 128

	// reasonLogLength caps logged failure reasons, which can embed
	// user-supplied field names.
	reasonLogLength = 256
)

// Auditor logs security events with client identifiers hashed. Client IPs
// are PII under most privacy regimes, so the audit trail carries a truncated
// SHA-256 of the IP instead of the address itself; correlation works, raw
// addresses do not leak into log storage.
type Auditor struct {
	logger  *slog.Logger
	enabled bool
}

// NewAuditor creates a new security auditor
func NewAuditor(logger *slog.Logger, enabled bool) *Auditor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Auditor{
		logger:  logger,
		enabled: enabled,
	}
}

// AuditEvent represents a security audit event
type AuditEvent struct {
	Type      string
	ClientIP  string
	RequestID string
	Details   map[string]any
	Timestamp time.Time
}

// LogEvent logs a security event with the client IP hashed
func (a *Auditor) LogEvent(event AuditEvent) {
	if !a.enabled {
		return
	}

	event.Timestamp = time.Now()

	a.logger.Info("security_audit",
		"event_type", event.Type,
		"client_ip_hash", hashForLogging(event.ClientIP),
		"request_id", event.RequestID,
		"details", event.Details,
		"timestamp", event.Timestamp,
	)
}

// LogCSRFFailure logs a failed CSRF validation on a mutating request
func (a *Auditor) LogCSRFFailure(clientIP, requestID, reason string) {
	a.LogEvent(AuditEvent{
		Type:      EventCSRFValidationFailed,
		ClientIP:  clientIP,
		RequestID: requestID,
		Details: map[string]any{
			"reason": reason,
		},
	})
}

// LogRateLimitExceeded logs a rejected request from a rate-limited client
func (a *Auditor) LogRateLimitExceeded(clientIP, requestID string) {
	a.LogEvent(AuditEvent{
		Type:      EventRateLimitExceeded,
		ClientIP:  clientIP,
		RequestID: requestID,
	})
}

// LogValidationFailure logs a rejected payload
func (a *Auditor) LogValidationFailure(clientIP, requestID, model, reason string) {
	a.LogEvent(AuditEvent{
		Type:      EventValidationFailed,
		ClientIP:  clientIP,
		RequestID: requestID,
		Details: map[string]any{
			"model":  model,
			"reason": util.SafeTruncate(reason, reasonLogLength),
		},
	})
}

// LogInvalidHostHeader logs a request rejected by the trusted-host check
func (a *Auditor) LogInvalidHostHeader(clientIP, requestID, host string) {
	a.LogEvent(AuditEvent{
		Type:      EventInvalidHostHeader,
		ClientIP:  clientIP,
		RequestID: requestID,
		Details: map[string]any{
			"host": util.SafeTruncate(host, hostLogLength),
		},
	})
}

// hashForLogging creates a truncated SHA-256 hash of sensitive data for
// logging
func hashForLogging(sensitive string) string {
	if sensitive == "" {
		return "<empty>"
	}
	hash := sha256.Sum256([]byte(sensitive))
	return hex.EncodeToString(hash[:])[:16]
}
