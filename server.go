package chartstore

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joelmoran101/chartstore/instrumentation"
	"github.com/joelmoran101/chartstore/internal/util"
	"github.com/joelmoran101/chartstore/security"
	"github.com/joelmoran101/chartstore/storage"
)

// defaultCORSMaxAge is the preflight cache lifetime in seconds.
const defaultCORSMaxAge = 3600

// Default allowlists for local development. Production deployments override
// both through Config.
var (
	defaultAllowedOrigins = []string{"http://localhost:3000", "http://127.0.0.1:3000"}
	defaultAllowedHosts   = []string{"localhost", "127.0.0.1"}
)

// Server implements the chart storage logic (backend-agnostic). It owns the
// per-process security state (CSRF tokens, rate limiter) and coordinates
// document operations against a storage backend.
type Server struct {
	storage         storage.Store
	csrfTokens      *security.TokenStore
	rateLimiter     *security.RateLimiter
	auditor         *security.Auditor
	validator       *validator
	instrumentation *instrumentation.Instrumentation
	logger          *slog.Logger
	config          *Config
}

// NewServer creates a chart storage server backed by store.
func NewServer(store storage.Store, config *Config, logger *slog.Logger) (*Server, error) {
	if store == nil {
		return nil, fmt.Errorf("storage is required")
	}
	if config == nil {
		config = &Config{}
	}

	if logger == nil {
		logger = slog.Default()
	}

	// Apply secure defaults
	config = applySecureDefaults(config, logger)

	return &Server{
		storage:     store,
		csrfTokens:  security.NewTokenStoreWithTTL(config.Security.CSRFTokenTTL, logger),
		rateLimiter: security.NewRateLimiterWithConfig(config.RateLimit.MaxRequestsPerWindow, config.RateLimit.Window, config.RateLimit.MaxClients, logger),
		auditor:     security.NewAuditor(logger, config.Security.EnableAuditLogging),
		validator:   newValidator(config.Validation),
		config:      config,
		logger:      logger,
	}, nil
}

// applySecureDefaults fills unset configuration fields with safe values and
// warns about explicitly weakened settings.
func applySecureDefaults(config *Config, logger *slog.Logger) *Config {
	// Rate limiting defaults
	if config.RateLimit.MaxRequestsPerWindow == 0 {
		config.RateLimit.MaxRequestsPerWindow = security.DefaultMaxRequestsPerWindow
	}
	if config.RateLimit.Window == 0 {
		config.RateLimit.Window = security.DefaultWindow
	}
	if config.RateLimit.MaxClients == 0 {
		config.RateLimit.MaxClients = security.DefaultMaxClients
	}
	if config.RateLimit.TrustedProxyCount == 0 {
		config.RateLimit.TrustedProxyCount = 1
	}

	// CSRF defaults
	if config.Security.CSRFTokenTTL == 0 {
		config.Security.CSRFTokenTTL = security.DefaultTokenTTL
	}

	// Host allowlist: nil means unset, an explicit empty slice disables the
	// check entirely.
	if config.Security.AllowedHosts == nil {
		config.Security.AllowedHosts = defaultAllowedHosts
	}

	// CORS defaults
	if len(config.CORS.AllowedOrigins) == 0 {
		config.CORS.AllowedOrigins = defaultAllowedOrigins
	}
	if config.CORS.MaxAge == 0 {
		config.CORS.MaxAge = defaultCORSMaxAge
	}

	// Validation limits
	if config.Validation.MaxTitleLength == 0 {
		config.Validation.MaxTitleLength = DefaultMaxTitleLength
	}
	if config.Validation.MaxDescriptionLength == 0 {
		config.Validation.MaxDescriptionLength = DefaultMaxDescriptionLength
	}
	if config.Validation.MaxChartTypeLength == 0 {
		config.Validation.MaxChartTypeLength = DefaultMaxChartTypeLength
	}
	if config.Validation.MaxTraces == 0 {
		config.Validation.MaxTraces = DefaultMaxTraces
	}
	if config.Validation.MaxDataBytes == 0 {
		config.Validation.MaxDataBytes = DefaultMaxDataBytes
	}

	// Warn about explicitly weakened settings
	if config.RateLimit.TrustProxy {
		logger.Warn("⚠️  SECURITY NOTICE: Trusting proxy headers",
			"risk", "IP spoofing if proxy is not properly configured",
			"recommendation", "Only enable behind trusted reverse proxies",
			"config", "TrustedProxyCount should match your proxy chain length")
	}
	for _, origin := range config.CORS.AllowedOrigins {
		if origin == "*" {
			logger.Warn("⚠️  SECURITY WARNING: CORS allows any origin",
				"risk", "Credentialed requests can be made from arbitrary sites",
				"recommendation", "List explicit origins in CORS.AllowedOrigins")
		}
	}
	if hostCheckDisabled(config.Security.AllowedHosts) {
		logger.Warn("⚠️  SECURITY WARNING: Host header validation is DISABLED",
			"risk", "DNS rebinding and host header injection attacks",
			"recommendation", "List expected hostnames in Security.AllowedHosts")
	}
	if !config.Security.CSRFCookieSecure && hasNonLoopbackHost(config.Security.AllowedHosts) {
		logger.Warn("⚠️  SECURITY NOTICE: CSRF cookie is not marked Secure",
			"risk", "Token disclosure over plaintext HTTP",
			"recommendation", "Set Security.CSRFCookieSecure when serving behind TLS")
	}

	return config
}

// hostCheckDisabled reports whether the allowlist turns host validation off.
func hostCheckDisabled(allowedHosts []string) bool {
	if len(allowedHosts) == 0 {
		return true
	}
	for _, h := range allowedHosts {
		if h == "*" {
			return true
		}
	}
	return false
}

// hasNonLoopbackHost reports whether the allowlist admits hosts beyond
// loopback, a sign the deployment is reachable from other machines.
func hasNonLoopbackHost(allowedHosts []string) bool {
	for _, h := range allowedHosts {
		if !util.IsLoopbackHostname(h) {
			return true
		}
	}
	return false
}

// SetInstrumentation attaches OpenTelemetry instrumentation to the server.
// Call before NewHandler so the HTTP layer picks up the tracer. Gauge
// registration failures are logged, not fatal; metrics degrade to noop.
func (s *Server) SetInstrumentation(inst *instrumentation.Instrumentation) {
	s.instrumentation = inst
	if inst == nil {
		return
	}
	err := inst.RegisterSecuritySizeCallbacks(
		func() int64 { return int64(s.csrfTokens.Len()) },
		func() int64 { return int64(s.rateLimiter.GetStats().CurrentClients) },
	)
	if err != nil {
		s.logger.Warn("Failed to register security gauges", "error", err)
	}
}

// Instrumentation returns the attached instrumentation, or nil.
func (s *Server) Instrumentation() *instrumentation.Instrumentation {
	return s.instrumentation
}

// Config returns the effective configuration after secure defaults.
func (s *Server) Config() *Config {
	return s.config
}

// Close stops background security loops and releases the storage backend.
func (s *Server) Close(ctx context.Context) error {
	s.rateLimiter.Stop()
	if err := s.storage.Close(ctx); err != nil {
		return fmt.Errorf("closing storage: %w", err)
	}
	return nil
}

// IssueCSRFToken creates a new CSRF token for the double-submit cookie flow.
func (s *Server) IssueCSRFToken(ctx context.Context) (string, error) {
	token, err := s.csrfTokens.Issue()
	if err != nil {
		return "", fmt.Errorf("issuing CSRF token: %w", err)
	}
	if s.instrumentation != nil {
		s.instrumentation.Metrics().RecordCSRFTokenIssued(ctx)
	}
	return token, nil
}

// ValidateCSRF checks the double-submit pair for a mutating request.
func (s *Server) ValidateCSRF(cookieToken, headerToken string) error {
	return s.csrfTokens.Validate(cookieToken, headerToken)
}

// CheckHealth pings the storage backend.
func (s *Server) CheckHealth(ctx context.Context) error {
	if err := s.storage.Ping(ctx); err != nil {
		return fmt.Errorf("storage ping: %w", err)
	}
	return nil
}
