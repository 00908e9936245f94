package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const (
	// DefaultTokenTTL is how long an issued CSRF token stays valid
	DefaultTokenTTL = 24 * time.Hour

	// tokenEntropyBytes is the entropy per token. Hex encoding doubles it,
	// so tokens are 64 lowercase hex characters on the wire.
	tokenEntropyBytes = 32
)

// CSRF validation errors. The messages are the wire-level details the
// handlers return on a 403, so callers surface them verbatim.
var (
	// ErrCSRFTokenMissing indicates the cookie or header token was absent.
	ErrCSRFTokenMissing = errors.New("CSRF token missing")

	// ErrCSRFTokenInvalid indicates the cookie and header tokens differ.
	ErrCSRFTokenInvalid = errors.New("Invalid CSRF token")

	// ErrCSRFTokenExpired indicates the token is unknown to the store or
	// older than the TTL.
	ErrCSRFTokenExpired = errors.New("CSRF token expired")
)

// TokenStore issues and validates CSRF tokens for the double-submit cookie
// scheme: the token travels both as the XSRF-TOKEN cookie and the
// X-CSRF-Token header, and mutating requests must present a matching, fresh
// pair. Tokens live in process memory and are lost on restart.
type TokenStore struct {
	mu     sync.Mutex
	tokens map[string]time.Time
	ttl    time.Duration
	logger *slog.Logger
}

// NewTokenStore creates a CSRF token store with the default 24h TTL
func NewTokenStore(logger *slog.Logger) *TokenStore {
	return NewTokenStoreWithTTL(DefaultTokenTTL, logger)
}

// NewTokenStoreWithTTL creates a CSRF token store with a custom TTL
func NewTokenStoreWithTTL(ttl time.Duration, logger *slog.Logger) *TokenStore {
	if logger == nil {
		logger = slog.Default()
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
		logger.Warn("Invalid CSRF token TTL, using default", "ttl", ttl)
	}
	return &TokenStore{
		tokens: make(map[string]time.Time),
		ttl:    ttl,
		logger: logger,
	}
}

// Issue generates a new token, records its issue time and returns it.
// Expired entries are swept opportunistically on each issue; there is no
// background goroutine for token cleanup.
func (s *TokenStore) Issue() (string, error) {
	b := make([]byte, tokenEntropyBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate CSRF token: %w", err)
	}
	token := hex.EncodeToString(b)

	s.mu.Lock()
	s.sweepLocked()
	s.tokens[token] = time.Now()
	s.mu.Unlock()

	return token, nil
}

// Validate checks a cookie/header token pair for a mutating request.
// Returns nil when both tokens are present, equal, known to the store and
// younger than the TTL.
func (s *TokenStore) Validate(cookieToken, headerToken string) error {
	if cookieToken == "" || headerToken == "" {
		return ErrCSRFTokenMissing
	}

	if subtle.ConstantTimeCompare([]byte(cookieToken), []byte(headerToken)) != 1 {
		return ErrCSRFTokenInvalid
	}

	s.mu.Lock()
	// Unknown tokens read as the zero time, which always fails the TTL
	// check below.
	issuedAt := s.tokens[cookieToken]
	s.mu.Unlock()

	if IsTokenExpired(issuedAt, s.ttl) {
		return ErrCSRFTokenExpired
	}

	return nil
}

// Len returns the number of tokens currently tracked
func (s *TokenStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tokens)
}

// sweepLocked removes entries older than the TTL. Must be called with the
// mutex held.
func (s *TokenStore) sweepLocked() {
	removed := 0
	for token, issuedAt := range s.tokens {
		if IsTokenExpired(issuedAt, s.ttl) {
			delete(s.tokens, token)
			removed++
		}
	}
	if removed > 0 {
		s.logger.Debug("Swept expired CSRF tokens",
			"removed", removed,
			"remaining", len(s.tokens))
	}
}
