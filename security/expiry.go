package security

import "time"

const (
	// DefaultClockSkewGracePeriod is the grace period applied to token
	// expiration checks. It absorbs small clock differences between the
	// machine that issued a token and the one validating it, at the cost
	// of tokens staying usable a few seconds beyond their nominal TTL.
	DefaultClockSkewGracePeriod = 5 * time.Second
)

// IsTokenExpired reports whether a token issued at issuedAt has outlived ttl,
// using the default clock skew grace period.
//
// A zero issuedAt reads as issued at the epoch and is therefore always
// expired; unknown tokens look exactly like long-expired ones.
func IsTokenExpired(issuedAt time.Time, ttl time.Duration) bool {
	return IsTokenExpiredWithGracePeriod(issuedAt, ttl, DefaultClockSkewGracePeriod)
}

// IsTokenExpiredWithGracePeriod reports whether a token issued at issuedAt
// has outlived ttl plus a custom grace period.
func IsTokenExpiredWithGracePeriod(issuedAt time.Time, ttl, gracePeriod time.Duration) bool {
	return time.Now().After(issuedAt.Add(ttl).Add(gracePeriod))
}
