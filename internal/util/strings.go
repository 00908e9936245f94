package util

import "strings"

// SafeTruncate safely truncates a string to maxLen bytes without panicking.
// Returns the original string if it's shorter than maxLen, otherwise returns
// the first maxLen bytes. This prevents index out of bounds errors when
// logging user-supplied data like titles or validation failures, where
// only a prefix should be shown.
//
// If maxLen is negative, it's treated as 0 and returns an empty string.
//
// Example:
//
//	SafeTruncate("very-long-user-title-abc123", 8) // Returns: "very-lon"
//	SafeTruncate("short", 10)                      // Returns: "short"
//	SafeTruncate("test", -1)                       // Returns: ""
func SafeTruncate(s string, maxLen int) string {
	if maxLen < 0 {
		return ""
	}
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}

// NormalizeOrigin normalizes an origin for comparison by lowercasing it and
// removing trailing slashes. Browsers send the Origin header without a
// trailing slash, but operators routinely configure allow-lists with one,
// so both forms must compare equal.
//
// Example:
//
//	NormalizeOrigin("http://localhost:3000/")  // Returns: "http://localhost:3000"
//	NormalizeOrigin("HTTP://Localhost:3000")   // Returns: "http://localhost:3000"
func NormalizeOrigin(origin string) string {
	return strings.ToLower(strings.TrimRight(origin, "/"))
}
