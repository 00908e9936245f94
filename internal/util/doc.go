// Package util provides common utility functions used across the chartstore library.
//
// This package contains helper functions for string manipulation, origin
// normalization, and host classification that don't fit into domain-specific
// packages. These utilities are used internally by multiple packages to avoid
// code duplication and maintain consistent behavior across the codebase.
//
// Key utilities:
//   - SafeTruncate: Safely truncates strings for logging user-supplied data
//   - NormalizeOrigin: Normalizes origins for CORS allow-list comparison
//   - IsLoopbackHostname: Checks if a bind host is a loopback address
//   - IsAllInterfaces: Checks if a bind host is the unspecified address
package util
