package security

import (
	"net"
	"net/http"
	"strings"
)

// GetClientIP derives the client IP for rate limiting and audit logging.
//
// By default only the connection's RemoteAddr is consulted. When trustProxy
// is set, X-Forwarded-For is honored first and X-Real-IP second;
// trustedProxyCount says how many entries at the right end of the forwarded
// chain belong to proxies we operate. Never enable trustProxy on a directly
// exposed server, since both headers are attacker-controlled there.
//
// Returns an empty string only when RemoteAddr is empty and no trusted
// header yields a valid IP; callers fall back to a shared bucket key.
func GetClientIP(r *http.Request, trustProxy bool, trustedProxyCount int) string {
	if trustProxy {
		if ip := forwardedClientIP(r.Header.Get("X-Forwarded-For"), trustedProxyCount); ip != "" {
			return ip
		}
		if ip := r.Header.Get("X-Real-IP"); validIP(ip) {
			return ip
		}
	}
	return hostFromRemoteAddr(r.RemoteAddr)
}

// forwardedClientIP picks the client entry out of an X-Forwarded-For chain.
//
// The chain reads "client, proxy1, proxy2, ..." with our own proxies
// appending at the right end, so the client sits trustedProxyCount+1
// positions from the right. A zero count is treated as one trusted proxy
// (the one that set the header); chains shorter than expected fall back to
// the leftmost entry.
func forwardedClientIP(chain string, trustedProxyCount int) string {
	if chain == "" {
		return ""
	}

	hops := strings.Split(chain, ",")

	proxies := trustedProxyCount
	if proxies == 0 {
		proxies = 1
	}
	idx := len(hops) - proxies - 1
	if idx < 0 {
		idx = 0
	}

	ip := strings.TrimSpace(hops[idx])
	if !validIP(ip) {
		return ""
	}
	return ip
}

// hostFromRemoteAddr strips the port from a RemoteAddr value. Addresses
// without a port (as some tests construct) pass through unchanged.
func hostFromRemoteAddr(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}

func validIP(s string) bool {
	return s != "" && net.ParseIP(s) != nil
}
