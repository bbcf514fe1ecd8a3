package auth

import (
	"net"
	"strings"
)

// LoopbackAddress is returned when no client address can be determined.
const LoopbackAddress = "127.0.0.1"

// HeaderGetter is the header access ClientAddress needs. http.Header
// satisfies it.
type HeaderGetter interface {
	Get(key string) string
}

// ClientAddress resolves the caller's address for rate limiting, in order:
//
//  1. the first entry of X-Forwarded-For
//  2. X-Real-IP
//  3. the host part of remoteAddr (the direct connection)
//  4. LoopbackAddress
//
// The forwarding headers are trusted as sent; the service must sit behind a
// proxy that overwrites them.
func ClientAddress(h HeaderGetter, remoteAddr string) string {
	if h != nil {
		if xff := strings.TrimSpace(h.Get("X-Forwarded-For")); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if first = strings.TrimSpace(first); first != "" {
				return first
			}
		}
		if rip := strings.TrimSpace(h.Get("X-Real-IP")); rip != "" {
			return rip
		}
	}
	remoteAddr = strings.TrimSpace(remoteAddr)
	if remoteAddr == "" {
		return LoopbackAddress
	}
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil && host != "" {
		return host
	}
	return remoteAddr
}
