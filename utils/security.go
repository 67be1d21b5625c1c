// kotatsu/utils/security.go
package utils

import (
	"crypto/sha512"
	"encoding/hex"
	"net"
	"net/http"
	"strings"

	"kotatsu/config"
)

// ClientIP extracts the submitter's IP from a request, trusting proxy headers
// when present.
func ClientIP(r *http.Request) string {
	if cf := r.Header.Get("CF-Connecting-IP"); cf != "" {
		return cf
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// IsLAN reports whether the request comes from a private or loopback address.
func IsLAN(r *http.Request) bool {
	ip := net.ParseIP(ClientIP(r))
	return ip != nil && (ip.IsPrivate() || ip.IsLoopback())
}

// ParsePosterName splits a submitted name of the form "display#secret" into
// the display name and the tripcode secret.
func ParsePosterName(name string) (displayName, secret string) {
	parts := strings.SplitN(name, "#", 2)
	displayName = strings.TrimSpace(parts[0])
	if len(parts) < 2 {
		return displayName, ""
	}
	return displayName, parts[1]
}

// Tripcode derives a tripcode from a poster-supplied secret: the separator
// marker followed by the tail of the hex-encoded SHA-512 digest. Pure and
// deterministic; the same secret always yields the same tripcode.
func Tripcode(secret string) string {
	if secret == "" {
		return ""
	}
	sum := sha512.Sum512([]byte(secret))
	digest := hex.EncodeToString(sum[:])
	return config.TripcodeSeparator + digest[len(digest)-config.TripcodeLength:]
}
