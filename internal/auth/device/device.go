// Package device describes the client a session was opened from.
package device

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/mssola/useragent"
)

// ParseUserAgent returns a display name such as "Chrome on macOS".
func ParseUserAgent(userAgent string) string {
	if strings.TrimSpace(userAgent) == "" {
		return "Unknown Device"
	}
	ua := useragent.New(userAgent)
	browser, _ := ua.Browser()
	if browser == "" {
		browser = "Unknown Browser"
	}
	os := ua.OS()
	if os == "" {
		os = ua.Platform()
	}
	if os == "" {
		os = "Unknown OS"
	}
	return strings.TrimSpace(browser) + " on " + strings.TrimSpace(os)
}

// Fingerprint hashes the stable parts of a user agent: browser, major
// version, OS and platform. Patch releases keep the same fingerprint.
// An empty user agent yields "".
func Fingerprint(userAgent string) string {
	if strings.TrimSpace(userAgent) == "" {
		return ""
	}
	ua := useragent.New(userAgent)
	browser, version := ua.Browser()
	major, _, _ := strings.Cut(version, ".")
	sum := sha256.Sum256([]byte(strings.Join([]string{browser, major, ua.OS(), ua.Platform()}, "|")))
	return hex.EncodeToString(sum[:])
}
