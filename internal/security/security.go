// Package security implements the vendor login encoding and the
// address validation used by command parameters.
package security

import (
	"encoding/base64"
	"fmt"
	"net"
	"regexp"
	"strings"
)

// macPattern matches a colon- or dash-separated MAC address.
var macPattern = regexp.MustCompile(`^([0-9A-Fa-f]{2}[:-]){5}[0-9A-Fa-f]{2}$`)

// LoginPayload builds the obfuscated login body the firmware expects.
// The credentials are base64-encoded as "user:password" and wrapped in
// the login_authorization form field. This is an encoding, not encryption;
// plain HTTP transports expose it to the local network.
func LoginPayload(username, password string) string {
	auth := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
	return "login_authorization=" + auth
}

// MaskToken shortens a session token for safe logging.
func MaskToken(token string) string {
	if len(token) <= 8 {
		return "***"
	}
	return token[:4] + "..." + token[len(token)-4:]
}

// ValidMAC reports whether s looks like a MAC address.
func ValidMAC(s string) bool {
	return macPattern.MatchString(s)
}

// NormalizeMAC converts a MAC address to the canonical form the firmware
// stores in nvram: uppercase, colon-separated. Returns an error for
// values that are not MAC addresses.
func NormalizeMAC(s string) (string, error) {
	if !ValidMAC(s) {
		return "", fmt.Errorf("invalid MAC address: %q", s)
	}
	return strings.ToUpper(strings.ReplaceAll(s, "-", ":")), nil
}

// ValidIPv4 reports whether s is a well-formed IPv4 address.
func ValidIPv4(s string) bool {
	ip := net.ParseIP(s)
	return ip != nil && ip.To4() != nil
}
