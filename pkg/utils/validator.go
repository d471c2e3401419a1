package utils

import (
	"net"
	"regexp"
	"strings"
)

var wireGuardKeyRegex = regexp.MustCompile(`^[A-Za-z0-9+/]{43}=$`)

func IsValidCIDR(cidr string) bool {
	_, _, err := net.ParseCIDR(cidr)
	return err == nil
}

func IsValidIP(ip string) bool {
	return net.ParseIP(ip) != nil
}

// IsValidAllowedIP accepts either a CIDR ("10.10.0.2/32") or a bare address
func IsValidAllowedIP(s string) bool {
	s = strings.TrimSpace(s)
	if strings.Contains(s, "/") {
		return IsValidCIDR(s)
	}
	return IsValidIP(s)
}

func IsValidWireGuardKey(key string) bool {
	// WireGuard keys are 44 base64 characters
	if len(key) != 44 {
		return false
	}
	return wireGuardKeyRegex.MatchString(key)
}
