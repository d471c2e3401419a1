package wireguard

import (
	"fmt"
	"net"
	"strings"
	"time"

	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"
)

// parseAllowedIP accepts a CIDR or a bare address. Bare addresses become a
// single-host network (/32 or /128).
func parseAllowedIP(allowedIP string) (*net.IPNet, error) {
	allowedIP = strings.TrimSpace(allowedIP)
	if strings.Contains(allowedIP, "/") {
		_, ipnet, err := net.ParseCIDR(allowedIP)
		if err != nil {
			return nil, fmt.Errorf("invalid allowed IP %q: %w", allowedIP, err)
		}
		return ipnet, nil
	}

	ip := net.ParseIP(allowedIP)
	if ip == nil {
		return nil, fmt.Errorf("invalid allowed IP %q", allowedIP)
	}
	if v4 := ip.To4(); v4 != nil {
		return &net.IPNet{IP: v4, Mask: net.CIDRMask(32, 32)}, nil
	}
	return &net.IPNet{IP: ip, Mask: net.CIDRMask(128, 128)}, nil
}

func countActive(peers []wgtypes.Peer, now time.Time, window time.Duration) int {
	count := 0
	for _, peer := range peers {
		if peer.LastHandshakeTime.IsZero() {
			continue
		}
		if now.Sub(peer.LastHandshakeTime) <= window {
			count++
		}
	}
	return count
}

// StalePeers returns the peers whose key is not in keep
func StalePeers(peers []wgtypes.Peer, keep map[string]bool) []wgtypes.Peer {
	var stale []wgtypes.Peer
	for _, peer := range peers {
		if !keep[peer.PublicKey.String()] {
			stale = append(stale, peer)
		}
	}
	return stale
}
