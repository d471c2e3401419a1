package services

import (
	"fmt"
	"net"
	"strings"

	"github.com/kamikazebr/sentinel/pkg/models"
)

const DefaultAddressPool = "10.10.0.0/24"

// AddressSource lists the addresses already claimed. *storage.Store and
// SnapshotSource both satisfy it.
type AddressSource interface {
	ListDevices() []models.Device
	ListPairings() []models.PairingSession
}

// SnapshotSource reads claims from a state snapshot fetched over the API
type SnapshotSource models.StateSnapshot

func (s SnapshotSource) ListDevices() []models.Device { return s.Devices }

func (s SnapshotSource) ListPairings() []models.PairingSession { return s.Pairings }

// AddressPool hands out unused /32 tunnel addresses from a base network.
// The network address and .1 (the server) are never handed out.
type AddressPool struct {
	network *net.IPNet
	source  AddressSource
}

func NewAddressPool(cidr string, source AddressSource) (*AddressPool, error) {
	if cidr == "" {
		cidr = DefaultAddressPool
	}

	_, network, err := net.ParseCIDR(cidr)
	if err != nil {
		return nil, fmt.Errorf("invalid address pool: %w", err)
	}
	if network.IP.To4() == nil {
		return nil, fmt.Errorf("IPv6 not supported")
	}

	return &AddressPool{network: network, source: source}, nil
}

// NextFree returns the lowest address not held by a device or a pending
// pairing.
func (p *AddressPool) NextFree() (string, error) {
	used := make(map[string]bool)
	for _, d := range p.source.ListDevices() {
		used[hostPart(d.AllowedIP)] = true
	}
	for _, pr := range p.source.ListPairings() {
		used[hostPart(pr.AllowedIP)] = true
	}

	// Start from .2 (skip .0 network address and .1 gateway)
	start := ipToInt(p.network.IP) + 2

	ones, bits := p.network.Mask.Size()
	maxHosts := (1 << (bits - ones)) - 3 // network, gateway, broadcast

	for i := 0; i < maxHosts; i++ {
		candidate := intToIP(start + uint32(i)).String()
		if !used[candidate] {
			return candidate + "/32", nil
		}
	}

	return "", fmt.Errorf("no available addresses in %s", p.network.String())
}

func hostPart(allowedIP string) string {
	host, _, _ := strings.Cut(allowedIP, "/")
	return host
}

func ipToInt(ip net.IP) uint32 {
	ip = ip.To4()
	return uint32(ip[0])<<24 | uint32(ip[1])<<16 | uint32(ip[2])<<8 | uint32(ip[3])
}

func intToIP(n uint32) net.IP {
	return net.IPv4(byte(n>>24), byte(n>>16), byte(n>>8), byte(n))
}
