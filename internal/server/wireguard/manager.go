package wireguard

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"golang.zx2c4.com/wireguard/wgctrl"
	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"
)

// PersistentKeepalive is set on every admitted peer
const PersistentKeepalive = 25 * time.Second

// HandshakeWindow is how recent a handshake must be for a peer to count as active
const HandshakeWindow = 180 * time.Second

// deviceClient is the subset of *wgctrl.Client the manager uses
type deviceClient interface {
	Device(name string) (*wgtypes.Device, error)
	ConfigureDevice(name string, cfg wgtypes.Config) error
	Close() error
}

// Manager admits and evicts peers on an existing WireGuard interface.
// Interface creation is left to the host.
type Manager struct {
	client        deviceClient
	interfaceName string
}

func NewManager(interfaceName string) (*Manager, error) {
	client, err := wgctrl.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create wgctrl client: %w", err)
	}

	if interfaceName == "" {
		interfaceName = "wg0"
	}

	return &Manager{
		client:        client,
		interfaceName: interfaceName,
	}, nil
}

func (m *Manager) InterfaceName() string {
	return m.interfaceName
}

// Available reports whether the interface exists and can be queried
func (m *Manager) Available() bool {
	if _, err := m.client.Device(m.interfaceName); err != nil {
		slog.Warn("WireGuard interface unavailable", "interface", m.interfaceName, "error", err)
		return false
	}
	return true
}

// Admit installs or updates the peer. Calling it again for the same key
// replaces the allowed address, so it is safe to repeat.
func (m *Manager) Admit(ctx context.Context, publicKey, allowedIP string) error {
	key, err := wgtypes.ParseKey(publicKey)
	if err != nil {
		return fmt.Errorf("invalid public key: %w", err)
	}

	ipnet, err := parseAllowedIP(allowedIP)
	if err != nil {
		return err
	}

	keepalive := PersistentKeepalive
	peer := wgtypes.PeerConfig{
		PublicKey:                   key,
		ReplaceAllowedIPs:           true,
		AllowedIPs:                  []net.IPNet{*ipnet},
		PersistentKeepaliveInterval: &keepalive,
	}

	config := wgtypes.Config{
		Peers: []wgtypes.PeerConfig{peer},
	}

	if err := m.client.ConfigureDevice(m.interfaceName, config); err != nil {
		return fmt.Errorf("failed to add peer: %w", err)
	}

	return nil
}

func (m *Manager) Evict(ctx context.Context, publicKey string) error {
	key, err := wgtypes.ParseKey(publicKey)
	if err != nil {
		return fmt.Errorf("invalid public key: %w", err)
	}

	peer := wgtypes.PeerConfig{
		PublicKey: key,
		Remove:    true,
	}

	config := wgtypes.Config{
		Peers: []wgtypes.PeerConfig{peer},
	}

	if err := m.client.ConfigureDevice(m.interfaceName, config); err != nil {
		return fmt.Errorf("failed to remove peer: %w", err)
	}

	return nil
}

// CountActive returns the number of peers that completed a handshake within
// window of now. Any failure to read the interface yields 0.
func (m *Manager) CountActive(ctx context.Context, now time.Time, window time.Duration) int {
	peers, err := m.ListPeers()
	if err != nil {
		slog.Debug("Failed to count active peers", "error", err)
		return 0
	}
	return countActive(peers, now, window)
}

func (m *Manager) ListPeers() ([]wgtypes.Peer, error) {
	device, err := m.client.Device(m.interfaceName)
	if err != nil {
		return nil, fmt.Errorf("failed to get device: %w", err)
	}

	return device.Peers, nil
}

func (m *Manager) Close() error {
	return m.client.Close()
}
