package wireguard

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"
)

type fakeClient struct {
	device  *wgtypes.Device
	configs []wgtypes.Config
	err     error
}

func (f *fakeClient) Device(name string) (*wgtypes.Device, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.device, nil
}

func (f *fakeClient) ConfigureDevice(name string, cfg wgtypes.Config) error {
	if f.err != nil {
		return f.err
	}
	f.configs = append(f.configs, cfg)
	return nil
}

func (f *fakeClient) Close() error { return nil }

func testKey(t *testing.T) wgtypes.Key {
	t.Helper()
	priv, err := wgtypes.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("GeneratePrivateKey failed: %v", err)
	}
	return priv.PublicKey()
}

func TestParseAllowedIP(t *testing.T) {
	ipnet, err := parseAllowedIP("10.10.0.2")
	if err != nil {
		t.Fatalf("parseAllowedIP failed: %v", err)
	}
	if ipnet.String() != "10.10.0.2/32" {
		t.Errorf("Expected 10.10.0.2/32, got %s", ipnet.String())
	}

	ipnet, err = parseAllowedIP("10.10.0.0/24")
	if err != nil {
		t.Fatalf("parseAllowedIP failed: %v", err)
	}
	if ipnet.String() != "10.10.0.0/24" {
		t.Errorf("Expected 10.10.0.0/24, got %s", ipnet.String())
	}

	if _, err := parseAllowedIP("not-an-ip"); err == nil {
		t.Error("Expected error for garbage input")
	}
}

func TestAdmitConfiguresPeer(t *testing.T) {
	client := &fakeClient{}
	m := &Manager{client: client, interfaceName: "wg0"}
	key := testKey(t)

	if err := m.Admit(context.Background(), key.String(), "10.10.0.3"); err != nil {
		t.Fatalf("Admit failed: %v", err)
	}
	if len(client.configs) != 1 {
		t.Fatalf("Expected 1 config, got %d", len(client.configs))
	}

	peer := client.configs[0].Peers[0]
	if peer.PublicKey != key {
		t.Error("Wrong public key configured")
	}
	if !peer.ReplaceAllowedIPs {
		t.Error("Expected ReplaceAllowedIPs")
	}
	if peer.PersistentKeepaliveInterval == nil || *peer.PersistentKeepaliveInterval != 25*time.Second {
		t.Errorf("Expected 25s keepalive, got %v", peer.PersistentKeepaliveInterval)
	}
	if peer.AllowedIPs[0].String() != "10.10.0.3/32" {
		t.Errorf("Expected 10.10.0.3/32, got %s", peer.AllowedIPs[0].String())
	}
}

func TestAdmitRejectsBadKey(t *testing.T) {
	client := &fakeClient{}
	m := &Manager{client: client, interfaceName: "wg0"}

	if err := m.Admit(context.Background(), "<FILL_ME>", "10.10.0.3/32"); err == nil {
		t.Error("Expected error for placeholder key")
	}
	if len(client.configs) != 0 {
		t.Error("Expected no configuration for bad key")
	}
}

func TestEvictRemovesPeer(t *testing.T) {
	client := &fakeClient{}
	m := &Manager{client: client, interfaceName: "wg0"}

	if err := m.Evict(context.Background(), testKey(t).String()); err != nil {
		t.Fatalf("Evict failed: %v", err)
	}
	if !client.configs[0].Peers[0].Remove {
		t.Error("Expected Remove to be set")
	}

	client.err = errors.New("no such device")
	if err := m.Evict(context.Background(), testKey(t).String()); err == nil {
		t.Error("Expected error from client")
	}
}

func TestCountActive(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	peers := []wgtypes.Peer{
		{PublicKey: testKey(t), LastHandshakeTime: now.Add(-30 * time.Second)},
		{PublicKey: testKey(t), LastHandshakeTime: now.Add(-HandshakeWindow)},
		{PublicKey: testKey(t), LastHandshakeTime: now.Add(-10 * time.Minute)},
		{PublicKey: testKey(t)},
	}

	client := &fakeClient{device: &wgtypes.Device{Name: "wg0", Peers: peers}}
	m := &Manager{client: client, interfaceName: "wg0"}

	if got := m.CountActive(context.Background(), now, HandshakeWindow); got != 2 {
		t.Errorf("Expected 2 active peers, got %d", got)
	}

	client.err = errors.New("interface down")
	if got := m.CountActive(context.Background(), now, HandshakeWindow); got != 0 {
		t.Errorf("Expected 0 on error, got %d", got)
	}
}

func TestStalePeers(t *testing.T) {
	keep := testKey(t)
	drop := testKey(t)
	peers := []wgtypes.Peer{{PublicKey: keep}, {PublicKey: drop}}

	stale := StalePeers(peers, map[string]bool{keep.String(): true})
	if len(stale) != 1 || stale[0].PublicKey != drop {
		t.Errorf("Expected only the unknown peer, got %+v", stale)
	}
}
