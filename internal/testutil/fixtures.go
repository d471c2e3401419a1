package testutil

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"

	"github.com/kamikazebr/sentinel/pkg/models"
)

// Clock is a settable time source
type Clock struct {
	mu sync.Mutex
	t  time.Time
}

func NewClock(t time.Time) *Clock {
	return &Clock{t: t}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// MemoryPersister keeps the last saved snapshot as JSON. Setting Err makes
// every Save fail.
type MemoryPersister struct {
	mu    sync.Mutex
	data  []byte
	Saves int
	Err   error
}

func (p *MemoryPersister) Load(ctx context.Context) (*models.StateSnapshot, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.data == nil {
		return nil, false, nil
	}
	var snap models.StateSnapshot
	if err := json.Unmarshal(p.data, &snap); err != nil {
		return nil, false, err
	}
	return &snap, true, nil
}

func (p *MemoryPersister) Save(ctx context.Context, snapshot *models.StateSnapshot) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	data, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	p.data = data
	p.Saves++
	return nil
}

// Saved returns the last persisted snapshot
func (p *MemoryPersister) Saved() *models.StateSnapshot {
	snap, _, _ := p.Load(context.Background())
	return snap
}

var ErrGatewayDown = errors.New("gateway unavailable")

// FakeGateway records admitted peers in memory
type FakeGateway struct {
	mu       sync.Mutex
	Peers    map[string]string
	Admits   int
	Evicts   int
	AdmitErr error
	EvictErr error
	Active   int
}

func NewFakeGateway() *FakeGateway {
	return &FakeGateway{Peers: make(map[string]string)}
}

func (g *FakeGateway) Admit(ctx context.Context, publicKey, allowedIP string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Admits++
	if g.AdmitErr != nil {
		return g.AdmitErr
	}
	g.Peers[publicKey] = allowedIP
	return nil
}

func (g *FakeGateway) Evict(ctx context.Context, publicKey string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Evicts++
	if g.EvictErr != nil {
		return g.EvictErr
	}
	delete(g.Peers, publicKey)
	return nil
}

func (g *FakeGateway) CountActive(ctx context.Context, now time.Time, window time.Duration) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.Active
}

func (g *FakeGateway) HasPeer(publicKey string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.Peers[publicKey]
	return ok
}

// GenerateTestWireGuardKey returns a real base64 WireGuard public key
func GenerateTestWireGuardKey() string {
	priv, err := wgtypes.GeneratePrivateKey()
	if err != nil {
		panic(err)
	}
	return priv.PublicKey().String()
}

// PairingFixture describes a pending pairing for a device that does not exist yet
func PairingFixture(deviceID string, expiresAt time.Time) models.PairingSession {
	return models.PairingSession{
		DeviceID:    deviceID,
		DeviceName:  "Test_" + deviceID,
		DeviceType:  models.DeviceLinux,
		AllowedIP:   "10.10.0.50/32",
		PairingCode: "123456",
		ExpiresAt:   expiresAt,
		TOTPSecret:  "JBSWY3DPEHPK3PXP",
	}
}
