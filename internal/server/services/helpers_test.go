package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/kamikazebr/sentinel/internal/server/storage"
	"github.com/kamikazebr/sentinel/internal/testutil"
	"github.com/kamikazebr/sentinel/pkg/models"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	store   *storage.Store
	saver   *testutil.MemoryPersister
	gateway *testutil.FakeGateway
	clock   *testutil.Clock
	access  *AccessService
	pairing *PairingService
	tokens  *TokenService
	reaper  *Reaper
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	clock := testutil.NewClock(epoch)
	store, saver := testutil.NewStore(t, clock)
	gateway := testutil.NewFakeGateway()
	access := NewAccessService(store, gateway, nil, clock.Now)

	return &testEnv{
		store:   store,
		saver:   saver,
		gateway: gateway,
		clock:   clock,
		access:  access,
		pairing: NewPairingService(store, gateway, clock.Now),
		tokens:  NewTokenService(store, access, clock.Now),
		reaper:  NewReaper(store, gateway, access, time.Second, clock.Now),
	}
}

// pairDevice runs a full pairing for a new device and returns it
func (e *testEnv) pairDevice(t *testing.T, deviceID string) *models.Device {
	t.Helper()
	ctx := context.Background()

	start, err := e.pairing.StartPairing(ctx, deviceID, "Laptop_"+deviceID, "linux", "10.10.0.20/32", 0)
	if err != nil {
		t.Fatalf("StartPairing failed: %v", err)
	}
	device, err := e.pairing.CompletePairing(ctx, deviceID, start.PairingCode, testutil.GenerateTestWireGuardKey())
	if err != nil {
		t.Fatalf("CompletePairing failed: %v", err)
	}
	return device
}

// findLog returns the newest audit entry whose message starts with prefix
func (e *testEnv) findLog(prefix string) *models.LogEntry {
	for _, entry := range e.store.Logs(storage.MaxLogEntries) {
		if strings.HasPrefix(entry.Message, prefix) {
			return &entry
		}
	}
	return nil
}

// countLogs counts audit entries whose message starts with prefix
func (e *testEnv) countLogs(prefix string) int {
	n := 0
	for _, entry := range e.store.Logs(storage.MaxLogEntries) {
		if strings.HasPrefix(entry.Message, prefix) {
			n++
		}
	}
	return n
}
