package services

import (
	"context"
	"testing"
	"time"

	"github.com/kamikazebr/sentinel/internal/testutil"
	"github.com/kamikazebr/sentinel/pkg/models"
)

func TestAddressPool_NextFree(t *testing.T) {
	env := newTestEnv(t)

	pool, err := NewAddressPool("10.10.0.0/24", env.store)
	if err != nil {
		t.Fatalf("Failed to create address pool: %v", err)
	}

	// Seeded devices hold .2 and .3
	got, err := pool.NextFree()
	if err != nil {
		t.Fatalf("NextFree failed: %v", err)
	}
	if got != "10.10.0.4/32" {
		t.Errorf("Expected 10.10.0.4/32, got %s", got)
	}

	// Pending pairings also reserve their address
	_ = env.store.StartPairing(context.Background(), testutil.PairingFixture("dev-x", epoch.Add(time.Minute)))
	_, _ = env.pairing.StartPairing(context.Background(), "dev-y", "Y", "linux", "10.10.0.4", 5)
	got, _ = pool.NextFree()
	if got != "10.10.0.5/32" {
		t.Errorf("Expected 10.10.0.5/32, got %s", got)
	}
}

func TestAddressPool_Exhausted(t *testing.T) {
	env := newTestEnv(t)

	// /30 has only .2 usable after skipping network and gateway
	pool, err := NewAddressPool("10.10.0.0/30", env.store)
	if err != nil {
		t.Fatalf("Failed to create address pool: %v", err)
	}
	if _, err := pool.NextFree(); err == nil {
		t.Error("Expected exhaustion error, .2 is taken by a seeded device")
	}
}

func TestNewAddressPool_Invalid(t *testing.T) {
	tests := []struct {
		name string
		cidr string
	}{
		{name: "garbage", cidr: "not-a-network"},
		{name: "ipv6", cidr: "fd00::/64"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewAddressPool(tt.cidr, nil); err == nil {
				t.Errorf("Expected error for %s", tt.cidr)
			}
		})
	}
}

func TestAddressPool_SnapshotSource(t *testing.T) {
	snap := models.StateSnapshot{
		Devices:  []models.Device{{ID: "a", AllowedIP: "10.20.0.2/32"}},
		Pairings: []models.PairingSession{{DeviceID: "b", AllowedIP: "10.20.0.3"}},
	}

	pool, err := NewAddressPool("10.20.0.0/24", SnapshotSource(snap))
	if err != nil {
		t.Fatalf("Failed to create address pool: %v", err)
	}

	got, err := pool.NextFree()
	if err != nil {
		t.Fatalf("NextFree failed: %v", err)
	}
	if got != "10.20.0.4/32" {
		t.Errorf("Expected 10.20.0.4/32, got %s", got)
	}
}
