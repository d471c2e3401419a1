package services

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kamikazebr/sentinel/internal/testutil"
	"github.com/kamikazebr/sentinel/pkg/models"
)

func TestPairingService_StartPairing(t *testing.T) {
	env := newTestEnv(t)

	start, err := env.pairing.StartPairing(context.Background(), "dev a", "Work Laptop", "windows", "10.10.0.9", 0)
	if err != nil {
		t.Fatalf("StartPairing failed: %v", err)
	}
	if len(start.PairingCode) != 6 {
		t.Errorf("Expected 6-digit code, got %q", start.PairingCode)
	}
	if !start.ExpiresAt.Equal(epoch.Add(10 * time.Minute)) {
		t.Errorf("Expected 10 minute default TTL, got %v", start.ExpiresAt)
	}
	if start.TOTPSecret == "" || !strings.HasPrefix(start.OTPAuthURL, "otpauth://totp/") {
		t.Errorf("Unexpected TOTP enrollment: %q %q", start.TOTPSecret, start.OTPAuthURL)
	}
	if want := "sentinel://pair?deviceId=dev+a&code=" + start.PairingCode; start.PairingString != want {
		t.Errorf("Expected %q, got %q", want, start.PairingString)
	}

	pending := env.store.GetPairing("dev a")
	if pending == nil || pending.DeviceType != models.DeviceWindows {
		t.Errorf("Expected pending WINDOWS pairing, got %+v", pending)
	}
	if entry := env.findLog("Pairing started for Work Laptop"); entry == nil || entry.Details != "Code "+start.PairingCode {
		t.Errorf("Unexpected audit entry: %+v", entry)
	}
}

func TestPairingService_StartPairing_RequiresFields(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.pairing.StartPairing(ctx, "dev-a", "", "linux", "10.10.0.9/32", 5); !errors.Is(err, ErrValidation) {
		t.Errorf("Expected ErrValidation for missing name, got %v", err)
	}
	if _, err := env.pairing.StartPairing(ctx, "dev-a", "A", "linux", "not-an-ip", 5); !errors.Is(err, ErrValidation) {
		t.Errorf("Expected ErrValidation for bad address, got %v", err)
	}
	if len(env.store.ListPairings()) != 0 {
		t.Error("Expected no pairing recorded")
	}
}

func TestPairingService_StartPairing_UnknownTypeNormalised(t *testing.T) {
	env := newTestEnv(t)

	if _, err := env.pairing.StartPairing(context.Background(), "dev-a", "A", "toaster", "10.10.0.9/32", 5); err != nil {
		t.Fatalf("StartPairing failed: %v", err)
	}
	if got := env.store.GetPairing("dev-a"); got.DeviceType != models.DeviceUnknown {
		t.Errorf("Expected UNKNOWN, got %s", got.DeviceType)
	}
}

func TestPairingService_CompletePairing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	start, _ := env.pairing.StartPairing(ctx, "dev-a", "A", "android", "10.10.0.9/32", 5)
	key := testutil.GenerateTestWireGuardKey()

	device, err := env.pairing.CompletePairing(ctx, "dev-a", start.PairingCode, key)
	if err != nil {
		t.Fatalf("CompletePairing failed: %v", err)
	}
	if device.Status != models.StatusLocked {
		t.Errorf("Expected LOCKED, got %s", device.Status)
	}
	if device.PublicKey != key || device.AllowedIP != "10.10.0.9/32" || device.TOTPSecret != start.TOTPSecret {
		t.Errorf("Device does not reflect pairing: %+v", device)
	}
	if device.PairedAt == nil || !device.PairedAt.Equal(epoch) {
		t.Errorf("Expected pairedAt %v, got %v", epoch, device.PairedAt)
	}
	if entry := env.findLog("Paired A"); entry == nil || entry.Details != "IP 10.10.0.9/32" {
		t.Errorf("Unexpected audit entry: %+v", entry)
	}

	// Single use
	_, err = env.pairing.CompletePairing(ctx, "dev-a", start.PairingCode, key)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound on reuse, got %v", err)
	}
}

func TestPairingService_CompletePairing_Expired(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	start, _ := env.pairing.StartPairing(ctx, "dev-a", "A", "linux", "10.10.0.9/32", 1)
	env.clock.Advance(time.Minute)

	_, err := env.pairing.CompletePairing(ctx, "dev-a", start.PairingCode, testutil.GenerateTestWireGuardKey())
	if !errors.Is(err, ErrExpired) {
		t.Fatalf("Expected ErrExpired, got %v", err)
	}
	if env.store.GetDevice("dev-a") != nil {
		t.Error("Expected no device created from expired pairing")
	}
	if env.store.GetPairing("dev-a") != nil {
		t.Error("Expected expired pairing to stay consumed")
	}
}

func TestPairingService_CompletePairing_InvalidKey(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	start, _ := env.pairing.StartPairing(ctx, "dev-a", "A", "linux", "10.10.0.9/32", 5)

	_, err := env.pairing.CompletePairing(ctx, "dev-a", start.PairingCode, "short")
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("Expected ErrValidation, got %v", err)
	}
	if env.store.GetPairing("dev-a") == nil {
		t.Error("Validation failure must not consume the pairing")
	}
}

func TestPairingService_RepairRetiresOldKey(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	device := env.pairDevice(t, "dev-a")
	if _, err := env.access.OpenSession(ctx, device.ID, 60, "x", ""); err != nil {
		t.Fatalf("OpenSession failed: %v", err)
	}

	repaired := env.pairDevice(t, "dev-a")
	if repaired.PublicKey == device.PublicKey {
		t.Fatal("Expected a fresh key")
	}
	if env.gateway.HasPeer(device.PublicKey) {
		t.Error("Expected old key to be evicted")
	}
	if len(env.store.ListSessions()) != 0 {
		t.Error("Expected old sessions to be cleared")
	}
}

func TestPairingService_PairingQR(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.pairing.PairingQR("dev-a", 0); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	_, _ = env.pairing.StartPairing(ctx, "dev-a", "A", "linux", "10.10.0.9/32", 5)
	png, err := env.pairing.PairingQR("dev-a", 128)
	if err != nil {
		t.Fatalf("PairingQR failed: %v", err)
	}
	if !bytes.HasPrefix(png, []byte("\x89PNG")) {
		t.Error("Expected PNG output")
	}
}
