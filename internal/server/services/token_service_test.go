package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kamikazebr/sentinel/internal/testutil"
)

func TestTokenService_CreateAndRedeem(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	device := env.pairDevice(t, "dev-a")

	token, err := env.tokens.CreateToken(ctx, device.ID, 0)
	if err != nil {
		t.Fatalf("CreateToken failed: %v", err)
	}
	if len(token.Token) != 8 {
		t.Errorf("Expected 8 hex chars, got %q", token.Token)
	}
	if !token.ExpiresAt.Equal(epoch.Add(60 * time.Second)) {
		t.Errorf("Expected 60s default TTL, got %v", token.ExpiresAt)
	}
	if entry := env.findLog("One-time token issued for"); entry == nil || entry.Details != "TTL 60s" {
		t.Errorf("Unexpected audit entry: %+v", entry)
	}

	expiresAt, err := env.tokens.RedeemToken(ctx, device.ID, token.Token, 20)
	if err != nil {
		t.Fatalf("RedeemToken failed: %v", err)
	}
	if !expiresAt.Equal(epoch.Add(20 * time.Minute)) {
		t.Errorf("Unexpected session expiry %v", expiresAt)
	}
	if got := env.store.ListSessions()[0].RequestID; got != token.ID {
		t.Errorf("Expected session request ID %s, got %s", token.ID, got)
	}

	if _, err := env.tokens.RedeemToken(ctx, device.ID, token.Token, 20); !errors.Is(err, ErrInvalid) {
		t.Errorf("Expected ErrInvalid on reuse, got %v", err)
	}
}

func TestTokenService_RedeemExpired(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	device := env.pairDevice(t, "dev-a")

	token, _ := env.tokens.CreateToken(ctx, device.ID, 30)
	env.clock.Advance(30 * time.Second)

	if _, err := env.tokens.RedeemToken(ctx, device.ID, token.Token, 20); !errors.Is(err, ErrInvalid) {
		t.Fatalf("Expected ErrInvalid, got %v", err)
	}
	if len(env.store.ListTokens()) != 0 {
		t.Error("Expected expired token removed on redeem attempt")
	}
	if env.gateway.Admits != 0 {
		t.Error("Gateway must not be called for expired token")
	}
}

func TestTokenService_RedeemWrongDevice(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	device := env.pairDevice(t, "dev-a")
	token, _ := env.tokens.CreateToken(ctx, device.ID, 60)

	if _, err := env.tokens.RedeemToken(ctx, "dev-pixel8", token.Token, 20); !errors.Is(err, ErrInvalid) {
		t.Errorf("Expected ErrInvalid, got %v", err)
	}
	if len(env.store.ListTokens()) != 1 {
		t.Error("Token for another device must survive")
	}
}

func TestTokenService_RedeemGatewayFailure(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	device := env.pairDevice(t, "dev-a")
	token, _ := env.tokens.CreateToken(ctx, device.ID, 60)

	env.gateway.AdmitErr = testutil.ErrGatewayDown
	if _, err := env.tokens.RedeemToken(ctx, device.ID, token.Token, 20); !errors.Is(err, ErrDependency) {
		t.Fatalf("Expected ErrDependency, got %v", err)
	}
	if len(env.store.ListTokens()) != 0 {
		t.Error("Token stays consumed after gateway failure")
	}
}

func TestTokenService_CreateToken_UnknownDevice(t *testing.T) {
	env := newTestEnv(t)

	if _, err := env.tokens.CreateToken(context.Background(), "ghost", 60); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}
