package services

import (
	"testing"
	"time"

	"github.com/kamikazebr/sentinel/internal/testutil"
)

func TestRateLimiter_AllowsBurstThenBlocks(t *testing.T) {
	clock := testutil.NewClock(epoch)
	l := NewRateLimiter(3, time.Minute, nil, clock.Now)

	for i := 0; i < 3; i++ {
		if !l.Allow("192.0.2.1") {
			t.Fatalf("Request %d should be allowed", i+1)
		}
	}
	if l.Allow("192.0.2.1") {
		t.Error("Fourth request should be limited")
	}
	if !l.Allow("192.0.2.2") {
		t.Error("Other addresses have their own bucket")
	}

	clock.Advance(20 * time.Second)
	if !l.Allow("192.0.2.1") {
		t.Error("Expected one token refilled after a third of the window")
	}
}

func TestRateLimiter_Allowlist(t *testing.T) {
	clock := testutil.NewClock(epoch)
	l := NewRateLimiter(1, time.Minute, []string{"127.0.0.1", ""}, clock.Now)

	for i := 0; i < 10; i++ {
		if !l.Allow("127.0.0.1") {
			t.Fatal("Allowlisted address must never be limited")
		}
	}
}

func TestRateLimiter_Cleanup(t *testing.T) {
	clock := testutil.NewClock(epoch)
	l := NewRateLimiter(5, time.Minute, nil, clock.Now)
	l.Allow("192.0.2.1")

	if n := l.Cleanup(); n != 0 {
		t.Errorf("Expected nothing cleaned yet, got %d", n)
	}
	clock.Advance(idleTTL + time.Second)
	if n := l.Cleanup(); n != 1 {
		t.Errorf("Expected 1 idle entry cleaned, got %d", n)
	}
}
