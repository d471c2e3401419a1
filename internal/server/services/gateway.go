package services

import (
	"context"
	"time"
)

// Gateway controls which public keys the WireGuard interface accepts.
// wireguard.Manager is the production implementation.
type Gateway interface {
	Admit(ctx context.Context, publicKey, allowedIP string) error
	Evict(ctx context.Context, publicKey string) error
	CountActive(ctx context.Context, now time.Time, window time.Duration) int
}

// Clock returns the current time. A nil Clock means time.Now.
type Clock func() time.Time

func (c Clock) now() time.Time {
	if c == nil {
		return time.Now()
	}
	return c()
}
