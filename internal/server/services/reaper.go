package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kamikazebr/sentinel/internal/server/storage"
	"github.com/kamikazebr/sentinel/pkg/models"
)

const DefaultReaperInterval = 15 * time.Second

// Reaper sweeps expired pairings, tokens and sessions on a fixed interval
type Reaper struct {
	store    *storage.Store
	gateway  Gateway
	access   *AccessService
	interval time.Duration
	clock    Clock
}

func NewReaper(store *storage.Store, gateway Gateway, access *AccessService, interval time.Duration, clock Clock) *Reaper {
	if interval <= 0 {
		interval = DefaultReaperInterval
	}
	return &Reaper{
		store:    store,
		gateway:  gateway,
		access:   access,
		interval: interval,
		clock:    clock,
	}
}

// SweepResult counts what one sweep expired
type SweepResult struct {
	Pairings      int
	Tokens        int
	Sessions      int
	EvictFailures int
	// Sessions whose device was mid-unlock; their peer was left alone
	Deferred int
}

// Run sweeps every interval until ctx is cancelled
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			res := r.Sweep(ctx)
			if res.Pairings+res.Tokens+res.Sessions > 0 {
				slog.Info("Reaper sweep",
					"pairings", res.Pairings,
					"tokens", res.Tokens,
					"sessions", res.Sessions,
					"evict_failures", res.EvictFailures,
					"deferred", res.Deferred)
			}
		}
	}
}

// Sweep runs one pass. Individual failures are logged and skipped.
func (r *Reaper) Sweep(ctx context.Context) SweepResult {
	var res SweepResult
	now := r.clock.now()

	pairings, err := r.store.ExpirePairings(ctx, now)
	if err != nil {
		slog.Error("Failed to persist pairing expiry", "error", err)
	}
	for _, p := range pairings {
		r.store.AddLog(ctx, models.CategoryAuth, models.LevelWarn,
			fmt.Sprintf("Pairing expired for %s", p.DeviceName), fmt.Sprintf("Code %s", p.PairingCode))
	}
	res.Pairings = len(pairings)

	tokens, err := r.store.ExpireTokens(ctx, now)
	if err != nil {
		slog.Error("Failed to persist token expiry", "error", err)
	}
	for _, t := range tokens {
		r.store.AddLog(ctx, models.CategoryAuth, models.LevelWarn,
			fmt.Sprintf("Token expired for %s", t.DeviceID), fmt.Sprintf("Token %s", t.Token))
	}
	res.Tokens = len(tokens)

	sessions, err := r.store.ExpireSessions(ctx, now)
	if err != nil {
		slog.Error("Failed to persist session expiry", "error", err)
	}
	for _, session := range sessions {
		switch r.expireSession(ctx, session) {
		case sessionExpired:
			res.Sessions++
		case sessionEvictFailed:
			res.EvictFailures++
		case sessionDeferred:
			res.Deferred++
		}
	}

	return res
}

type sessionOutcome int

const (
	sessionExpired sessionOutcome = iota
	sessionEvictFailed
	sessionDeferred
	sessionSuperseded
)

// expireSession evicts the peer behind an expired session. The session is
// already gone from the store; a failed eviction leaves the peer installed
// until an operator runs sync-peers.
//
// If an unlock for the same device is in flight the peer is left alone: that
// unlock either commits a fresh session for it or fails, and a failure is
// drift sync-peers removes.
func (r *Reaper) expireSession(ctx context.Context, session models.ActiveSession) sessionOutcome {
	device := r.store.GetDevice(session.DeviceID)
	if device == nil {
		return sessionExpired
	}

	unlock, ok := r.access.tryLockDevice(device.ID)
	if !ok {
		slog.Warn("Unlock in progress, peer removal deferred", "device", device.Name)
		r.store.AddLog(ctx, models.CategorySystem, models.LevelWarn,
			fmt.Sprintf("Peer removal deferred for %s", device.Name), "Unlock in progress")
		return sessionDeferred
	}
	defer unlock()

	// A re-unlock may have landed between the sweep and this lock
	if r.access.hasLiveSession(device.ID) {
		return sessionSuperseded
	}

	if err := r.gateway.Evict(ctx, device.PublicKey); err != nil {
		slog.Error("Failed to remove peer", "device", device.Name, "error", err)
		r.store.AddLog(ctx, models.CategorySystem, models.LevelError,
			fmt.Sprintf("Failed to remove peer for %s", device.Name), err.Error())
		return sessionEvictFailed
	}

	now := r.clock.now()
	if _, err := r.store.SetDeviceStatus(ctx, device.ID, models.StatusLocked, &now); err != nil {
		slog.Error("Failed to persist lock after expiry", "device", device.ID, "error", err)
	}
	r.store.AddLog(ctx, models.CategoryAuth, models.LevelWarn,
		fmt.Sprintf("Session expired for %s", device.Name), fmt.Sprintf("Request %s", session.RequestID))
	return sessionExpired
}

// AdmittedKeys returns the public keys that should be present on the
// interface: devices holding a session that has not expired at now. Any
// other peer is drift left by a failed eviction.
func AdmittedKeys(snap models.StateSnapshot, now time.Time) map[string]bool {
	live := make(map[string]bool)
	for _, a := range snap.Sessions {
		if a.ExpiresAt.After(now) {
			live[a.DeviceID] = true
		}
	}

	keys := make(map[string]bool)
	for _, d := range snap.Devices {
		if live[d.ID] {
			keys[d.PublicKey] = true
		}
	}
	return keys
}
