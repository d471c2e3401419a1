package storage

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kamikazebr/sentinel/pkg/models"
)

// MaxLogEntries bounds the audit log; the oldest entry is evicted first
const MaxLogEntries = 500

// DefaultLogLimit is how many entries Logs returns when no limit is given
const DefaultLogLimit = 200

// Persister writes and reads the full durable snapshot
type Persister interface {
	Load(ctx context.Context) (*models.StateSnapshot, bool, error)
	Save(ctx context.Context, snapshot *models.StateSnapshot) error
}

// Store is the single source of truth for all access-control entities.
// Every mutation happens under mu and is followed by a full snapshot write
// before the lock is released. Reads always return copies.
type Store struct {
	mu        sync.Mutex
	state     models.StateSnapshot
	persister Persister
	now       func() time.Time
}

type Option func(*Store)

// WithClock overrides time.Now, mostly for tests
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Open loads durable state through p, or seeds and writes the default
// device set when nothing has been persisted yet.
func Open(ctx context.Context, p Persister, opts ...Option) (*Store, error) {
	s := &Store{
		persister: p,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	snapshot, found, err := p.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load state: %w", err)
	}

	if found {
		s.state = *snapshot
		normalize(&s.state)
		return s, nil
	}

	s.state = DefaultState()
	if err := s.persistLocked(ctx); err != nil {
		return nil, fmt.Errorf("failed to write initial state: %w", err)
	}
	slog.Info("Seeded default state", "devices", len(s.state.Devices))
	return s, nil
}

func normalize(st *models.StateSnapshot) {
	if st.Devices == nil {
		st.Devices = []models.Device{}
	}
	if st.Requests == nil {
		st.Requests = []models.UnlockRequest{}
	}
	if st.Sessions == nil {
		st.Sessions = []models.ActiveSession{}
	}
	if st.Logs == nil {
		st.Logs = []models.LogEntry{}
	}
	if st.Pairings == nil {
		st.Pairings = []models.PairingSession{}
	}
	if st.Tokens == nil {
		st.Tokens = []models.UnlockToken{}
	}
}

// persistLocked writes the whole snapshot. Caller must hold mu.
func (s *Store) persistLocked(ctx context.Context) error {
	if err := s.persister.Save(ctx, &s.state); err != nil {
		return fmt.Errorf("failed to persist state: %w", err)
	}
	return nil
}

func expired(expiresAt, now time.Time) bool {
	return !expiresAt.After(now)
}

// Devices

func (s *Store) ListDevices() []models.Device {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Device, len(s.state.Devices))
	for i, d := range s.state.Devices {
		out[i] = d.Clone()
	}
	return out
}

// GetDevice returns a copy of the device, or nil when unknown
func (s *Store) GetDevice(deviceID string) *models.Device {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.state.Devices {
		if d.ID == deviceID {
			c := d.Clone()
			return &c
		}
	}
	return nil
}

// UpsertDeviceFromPairing creates or overwrites the device described by a
// consumed pairing. The device always lands in LOCKED.
func (s *Store) UpsertDeviceFromPairing(ctx context.Context, pairing models.PairingSession, publicKey string) (*models.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	idx := slices.IndexFunc(s.state.Devices, func(d models.Device) bool { return d.ID == pairing.DeviceID })

	var device models.Device
	if idx >= 0 {
		device = s.state.Devices[idx]
	} else {
		device = models.Device{ID: pairing.DeviceID}
	}
	device.Name = pairing.DeviceName
	device.Type = pairing.DeviceType
	device.PublicKey = publicKey
	device.AllowedIP = pairing.AllowedIP
	device.TOTPSecret = pairing.TOTPSecret
	device.Status = models.StatusLocked
	device.PairedAt = &now

	if idx >= 0 {
		s.state.Devices[idx] = device
	} else {
		s.state.Devices = append(s.state.Devices, device)
	}

	out := device.Clone()
	return &out, s.persistLocked(ctx)
}

// SetDeviceStatus updates status and, when lastSeen is non-nil, last-seen.
// Returns false when the device does not exist.
func (s *Store) SetDeviceStatus(ctx context.Context, deviceID string, status models.DeviceStatus, lastSeen *time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setStatusLocked(ctx, deviceID, status, lastSeen)
}

func (s *Store) setStatusLocked(ctx context.Context, deviceID string, to models.DeviceStatus, lastSeen *time.Time) (bool, error) {
	for i := range s.state.Devices {
		d := &s.state.Devices[i]
		if d.ID != deviceID {
			continue
		}
		d.Status = to
		if lastSeen != nil {
			t := *lastSeen
			d.LastSeen = &t
		}
		return true, s.persistLocked(ctx)
	}
	return false, nil
}

// Unlock requests

func (s *Store) ListRequests() []models.UnlockRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.state.Requests)
}

func (s *Store) AddRequest(ctx context.Context, device models.Device, sourceIP, reason string) (*models.UnlockRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req := models.UnlockRequest{
		ID:              uuid.New().String(),
		DeviceID:        device.ID,
		DeviceName:      device.Name,
		DeviceType:      device.Type,
		RequestSourceIP: sourceIP,
		Reason:          reason,
		Timestamp:       s.now(),
	}
	s.state.Requests = append(s.state.Requests, req)
	return &req, s.persistLocked(ctx)
}

// RemoveRequest deletes and returns the request, or nil when absent
func (s *Store) RemoveRequest(ctx context.Context, requestID string) (*models.UnlockRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := slices.IndexFunc(s.state.Requests, func(r models.UnlockRequest) bool { return r.ID == requestID })
	if idx < 0 {
		return nil, nil
	}
	req := s.state.Requests[idx]
	s.state.Requests = slices.Delete(s.state.Requests, idx, idx+1)
	return &req, s.persistLocked(ctx)
}

func (s *Store) RemoveRequestsForDevice(ctx context.Context, deviceID string) ([]models.UnlockRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed []models.UnlockRequest
	kept := s.state.Requests[:0]
	for _, r := range s.state.Requests {
		if r.DeviceID == deviceID {
			removed = append(removed, r)
			continue
		}
		kept = append(kept, r)
	}
	s.state.Requests = kept
	if len(removed) == 0 {
		return nil, nil
	}
	return removed, s.persistLocked(ctx)
}

// Sessions

func (s *Store) ListSessions() []models.ActiveSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.state.Sessions)
}

// AddSession appends session as-is, without touching the device or any
// session it already holds. Production paths use CommitSession; this stays
// for seeding arbitrary session tables (imports, tests).
func (s *Store) AddSession(ctx context.Context, session models.ActiveSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Sessions = append(s.state.Sessions, session)
	return s.persistLocked(ctx)
}

// CommitSession marks the device CONNECTED and records session in one write,
// replacing any session the device already held.
func (s *Store) CommitSession(ctx context.Context, session models.ActiveSession) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := slices.IndexFunc(s.state.Devices, func(d models.Device) bool { return d.ID == session.DeviceID })
	if idx < 0 {
		return false, nil
	}
	approved := session.ApprovedAt
	s.state.Devices[idx].Status = models.StatusConnected
	s.state.Devices[idx].LastSeen = &approved

	s.state.Sessions = slices.DeleteFunc(s.state.Sessions, func(a models.ActiveSession) bool {
		return a.DeviceID == session.DeviceID
	})
	s.state.Sessions = append(s.state.Sessions, session)
	return true, s.persistLocked(ctx)
}

func (s *Store) ClearSessionsForDevice(ctx context.Context, deviceID string) ([]models.ActiveSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed []models.ActiveSession
	kept := s.state.Sessions[:0]
	for _, a := range s.state.Sessions {
		if a.DeviceID == deviceID {
			removed = append(removed, a)
			continue
		}
		kept = append(kept, a)
	}
	s.state.Sessions = kept
	if len(removed) == 0 {
		return nil, nil
	}
	return removed, s.persistLocked(ctx)
}

// ExpireSessions removes and returns every session whose expiry is <= now
func (s *Store) ExpireSessions(ctx context.Context, now time.Time) ([]models.ActiveSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var gone []models.ActiveSession
	kept := s.state.Sessions[:0]
	for _, a := range s.state.Sessions {
		if expired(a.ExpiresAt, now) {
			gone = append(gone, a)
			continue
		}
		kept = append(kept, a)
	}
	s.state.Sessions = kept
	if len(gone) == 0 {
		return nil, nil
	}
	return gone, s.persistLocked(ctx)
}

// Audit log

// AddLog appends an audit entry. A failed snapshot write is reported via
// slog only; the entry stays in memory and lands with the next write.
func (s *Store) AddLog(ctx context.Context, category models.LogCategory, level models.LogLevel, message, details string) models.LogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := models.LogEntry{
		ID:        uuid.New().String(),
		Timestamp: s.now(),
		Level:     level,
		Category:  category,
		Message:   message,
		Details:   details,
	}
	s.state.Logs = append(s.state.Logs, entry)
	if over := len(s.state.Logs) - MaxLogEntries; over > 0 {
		s.state.Logs = slices.Delete(s.state.Logs, 0, over)
	}
	if err := s.persistLocked(ctx); err != nil {
		slog.Error("Failed to persist audit entry", "message", message, "error", err)
	}
	return entry
}

// Logs returns up to limit entries, newest first
func (s *Store) Logs(limit int) []models.LogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.logsLocked(limit)
}

func (s *Store) logsLocked(limit int) []models.LogEntry {
	if limit <= 0 {
		limit = DefaultLogLimit
	}
	start := max(len(s.state.Logs)-limit, 0)
	out := make([]models.LogEntry, len(s.state.Logs)-start)
	copy(out, s.state.Logs[start:])
	slices.Reverse(out)
	return out
}

// Pairings

// StartPairing records session, replacing any pairing already in flight for
// the same device.
func (s *Store) StartPairing(ctx context.Context, session models.PairingSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.Pairings = slices.DeleteFunc(s.state.Pairings, func(p models.PairingSession) bool {
		return p.DeviceID == session.DeviceID
	})
	s.state.Pairings = append(s.state.Pairings, session)
	return s.persistLocked(ctx)
}

// ConsumePairing removes and returns the pairing matching both deviceID and
// code, expired or not. A second call with the same arguments returns nil.
func (s *Store) ConsumePairing(ctx context.Context, deviceID, code string) (*models.PairingSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := slices.IndexFunc(s.state.Pairings, func(p models.PairingSession) bool {
		return p.DeviceID == deviceID && p.PairingCode == code
	})
	if idx < 0 {
		return nil, nil
	}
	match := s.state.Pairings[idx]
	s.state.Pairings = slices.Delete(s.state.Pairings, idx, idx+1)
	return &match, s.persistLocked(ctx)
}

func (s *Store) ExpirePairings(ctx context.Context, now time.Time) ([]models.PairingSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var gone []models.PairingSession
	kept := s.state.Pairings[:0]
	for _, p := range s.state.Pairings {
		if expired(p.ExpiresAt, now) {
			gone = append(gone, p)
			continue
		}
		kept = append(kept, p)
	}
	s.state.Pairings = kept
	if len(gone) == 0 {
		return nil, nil
	}
	return gone, s.persistLocked(ctx)
}

func (s *Store) ListPairings() []models.PairingSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.state.Pairings)
}

// GetPairing returns the in-flight pairing for deviceID, or nil
func (s *Store) GetPairing(deviceID string) *models.PairingSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.state.Pairings {
		if p.DeviceID == deviceID {
			c := p
			return &c
		}
	}
	return nil
}

// Tokens

func (s *Store) AddToken(ctx context.Context, token models.UnlockToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Tokens = append(s.state.Tokens, token)
	return s.persistLocked(ctx)
}

// ConsumeToken removes and returns the unexpired token matching deviceID and
// value. A matching but expired token is dropped as litter and nil is
// returned, as for no match at all.
func (s *Store) ConsumeToken(ctx context.Context, deviceID, value string, now time.Time) (*models.UnlockToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var found *models.UnlockToken
	dropped := 0
	kept := s.state.Tokens[:0]
	for _, t := range s.state.Tokens {
		if t.DeviceID == deviceID && t.Token == value {
			if found == nil && !expired(t.ExpiresAt, now) {
				tok := t
				found = &tok
			}
			dropped++
			continue
		}
		kept = append(kept, t)
	}
	s.state.Tokens = kept
	if dropped == 0 {
		return nil, nil
	}
	return found, s.persistLocked(ctx)
}

func (s *Store) ExpireTokens(ctx context.Context, now time.Time) ([]models.UnlockToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var gone []models.UnlockToken
	kept := s.state.Tokens[:0]
	for _, t := range s.state.Tokens {
		if expired(t.ExpiresAt, now) {
			gone = append(gone, t)
			continue
		}
		kept = append(kept, t)
	}
	s.state.Tokens = kept
	if len(gone) == 0 {
		return nil, nil
	}
	return gone, s.persistLocked(ctx)
}

func (s *Store) ListTokens() []models.UnlockToken {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.state.Tokens)
}

// Snapshot returns a deep copy of the full state; logs are newest first and
// capped at DefaultLogLimit like the Logs read.
func (s *Store) Snapshot() models.StateSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	devices := make([]models.Device, len(s.state.Devices))
	for i, d := range s.state.Devices {
		devices[i] = d.Clone()
	}
	snap := models.StateSnapshot{
		Devices:  devices,
		Requests: slices.Clone(s.state.Requests),
		Sessions: slices.Clone(s.state.Sessions),
		Logs:     s.logsLocked(DefaultLogLimit),
		Pairings: slices.Clone(s.state.Pairings),
		Tokens:   slices.Clone(s.state.Tokens),
	}
	normalize(&snap)
	return snap
}
