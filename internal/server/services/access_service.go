package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kamikazebr/sentinel/internal/server/storage"
	"github.com/kamikazebr/sentinel/pkg/models"
)

const (
	// DefaultSessionMinutes applies when a caller gives no positive duration
	DefaultSessionMinutes = 60

	DefaultUnlockReason = "Manual unlock"
)

// AccessService opens and closes network access for paired devices. All
// paths that admit or evict a device's peer hold that device's lock.
type AccessService struct {
	store    *storage.Store
	gateway  Gateway
	notifier Notifier
	clock    Clock

	locks sync.Map // deviceID -> *sync.Mutex
}

func NewAccessService(store *storage.Store, gateway Gateway, notifier Notifier, clock Clock) *AccessService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &AccessService{
		store:    store,
		gateway:  gateway,
		notifier: notifier,
		clock:    clock,
	}
}

func (s *AccessService) deviceMutex(deviceID string) *sync.Mutex {
	v, _ := s.locks.LoadOrStore(deviceID, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// lockKnownDevice looks the device up before taking its lock, so unknown
// IDs never get a mutex. The device is re-read under the lock.
func (s *AccessService) lockKnownDevice(deviceID string) (*models.Device, func(), error) {
	if s.store.GetDevice(deviceID) == nil {
		return nil, nil, fmt.Errorf("device %s: %w", deviceID, ErrNotFound)
	}

	mu := s.deviceMutex(deviceID)
	mu.Lock()
	device := s.store.GetDevice(deviceID)
	if device == nil {
		mu.Unlock()
		return nil, nil, fmt.Errorf("device %s: %w", deviceID, ErrNotFound)
	}
	return device, mu.Unlock, nil
}

// tryLockDevice takes the device lock only if nobody holds it. The reaper
// uses it so a hung unlock cannot stall a sweep.
func (s *AccessService) tryLockDevice(deviceID string) (func(), bool) {
	mu := s.deviceMutex(deviceID)
	if !mu.TryLock() {
		return nil, false
	}
	return mu.Unlock, true
}

// OpenSession admits the device's peer and records an active session
// expiring durationMinutes from now. The new session replaces any session
// the device already held, so the state never lists more than one session
// per device. Nothing is written when the gateway refuses the peer.
func (s *AccessService) OpenSession(ctx context.Context, deviceID string, durationMinutes int, reason, requestID string) (time.Time, error) {
	device, unlock, err := s.lockKnownDevice(deviceID)
	if err != nil {
		return time.Time{}, err
	}
	defer unlock()

	if durationMinutes <= 0 {
		durationMinutes = DefaultSessionMinutes
	}
	if requestID == "" {
		requestID = models.SessionManual
	}

	approvedAt := s.clock.now()
	expiresAt := approvedAt.Add(time.Duration(durationMinutes) * time.Minute)

	if err := s.gateway.Admit(ctx, device.PublicKey, device.AllowedIP); err != nil {
		s.store.AddLog(ctx, models.CategoryAuth, models.LevelError,
			fmt.Sprintf("Failed to add peer for %s", device.ID), err.Error())
		return time.Time{}, fmt.Errorf("failed to add peer for %s: %w: %w", device.ID, ErrDependency, err)
	}

	session := models.ActiveSession{
		DeviceID:   device.ID,
		RequestID:  requestID,
		ExpiresAt:  expiresAt,
		ApprovedAt: approvedAt,
	}
	ok, err := s.store.CommitSession(ctx, session)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to record session: %w", err)
	}
	if !ok {
		return time.Time{}, fmt.Errorf("device %s: %w", deviceID, ErrNotFound)
	}

	s.store.AddLog(ctx, models.CategoryAuth, models.LevelSuccess,
		fmt.Sprintf("Session opened for %s", device.Name),
		fmt.Sprintf("%s | Duration %dm", reason, durationMinutes))

	return expiresAt, nil
}

// RequestUnlock queues a pending request for operator review
func (s *AccessService) RequestUnlock(ctx context.Context, deviceID, sourceIP, reason string) (*models.UnlockRequest, error) {
	if deviceID == "" {
		return nil, fmt.Errorf("deviceId is required: %w", ErrValidation)
	}

	device := s.store.GetDevice(deviceID)
	if device == nil {
		return nil, fmt.Errorf("unknown device %s: %w", deviceID, ErrNotFound)
	}
	if reason == "" {
		reason = DefaultUnlockReason
	}

	req, err := s.store.AddRequest(ctx, *device, sourceIP, reason)
	if err != nil {
		return nil, fmt.Errorf("failed to record unlock request: %w", err)
	}

	s.store.AddLog(ctx, models.CategoryAuth, models.LevelInfo,
		fmt.Sprintf("Unlock requested by %s", device.ID),
		fmt.Sprintf("Source %s | %s", sourceIP, reason))

	go s.notify(context.WithoutCancel(ctx), *req)

	return req, nil
}

func (s *AccessService) notify(ctx context.Context, req models.UnlockRequest) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := s.notifier.NotifyUnlockRequest(ctx, &req); err != nil {
		slog.Warn("Failed to notify operator", "request", req.ID, "device", req.DeviceID, "error", err)
	}
}

// ApproveRequest consumes a pending request and opens a session for it.
// The request is gone even when the gateway then fails.
func (s *AccessService) ApproveRequest(ctx context.Context, requestID string, durationMinutes int) (*models.UnlockRequest, time.Time, error) {
	req, err := s.store.RemoveRequest(ctx, requestID)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to remove request: %w", err)
	}
	if req == nil {
		return nil, time.Time{}, fmt.Errorf("request %s: %w", requestID, ErrNotFound)
	}

	expiresAt, err := s.OpenSession(ctx, req.DeviceID, durationMinutes, "Manual approval", req.ID)
	if err != nil {
		return req, time.Time{}, err
	}
	return req, expiresAt, nil
}

func (s *AccessService) DenyRequest(ctx context.Context, requestID string) (*models.UnlockRequest, error) {
	req, err := s.store.RemoveRequest(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to remove request: %w", err)
	}
	if req == nil {
		return nil, fmt.Errorf("request %s: %w", requestID, ErrNotFound)
	}

	s.store.AddLog(ctx, models.CategoryAuth, models.LevelWarn,
		fmt.Sprintf("Denied unlock for %s", req.DeviceID), "")
	return req, nil
}

// SetStatus lets an operator mark a device OFFLINE or LOCKED. CONNECTED is
// only ever reached through OpenSession.
func (s *AccessService) SetStatus(ctx context.Context, deviceID string, status models.DeviceStatus) error {
	device := s.store.GetDevice(deviceID)
	if device == nil {
		return fmt.Errorf("device %s: %w", deviceID, ErrNotFound)
	}
	if status != models.StatusOffline && status != models.StatusLocked {
		return fmt.Errorf("invalid status update %q: %w", status, ErrValidation)
	}

	now := s.clock.now()
	if _, err := s.store.SetDeviceStatus(ctx, device.ID, status, &now); err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}

	s.store.AddLog(ctx, models.CategoryVPN, models.LevelInfo,
		fmt.Sprintf("Updated %s status to %s", device.Name, status), "")
	return nil
}

// RevokeResult counts what a revocation cleared
type RevokeResult struct {
	SessionsRemoved int
	RequestsCleared int
}

// Revoke drops every session and pending request for the device, evicts its
// peer and marks it OFFLINE. Eviction failures are logged, not returned.
func (s *AccessService) Revoke(ctx context.Context, deviceID string) (*RevokeResult, error) {
	device, unlock, err := s.lockKnownDevice(deviceID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	sessions, err := s.store.ClearSessionsForDevice(ctx, device.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to clear sessions: %w", err)
	}
	requests, err := s.store.RemoveRequestsForDevice(ctx, device.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to clear requests: %w", err)
	}

	if err := s.gateway.Evict(ctx, device.PublicKey); err != nil {
		slog.Warn("Peer removal failed", "device", device.Name, "error", err)
		s.store.AddLog(ctx, models.CategoryVPN, models.LevelWarn,
			fmt.Sprintf("Peer removal failed for %s", device.Name), err.Error())
	}

	now := s.clock.now()
	if _, err := s.store.SetDeviceStatus(ctx, device.ID, models.StatusOffline, &now); err != nil {
		return nil, fmt.Errorf("failed to update status: %w", err)
	}

	result := &RevokeResult{SessionsRemoved: len(sessions), RequestsCleared: len(requests)}
	s.store.AddLog(ctx, models.CategoryVPN, models.LevelWarn,
		fmt.Sprintf("Revoked device %s", device.Name),
		fmt.Sprintf("Sessions removed: %d, pending requests cleared: %d", result.SessionsRemoved, result.RequestsCleared))

	return result, nil
}

// UnlockWithTOTP opens a session when code matches the device's enrolled
// secret at the current time.
func (s *AccessService) UnlockWithTOTP(ctx context.Context, deviceID, code string, durationMinutes int) (time.Time, error) {
	device := s.store.GetDevice(deviceID)
	if device == nil || !device.HasTOTP() {
		return time.Time{}, fmt.Errorf("device %s not found or TOTP not configured: %w", deviceID, ErrNotFound)
	}

	if !CheckTOTP(code, device.TOTPSecret, s.clock.now()) {
		s.store.AddLog(ctx, models.CategoryAuth, models.LevelWarn,
			fmt.Sprintf("Invalid TOTP for %s", device.Name), "")
		return time.Time{}, fmt.Errorf("invalid TOTP code: %w", ErrUnauthorized)
	}

	return s.OpenSession(ctx, device.ID, durationMinutes, "TOTP unlock", models.SessionTOTP)
}

// hasLiveSession reports whether the device currently holds a session
func (s *AccessService) hasLiveSession(deviceID string) bool {
	now := s.clock.now()
	for _, a := range s.store.ListSessions() {
		if a.DeviceID == deviceID && a.ExpiresAt.After(now) {
			return true
		}
	}
	return false
}
