package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kamikazebr/sentinel/internal/server/storage"
	"github.com/kamikazebr/sentinel/pkg/models"
	"github.com/kamikazebr/sentinel/pkg/utils"
)

const (
	DefaultTokenTTLSeconds = 60

	// tokenBytes gives an 8 hex character token
	tokenBytes = 4
)

type TokenService struct {
	store  *storage.Store
	access *AccessService
	clock  Clock
}

func NewTokenService(store *storage.Store, access *AccessService, clock Clock) *TokenService {
	return &TokenService{
		store:  store,
		access: access,
		clock:  clock,
	}
}

// CreateToken issues a one-time unlock token for deviceID
func (s *TokenService) CreateToken(ctx context.Context, deviceID string, ttlSeconds int) (*models.UnlockToken, error) {
	device := s.store.GetDevice(deviceID)
	if device == nil {
		return nil, fmt.Errorf("device %s: %w", deviceID, ErrNotFound)
	}
	if ttlSeconds <= 0 {
		ttlSeconds = DefaultTokenTTLSeconds
	}

	value, err := utils.GenerateTokenValue(tokenBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	now := s.clock.now()
	token := models.UnlockToken{
		ID:        uuid.New().String(),
		DeviceID:  device.ID,
		Token:     value,
		CreatedAt: now,
		ExpiresAt: now.Add(time.Duration(ttlSeconds) * time.Second),
	}
	if err := s.store.AddToken(ctx, token); err != nil {
		return nil, fmt.Errorf("failed to record token: %w", err)
	}

	s.store.AddLog(ctx, models.CategoryAuth, models.LevelInfo,
		fmt.Sprintf("One-time token issued for %s", device.Name), fmt.Sprintf("TTL %ds", ttlSeconds))

	return &token, nil
}

// RedeemToken consumes the token and opens a session. Missing, used and
// expired tokens are indistinguishable to the caller.
func (s *TokenService) RedeemToken(ctx context.Context, deviceID, value string, durationMinutes int) (time.Time, error) {
	if deviceID == "" || value == "" {
		return time.Time{}, fmt.Errorf("deviceId and token are required: %w", ErrValidation)
	}

	token, err := s.store.ConsumeToken(ctx, deviceID, value, s.clock.now())
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to consume token: %w", err)
	}
	if token == nil {
		return time.Time{}, fmt.Errorf("token rejected: %w", ErrInvalid)
	}

	return s.access.OpenSession(ctx, deviceID, durationMinutes, "Token redeem", token.ID)
}
