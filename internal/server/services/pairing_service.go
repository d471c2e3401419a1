package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/skip2/go-qrcode"

	"github.com/kamikazebr/sentinel/internal/server/storage"
	"github.com/kamikazebr/sentinel/pkg/models"
	"github.com/kamikazebr/sentinel/pkg/utils"
)

const DefaultPairingTTLMinutes = 10

type PairingService struct {
	store   *storage.Store
	gateway Gateway
	clock   Clock
}

func NewPairingService(store *storage.Store, gateway Gateway, clock Clock) *PairingService {
	return &PairingService{
		store:   store,
		gateway: gateway,
		clock:   clock,
	}
}

// PairingStart is what the operator hands to the device out of band
type PairingStart struct {
	PairingCode   string
	ExpiresAt     time.Time
	TOTPSecret    string
	OTPAuthURL    string
	PairingString string
}

// StartPairing opens a pairing window for deviceID with a fresh code and
// TOTP secret, replacing any window already open for that device.
func (s *PairingService) StartPairing(ctx context.Context, deviceID, deviceName, deviceType, allowedIP string, ttlMinutes int) (*PairingStart, error) {
	if deviceID == "" || deviceName == "" || deviceType == "" || allowedIP == "" {
		return nil, fmt.Errorf("deviceId, deviceName, deviceType, and allowedIp are required: %w", ErrValidation)
	}
	if !utils.IsValidAllowedIP(allowedIP) {
		return nil, fmt.Errorf("allowedIp %q is not an address or CIDR: %w", allowedIP, ErrValidation)
	}
	if ttlMinutes <= 0 {
		ttlMinutes = DefaultPairingTTLMinutes
	}

	code, err := utils.GenerateAuthCode()
	if err != nil {
		return nil, fmt.Errorf("failed to generate pairing code: %w", err)
	}
	secret, otpURL, err := GenerateTOTPSecret(deviceName)
	if err != nil {
		return nil, fmt.Errorf("failed to generate TOTP secret: %w", err)
	}

	expiresAt := s.clock.now().Add(time.Duration(ttlMinutes) * time.Minute)
	session := models.PairingSession{
		DeviceID:    deviceID,
		DeviceName:  deviceName,
		DeviceType:  models.ParseDeviceType(deviceType),
		AllowedIP:   allowedIP,
		PairingCode: code,
		ExpiresAt:   expiresAt,
		TOTPSecret:  secret,
	}
	if err := s.store.StartPairing(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to record pairing: %w", err)
	}

	s.store.AddLog(ctx, models.CategoryAuth, models.LevelInfo,
		fmt.Sprintf("Pairing started for %s", deviceName), fmt.Sprintf("Code %s", code))

	return &PairingStart{
		PairingCode:   code,
		ExpiresAt:     expiresAt,
		TOTPSecret:    secret,
		OTPAuthURL:    otpURL,
		PairingString: utils.PairingURI(deviceID, code),
	}, nil
}

// CompletePairing redeems the pairing code with the device's WireGuard
// public key. The pairing is consumed even if it turns out to be expired.
func (s *PairingService) CompletePairing(ctx context.Context, deviceID, code, publicKey string) (*models.Device, error) {
	if deviceID == "" || code == "" || publicKey == "" {
		return nil, fmt.Errorf("deviceId, pairingCode, and publicKey are required: %w", ErrValidation)
	}
	if !utils.IsValidWireGuardKey(publicKey) {
		return nil, fmt.Errorf("invalid WireGuard public key format: %w", ErrValidation)
	}

	pairing, err := s.store.ConsumePairing(ctx, deviceID, code)
	if err != nil {
		return nil, fmt.Errorf("failed to consume pairing: %w", err)
	}
	if pairing == nil {
		return nil, fmt.Errorf("pairing not found or already used: %w", ErrNotFound)
	}
	if !pairing.ExpiresAt.After(s.clock.now()) {
		return nil, fmt.Errorf("pairing for %s: %w", deviceID, ErrExpired)
	}

	previous := s.store.GetDevice(deviceID)

	device, err := s.store.UpsertDeviceFromPairing(ctx, *pairing, publicKey)
	if err != nil {
		return nil, fmt.Errorf("failed to save device: %w", err)
	}

	// Re-pairing with a new key retires whatever access the old key had
	if previous != nil && previous.PublicKey != publicKey {
		s.retireKey(ctx, previous)
	}

	s.store.AddLog(ctx, models.CategoryAuth, models.LevelSuccess,
		fmt.Sprintf("Paired %s", pairing.DeviceName), fmt.Sprintf("IP %s", pairing.AllowedIP))

	return device, nil
}

func (s *PairingService) retireKey(ctx context.Context, previous *models.Device) {
	cleared, err := s.store.ClearSessionsForDevice(ctx, previous.ID)
	if err != nil {
		slog.Error("Failed to clear sessions for re-paired device", "device", previous.ID, "error", err)
	}
	if len(cleared) == 0 || !utils.IsValidWireGuardKey(previous.PublicKey) {
		return
	}
	if err := s.gateway.Evict(ctx, previous.PublicKey); err != nil {
		slog.Warn("Failed to evict previous key", "device", previous.ID, "error", err)
	}
}

// PairingQR renders the pending pairing's otpauth URL as a PNG
func (s *PairingService) PairingQR(deviceID string, size int) ([]byte, error) {
	pairing := s.store.GetPairing(deviceID)
	if pairing == nil {
		return nil, fmt.Errorf("no pending pairing for %s: %w", deviceID, ErrNotFound)
	}
	if !pairing.ExpiresAt.After(s.clock.now()) {
		return nil, fmt.Errorf("pairing for %s: %w", deviceID, ErrExpired)
	}
	if size <= 0 {
		size = 256
	}

	png, err := qrcode.Encode(utils.OTPAuthURL(pairing.DeviceName, pairing.TOTPSecret), qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("failed to render QR code: %w", err)
	}
	return png, nil
}
