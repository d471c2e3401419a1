package storage

import "github.com/kamikazebr/sentinel/pkg/models"

// PlaceholderKey marks a pre-seeded device that has not paired yet
const PlaceholderKey = "<FILL_ME>"

// DefaultState is the device set written on first start
func DefaultState() models.StateSnapshot {
	return models.StateSnapshot{
		Devices: []models.Device{
			{
				ID:        "dev-main-win11",
				Name:      "Main_Laptop_Win11",
				Type:      models.DeviceWindows,
				PublicKey: PlaceholderKey,
				AllowedIP: "10.10.0.2/32",
				Status:    models.StatusLocked,
			},
			{
				ID:        "dev-pixel8",
				Name:      "Pixel_8",
				Type:      models.DeviceAndroid,
				PublicKey: PlaceholderKey,
				AllowedIP: "10.10.0.3/32",
				Status:    models.StatusOffline,
			},
		},
		Requests: []models.UnlockRequest{},
		Sessions: []models.ActiveSession{},
		Logs:     []models.LogEntry{},
		Pairings: []models.PairingSession{},
		Tokens:   []models.UnlockToken{},
	}
}
