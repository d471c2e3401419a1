package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kamikazebr/sentinel/pkg/utils"
)

const (
	ConfigFile = "config.json"
)

// GetConfigDir returns the config directory path for the current user
// When running with sudo, it returns the actual user's home directory (not /root)
func GetConfigDir() (string, error) {
	home, err := utils.HomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user directory: %w", err)
	}

	return filepath.Join(home, ".sentinel"), nil
}

type Config struct {
	ServerURL string    `json:"server_url"`
	APIKey    string    `json:"api_key,omitempty"`
	DeviceID  string    `json:"device_id"`
	PairedAt  time.Time `json:"paired_at"`

	// WireGuard device info
	DeviceName string `json:"device_name,omitempty"`
	PrivateKey string `json:"private_key,omitempty"`
	PublicKey  string `json:"public_key,omitempty"`
	AllowedIP  string `json:"allowed_ip,omitempty"`
	TOTPSecret string `json:"totp_secret,omitempty"`

	ServerPublicKey string `json:"server_public_key,omitempty"`
	ServerEndpoint  string `json:"server_endpoint,omitempty"`
	TunnelRoutes    string `json:"tunnel_routes,omitempty"`
}

// Paired reports whether pairing completed and a key pair is stored
func (c *Config) Paired() bool {
	return c.DeviceID != "" && c.PrivateKey != ""
}

// Load loads the configuration from disk. A missing file yields (nil, nil).
func Load() (*Config, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return nil, err
	}
	return LoadFrom(filepath.Join(configDir, ConfigFile))
}

func LoadFrom(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &config, nil
}

// Save saves the configuration to disk
func (c *Config) Save() error {
	configDir, err := GetConfigDir()
	if err != nil {
		return err
	}

	if err := utils.MkdirAllWithOwnership(configDir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	configPath := filepath.Join(configDir, ConfigFile)
	if err := c.SaveTo(configPath); err != nil {
		return err
	}

	// Fix ownership if running under sudo
	utils.FixFileOwnership(configDir)
	utils.FixFileOwnership(configPath)

	return nil
}

// SaveTo writes the config with owner-only permissions; it holds the private key
func (c *Config) SaveTo(configPath string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := utils.WriteFileAtomic(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Delete deletes the configuration file
func Delete() error {
	configDir, err := GetConfigDir()
	if err != nil {
		return err
	}

	configPath := filepath.Join(configDir, ConfigFile)
	return os.Remove(configPath)
}
