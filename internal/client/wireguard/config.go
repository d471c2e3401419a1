package wireguard

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/kamikazebr/sentinel/pkg/utils"
)

const DefaultInterface = "sentinel0"

// TunnelConfig is what a paired device needs to reach the server
type TunnelConfig struct {
	PrivateKey string
	Address    string
	ServerKey  string
	Endpoint   string
	AllowedIPs string
}

// Render produces a wg-quick config. The server only admits the peer while
// a session is open, so the handshake fails until an unlock succeeds.
func (c TunnelConfig) Render() string {
	address := c.Address
	if !strings.Contains(address, "/") {
		address += "/32"
	}

	return fmt.Sprintf(`[Interface]
PrivateKey = %s
Address = %s

[Peer]
PublicKey = %s
Endpoint = %s
AllowedIPs = %s
PersistentKeepalive = 25
`, c.PrivateKey, address, c.ServerKey, c.Endpoint, c.AllowedIPs)
}

func (c TunnelConfig) Validate() error {
	switch {
	case c.PrivateKey == "":
		return fmt.Errorf("device is not paired")
	case c.ServerKey == "" || c.Endpoint == "":
		return fmt.Errorf("server public key and endpoint are required")
	case c.AllowedIPs == "":
		return fmt.Errorf("tunnel routes are required")
	}
	return nil
}

// configDir returns the WireGuard configuration directory for the current platform
func configDir() string {
	switch runtime.GOOS {
	case "darwin":
		// Apple Silicon Homebrew first, then Intel
		if _, err := os.Stat("/opt/homebrew/etc/wireguard"); err == nil {
			return "/opt/homebrew/etc/wireguard"
		}
		if _, err := os.Stat("/usr/local/etc/wireguard"); err == nil {
			return "/usr/local/etc/wireguard"
		}
		return "/etc/wireguard"

	case "windows":
		if programFiles := os.Getenv("ProgramFiles"); programFiles != "" {
			return filepath.Join(programFiles, "WireGuard", "Data", "Configurations")
		}
		return "C:\\Program Files\\WireGuard\\Data\\Configurations"

	default:
		return "/etc/wireguard"
	}
}

// ConfigPath returns the full path to the config file for the interface
func ConfigPath(interfaceName string) string {
	return filepath.Join(configDir(), interfaceName+".conf")
}

// SaveConfig writes cfg to path, creating its directory if needed
func SaveConfig(cfg TunnelConfig, path string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create WireGuard config directory %s: %w\nHint: Try running with sudo", filepath.Dir(path), err)
	}
	if err := utils.WriteFileAtomic(path, []byte(cfg.Render()), 0600); err != nil {
		return fmt.Errorf("failed to save config to %s: %w\nHint: Try running with sudo", path, err)
	}
	return nil
}

// CheckInstalled checks if wg-quick is on PATH
func CheckInstalled() bool {
	_, err := exec.LookPath("wg-quick")
	return err == nil
}

// Up brings the interface up with wg-quick, cycling it if it already exists
func Up(interfaceName string) error {
	if exec.Command("wg", "show", interfaceName).Run() == nil {
		_ = exec.Command("wg-quick", "down", interfaceName).Run()
	}

	output, err := exec.Command("wg-quick", "up", interfaceName).CombinedOutput()
	if err != nil {
		return fmt.Errorf("failed to connect: %w\nOutput: %s", err, string(output))
	}
	return nil
}

func Down(interfaceName string) error {
	output, err := exec.Command("wg-quick", "down", interfaceName).CombinedOutput()
	if err != nil {
		return fmt.Errorf("failed to disconnect: %w\nOutput: %s", err, string(output))
	}
	return nil
}
