package setup

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"

	"github.com/kamikazebr/sentinel/pkg/utils"
)

const (
	privateKeyFile = "server_private.key"
	publicKeyFile  = "server_public.key"
)

// Options describes the gateway interface the server manages peers on
type Options struct {
	Interface   string
	ListenPort  int
	AddressPool string
	KeyDir      string
	// ConfigDir is where <Interface>.conf is written, normally /etc/wireguard
	ConfigDir string
}

// Result reports what Run produced
type Result struct {
	PublicKey  string
	ConfigPath string
	Started    bool
}

// Run prepares the WireGuard interface. Every step is idempotent: existing
// keys and a running interface are left alone.
func Run(opts Options) (*Result, error) {
	slog.Info("Checking WireGuard setup...")

	if os.Geteuid() != 0 {
		return nil, fmt.Errorf("setup must run as root. Please run with: sudo sentinel-server setup")
	}
	if !commandExists("wg-quick") {
		return nil, fmt.Errorf("wg-quick not found, install wireguard-tools first")
	}

	if err := enableIPForwarding(); err != nil {
		slog.Warn("Failed to enable IP forwarding", "error", err)
	}

	publicKey, err := EnsureServerKey(opts.KeyDir)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare server keys: %w", err)
	}
	slog.Info("Server keys ready", "public_key", publicKey)

	privateKey, err := os.ReadFile(filepath.Join(opts.KeyDir, privateKeyFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read server private key: %w", err)
	}

	cfg, err := RenderInterfaceConfig(opts, strings.TrimSpace(string(privateKey)), detectPrimaryInterface())
	if err != nil {
		return nil, err
	}

	configPath := filepath.Join(opts.ConfigDir, opts.Interface+".conf")
	if err := utils.MkdirAllWithOwnership(opts.ConfigDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", opts.ConfigDir, err)
	}
	if err := utils.WriteFileAtomic(configPath, []byte(cfg), 0600); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", configPath, err)
	}
	slog.Info("WireGuard config written", "path", configPath)

	result := &Result{PublicKey: publicKey, ConfigPath: configPath}
	started, err := startInterface(opts.Interface)
	if err != nil {
		return result, err
	}
	result.Started = started
	return result, nil
}

// EnsureServerKey creates the server key pair under dir unless it exists,
// and returns the public key.
func EnsureServerKey(dir string) (string, error) {
	privatePath := filepath.Join(dir, privateKeyFile)
	publicPath := filepath.Join(dir, publicKeyFile)

	if data, err := os.ReadFile(privatePath); err == nil {
		key, err := wgtypes.ParseKey(strings.TrimSpace(string(data)))
		if err != nil {
			return "", fmt.Errorf("existing %s is not a WireGuard key: %w", privatePath, err)
		}
		return key.PublicKey().String(), nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", err
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", err
	}

	key, err := wgtypes.GeneratePrivateKey()
	if err != nil {
		return "", fmt.Errorf("failed to generate private key: %w", err)
	}
	if err := utils.WriteFileAtomic(privatePath, []byte(key.String()+"\n"), 0600); err != nil {
		return "", err
	}
	public := key.PublicKey().String()
	if err := utils.WriteFileAtomic(publicPath, []byte(public+"\n"), 0644); err != nil {
		return "", err
	}
	return public, nil
}

// ServerAddress returns the .1 address of the pool with its prefix length
func ServerAddress(pool string) (string, error) {
	_, network, err := net.ParseCIDR(pool)
	if err != nil {
		return "", fmt.Errorf("invalid address pool: %w", err)
	}
	ip := network.IP.To4()
	if ip == nil {
		return "", fmt.Errorf("IPv6 not supported")
	}
	server := net.IPv4(ip[0], ip[1], ip[2], ip[3]+1)
	ones, _ := network.Mask.Size()
	return fmt.Sprintf("%s/%d", server, ones), nil
}

// RenderInterfaceConfig builds the wg-quick config. It carries no [Peer]
// sections; peers exist only while a session is open.
func RenderInterfaceConfig(opts Options, privateKey, uplink string) (string, error) {
	address, err := ServerAddress(opts.AddressPool)
	if err != nil {
		return "", err
	}
	if uplink == "" {
		uplink = "eth0"
	}

	return fmt.Sprintf(`[Interface]
PrivateKey = %s
Address = %s
ListenPort = %d
PostUp = iptables -A FORWARD -i %s -j ACCEPT; iptables -t nat -A POSTROUTING -o %s -j MASQUERADE
PostDown = iptables -D FORWARD -i %s -j ACCEPT; iptables -t nat -D POSTROUTING -o %s -j MASQUERADE

# Peers are added and removed by sentinel-server
`, privateKey, address, opts.ListenPort, opts.Interface, uplink, opts.Interface, uplink), nil
}

func enableIPForwarding() error {
	output, err := exec.Command("sysctl", "net.ipv4.ip_forward").Output()
	if err == nil && strings.Contains(string(output), "= 1") {
		return nil
	}
	return runCommand("sysctl", "-w", "net.ipv4.ip_forward=1")
}

func detectPrimaryInterface() string {
	// "default via 192.168.1.1 dev eth0 ..."
	output, err := exec.Command("ip", "route", "show", "default").Output()
	if err != nil {
		return ""
	}

	fields := strings.Fields(string(output))
	for i, field := range fields {
		if field == "dev" && i+1 < len(fields) {
			return fields[i+1]
		}
	}
	return ""
}

// startInterface brings the interface up unless it already is
func startInterface(interfaceName string) (bool, error) {
	if output, err := exec.Command("ip", "link", "show", interfaceName).Output(); err == nil && strings.Contains(string(output), "UP") {
		slog.Info("WireGuard interface already running", "interface", interfaceName)
		return false, nil
	}

	if err := runCommand("wg-quick", "up", interfaceName); err != nil {
		return false, err
	}
	slog.Info("WireGuard interface started", "interface", interfaceName)
	return true, nil
}

func runCommand(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("command '%s %s' failed: %w\nOutput: %s", name, strings.Join(args, " "), err, string(output))
	}
	return nil
}

func commandExists(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}
