package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/skip2/go-qrcode"
	"github.com/spf13/cobra"

	"github.com/kamikazebr/sentinel/internal/client/api"
	"github.com/kamikazebr/sentinel/internal/client/config"
	"github.com/kamikazebr/sentinel/internal/client/ui"
	"github.com/kamikazebr/sentinel/internal/client/wireguard"
	"github.com/kamikazebr/sentinel/pkg/models"
	"github.com/kamikazebr/sentinel/pkg/utils"
	"github.com/kamikazebr/sentinel/pkg/version"
)

var (
	serverURL string
	apiKey    string
)

var rootCmd = &cobra.Command{
	Use:           "sentinel",
	Short:         "Sentinel device client",
	Long:          "Pairs this device with a Sentinel server and asks it to open the WireGuard tunnel",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var pairCmd = &cobra.Command{
	Use:   "pair",
	Short: "Complete pairing with a code from the operator",
	RunE:  runPair,
}

var requestCmd = &cobra.Command{
	Use:   "request",
	Short: "Ask the operator to unlock this device",
	RunE:  runRequest,
}

var redeemCmd = &cobra.Command{
	Use:   "redeem <token>",
	Short: "Unlock with a one-time token",
	Args:  cobra.ExactArgs(1),
	RunE:  runRedeem,
}

var totpCmd = &cobra.Command{
	Use:   "totp [code]",
	Short: "Unlock with a TOTP code (generated from the stored secret if omitted)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runTOTP,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show this device's status on the server",
	RunE:  runStatus,
}

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Bring the WireGuard tunnel up (requires root)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return wireguard.Up(wireguard.DefaultInterface)
	},
}

var downCmd = &cobra.Command{
	Use:   "down",
	Short: "Bring the WireGuard tunnel down (requires root)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return wireguard.Down(wireguard.DefaultInterface)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.Current().Short("sentinel"))
		if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
			fmt.Println(version.Current().Detail())
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "server URL (overrides the saved one)")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", os.Getenv("SENTINEL_API_KEY"), "API key (env SENTINEL_API_KEY)")

	pairCmd.Flags().String("pair-string", "", "sentinel://pair?... string shown by the operator")
	pairCmd.Flags().String("device-id", "", "Device ID (if no pair string)")
	pairCmd.Flags().String("code", "", "Pairing code (if no pair string)")
	pairCmd.Flags().String("name", "", "Account label for the authenticator app (default: device ID)")
	pairCmd.Flags().String("server-key", "", "server WireGuard public key, to write a tunnel config")
	pairCmd.Flags().String("endpoint", "", "server WireGuard endpoint host:port")
	pairCmd.Flags().String("routes", "10.10.0.0/24", "networks routed through the tunnel")

	requestCmd.Flags().String("reason", "", "why access is needed")
	redeemCmd.Flags().Int("minutes", 0, "session length (server default if 0)")
	totpCmd.Flags().Int("minutes", 0, "session length (server default if 0)")

	versionCmd.Flags().BoolP("verbose", "v", false, "show commit, build time and Go version")
	rootCmd.AddCommand(pairCmd, requestCmd, redeemCmd, totpCmd, statusCmd, upCmd, downCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, ui.ErrorStyle.Render("Error: "+err.Error()))
		os.Exit(1)
	}
}

// loadPaired returns the saved config, requiring a completed pairing
func loadPaired() (*config.Config, *api.Client, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if cfg == nil || !cfg.Paired() {
		return nil, nil, fmt.Errorf("this device is not paired, run: sentinel pair")
	}
	return cfg, newClient(cfg), nil
}

func newClient(cfg *config.Config) *api.Client {
	url := cfg.ServerURL
	if serverURL != "" {
		url = serverURL
	}
	key := cfg.APIKey
	if apiKey != "" {
		key = apiKey
	}
	return api.NewClient(strings.TrimRight(url, "/"), key)
}

func runPair(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	pairString, _ := cmd.Flags().GetString("pair-string")
	deviceID, _ := cmd.Flags().GetString("device-id")
	code, _ := cmd.Flags().GetString("code")
	if pairString != "" {
		var err error
		if deviceID, code, err = utils.ParsePairingURI(pairString); err != nil {
			return err
		}
	}
	if deviceID == "" || code == "" {
		return fmt.Errorf("either --pair-string or both --device-id and --code are required")
	}
	if serverURL == "" {
		return fmt.Errorf("--server is required for pairing")
	}

	existing, err := config.Load()
	if err != nil {
		return err
	}
	if existing != nil && existing.Paired() && existing.DeviceID != deviceID {
		fmt.Println(ui.WarningStyle.Render("This device is already paired; the old key stops working."))
		ok, err := ui.ConfirmDevice("Replace pairing for", models.Device{
			ID:        existing.DeviceID,
			Name:      existing.DeviceName,
			AllowedIP: existing.AllowedIP,
		})
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
	}

	privateKey, publicKey, err := wireguard.GenerateKeyPair()
	if err != nil {
		return err
	}

	cfg := &config.Config{ServerURL: serverURL, APIKey: apiKey}
	client := newClient(cfg)
	if err := client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("server not reachable: %w", err)
	}

	resp, err := client.CompletePairing(ctx, deviceID, code, publicKey)
	if err != nil {
		switch api.StatusCode(err) {
		case http.StatusNotFound:
			return fmt.Errorf("pairing code not found or already used")
		case http.StatusGone:
			return fmt.Errorf("pairing code expired, ask the operator for a new one")
		}
		return err
	}

	name, _ := cmd.Flags().GetString("name")
	if name == "" {
		name = deviceID
	}

	cfg.DeviceID = resp.DeviceID
	cfg.DeviceName = name
	cfg.PrivateKey = privateKey
	cfg.PublicKey = publicKey
	cfg.TOTPSecret = resp.TOTPSecret
	cfg.PairedAt = time.Now().UTC()
	cfg.ServerPublicKey, _ = cmd.Flags().GetString("server-key")
	cfg.ServerEndpoint, _ = cmd.Flags().GetString("endpoint")
	cfg.TunnelRoutes, _ = cmd.Flags().GetString("routes")

	if devices, err := client.ListDevices(ctx); err == nil {
		for _, d := range devices {
			if d.ID == cfg.DeviceID {
				cfg.AllowedIP = d.AllowedIP
			}
		}
	}

	if err := cfg.Save(); err != nil {
		return err
	}

	fmt.Println(ui.SuccessStyle.Render("✓ Paired as " + cfg.DeviceID))

	if cfg.TOTPSecret != "" {
		fmt.Println()
		fmt.Println("Add this to your authenticator app to unlock with TOTP:")
		qr, err := qrcode.New(utils.OTPAuthURL(name, cfg.TOTPSecret), qrcode.Medium)
		if err == nil {
			fmt.Println(qr.ToSmallString(false))
		}
		fmt.Printf("Secret: %s\n", cfg.TOTPSecret)
	}

	if cfg.ServerPublicKey != "" && cfg.ServerEndpoint != "" {
		path := wireguard.ConfigPath(wireguard.DefaultInterface)
		err := wireguard.SaveConfig(wireguard.TunnelConfig{
			PrivateKey: cfg.PrivateKey,
			Address:    cfg.AllowedIP,
			ServerKey:  cfg.ServerPublicKey,
			Endpoint:   cfg.ServerEndpoint,
			AllowedIPs: cfg.TunnelRoutes,
		}, path)
		if err != nil {
			fmt.Println(ui.WarningStyle.Render("Tunnel config not written: " + err.Error()))
		} else {
			fmt.Printf("Tunnel config written to %s\n", path)
		}
	}

	return nil
}

func runRequest(cmd *cobra.Command, args []string) error {
	cfg, client, err := loadPaired()
	if err != nil {
		return err
	}
	reason, _ := cmd.Flags().GetString("reason")

	req, err := client.RequestUnlock(cmd.Context(), cfg.DeviceID, reason)
	if err != nil {
		return err
	}

	fmt.Printf("Unlock request %s sent, waiting for operator approval\n", req.ID)
	return nil
}

func printUnlocked(expiresAt time.Time) {
	fmt.Println(ui.SuccessStyle.Render(fmt.Sprintf("✓ Unlocked until %s", expiresAt.Local().Format("15:04:05"))))
}

func runRedeem(cmd *cobra.Command, args []string) error {
	cfg, client, err := loadPaired()
	if err != nil {
		return err
	}
	minutes, _ := cmd.Flags().GetInt("minutes")

	resp, err := client.RedeemToken(cmd.Context(), cfg.DeviceID, args[0], minutes)
	if err != nil {
		if api.StatusCode(err) == http.StatusBadRequest {
			return fmt.Errorf("invalid or expired token")
		}
		return err
	}

	printUnlocked(resp.ExpiresAt)
	return nil
}

// currentCode picks the code from args or derives it from the stored secret
func currentCode(cfg *config.Config, args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	if cfg.TOTPSecret == "" {
		return "", fmt.Errorf("no TOTP secret stored, pass the code from your authenticator")
	}
	return totp.GenerateCode(cfg.TOTPSecret, time.Now())
}

func runTOTP(cmd *cobra.Command, args []string) error {
	cfg, client, err := loadPaired()
	if err != nil {
		return err
	}
	minutes, _ := cmd.Flags().GetInt("minutes")

	code, err := currentCode(cfg, args)
	if err != nil {
		return err
	}

	resp, err := client.UnlockTOTP(cmd.Context(), cfg.DeviceID, code, minutes)
	if err != nil {
		if errors.Is(err, api.ErrUnauthorized) {
			return fmt.Errorf("invalid TOTP code (or API key)")
		}
		return err
	}

	printUnlocked(resp.ExpiresAt)
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, client, err := loadPaired()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
	defer cancel()

	devices, err := client.ListDevices(ctx)
	if err != nil {
		return err
	}

	found := false
	for _, d := range devices {
		if d.ID != cfg.DeviceID {
			continue
		}
		found = true
		fmt.Println(ui.TitleStyle.Render(d.Name))
		fmt.Printf("Status:    %s\n", ui.StatusStyle(d.Status).Render(string(d.Status)))
		fmt.Printf("Address:   %s\n", d.AllowedIP)
		if d.LastSeen != nil {
			fmt.Printf("Last seen: %s\n", d.LastSeen.Local().Format(time.RFC1123))
		}
		if d.PublicKey != cfg.PublicKey {
			fmt.Println(ui.WarningStyle.Render("Server holds a different key for this device, pair again"))
		}
	}
	if !found {
		return fmt.Errorf("device %s is not known to the server", cfg.DeviceID)
	}

	if health, err := client.Health(ctx); err == nil {
		fmt.Printf("Server:    up %s, %d active tunnels\n", health.Uptime, health.ActiveTunnels)
	}
	return nil
}
