package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/skip2/go-qrcode"
	"github.com/spf13/cobra"

	"github.com/kamikazebr/sentinel/internal/client/api"
	"github.com/kamikazebr/sentinel/internal/client/ui"
	"github.com/kamikazebr/sentinel/internal/server/config"
	"github.com/kamikazebr/sentinel/internal/server/services"
	"github.com/kamikazebr/sentinel/internal/server/wireguard"
	"github.com/kamikazebr/sentinel/pkg/models"
	"github.com/kamikazebr/sentinel/pkg/utils"
)

var adminServerURL string

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Administrative commands",
	Long:  "Operator commands. Everything except the peer commands goes through the running server's HTTP API.",
}

var listDevicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List paired devices and their status",
	RunE:  runListDevicesCommand,
}

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List pending unlock requests and pairings",
	RunE:  runPendingCommand,
}

var approveCmd = &cobra.Command{
	Use:   "approve <request-id>",
	Short: "Approve an unlock request",
	Args:  cobra.ExactArgs(1),
	RunE:  runApproveCommand,
}

var denyCmd = &cobra.Command{
	Use:   "deny <request-id>",
	Short: "Deny an unlock request",
	Args:  cobra.ExactArgs(1),
	RunE:  runDenyCommand,
}

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Interactively approve or deny pending requests",
	RunE:  runReviewCommand,
}

var pairStartCmd = &cobra.Command{
	Use:   "pair-start",
	Short: "Open a pairing window for a device",
	RunE:  runPairStartCommand,
}

var createTokenCmd = &cobra.Command{
	Use:   "create-token",
	Short: "Issue a one-time unlock token",
	RunE:  runCreateTokenCommand,
}

var revokeCmd = &cobra.Command{
	Use:   "revoke <device-id>",
	Short: "Revoke a device's sessions and evict its peer",
	Args:  cobra.ExactArgs(1),
	RunE:  runRevokeCommand,
}

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show the audit log, newest first",
	RunE:  runLogsCommand,
}

var listPeersCmd = &cobra.Command{
	Use:   "list-peers",
	Short: "List WireGuard peers (actual interface config)",
	RunE:  runListPeersCommand,
}

var syncPeersCmd = &cobra.Command{
	Use:   "sync-peers",
	Short: "Remove peers that hold no live session",
	RunE:  runSyncPeersCommand,
}

func init() {
	adminCmd.PersistentFlags().StringVar(&adminServerURL, "server", "", "server URL (default: http://127.0.0.1:<configured port>)")

	approveCmd.Flags().Int("minutes", services.DefaultSessionMinutes, "session length in minutes")

	pairStartCmd.Flags().String("device-id", "", "Device ID (required)")
	pairStartCmd.Flags().String("name", "", "Device name (required)")
	pairStartCmd.Flags().String("type", "linux", "Device type: windows, android, linux, macos")
	pairStartCmd.Flags().String("ip", "", "Tunnel address (default: next free address in the pool)")
	pairStartCmd.Flags().Int("ttl", services.DefaultPairingTTLMinutes, "pairing window in minutes")
	pairStartCmd.Flags().String("qr-png", "", "also write the enrollment QR code to this PNG file")
	pairStartCmd.MarkFlagRequired("device-id")
	pairStartCmd.MarkFlagRequired("name")

	createTokenCmd.Flags().String("device-id", "", "Device ID (required)")
	createTokenCmd.Flags().Int("ttl", 60, "token lifetime in seconds")
	createTokenCmd.MarkFlagRequired("device-id")

	revokeCmd.Flags().Bool("yes", false, "skip the confirmation prompt")

	logsCmd.Flags().Int("limit", 50, "number of entries")

	syncPeersCmd.Flags().Bool("dry-run", false, "only print the peers that would be removed")

	adminCmd.AddCommand(
		listDevicesCmd,
		pendingCmd,
		approveCmd,
		denyCmd,
		reviewCmd,
		pairStartCmd,
		createTokenCmd,
		revokeCmd,
		logsCmd,
		listPeersCmd,
		syncPeersCmd,
	)
}

func loadAdminConfig() (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func newAdminClient() (*api.Client, *config.Config, error) {
	cfg, err := loadAdminConfig()
	if err != nil {
		return nil, nil, err
	}

	serverURL := adminServerURL
	if serverURL == "" {
		serverURL = fmt.Sprintf("http://127.0.0.1:%d", cfg.Port)
	}
	return api.NewClient(strings.TrimRight(serverURL, "/"), cfg.APIKey), cfg, nil
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func runListDevicesCommand(cmd *cobra.Command, args []string) error {
	client, _, err := newAdminClient()
	if err != nil {
		return err
	}

	devices, err := client.ListDevices(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list devices: %w", err)
	}

	if len(devices) == 0 {
		fmt.Println("No devices found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tTYPE\tIP\tSTATUS\tLAST SEEN\tTOTP")
	for _, d := range devices {
		totp := "no"
		if d.HasTOTP() {
			totp = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			d.ID, d.Name, d.Type, d.AllowedIP, ui.StatusStyle(d.Status).Render(string(d.Status)), formatTime(d.LastSeen), totp)
	}
	return w.Flush()
}

func runPendingCommand(cmd *cobra.Command, args []string) error {
	client, _, err := newAdminClient()
	if err != nil {
		return err
	}

	requests, err := client.ListPendingRequests(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list requests: %w", err)
	}
	pairings, err := client.ListPendingPairings(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list pairings: %w", err)
	}

	fmt.Println(ui.TitleStyle.Render(fmt.Sprintf("Unlock requests (%d)", len(requests))))
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, r := range requests {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", r.ID, r.DeviceName, r.RequestSourceIP, r.Reason, formatTime(&r.Timestamp))
	}
	w.Flush()

	fmt.Println()
	fmt.Println(ui.TitleStyle.Render(fmt.Sprintf("Pairings (%d)", len(pairings))))
	for _, p := range pairings {
		fmt.Fprintf(w, "%s\t%s\t%s\texpires %s\n", p.DeviceID, p.DeviceName, p.AllowedIP, formatTime(&p.ExpiresAt))
	}
	return w.Flush()
}

func runApproveCommand(cmd *cobra.Command, args []string) error {
	client, _, err := newAdminClient()
	if err != nil {
		return err
	}
	minutes, _ := cmd.Flags().GetInt("minutes")

	resp, err := client.Approve(cmd.Context(), args[0], minutes)
	if err != nil {
		return fmt.Errorf("failed to approve: %w", err)
	}

	fmt.Println(ui.SuccessStyle.Render(fmt.Sprintf("✓ %s unlocked until %s", resp.DeviceID, formatTime(&resp.ExpiresAt))))
	return nil
}

func runDenyCommand(cmd *cobra.Command, args []string) error {
	client, _, err := newAdminClient()
	if err != nil {
		return err
	}

	if err := client.Deny(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("failed to deny: %w", err)
	}

	fmt.Println("Request denied")
	return nil
}

func runReviewCommand(cmd *cobra.Command, args []string) error {
	client, _, err := newAdminClient()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	for {
		requests, err := client.ListPendingRequests(ctx)
		if err != nil {
			return fmt.Errorf("failed to list requests: %w", err)
		}
		if len(requests) == 0 {
			fmt.Println("No pending requests")
			return nil
		}

		decision, err := ui.Review(requests, time.Now())
		if err != nil {
			return err
		}
		if decision.Action == ui.ReviewQuit {
			return nil
		}

		if err := applyReviewDecision(ctx, client, decision); err != nil {
			fmt.Println(ui.ErrorStyle.Render(err.Error()))
		}
	}
}

func applyReviewDecision(ctx context.Context, client *api.Client, decision ui.ReviewDecision) error {
	req := decision.Request

	if decision.Action == ui.ReviewDeny {
		if err := client.Deny(ctx, req.ID); err != nil {
			return fmt.Errorf("failed to deny %s: %w", req.DeviceName, err)
		}
		fmt.Printf("Denied %s\n", req.DeviceName)
		return nil
	}

	resp, err := client.Approve(ctx, req.ID, decision.Minutes)
	if err != nil {
		return fmt.Errorf("failed to approve %s: %w", req.DeviceName, err)
	}
	fmt.Println(ui.SuccessStyle.Render(fmt.Sprintf("✓ %s unlocked for %s (until %s)",
		req.DeviceName, ui.DurationLabel(decision.Minutes), formatTime(&resp.ExpiresAt))))
	return nil
}

func runPairStartCommand(cmd *cobra.Command, args []string) error {
	client, cfg, err := newAdminClient()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	deviceID, _ := cmd.Flags().GetString("device-id")
	name, _ := cmd.Flags().GetString("name")
	deviceType, _ := cmd.Flags().GetString("type")
	allowedIP, _ := cmd.Flags().GetString("ip")
	ttl, _ := cmd.Flags().GetInt("ttl")
	pngPath, _ := cmd.Flags().GetString("qr-png")

	if allowedIP == "" {
		state, err := client.State(ctx)
		if err != nil {
			return fmt.Errorf("failed to fetch state: %w", err)
		}
		pool, err := services.NewAddressPool(cfg.WireGuard.AddressPool, services.SnapshotSource(*state))
		if err != nil {
			return err
		}
		if allowedIP, err = pool.NextFree(); err != nil {
			return err
		}
		fmt.Printf("Allocated tunnel address %s\n", allowedIP)
	}

	resp, err := client.StartPairing(ctx, models.PairStartRequest{
		DeviceID:          deviceID,
		DeviceName:        name,
		DeviceType:        deviceType,
		AllowedIP:         allowedIP,
		PairingTTLMinutes: ttl,
	})
	if err != nil {
		return fmt.Errorf("failed to start pairing: %w", err)
	}

	fmt.Println(ui.TitleStyle.Render("Pairing window open"))
	fmt.Printf("Device:       %s\n", deviceID)
	fmt.Printf("Pairing code: %s\n", resp.PairingCode)
	fmt.Printf("Expires:      %s\n", formatTime(&resp.ExpiresAt))
	fmt.Printf("Pair string:  %s\n", resp.PairingString)
	fmt.Println()
	fmt.Println("Scan with an authenticator app to enroll TOTP:")

	qr, err := qrcode.New(resp.OTPAuthURL, qrcode.Medium)
	if err != nil {
		return fmt.Errorf("failed to render QR code: %w", err)
	}
	fmt.Println(qr.ToSmallString(false))

	if pngPath != "" {
		png, err := client.PairingQR(ctx, deviceID, 256)
		if err != nil {
			return fmt.Errorf("failed to fetch QR code: %w", err)
		}
		if err := utils.WriteFileWithOwnership(pngPath, png, 0600); err != nil {
			return fmt.Errorf("failed to write %s: %w", pngPath, err)
		}
		fmt.Printf("QR code written to %s\n", pngPath)
	}
	return nil
}

func runCreateTokenCommand(cmd *cobra.Command, args []string) error {
	client, _, err := newAdminClient()
	if err != nil {
		return err
	}
	deviceID, _ := cmd.Flags().GetString("device-id")
	ttl, _ := cmd.Flags().GetInt("ttl")

	resp, err := client.CreateToken(cmd.Context(), deviceID, ttl)
	if err != nil {
		return fmt.Errorf("failed to create token: %w", err)
	}

	fmt.Printf("Token:   %s\n", resp.Token)
	fmt.Printf("Expires: %s\n", formatTime(&resp.ExpiresAt))
	return nil
}

func runRevokeCommand(cmd *cobra.Command, args []string) error {
	client, _, err := newAdminClient()
	if err != nil {
		return err
	}
	deviceID := args[0]

	if yes, _ := cmd.Flags().GetBool("yes"); !yes {
		device := models.Device{ID: deviceID}
		if devices, err := client.ListDevices(cmd.Context()); err == nil {
			for _, d := range devices {
				if d.ID == deviceID {
					device = d
				}
			}
		}

		fmt.Println(ui.WarningStyle.Render("Open sessions end immediately and pending requests are dropped."))
		ok, err := ui.ConfirmDevice("Revoke", device)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("Cancelled")
			return nil
		}
	}

	if err := client.Revoke(cmd.Context(), deviceID); err != nil {
		return fmt.Errorf("failed to revoke: %w", err)
	}

	fmt.Printf("✓ %s revoked\n", deviceID)
	return nil
}

func runLogsCommand(cmd *cobra.Command, args []string) error {
	client, _, err := newAdminClient()
	if err != nil {
		return err
	}
	limit, _ := cmd.Flags().GetInt("limit")

	logs, err := client.Logs(cmd.Context(), limit)
	if err != nil {
		return fmt.Errorf("failed to fetch logs: %w", err)
	}

	for _, entry := range logs {
		line := fmt.Sprintf("%s [%s] %-6s %s", formatTime(&entry.Timestamp), entry.Category, entry.Level, entry.Message)
		if entry.Details != "" {
			line += " | " + entry.Details
		}
		fmt.Println(ui.LevelStyle(entry.Level).Render(line))
	}
	return nil
}

func runListPeersCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadAdminConfig()
	if err != nil {
		return err
	}

	wgManager, err := wireguard.NewManager(cfg.WireGuard.Interface)
	if err != nil {
		return fmt.Errorf("failed to open WireGuard control socket: %w", err)
	}
	defer wgManager.Close()

	peers, err := wgManager.ListPeers()
	if err != nil {
		return fmt.Errorf("failed to list peers: %w", err)
	}

	fmt.Printf("%d peers on %s\n", len(peers), wgManager.InterfaceName())
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PUBLIC KEY\tALLOWED IPS\tENDPOINT\tLAST HANDSHAKE")
	for _, p := range peers {
		ips := make([]string, len(p.AllowedIPs))
		for i, ip := range p.AllowedIPs {
			ips[i] = ip.String()
		}
		endpoint := "-"
		if p.Endpoint != nil {
			endpoint = p.Endpoint.String()
		}
		handshake := "never"
		if !p.LastHandshakeTime.IsZero() {
			handshake = time.Since(p.LastHandshakeTime).Round(time.Second).String() + " ago"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p.PublicKey, strings.Join(ips, ","), endpoint, handshake)
	}
	return w.Flush()
}

func runSyncPeersCommand(cmd *cobra.Command, args []string) error {
	client, cfg, err := newAdminClient()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	state, err := client.State(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch state: %w", err)
	}

	wgManager, err := wireguard.NewManager(cfg.WireGuard.Interface)
	if err != nil {
		return fmt.Errorf("failed to open WireGuard control socket: %w", err)
	}
	defer wgManager.Close()

	peers, err := wgManager.ListPeers()
	if err != nil {
		return fmt.Errorf("failed to list peers: %w", err)
	}

	stale := wireguard.StalePeers(peers, services.AdmittedKeys(*state, time.Now()))
	if len(stale) == 0 {
		fmt.Println("✓ Interface matches the session table")
		return nil
	}

	removed := 0
	for _, p := range stale {
		if dryRun {
			fmt.Printf("would remove %s\n", p.PublicKey)
			continue
		}
		if err := wgManager.Evict(ctx, p.PublicKey.String()); err != nil {
			fmt.Println(ui.ErrorStyle.Render(fmt.Sprintf("failed to remove %s: %v", p.PublicKey, err)))
			continue
		}
		removed++
		fmt.Printf("removed %s\n", p.PublicKey)
	}

	if !dryRun {
		fmt.Printf("Removed %d of %d stale peers\n", removed, len(stale))
	}
	return nil
}
