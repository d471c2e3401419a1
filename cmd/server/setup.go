package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/kamikazebr/sentinel/internal/server/config"
	"github.com/kamikazebr/sentinel/internal/server/setup"
)

var setupConfigDir string

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Create server keys and bring up the WireGuard interface (requires root)",
	Run:   runSetup,
}

func init() {
	setupCmd.Flags().StringVar(&setupConfigDir, "wg-dir", "/etc/wireguard", "directory for the wg-quick interface config")
	rootCmd.AddCommand(setupCmd)
}

func runSetup(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(configFile)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	setupLogger(cfg.SlogLevel())

	result, err := setup.Run(setup.Options{
		Interface:   cfg.WireGuard.Interface,
		ListenPort:  cfg.WireGuard.ListenPort,
		AddressPool: cfg.WireGuard.AddressPool,
		KeyDir:      cfg.WireGuard.KeyDir,
		ConfigDir:   setupConfigDir,
	})
	if err != nil {
		slog.Error("Setup failed", "error", err)
		os.Exit(1)
	}

	fmt.Printf("Interface:   %s\n", cfg.WireGuard.Interface)
	fmt.Printf("Config:      %s\n", result.ConfigPath)
	fmt.Printf("Public key:  %s\n", result.PublicKey)
	fmt.Printf("Listen port: %d\n", cfg.WireGuard.ListenPort)
	if result.Started {
		fmt.Println("WireGuard interface started")
	}
	fmt.Println("\nClients pair with: sentinel pair --server-key <public key> --endpoint <host>:<port>")
}
