package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kamikazebr/sentinel/internal/server/api"
	"github.com/kamikazebr/sentinel/internal/server/config"
	"github.com/kamikazebr/sentinel/internal/server/services"
	"github.com/kamikazebr/sentinel/internal/server/storage"
	"github.com/kamikazebr/sentinel/internal/server/wireguard"
	"github.com/kamikazebr/sentinel/pkg/version"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "sentinel-server",
	Short: "Sentinel - approval-gated WireGuard access",
	Long:  "Server component for Sentinel: pairs devices, gates WireGuard peers behind unlock approvals and expires them",
	// Default to serve command if no subcommand provided
	Run: func(cmd *cobra.Command, args []string) {
		runServe(cmd, args)
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API, reaper and health monitor",
	Run:   runServe,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.Current().Short("sentinel-server"))
		if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
			fmt.Println(version.Current().Detail())
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to sentinel.yaml (default: ./sentinel.yaml, /etc/sentinel/sentinel.yaml)")
	versionCmd.Flags().BoolP("verbose", "v", false, "show commit, build time and Go version")
	rootCmd.AddCommand(serveCmd, adminCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func setupLogger(level slog.Level) {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}

// openPersister builds the configured snapshot backend. The returned closer
// releases any connection it holds.
func openPersister(ctx context.Context, cfg *config.Config) (storage.Persister, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Storage.Type {
	case config.StorageFile:
		p, err := storage.NewFilePersister(cfg.StatePath)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("Using file storage", "path", p.Path())
		return p, noop, nil

	case config.StoragePostgres, config.StorageSQLite:
		driver := storage.DriverPostgres
		if cfg.Storage.Type == config.StorageSQLite {
			driver = storage.DriverSQLite
		}
		db, err := storage.NewSQLDB(driver, cfg.Storage.DSN)
		if err != nil {
			return nil, nil, err
		}
		p, err := storage.NewSQLPersister(ctx, db)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		return p, db.Close, nil

	case config.StorageFirestore:
		p, err := storage.NewFirestorePersister(ctx, cfg.Storage.FirestoreProject, cfg.Storage.FirestoreCredentials)
		if err != nil {
			return nil, nil, err
		}
		return p, p.Close, nil
	}

	return nil, nil, fmt.Errorf("unknown storage type %q", cfg.Storage.Type)
}

// buildNotifier enables every backend that has credentials configured
func buildNotifier(ctx context.Context, cfg *config.Config) services.Notifier {
	var notifiers services.MultiNotifier

	if cfg.Notify.ResendAPIKey != "" {
		email, err := services.NewEmailNotifier(cfg.Notify.ResendAPIKey, cfg.Notify.EmailFrom, cfg.Notify.EmailTo)
		if err != nil {
			slog.Warn("Email notifications disabled", "error", err)
		} else {
			notifiers = append(notifiers, email)
			slog.Info("Email notifications enabled", "recipients", len(cfg.Notify.EmailTo))
		}
	}

	if cfg.Notify.FirebaseCredentials != "" {
		push, err := services.NewPushNotifier(ctx, cfg.Notify.FirebaseCredentials, cfg.Notify.FCMTopic)
		if err != nil {
			slog.Warn("Push notifications disabled", "error", err)
		} else {
			notifiers = append(notifiers, push)
			slog.Info("Push notifications enabled", "topic", cfg.Notify.FCMTopic)
		}
	}

	if len(notifiers) == 0 {
		return services.NopNotifier{}
	}
	return notifiers
}

func runServe(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(configFile)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	setupLogger(cfg.SlogLevel())

	slog.Info("Starting Sentinel", version.Current().LogAttrs()...)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	persister, closePersister, err := openPersister(ctx, cfg)
	if err != nil {
		slog.Error("Failed to open storage", "type", cfg.Storage.Type, "error", err)
		os.Exit(1)
	}
	defer closePersister()

	store, err := storage.Open(ctx, persister)
	if err != nil {
		slog.Error("Failed to load state", "error", err)
		os.Exit(1)
	}
	slog.Info("State loaded", "storage", cfg.Storage.Type, "devices", len(store.ListDevices()))

	wgManager, err := wireguard.NewManager(cfg.WireGuard.Interface)
	if err != nil {
		slog.Error("Failed to open WireGuard control socket", "error", err)
		os.Exit(1)
	}
	defer wgManager.Close()

	if !wgManager.Available() {
		slog.Warn("WireGuard interface not found, unlocks will fail until it exists", "interface", cfg.WireGuard.Interface)
	}

	notifier := buildNotifier(ctx, cfg)

	accessService := services.NewAccessService(store, wgManager, notifier, time.Now)
	pairingService := services.NewPairingService(store, wgManager, time.Now)
	tokenService := services.NewTokenService(store, accessService, time.Now)
	reaper := services.NewReaper(store, wgManager, accessService, cfg.Reaper.Interval, time.Now)
	healthMonitor := services.NewHealthMonitor(services.NewSTUNProber(cfg.Health.Target), wgManager, cfg.Health.Interval, time.Now)
	limiter := services.NewRateLimiter(cfg.Rate.Max, cfg.Rate.Window, cfg.Rate.Allowlist, time.Now)

	handler := api.NewRouter(api.RouterConfig{
		APIKey:         cfg.APIKey,
		AllowedOrigins: cfg.AllowedOrigins,
		Store:          store,
		Access:         accessService,
		Pairing:        pairingService,
		Tokens:         tokenService,
		Health:         healthMonitor,
		Limiter:        limiter,
	})

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Background jobs stop when ctx is cancelled
	var wg sync.WaitGroup
	for _, job := range []func(context.Context){reaper.Run, healthMonitor.Run, limiter.Run} {
		wg.Add(1)
		go func(run func(context.Context)) {
			defer wg.Done()
			run(ctx)
		}(job)
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("Server starting", "addr", cfg.Addr(), "interface", wgManager.InterfaceName())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		slog.Info("Server shutting down...")
	case err := <-serverErr:
		slog.Error("Server failed", "error", err)
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}
	wg.Wait()

	slog.Info("Server stopped")
}
