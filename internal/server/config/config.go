package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/kamikazebr/sentinel/pkg/utils"
)

const EnvPrefix = "SENTINEL"

const (
	StorageFile      = "file"
	StoragePostgres  = "postgres"
	StorageSQLite    = "sqlite"
	StorageFirestore = "firestore"
)

type RateConfig struct {
	Max       int           `mapstructure:"max"`
	Window    time.Duration `mapstructure:"window"`
	Allowlist []string      `mapstructure:"allowlist"`
}

type StorageConfig struct {
	// One of file, postgres, sqlite, firestore
	Type                 string `mapstructure:"type"`
	DSN                  string `mapstructure:"dsn"`
	FirestoreProject     string `mapstructure:"firestore_project"`
	FirestoreCredentials string `mapstructure:"firestore_credentials"`
}

type WireGuardConfig struct {
	Interface   string `mapstructure:"interface"`
	AddressPool string `mapstructure:"address_pool"`
	ListenPort  int    `mapstructure:"listen_port"`
	KeyDir      string `mapstructure:"key_dir"` // server_private.key / server_public.key
}

type ReaperConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

type HealthConfig struct {
	Target   string        `mapstructure:"target"`
	Interval time.Duration `mapstructure:"interval"`
}

type NotifyConfig struct {
	ResendAPIKey        string   `mapstructure:"resend_api_key"`
	EmailFrom           string   `mapstructure:"email_from"`
	EmailTo             []string `mapstructure:"email_to"`
	FirebaseCredentials string   `mapstructure:"firebase_credentials"`
	FCMTopic            string   `mapstructure:"fcm_topic"`
}

type Config struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`

	// Empty disables the API key check
	APIKey         string   `mapstructure:"api_key"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`

	Rate      RateConfig      `mapstructure:"rate"`
	StatePath string          `mapstructure:"state_path"`
	Storage   StorageConfig   `mapstructure:"storage"`
	WireGuard WireGuardConfig `mapstructure:"wg"`
	Reaper    ReaperConfig    `mapstructure:"reaper"`
	Health    HealthConfig    `mapstructure:"health"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	LogLevel  string          `mapstructure:"log_level"`
}

func Defaults() map[string]any {
	return map[string]any{
		"host":                          "0.0.0.0",
		"port":                          8787,
		"api_key":                       "",
		"allowed_origins":               []string{},
		"rate.max":                      60,
		"rate.window":                   time.Minute,
		"rate.allowlist":                []string{},
		"state_path":                    "./data/state.json",
		"storage.type":                  StorageFile,
		"storage.dsn":                   "",
		"storage.firestore_project":     "",
		"storage.firestore_credentials": "",
		"wg.interface":                  "wg0",
		"wg.address_pool":               "10.10.0.0/24",
		"wg.listen_port":                51820,
		"wg.key_dir":                    "/etc/wireguard",
		"reaper.interval":               15 * time.Second,
		"health.target":                 "stun.l.google.com:19302",
		"health.interval":               5 * time.Second,
		"notify.resend_api_key":         "",
		"notify.email_from":             "",
		"notify.email_to":               []string{},
		"notify.firebase_credentials":   "",
		"notify.fcm_topic":              "",
		"log_level":                     "info",
	}
}

// Load reads .env, then an optional sentinel.yaml, then SENTINEL_* environment
// variables, in increasing priority. configFile overrides the search path.
func Load(configFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("Failed to parse .env file", "error", err)
	}

	v := viper.New()
	v.SetConfigName("sentinel")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/sentinel")
	if configFile != "" {
		v.SetConfigFile(configFile)
	}

	for k, val := range Defaults() {
		v.SetDefault(k, val)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		slog.Debug("Loaded config file", "path", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	cfg.AllowedOrigins = splitList(cfg.AllowedOrigins)
	cfg.Rate.Allowlist = splitList(cfg.Rate.Allowlist)
	cfg.Notify.EmailTo = splitList(cfg.Notify.EmailTo)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.APIKey == "" {
		slog.Warn("API key is not set, the HTTP API is open to anyone who can reach it")
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Storage.Type {
	case StorageFile:
		if c.StatePath == "" {
			return fmt.Errorf("state_path is required for file storage")
		}
	case StoragePostgres, StorageSQLite:
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage.dsn is required for %s storage", c.Storage.Type)
		}
	case StorageFirestore:
		if c.Storage.FirestoreCredentials == "" {
			return fmt.Errorf("storage.firestore_credentials is required for firestore storage")
		}
	default:
		return fmt.Errorf("unknown storage type %q", c.Storage.Type)
	}

	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if !utils.IsValidCIDR(c.WireGuard.AddressPool) {
		return fmt.Errorf("invalid wg.address_pool %q", c.WireGuard.AddressPool)
	}
	if c.WireGuard.ListenPort <= 0 || c.WireGuard.ListenPort > 65535 {
		return fmt.Errorf("invalid wg.listen_port %d", c.WireGuard.ListenPort)
	}
	return nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// SlogLevel maps log_level to a slog.Level, defaulting to info
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// splitList flattens comma separated entries, since env vars arrive as one
// string.
func splitList(in []string) []string {
	out := []string{}
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
