package setup

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestServerAddress(t *testing.T) {
	tests := []struct {
		pool    string
		want    string
		wantErr bool
	}{
		{pool: "10.10.0.0/24", want: "10.10.0.1/24"},
		{pool: "10.100.0.0/16", want: "10.100.0.1/16"},
		{pool: "fd00::/64", wantErr: true},
		{pool: "garbage", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.pool, func(t *testing.T) {
			got, err := ServerAddress(tt.pool)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %s", tt.pool)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Fatalf("expected %s, got %s (%v)", tt.want, got, err)
			}
		})
	}
}

func TestEnsureServerKeyIsIdempotent(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "wg")

	first, err := EnsureServerKey(dir)
	if err != nil {
		t.Fatalf("EnsureServerKey failed: %v", err)
	}
	second, err := EnsureServerKey(dir)
	if err != nil {
		t.Fatalf("second EnsureServerKey failed: %v", err)
	}
	if first != second {
		t.Fatalf("expected the existing key to be reused")
	}

	info, err := os.Stat(filepath.Join(dir, privateKeyFile))
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("expected private key mode 0600, got %o", info.Mode().Perm())
	}
}

func TestEnsureServerKeyRejectsCorruptKey(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, privateKeyFile), []byte("nope"), 0600)

	if _, err := EnsureServerKey(dir); err == nil {
		t.Fatal("expected error for corrupt key file")
	}
}

func TestRenderInterfaceConfig(t *testing.T) {
	cfg, err := RenderInterfaceConfig(Options{Interface: "wg0", ListenPort: 51820, AddressPool: "10.10.0.0/24"}, "PRIV", "")
	if err != nil {
		t.Fatalf("RenderInterfaceConfig failed: %v", err)
	}

	for _, want := range []string{"PrivateKey = PRIV", "Address = 10.10.0.1/24", "ListenPort = 51820", "-o eth0 -j MASQUERADE"} {
		if !strings.Contains(cfg, want) {
			t.Errorf("expected %q in config:\n%s", want, cfg)
		}
	}
	if strings.Contains(cfg, "[Peer]") {
		t.Error("interface config must not carry peers")
	}
}
