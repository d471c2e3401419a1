package utils

import (
	"os"
	"path/filepath"
	"testing"
)

func TestHomeDir_WithoutSudo(t *testing.T) {
	t.Setenv("SUDO_USER", "")
	want, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory in this environment")
	}

	got, err := HomeDir()
	if err != nil || got != want {
		t.Fatalf("HomeDir() = %q, %v; want %q", got, err, want)
	}
}

func TestHomeDir_UnknownSudoUserFallsBack(t *testing.T) {
	t.Setenv("SUDO_USER", "no-such-sentinel-user")
	want, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory in this environment")
	}

	if got, _ := HomeDir(); got != want {
		t.Fatalf("expected fallback to %q, got %q", want, got)
	}
}

func TestFixFileOwnership_NoopWithoutSudo(t *testing.T) {
	t.Setenv("SUDO_USER", "")
	path := filepath.Join(t.TempDir(), "f")
	if err := os.WriteFile(path, []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}

	if err := FixFileOwnership(path); err != nil {
		t.Fatalf("expected no-op, got %v", err)
	}
}
