package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kamikazebr/sentinel/pkg/models"
)

func TestFilePersisterMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "state.json")
	p, err := NewFilePersister(path)
	if err != nil {
		t.Fatalf("NewFilePersister failed: %v", err)
	}
	if p.Path() != path {
		t.Errorf("Expected path %s, got %s", path, p.Path())
	}

	snap, found, err := p.Load(context.Background())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if found || snap != nil {
		t.Error("Expected nothing to be found")
	}
}

func TestFilePersisterRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	p, err := NewFilePersister(filepath.Join(dir, "state.json"))
	if err != nil {
		t.Fatalf("NewFilePersister failed: %v", err)
	}

	seen := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	state := DefaultState()
	state.Devices[0].LastSeen = &seen
	if err := p.Save(ctx, &state); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, found, err := p.Load(ctx)
	if err != nil || !found {
		t.Fatalf("Load failed: %v (found=%v)", err, found)
	}
	if len(loaded.Devices) != 2 || !loaded.Devices[0].LastSeen.Equal(seen) {
		t.Errorf("Unexpected devices: %+v", loaded.Devices)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("Expected only state.json in dir, found %d entries", len(entries))
	}
}

func TestFilePersisterCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte("{not json"), 0600); err != nil {
		t.Fatal(err)
	}
	p, _ := NewFilePersister(path)

	if _, _, err := p.Load(context.Background()); err == nil {
		t.Error("Expected parse error for corrupt file")
	}
}

func TestOpenWithFilePersisterSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.json")

	p, _ := NewFilePersister(path)
	store, err := Open(ctx, p)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if _, err := store.SetDeviceStatus(ctx, "dev-pixel8", models.StatusLocked, nil); err != nil {
		t.Fatalf("SetDeviceStatus failed: %v", err)
	}

	reopened, err := Open(ctx, p)
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	if got := reopened.GetDevice("dev-pixel8"); got.Status != models.StatusLocked {
		t.Errorf("Expected persisted LOCKED, got %s", got.Status)
	}
}
