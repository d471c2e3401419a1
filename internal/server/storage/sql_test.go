package storage_test

import (
	"context"
	"testing"

	"github.com/kamikazebr/sentinel/internal/server/storage"
	"github.com/kamikazebr/sentinel/internal/testutil"
	"github.com/kamikazebr/sentinel/pkg/models"
)

func exerciseSQLPersister(t *testing.T, db *storage.DB) {
	t.Helper()
	ctx := context.Background()

	p, err := storage.NewSQLPersister(ctx, db)
	if err != nil {
		t.Fatalf("NewSQLPersister failed: %v", err)
	}

	if _, found, err := p.Load(ctx); err != nil || found {
		t.Fatalf("Expected empty table, got found=%v err=%v", found, err)
	}

	store, err := storage.Open(ctx, p)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if _, err := store.SetDeviceStatus(ctx, "dev-pixel8", models.StatusLocked, nil); err != nil {
		t.Fatalf("SetDeviceStatus failed: %v", err)
	}

	// Second save takes the ON CONFLICT path
	loaded, found, err := p.Load(ctx)
	if err != nil || !found {
		t.Fatalf("Load failed: %v (found=%v)", err, found)
	}
	if len(loaded.Devices) != 2 || loaded.Devices[1].Status != models.StatusLocked {
		t.Errorf("Unexpected loaded devices: %+v", loaded.Devices)
	}

	var rows int
	if err := db.GetContext(ctx, &rows, "SELECT COUNT(*) FROM sentinel_state"); err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if rows != 1 {
		t.Errorf("Expected a single state row, got %d", rows)
	}
}

func TestSQLPersisterSQLite(t *testing.T) {
	exerciseSQLPersister(t, testutil.GetSQLiteDB(t))
}

func TestSQLPersisterPostgres(t *testing.T) {
	db := testutil.GetTestDB(t)
	testutil.CleanupState(t, db)
	t.Cleanup(func() { testutil.CleanupState(t, db) })

	exerciseSQLPersister(t, db)
}

func TestNewSQLDBRejectsUnknownDriver(t *testing.T) {
	if _, err := storage.NewSQLDB("mysql", "whatever"); err == nil {
		t.Error("Expected error for unsupported driver")
	}
	if _, err := storage.NewSQLDB(storage.DriverSQLite, ""); err == nil {
		t.Error("Expected error for empty DSN")
	}
}
