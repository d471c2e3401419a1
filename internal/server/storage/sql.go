package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/kamikazebr/sentinel/pkg/models"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// stateRowID is the primary key of the single snapshot row
const stateRowID = "state"

const createStateTable = `
	CREATE TABLE IF NOT EXISTS sentinel_state (
		id         TEXT PRIMARY KEY,
		data       TEXT NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)
`

type DB struct {
	*sqlx.DB
}

// NewSQLDB connects with sqlx and applies the pool settings. The
// driver is either postgres (lib/pq) or sqlite3 (mattn/go-sqlite3).
func NewSQLDB(driver, dsn string) (*DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("storage DSN not set")
	}
	if driver != DriverPostgres && driver != DriverSQLite {
		return nil, fmt.Errorf("unsupported SQL driver %q", driver)
	}

	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Configure connection pool
	if driver == DriverSQLite {
		// One writer at a time; sqlite serialises anyway
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{db}, nil
}

func (db *DB) Close() error {
	return db.DB.Close()
}

// SQLPersister stores the whole snapshot as JSON in a single row, upserted
// on every save. The statement works unchanged on Postgres and SQLite.
type SQLPersister struct {
	db *DB
}

func NewSQLPersister(ctx context.Context, db *DB) (*SQLPersister, error) {
	if _, err := db.ExecContext(ctx, createStateTable); err != nil {
		return nil, fmt.Errorf("failed to create state table: %w", err)
	}
	return &SQLPersister{db: db}, nil
}

func (p *SQLPersister) Load(ctx context.Context) (*models.StateSnapshot, bool, error) {
	var data string
	query := p.db.Rebind(`SELECT data FROM sentinel_state WHERE id = ?`)
	err := p.db.GetContext(ctx, &data, query, stateRowID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read state row: %w", err)
	}

	var snapshot models.StateSnapshot
	if err := json.Unmarshal([]byte(data), &snapshot); err != nil {
		return nil, false, fmt.Errorf("failed to parse state row: %w", err)
	}
	return &snapshot, true, nil
}

func (p *SQLPersister) Save(ctx context.Context, snapshot *models.StateSnapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	query := p.db.Rebind(`
		INSERT INTO sentinel_state (id, data, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at
	`)
	if _, err := p.db.ExecContext(ctx, query, stateRowID, string(data), time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to write state row: %w", err)
	}
	return nil
}
