// Package sqlite stores save slots in a local SQLite database through the
// pure-Go modernc driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/cory-johannsen/destiny/internal/game/state"
	"github.com/cory-johannsen/destiny/migrations"
)

// SaveStore is a state.SaveStore backed by one SQLite file.
type SaveStore struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the database at path and applies the schema.
// ":memory:" opens a private in-memory database.
//
// Precondition: path must be non-empty.
// Postcondition: Returns a ready SaveStore or a non-nil error; the caller must Close it.
func Open(ctx context.Context, path string) (*SaveStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("empty sqlite database path")
	}
	if path != ":memory:" {
		parent := filepath.Dir(path)
		if parent != "" && parent != "." {
			if err := os.MkdirAll(parent, 0o755); err != nil {
				return nil, fmt.Errorf("creating database directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	// One connection keeps an in-memory database alive and serialises writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	for _, pragma := range []string{
		`PRAGMA busy_timeout = 5000;`,
		`PRAGMA journal_mode = WAL;`,
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("applying %q: %w", pragma, err)
		}
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging sqlite database: %w", err)
	}
	if err := ensureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SaveStore{db: db, now: time.Now}, nil
}

func ensureSchema(ctx context.Context, db *sql.DB) error {
	stmts, err := migrations.Up(migrations.SQLite)
	if err != nil {
		return err
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("applying sqlite schema: %w", err)
		}
	}
	return nil
}

// Close closes the database.
func (s *SaveStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Put upserts data into slot.
func (s *SaveStore) Put(ctx context.Context, slot int, data []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO save_slots (slot, data, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(slot) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		slot, data, s.now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("writing save slot %d: %w", slot, err)
	}
	return nil
}

// Get returns the data in slot, or state.ErrNoSave.
func (s *SaveStore) Get(ctx context.Context, slot int) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM save_slots WHERE slot = ?`, slot).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, state.ErrNoSave
	}
	if err != nil {
		return nil, fmt.Errorf("reading save slot %d: %w", slot, err)
	}
	return data, nil
}

// Delete empties slot.
func (s *SaveStore) Delete(ctx context.Context, slot int) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM save_slots WHERE slot = ?`, slot); err != nil {
		return fmt.Errorf("deleting save slot %d: %w", slot, err)
	}
	return nil
}
