package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/destiny/internal/game/state"
)

// SaveRepository stores encoded save slots in the save_slots table.
type SaveRepository struct {
	db *pgxpool.Pool
}

// NewSaveRepository creates a SaveRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool with migrations applied.
func NewSaveRepository(db *pgxpool.Pool) *SaveRepository {
	return &SaveRepository{db: db}
}

// Put upserts data into slot.
func (r *SaveRepository) Put(ctx context.Context, slot int, data []byte) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO save_slots (slot, data, updated_at)
		 VALUES ($1, $2, NOW())
		 ON CONFLICT (slot) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`,
		slot, data,
	)
	if err != nil {
		return fmt.Errorf("writing save slot %d: %w", slot, err)
	}
	return nil
}

// Get returns the data in slot, or state.ErrNoSave.
func (r *SaveRepository) Get(ctx context.Context, slot int) ([]byte, error) {
	var data []byte
	err := r.db.QueryRow(ctx, `SELECT data FROM save_slots WHERE slot = $1`, slot).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, state.ErrNoSave
	}
	if err != nil {
		return nil, fmt.Errorf("reading save slot %d: %w", slot, err)
	}
	return data, nil
}

// Delete empties slot.
func (r *SaveRepository) Delete(ctx context.Context, slot int) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM save_slots WHERE slot = $1`, slot); err != nil {
		return fmt.Errorf("deleting save slot %d: %w", slot, err)
	}
	return nil
}
