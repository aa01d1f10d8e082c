// Package storage selects the save slot backend named in the configuration.
package storage

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/cory-johannsen/destiny/internal/config"
	"github.com/cory-johannsen/destiny/internal/game/state"
	"github.com/cory-johannsen/destiny/internal/storage/memory"
	"github.com/cory-johannsen/destiny/internal/storage/postgres"
	"github.com/cory-johannsen/destiny/internal/storage/sqlite"
)

// Store is an opened save backend.
type Store struct {
	state.SaveStore
	// Backend is the configured backend name.
	Backend string
	closeFn func()
}

// Close releases the backend's resources.
func (s *Store) Close() {
	if s.closeFn != nil {
		s.closeFn()
	}
}

// Open opens the backend named by cfg.Storage.Backend. The postgres backend
// applies pending migrations before returning.
//
// Precondition: cfg must be validated.
// Postcondition: Returns a ready Store or a non-nil error; the caller must Close it.
func Open(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Store, error) {
	backend := cfg.Storage.Backend
	switch backend {
	case config.BackendMemory:
		logger.Info("using in-memory save slots; saves are lost on exit")
		return &Store{SaveStore: memory.NewSaveStore(), Backend: backend}, nil

	case config.BackendSQLite:
		s, err := sqlite.Open(ctx, cfg.Storage.SQLitePath)
		if err != nil {
			return nil, err
		}
		logger.Info("using sqlite save slots", zap.String("path", cfg.Storage.SQLitePath))
		return &Store{SaveStore: s, Backend: backend, closeFn: func() { _ = s.Close() }}, nil

	case config.BackendPostgres:
		if err := postgres.Migrate(cfg.Database.DSN()); err != nil {
			return nil, err
		}
		db, err := postgres.Open(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		logger.Info("using postgres save slots",
			zap.String("host", cfg.Database.Host),
			zap.String("database", cfg.Database.Name),
		)
		return &Store{SaveStore: db.Saves(), Backend: backend, closeFn: db.Close}, nil
	}
	return nil, fmt.Errorf("unknown storage backend %q", backend)
}
