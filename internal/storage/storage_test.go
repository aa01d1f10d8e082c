package storage_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cory-johannsen/destiny/internal/config"
	"github.com/cory-johannsen/destiny/internal/game/state"
	"github.com/cory-johannsen/destiny/internal/storage"
)

func TestOpen_Memory(t *testing.T) {
	cfg := config.Config{Storage: config.StorageConfig{Backend: config.BackendMemory}}
	s, err := storage.Open(context.Background(), cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, config.BackendMemory, s.Backend)

	_, err = s.Get(context.Background(), 0)
	assert.ErrorIs(t, err, state.ErrNoSave)
}

func TestOpen_SQLite(t *testing.T) {
	ctx := context.Background()
	cfg := config.Config{Storage: config.StorageConfig{
		Backend:    config.BackendSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "saves.db"),
	}}
	s, err := storage.Open(ctx, cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Put(ctx, 2, []byte("x")))
	got, err := s.Get(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "x", string(got))
}

func TestOpen_UnknownBackend(t *testing.T) {
	cfg := config.Config{Storage: config.StorageConfig{Backend: "tape"}}
	_, err := storage.Open(context.Background(), cfg, zaptest.NewLogger(t))
	assert.Error(t, err)
}
