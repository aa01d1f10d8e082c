package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cory-johannsen/destiny/internal/game/event"
	"github.com/cory-johannsen/destiny/internal/game/state"
	"github.com/cory-johannsen/destiny/internal/storage/sqlite"
)

func TestSaveStore_PutGetDelete(t *testing.T) {
	ctx := context.Background()
	s, err := sqlite.Open(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	_, err = s.Get(ctx, 1)
	assert.ErrorIs(t, err, state.ErrNoSave)

	require.NoError(t, s.Put(ctx, 1, []byte("a")))
	require.NoError(t, s.Put(ctx, 1, []byte("b")))
	got, err := s.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "b", string(got))

	require.NoError(t, s.Delete(ctx, 1))
	_, err = s.Get(ctx, 1)
	assert.ErrorIs(t, err, state.ErrNoSave)
}

func TestSaveStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "destiny.db")
	logger := zap.NewNop()

	s, err := sqlite.Open(ctx, path)
	require.NoError(t, err)
	c := state.NewCoordinator(event.NewBus(logger), s, logger)
	require.NoError(t, c.StartGame(state.DifficultyHard, "Alex"))
	require.NoError(t, c.Save(ctx, 0))
	c.Close()
	require.NoError(t, s.Close())

	s, err = sqlite.Open(ctx, path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	c = state.NewCoordinator(event.NewBus(logger), s, logger)
	defer c.Close()
	require.True(t, c.Load(ctx, 0))
	assert.Equal(t, "Alex", c.Player().Name)
}

func TestOpen_EmptyPath(t *testing.T) {
	_, err := sqlite.Open(context.Background(), "  ")
	assert.Error(t, err)
}
