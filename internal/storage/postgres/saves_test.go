package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/destiny/internal/game/state"
	"github.com/cory-johannsen/destiny/internal/storage/postgres"
	"github.com/cory-johannsen/destiny/internal/testutil"
)

func setupSaves(t *testing.T) (*postgres.SaveRepository, *testutil.SaveDatabase) {
	t.Helper()
	sdb := testutil.StartSaveDatabase(t)
	return sdb.DB.Saves(), sdb
}

func TestSaveRepository_PutGetDelete(t *testing.T) {
	ctx := context.Background()
	repo, _ := setupSaves(t)

	_, err := repo.Get(ctx, 0)
	assert.ErrorIs(t, err, state.ErrNoSave)

	require.NoError(t, repo.Put(ctx, 0, []byte(`{"format":1}`)))
	require.NoError(t, repo.Put(ctx, 0, []byte(`{"format":2}`)))
	got, err := repo.Get(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, `{"format":2}`, string(got))

	require.NoError(t, repo.Delete(ctx, 0))
	require.NoError(t, repo.Delete(ctx, 0))
	_, err = repo.Get(ctx, 0)
	assert.ErrorIs(t, err, state.ErrNoSave)
}

func TestSaveRepository_CoordinatorRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo, _ := setupSaves(t)
	data, err := state.Encode(state.SaveData{Playthrough: 3, Player: state.DefaultPlayer()})
	require.NoError(t, err)
	require.NoError(t, repo.Put(ctx, 2, data))

	raw, err := repo.Get(ctx, 2)
	require.NoError(t, err)
	d, err := state.Decode(raw)
	require.NoError(t, err, "stored bytes keep their digest")
	assert.Equal(t, 3, d.Playthrough)
}

func TestMigrate_Idempotent(t *testing.T) {
	_, sdb := setupSaves(t)
	assert.NoError(t, postgres.Migrate(sdb.Config.DSN()))
}

func TestDatabase_Health(t *testing.T) {
	_, sdb := setupSaves(t)
	assert.NoError(t, sdb.DB.Health(context.Background(), 5*time.Second))
}

func TestOpen_UnreachableDatabase(t *testing.T) {
	_, sdb := setupSaves(t)
	cfg := sdb.Config
	cfg.Name = "no_such_database"
	_, err := postgres.Open(context.Background(), cfg)
	assert.ErrorContains(t, err, "no_such_database")
}
