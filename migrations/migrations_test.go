package migrations_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/destiny/migrations"
)

func TestUp_EveryDialect(t *testing.T) {
	for _, d := range []string{migrations.Postgres, migrations.SQLite} {
		stmts, err := migrations.Up(d)
		require.NoError(t, err, d)
		require.NotEmpty(t, stmts, d)
		assert.Contains(t, stmts[0], "CREATE TABLE IF NOT EXISTS save_slots", d)
	}
}

func TestUp_UnknownDialect(t *testing.T) {
	_, err := migrations.Up("oracle")
	assert.Error(t, err)
}

func TestSource_FirstVersion(t *testing.T) {
	src, err := migrations.Source(migrations.Postgres)
	require.NoError(t, err)
	defer src.Close()
	v, err := src.First()
	require.NoError(t, err)
	assert.Equal(t, uint(1), v)
}
