// Package testutil holds helpers shared by integration tests: a throwaway
// save database and a websocket client for the game API.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/cory-johannsen/destiny/internal/config"
	"github.com/cory-johannsen/destiny/internal/storage/postgres"
)

const (
	saveDBImage    = "postgres:16-alpine"
	saveDBName     = "destiny_saves"
	saveDBUser     = "destiny"
	saveDBPassword = "destiny"
)

// SaveDatabase is a migrated PostgreSQL save database in a disposable
// container.
type SaveDatabase struct {
	DB     *postgres.Database
	Config config.DatabaseConfig
}

// StartSaveDatabase runs a PostgreSQL container, applies the save_slots
// migrations and connects to it. Both are torn down when t ends. Skipped
// under -short because it needs Docker.
func StartSaveDatabase(t *testing.T) *SaveDatabase {
	t.Helper()
	if testing.Short() {
		t.Skip("save database needs docker; skipped in short mode")
	}
	ctx := context.Background()
	began := time.Now()

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        saveDBImage,
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_DB":       saveDBName,
				"POSTGRES_USER":     saveDBUser,
				"POSTGRES_PASSWORD": saveDBPassword,
			},
			// The server logs readiness once for the init pass and once for real.
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("save database container: %v", err)
	}
	t.Cleanup(func() { _ = c.Terminate(ctx) })

	host, err := c.Host(ctx)
	if err != nil {
		t.Fatalf("save database host: %v", err)
	}
	port, err := c.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("save database port: %v", err)
	}
	cfg := config.DatabaseConfig{
		Host:            host,
		Port:            port.Int(),
		User:            saveDBUser,
		Password:        saveDBPassword,
		Name:            saveDBName,
		SSLMode:         "disable",
		MaxConns:        4,
		MinConns:        1,
		MaxConnLifetime: time.Minute,
	}

	if err := postgres.Migrate(cfg.DSN()); err != nil {
		t.Fatalf("migrating save database: %v", err)
	}
	db, err := postgres.Open(ctx, cfg)
	if err != nil {
		t.Fatalf("opening save database: %v", err)
	}
	t.Cleanup(db.Close)
	t.Logf("save database ready in %s", time.Since(began).Round(time.Millisecond))
	return &SaveDatabase{DB: db, Config: cfg}
}
