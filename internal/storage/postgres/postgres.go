// Package postgres keeps save slots in PostgreSQL through pgx v5. The
// save_slots schema comes from the embedded migrations applied by Migrate.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/destiny/internal/config"
)

// ApplicationName tags the game server's sessions in pg_stat_activity.
const ApplicationName = "destiny-gameserver"

// Database is the connection pool behind the save slots.
type Database struct {
	pool *pgxpool.Pool
}

// Open connects to the save database described by cfg and pings it once.
//
// Precondition: the schema is migrated before Saves is used.
// Postcondition: returns a reachable Database, or an error with no
// connections left open.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*Database, error) {
	pc, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("save database config: %w", err)
	}
	pc.MaxConns = cfg.MaxConns
	pc.MinConns = cfg.MinConns
	pc.MaxConnLifetime = cfg.MaxConnLifetime
	pc.ConnConfig.RuntimeParams["application_name"] = ApplicationName

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("opening save database %s: %w", cfg.Name, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("save database %s unreachable: %w", cfg.Name, err)
	}
	return &Database{pool: pool}, nil
}

// Saves returns the slot repository over this database.
func (d *Database) Saves() *SaveRepository {
	return NewSaveRepository(d.pool)
}

// Health reports whether the save_slots table answers a query within timeout.
func (d *Database) Health(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	var slots int
	if err := d.pool.QueryRow(ctx, `SELECT count(*) FROM save_slots`).Scan(&slots); err != nil {
		return fmt.Errorf("save database health: %w", err)
	}
	return nil
}

func (d *Database) Close() {
	d.pool.Close()
}
