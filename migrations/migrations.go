// Package migrations embeds the save store schema for each SQL dialect.
package migrations

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// Dialects with embedded migrations.
const (
	Postgres = "postgres"
	SQLite   = "sqlite"
)

//go:embed postgres/*.sql sqlite/*.sql
var files embed.FS

// Source returns a golang-migrate source driver for dialect.
func Source(dialect string) (source.Driver, error) {
	d, err := iofs.New(files, dialect)
	if err != nil {
		return nil, fmt.Errorf("opening %s migrations: %w", dialect, err)
	}
	return d, nil
}

// Up returns the contents of every up migration for dialect in version order.
func Up(dialect string) ([]string, error) {
	names, err := fs.Glob(files, dialect+"/*.up.sql")
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no migrations for dialect %q", dialect)
	}
	sort.Strings(names)
	out := make([]string, 0, len(names))
	for _, n := range names {
		b, err := files.ReadFile(n)
		if err != nil {
			return nil, err
		}
		out = append(out, strings.TrimSpace(string(b)))
	}
	return out, nil
}
