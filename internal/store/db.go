// Package store is the Attempt Store (C1): durable persistence for
// attempts, execution processes, and executor sessions, with query
// methods consumed by the Coordinator and Integration Surface.
package store

import (
	"context"
	"embed"
	"fmt"
	"io/fs"

	"github.com/randalmurphal/orc/internal/store/driver"
)

//go:embed schema/sqlite/*.sql schema/postgres/*.sql
var schemaFiles embed.FS

type embedSchemaFS struct{}

func (embedSchemaFS) ReadDir(name string) ([]driver.DirEntry, error) {
	entries, err := fs.ReadDir(schemaFiles, name)
	if err != nil {
		return nil, err
	}
	out := make([]driver.DirEntry, len(entries))
	for i, e := range entries {
		out[i] = dirEntry{e}
	}
	return out, nil
}

func (embedSchemaFS) ReadFile(name string) ([]byte, error) {
	return schemaFiles.ReadFile(name)
}

type dirEntry struct{ fs.DirEntry }

func (d dirEntry) Name() string { return d.DirEntry.Name() }
func (d dirEntry) IsDir() bool  { return d.DirEntry.IsDir() }

// DB wraps a dialect-abstracted driver connection for the attempt store.
type DB struct {
	drv driver.Driver
}

// Open opens (and migrates) a store database for the given dialect and
// DSN. SQLite DSNs are filesystem paths; Postgres DSNs are connection
// strings.
func Open(ctx context.Context, dialect driver.Dialect, dsn string) (*DB, error) {
	drv, err := driver.New(dialect)
	if err != nil {
		return nil, err
	}
	if err := drv.Open(dsn); err != nil {
		return nil, err
	}
	if err := drv.Migrate(ctx, embedSchemaFS{}, "attempt"); err != nil {
		_ = drv.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &DB{drv: drv}, nil
}

// Close closes the underlying connection.
func (d *DB) Close() error {
	return d.drv.Close()
}

// Driver exposes the underlying dialect driver for components that need
// raw query access (e.g. the dev-server singleton query).
func (d *DB) Driver() driver.Driver {
	return d.drv
}
