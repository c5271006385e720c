// Package sqlite implements the repositories on top of the single writer database proxy.
package sqlite

import (
	"context"

	"github.com/tejashwikalptaru/playqueue/internal/database"
)

// Store is the part of database.Proxy the repositories use.
type Store interface {
	Query(ctx context.Context, text string, args ...any) (*database.ResultSet, error)
	QueryScalar(ctx context.Context, text string, args ...any) (any, error)
	Execute(ctx context.Context, text string, args ...any) (database.ExecResult, error)
	Migrate(ctx context.Context, migrations ...database.Migration) error
}

var _ Store = (*database.Proxy)(nil)

// Migrations returns the additive schema of the library database, in order.
func Migrations() []database.Migration {
	return []database.Migration{
		database.EnsureTable("tracks", `CREATE TABLE tracks (
			id TEXT PRIMARY KEY,
			path TEXT NOT NULL UNIQUE,
			title TEXT NOT NULL DEFAULT '',
			artist TEXT NOT NULL DEFAULT '',
			album TEXT NOT NULL DEFAULT '',
			year INTEGER NOT NULL DEFAULT 0,
			track_number INTEGER NOT NULL DEFAULT 0,
			duration_ms INTEGER NOT NULL DEFAULT 0,
			date_added INTEGER NOT NULL
		)`),
		database.EnsureColumn("tracks", "genre", "ALTER TABLE tracks ADD COLUMN genre TEXT NOT NULL DEFAULT ''"),
		database.EnsureColumn("tracks", "file_size", "ALTER TABLE tracks ADD COLUMN file_size INTEGER NOT NULL DEFAULT 0"),
		database.EnsureTable("preferences", `CREATE TABLE preferences (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`),
	}
}

// Migrate applies the library schema through the writer.
func Migrate(ctx context.Context, store Store) error {
	return store.Migrate(ctx, Migrations()...)
}
