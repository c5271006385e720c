package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tejashwikalptaru/playqueue/internal/logger"
)

func TestMigrate_Idempotent(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "library.db")

	migrations := []Migration{
		itemsTable,
		EnsureColumn("items", "rating", "ALTER TABLE items ADD COLUMN rating INTEGER NOT NULL DEFAULT 0"),
	}

	for run := 0; run < 3; run++ {
		p, err := Open(ctx, Config{Path: path, Migrations: migrations}, logger.NewTestLogger())
		require.NoError(t, err, "run %d", run)

		_, err = p.Execute(ctx, "INSERT INTO items (name, rating) VALUES ('x', 5)")
		require.NoError(t, err)
		require.NoError(t, p.Close())
	}

	p, err := Open(ctx, Config{Path: path}, logger.NewTestLogger())
	require.NoError(t, err)
	defer p.Close()

	v, err := p.QueryScalar(ctx, "SELECT SUM(rating) FROM items")
	require.NoError(t, err)
	assert.EqualValues(t, 15, AsInt64(v))
}

func TestMigrate_OnWriter(t *testing.T) {
	ctx := context.Background()
	p := openMemory(t)

	require.NoError(t, p.Migrate(ctx, itemsTable))
	require.NoError(t, p.Migrate(ctx, itemsTable,
		EnsureColumn("items", "genre", "ALTER TABLE items ADD COLUMN genre TEXT")))

	rs, err := p.Query(ctx, "PRAGMA table_info(items)")
	require.NoError(t, err)

	var names []string
	for _, row := range rs.Rows {
		names = append(names, AsString(row[1]))
	}
	assert.Equal(t, []string{"id", "name", "genre"}, names)
}

func TestMigrate_ColumnOnMissingTable(t *testing.T) {
	p := openMemory(t)
	err := p.Migrate(context.Background(), EnsureColumn("ghost", "x", "ALTER TABLE ghost ADD COLUMN x TEXT"))
	assert.Error(t, err)

	// The writer is still usable
	_, err = p.QueryScalar(context.Background(), "SELECT 1")
	assert.NoError(t, err)
}

func TestValueConversions(t *testing.T) {
	assert.Equal(t, "", AsString(nil))
	assert.Equal(t, "abc", AsString([]byte("abc")))
	assert.Equal(t, "12", AsString(int64(12)))

	assert.EqualValues(t, 12, AsInt64("12"))
	assert.EqualValues(t, 3, AsInt64(3.9))
	assert.EqualValues(t, 0, AsInt64(nil))

	assert.InDelta(t, 0.5, AsFloat64("0.5"), 1e-9)
	assert.InDelta(t, 2.0, AsFloat64(int64(2)), 1e-9)
}
