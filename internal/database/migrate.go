package database

import (
	"context"
	"fmt"
	"strings"
)

// Migration is an additive schema change.
//
// With Column empty, DDL creates Table and runs only if the table is missing.
// Otherwise DDL adds Column and runs only if the column is missing.
// Migrations are idempotent and safe to apply on every startup.
type Migration struct {
	Table  string
	Column string
	DDL    string
}

// EnsureTable returns a migration that creates table with ddl.
func EnsureTable(table, ddl string) Migration {
	return Migration{Table: table, DDL: ddl}
}

// EnsureColumn returns a migration that adds column to table with ddl,
// e.g. "ALTER TABLE tracks ADD COLUMN genre TEXT".
func EnsureColumn(table, column, ddl string) Migration {
	return Migration{Table: table, Column: column, DDL: ddl}
}

// migrate applies migrations in order and returns the names of those that ran.
func migrate(ctx context.Context, q queryer, migrations []Migration) ([]string, error) {
	var applied []string
	for _, m := range migrations {
		ran, err := m.apply(ctx, q)
		if err != nil {
			return applied, fmt.Errorf("migrate %s: %w", m.name(), err)
		}
		if ran {
			applied = append(applied, m.name())
		}
	}
	return applied, nil
}

func (m Migration) name() string {
	if m.Column == "" {
		return m.Table
	}
	return m.Table + "." + m.Column
}

// apply runs the DDL if needed and reports whether it did.
func (m Migration) apply(ctx context.Context, q queryer) (bool, error) {
	var (
		exists bool
		err    error
	)
	if m.Column == "" {
		exists, err = tableExists(ctx, q, m.Table)
	} else {
		exists, err = columnExists(ctx, q, m.Table, m.Column)
	}
	if err != nil || exists {
		return false, err
	}

	if _, err := q.ExecContext(ctx, m.DDL); err != nil {
		return false, err
	}
	return true, nil
}

func tableExists(ctx context.Context, q queryer, table string) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name=?", table,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check table %s: %w", table, err)
	}
	return n > 0, nil
}

func columnExists(ctx context.Context, q queryer, table, column string) (bool, error) {
	rows, err := q.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%q)", table))
	if err != nil {
		return false, fmt.Errorf("inspect table %s: %w", table, err)
	}
	rs, err := materialize(rows)
	if err != nil {
		return false, fmt.Errorf("inspect table %s: %w", table, err)
	}
	if rs.Len() == 0 {
		return false, fmt.Errorf("inspect table %s: table does not exist", table)
	}

	nameCol := -1
	for i, c := range rs.Columns {
		if c == "name" {
			nameCol = i
		}
	}
	for _, row := range rs.Rows {
		if nameCol >= 0 && strings.EqualFold(AsString(row[nameCol]), column) {
			return true, nil
		}
	}
	return false, nil
}
