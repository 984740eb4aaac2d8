package store

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
)

// pgDuplicateColumn is SQLSTATE duplicate_column.
const pgDuplicateColumn = "42701"

type columnSpec struct {
	name string
	ddl  string
}

// orderColumns are the order columns added after the first schema revision.
var orderColumns = []columnSpec{
	{name: "vendor", ddl: "TEXT"},
	{name: "unit_price", ddl: "INTEGER"},
	{name: "invoice_issued", ddl: "INTEGER DEFAULT 0"},
	{name: "total_override", ddl: "INTEGER"},
	{name: "memo", ddl: "TEXT"},
}

// EnsureColumns adds the later order columns to a store created by an older
// schema. Existing columns are left alone, so running it again is harmless.
func EnsureColumns(ctx context.Context, db *DB) error {
	existing, err := db.Columns(ctx, "orders")
	if err != nil {
		return err
	}
	have := make(map[string]struct{}, len(existing))
	for _, c := range existing {
		have[strings.ToLower(c)] = struct{}{}
	}
	for _, col := range orderColumns {
		if _, ok := have[col.name]; ok {
			continue
		}
		if err := db.AddColumn(ctx, "orders", col.name, col.ddl); err != nil {
			return err
		}
	}
	return nil
}

// isDuplicateColumn reports whether err means a concurrent writer added the
// column first.
func isDuplicateColumn(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgDuplicateColumn
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return strings.Contains(strings.ToLower(liteErr.Error()), "duplicate column name")
	}
	return strings.Contains(strings.ToLower(err.Error()), "duplicate column name")
}
