// Package store owns the relational backend: connection setup for the
// networked Postgres store and the embedded SQLite fallback, versioned
// migrations and the column reconcile step for older databases.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Dialect names a supported SQL backend.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// Dialects lists every backend the service can run on.
func Dialects() []string {
	return []string{string(DialectPostgres), string(DialectSQLite)}
}

// DB is a *sql.DB bound to its dialect. Statements use "?" placeholders and are
// rebound for Postgres before execution.
type DB struct {
	sql     *sql.DB
	dialect Dialect
	// reopen yields a fresh handle to the same database for migrations.
	reopen func() (*sql.DB, error)
}

// New wraps an existing handle. reopen may be nil when migrations are not run
// through this DB.
func New(db *sql.DB, dialect Dialect, reopen func() (*sql.DB, error)) *DB {
	return &DB{sql: db, dialect: dialect, reopen: reopen}
}

// Dialect reports the active backend.
func (db *DB) Dialect() Dialect { return db.dialect }

// SQL exposes the underlying handle.
func (db *DB) SQL() *sql.DB { return db.sql }

// ExecContext runs a statement that returns no rows.
func (db *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return db.sql.ExecContext(ctx, db.rebind(query), args...)
}

// QueryContext runs a statement returning rows.
func (db *DB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return db.sql.QueryContext(ctx, db.rebind(query), args...)
}

// QueryRowContext runs a statement returning at most one row.
func (db *DB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return db.sql.QueryRowContext(ctx, db.rebind(query), args...)
}

// Ping verifies the store is reachable with a trivial round trip.
func (db *DB) Ping(ctx context.Context) error {
	if db == nil || db.sql == nil {
		return errors.New("store not initialised")
	}
	var one int
	if err := db.sql.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("store ping: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (db *DB) Close() error {
	if db == nil || db.sql == nil {
		return nil
	}
	return db.sql.Close()
}

// Columns lists the column names of table in the current schema.
func (db *DB) Columns(ctx context.Context, table string) ([]string, error) {
	var query string
	switch db.dialect {
	case DialectPostgres:
		query = `SELECT column_name FROM information_schema.columns
			WHERE table_schema = current_schema() AND table_name = ?
			ORDER BY ordinal_position`
	default:
		query = `SELECT name FROM pragma_table_info(?)`
	}
	rows, err := db.QueryContext(ctx, query, table)
	if err != nil {
		return nil, fmt.Errorf("inspect columns of %s: %w", table, err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan column name: %w", err)
		}
		cols = append(cols, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("inspect columns of %s: %w", table, err)
	}
	return cols, nil
}

// AddColumn appends a column to table. ddl is the type clause, e.g.
// "INTEGER DEFAULT 0". A column that already exists is not an error.
func (db *DB) AddColumn(ctx context.Context, table, column, ddl string) error {
	stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, ddl)
	if _, err := db.sql.ExecContext(ctx, stmt); err != nil {
		if isDuplicateColumn(err) {
			return nil
		}
		return fmt.Errorf("add column %s.%s: %w", table, column, err)
	}
	return nil
}

// rebind rewrites "?" placeholders to "$n" for Postgres. Quoted literals are
// left untouched.
func (db *DB) rebind(query string) string {
	if db.dialect != DialectPostgres || !strings.Contains(query, "?") {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	inQuote := false
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\'':
			inQuote = !inQuote
			b.WriteByte(c)
		case c == '?' && !inQuote:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
