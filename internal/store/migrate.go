package store

import (
	"context"
	"embed"
	"errors"
	"fmt"

	migrate "github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationsFS embed.FS

// Migrate applies the embedded migrations for the active dialect. It runs on
// a dedicated handle because closing the migrator closes its database.
func Migrate(ctx context.Context, db *DB) error {
	if db.reopen == nil {
		return errors.New("migrate: store handle cannot be reopened")
	}
	conn, err := db.reopen()
	if err != nil {
		return fmt.Errorf("migrate: open connection: %w", err)
	}

	src, err := iofs.New(migrationsFS, "migrations/"+string(db.dialect))
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("migrate: load migrations: %w", err)
	}

	var driver database.Driver
	switch db.dialect {
	case DialectPostgres:
		driver, err = migratepgx.WithInstance(conn, &migratepgx.Config{})
	case DialectSQLite:
		driver, err = migratesqlite.WithInstance(conn, &migratesqlite.Config{})
	default:
		err = fmt.Errorf("%w: %s", ErrUnknownBackend, db.dialect)
	}
	if err != nil {
		_ = src.Close()
		_ = conn.Close()
		return fmt.Errorf("migrate: driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, string(db.dialect), driver)
	if err != nil {
		_ = driver.Close()
		return fmt.Errorf("migrate: init: %w", err)
	}
	defer m.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			m.GracefulStop <- true
		case <-done:
		}
	}()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate: up: %w", err)
	}
	return nil
}

// Prepare brings the store to the current schema: versioned migrations first,
// then the column reconcile step for databases that predate them.
func Prepare(ctx context.Context, db *DB) error {
	if err := Migrate(ctx, db); err != nil {
		return err
	}
	return EnsureColumns(ctx, db)
}
