package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// Backend selection values accepted by Options.Backend.
const (
	BackendAuto     = "auto"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

const defaultConnectTimeout = 5 * time.Second

// Options configures Open.
type Options struct {
	// Backend is one of auto, postgres or sqlite. Empty means auto.
	Backend string
	// PostgresDSN is a postgres:// URL or keyword/value string. Empty disables
	// the networked store in auto mode.
	PostgresDSN string
	SQLitePath  string
	// ConnectTimeout bounds the connectivity probe.
	ConnectTimeout  time.Duration
	ApplicationName string
	// Tracer is installed on Postgres connections.
	Tracer pgx.QueryTracer
	// MaxOpenConns caps the Postgres pool. Zero keeps the default of 10.
	MaxOpenConns int
}

// ErrUnknownBackend is returned for an unsupported Options.Backend value.
var ErrUnknownBackend = errors.New("unknown store backend")

// Open makes the one-time backend decision. In auto mode Postgres is used when
// configured and reachable, otherwise the embedded SQLite store is opened and
// a warning is logged.
func Open(ctx context.Context, opts Options, logger zerolog.Logger) (*DB, error) {
	backend := strings.ToLower(strings.TrimSpace(opts.Backend))
	var (
		db  *DB
		err error
	)
	switch backend {
	case "", BackendAuto:
		if strings.TrimSpace(opts.PostgresDSN) == "" {
			logger.Info().Msg("no postgres connection configured, using sqlite store")
			db, err = openSQLite(ctx, opts)
			break
		}
		db, err = openPostgres(ctx, opts)
		if err != nil {
			logger.Warn().Err(err).Msg("postgres store unavailable, falling back to sqlite")
			db, err = openSQLite(ctx, opts)
		}
	case BackendPostgres:
		if strings.TrimSpace(opts.PostgresDSN) == "" {
			return nil, errors.New("postgres backend selected but no connection configured")
		}
		db, err = openPostgres(ctx, opts)
	case BackendSQLite:
		db, err = openSQLite(ctx, opts)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, opts.Backend)
	}
	if err != nil {
		return nil, err
	}
	logger.Info().Str("backend", string(db.Dialect())).Msg("store opened")
	return db, nil
}

func connectTimeout(opts Options) time.Duration {
	if opts.ConnectTimeout > 0 {
		return opts.ConnectTimeout
	}
	return defaultConnectTimeout
}

func openPostgres(ctx context.Context, opts Options) (*DB, error) {
	cfg, err := pgx.ParseConfig(opts.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if opts.Tracer != nil {
		cfg.Tracer = opts.Tracer
	}
	if cfg.RuntimeParams == nil {
		cfg.RuntimeParams = map[string]string{}
	}
	if name := strings.TrimSpace(opts.ApplicationName); name != "" {
		cfg.RuntimeParams["application_name"] = name
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = connectTimeout(opts)
	}

	maxOpen := opts.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 10
	}
	open := func() (*sql.DB, error) {
		conn := stdlib.OpenDB(*cfg.Copy())
		conn.SetMaxOpenConns(maxOpen)
		conn.SetMaxIdleConns(maxOpen / 2)
		conn.SetConnMaxIdleTime(5 * time.Minute)
		return conn, nil
	}
	conn, _ := open()

	db := New(conn, DialectPostgres, open)
	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout(opts))
	defer cancel()
	if err := db.Ping(pingCtx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return db, nil
}

func openSQLite(ctx context.Context, opts Options) (*DB, error) {
	path := strings.TrimSpace(opts.SQLitePath)
	if path == "" {
		path = "offset_orders.db"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite directory: %w", err)
		}
	}
	dsn := fmt.Sprintf("file:%s?_busy_timeout=%d", path, connectTimeout(opts).Milliseconds())
	open := func() (*sql.DB, error) {
		conn, err := sql.Open("sqlite3", dsn)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		// SQLite allows one writer at a time.
		conn.SetMaxOpenConns(1)
		return conn, nil
	}
	conn, err := open()
	if err != nil {
		return nil, err
	}
	db := New(conn, DialectSQLite, open)
	if err := db.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	return db, nil
}
