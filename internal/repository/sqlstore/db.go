// Package sqlstore implements the user repository on database/sql through sqlx.
// SQLite (modernc.org/sqlite) and PostgreSQL (pgx) are supported.
package sqlstore

import (
	"context"
	"database/sql/driver"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // register "pgx" with database/sql
	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"
)

func init() {
	// sqlx only knows "sqlite3" out of the box.
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

const createUsersTableSQLite = `
CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	username TEXT NOT NULL UNIQUE,
	email TEXT NOT NULL UNIQUE,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
`

const createUsersTablePostgres = `
CREATE TABLE IF NOT EXISTS users (
	id BIGSERIAL PRIMARY KEY,
	username TEXT NOT NULL UNIQUE,
	email TEXT NOT NULL UNIQUE,
	created_at TIMESTAMPTZ DEFAULT now()
);
`

// Config describes how to reach the store.
type Config struct {
	Driver      string
	DSN         string
	PingTimeout time.Duration
}

// Open connects to the configured store and verifies it answers a ping.
func Open(ctx context.Context, cfg Config) (*sqlx.DB, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("database dsn is empty")
	}

	switch cfg.Driver {
	case DriverSQLite:
		if err := registerSQLiteLower(); err != nil {
			return nil, err
		}
		if err := ensureSQLiteDir(cfg.DSN); err != nil {
			return nil, err
		}
	case DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := sqlx.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if cfg.Driver == DriverSQLite {
		// a single connection serialises writers and keeps pragmas in effect
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	pingTimeout := cfg.PingTimeout
	if pingTimeout <= 0 {
		pingTimeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if cfg.Driver == DriverSQLite {
		if _, err := db.ExecContext(ctx, `PRAGMA busy_timeout = 5000;`); err != nil {
			db.Close()
			return nil, fmt.Errorf("set busy timeout: %w", err)
		}
	}

	return db, nil
}

var (
	lowerOnce sync.Once
	lowerErr  error
)

// registerSQLiteLower replaces SQLite's ASCII-only lower() with a Unicode
// aware one for every connection opened afterwards.
func registerSQLiteLower() error {
	lowerOnce.Do(func() {
		lowerErr = sqlite.RegisterDeterministicScalarFunction("lower", 1, unicodeLower)
		if lowerErr != nil {
			lowerErr = fmt.Errorf("register sqlite lower: %w", lowerErr)
		}
	})
	return lowerErr
}

func unicodeLower(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch v := args[0].(type) {
	case nil:
		return nil, nil
	case string:
		return strings.ToLower(v), nil
	case []byte:
		return strings.ToLower(string(v)), nil
	default:
		return v, nil
	}
}

func ensureSQLiteDir(dsn string) error {
	if dsn == ":memory:" || strings.HasPrefix(dsn, "file:") {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
		return fmt.Errorf("create db dir: %w", err)
	}
	return nil
}

func createTableSQL(driver string) string {
	if driver == DriverPostgres {
		return createUsersTablePostgres
	}
	return createUsersTableSQLite
}

func versionSQL(driver string) string {
	if driver == DriverPostgres {
		return `SELECT version()`
	}
	return `SELECT sqlite_version()`
}
