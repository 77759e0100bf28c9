// Package sqlstore is the database/sql-backed persistence layer shared by
// every repository adapter. It supports two interchangeable backends,
// selected at startup by DB_CONNECTION: modernc.org/sqlite (pure Go, no
// cgo) for local/single-node deployments, and go-sql-driver/mysql for a
// shared server. Neither backend offers Postgres-style session advisory
// locks or LISTEN/NOTIFY, so locking here is CAS-plus-retry over ordinary
// rows (see retry.go) and broadcast lives entirely in-process
// (see adapter/broadcast).
package sqlstore

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"
)

// Driver is the closed set of supported backends.
type Driver string

const (
	DriverSQLite Driver = "sqlite"
	DriverMySQL  Driver = "mysql"
)

// Open connects to the configured backend and applies the pragmas/pool
// settings appropriate to it. dsn is the raw driver DSN: a file path (or
// ":memory:") for sqlite, a go-sql-driver/mysql DSN for mysql.
func Open(driver Driver, dsn string) (*sql.DB, error) {
	switch driver {
	case DriverSQLite:
		return openSQLite(dsn)
	case DriverMySQL:
		return openMySQL(dsn)
	default:
		return nil, fmt.Errorf("sqlstore: unsupported DB_CONNECTION %q", driver)
	}
}

func openSQLite(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}
	// A single *sql.DB shares one underlying file; sqlite only allows one
	// writer at a time regardless, so keep the pool small and let
	// retryOnBusy absorb contention instead of serializing in the pool.
	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying %q: %w", p, err)
		}
	}
	return db, nil
}

func openMySQL(dsn string) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening mysql: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)
	return db, nil
}
