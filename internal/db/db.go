// Package db opens the SQLite files that hold measurement snapshots.
package db

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

const driverName = "sqlite3"

type Options struct {
	// ReadOnly opens the file with mode=ro and never creates it.
	ReadOnly bool
	// LogSQL routes every statement through the logging connector at debug level.
	LogSQL bool
	Logger *slog.Logger
}

// Open opens and pings the snapshot database at path.
func Open(path string, opts Options) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("db open: empty path")
	}
	if opts.ReadOnly {
		if _, err := os.Stat(trimFilePrefix(path)); err != nil {
			return nil, fmt.Errorf("db open: %w", err)
		}
	}

	dsn, err := buildDSN(path, opts.ReadOnly)
	if err != nil {
		return nil, err
	}

	var db *sql.DB
	if opts.LogSQL {
		connector, err := NewLoggingConnector(dsn, opts.Logger)
		if err != nil {
			return nil, fmt.Errorf("db open: %w", err)
		}
		db = sql.OpenDB(connector)
	} else {
		db, err = sql.Open(driverName, dsn)
		if err != nil {
			return nil, fmt.Errorf("db open: %w", err)
		}
	}

	// One writer at a time; snapshots are loaded once and written by the tool.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func Close(db *sql.DB) error {
	if db == nil {
		return nil
	}
	return db.Close()
}

func trimFilePrefix(path string) string {
	path = strings.TrimPrefix(path, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	return path
}

func buildDSN(path string, readOnly bool) (string, error) {
	params := []string{"_busy_timeout=5000"}
	if readOnly {
		params = append([]string{"mode=ro"}, params...)
	} else {
		dir := filepath.Dir(trimFilePrefix(path))
		if dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return "", fmt.Errorf("mkdir %s: %w", dir, err)
			}
		}
		// Rollback journal: read-only opens need no -wal or -shm files.
		params = append([]string{"_foreign_keys=on"}, params...)
	}

	if strings.HasPrefix(path, "file:") {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		return path + sep + strings.Join(params, "&"), nil
	}
	return fmt.Sprintf("file:%s?%s", path, strings.Join(params, "&")), nil
}
