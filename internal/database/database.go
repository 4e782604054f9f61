// Package database is the SQLite persistence layer: the inventory catalog,
// the legacy full-text search over it, playlists with their ordered
// membership, and the streaming id registry.
package database

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schema string

// driverName is go-sqlite3 with a unicode_lower SQL function. SQLite's own
// lower() only folds ASCII.
const driverName = "sqlite3_trackmatch"

func init() {
	sql.Register(driverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc("unicode_lower", strings.ToLower, true)
		},
	})
}

var (
	// ErrPlaylistNotFound is returned when writing to a playlist that does not
	// exist.
	ErrPlaylistNotFound = errors.New("playlist not found")
	// ErrMembershipConflict means the playlist changed between reading its
	// membership and appending to it.
	ErrMembershipConflict = errors.New("playlist membership changed concurrently")
)

// Store wraps the SQLite handle.
type Store struct {
	db   *sql.DB
	path string
}

// Open connects to the database at path, creating parent directories and the
// schema as needed.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}

	// _txlock=immediate takes the write lock at BEGIN so the membership
	// check-then-insert cannot interleave with another writer.
	dsn := path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on&_txlock=immediate"
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	if err := InitDatabase(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, path: path}, nil
}

// InitDatabase runs the embedded schema and sets performance pragmas.
func InitDatabase(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, "PRAGMA cache_size=-2000"); err != nil {
		return fmt.Errorf("apply pragma: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func isUniqueViolation(err error) bool {
	var serr sqlite3.Error
	if errors.As(err, &serr) {
		return serr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			serr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
