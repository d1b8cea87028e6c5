// Package store opens the SQLite database that backs the notes server.
//
// It owns the connection, the pragmas and the schema. The credential and
// note stores build their queries on top of the *DB returned by Open; each
// of their calls is a single unit of work.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// FileName is the database file created inside the data directory.
const FileName = "notes.db"

// ─── Config ──────────────────────────────────────────────────────────────────

// Config holds store configuration.
type Config struct {
	DataDir string
}

// DefaultConfig returns the default configuration for the store.
func DefaultConfig() Config {
	home, _ := os.UserHomeDir()
	return Config{DataDir: filepath.Join(home, ".notesmcp")}
}

// ─── DB ──────────────────────────────────────────────────────────────────────

// DB wraps the SQLite connection shared by the credential and note stores.
type DB struct {
	db    *sql.DB
	path  string
	hooks Hooks
}

// Hooks replace the statement paths of a DB. A nil field uses the
// connection directly. Tests set them to inject storage failures.
type Hooks struct {
	Exec     func(ctx context.Context, db *sql.DB, query string, args ...any) (sql.Result, error)
	Query    func(ctx context.Context, db *sql.DB, query string, args ...any) (*sql.Rows, error)
	QueryRow func(ctx context.Context, db *sql.DB, query string, args ...any) *sql.Row
}

// Open creates the data directory if needed, opens SQLite with WAL mode
// and runs migrations.
func Open(cfg Config) (*DB, error) {
	if cfg.DataDir == "" {
		cfg = DefaultConfig()
	}
	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, fmt.Errorf("store: create data dir: %w", err)
	}

	dbPath := filepath.Join(cfg.DataDir, FileName)
	db, err := openDB("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("store: pragma %q: %w", p, err)
		}
	}

	d := &DB{db: db, path: dbPath}
	if err := d.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: migration: %w", err)
	}
	return d, nil
}

// Path returns the database file location.
func (d *DB) Path() string { return d.path }

// Close closes the underlying database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// Exec runs a statement that returns no rows.
func (d *DB) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if d.hooks.Exec != nil {
		return d.hooks.Exec(ctx, d.db, query, args...)
	}
	return d.db.ExecContext(ctx, query, args...)
}

// Query runs a statement that returns rows.
func (d *DB) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	if d.hooks.Query != nil {
		return d.hooks.Query(ctx, d.db, query, args...)
	}
	return d.db.QueryContext(ctx, query, args...)
}

// QueryRow runs a statement expected to return at most one row.
func (d *DB) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	if d.hooks.QueryRow != nil {
		return d.hooks.QueryRow(ctx, d.db, query, args...)
	}
	return d.db.QueryRowContext(ctx, query, args...)
}

// SetHooks installs h and returns a func restoring the previous hooks.
func (d *DB) SetHooks(h Hooks) func() {
	prev := d.hooks
	d.hooks = h
	return func() { d.hooks = prev }
}

// ─── Migrations ──────────────────────────────────────────────────────────────

func (d *DB) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS users (
			username      TEXT PRIMARY KEY,
			password_hash TEXT NOT NULL,
			created_at    TEXT NOT NULL DEFAULT (datetime('now'))
		);

		CREATE TABLE IF NOT EXISTS notes (
			id         TEXT PRIMARY KEY,
			topic      TEXT NOT NULL,
			content    TEXT NOT NULL,
			tags       TEXT NOT NULL DEFAULT '[]',
			owner      TEXT NOT NULL,
			created_at TEXT NOT NULL DEFAULT (datetime('now'))
		);

		CREATE INDEX IF NOT EXISTS idx_notes_owner_topic ON notes(owner, topic);
	`
	if _, err := d.db.Exec(schema); err != nil {
		return err
	}
	return nil
}
