// Package state provides SQL-backed storage for dailyshuffle.
// It holds the roster (employees, rooms, exclusions), every published
// allocation keyed by day, and a log of runs. SQLite is the default
// (~/.local/share/dailyshuffle/dailyshuffle.db); Postgres and an in-memory
// SQLite database are also supported.
package state

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
	_ "modernc.org/sqlite"

	"github.com/ShayCichocki/dailyshuffle/pkg/models"
)

// Driver selects the database backend.
type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
	DriverMemory   Driver = "memory"
)

const defaultPostgresDSN = "postgres://localhost/dailyshuffle?sslmode=disable"

// Options configures OpenWith.
type Options struct {
	Driver Driver
	// Path is the SQLite file. Empty means DefaultPath().
	Path string
	// DSN is the Postgres connection string.
	DSN string
}

// DB wraps a database connection with dailyshuffle-specific operations.
type DB struct {
	conn   *sql.DB
	path   string
	driver Driver
	mu     sync.RWMutex
}

// DefaultPath returns the path to the default SQLite database.
func DefaultPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, _ := os.UserHomeDir()
		dataDir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataDir, "dailyshuffle", "dailyshuffle.db")
}

// OpenWith opens the backend named by opts.Driver.
func OpenWith(opts Options) (*DB, error) {
	switch opts.Driver {
	case DriverSQLite, "":
		path := opts.Path
		if path == "" {
			path = DefaultPath()
		}
		return Open(path)
	case DriverMemory:
		return OpenMemory()
	case DriverPostgres:
		return OpenPostgres(opts.DSN)
	default:
		return nil, &models.ConfigurationError{Reason: fmt.Sprintf("unknown store driver %q", opts.Driver)}
	}
}

// Open opens an SQLite database at the given path.
// It creates the parent directories if they don't exist.
// WAL mode is enabled for concurrent reads.
func Open(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	return &DB{conn: conn, path: path, driver: DriverSQLite}, nil
}

// OpenMemory opens a private in-memory SQLite database. The pool is pinned to
// one connection so every query sees the same database.
func OpenMemory() (*DB, error) {
	conn, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open memory database: %w", err)
	}
	conn.SetMaxOpenConns(1)
	return &DB{conn: conn, path: ":memory:", driver: DriverMemory}, nil
}

// OpenPostgres connects to Postgres through the pgx stdlib driver.
func OpenPostgres(dsn string) (*DB, error) {
	if dsn == "" {
		dsn = defaultPostgresDSN
	}
	conn, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := conn.PingContext(context.Background()); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &DB{conn: conn, driver: DriverPostgres}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.conn.Close()
}

// Path returns the SQLite file path, ":memory:", or "" for Postgres.
func (db *DB) Path() string {
	return db.path
}

// Driver returns the backend in use.
func (db *DB) Driver() Driver {
	return db.driver
}

// Name identifies the store in publication errors.
func (db *DB) Name() string {
	return "state:" + string(db.driver)
}

// Migrate applies all pending schema migrations.
func (db *DB) Migrate() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	var currentVersion int
	row := db.conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("get schema version: %w", err)
	}

	migrations := []struct {
		version int
		sql     string
	}{
		{1, migrationV1Roster},
		{2, migrationV2Allocations},
		{3, migrationV3Runs},
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}

		tx, err := db.conn.Begin()
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}

		if _, err := tx.Exec(m.sql); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration v%d: %w", m.version, err)
		}

		if _, err := tx.Exec(db.rebind("INSERT INTO schema_version (version, applied_at) VALUES (?, ?)"),
			m.version, formatTime(time.Now())); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration v%d: %w", m.version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// Migration SQL statements. They stick to types both SQLite and Postgres
// accept.
const migrationV1Roster = `
CREATE TABLE IF NOT EXISTS employees (
	name TEXT PRIMARY KEY,
	project TEXT NOT NULL,
	position INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS rooms (
	name TEXT PRIMARY KEY,
	capacity INTEGER NOT NULL,
	position INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS exclusions (
	name TEXT PRIMARY KEY
);
`

const migrationV2Allocations = `
CREATE TABLE IF NOT EXISTS allocations (
	day TEXT NOT NULL,
	position INTEGER NOT NULL,
	label TEXT NOT NULL,
	people TEXT NOT NULL,
	overflow INTEGER NOT NULL DEFAULT 0,
	written_at TEXT NOT NULL,
	PRIMARY KEY (day, position)
);

CREATE INDEX IF NOT EXISTS idx_allocations_day ON allocations(day);
`

const migrationV3Runs = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	day TEXT NOT NULL,
	seed TEXT NOT NULL,
	seated INTEGER NOT NULL DEFAULT 0,
	shortfall INTEGER NOT NULL DEFAULT 0,
	repeats_before INTEGER NOT NULL DEFAULT 0,
	repeats_after INTEGER NOT NULL DEFAULT 0,
	swaps INTEGER NOT NULL DEFAULT 0,
	publish_errors INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL,
	started_at TEXT NOT NULL,
	finished_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_day ON runs(day);
`

// rebind rewrites ? placeholders to $n for Postgres.
func (db *DB) rebind(query string) string {
	if db.driver != DriverPostgres || !strings.Contains(query, "?") {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Exec executes a query that doesn't return rows.
func (db *DB) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.conn.ExecContext(ctx, db.rebind(query), args...)
}

// Query executes a query that returns rows.
func (db *DB) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.conn.QueryContext(ctx, db.rebind(query), args...)
}

// QueryRow executes a query that returns at most one row.
func (db *DB) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.conn.QueryRowContext(ctx, db.rebind(query), args...)
}

// Tx is a transaction that rebinds placeholders like DB does.
type Tx struct {
	tx *sql.Tx
	db *DB
}

// Exec executes a statement inside the transaction.
func (t *Tx) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return t.tx.ExecContext(ctx, t.db.rebind(query), args...)
}

// Transaction runs the given function within a transaction.
func (db *DB) Transaction(ctx context.Context, fn func(tx *Tx) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(&Tx{tx: tx, db: db}); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit()
}

// formatTime formats a time.Time for storage.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// parseTime parses a stored time string.
func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}
