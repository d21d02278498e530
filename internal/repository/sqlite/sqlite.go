// Package sqlite implements the repository interfaces on SQLite.
//
// modernc.org/sqlite is a pure Go port of SQLite, so no C toolchain is
// needed. The database is a single file, or ":memory:" for tests.
//
// CONCURRENCY:
// SQLite has one writer at a time. Every connection opens its transactions
// with BEGIN IMMEDIATE (the _txlock=immediate DSN parameter), which takes the
// write lock up front. The retention transaction therefore cannot interleave
// with another one: the second writer waits (busy_timeout) until the first
// commits, and only then reads the signature count.
package sqlite

import (
	"database/sql"
	"fmt"
	"net/url"

	// registers the "sqlite" database/sql driver
	_ "modernc.org/sqlite"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// busyTimeoutMillis is how long a writer waits for the lock before failing.
const busyTimeoutMillis = 5000

// DB wraps a sql.DB connection pool and implements the repositories.
type DB struct {
	conn *sql.DB
}

// New opens (creating if needed) the database at dbPath and runs migrations.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Every connection to ":memory:" is a separate, empty database.
	if dbPath == MemoryPath {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// dsn adds the per-connection settings. Pragmas passed in the DSN are
// applied to every pooled connection, unlike a one-off PRAGMA statement.
func dsn(path string) string {
	q := url.Values{}
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", busyTimeoutMillis))
	q.Add("_pragma", "foreign_keys(1)")
	if path != MemoryPath {
		q.Add("_pragma", "journal_mode(WAL)")
	}
	q.Set("_txlock", "immediate")
	q.Set("_time_format", "sqlite")
	return path + "?" + q.Encode()
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping checks the database is reachable.
func (db *DB) Ping() error {
	return db.conn.Ping()
}

// migrate creates the schema. Every statement is idempotent.
func (db *DB) migrate() error {
	// email is the natural key. Times are stored in UTC so that text order
	// matches time order.
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id           TEXT PRIMARY KEY,
			email        TEXT NOT NULL UNIQUE,
			name         TEXT NOT NULL,
			role         TEXT NOT NULL DEFAULT 'student',
			department   TEXT NOT NULL DEFAULT '',
			created_at   DATETIME NOT NULL,
			updated_at   DATETIME NOT NULL,
			submitted_at DATETIME NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	// faculty was added after the first release.
	if err := db.addColumnIfNotExists("users", "faculty", "TEXT NOT NULL DEFAULT ''"); err != nil {
		return fmt.Errorf("adding faculty to users: %w", err)
	}

	// seq breaks ties between artifacts created in the same instant.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS signatures (
			seq        INTEGER PRIMARY KEY AUTOINCREMENT,
			id         TEXT NOT NULL UNIQUE,
			user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			svg_data   TEXT NOT NULL,
			gcode_data TEXT NOT NULL,
			metadata   TEXT NOT NULL DEFAULT '{}',
			created_at DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_signatures_user_created
			ON signatures(user_id, created_at, seq);
	`)
	if err != nil {
		return fmt.Errorf("creating signatures table: %w", err)
	}

	return nil
}

// addColumnIfNotExists adds a column to a table only if it doesn't already exist.
func (db *DB) addColumnIfNotExists(table, column, definition string) error {
	var count int
	err := db.conn.QueryRow(
		`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`,
		table, column,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("checking column %s.%s: %w", table, column, err)
	}
	if count > 0 {
		return nil
	}
	_, err = db.conn.Exec(fmt.Sprintf(
		`ALTER TABLE %s ADD COLUMN %s %s`, table, column, definition,
	))
	return err
}
