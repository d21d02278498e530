// Package postgres implements the repository interfaces on PostgreSQL
// through the pgx database/sql driver. The schema is managed by goose with
// migrations embedded in the binary.
//
// The retention transaction locks the owning users row (SELECT ... FOR
// UPDATE), so stores for the same user serialize while stores for different
// users run in parallel.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/rs/xid"
)

//go:embed migrations/*.sql
var migrations embed.FS

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// DB implements repository.UserRepository and repository.SignatureRepository.
type DB struct {
	conn  *sql.DB
	newID func() string
}

// Open connects to dsn, verifies the connection and applies migrations.
func Open(ctx context.Context, dsn string) (*DB, error) {
	conn, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: opening database: %w", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("postgres: pinging database: %w", err)
	}

	db := New(conn)
	if err := db.RunMigrations(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("postgres: running migrations: %w", err)
	}
	return db, nil
}

// New wraps an existing pool without running migrations.
func New(conn *sql.DB) *DB {
	return &DB{
		conn:  conn,
		newID: func() string { return xid.New().String() },
	}
}

// RunMigrations applies the embedded goose migrations.
func (db *DB) RunMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return gooseUpContext(ctx, db.conn, "migrations")
}

// Ping checks the database is reachable.
func (db *DB) Ping() error {
	return db.conn.Ping()
}

// Close closes the connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}
