// Package storage opens the SQLite database and provides migration and
// transaction helpers.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Config holds database configuration.
type Config struct {
	// Path is the SQLite file. ":memory:" opens a private in-memory database.
	Path string `yaml:"path" toml:"path" json:"path" env:"NEWSDESK_DB"`
	// BusyTimeout is how long a writer waits on a locked database.
	BusyTimeout time.Duration `yaml:"busy_timeout" toml:"busy_timeout" json:"busy_timeout"`
}

// DB wraps a *sql.DB with additional utilities.
type DB struct {
	*sql.DB
	logger *slog.Logger
}

// Open creates the database file if needed and verifies the connection.
func Open(ctx context.Context, cfg Config) (*DB, error) {
	if cfg.Path == "" {
		cfg.Path = "newsdesk.db"
	}
	if cfg.BusyTimeout <= 0 {
		cfg.BusyTimeout = 5 * time.Second
	}

	if cfg.Path != ":memory:" {
		if dir := filepath.Dir(cfg.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create database dir: %w", err)
			}
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=foreign_keys(1)",
		cfg.Path, cfg.BusyTimeout.Milliseconds())
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite allows a single writer, and a :memory: database lives on one
	// connection.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &DB{DB: db, logger: slog.Default().With("component", "storage")}, nil
}

// Migrate runs the given SQL schema on the database.
func (db *DB) Migrate(ctx context.Context, schema string) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	db.logger.Debug("database migration completed")
	return nil
}

// Transaction wraps a function in a database transaction.
func (db *DB) Transaction(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	return tx.Commit()
}
