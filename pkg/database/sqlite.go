// Package database manages the server's SQLite store.
package database

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB wraps the SQLite connection.
type DB struct {
	*sql.DB
}

// Open opens (and creates, if needed) the SQLite database at path and runs
// the schema migration. Use ":memory:" for an in-process store.
func Open(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Pragmas apply per connection and an in-memory database is per
	// connection too, so keep the pool at a single connection. SQLite
	// serializes writes regardless.
	sqlDB.SetMaxOpenConns(1)

	// WAL lets readers proceed alongside the writer; foreign keys are off by
	// default in SQLite and the sessions-annotations cascade needs them.
	if _, err := sqlDB.Exec("PRAGMA journal_mode=WAL"); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := sqlDB.Exec("PRAGMA foreign_keys=ON"); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	db := &DB{DB: sqlDB}
	if err := db.migrate(context.Background()); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return db, nil
}

// migrate applies the schema. The DDL is idempotent and runs on every boot.
func (db *DB) migrate(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		url TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'active',
		project_id TEXT,
		metadata TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS annotations (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
		status TEXT NOT NULL DEFAULT 'pending',
		payload TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_url ON sessions(url);
	CREATE INDEX IF NOT EXISTS idx_sessions_status ON sessions(status);
	CREATE INDEX IF NOT EXISTS idx_annotations_session_id ON annotations(session_id);
	CREATE INDEX IF NOT EXISTS idx_annotations_status ON annotations(status);
	`
	_, err := db.ExecContext(ctx, schema)
	return err
}
