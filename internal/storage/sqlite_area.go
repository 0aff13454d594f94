package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteFileName is the database file the sqlite backend opens inside the
// session directory.
const SQLiteFileName = "sessions.db"

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS session_items (
	session_id TEXT NOT NULL,
	key        TEXT NOT NULL,
	value      TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL,
	PRIMARY KEY (session_id, key)
)`

// SQLiteArea stores every session as rows of one shared table. Unlike the fs
// backend it takes no per-session lock; sqlite serializes writers itself.
type SQLiteArea struct {
	mu        sync.Mutex
	db        *sql.DB
	ownsDB    bool
	sessionID string
	quota     int
	closed    bool
}

// OpenSQLiteArea opens (creating if needed) {dir}/sessions.db and binds an
// area to sessionID. The returned area owns the database handle.
func OpenSQLiteArea(sessionID string, opts Options) (*SQLiteArea, error) {
	dir, err := resolveDir(opts.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to get session directory: %w", err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}
	db, err := sql.Open("sqlite", filepath.Join(dir, SQLiteFileName))
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	a, err := NewSQLiteArea(context.Background(), db, sessionID, opts)
	if err != nil {
		return nil, errors.Join(err, db.Close())
	}
	a.ownsDB = true
	return a, nil
}

// NewSQLiteArea binds an area to an existing database, creating the table if
// it does not exist. The caller keeps ownership of db.
func NewSQLiteArea(ctx context.Context, db *sql.DB, sessionID string, opts Options) (*SQLiteArea, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("sessionID cannot be empty")
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		return nil, fmt.Errorf("failed to create session_items table: %w", err)
	}
	return &SQLiteArea{db: db, sessionID: sessionID, quota: opts.QuotaBytes}, nil
}

func (a *SQLiteArea) SessionID() string { return a.sessionID }

func (a *SQLiteArea) GetItem(key string) (string, bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return "", false, ErrClosed
	}
	var value string
	err := a.db.QueryRow(`SELECT value FROM session_items WHERE session_id = ? AND key = ?`, a.sessionID, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get item[%s]: %w", key, err)
	}
	return value, true, nil
}

func (a *SQLiteArea) SetItem(key, value string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return ErrClosed
	}
	tx, err := a.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if a.quota > 0 {
		var size int
		err := tx.QueryRow(`
			SELECT COALESCE(SUM(LENGTH(CAST(key AS BLOB)) + LENGTH(CAST(value AS BLOB))), 0)
			FROM session_items WHERE session_id = ? AND key <> ?
		`, a.sessionID, key).Scan(&size)
		if err != nil {
			return fmt.Errorf("failed to measure session size: %w", err)
		}
		if size+len(key)+len(value) > a.quota {
			return ErrQuotaExceeded
		}
	}

	_, err = tx.Exec(`
		INSERT INTO session_items (session_id, key, value, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(session_id, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, a.sessionID, key, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to set item[%s]: %w", key, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit item[%s]: %w", key, err)
	}
	return nil
}

func (a *SQLiteArea) RemoveItem(key string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return ErrClosed
	}
	if _, err := a.db.Exec(`DELETE FROM session_items WHERE session_id = ? AND key = ?`, a.sessionID, key); err != nil {
		return fmt.Errorf("failed to delete item[%s]: %w", key, err)
	}
	return nil
}

func (a *SQLiteArea) Keys() ([]string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil, ErrClosed
	}
	rows, err := a.db.Query(`SELECT key FROM session_items WHERE session_id = ? ORDER BY key`, a.sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	defer rows.Close()

	keys := []string{}
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("failed to scan key row: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate key rows: %w", err)
	}
	return keys, nil
}

// Close closes the database if the area opened it.
func (a *SQLiteArea) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	if a.ownsDB {
		return a.db.Close()
	}
	return nil
}

var _ Area = (*SQLiteArea)(nil)
