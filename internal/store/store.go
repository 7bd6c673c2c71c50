// Package store persists conversations, profiles, personas, and diaries in a
// single sqlite database. Concurrent turns for the same session are not
// serialized here; writes are last-write-wins.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"taedam/internal/shared/timeutil"
)

// DB wraps the shared sqlite handle.
type DB struct {
	db   *sql.DB
	path string
}

// Open creates or opens the database at path and ensures the schema exists.
func Open(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// sqlite allows a single writer; funnel the pool down to avoid SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	s := &DB{db: db, path: path}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

// Close closes the underlying handle.
func (s *DB) Close() error { return s.db.Close() }

// Path returns the database file path.
func (s *DB) Path() string { return s.path }

func (s *DB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS chat_logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		role TEXT NOT NULL,
		text TEXT NOT NULL,
		meta_json TEXT,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_chat_logs_session ON chat_logs(session_id, created_at);

	CREATE TABLE IF NOT EXISTS baby_profiles (
		session_id TEXT PRIMARY KEY,
		name TEXT,
		week INTEGER,
		gender TEXT,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS mother_profiles (
		session_id TEXT PRIMARY KEY,
		name TEXT,
		age INTEGER,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS child_personas (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		persona_json TEXT NOT NULL,
		version INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_child_personas_session ON child_personas(session_id, version);

	CREATE TABLE IF NOT EXISTS persona_summaries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		week_start TEXT NOT NULL,
		week_end TEXT NOT NULL,
		summary TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		UNIQUE(session_id, week_start)
	);

	CREATE TABLE IF NOT EXISTS diaries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		date TEXT NOT NULL,
		title TEXT NOT NULL,
		content TEXT NOT NULL,
		used_chats_json TEXT,
		created_at TEXT NOT NULL,
		UNIQUE(session_id, date)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// now returns the canonical timestamp stored in every table. Timestamps are
// stamped in KST so the created_at date prefix matches the logical day the
// engine resolves; MessagesByDate buckets on that prefix.
func now() string {
	return timeutil.Now().Format(time.RFC3339)
}
