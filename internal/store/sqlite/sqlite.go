// Package sqlite is the default relational backend: a single local
// database file in WAL mode.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver
)

const defaultTimeout = 5 * time.Second

type Store struct {
	db *sql.DB
}

// New opens (or creates) the database file and ensures the schema.
// The parent directory must already exist and be writable.
func New(ctx context.Context, dbPath string) (*Store, error) {
	// busy_timeout helps prevent "database is locked" errors
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=10000&_temp_store=MEMORY&_busy_timeout=5000&_foreign_keys=1", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(time.Hour)

	s := &Store{db: db}
	if err := s.initialize(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	return s, nil
}

func (s *Store) initialize(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS files (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		file_path TEXT NOT NULL UNIQUE,
		fingerprint TEXT NOT NULL,
		file_size INTEGER NOT NULL DEFAULT 0,
		media_type TEXT NOT NULL,
		width INTEGER NOT NULL DEFAULT 0,
		height INTEGER NOT NULL DEFAULT 0,
		duration REAL NOT NULL DEFAULT 0,
		fps REAL NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL DEFAULT 0,
		modified_at INTEGER NOT NULL DEFAULT 0,
		processed INTEGER NOT NULL DEFAULT 0,
		process_error TEXT NOT NULL DEFAULT '',
		style_label TEXT NOT NULL DEFAULT '',
		tags TEXT NOT NULL DEFAULT '[]',
		character_tags TEXT NOT NULL DEFAULT '[]',
		series_tags TEXT NOT NULL DEFAULT '[]',
		transcript TEXT NOT NULL DEFAULT '[]',
		frame_notes TEXT NOT NULL DEFAULT '[]',
		embedding BLOB
	);

	CREATE INDEX IF NOT EXISTS idx_files_media_type ON files(media_type);
	CREATE INDEX IF NOT EXISTS idx_files_fingerprint ON files(fingerprint);

	CREATE TABLE IF NOT EXISTS faces (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		media_id INTEGER NOT NULL REFERENCES files(id) ON DELETE CASCADE,
		face_index INTEGER NOT NULL DEFAULT 0,
		cluster_id INTEGER NOT NULL DEFAULT -1,
		timestamp REAL NOT NULL DEFAULT 0,
		bbox TEXT NOT NULL DEFAULT '[0,0,0,0]',
		det_score REAL NOT NULL DEFAULT 0,
		embedding BLOB
	);

	CREATE INDEX IF NOT EXISTS idx_faces_media_id ON faces(media_id);
	CREATE INDEX IF NOT EXISTS idx_faces_cluster ON faces(cluster_id);
	`

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return err
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
