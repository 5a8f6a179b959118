// Package postgres is the optional relational backend for shared
// deployments. Media and face embeddings are mirrored into pgvector
// columns, so the vector index files can always be rebuilt from rows.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/media-curator/media-curator/internal/config"
)

// Store implements store.MediaStore on a PostgreSQL connection pool.
type Store struct {
	db       *sql.DB
	mediaDim int
	faceDim  int
}

// New creates a connection pool, verifies connectivity and ensures the
// schema. Embedding column dimensions are fixed at creation time.
func New(cfg *config.DatabaseConfig, mediaDim, faceDim int) (*Store, error) {
	if cfg.URL == "" {
		return nil, errors.New("database URL is required")
	}

	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(10 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{db: db, mediaDim: mediaDim, faceDim: faceDim}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS files (
			id BIGSERIAL PRIMARY KEY,
			file_path TEXT NOT NULL UNIQUE,
			fingerprint TEXT NOT NULL,
			file_size BIGINT NOT NULL DEFAULT 0,
			media_type TEXT NOT NULL,
			width INT NOT NULL DEFAULT 0,
			height INT NOT NULL DEFAULT 0,
			duration DOUBLE PRECISION NOT NULL DEFAULT 0,
			fps DOUBLE PRECISION NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			modified_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			processed BOOLEAN NOT NULL DEFAULT FALSE,
			process_error TEXT NOT NULL DEFAULT '',
			style_label TEXT NOT NULL DEFAULT '',
			tags JSONB NOT NULL DEFAULT '[]',
			character_tags JSONB NOT NULL DEFAULT '[]',
			series_tags JSONB NOT NULL DEFAULT '[]',
			transcript JSONB NOT NULL DEFAULT '[]',
			frame_notes JSONB NOT NULL DEFAULT '[]',
			embedding vector(%d)
		)`, s.mediaDim),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS faces (
			id BIGSERIAL PRIMARY KEY,
			media_id BIGINT NOT NULL REFERENCES files(id) ON DELETE CASCADE,
			face_index INT NOT NULL DEFAULT 0,
			cluster_id INT NOT NULL DEFAULT -1,
			ts DOUBLE PRECISION NOT NULL DEFAULT 0,
			bbox JSONB NOT NULL DEFAULT '[0,0,0,0]',
			det_score DOUBLE PRECISION NOT NULL DEFAULT 0,
			embedding vector(%d)
		)`, s.faceDim),
		`CREATE INDEX IF NOT EXISTS idx_files_media_type ON files(media_type)`,
		`CREATE INDEX IF NOT EXISTS idx_faces_media_id ON faces(media_id)`,
		`CREATE INDEX IF NOT EXISTS idx_faces_cluster ON faces(cluster_id)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			return fmt.Errorf("closing database connection: %w", err)
		}
	}
	return nil
}
