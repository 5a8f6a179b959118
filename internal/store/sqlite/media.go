package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/media-curator/media-curator/internal/store"
)

const mediaColumns = `id, file_path, fingerprint, file_size, media_type, width, height,
	duration, fps, created_at, modified_at, processed, process_error,
	style_label, tags, character_tags, series_tags, transcript, frame_notes`

// ApplyCommits applies a batch of ingestion commits in one transaction.
// Each commit upserts its media row keyed by file_path and replaces the
// item's face observations. A failure on any commit rolls back the batch.
func (s *Store) ApplyCommits(ctx context.Context, commits []store.Commit) ([]store.CommitResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	results := make([]store.CommitResult, 0, len(commits))
	for i := range commits {
		res, err := applyCommit(ctx, tx, &commits[i])
		if err != nil {
			return nil, fmt.Errorf("failed to apply commit for %s: %w", commits[i].Record.Path, err)
		}
		results = append(results, res)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return results, nil
}

func applyCommit(ctx context.Context, tx *sql.Tx, c *store.Commit) (store.CommitResult, error) {
	rec := &c.Record

	var mediaID int64
	err := tx.QueryRowContext(ctx, `
		INSERT INTO files (file_path, fingerprint, file_size, media_type, width, height,
			duration, fps, created_at, modified_at, processed, process_error,
			style_label, tags, character_tags, series_tags, transcript, frame_notes, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(file_path) DO UPDATE SET
			fingerprint = excluded.fingerprint,
			file_size = excluded.file_size,
			media_type = excluded.media_type,
			width = excluded.width,
			height = excluded.height,
			duration = excluded.duration,
			fps = excluded.fps,
			created_at = excluded.created_at,
			modified_at = excluded.modified_at,
			processed = excluded.processed,
			process_error = excluded.process_error,
			style_label = excluded.style_label,
			tags = excluded.tags,
			character_tags = excluded.character_tags,
			series_tags = excluded.series_tags,
			transcript = excluded.transcript,
			frame_notes = excluded.frame_notes,
			embedding = excluded.embedding
		RETURNING id`,
		rec.Path, rec.Fingerprint, rec.Size, string(rec.Type), rec.Width, rec.Height,
		rec.Duration, rec.FPS, rec.CreatedAt.Unix(), rec.ModifiedAt.Unix(),
		rec.Processed, rec.ProcessError,
		rec.StyleLabel, marshalJSON(rec.Tags), marshalJSON(rec.CharacterTags),
		marshalJSON(rec.SeriesTags), marshalJSON(rec.Transcript), marshalJSON(rec.FrameNotes),
		encodeVector(c.Embedding),
	).Scan(&mediaID)
	if err != nil {
		return store.CommitResult{}, fmt.Errorf("failed to upsert media row: %w", err)
	}

	// Replace face observations: the commit describes the file as it is
	// now, so observations from any previous version are dropped
	removed, err := faceIDs(ctx, tx, mediaID)
	if err != nil {
		return store.CommitResult{}, err
	}
	if len(removed) > 0 {
		if _, err := tx.ExecContext(ctx, `DELETE FROM faces WHERE media_id = ?`, mediaID); err != nil {
			return store.CommitResult{}, fmt.Errorf("failed to delete prior faces: %w", err)
		}
	}

	ids := make([]int64, 0, len(c.Faces))
	for j := range c.Faces {
		f := &c.Faces[j]
		res, err := tx.ExecContext(ctx, `
			INSERT INTO faces (media_id, face_index, cluster_id, timestamp, bbox, det_score, embedding)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			mediaID, f.FaceIndex, store.ClusterUnassigned, f.Timestamp,
			marshalJSON(f.BBox), f.DetScore, encodeVector(f.Embedding),
		)
		if err != nil {
			return store.CommitResult{}, fmt.Errorf("failed to insert face: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return store.CommitResult{}, fmt.Errorf("failed to read face id: %w", err)
		}
		ids = append(ids, id)
	}

	return store.CommitResult{
		MediaID:        mediaID,
		Path:           rec.Path,
		FaceIDs:        ids,
		RemovedFaceIDs: removed,
	}, nil
}

func faceIDs(ctx context.Context, tx *sql.Tx, mediaID int64) ([]int64, error) {
	rows, err := tx.QueryContext(ctx, `SELECT id FROM faces WHERE media_id = ?`, mediaID)
	if err != nil {
		return nil, fmt.Errorf("failed to query face ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) GetMedia(ctx context.Context, id int64) (*store.MediaRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+mediaColumns+` FROM files WHERE id = ?`, id)
	return scanMedia(row)
}

func (s *Store) GetMediaByPath(ctx context.Context, path string) (*store.MediaRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+mediaColumns+` FROM files WHERE file_path = ?`, path)
	return scanMedia(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMedia(row rowScanner) (*store.MediaRecord, error) {
	var rec store.MediaRecord
	var mediaType string
	var createdAt, modifiedAt int64
	var tagsJSON, charsJSON, seriesJSON, transcriptJSON, framesJSON string

	err := row.Scan(&rec.ID, &rec.Path, &rec.Fingerprint, &rec.Size, &mediaType,
		&rec.Width, &rec.Height, &rec.Duration, &rec.FPS, &createdAt, &modifiedAt,
		&rec.Processed, &rec.ProcessError, &rec.StyleLabel,
		&tagsJSON, &charsJSON, &seriesJSON, &transcriptJSON, &framesJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan media row: %w", err)
	}

	rec.Type = store.MediaType(mediaType)
	rec.CreatedAt = time.Unix(createdAt, 0).UTC()
	rec.ModifiedAt = time.Unix(modifiedAt, 0).UTC()
	rec.Tags = unmarshalStrings(tagsJSON)
	rec.CharacterTags = unmarshalStrings(charsJSON)
	rec.SeriesTags = unmarshalStrings(seriesJSON)
	if transcriptJSON != "" && transcriptJSON != "[]" {
		_ = json.Unmarshal([]byte(transcriptJSON), &rec.Transcript)
	}
	if framesJSON != "" && framesJSON != "[]" {
		_ = json.Unmarshal([]byte(framesJSON), &rec.FrameNotes)
	}
	return &rec, nil
}

func (s *Store) ListMedia(ctx context.Context, filter store.MediaFilter) ([]store.MediaRecord, error) {
	query := `SELECT ` + mediaColumns + ` FROM files`
	var args []any
	if filter.Type != "" {
		query += ` WHERE media_type = ?`
		args = append(args, string(filter.Type))
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list media: %w", err)
	}
	defer rows.Close()

	var records []store.MediaRecord
	for rows.Next() {
		rec, err := scanMedia(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Tag and style filters match after normalization, so they are
	// applied here rather than in SQL
	return filter.Apply(records), nil
}

func (s *Store) DeleteMedia(ctx context.Context, id int64) ([]int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	removed, err := faceIDs(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM files WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to delete media: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, store.ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM faces WHERE media_id = ?`, id); err != nil {
		return nil, fmt.Errorf("failed to delete faces: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit delete: %w", err)
	}
	return removed, nil
}

func (s *Store) Fingerprints(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT file_path, fingerprint FROM files`)
	if err != nil {
		return nil, fmt.Errorf("failed to query fingerprints: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var path, fp string
		if err := rows.Scan(&path, &fp); err != nil {
			return nil, err
		}
		out[path] = fp
	}
	return out, rows.Err()
}

func (s *Store) ResolvePaths(ctx context.Context, ids []int64) (map[int64]string, error) {
	if len(ids) == 0 {
		return map[int64]string{}, nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, file_path FROM files WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve paths: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]string, len(ids))
	for rows.Next() {
		var id int64
		var path string
		if err := rows.Scan(&id, &path); err != nil {
			return nil, err
		}
		out[id] = path
	}
	return out, rows.Err()
}

func (s *Store) MediaEmbeddings(ctx context.Context) (map[int64][]float32, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, embedding FROM files WHERE embedding IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("failed to query media embeddings: %w", err)
	}
	defer rows.Close()

	out := make(map[int64][]float32)
	for rows.Next() {
		var id int64
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, err
		}
		vec, err := decodeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("media %d: %w", id, err)
		}
		if vec != nil {
			out[id] = vec
		}
	}
	return out, rows.Err()
}

func (s *Store) Stats(ctx context.Context) (*store.Stats, error) {
	var stats store.Stats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM files),
			(SELECT COUNT(*) FROM files WHERE processed = 1),
			(SELECT COUNT(*) FROM files WHERE process_error != ''),
			(SELECT COUNT(*) FROM faces),
			(SELECT COUNT(DISTINCT cluster_id) FROM faces WHERE cluster_id >= 0)`,
	).Scan(&stats.MediaCount, &stats.ProcessedCount, &stats.ErrorCount,
		&stats.FaceCount, &stats.ClusterCount)
	if err != nil {
		return nil, fmt.Errorf("failed to collect stats: %w", err)
	}
	return &stats, nil
}
