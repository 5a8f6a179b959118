package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/media-curator/media-curator/internal/store"
)

const mediaColumns = `id, file_path, fingerprint, file_size, media_type, width, height,
	duration, fps, created_at, modified_at, processed, process_error,
	style_label, tags, character_tags, series_tags, transcript, frame_notes`

func marshalJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func unmarshalStrings(s string) []string {
	if s == "" || s == "[]" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil
	}
	return out
}

// nullableVector wraps a vector so that nil maps to SQL NULL.
func nullableVector(v []float32) any {
	if v == nil {
		return nil
	}
	return pgvector.NewVector(v)
}

func (s *Store) ApplyCommits(ctx context.Context, commits []store.Commit) ([]store.CommitResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	results := make([]store.CommitResult, 0, len(commits))
	for i := range commits {
		res, err := s.applyCommit(ctx, tx, &commits[i])
		if err != nil {
			return nil, fmt.Errorf("failed to apply commit for %s: %w", commits[i].Record.Path, err)
		}
		results = append(results, res)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}
	return results, nil
}

func (s *Store) applyCommit(ctx context.Context, tx *sql.Tx, c *store.Commit) (store.CommitResult, error) {
	rec := &c.Record

	var mediaID int64
	err := tx.QueryRowContext(ctx, `
		INSERT INTO files (file_path, fingerprint, file_size, media_type, width, height,
			duration, fps, created_at, modified_at, processed, process_error,
			style_label, tags, character_tags, series_tags, transcript, frame_notes, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		ON CONFLICT (file_path) DO UPDATE SET
			fingerprint = EXCLUDED.fingerprint,
			file_size = EXCLUDED.file_size,
			media_type = EXCLUDED.media_type,
			width = EXCLUDED.width,
			height = EXCLUDED.height,
			duration = EXCLUDED.duration,
			fps = EXCLUDED.fps,
			created_at = EXCLUDED.created_at,
			modified_at = EXCLUDED.modified_at,
			processed = EXCLUDED.processed,
			process_error = EXCLUDED.process_error,
			style_label = EXCLUDED.style_label,
			tags = EXCLUDED.tags,
			character_tags = EXCLUDED.character_tags,
			series_tags = EXCLUDED.series_tags,
			transcript = EXCLUDED.transcript,
			frame_notes = EXCLUDED.frame_notes,
			embedding = EXCLUDED.embedding
		RETURNING id`,
		rec.Path, rec.Fingerprint, rec.Size, string(rec.Type), rec.Width, rec.Height,
		rec.Duration, rec.FPS, rec.CreatedAt, rec.ModifiedAt, rec.Processed, rec.ProcessError,
		rec.StyleLabel, marshalJSON(rec.Tags), marshalJSON(rec.CharacterTags),
		marshalJSON(rec.SeriesTags), marshalJSON(rec.Transcript), marshalJSON(rec.FrameNotes),
		nullableVector(c.Embedding),
	).Scan(&mediaID)
	if err != nil {
		return store.CommitResult{}, fmt.Errorf("upserting media row: %w", err)
	}

	var removed []int64
	rows, err := tx.QueryContext(ctx, `SELECT id FROM faces WHERE media_id = $1`, mediaID)
	if err != nil {
		return store.CommitResult{}, fmt.Errorf("querying prior faces: %w", err)
	}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return store.CommitResult{}, err
		}
		removed = append(removed, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return store.CommitResult{}, err
	}

	if len(removed) > 0 {
		if _, err := tx.ExecContext(ctx, `DELETE FROM faces WHERE media_id = $1`, mediaID); err != nil {
			return store.CommitResult{}, fmt.Errorf("deleting prior faces: %w", err)
		}
	}

	faceIDs := make([]int64, 0, len(c.Faces))
	for j := range c.Faces {
		f := &c.Faces[j]
		var faceID int64
		err := tx.QueryRowContext(ctx, `
			INSERT INTO faces (media_id, face_index, cluster_id, ts, bbox, det_score, embedding)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id`,
			mediaID, f.FaceIndex, store.ClusterUnassigned, f.Timestamp,
			marshalJSON(f.BBox), f.DetScore, nullableVector(f.Embedding),
		).Scan(&faceID)
		if err != nil {
			return store.CommitResult{}, fmt.Errorf("inserting face: %w", err)
		}
		faceIDs = append(faceIDs, faceID)
	}

	return store.CommitResult{
		MediaID:        mediaID,
		Path:           rec.Path,
		FaceIDs:        faceIDs,
		RemovedFaceIDs: removed,
	}, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMedia(row rowScanner) (*store.MediaRecord, error) {
	var rec store.MediaRecord
	var mediaType string
	var tagsJSON, charsJSON, seriesJSON, transcriptJSON, framesJSON string

	err := row.Scan(&rec.ID, &rec.Path, &rec.Fingerprint, &rec.Size, &mediaType,
		&rec.Width, &rec.Height, &rec.Duration, &rec.FPS, &rec.CreatedAt, &rec.ModifiedAt,
		&rec.Processed, &rec.ProcessError, &rec.StyleLabel,
		&tagsJSON, &charsJSON, &seriesJSON, &transcriptJSON, &framesJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning media row: %w", err)
	}

	rec.Type = store.MediaType(mediaType)
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

func (s *Store) GetMedia(ctx context.Context, id int64) (*store.MediaRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+mediaColumns+` FROM files WHERE id = $1`, id)
	return scanMedia(row)
}

func (s *Store) GetMediaByPath(ctx context.Context, path string) (*store.MediaRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+mediaColumns+` FROM files WHERE file_path = $1`, path)
	return scanMedia(row)
}

func (s *Store) ListMedia(ctx context.Context, filter store.MediaFilter) ([]store.MediaRecord, error) {
	query := `SELECT ` + mediaColumns + ` FROM files`
	var args []any
	if filter.Type != "" {
		query += ` WHERE media_type = $1`
		args = append(args, string(filter.Type))
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing media: %w", err)
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

	return filter.Apply(records), nil
}

func (s *Store) DeleteMedia(ctx context.Context, id int64) ([]int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var removed []int64
	rows, err := tx.QueryContext(ctx, `SELECT id FROM faces WHERE media_id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("querying faces: %w", err)
	}
	for rows.Next() {
		var faceID int64
		if err := rows.Scan(&faceID); err != nil {
			rows.Close()
			return nil, err
		}
		removed = append(removed, faceID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM files WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("deleting media: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, store.ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing delete: %w", err)
	}
	return removed, nil
}

func (s *Store) Fingerprints(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT file_path, fingerprint FROM files`)
	if err != nil {
		return nil, fmt.Errorf("querying fingerprints: %w", err)
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

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, file_path FROM files WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("resolving paths: %w", err)
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
		return nil, fmt.Errorf("querying media embeddings: %w", err)
	}
	defer rows.Close()

	out := make(map[int64][]float32)
	for rows.Next() {
		var id int64
		var vec pgvector.Vector
		if err := rows.Scan(&id, &vec); err != nil {
			return nil, err
		}
		out[id] = vec.Slice()
	}
	return out, rows.Err()
}

func (s *Store) Stats(ctx context.Context) (*store.Stats, error) {
	var stats store.Stats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM files),
			(SELECT COUNT(*) FROM files WHERE processed),
			(SELECT COUNT(*) FROM files WHERE process_error != ''),
			(SELECT COUNT(*) FROM faces),
			(SELECT COUNT(DISTINCT cluster_id) FROM faces WHERE cluster_id >= 0)`,
	).Scan(&stats.MediaCount, &stats.ProcessedCount, &stats.ErrorCount,
		&stats.FaceCount, &stats.ClusterCount)
	if err != nil {
		return nil, fmt.Errorf("collecting stats: %w", err)
	}
	return &stats, nil
}
