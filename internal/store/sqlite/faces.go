package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/media-curator/media-curator/internal/store"
)

const faceColumns = `id, media_id, face_index, cluster_id, timestamp, bbox, det_score, embedding`

func scanFace(rows *sql.Rows) (store.FaceObservation, error) {
	var f store.FaceObservation
	var bboxJSON string
	var blob []byte

	if err := rows.Scan(&f.ID, &f.MediaID, &f.FaceIndex, &f.Cluster,
		&f.Timestamp, &bboxJSON, &f.DetScore, &blob); err != nil {
		return f, fmt.Errorf("failed to scan face row: %w", err)
	}

	_ = json.Unmarshal([]byte(bboxJSON), &f.BBox)
	vec, err := decodeVector(blob)
	if err != nil {
		return f, fmt.Errorf("face %d: %w", f.ID, err)
	}
	f.Embedding = vec
	return f, nil
}

func (s *Store) queryFaces(ctx context.Context, query string, args ...any) ([]store.FaceObservation, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query faces: %w", err)
	}
	defer rows.Close()

	var faces []store.FaceObservation
	for rows.Next() {
		f, err := scanFace(rows)
		if err != nil {
			return nil, err
		}
		faces = append(faces, f)
	}
	return faces, rows.Err()
}

func (s *Store) ListFaces(ctx context.Context, mediaID int64) ([]store.FaceObservation, error) {
	return s.queryFaces(ctx,
		`SELECT `+faceColumns+` FROM faces WHERE media_id = ? ORDER BY face_index`, mediaID)
}

func (s *Store) AllFaces(ctx context.Context) ([]store.FaceObservation, error) {
	return s.queryFaces(ctx, `SELECT `+faceColumns+` FROM faces ORDER BY id`)
}

func (s *Store) FacesByCluster(ctx context.Context, cluster int) ([]store.FaceObservation, error) {
	return s.queryFaces(ctx,
		`SELECT `+faceColumns+` FROM faces WHERE cluster_id = ? ORDER BY id`, cluster)
}

// UpdateClusters overwrites cluster assignments from a clustering run.
// Faces missing from the map are reset to unassigned, so stale labels
// from a previous run cannot survive.
func (s *Store) UpdateClusters(ctx context.Context, assignments map[int64]int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE faces SET cluster_id = ?`, store.ClusterUnassigned); err != nil {
		return fmt.Errorf("failed to reset clusters: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `UPDATE faces SET cluster_id = ? WHERE id = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare cluster update: %w", err)
	}
	defer stmt.Close()

	for faceID, cluster := range assignments {
		if _, err := stmt.ExecContext(ctx, cluster, faceID); err != nil {
			return fmt.Errorf("failed to update cluster for face %d: %w", faceID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit cluster update: %w", err)
	}
	return nil
}

func (s *Store) FaceEmbeddings(ctx context.Context) (map[int64][]float32, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, embedding FROM faces WHERE embedding IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("failed to query face embeddings: %w", err)
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
			return nil, fmt.Errorf("face %d: %w", id, err)
		}
		if vec != nil {
			out[id] = vec
		}
	}
	return out, rows.Err()
}
