package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/media-curator/media-curator/internal/store"
)

const faceColumns = `id, media_id, face_index, cluster_id, ts, bbox, det_score, embedding`

func scanFace(rows *sql.Rows) (store.FaceObservation, error) {
	var f store.FaceObservation
	var bboxJSON string
	var vec pgvector.Vector

	if err := rows.Scan(&f.ID, &f.MediaID, &f.FaceIndex, &f.Cluster,
		&f.Timestamp, &bboxJSON, &f.DetScore, &vec); err != nil {
		return f, fmt.Errorf("scanning face row: %w", err)
	}

	_ = json.Unmarshal([]byte(bboxJSON), &f.BBox)
	f.Embedding = vec.Slice()
	return f, nil
}

func (s *Store) queryFaces(ctx context.Context, query string, args ...any) ([]store.FaceObservation, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying faces: %w", err)
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
		`SELECT `+faceColumns+` FROM faces WHERE media_id = $1 ORDER BY face_index`, mediaID)
}

func (s *Store) AllFaces(ctx context.Context) ([]store.FaceObservation, error) {
	return s.queryFaces(ctx, `SELECT `+faceColumns+` FROM faces ORDER BY id`)
}

func (s *Store) FacesByCluster(ctx context.Context, cluster int) ([]store.FaceObservation, error) {
	return s.queryFaces(ctx,
		`SELECT `+faceColumns+` FROM faces WHERE cluster_id = $1 ORDER BY id`, cluster)
}

func (s *Store) UpdateClusters(ctx context.Context, assignments map[int64]int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE faces SET cluster_id = $1`, store.ClusterUnassigned); err != nil {
		return fmt.Errorf("resetting clusters: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `UPDATE faces SET cluster_id = $1 WHERE id = $2`)
	if err != nil {
		return fmt.Errorf("preparing cluster update: %w", err)
	}
	defer stmt.Close()

	for faceID, cluster := range assignments {
		if _, err := stmt.ExecContext(ctx, cluster, faceID); err != nil {
			return fmt.Errorf("updating cluster for face %d: %w", faceID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing cluster update: %w", err)
	}
	return nil
}

func (s *Store) FaceEmbeddings(ctx context.Context) (map[int64][]float32, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, embedding FROM faces WHERE embedding IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("querying face embeddings: %w", err)
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
