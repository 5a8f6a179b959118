// Package store implements the dual persistent store: a relational
// metadata backend plus two HNSW vector indices (media-level and
// face-level) kept consistent with it.
package store

import (
	"context"
	"fmt"
	"log"
	"os"
)

// SearchResult is one media-level similarity hit joined back to its
// relational row.
type SearchResult struct {
	MediaID    int64   `json:"media_id"`
	Path       string  `json:"path"`
	Similarity float64 `json:"similarity"`
}

// DualStore couples the relational backend with the two vector indices
// and keeps their contents consistent: relational writes commit first,
// vector updates follow, and every vector read is joined against live
// relational rows.
type DualStore struct {
	Meta  MediaStore
	Media *VectorIndex
	Faces *VectorIndex

	mediaIndexPath string
	faceIndexPath  string
}

// Open builds a DualStore around the given relational backend, loading
// the vector index files when they exist. Missing or unreadable index
// files start empty; Rebuild restores them from the relational side.
func Open(meta MediaStore, mediaDim, faceDim int, mediaIndexPath, faceIndexPath string) *DualStore {
	ds := &DualStore{
		Meta:           meta,
		Media:          NewVectorIndex(mediaDim),
		Faces:          NewVectorIndex(faceDim),
		mediaIndexPath: mediaIndexPath,
		faceIndexPath:  faceIndexPath,
	}

	if _, err := os.Stat(mediaIndexPath + ".entries"); err == nil {
		if err := ds.Media.Load(mediaIndexPath); err != nil {
			log.Printf("media index load failed, starting empty: %v", err)
			ds.Media = NewVectorIndex(mediaDim)
		}
	}
	if _, err := os.Stat(faceIndexPath + ".entries"); err == nil {
		if err := ds.Faces.Load(faceIndexPath); err != nil {
			log.Printf("face index load failed, starting empty: %v", err)
			ds.Faces = NewVectorIndex(faceDim)
		}
	}

	return ds
}

// CommitBatch applies a batch of ingestion commits: one relational
// transaction, then the vector updates for every commit that carried
// vectors, then a save of both index files. A relational failure leaves
// the vector side untouched.
func (ds *DualStore) CommitBatch(ctx context.Context, commits []Commit) ([]CommitResult, error) {
	if len(commits) == 0 {
		return nil, nil
	}

	results, err := ds.Meta.ApplyCommits(ctx, commits)
	if err != nil {
		return nil, fmt.Errorf("failed to commit batch: %w", err)
	}

	for i, res := range results {
		c := commits[i]

		for _, faceID := range res.RemovedFaceIDs {
			ds.Faces.Remove(faceID)
		}

		if c.Embedding != nil {
			if err := ds.Media.Add(res.MediaID, NormalizeVector(c.Embedding)); err != nil {
				return results, fmt.Errorf("failed to index media %d: %w", res.MediaID, err)
			}
		} else {
			// Failure record: a previously indexed vector for this item
			// no longer describes the file on disk
			ds.Media.Remove(res.MediaID)
		}
		for j, face := range c.Faces {
			if j >= len(res.FaceIDs) {
				break
			}
			if err := ds.Faces.Add(res.FaceIDs[j], NormalizeVector(face.Embedding)); err != nil {
				return results, fmt.Errorf("failed to index face %d: %w", res.FaceIDs[j], err)
			}
		}
	}

	if err := ds.Persist(); err != nil {
		return results, err
	}
	return results, nil
}

// SearchSimilar finds the k media items nearest to the query embedding.
// The query is normalized, the index is consulted, and hits are joined
// against live relational rows so deleted media never appear.
func (ds *DualStore) SearchSimilar(ctx context.Context, query []float32, k int) ([]SearchResult, error) {
	hits, err := ds.Media.Search(NormalizeVector(query), k)
	if err != nil {
		return nil, fmt.Errorf("media index search failed: %w", err)
	}
	return ds.joinLive(ctx, hits, k)
}

// NeighborsAbove returns every media item with similarity of at least
// minSimilarity to the query, joined against live rows. The duplicate
// detector uses it for range queries around each item.
func (ds *DualStore) NeighborsAbove(ctx context.Context, query []float32, minSimilarity float64) ([]SearchResult, error) {
	hits, err := ds.Media.RangeSearch(NormalizeVector(query), minSimilarity)
	if err != nil {
		return nil, fmt.Errorf("media index range search failed: %w", err)
	}
	return ds.joinLive(ctx, hits, len(hits))
}

func (ds *DualStore) joinLive(ctx context.Context, hits []VectorResult, limit int) ([]SearchResult, error) {
	if len(hits) == 0 {
		return nil, nil
	}

	ids := make([]int64, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
	}
	paths, err := ds.Meta.ResolvePaths(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve media paths: %w", err)
	}

	results := make([]SearchResult, 0, len(hits))
	for _, h := range hits {
		path, ok := paths[h.ID]
		if !ok {
			continue // stale index entry, row is gone
		}
		results = append(results, SearchResult{MediaID: h.ID, Path: path, Similarity: h.Similarity})
		if len(results) >= limit {
			break
		}
	}
	return results, nil
}

// Delete removes a media item from both sides of the store.
func (ds *DualStore) Delete(ctx context.Context, mediaID int64) error {
	removedFaces, err := ds.Meta.DeleteMedia(ctx, mediaID)
	if err != nil {
		return err
	}

	ds.Media.Remove(mediaID)
	for _, faceID := range removedFaces {
		ds.Faces.Remove(faceID)
	}

	return ds.Persist()
}

// Persist saves both vector index files.
func (ds *DualStore) Persist() error {
	if err := ds.Media.Save(ds.mediaIndexPath); err != nil {
		return fmt.Errorf("failed to save media index: %w", err)
	}
	if err := ds.Faces.Save(ds.faceIndexPath); err != nil {
		return fmt.Errorf("failed to save face index: %w", err)
	}
	return nil
}

// Rebuild reconstructs both vector indices from the relationally
// persisted embeddings and saves them. This is the repair path for lost
// or corrupted index files.
func (ds *DualStore) Rebuild(ctx context.Context) error {
	mediaVecs, err := ds.Meta.MediaEmbeddings(ctx)
	if err != nil {
		return fmt.Errorf("failed to load media embeddings: %w", err)
	}
	faceVecs, err := ds.Meta.FaceEmbeddings(ctx)
	if err != nil {
		return fmt.Errorf("failed to load face embeddings: %w", err)
	}

	if err := ds.Media.ReplaceAll(mediaVecs); err != nil {
		return fmt.Errorf("failed to rebuild media index: %w", err)
	}
	if err := ds.Faces.ReplaceAll(faceVecs); err != nil {
		return fmt.Errorf("failed to rebuild face index: %w", err)
	}

	return ds.Persist()
}

// Stats combines relational counts with vector index sizes.
func (ds *DualStore) Stats(ctx context.Context) (*Stats, error) {
	stats, err := ds.Meta.Stats(ctx)
	if err != nil {
		return nil, err
	}
	stats.MediaVectors = ds.Media.Count()
	stats.FaceVectors = ds.Faces.Count()
	return stats, nil
}

// Close releases the relational backend after saving the indices.
func (ds *DualStore) Close() error {
	if err := ds.Persist(); err != nil {
		log.Printf("failed to persist vector indices on close: %v", err)
	}
	return ds.Meta.Close()
}
