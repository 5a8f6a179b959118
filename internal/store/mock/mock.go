// Package mock provides an in-memory MediaStore implementation for testing.
package mock

import (
	"context"
	"sync"

	"github.com/media-curator/media-curator/internal/store"
)

// MockStore is an in-memory implementation of store.MediaStore.
type MockStore struct {
	mu         sync.RWMutex
	media      map[int64]*store.MediaRecord
	faces      map[int64]*store.FaceObservation
	mediaVecs  map[int64][]float32
	nextMedia  int64
	nextFace   int64

	// Error injection
	ApplyCommitsError   error
	GetError            error
	ListError           error
	DeleteError         error
	FingerprintsError   error
	ResolvePathsError   error
	FacesError          error
	UpdateClustersError error
	EmbeddingsError     error
	StatsError          error
}

// NewMockStore creates an empty mock store.
func NewMockStore() *MockStore {
	return &MockStore{
		media:     make(map[int64]*store.MediaRecord),
		faces:     make(map[int64]*store.FaceObservation),
		mediaVecs: make(map[int64][]float32),
		nextMedia: 1,
		nextFace:  1,
	}
}

// AddMedia seeds the store with a media record, assigning an id if unset.
func (m *MockStore) AddMedia(rec store.MediaRecord) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec.ID == 0 {
		rec.ID = m.nextMedia
		m.nextMedia++
	} else if rec.ID >= m.nextMedia {
		m.nextMedia = rec.ID + 1
	}
	m.media[rec.ID] = &rec
	return rec.ID
}

// AddFace seeds the store with a face observation, assigning an id if unset.
func (m *MockStore) AddFace(f store.FaceObservation) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if f.ID == 0 {
		f.ID = m.nextFace
		m.nextFace++
	} else if f.ID >= m.nextFace {
		m.nextFace = f.ID + 1
	}
	m.faces[f.ID] = &f
	return f.ID
}

// SetMediaEmbedding seeds the relationally persisted embedding for a
// media id, as a completed ingestion would.
func (m *MockStore) SetMediaEmbedding(id int64, vec []float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mediaVecs[id] = vec
}

func (m *MockStore) ApplyCommits(ctx context.Context, commits []store.Commit) ([]store.CommitResult, error) {
	if m.ApplyCommitsError != nil {
		return nil, m.ApplyCommitsError
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	results := make([]store.CommitResult, 0, len(commits))
	for i := range commits {
		c := &commits[i]
		rec := c.Record

		var mediaID int64
		for id, existing := range m.media {
			if existing.Path == rec.Path {
				mediaID = id
				break
			}
		}
		if mediaID == 0 {
			mediaID = m.nextMedia
			m.nextMedia++
		}
		rec.ID = mediaID
		m.media[mediaID] = &rec

		if c.Embedding != nil {
			m.mediaVecs[mediaID] = c.Embedding
		} else {
			delete(m.mediaVecs, mediaID)
		}

		var removed []int64
		for id, f := range m.faces {
			if f.MediaID == mediaID {
				removed = append(removed, id)
				delete(m.faces, id)
			}
		}

		faceIDs := make([]int64, 0, len(c.Faces))
		for j := range c.Faces {
			f := c.Faces[j]
			f.ID = m.nextFace
			m.nextFace++
			f.MediaID = mediaID
			f.Cluster = store.ClusterUnassigned
			m.faces[f.ID] = &f
			faceIDs = append(faceIDs, f.ID)
		}

		results = append(results, store.CommitResult{
			MediaID:        mediaID,
			Path:           rec.Path,
			FaceIDs:        faceIDs,
			RemovedFaceIDs: removed,
		})
	}
	return results, nil
}

func (m *MockStore) GetMedia(ctx context.Context, id int64) (*store.MediaRecord, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.media[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := *rec
	return &out, nil
}

func (m *MockStore) GetMediaByPath(ctx context.Context, path string) (*store.MediaRecord, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, rec := range m.media {
		if rec.Path == path {
			out := *rec
			return &out, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *MockStore) ListMedia(ctx context.Context, filter store.MediaFilter) ([]store.MediaRecord, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var records []store.MediaRecord
	for id := int64(1); id < m.nextMedia; id++ {
		if rec, ok := m.media[id]; ok {
			records = append(records, *rec)
		}
	}
	return filter.Apply(records), nil
}

func (m *MockStore) DeleteMedia(ctx context.Context, id int64) ([]int64, error) {
	if m.DeleteError != nil {
		return nil, m.DeleteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.media[id]; !ok {
		return nil, store.ErrNotFound
	}
	delete(m.media, id)
	delete(m.mediaVecs, id)

	var removed []int64
	for faceID, f := range m.faces {
		if f.MediaID == id {
			removed = append(removed, faceID)
			delete(m.faces, faceID)
		}
	}
	return removed, nil
}

func (m *MockStore) Fingerprints(ctx context.Context) (map[string]string, error) {
	if m.FingerprintsError != nil {
		return nil, m.FingerprintsError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]string, len(m.media))
	for _, rec := range m.media {
		out[rec.Path] = rec.Fingerprint
	}
	return out, nil
}

func (m *MockStore) ResolvePaths(ctx context.Context, ids []int64) (map[int64]string, error) {
	if m.ResolvePathsError != nil {
		return nil, m.ResolvePathsError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[int64]string)
	for _, id := range ids {
		if rec, ok := m.media[id]; ok {
			out[id] = rec.Path
		}
	}
	return out, nil
}

func (m *MockStore) ListFaces(ctx context.Context, mediaID int64) ([]store.FaceObservation, error) {
	if m.FacesError != nil {
		return nil, m.FacesError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var faces []store.FaceObservation
	for id := int64(1); id < m.nextFace; id++ {
		if f, ok := m.faces[id]; ok && f.MediaID == mediaID {
			faces = append(faces, *f)
		}
	}
	return faces, nil
}

func (m *MockStore) AllFaces(ctx context.Context) ([]store.FaceObservation, error) {
	if m.FacesError != nil {
		return nil, m.FacesError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var faces []store.FaceObservation
	for id := int64(1); id < m.nextFace; id++ {
		if f, ok := m.faces[id]; ok {
			faces = append(faces, *f)
		}
	}
	return faces, nil
}

func (m *MockStore) FacesByCluster(ctx context.Context, cluster int) ([]store.FaceObservation, error) {
	if m.FacesError != nil {
		return nil, m.FacesError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var faces []store.FaceObservation
	for id := int64(1); id < m.nextFace; id++ {
		if f, ok := m.faces[id]; ok && f.Cluster == cluster {
			faces = append(faces, *f)
		}
	}
	return faces, nil
}

func (m *MockStore) UpdateClusters(ctx context.Context, assignments map[int64]int) error {
	if m.UpdateClustersError != nil {
		return m.UpdateClustersError
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, f := range m.faces {
		if cluster, ok := assignments[f.ID]; ok {
			f.Cluster = cluster
		} else {
			f.Cluster = store.ClusterUnassigned
		}
	}
	return nil
}

func (m *MockStore) MediaEmbeddings(ctx context.Context) (map[int64][]float32, error) {
	if m.EmbeddingsError != nil {
		return nil, m.EmbeddingsError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[int64][]float32, len(m.mediaVecs))
	for id, vec := range m.mediaVecs {
		out[id] = vec
	}
	return out, nil
}

func (m *MockStore) FaceEmbeddings(ctx context.Context) (map[int64][]float32, error) {
	if m.EmbeddingsError != nil {
		return nil, m.EmbeddingsError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[int64][]float32)
	for id, f := range m.faces {
		if f.Embedding != nil {
			out[id] = f.Embedding
		}
	}
	return out, nil
}

func (m *MockStore) Stats(ctx context.Context) (*store.Stats, error) {
	if m.StatsError != nil {
		return nil, m.StatsError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := &store.Stats{
		MediaCount: len(m.media),
		FaceCount:  len(m.faces),
	}
	clusters := make(map[int]struct{})
	for _, rec := range m.media {
		if rec.Processed {
			stats.ProcessedCount++
		}
		if rec.ProcessError != "" {
			stats.ErrorCount++
		}
	}
	for _, f := range m.faces {
		if f.Cluster >= 0 {
			clusters[f.Cluster] = struct{}{}
		}
	}
	stats.ClusterCount = len(clusters)
	return stats, nil
}

func (m *MockStore) Close() error {
	return nil
}
