package store

import (
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/coder/hnsw"
)

// VectorIndex wraps an HNSW graph keyed by relational row id. The entries
// map is the authoritative id -> vector mapping; the graph is a derived
// search structure. Adding an existing id replaces its vector and removing
// an id tombstones it; both mark the graph dirty, and the graph is rebuilt
// from the map before the next graph-backed search or save. This keeps
// duplicate or deleted ids from ever surfacing in results.
type VectorIndex struct {
	entries map[int64][]float32
	graph   *hnsw.Graph[int64]
	dirty   bool
	dim     int
	mu      sync.RWMutex
}

// VectorResult is one search hit with its exact cosine similarity.
type VectorResult struct {
	ID         int64
	Similarity float64
}

// NewVectorIndex creates an empty index for vectors of the given dimensionality.
func NewVectorIndex(dim int) *VectorIndex {
	return &VectorIndex{
		entries: make(map[int64][]float32),
		dim:     dim,
	}
}

func (v *VectorIndex) Dim() int {
	return v.dim
}

// Add inserts or replaces the vector stored under id.
func (v *VectorIndex) Add(id int64, vec []float32) error {
	if len(vec) != v.dim {
		return fmt.Errorf("vector dimension mismatch: got %d, want %d", len(vec), v.dim)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	stored := make([]float32, len(vec))
	copy(stored, vec)
	v.entries[id] = stored
	v.dirty = true
	return nil
}

// Remove tombstones the vector stored under id. Removing an unknown id is a no-op.
func (v *VectorIndex) Remove(id int64) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if _, ok := v.entries[id]; !ok {
		return
	}
	delete(v.entries, id)
	v.dirty = true
}

// Has reports whether id is currently indexed.
func (v *VectorIndex) Has(id int64) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	_, ok := v.entries[id]
	return ok
}

// Get returns the stored vector for id.
func (v *VectorIndex) Get(id int64) ([]float32, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	vec, ok := v.entries[id]
	return vec, ok
}

// Count returns the number of indexed vectors.
func (v *VectorIndex) Count() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.entries)
}

// rebuild reconstructs the HNSW graph from the entries map.
// Callers must hold the write lock.
func (v *VectorIndex) rebuild() {
	if len(v.entries) == 0 {
		v.graph = nil
		v.dirty = false
		return
	}

	g := hnsw.NewGraph[int64]()
	g.M = HNSWMaxNeighbors
	g.Ml = 1.0 / float64(HNSWMaxNeighbors) // Standard HNSW formula
	g.EfSearch = HNSWEfSearch
	g.Distance = hnsw.CosineDistance

	for id, vec := range v.entries {
		g.Add(hnsw.MakeNode(id, vec))
	}

	v.graph = g
	v.dirty = false
}

// Search finds up to k nearest neighbors of the query, ordered by exact
// cosine similarity descending. Approximate graph traversal picks the
// candidates; similarities are recomputed exactly from the entries map.
func (v *VectorIndex) Search(query []float32, k int) ([]VectorResult, error) {
	if len(query) != v.dim {
		return nil, fmt.Errorf("query dimension mismatch: got %d, want %d", len(query), v.dim)
	}
	if k <= 0 {
		return nil, nil
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if len(v.entries) == 0 {
		return nil, nil
	}
	if v.dirty || v.graph == nil {
		v.rebuild()
	}

	// Overfetch so filtering by the caller still returns k usable hits
	searchK := k * HNSWSearchMultiplier
	if searchK < HNSWEfSearch {
		searchK = HNSWEfSearch
	}
	neighbors := v.graph.Search(query, searchK)

	results := make([]VectorResult, 0, len(neighbors))
	for _, n := range neighbors {
		vec, ok := v.entries[n.Key]
		if !ok {
			continue
		}
		results = append(results, VectorResult{
			ID:         n.Key,
			Similarity: CosineSimilarity(query, vec),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// RangeSearch returns every indexed vector with cosine similarity of at
// least minSimilarity to the query, ordered by similarity descending.
// It scans the entries map exactly, so results are exhaustive and
// reproducible regardless of graph state.
func (v *VectorIndex) RangeSearch(query []float32, minSimilarity float64) ([]VectorResult, error) {
	if len(query) != v.dim {
		return nil, fmt.Errorf("query dimension mismatch: got %d, want %d", len(query), v.dim)
	}

	v.mu.RLock()
	defer v.mu.RUnlock()

	var results []VectorResult
	for id, vec := range v.entries {
		sim := CosineSimilarity(query, vec)
		if sim >= minSimilarity {
			results = append(results, VectorResult{ID: id, Similarity: sim})
		}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		return results[i].ID < results[j].ID
	})
	return results, nil
}

// ReplaceAll swaps the full contents of the index. Used by rebuilds.
func (v *VectorIndex) ReplaceAll(vectors map[int64][]float32) error {
	for id, vec := range vectors {
		if len(vec) != v.dim {
			return fmt.Errorf("vector dimension mismatch for id %d: got %d, want %d", id, len(vec), v.dim)
		}
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	v.entries = make(map[int64][]float32, len(vectors))
	for id, vec := range vectors {
		stored := make([]float32, len(vec))
		copy(stored, vec)
		v.entries[id] = stored
	}
	v.dirty = true
	return nil
}

// vectorIndexMeta stores sidecar metadata for freshness checking.
type vectorIndexMeta struct {
	Count int `json:"count"`
	Dim   int `json:"dim"`
}

// Save persists the index: the HNSW graph at basePath, the id -> vector
// map at basePath.entries (gob), and a JSON meta sidecar at basePath.meta.
func (v *VectorIndex) Save(basePath string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if len(v.entries) == 0 {
		// Remove existing files if index is empty
		os.Remove(basePath)
		os.Remove(basePath + ".entries")
		os.Remove(basePath + ".meta")
		return nil
	}

	if v.dirty || v.graph == nil {
		v.rebuild()
	}

	f, err := os.Create(basePath)
	if err != nil {
		return fmt.Errorf("failed to create vector index file: %w", err)
	}
	if err := v.graph.Export(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to export vector index graph: %w", err)
	}
	f.Close()

	entriesFile, err := os.Create(basePath + ".entries")
	if err != nil {
		return fmt.Errorf("failed to create vector index entries file: %w", err)
	}
	defer entriesFile.Close()

	if err := gob.NewEncoder(entriesFile).Encode(v.entries); err != nil {
		return fmt.Errorf("failed to encode vector index entries: %w", err)
	}

	meta, err := json.Marshal(vectorIndexMeta{Count: len(v.entries), Dim: v.dim})
	if err != nil {
		return fmt.Errorf("failed to marshal vector index metadata: %w", err)
	}
	if err := os.WriteFile(basePath+".meta", meta, 0644); err != nil {
		return fmt.Errorf("failed to write vector index metadata: %w", err)
	}

	return nil
}

// Load restores the index from files written by Save. The entries sidecar
// is authoritative; the graph file only skips the initial rebuild when its
// node count still matches.
func (v *VectorIndex) Load(basePath string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	entriesFile, err := os.Open(basePath + ".entries")
	if err != nil {
		return fmt.Errorf("failed to open vector index entries file: %w", err)
	}
	defer entriesFile.Close()

	entries := make(map[int64][]float32)
	if err := gob.NewDecoder(entriesFile).Decode(&entries); err != nil {
		return fmt.Errorf("failed to decode vector index entries: %w", err)
	}
	v.entries = entries

	saved, err := hnsw.LoadSavedGraph[int64](basePath)
	if err != nil {
		v.graph = nil
		v.dirty = true
		return nil
	}
	v.graph = saved.Graph
	v.dirty = v.graph.Len() != len(v.entries)

	return nil
}
