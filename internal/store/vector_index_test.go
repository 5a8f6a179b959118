package store

import (
	"path/filepath"
	"testing"
)

func unitVec(dim, hot int) []float32 {
	v := make([]float32, dim)
	v[hot] = 1
	return v
}

func TestVectorIndex_AddAndSearch(t *testing.T) {
	idx := NewVectorIndex(4)

	for i := range 4 {
		if err := idx.Add(int64(i+1), unitVec(4, i)); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
	}

	results, err := idx.Search(unitVec(4, 0), 2)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].ID != 1 {
		t.Errorf("expected nearest id 1, got %d", results[0].ID)
	}
	if results[0].Similarity < 0.999 {
		t.Errorf("expected self-similarity ~1.0, got %f", results[0].Similarity)
	}
}

func TestVectorIndex_DimensionMismatch(t *testing.T) {
	idx := NewVectorIndex(4)

	if err := idx.Add(1, unitVec(3, 0)); err == nil {
		t.Error("expected error adding 3-dim vector to 4-dim index")
	}

	if _, err := idx.Search(unitVec(5, 0), 1); err == nil {
		t.Error("expected error searching with 5-dim query")
	}
}

func TestVectorIndex_ReplaceDoesNotDuplicate(t *testing.T) {
	idx := NewVectorIndex(4)

	if err := idx.Add(1, unitVec(4, 0)); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	// Re-adding the same id replaces the vector instead of appending
	if err := idx.Add(1, unitVec(4, 1)); err != nil {
		t.Fatalf("re-Add failed: %v", err)
	}

	if idx.Count() != 1 {
		t.Fatalf("expected 1 entry after replace, got %d", idx.Count())
	}

	results, err := idx.Search(unitVec(4, 1), 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Similarity < 0.999 {
		t.Errorf("expected replaced vector to match new value, similarity %f", results[0].Similarity)
	}
}

func TestVectorIndex_Get(t *testing.T) {
	idx := NewVectorIndex(4)
	if err := idx.Add(1, unitVec(4, 2)); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	vec, ok := idx.Get(1)
	if !ok {
		t.Fatal("expected Get to find indexed id")
	}
	if vec[2] != 1 {
		t.Errorf("unexpected vector %v", vec)
	}

	if _, ok := idx.Get(99); ok {
		t.Error("expected Get to miss unknown id")
	}
}

func TestVectorIndex_RemoveTombstones(t *testing.T) {
	idx := NewVectorIndex(4)

	idx.Add(1, unitVec(4, 0))
	idx.Add(2, unitVec(4, 1))
	idx.Remove(1)

	if idx.Has(1) {
		t.Error("expected id 1 to be removed")
	}

	results, err := idx.Search(unitVec(4, 0), 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	for _, r := range results {
		if r.ID == 1 {
			t.Error("removed id surfaced in search results")
		}
	}

	// Removing an unknown id is a no-op
	idx.Remove(99)
	if idx.Count() != 1 {
		t.Errorf("expected 1 entry, got %d", idx.Count())
	}
}

func TestVectorIndex_RangeSearch(t *testing.T) {
	idx := NewVectorIndex(2)

	idx.Add(1, []float32{1, 0})
	idx.Add(2, []float32{0.9, 0.1})
	idx.Add(3, []float32{0, 1})

	results, err := idx.RangeSearch([]float32{1, 0}, 0.95)
	if err != nil {
		t.Fatalf("RangeSearch failed: %v", err)
	}

	if len(results) != 2 {
		t.Fatalf("expected 2 results above 0.95, got %d", len(results))
	}
	if results[0].ID != 1 {
		t.Errorf("expected id 1 first, got %d", results[0].ID)
	}
	if results[0].Similarity < results[1].Similarity {
		t.Error("expected results ordered by similarity descending")
	}
}

func TestVectorIndex_RangeSearchEmpty(t *testing.T) {
	idx := NewVectorIndex(2)

	results, err := idx.RangeSearch([]float32{1, 0}, 0.5)
	if err != nil {
		t.Fatalf("RangeSearch failed: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results from empty index, got %d", len(results))
	}
}

func TestVectorIndex_SaveLoad(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "test.hnsw")

	idx := NewVectorIndex(4)
	for i := range 8 {
		idx.Add(int64(i+1), unitVec(4, i%4))
	}
	if err := idx.Save(base); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded := NewVectorIndex(4)
	if err := loaded.Load(base); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.Count() != 8 {
		t.Fatalf("expected 8 entries after load, got %d", loaded.Count())
	}

	results, err := loaded.Search(unitVec(4, 2), 1)
	if err != nil {
		t.Fatalf("Search on loaded index failed: %v", err)
	}
	if len(results) != 1 || results[0].Similarity < 0.999 {
		t.Errorf("loaded index returned unexpected result: %+v", results)
	}
}

func TestVectorIndex_SaveEmptyRemovesFiles(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "test.hnsw")

	idx := NewVectorIndex(4)
	idx.Add(1, unitVec(4, 0))
	if err := idx.Save(base); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	idx.Remove(1)
	if err := idx.Save(base); err != nil {
		t.Fatalf("Save of empty index failed: %v", err)
	}

	loaded := NewVectorIndex(4)
	if err := loaded.Load(base); err == nil {
		t.Error("expected load of removed index files to fail")
	}
}

func TestVectorIndex_ReplaceAll(t *testing.T) {
	idx := NewVectorIndex(2)
	idx.Add(1, []float32{1, 0})

	err := idx.ReplaceAll(map[int64][]float32{
		5: {0, 1},
		6: {1, 0},
	})
	if err != nil {
		t.Fatalf("ReplaceAll failed: %v", err)
	}

	if idx.Count() != 2 {
		t.Fatalf("expected 2 entries, got %d", idx.Count())
	}
	if idx.Has(1) {
		t.Error("expected old entry to be gone after ReplaceAll")
	}
}
