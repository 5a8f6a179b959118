package cluster

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/media-curator/media-curator/internal/config"
	"github.com/media-curator/media-curator/internal/store"
	"github.com/media-curator/media-curator/internal/store/mock"
)

func testClusterConfig() config.ClusterConfig {
	return config.ClusterConfig{Eps: 0.65, MinPoints: 4}
}

func newTestClusterer(t *testing.T) (*Clusterer, *mock.MockStore) {
	t.Helper()
	dir := t.TempDir()
	meta := mock.NewMockStore()
	ds := store.Open(meta, 4, 2,
		filepath.Join(dir, "media.hnsw"), filepath.Join(dir, "faces.hnsw"))
	return NewClusterer(ds, testClusterConfig()), meta
}

// around returns a unit vector close to the given base direction.
func around(base []float32, jitter float32) []float32 {
	v := []float32{base[0] + jitter, base[1] - jitter}
	norm := float32(math.Sqrt(float64(v[0]*v[0] + v[1]*v[1])))
	return []float32{v[0] / norm, v[1] / norm}
}

func addFaces(meta *mock.MockStore, base []float32, count int) {
	for i := 0; i < count; i++ {
		meta.AddFace(store.FaceObservation{
			MediaID:   1,
			FaceIndex: i,
			Cluster:   store.ClusterUnassigned,
			Embedding: around(base, float32(i)*0.01),
		})
	}
}

func TestRun_TwoGroups(t *testing.T) {
	clusterer, meta := newTestClusterer(t)

	addFaces(meta, []float32{1, 0}, 5)
	addFaces(meta, []float32{0, 1}, 5)

	result, err := clusterer.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.Clusters != 2 {
		t.Errorf("expected 2 clusters, got %d", result.Clusters)
	}
	if result.Noise != 0 {
		t.Errorf("expected no noise, got %d", result.Noise)
	}
	if result.Assigned != 10 {
		t.Errorf("expected 10 assigned faces, got %d", result.Assigned)
	}

	faces, err := meta.AllFaces(context.Background())
	if err != nil {
		t.Fatalf("AllFaces failed: %v", err)
	}
	byCluster := make(map[int]int)
	for _, f := range faces {
		if f.Cluster == store.ClusterUnassigned {
			t.Errorf("face %d left unassigned", f.ID)
			continue
		}
		byCluster[f.Cluster]++
	}
	if len(byCluster) != 2 {
		t.Fatalf("expected 2 distinct labels, got %d", len(byCluster))
	}
	for label, n := range byCluster {
		if n != 5 {
			t.Errorf("expected 5 faces in cluster %d, got %d", label, n)
		}
	}
}

func TestRun_OutlierIsNoise(t *testing.T) {
	clusterer, meta := newTestClusterer(t)

	addFaces(meta, []float32{1, 0}, 5)
	// equidistant from both axes, outside eps of either group
	meta.AddFace(store.FaceObservation{
		MediaID:   2,
		Cluster:   store.ClusterUnassigned,
		Embedding: []float32{0.7071, 0.7071},
	})

	result, err := clusterer.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.Clusters != 1 {
		t.Errorf("expected 1 cluster, got %d", result.Clusters)
	}
	if result.Noise != 1 {
		t.Errorf("expected 1 noise point, got %d", result.Noise)
	}
}

func TestRun_TooSparseForAnyCluster(t *testing.T) {
	clusterer, meta := newTestClusterer(t)

	// three faces cannot satisfy minPoints=4
	addFaces(meta, []float32{1, 0}, 3)

	result, err := clusterer.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.Clusters != 0 {
		t.Errorf("expected 0 clusters, got %d", result.Clusters)
	}
	if result.Noise != 3 {
		t.Errorf("expected 3 noise points, got %d", result.Noise)
	}
}

func TestRun_EmptyCorpus(t *testing.T) {
	clusterer, _ := newTestClusterer(t)

	result, err := clusterer.Run(context.Background())
	if err != nil {
		t.Fatalf("Run on empty corpus must not fail: %v", err)
	}
	if result.Clusters != 0 || result.Assigned != 0 || result.Noise != 0 {
		t.Errorf("expected empty result, got %+v", result)
	}
}

func TestRun_RelabelsPreviousAssignments(t *testing.T) {
	clusterer, meta := newTestClusterer(t)

	// stale label from an earlier run, in a group too sparse to survive
	meta.AddFace(store.FaceObservation{
		MediaID:   1,
		Cluster:   7,
		Embedding: []float32{1, 0},
	})

	if _, err := clusterer.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	faces, err := meta.AllFaces(context.Background())
	if err != nil {
		t.Fatalf("AllFaces failed: %v", err)
	}
	if faces[0].Cluster != store.ClusterUnassigned {
		t.Errorf("expected stale label to be reset, got %d", faces[0].Cluster)
	}
}

func TestDBSCAN_ReachablePointJoinsCluster(t *testing.T) {
	// four tight core points plus one looser point still within eps
	points := [][]float32{
		around([]float32{1, 0}, 0),
		around([]float32{1, 0}, 0.01),
		around([]float32{1, 0}, 0.02),
		around([]float32{1, 0}, 0.03),
		around([]float32{1, 0}, 0.5), // cos ~0.9, inside eps of the core
	}

	labels := dbscan(points, 0.65, 4)
	for i, label := range labels {
		if label != 0 {
			t.Errorf("point %d: expected cluster 0, got %d", i, label)
		}
	}
}
