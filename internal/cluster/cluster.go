// Package cluster groups face observations by identity with a
// density-based pass over the face vector index. Labels are local to a
// single run; rerunning may renumber every person.
package cluster

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/media-curator/media-curator/internal/config"
	"github.com/media-curator/media-curator/internal/metrics"
	"github.com/media-curator/media-curator/internal/store"
)

// Result summarizes one clustering run.
type Result struct {
	Clusters int `json:"clusters"` // real clusters, excluding noise
	Assigned int `json:"assigned"` // faces with a cluster label
	Noise    int `json:"noise"`    // faces left unassigned
}

// Clusterer runs DBSCAN over the stored face embeddings and writes the
// labels back to the relational side.
type Clusterer struct {
	store *store.DualStore
	cfg   config.ClusterConfig
}

func NewClusterer(ds *store.DualStore, cfg config.ClusterConfig) *Clusterer {
	return &Clusterer{store: ds, cfg: cfg}
}

// Run clusters every stored face embedding and persists the labels.
// Eps is a Euclidean radius over unit vectors, so it doubles as a
// similarity knob: d^2 = 2(1 - cos), the default 0.65 admits pairs
// above roughly 0.79 cosine similarity. An empty corpus yields zero
// clusters and no error.
func (c *Clusterer) Run(ctx context.Context) (*Result, error) {
	embeddings, err := c.store.Meta.FaceEmbeddings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load face embeddings: %w", err)
	}

	metrics.ClusterRuns.Inc()

	ids := make([]int64, 0, len(embeddings))
	for id := range embeddings {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	points := make([][]float32, len(ids))
	for i, id := range ids {
		points[i] = store.NormalizeVector(embeddings[id])
	}

	labels := dbscan(points, c.cfg.Eps, c.cfg.MinPoints)

	result := &Result{}
	assignments := make(map[int64]int)
	for i, label := range labels {
		if label == noise {
			result.Noise++
			continue
		}
		assignments[ids[i]] = label
		result.Assigned++
		if label+1 > result.Clusters {
			result.Clusters = label + 1
		}
	}

	if err := c.store.Meta.UpdateClusters(ctx, assignments); err != nil {
		return nil, fmt.Errorf("failed to persist cluster labels: %w", err)
	}

	metrics.ClusteredFaces.Set(float64(result.Assigned))
	return result, nil
}

const (
	unvisited = -2
	noise     = -1
)

// dbscan labels each point with a cluster index, or noise for points
// outside every dense region. The point itself counts toward its
// neighborhood, per the textbook formulation.
func dbscan(points [][]float32, eps float64, minPoints int) []int {
	labels := make([]int, len(points))
	for i := range labels {
		labels[i] = unvisited
	}

	cluster := 0
	for i := range points {
		if labels[i] != unvisited {
			continue
		}

		neighbors := regionQuery(points, i, eps)
		if len(neighbors) < minPoints {
			labels[i] = noise
			continue
		}

		labels[i] = cluster
		queue := append([]int(nil), neighbors...)
		for len(queue) > 0 {
			j := queue[0]
			queue = queue[1:]

			if labels[j] == noise {
				labels[j] = cluster // border point, reachable but not core
			}
			if labels[j] != unvisited {
				continue
			}
			labels[j] = cluster

			expansion := regionQuery(points, j, eps)
			if len(expansion) >= minPoints {
				queue = append(queue, expansion...)
			}
		}
		cluster++
	}

	return labels
}

func regionQuery(points [][]float32, i int, eps float64) []int {
	var neighbors []int
	for j := range points {
		if euclidean(points[i], points[j]) <= eps {
			neighbors = append(neighbors, j)
		}
	}
	return neighbors
}

// euclidean computes distance between unit vectors through the dot
// product: d^2 = 2(1 - cos).
func euclidean(a, b []float32) float64 {
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	d := 2 * (1 - dot)
	if d < 0 {
		d = 0
	}
	return math.Sqrt(d)
}
