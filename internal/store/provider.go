package store

import "context"

// MediaStore is the relational side of the dual store. Implementations:
// sqlite (default, single local file), postgres (pgvector embedding
// mirror), mock (tests).
type MediaStore interface {
	// ApplyCommits applies a batch of ingestion commits in one transaction.
	// Either every commit lands or none does; results are returned in
	// commit order with the assigned row ids.
	ApplyCommits(ctx context.Context, commits []Commit) ([]CommitResult, error)

	GetMedia(ctx context.Context, id int64) (*MediaRecord, error)
	GetMediaByPath(ctx context.Context, path string) (*MediaRecord, error)
	ListMedia(ctx context.Context, filter MediaFilter) ([]MediaRecord, error)

	// DeleteMedia removes a media row and its face observations,
	// returning the ids of the removed faces so the vector side can
	// tombstone them.
	DeleteMedia(ctx context.Context, id int64) ([]int64, error)

	// Fingerprints returns path -> fingerprint for every known item.
	// The ingestion pipeline uses it for the skip rule.
	Fingerprints(ctx context.Context) (map[string]string, error)

	// ResolvePaths maps row ids to paths, omitting ids with no live row.
	// Vector search results are joined through this so tombstoned or
	// stale index entries never reach callers.
	ResolvePaths(ctx context.Context, ids []int64) (map[int64]string, error)

	ListFaces(ctx context.Context, mediaID int64) ([]FaceObservation, error)
	AllFaces(ctx context.Context) ([]FaceObservation, error)
	FacesByCluster(ctx context.Context, cluster int) ([]FaceObservation, error)

	// UpdateClusters overwrites cluster assignments, keyed by face id.
	// Faces absent from the map are reset to ClusterUnassigned.
	UpdateClusters(ctx context.Context, assignments map[int64]int) error

	// MediaEmbeddings and FaceEmbeddings return the relationally persisted
	// vectors, keyed by row id. They are the source of truth for index rebuilds.
	MediaEmbeddings(ctx context.Context) (map[int64][]float32, error)
	FaceEmbeddings(ctx context.Context) (map[int64][]float32, error)

	Stats(ctx context.Context) (*Stats, error)

	Close() error
}
