package dedupe

import (
	"context"
	"fmt"
	"sort"

	"github.com/media-curator/media-curator/internal/config"
	"github.com/media-curator/media-curator/internal/metrics"
	"github.com/media-curator/media-curator/internal/store"
)

// Recommended keep-sides for a duplicate pair.
const (
	KeepA      = "keep_a"
	KeepB      = "keep_b"
	KeepReview = "review"
)

// Pair is one duplicate candidate that survived all admission filters.
// Pairs are transient; nothing is persisted.
type Pair struct {
	A          store.MediaRecord `json:"a"`
	B          store.MediaRecord `json:"b"`
	Similarity float64           `json:"similarity"`
	Keep       string            `json:"keep"`
	Reason     string            `json:"reason"`
}

// Detector finds near-duplicate media through the media vector index.
type Detector struct {
	store *store.DualStore
	cfg   config.DedupeConfig
}

func NewDetector(ds *store.DualStore, cfg config.DedupeConfig) *Detector {
	return &Detector{store: ds, cfg: cfg}
}

type hashResult struct {
	hash uint64
	ok   bool
}

// FindDuplicates range-searches every indexed item against the media
// vector index and applies the admission filters. Surviving pairs are
// returned sorted by similarity, best candidates first.
func (d *Detector) FindDuplicates(ctx context.Context) ([]Pair, error) {
	records, err := d.store.Meta.ListMedia(ctx, store.MediaFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to list media: %w", err)
	}

	byID := make(map[int64]store.MediaRecord, len(records))
	for _, rec := range records {
		if rec.Processed {
			byID[rec.ID] = rec
		}
	}

	// per-run cache, a record is hashed at most once
	hashes := make(map[int64]hashResult)
	seen := make(map[[2]int64]bool)
	var pairs []Pair

	for _, rec := range records {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !rec.Processed {
			continue
		}

		query, ok := d.store.Media.Get(rec.ID)
		if !ok {
			continue
		}

		// range search at the looser image threshold; video pairs are
		// re-checked against the stricter one below
		neighbors, err := d.store.NeighborsAbove(ctx, query, d.cfg.ImageThreshold)
		if err != nil {
			return nil, err
		}

		for _, n := range neighbors {
			// each unordered pair is considered from the lower id
			if rec.ID >= n.MediaID {
				continue
			}
			// above the floor it is the same file, or the query itself
			if n.Similarity > d.cfg.IdenticalFloor {
				continue
			}

			key := [2]int64{rec.ID, n.MediaID}
			if seen[key] {
				continue
			}
			seen[key] = true

			other, ok := byID[n.MediaID]
			if !ok {
				continue
			}

			if IsSequentialName(rec.Path, other.Path) {
				continue
			}

			if rec.Type == store.MediaTypeVideo && other.Type == store.MediaTypeVideo {
				diff := rec.Duration - other.Duration
				if diff < 0 {
					diff = -diff
				}
				if diff > d.cfg.DurationTolerance {
					continue
				}
				if n.Similarity < d.cfg.VideoThreshold {
					continue
				}
			} else if rec.Type != other.Type {
				continue
			}

			if rec.Type == store.MediaTypeImage && other.Type == store.MediaTypeImage {
				if !d.hashesAgree(rec, other, hashes) {
					continue
				}
			}

			keep, reason := recommend(rec, other)
			pairs = append(pairs, Pair{
				A:          rec,
				B:          other,
				Similarity: n.Similarity,
				Keep:       keep,
				Reason:     reason,
			})
		}
	}

	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].Similarity > pairs[j].Similarity
	})

	metrics.DuplicatePairs.Set(float64(len(pairs)))
	return pairs, nil
}

// hashesAgree compares the perceptual hashes of two images. A failed
// hash keeps the pair: the embedding evidence stands unrefuted.
func (d *Detector) hashesAgree(a, b store.MediaRecord, cache map[int64]hashResult) bool {
	ha := d.hashOf(a, cache)
	hb := d.hashOf(b, cache)
	if !ha.ok || !hb.ok {
		return true
	}
	return HammingDistance(ha.hash, hb.hash) <= d.cfg.HashThreshold
}

func (d *Detector) hashOf(rec store.MediaRecord, cache map[int64]hashResult) hashResult {
	if r, ok := cache[rec.ID]; ok {
		return r
	}
	hash, err := DHash(rec.Path)
	r := hashResult{hash: hash, ok: err == nil}
	cache[rec.ID] = r
	return r
}

// recommend picks the side to keep: larger pixel area, then larger
// file, then the older file as the likely original. Area and size need
// a 5% lead so near-ties fall through instead of flapping.
func recommend(a, b store.MediaRecord) (string, string) {
	areaA := float64(a.Width) * float64(a.Height)
	areaB := float64(b.Width) * float64(b.Height)
	if areaA > areaB*1.05 {
		return KeepA, fmt.Sprintf("resolution %dx%d beats %dx%d", a.Width, a.Height, b.Width, b.Height)
	}
	if areaB > areaA*1.05 {
		return KeepB, fmt.Sprintf("resolution %dx%d beats %dx%d", b.Width, b.Height, a.Width, a.Height)
	}

	if float64(a.Size) > float64(b.Size)*1.05 {
		return KeepA, fmt.Sprintf("file size %dKB beats %dKB", a.Size/1024, b.Size/1024)
	}
	if float64(b.Size) > float64(a.Size)*1.05 {
		return KeepB, fmt.Sprintf("file size %dKB beats %dKB", b.Size/1024, a.Size/1024)
	}

	if a.CreatedAt.Before(b.CreatedAt) {
		return KeepA, "older file, likely the original"
	}
	if b.CreatedAt.Before(a.CreatedAt) {
		return KeepB, "older file, likely the original"
	}

	return KeepReview, "no clear winner"
}
