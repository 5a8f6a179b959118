package store

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a media item or face does not exist.
var ErrNotFound = errors.New("not found")

// ClusterUnassigned marks faces that no clustering run has assigned yet,
// and faces a run classified as noise.
const ClusterUnassigned = -1

type MediaType string

const (
	MediaTypeImage MediaType = "image"
	MediaTypeVideo MediaType = "video"
)

// MediaRecord is one row of the relational side of the dual store.
// The vector side references it by ID.
type MediaRecord struct {
	ID          int64     `json:"id"`
	Path        string    `json:"path"`
	Fingerprint string    `json:"fingerprint"`
	Size        int64     `json:"size"`
	Type        MediaType `json:"type"`
	Width       int       `json:"width"`
	Height      int       `json:"height"`
	Duration    float64   `json:"duration,omitempty"` // seconds, video only
	FPS         float64   `json:"fps,omitempty"`      // video only
	CreatedAt   time.Time `json:"created_at"`
	ModifiedAt  time.Time `json:"modified_at"`

	// Processed is false for rows recorded after a failed extraction;
	// such rows keep the item visible and skippable but carry no vectors.
	Processed    bool   `json:"processed"`
	ProcessError string `json:"process_error,omitempty"`

	StyleLabel    string   `json:"style_label,omitempty"`
	Tags          []string `json:"tags,omitempty"`
	CharacterTags []string `json:"character_tags,omitempty"`
	SeriesTags    []string `json:"series_tags,omitempty"`

	Transcript []TranscriptSegment `json:"transcript,omitempty"`
	FrameNotes []FrameNote         `json:"frame_notes,omitempty"`
}

// TranscriptSegment is a time-coded piece of speech from a video.
type TranscriptSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// FrameNote is an assistant-written description of one video keyframe.
type FrameNote struct {
	Timestamp float64 `json:"timestamp"`
	Text      string  `json:"text"`
}

// FaceObservation is one detected face. The embedding is persisted
// relationally (for index rebuilds) and indexed in the face vector index
// under the observation ID.
type FaceObservation struct {
	ID        int64      `json:"id"`
	MediaID   int64      `json:"media_id"`
	FaceIndex int        `json:"face_index"`
	Cluster   int        `json:"cluster"`
	Timestamp float64    `json:"timestamp,omitempty"` // seconds into video, 0 for images
	BBox      [4]float64 `json:"bbox"`
	DetScore  float64    `json:"det_score"`
	Embedding []float32  `json:"-"`
}

// Commit is the unit of work the ingestion pipeline hands to the store:
// one media item with its extracted vectors, or a failure record.
type Commit struct {
	Record    MediaRecord
	Embedding []float32 // nil for failure records
	Faces     []FaceObservation
}

// CommitResult reports the identifiers assigned while applying a Commit.
type CommitResult struct {
	MediaID        int64
	Path           string
	FaceIDs        []int64 // ids for Commit.Faces, in order
	RemovedFaceIDs []int64 // prior observations replaced by this commit
}

// MediaFilter narrows ListMedia. Zero values mean "no constraint".
// Tag filters match after normalization (case and diacritics insensitive).
type MediaFilter struct {
	Type      MediaType
	Tag       string
	Character string
	Series    string
	Style     string
	Limit     int
	Offset    int
}

// Stats summarizes both sides of the dual store.
type Stats struct {
	MediaCount     int `json:"media_count"`
	ProcessedCount int `json:"processed_count"`
	ErrorCount     int `json:"error_count"`
	FaceCount      int `json:"face_count"`
	ClusterCount   int `json:"cluster_count"`
	MediaVectors   int `json:"media_vectors"`
	FaceVectors    int `json:"face_vectors"`
}
