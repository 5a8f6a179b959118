// Package features talks to the external feature extraction services:
// the analyzer sidecar that computes embeddings and detections, and the
// VQA assistants that describe video keyframes. No pixel-level work
// happens in this process.
package features

import (
	"context"

	"github.com/media-curator/media-curator/internal/store"
)

// FaceDetection is a single detected face as reported by the analyzer.
type FaceDetection struct {
	FaceIndex int       `json:"face_index"`
	Embedding []float32 `json:"embedding"`
	BBox      []float64 `json:"bbox"` // [x1, y1, x2, y2]
	DetScore  float64   `json:"det_score"`
	Timestamp float64   `json:"timestamp"` // seconds into video, 0 for images
}

// Analysis is everything the analyzer extracts from one media file.
type Analysis struct {
	Embedding     []float32                 `json:"embedding"`
	Width         int                       `json:"width"`
	Height        int                       `json:"height"`
	Duration      float64                   `json:"duration"`
	FPS           float64                   `json:"fps"`
	Faces         []FaceDetection           `json:"faces"`
	Tags          []string                  `json:"tags"`
	CharacterTags []string                  `json:"character_tags"`
	SeriesTags    []string                  `json:"series_tags"`
	StyleLabel    string                    `json:"style_label"`
	Transcript    []store.TranscriptSegment `json:"transcript"`
	FrameNotes    []store.FrameNote         `json:"frame_notes"`
}

// MediaPayload is one file's raw content headed for analysis.
type MediaPayload struct {
	Data []byte
	Type store.MediaType
}

// Provider is the feature extraction contract the pipeline depends on.
type Provider interface {
	// AnalyzeMedia extracts features from raw file content.
	AnalyzeMedia(ctx context.Context, data []byte, mediaType store.MediaType) (*Analysis, error)

	// AnalyzeBatch extracts features from several files in one call,
	// computed together for efficiency. On success it returns one
	// analysis per input, in order; on error the whole batch failed.
	AnalyzeBatch(ctx context.Context, items []MediaPayload) ([]*Analysis, error)

	// TextEmbedding embeds a text query into the media embedding space.
	TextEmbedding(ctx context.Context, text string) ([]float32, error)
}
