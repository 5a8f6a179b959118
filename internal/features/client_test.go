package features

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/media-curator/media-curator/internal/store"
)

func TestAnalyzeMedia_Image(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/analyze/image" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("failed to parse multipart form: %v", err)
		}
		if _, _, err := r.FormFile("file"); err != nil {
			t.Errorf("expected file part: %v", err)
		}

		json.NewEncoder(w).Encode(Analysis{
			Embedding: []float32{0.1, 0.2},
			Width:     800,
			Height:    600,
			Tags:      []string{"beach"},
		})
	}))
	defer server.Close()

	client := NewAnalyzerClient(server.URL)
	analysis, err := client.AnalyzeMedia(context.Background(), []byte{0xFF, 0xD8, 0xFF, 0xE0, 0, 0, 0, 0, 0, 0, 0, 0}, store.MediaTypeImage)
	if err != nil {
		t.Fatalf("AnalyzeMedia failed: %v", err)
	}

	if len(analysis.Embedding) != 2 {
		t.Errorf("expected 2-dim embedding, got %d", len(analysis.Embedding))
	}
	if analysis.Width != 800 {
		t.Errorf("expected width 800, got %d", analysis.Width)
	}
	if len(analysis.Tags) != 1 || analysis.Tags[0] != "beach" {
		t.Errorf("unexpected tags: %v", analysis.Tags)
	}
}

func TestAnalyzeMedia_VideoEndpoint(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewEncoder(w).Encode(Analysis{Embedding: []float32{1}})
	}))
	defer server.Close()

	client := NewAnalyzerClient(server.URL)
	if _, err := client.AnalyzeMedia(context.Background(), make([]byte, 16), store.MediaTypeVideo); err != nil {
		t.Fatalf("AnalyzeMedia failed: %v", err)
	}
	if gotPath != "/analyze/video" {
		t.Errorf("expected /analyze/video, got %s", gotPath)
	}
}

func TestAnalyzeMedia_EmptyEmbedding(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Analysis{})
	}))
	defer server.Close()

	client := NewAnalyzerClient(server.URL)
	if _, err := client.AnalyzeMedia(context.Background(), make([]byte, 16), store.MediaTypeImage); err == nil {
		t.Error("expected error for empty embedding")
	}
}

func TestAnalyzeMedia_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewAnalyzerClient(server.URL)
	if _, err := client.AnalyzeMedia(context.Background(), make([]byte, 16), store.MediaTypeImage); err == nil {
		t.Error("expected error for non-200 response")
	}
}

func TestAnalyzeBatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/analyze/batch" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("failed to parse multipart form: %v", err)
		}
		files := r.MultipartForm.File["files"]
		if len(files) != 2 {
			t.Errorf("expected 2 file parts, got %d", len(files))
		}

		json.NewEncoder(w).Encode([]*Analysis{
			{Embedding: []float32{1, 0}},
			{Embedding: []float32{0, 1}},
		})
	}))
	defer server.Close()

	client := NewAnalyzerClient(server.URL)
	analyses, err := client.AnalyzeBatch(context.Background(), []MediaPayload{
		{Data: make([]byte, 16), Type: store.MediaTypeImage},
		{Data: make([]byte, 16), Type: store.MediaTypeImage},
	})
	if err != nil {
		t.Fatalf("AnalyzeBatch failed: %v", err)
	}
	if len(analyses) != 2 {
		t.Fatalf("expected 2 analyses, got %d", len(analyses))
	}
	if analyses[1].Embedding[1] != 1 {
		t.Errorf("expected responses in input order, got %+v", analyses[1].Embedding)
	}
}

func TestAnalyzeBatch_CountMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]*Analysis{{Embedding: []float32{1}}})
	}))
	defer server.Close()

	client := NewAnalyzerClient(server.URL)
	_, err := client.AnalyzeBatch(context.Background(), []MediaPayload{
		{Data: make([]byte, 16), Type: store.MediaTypeImage},
		{Data: make([]byte, 16), Type: store.MediaTypeImage},
	})
	if err == nil {
		t.Error("expected error when result count does not match input count")
	}
}

func TestTextEmbedding(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embed/text" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req textEmbeddingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		if req.Text != "a dog on a beach" {
			t.Errorf("unexpected text %q", req.Text)
		}
		json.NewEncoder(w).Encode(textEmbeddingResponse{Dim: 3, Embedding: []float32{1, 2, 3}})
	}))
	defer server.Close()

	client := NewAnalyzerClient(server.URL)
	emb, err := client.TextEmbedding(context.Background(), "a dog on a beach")
	if err != nil {
		t.Fatalf("TextEmbedding failed: %v", err)
	}
	if len(emb) != 3 {
		t.Errorf("expected 3-dim embedding, got %d", len(emb))
	}
}

func TestDetectMIMEType(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		expected string
	}{
		{"jpeg", []byte{0xFF, 0xD8, 0xFF, 0xE0, 0, 0, 0, 0, 0, 0, 0, 0}, "image/jpeg"},
		{"png", []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0}, "image/png"},
		{"bmp", []byte{0x42, 0x4D, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}, "image/bmp"},
		{"webp", []byte{0x52, 0x49, 0x46, 0x46, 0, 0, 0, 0, 0x57, 0x45, 0x42, 0x50}, "image/webp"},
		{"mp4", []byte{0, 0, 0, 0x18, 0x66, 0x74, 0x79, 0x70, 0x69, 0x73, 0x6F, 0x6D}, "video/mp4"},
		{"webm", []byte{0x1A, 0x45, 0xDF, 0xA3, 0, 0, 0, 0, 0, 0, 0, 0}, "video/webm"},
		{"avi", []byte{0x52, 0x49, 0x46, 0x46, 0, 0, 0, 0, 0x41, 0x56, 0x49, 0x20}, "video/x-msvideo"},
		{"unknown", []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}, "application/octet-stream"},
		{"too short", []byte{0xFF, 0xD8}, "application/octet-stream"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := detectMIMEType(tt.data); got != tt.expected {
				t.Errorf("detectMIMEType = %s, want %s", got, tt.expected)
			}
		})
	}
}
