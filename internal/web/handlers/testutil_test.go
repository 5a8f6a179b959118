package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/media-curator/media-curator/internal/features"
	"github.com/media-curator/media-curator/internal/store"
	"github.com/media-curator/media-curator/internal/store/mock"
)

// newTestStore creates a DualStore over the mock backend with small
// vector dimensions.
func newTestStore(t *testing.T) (*store.DualStore, *mock.MockStore) {
	t.Helper()
	dir := t.TempDir()
	meta := mock.NewMockStore()
	ds := store.Open(meta, 4, 2,
		filepath.Join(dir, "media.hnsw"), filepath.Join(dir, "faces.hnsw"))
	return ds, meta
}

// fakeProvider embeds everything to a fixed direction.
type fakeProvider struct {
	textErr error
}

func (f *fakeProvider) AnalyzeMedia(ctx context.Context, data []byte, mediaType store.MediaType) (*features.Analysis, error) {
	return &features.Analysis{Embedding: []float32{1, 0, 0, 0}, Width: 10, Height: 10}, nil
}

func (f *fakeProvider) AnalyzeBatch(ctx context.Context, items []features.MediaPayload) ([]*features.Analysis, error) {
	analyses := make([]*features.Analysis, len(items))
	for i, item := range items {
		a, err := f.AnalyzeMedia(ctx, item.Data, item.Type)
		if err != nil {
			return nil, err
		}
		analyses[i] = a
	}
	return analyses, nil
}

func (f *fakeProvider) TextEmbedding(ctx context.Context, text string) ([]float32, error) {
	if f.textErr != nil {
		return nil, f.textErr
	}
	return []float32{1, 0, 0, 0}, nil
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d: %s", expected, recorder.Code, recorder.Body.String())
	}
}

func assertContentType(t *testing.T, recorder *httptest.ResponseRecorder, expected string) {
	t.Helper()
	if ct := recorder.Header().Get("Content-Type"); ct != expected {
		t.Errorf("expected content type %s, got %s", expected, ct)
	}
}

func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), dst); err != nil {
		t.Fatalf("failed to parse response body: %v", err)
	}
}
