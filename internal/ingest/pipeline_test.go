package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/media-curator/media-curator/internal/config"
	"github.com/media-curator/media-curator/internal/features"
	"github.com/media-curator/media-curator/internal/scanner"
	"github.com/media-curator/media-curator/internal/store"
	"github.com/media-curator/media-curator/internal/store/mock"
)

type fakeProvider struct {
	mu         sync.Mutex
	analyzed   int
	batchCalls int
	failPath   string // substring of the payload that triggers a failure
	faces      int
}

func (f *fakeProvider) analysisFor(data []byte) (*features.Analysis, error) {
	f.mu.Lock()
	f.analyzed++
	f.mu.Unlock()

	if f.failPath != "" && strings.Contains(string(data), f.failPath) {
		return nil, errors.New("decode error")
	}

	analysis := &features.Analysis{
		Embedding: []float32{1, 0, 0, 0},
		Width:     640,
		Height:    480,
		Tags:      []string{"test"},
	}
	for i := 0; i < f.faces; i++ {
		analysis.Faces = append(analysis.Faces, features.FaceDetection{
			FaceIndex: i,
			Embedding: []float32{0, 1},
			BBox:      []float64{1, 2, 3, 4},
			DetScore:  0.9,
		})
	}
	return analysis, nil
}

func (f *fakeProvider) AnalyzeMedia(ctx context.Context, data []byte, mediaType store.MediaType) (*features.Analysis, error) {
	return f.analysisFor(data)
}

func (f *fakeProvider) AnalyzeBatch(ctx context.Context, items []features.MediaPayload) ([]*features.Analysis, error) {
	f.mu.Lock()
	f.batchCalls++
	f.mu.Unlock()

	analyses := make([]*features.Analysis, len(items))
	for i, item := range items {
		a, err := f.analysisFor(item.Data)
		if err != nil {
			return nil, fmt.Errorf("batch item %d: %w", i, err)
		}
		analyses[i] = a
	}
	return analyses, nil
}

func (f *fakeProvider) TextEmbedding(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0, 0, 0}, nil
}

func (f *fakeProvider) analyzedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.analyzed
}

func (f *fakeProvider) batchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.batchCalls
}

func testFormats() *config.FormatsConfig {
	return &config.FormatsConfig{
		Extensions: config.ExtensionsConfig{
			Image: []string{".jpg", ".png"},
			Video: []string{".mp4"},
		},
	}
}

func newTestPipeline(t *testing.T, provider features.Provider) (*Pipeline, *store.DualStore) {
	t.Helper()

	dir := t.TempDir()
	ds := store.Open(mock.NewMockStore(), 4, 2,
		filepath.Join(dir, "media.hnsw"), filepath.Join(dir, "faces.hnsw"))

	pipeline := NewPipeline(ds, provider, scanner.New(testFormats(), nil), NewGuard(),
		config.IngestConfig{BatchSize: 2, LoadWorkers: 2})
	return pipeline, ds
}

func writeFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte("content of "+name), 0o644); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}
}

func drain(t *testing.T, updates <-chan Snapshot) Snapshot {
	t.Helper()
	var last Snapshot
	for s := range updates {
		last = s
	}
	if !last.Done {
		t.Fatal("expected final snapshot to be marked done")
	}
	return last
}

func TestScan_IngestsNewFiles(t *testing.T) {
	provider := &fakeProvider{faces: 1}
	pipeline, ds := newTestPipeline(t, provider)

	library := t.TempDir()
	writeFiles(t, library, "a.jpg", "b.jpg", "c.png")

	updates, err := pipeline.Scan(context.Background(), library)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	final := drain(t, updates)

	if final.Total != 3 || final.Current != 3 {
		t.Errorf("expected 3/3 progress, got %d/%d", final.Current, final.Total)
	}
	if final.NewlyProcessed != 3 {
		t.Errorf("expected 3 newly processed, got %d", final.NewlyProcessed)
	}
	if provider.analyzedCount() != 3 {
		t.Errorf("expected 3 analyzer calls, got %d", provider.analyzedCount())
	}

	records, err := ds.Meta.ListMedia(context.Background(), store.MediaFilter{})
	if err != nil {
		t.Fatalf("ListMedia failed: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 media records, got %d", len(records))
	}
	for _, rec := range records {
		if !rec.Processed {
			t.Errorf("expected %s to be processed", rec.Path)
		}
		if rec.Width != 640 {
			t.Errorf("expected width 640 for %s, got %d", rec.Path, rec.Width)
		}
	}

	if ds.Media.Count() != 3 {
		t.Errorf("expected 3 media vectors, got %d", ds.Media.Count())
	}
	if ds.Faces.Count() != 3 {
		t.Errorf("expected 3 face vectors, got %d", ds.Faces.Count())
	}
}

func TestScan_SkipsUnchangedFiles(t *testing.T) {
	provider := &fakeProvider{}
	pipeline, _ := newTestPipeline(t, provider)

	library := t.TempDir()
	writeFiles(t, library, "a.jpg", "b.jpg")

	updates, err := pipeline.Scan(context.Background(), library)
	if err != nil {
		t.Fatalf("first scan failed: %v", err)
	}
	drain(t, updates)

	updates, err = pipeline.Scan(context.Background(), library)
	if err != nil {
		t.Fatalf("second scan failed: %v", err)
	}
	final := drain(t, updates)

	if provider.analyzedCount() != 2 {
		t.Errorf("expected unchanged files to be skipped, analyzer called %d times", provider.analyzedCount())
	}
	if final.NewlyProcessed != 0 {
		t.Errorf("expected 0 newly processed on second scan, got %d", final.NewlyProcessed)
	}
	if final.Current != 2 {
		t.Errorf("expected skipped files to still advance progress, got %d", final.Current)
	}
}

func TestScan_ChangedFileReprocessed(t *testing.T) {
	provider := &fakeProvider{}
	pipeline, _ := newTestPipeline(t, provider)

	library := t.TempDir()
	writeFiles(t, library, "a.jpg")

	updates, err := pipeline.Scan(context.Background(), library)
	if err != nil {
		t.Fatalf("first scan failed: %v", err)
	}
	drain(t, updates)

	if err := os.WriteFile(filepath.Join(library, "a.jpg"), []byte("entirely new bytes"), 0o644); err != nil {
		t.Fatalf("failed to rewrite file: %v", err)
	}

	updates, err = pipeline.Scan(context.Background(), library)
	if err != nil {
		t.Fatalf("second scan failed: %v", err)
	}
	final := drain(t, updates)

	if final.NewlyProcessed != 1 {
		t.Errorf("expected changed file to be reprocessed, got %d", final.NewlyProcessed)
	}
	if provider.analyzedCount() != 2 {
		t.Errorf("expected 2 analyzer calls, got %d", provider.analyzedCount())
	}
}

func TestScan_UnreadableFileGetsFailureRecord(t *testing.T) {
	provider := &fakeProvider{}
	pipeline, ds := newTestPipeline(t, provider)

	library := t.TempDir()
	writeFiles(t, library, "ok.jpg")
	// dangling symlink: discovered by the walk, unreadable on load
	if err := os.Symlink(filepath.Join(library, "missing.bin"), filepath.Join(library, "broken.jpg")); err != nil {
		t.Fatalf("failed to create symlink: %v", err)
	}

	updates, err := pipeline.Scan(context.Background(), library)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	final := drain(t, updates)

	if final.Err != "" {
		t.Fatalf("item failure must not abort the scan: %s", final.Err)
	}
	if final.NewlyProcessed != 1 {
		t.Errorf("expected 1 newly processed, got %d", final.NewlyProcessed)
	}
	if final.Failed != 1 {
		t.Errorf("expected 1 failed, got %d", final.Failed)
	}

	rec, err := ds.Meta.GetMediaByPath(context.Background(), filepath.Join(library, "broken.jpg"))
	if err != nil {
		t.Fatalf("expected failure record to exist: %v", err)
	}
	if rec.Processed {
		t.Error("failure record must not be marked processed")
	}
	if rec.ProcessError == "" {
		t.Error("failure record must carry the error")
	}
	if ds.Media.Has(rec.ID) {
		t.Error("failure record must not have a media vector")
	}

	okRec, err := ds.Meta.GetMediaByPath(context.Background(), filepath.Join(library, "ok.jpg"))
	if err != nil {
		t.Fatalf("expected healthy record to exist: %v", err)
	}
	if !okRec.Processed {
		t.Error("healthy item must still be processed")
	}
}

func TestScan_ProviderFailureDiscardsBatch(t *testing.T) {
	// batch size 2: a_broken.jpg and b.jpg fill the first buffer, c.jpg
	// flushes alone in the second
	provider := &fakeProvider{failPath: "a_broken.jpg"}
	pipeline, ds := newTestPipeline(t, provider)

	library := t.TempDir()
	writeFiles(t, library, "a_broken.jpg", "b.jpg", "c.jpg")

	updates, err := pipeline.Scan(context.Background(), library)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	final := drain(t, updates)

	if final.Err != "" {
		t.Fatalf("a failed batch must not abort the scan: %s", final.Err)
	}
	if final.NewlyProcessed != 1 {
		t.Errorf("expected only the second batch to land, got %d newly processed", final.NewlyProcessed)
	}
	if final.Failed != 2 {
		t.Errorf("expected both items of the failed batch counted, got %d", final.Failed)
	}

	// the discarded batch contributes no records at all
	for _, name := range []string{"a_broken.jpg", "b.jpg"} {
		if _, err := ds.Meta.GetMediaByPath(context.Background(), filepath.Join(library, name)); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("expected no record for %s, got %v", name, err)
		}
	}
	if rec, err := ds.Meta.GetMediaByPath(context.Background(), filepath.Join(library, "c.jpg")); err != nil || !rec.Processed {
		t.Errorf("expected the later batch to commit, got %v", err)
	}
}

func TestScan_OneProviderCallPerBuffer(t *testing.T) {
	provider := &fakeProvider{}
	pipeline, _ := newTestPipeline(t, provider)

	library := t.TempDir()
	writeFiles(t, library, "a.jpg", "b.jpg", "c.jpg", "d.jpg", "e.jpg")

	updates, err := pipeline.Scan(context.Background(), library)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	drain(t, updates)

	// 5 files at batch size 2: two full buffers plus one short flush
	if provider.batchCount() != 3 {
		t.Errorf("expected 3 batch calls, got %d", provider.batchCount())
	}
}

func TestScan_ManyFilesAcrossBatches(t *testing.T) {
	provider := &fakeProvider{}
	pipeline, ds := newTestPipeline(t, provider)

	library := t.TempDir()
	var names []string
	for i := 0; i < 7; i++ {
		names = append(names, fmt.Sprintf("photo_%02d.jpg", i))
	}
	writeFiles(t, library, names...)

	updates, err := pipeline.Scan(context.Background(), library)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	final := drain(t, updates)

	if final.NewlyProcessed != 7 {
		t.Errorf("expected 7 newly processed, got %d", final.NewlyProcessed)
	}
	if ds.Media.Count() != 7 {
		t.Errorf("expected 7 media vectors, got %d", ds.Media.Count())
	}
}

func TestScan_SlowConsumerStillGetsCompletionMarker(t *testing.T) {
	provider := &fakeProvider{}
	pipeline, _ := newTestPipeline(t, provider)

	library := t.TempDir()
	var names []string
	for i := 0; i < 80; i++ {
		names = append(names, fmt.Sprintf("photo_%03d.jpg", i))
	}
	writeFiles(t, library, names...)

	updates, err := pipeline.Scan(context.Background(), library)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	// more items than the channel buffers; intermediate snapshots may be
	// dropped but the completion marker must still arrive
	time.Sleep(200 * time.Millisecond)

	final := drain(t, updates)
	if final.NewlyProcessed != 80 {
		t.Errorf("expected 80 newly processed, got %d", final.NewlyProcessed)
	}
	if final.Current != 80 || final.Total != 80 {
		t.Errorf("expected 80/80 progress, got %d/%d", final.Current, final.Total)
	}
}

func TestIngestFile(t *testing.T) {
	provider := &fakeProvider{}
	pipeline, ds := newTestPipeline(t, provider)

	library := t.TempDir()
	writeFiles(t, library, "single.jpg")
	path := filepath.Join(library, "single.jpg")

	result, skipped, err := pipeline.IngestFile(context.Background(), path)
	if err != nil {
		t.Fatalf("IngestFile failed: %v", err)
	}
	if skipped {
		t.Fatal("new file must not be skipped")
	}
	if result.MediaID == 0 {
		t.Error("expected assigned media id")
	}
	if !ds.Media.Has(result.MediaID) {
		t.Error("expected media vector to be indexed")
	}

	_, skipped, err = pipeline.IngestFile(context.Background(), path)
	if err != nil {
		t.Fatalf("second IngestFile failed: %v", err)
	}
	if !skipped {
		t.Error("unchanged file must be skipped")
	}
	if provider.analyzedCount() != 1 {
		t.Errorf("expected 1 analyzer call, got %d", provider.analyzedCount())
	}
}

func TestIngestFile_AnalysisFailureRecorded(t *testing.T) {
	provider := &fakeProvider{failPath: "broken.jpg"}
	pipeline, ds := newTestPipeline(t, provider)

	library := t.TempDir()
	writeFiles(t, library, "broken.jpg")

	result, skipped, err := pipeline.IngestFile(context.Background(), filepath.Join(library, "broken.jpg"))
	if err == nil {
		t.Fatal("expected the analysis error to surface")
	}
	if skipped {
		t.Fatal("failed file must not be reported skipped")
	}
	if result == nil || result.MediaID == 0 {
		t.Fatal("expected a committed failure record")
	}

	rec, err := ds.Meta.GetMedia(context.Background(), result.MediaID)
	if err != nil {
		t.Fatalf("GetMedia failed: %v", err)
	}
	if rec.Processed {
		t.Error("failure record must not be marked processed")
	}
	if rec.ProcessError == "" {
		t.Error("failure record must carry the error")
	}
}

func TestIngestFile_UnsupportedExtension(t *testing.T) {
	pipeline, _ := newTestPipeline(t, &fakeProvider{})

	library := t.TempDir()
	writeFiles(t, library, "notes.txt")

	if _, _, err := pipeline.IngestFile(context.Background(), filepath.Join(library, "notes.txt")); err == nil {
		t.Error("expected error for unsupported extension")
	}
}

func TestScan_SecondScanRejectedWhileRunning(t *testing.T) {
	guard := NewGuard()

	if _, err := guard.Begin(); err != nil {
		t.Fatalf("first Begin failed: %v", err)
	}
	if _, err := guard.Begin(); !errors.Is(err, ErrScanActive) {
		t.Errorf("expected ErrScanActive, got %v", err)
	}

	guard.Finish()
	if _, err := guard.Begin(); err != nil {
		t.Errorf("Begin after Finish failed: %v", err)
	}
}

func TestGuard_StatusSurvivesFinish(t *testing.T) {
	guard := NewGuard()

	runID, err := guard.Begin()
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}

	guard.Update(Snapshot{RunID: runID, Current: 5, Total: 10})
	guard.Finish()

	snap, active := guard.Status()
	if active {
		t.Error("expected inactive guard after Finish")
	}
	if snap.RunID != runID || snap.Current != 5 {
		t.Errorf("expected last snapshot to survive, got %+v", snap)
	}
}
