package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_DefaultMediaDim(t *testing.T) {
	os.Unsetenv("MEDIA_EMBEDDING_DIM")

	cfg := Load()

	if cfg.Analyzer.MediaDim != 768 {
		t.Errorf("expected default media embedding dim 768, got %d", cfg.Analyzer.MediaDim)
	}
}

func TestLoad_DefaultFaceDim(t *testing.T) {
	os.Unsetenv("FACE_EMBEDDING_DIM")

	cfg := Load()

	if cfg.Analyzer.FaceDim != 512 {
		t.Errorf("expected default face embedding dim 512, got %d", cfg.Analyzer.FaceDim)
	}
}

func TestLoad_CustomMediaDim(t *testing.T) {
	t.Setenv("MEDIA_EMBEDDING_DIM", "1024")

	cfg := Load()

	if cfg.Analyzer.MediaDim != 1024 {
		t.Errorf("expected media embedding dim 1024, got %d", cfg.Analyzer.MediaDim)
	}
}

func TestLoad_InvalidMediaDim(t *testing.T) {
	t.Setenv("MEDIA_EMBEDDING_DIM", "invalid")

	cfg := Load()

	// Should fall back to default
	if cfg.Analyzer.MediaDim != 768 {
		t.Errorf("expected default media embedding dim 768 for invalid input, got %d", cfg.Analyzer.MediaDim)
	}
}

func TestLoad_NegativeMediaDim(t *testing.T) {
	t.Setenv("MEDIA_EMBEDDING_DIM", "-100")

	cfg := Load()

	if cfg.Analyzer.MediaDim != 768 {
		t.Errorf("expected default media embedding dim 768 for negative input, got %d", cfg.Analyzer.MediaDim)
	}
}

func TestLoad_PipelineDefaults(t *testing.T) {
	os.Unsetenv("INGEST_BATCH_SIZE")
	os.Unsetenv("INGEST_LOAD_WORKERS")

	cfg := Load()

	if cfg.Ingest.BatchSize != 32 {
		t.Errorf("expected default batch size 32, got %d", cfg.Ingest.BatchSize)
	}

	if cfg.Ingest.LoadWorkers != 8 {
		t.Errorf("expected default load workers 8, got %d", cfg.Ingest.LoadWorkers)
	}
}

func TestLoad_DedupeDefaults(t *testing.T) {
	os.Unsetenv("DEDUPE_IMAGE_THRESHOLD")
	os.Unsetenv("DEDUPE_VIDEO_THRESHOLD")
	os.Unsetenv("DEDUPE_HASH_THRESHOLD")
	os.Unsetenv("DEDUPE_DURATION_TOLERANCE")

	cfg := Load()

	if cfg.Dedupe.ImageThreshold != 0.95 {
		t.Errorf("expected image threshold 0.95, got %f", cfg.Dedupe.ImageThreshold)
	}

	if cfg.Dedupe.VideoThreshold != 0.98 {
		t.Errorf("expected video threshold 0.98, got %f", cfg.Dedupe.VideoThreshold)
	}

	if cfg.Dedupe.IdenticalFloor != 0.9999 {
		t.Errorf("expected identical floor 0.9999, got %f", cfg.Dedupe.IdenticalFloor)
	}

	if cfg.Dedupe.HashThreshold != 8 {
		t.Errorf("expected hash threshold 8, got %d", cfg.Dedupe.HashThreshold)
	}

	if cfg.Dedupe.DurationTolerance != 2.0 {
		t.Errorf("expected duration tolerance 2.0, got %f", cfg.Dedupe.DurationTolerance)
	}
}

func TestLoad_ClusterDefaults(t *testing.T) {
	os.Unsetenv("CLUSTER_EPS")
	os.Unsetenv("CLUSTER_MIN_POINTS")

	cfg := Load()

	if cfg.Cluster.Eps != 0.65 {
		t.Errorf("expected cluster eps 0.65, got %f", cfg.Cluster.Eps)
	}

	if cfg.Cluster.MinPoints != 4 {
		t.Errorf("expected cluster min points 4, got %d", cfg.Cluster.MinPoints)
	}
}

func TestLoad_ClusterOverrides(t *testing.T) {
	t.Setenv("CLUSTER_EPS", "0.5")
	t.Setenv("CLUSTER_MIN_POINTS", "10")

	cfg := Load()

	if cfg.Cluster.Eps != 0.5 {
		t.Errorf("expected cluster eps 0.5, got %f", cfg.Cluster.Eps)
	}

	if cfg.Cluster.MinPoints != 10 {
		t.Errorf("expected cluster min points 10, got %d", cfg.Cluster.MinPoints)
	}
}

func TestLoad_ExtensionsLoaded(t *testing.T) {
	cfg := Load()

	if len(cfg.Formats.Extensions.Image) == 0 {
		t.Fatal("expected image extensions to be loaded from embedded YAML")
	}

	if len(cfg.Formats.Extensions.Video) == 0 {
		t.Fatal("expected video extensions to be loaded from embedded YAML")
	}

	expectedImages := []string{".jpg", ".jpeg", ".png", ".webp", ".bmp"}
	for _, ext := range expectedImages {
		if !cfg.Formats.IsImage(ext) {
			t.Errorf("expected '%s' to be a recognized image extension", ext)
		}
	}

	expectedVideos := []string{".mp4", ".avi", ".mov", ".mkv", ".webm"}
	for _, ext := range expectedVideos {
		if !cfg.Formats.IsVideo(ext) {
			t.Errorf("expected '%s' to be a recognized video extension", ext)
		}
	}
}

func TestFormats_UnknownExtension(t *testing.T) {
	cfg := Load()

	if cfg.Formats.IsImage(".txt") {
		t.Error("expected '.txt' not to be an image extension")
	}

	if cfg.Formats.IsVideo(".gif") {
		t.Error("expected '.gif' not to be a video extension")
	}
}

func TestDataConfig_Paths(t *testing.T) {
	t.Setenv("CURATOR_DATA_DIR", "/var/lib/curator")

	cfg := Load()

	if cfg.Data.MetadataPath() != filepath.Join("/var/lib/curator", "metadata.db") {
		t.Errorf("unexpected metadata path '%s'", cfg.Data.MetadataPath())
	}

	if cfg.Data.MediaIndexPath() != filepath.Join("/var/lib/curator", "media.hnsw") {
		t.Errorf("unexpected media index path '%s'", cfg.Data.MediaIndexPath())
	}

	if cfg.Data.FaceIndexPath() != filepath.Join("/var/lib/curator", "faces.hnsw") {
		t.Errorf("unexpected face index path '%s'", cfg.Data.FaceIndexPath())
	}
}

func TestLoad_EmptyEnvVars(t *testing.T) {
	os.Unsetenv("DATABASE_URL")
	os.Unsetenv("OPENAI_TOKEN")
	os.Unsetenv("GEMINI_API_KEY")

	cfg := Load()

	if cfg.Database.URL != "" {
		t.Errorf("expected empty database URL, got '%s'", cfg.Database.URL)
	}

	if cfg.OpenAI.Token != "" {
		t.Errorf("expected empty OpenAI token, got '%s'", cfg.OpenAI.Token)
	}
}
