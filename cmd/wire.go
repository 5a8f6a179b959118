package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/media-curator/media-curator/internal/config"
	"github.com/media-curator/media-curator/internal/features"
	"github.com/media-curator/media-curator/internal/ingest"
	"github.com/media-curator/media-curator/internal/scanner"
	"github.com/media-curator/media-curator/internal/store"
	"github.com/media-curator/media-curator/internal/store/postgres"
	"github.com/media-curator/media-curator/internal/store/sqlite"
)

// openStore opens the dual store: PostgreSQL when DATABASE_URL is set,
// a local SQLite file otherwise, plus the two vector index files.
func openStore(ctx context.Context, cfg *config.Config) (*store.DualStore, error) {
	var meta store.MediaStore
	if cfg.Database.URL != "" {
		pg, err := postgres.New(&cfg.Database, cfg.Analyzer.MediaDim, cfg.Analyzer.FaceDim)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		meta = pg
	} else {
		if err := os.MkdirAll(cfg.Data.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		sq, err := sqlite.New(ctx, cfg.Data.MetadataPath())
		if err != nil {
			return nil, fmt.Errorf("failed to open metadata database: %w", err)
		}
		meta = sq
	}
	return store.Open(meta, cfg.Analyzer.MediaDim, cfg.Analyzer.FaceDim,
		cfg.Data.MediaIndexPath(), cfg.Data.FaceIndexPath()), nil
}

// newPipeline assembles the ingestion pipeline around the analyzer sidecar.
func newPipeline(ds *store.DualStore, cfg *config.Config, excluded []string) *ingest.Pipeline {
	provider := features.NewAnalyzerClient(cfg.Analyzer.URL)
	sc := scanner.New(&cfg.Formats, excluded)
	return ingest.NewPipeline(ds, provider, sc, ingest.NewGuard(), cfg.Ingest)
}

// assistantSource picks a vision assistant by configured credentials,
// preferring OpenAI when both are present.
func assistantSource(cfg *config.Config) (*features.AssistantSource, error) {
	switch {
	case cfg.OpenAI.Token != "":
		return features.NewAssistantSource(func(ctx context.Context) (features.Assistant, func() error, error) {
			return features.NewOpenAIAssistant(cfg.OpenAI.Token), func() error { return nil }, nil
		}), nil
	case cfg.Gemini.APIKey != "":
		return features.NewAssistantSource(func(ctx context.Context) (features.Assistant, func() error, error) {
			assistant, err := features.NewGeminiAssistant(ctx, cfg.Gemini.APIKey)
			if err != nil {
				return nil, nil, err
			}
			return assistant, func() error { return nil }, nil
		}), nil
	}
	return nil, errors.New("no assistant configured: set OPENAI_TOKEN or GEMINI_API_KEY")
}
