package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/media-curator/media-curator/internal/config"
	"github.com/media-curator/media-curator/internal/features"
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search the library by text",
	Long: `Embeds the query through the analyzer sidecar and returns the most
similar indexed media, best match first.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().Int("limit", 20, "Maximum number of results")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	cfg := config.Load()
	limit := mustGetInt(cmd, "limit")

	ctx := context.Background()
	ds, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		_ = ds.Close()
	}()

	provider := features.NewAnalyzerClient(cfg.Analyzer.URL)
	embedding, err := provider.TextEmbedding(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to embed query: %w", err)
	}

	results, err := ds.SearchSimilar(ctx, embedding, limit)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if len(results) == 0 {
		fmt.Println("No results")
		return nil
	}
	for i, r := range results {
		fmt.Printf("%2d. %.4f  %s\n", i+1, r.Similarity, r.Path)
	}
	return nil
}
