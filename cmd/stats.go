package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/media-curator/media-curator/internal/config"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show index statistics",
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	cfg := config.Load()
	ctx := context.Background()
	ds, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		_ = ds.Close()
	}()

	stats, err := ds.Stats(ctx)
	if err != nil {
		return fmt.Errorf("failed to collect stats: %w", err)
	}

	fmt.Printf("Media:          %d (%d processed, %d errors)\n",
		stats.MediaCount, stats.ProcessedCount, stats.ErrorCount)
	fmt.Printf("Faces:          %d in %d clusters\n", stats.FaceCount, stats.ClusterCount)
	fmt.Printf("Media vectors:  %d\n", stats.MediaVectors)
	fmt.Printf("Face vectors:   %d\n", stats.FaceVectors)
	return nil
}
