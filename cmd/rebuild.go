package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/media-curator/media-curator/internal/config"
)

var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Rebuild the vector indices from the relational store",
	Long: `Drops both vector indices and repopulates them from the embeddings
persisted on the relational side. Use after index file corruption or a
dimensionality change.`,
	RunE: runRebuild,
}

func init() {
	rootCmd.AddCommand(rebuildCmd)
}

func runRebuild(cmd *cobra.Command, args []string) error {
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

	if err := ds.Rebuild(ctx); err != nil {
		return fmt.Errorf("rebuild failed: %w", err)
	}

	fmt.Printf("Rebuilt indices: %d media vectors, %d face vectors\n",
		ds.Media.Count(), ds.Faces.Count())
	return nil
}
