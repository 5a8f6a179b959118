package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/media-curator/media-curator/internal/cluster"
	"github.com/media-curator/media-curator/internal/config"
)

var clusterCmd = &cobra.Command{
	Use:   "cluster",
	Short: "Group indexed faces by identity",
	Long: `Runs density-based clustering over all face embeddings and stores
the assignments. Every run relabels from scratch; faces in sparse
regions stay unassigned.`,
	RunE: runCluster,
}

func init() {
	rootCmd.AddCommand(clusterCmd)
}

func runCluster(cmd *cobra.Command, args []string) error {
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

	clusterer := cluster.NewClusterer(ds, cfg.Cluster)
	result, err := clusterer.Run(ctx)
	if err != nil {
		return fmt.Errorf("clustering failed: %w", err)
	}

	fmt.Printf("Found %d clusters: %d faces assigned, %d noise\n",
		result.Clusters, result.Assigned, result.Noise)
	return nil
}
