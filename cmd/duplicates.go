package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/media-curator/media-curator/internal/config"
	"github.com/media-curator/media-curator/internal/dedupe"
)

var duplicatesCmd = &cobra.Command{
	Use:   "duplicates",
	Short: "Find near-duplicate media in the index",
	Long: `Runs multi-signal near-duplicate detection over every indexed item:
embedding similarity seeds candidate pairs, then perceptual hashes,
video durations and sequential filenames filter false positives.`,
	RunE: runDuplicates,
}

func init() {
	duplicatesCmd.Flags().Bool("json", false, "Print pairs as JSON instead of text")
	rootCmd.AddCommand(duplicatesCmd)
}

func runDuplicates(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	cfg := config.Load()
	asJSON := mustGetBool(cmd, "json")

	ctx := context.Background()
	ds, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		_ = ds.Close()
	}()

	detector := dedupe.NewDetector(ds, cfg.Dedupe)
	pairs, err := detector.FindDuplicates(ctx)
	if err != nil {
		return fmt.Errorf("duplicate detection failed: %w", err)
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(pairs)
	}

	if len(pairs) == 0 {
		fmt.Println("No duplicates found")
		return nil
	}

	fmt.Printf("Found %d duplicate pairs:\n\n", len(pairs))
	for _, p := range pairs {
		fmt.Printf("%.4f  %s\n", p.Similarity, filepath.Base(p.A.Path))
		fmt.Printf("        %s\n", filepath.Base(p.B.Path))
		fmt.Printf("        -> %s (%s)\n\n", p.Keep, p.Reason)
	}
	return nil
}
