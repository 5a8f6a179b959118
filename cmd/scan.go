package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/media-curator/media-curator/internal/config"
)

var scanCmd = &cobra.Command{
	Use:   "scan [directory]",
	Short: "Index a media library directory",
	Long: `Walks the directory, skips files whose fingerprint is already
indexed, and sends the rest through the analyzer sidecar. Failed files
are recorded with their error and never abort the run.`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

func init() {
	scanCmd.Flags().StringSlice("exclude", nil, "Directory names to skip while walking")
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	cfg := config.Load()
	excluded := mustGetStringSlice(cmd, "exclude")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nInterrupted, finishing current batch...")
		cancel()
	}()

	ds, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		_ = ds.Close()
	}()

	pipeline := newPipeline(ds, cfg, excluded)

	updates, err := pipeline.Scan(ctx, args[0])
	if err != nil {
		return err
	}

	var bar *progressbar.ProgressBar
	var processed, skipped, failed int
	for snapshot := range updates {
		if snapshot.Err != "" {
			return fmt.Errorf("scan failed: %s", snapshot.Err)
		}
		if bar == nil && snapshot.Total > 0 {
			bar = progressbar.NewOptions(snapshot.Total,
				progressbar.OptionSetDescription(fmt.Sprintf("Indexing %s", args[0])),
				progressbar.OptionShowCount(),
				progressbar.OptionShowIts(),
				progressbar.OptionSetItsString("files"),
				progressbar.OptionShowElapsedTimeOnFinish(),
				progressbar.OptionSetPredictTime(true),
				progressbar.OptionFullWidth(),
				progressbar.OptionSetTheme(progressbar.Theme{
					Saucer:        "=",
					SaucerHead:    ">",
					SaucerPadding: " ",
					BarStart:      "[",
					BarEnd:        "]",
				}),
			)
		}
		if bar != nil {
			_ = bar.Set(snapshot.Current)
		}
		if snapshot.ItemErr != "" {
			fmt.Fprintf(os.Stderr, "\n  failed: %s: %s\n", snapshot.Filename, snapshot.ItemErr)
		}
		if snapshot.Done {
			processed = snapshot.NewlyProcessed
			failed = snapshot.Failed
			skipped = snapshot.Total - snapshot.NewlyProcessed - snapshot.Failed
		}
	}
	if bar != nil {
		_ = bar.Finish()
		fmt.Println()
	}

	fmt.Printf("Processed %d files (%d unchanged, %d failed)\n", processed, skipped, failed)
	return nil
}
