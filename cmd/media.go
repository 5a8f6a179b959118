package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/media-curator/media-curator/internal/config"
	"github.com/media-curator/media-curator/internal/store"
)

var mediaCmd = &cobra.Command{
	Use:   "media",
	Short: "Inspect and manage indexed media",
}

var mediaListCmd = &cobra.Command{
	Use:   "list",
	Short: "List indexed media",
	RunE:  runMediaList,
}

var mediaInfoCmd = &cobra.Command{
	Use:   "info [id]",
	Short: "Show one media item with its faces",
	Args:  cobra.ExactArgs(1),
	RunE:  runMediaInfo,
}

var mediaRmCmd = &cobra.Command{
	Use:   "rm [id]",
	Short: "Remove a media item from both sides of the index",
	Args:  cobra.ExactArgs(1),
	RunE:  runMediaRm,
}

func init() {
	mediaListCmd.Flags().String("type", "", "Filter by media type (image or video)")
	mediaListCmd.Flags().String("tag", "", "Filter by tag")
	mediaListCmd.Flags().String("character", "", "Filter by character tag")
	mediaListCmd.Flags().String("series", "", "Filter by series tag")
	mediaListCmd.Flags().String("style", "", "Filter by style label")
	mediaListCmd.Flags().Int("limit", 100, "Maximum number of rows")
	mediaListCmd.Flags().Int("offset", 0, "Rows to skip")

	mediaCmd.AddCommand(mediaListCmd)
	mediaCmd.AddCommand(mediaInfoCmd)
	mediaCmd.AddCommand(mediaRmCmd)
	rootCmd.AddCommand(mediaCmd)
}

func parseMediaID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid media id %q", arg)
	}
	return id, nil
}

func runMediaList(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	cfg := config.Load()
	filter := store.MediaFilter{
		Type:      store.MediaType(mustGetString(cmd, "type")),
		Tag:       mustGetString(cmd, "tag"),
		Character: mustGetString(cmd, "character"),
		Series:    mustGetString(cmd, "series"),
		Style:     mustGetString(cmd, "style"),
		Limit:     mustGetInt(cmd, "limit"),
		Offset:    mustGetInt(cmd, "offset"),
	}

	ctx := context.Background()
	ds, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		_ = ds.Close()
	}()

	records, err := ds.Meta.ListMedia(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to list media: %w", err)
	}

	for _, rec := range records {
		status := "ok"
		if !rec.Processed {
			status = "error"
		}
		fmt.Printf("%6d  %-5s  %-5s  %s\n", rec.ID, rec.Type, status, rec.Path)
	}
	fmt.Printf("%d items\n", len(records))
	return nil
}

func runMediaInfo(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	id, err := parseMediaID(args[0])
	if err != nil {
		return err
	}

	cfg := config.Load()
	ctx := context.Background()
	ds, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		_ = ds.Close()
	}()

	rec, err := ds.Meta.GetMedia(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get media %d: %w", id, err)
	}
	faces, err := ds.Meta.ListFaces(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to list faces for media %d: %w", id, err)
	}

	out := struct {
		Media *store.MediaRecord      `json:"media"`
		Faces []store.FaceObservation `json:"faces"`
	}{rec, faces}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func runMediaRm(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	id, err := parseMediaID(args[0])
	if err != nil {
		return err
	}

	cfg := config.Load()
	ctx := context.Background()
	ds, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		_ = ds.Close()
	}()

	rec, err := ds.Meta.GetMedia(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get media %d: %w", id, err)
	}
	if err := ds.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete media %d: %w", id, err)
	}

	fmt.Printf("Removed %d (%s)\n", id, strings.TrimSpace(rec.Path))
	return nil
}
